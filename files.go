/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

func humanReadableSize(bytes int64) string {
	const unit int64 = 1000
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB",
		float64(bytes)/float64(div),
		"kMGTPE"[exp])
}

// openMic opens the raw PCM microphone source. "-" reads stdin.
func openMic(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening microphone %q: %w", path, err)
	}

	return f, nil
}

// openAudioOut opens the raw PCM playback sink. An empty path discards
// the audio and "-" writes stdout.
func openAudioOut(path string) (*countingWriter, error) {
	switch path {
	case "":
		return &countingWriter{w: io.Discard}, nil
	case "-":
		return &countingWriter{w: os.Stdout}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating audio output %q: %w", path, err)
	}

	return &countingWriter{w: f, c: f}, nil
}

type countingWriter struct {
	w io.Writer
	c io.Closer
	n atomic.Int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n.Add(int64(n))
	return n, err
}

func (cw *countingWriter) Written() int64 {
	return cw.n.Load()
}

func (cw *countingWriter) Close() error {
	if cw.c == nil {
		return nil
	}
	return cw.c.Close()
}
