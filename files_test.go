package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHumanReadableSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{999, "999 B"},
		{1000, "1.0 kB"},
		{1536000, "1.5 MB"},
		{3 * 1000 * 1000 * 1000, "3.0 GB"},
	}

	for _, tt := range tests {
		if got := humanReadableSize(tt.in); got != tt.want {
			t.Errorf("humanReadableSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOpenAudioOut_CountsBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pcm")

	out, err := openAudioOut(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := out.Write(make([]byte, 960)); err != nil {
		t.Fatal(err)
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}

	if got := out.Written(); got != 960 {
		t.Errorf("written = %d, want 960", got)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 960 {
		t.Errorf("file size = %d, want 960", info.Size())
	}
}

func TestOpenAudioOut_DiscardByDefault(t *testing.T) {
	out, err := openAudioOut("")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := out.Write([]byte{1, 2}); err != nil {
		t.Fatal(err)
	}
	if err := out.Close(); err != nil {
		t.Errorf("closing discard sink: %v", err)
	}
}

func TestOpenMic_Missing(t *testing.T) {
	if _, err := openMic(filepath.Join(t.TempDir(), "nope.pcm")); err == nil {
		t.Error("expected error for missing microphone file")
	}
}

func TestStampWriter(t *testing.T) {
	var buf bytes.Buffer
	w := stampWriter{w: &buf}

	n, err := w.Write([]byte("BUS: connected\n"))
	if err != nil {
		t.Fatal(err)
	}
	if n != len("BUS: connected\n") {
		t.Errorf("n = %d", n)
	}

	line := buf.String()
	if !strings.HasSuffix(line, " | BUS: connected\n") {
		t.Errorf("got %q", line)
	}
	if len(line) < len(logDate) {
		t.Errorf("missing timestamp: %q", line)
	}
}

func TestNewLogger_SilentByDefault(t *testing.T) {
	cfg := testConfig()
	if got := newLogger(cfg).Writer(); got != io.Discard {
		t.Errorf("writer = %T, want io.Discard", got)
	}

	cfg.debugTraffic = true
	if _, ok := newLogger(cfg).Writer().(stampWriter); !ok {
		t.Error("traffic logging should write through stampWriter")
	}
}
