/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

// stampWriter prefixes every line with the same timestamp logf uses.
type stampWriter struct {
	w io.Writer
}

func (s stampWriter) Write(p []byte) (int, error) {
	if _, err := fmt.Fprintf(s.w, "%s | %s", time.Now().Format(logDate), p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// newLogger returns the logger handed to the client's components. It is
// silent unless verbose output or traffic logging was asked for.
func newLogger(cfg *Config) *log.Logger {
	if !cfg.verbose && !cfg.debugTraffic {
		return log.New(io.Discard, "", 0)
	}
	return log.New(stampWriter{w: os.Stderr}, "", 0)
}

func errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s | ERROR: "+format+"\n", append([]any{time.Now().Format(logDate)}, args...)...)
}
