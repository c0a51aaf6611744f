package utils

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// VerboseLogger prints plain progress lines to stderr when verbose is set
type VerboseLogger struct {
	verbose bool
	out     io.Writer
}

// NewVerboseLogger creates a new verbose logger
func NewVerboseLogger(verbose bool) *VerboseLogger {
	return &VerboseLogger{verbose: verbose, out: os.Stderr}
}

// SetOutput redirects the logger, mostly for tests
func (v *VerboseLogger) SetOutput(w io.Writer) {
	v.out = w
}

// Logf logs a formatted message if verbose mode is enabled
func (v *VerboseLogger) Logf(format string, args ...interface{}) {
	if v.verbose {
		fmt.Fprintf(v.out, format, args...)
	}
}

// NewLogger returns the structured logger handed to analyzers: text on
// stderr, debug level when verbose.
func NewLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
