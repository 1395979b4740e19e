// Package grilllog is a minimal wrapper around an io.Writer, used for the
// sequential progress narration the orchestrator and fetcher emit while
// they run.
package grilllog

import (
	"fmt"
	"io"
)

// Logger writes plain lines and formatted lines to an underlying writer.
type Logger struct {
	io.Writer
	Verbose bool
}

// New returns a Logger that writes to w.
func New(w io.Writer) *Logger {
	return &Logger{Writer: w}
}

// Logln logs a line.
func (l *Logger) Logln(args ...interface{}) {
	fmt.Fprintln(l, args...)
}

// Logf logs a formatted string, without a trailing newline.
func (l *Logger) Logf(format string, args ...interface{}) {
	fmt.Fprintf(l, format, args...)
}

// Stepf logs a formatted, newline-terminated pipeline step, prefixed with
// "grill: ".
func (l *Logger) Stepf(format string, args ...interface{}) {
	fmt.Fprintf(l, "grill: "+format+"\n", args...)
}

// Verbosef logs a formatted line only when Verbose is set.
func (l *Logger) Verbosef(format string, args ...interface{}) {
	if !l.Verbose {
		return
	}
	fmt.Fprintf(l, format, args...)
}
