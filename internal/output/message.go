package output

import (
	"fmt"
	"os"
)

// Status-line prefixes for human-facing messages. These print around
// the formatter: informational chatter targets the terminal streams
// directly and never lands in machine-readable output.
const (
	infoPrefix    = "ℹ️  "
	warnPrefix    = "⚠️  "
	successPrefix = "✅ "
)

// Info prints an informational message to stdout.
func Info(msg string) {
	_, _ = fmt.Fprintln(os.Stdout, infoPrefix+msg)
}

// Infof prints a formatted informational message to stdout.
func Infof(format string, args ...any) {
	Info(fmt.Sprintf(format, args...))
}

// Warn prints a warning message to stderr.
func Warn(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, warnPrefix+msg)
}

// Warnf prints a formatted warning message to stderr.
func Warnf(format string, args ...any) {
	Warn(fmt.Sprintf(format, args...))
}

// Success prints a success message to stdout.
func Success(msg string) {
	_, _ = fmt.Fprintln(os.Stdout, successPrefix+msg)
}

// Successf prints a formatted success message to stdout.
func Successf(format string, args ...any) {
	Success(fmt.Sprintf(format, args...))
}
