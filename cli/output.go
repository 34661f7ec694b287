// Package cli prints user-facing command output.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shipq/tsrpc/program"
)

// Output streams. Tests replace them.
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
	exit             = os.Exit
)

// Fatal prints a message to stderr and exits with code 1.
func Fatal(msg string) {
	fmt.Fprintln(Stderr, "error:", msg)
	exit(1)
}

// FatalErr prints err to stderr and exits with code 1. Program errors are
// printed one diagnostic per line.
func FatalErr(msg string, err error) {
	PrintErr(msg, err)
	exit(1)
}

// PrintErr prints err to stderr the way FatalErr does, without exiting.
func PrintErr(msg string, err error) {
	var perr *program.ProgramError
	if errors.As(err, &perr) && len(perr.Diagnostics) > 0 {
		fmt.Fprintf(Stderr, "error: %s: %d problem(s) in TypeScript program\n", msg, len(perr.Diagnostics))
		for _, d := range perr.Diagnostics {
			fmt.Fprintln(Stderr, "  "+d.String())
		}
		return
	}
	if msg == "" {
		fmt.Fprintf(Stderr, "error: %v\n", err)
		return
	}
	fmt.Fprintf(Stderr, "error: %s: %v\n", msg, err)
}

// Info prints an informational message to stdout.
func Info(msg string) {
	fmt.Fprintln(Stdout, msg)
}

// Infof prints a formatted informational message to stdout.
func Infof(format string, args ...any) {
	fmt.Fprintf(Stdout, format+"\n", args...)
}

// Success prints a success message to stdout.
func Success(msg string) {
	fmt.Fprintln(Stdout, "✓", msg)
}

// Successf prints a formatted success message to stdout.
func Successf(format string, args ...any) {
	fmt.Fprintf(Stdout, "✓ "+format+"\n", args...)
}

// Warn prints a warning message to stderr.
func Warn(msg string) {
	fmt.Fprintln(Stderr, "warning:", msg)
}

// Warnf prints a formatted warning message to stderr.
func Warnf(format string, args ...any) {
	fmt.Fprintf(Stderr, "warning: "+format+"\n", args...)
}
