package program

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a tsconfig.json or entry file that cannot be
// located, read or parsed.
type ConfigurationError struct {
	Path  string
	Msg   string
	cause error
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error")
	if e.Path != "" {
		b.WriteString(": ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if e.cause != nil {
		fmt.Fprintf(&b, ": %v", e.cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.As/errors.Is support.
func (e *ConfigurationError) Unwrap() error { return e.cause }

func configErrorf(path string, cause error, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Path: path, Msg: fmt.Sprintf(format, args...), cause: cause}
}

// Diagnostic is one syntax or resolution problem at a source position.
type Diagnostic struct {
	File    string
	Line    int
	Column  int
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s", d.File, d.Line, d.Column, d.Message)
}

// ProgramError reports source files that cannot be parsed or whose type
// references cannot be resolved. Diagnostics are kept verbatim.
type ProgramError struct {
	Diagnostics []Diagnostic
}

func (e *ProgramError) Error() string {
	lines := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		lines[i] = d.String()
	}
	if len(lines) == 1 {
		return "program error: " + lines[0]
	}
	return fmt.Sprintf("program error: %d diagnostics:\n  %s", len(lines), strings.Join(lines, "\n  "))
}
