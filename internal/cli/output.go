package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/example/lexicon/internal/moderation"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The engine refused the operation
	ExitCommandError = 2 // Invalid input, unreachable database, etc.
)

// ExitError carries the process exit code for an error.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Engine errors map to ExitFailure, anything else unwrapped to ExitCommandError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if moderation.KindOf(err) != "" {
		return ExitFailure
	}
	return ExitCommandError
}

// printer writes command results as JSON or as text.
type printer struct {
	format string
	w      io.Writer
}

// print renders v as indented JSON, or calls text for the text format.
func (p printer) print(v interface{}, text func(w io.Writer)) error {
	if p.format == "json" {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(p.w)
	return nil
}
