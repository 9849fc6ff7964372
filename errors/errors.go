// Package errors holds the agent's error taxonomy and small helpers for
// annotating internal errors with the file and line that produced them.
//
// Public operations return *AgentError values whose Kind tells the caller
// how to react: configuration problems are fatal, model API failures may be
// retried, planning and execution failures are surfaced as-is. Use the
// sentinel values with Is to branch on the kind:
//
//	if errors.Is(err, errors.ErrModelAPI) { ... }
package errors

import (
	stderrors "errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// Re-exported so callers only need this package for error handling.
var (
	Is     = stderrors.Is
	As     = stderrors.As
	Unwrap = stderrors.Unwrap
	Join   = stderrors.Join
)

// New creates a new error with file and line number information.
func New(format string, a ...interface{}) error {
	file, line := caller()
	return fmt.Errorf("[%s:%d] %s", file, line, fmt.Sprintf(format, a...))
}

// Wrapf adds context (including file and line number) to an existing error.
// If the provided error is nil, Wrapf returns nil.
func Wrapf(err error, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	file, line := caller()
	return fmt.Errorf("[%s:%d] %s: %w", file, line, fmt.Sprintf(format, a...), err)
}

func caller() (string, int) {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return "???", 0
	}
	return filepath.Base(file), line
}
