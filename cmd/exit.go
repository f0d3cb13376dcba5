package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/dispatch"
)

// exitError carries a process exit code out of a RunE. A nil err means the
// failure was already reported.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func usageErr(format string, args ...interface{}) error {
	return &exitError{code: dispatch.ExitUsage, err: fmt.Errorf(format, args...)}
}

func internalErr(err error) error {
	return &exitError{code: dispatch.ExitInternal, err: err}
}

// silent reports code without printing anything further.
func silent(code int) error {
	if code == dispatch.ExitOK {
		return nil
	}
	return &exitError{code: code}
}

// exitCode maps a command error onto the process exit code. Errors cobra
// raises itself (unknown command, wrong argument count) are usage errors.
func exitCode(err error) int {
	if err == nil {
		return dispatch.ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return dispatch.ExitUsage
}

func reportError(w io.Writer, err error) {
	var ee *exitError
	if errors.As(err, &ee) && ee.err == nil {
		return
	}
	red := color.New(color.FgRed)
	red.Fprintf(w, "Error: %v\n", err)
	if exitCode(err) == dispatch.ExitUsage {
		fmt.Fprintln(w, "Run 'pantest --help' for usage.")
	}
}
