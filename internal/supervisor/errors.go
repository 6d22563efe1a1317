package supervisor

import (
	"errors"
	"fmt"
)

// modelNotFoundError signals a model id with no registry entry, for 404 mapping.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// ErrModelNotFound constructs an error for a missing model id.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// startupTimeoutError signals that the server never reached the requested
// model within the startup budget. The spawned process is killed before this
// is returned.
type startupTimeoutError struct {
	model string
	state string
}

func (e startupTimeoutError) Error() string {
	return fmt.Sprintf("server did not start serving %s within the startup budget (last state: %s)", e.model, e.state)
}

// ErrStartupTimeout constructs a startupTimeoutError.
func ErrStartupTimeout(model, state string) error {
	return startupTimeoutError{model: model, state: state}
}

// IsStartupTimeout reports whether err indicates an exhausted startup budget.
func IsStartupTimeout(err error) bool {
	var e startupTimeoutError
	return errors.As(err, &e)
}

// terminationError signals the OS refused a termination signal. This is
// surfaced rather than swallowed: a process we cannot kill means the
// endpoint cannot be considered owned.
type terminationError struct {
	pid int
	err error
}

func (e terminationError) Error() string { return fmt.Sprintf("terminate pid %d: %v", e.pid, e.err) }

func (e terminationError) Unwrap() error { return e.err }

// ErrTermination constructs a terminationError.
func ErrTermination(pid int, err error) error { return terminationError{pid: pid, err: err} }

// IsTermination reports whether err indicates a refused termination signal.
func IsTermination(err error) bool {
	var e terminationError
	return errors.As(err, &e)
}
