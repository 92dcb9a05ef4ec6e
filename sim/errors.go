package sim

import (
	"errors"
	"fmt"
)

// Kinds of SimulationError. Test for them with errors.Is.
var (
	ErrInvalidTime        = errors.New("invalid time")
	ErrInvalidDelay       = errors.New("invalid delay time")
	ErrAnchorNotScheduled = errors.New("anchor process is not scheduled")
	ErrSelfAnchor         = errors.New("anchor cannot be identical to self")
	ErrCurrentNotSet      = errors.New("current not set")
	ErrNotStarted         = errors.New("simulation not started")
	ErrInactiveHold       = errors.New("hold applied to inactive object")
	ErrNotScheduled       = errors.New("process not on run queue")
	ErrIdleProcess        = errors.New("process is idle")
	ErrInvalidWakeUp      = errors.New("invalid process wakeup time")
	ErrResetInProgress    = errors.New("reset in progress")
	ErrAlreadyRunning     = errors.New("simulation already running")
)

// Errors reported by an EventQueue.
var (
	ErrEntryNotFound  = errors.New("entry not found")
	ErrEmptyQueue     = errors.New("queue is empty")
	ErrDuplicateEntry = errors.New("entry already queued")
)

// ErrRestart is the restart signal. It is returned from a suspension point
// when a global reset wakes the process. It is not a SimulationError: the
// process is expected to rewind its own state and then call Cancel.
var ErrRestart = errors.New("simulation restart")

// IsRestart tells if err carries the restart signal.
func IsRestart(err error) bool {
	return errors.Is(err, ErrRestart)
}

// A SimulationError reports misuse of the kernel.
type SimulationError struct {
	Op     string
	Err    error
	Detail string
}

func newSimulationError(op string, kind error, detail string) *SimulationError {
	return &SimulationError{Op: op, Err: kind, Detail: detail}
}

func (e *SimulationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("sim: %s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("sim: %s: %v %s", e.Op, e.Err, e.Detail)
}

func (e *SimulationError) Unwrap() error {
	return e.Err
}

// IsSimulationError tells if err reports misuse of the kernel, as opposed to
// the restart signal or an application error.
func IsSimulationError(err error) bool {
	var simErr *SimulationError
	return errors.As(err, &simErr)
}
