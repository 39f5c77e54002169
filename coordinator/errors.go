package coordinator

import (
	"fmt"
)

var ErrSuperseded = fmt.Errorf("a container of a newer job is running")

var ErrLockTimeout = fmt.Errorf("timed out waiting for the coordination lock")

var ErrUnknownSignal = fmt.Errorf("unknown signal")

type KillFailedError struct {
	PID int
	Err error
}

func (e *KillFailedError) Error() string {
	return fmt.Sprintf("could not kill container of an older job (pid %v): %v", e.PID, e.Err)
}

func (e *KillFailedError) Unwrap() error {
	return e.Err
}

type TooManyContainersError struct {
	Running int
	Max     int
}

func (e *TooManyContainersError) Error() string {
	return fmt.Sprintf("too many containers of this job are running: %v (maximum %v)", e.Running, e.Max)
}

type LockError struct {
	Backend string
	Err     error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("could not acquire %v coordination lock: %v", e.Backend, e.Err)
}

func (e *LockError) Unwrap() error {
	return e.Err
}
