package container

import (
	"fmt"

	"github.com/lcpu-club/hpccontainer/common/consts"
)

var ErrUsage = fmt.Errorf("usage: hpc-container maxVM maxTime maxProcs jobID executable [args...]")

type InvalidLimitError struct {
	Name  string
	Value string
}

func (e *InvalidLimitError) Error() string {
	return fmt.Sprintf("invalid %v: %v (expected -1 or a positive integer)", e.Name, e.Value)
}

type InvalidConcurrencyError struct {
	Value string
}

func (e *InvalidConcurrencyError) Error() string {
	return fmt.Sprintf("invalid maxProcs value: %v (expected an integer >= 1)", e.Value)
}

type LimitSetError struct {
	Resource string
	Op       string
	Err      error
}

func (e *LimitSetError) Error() string {
	return fmt.Sprintf("could not %v %v limit: %v", e.Op, e.Resource, e.Err)
}

func (e *LimitSetError) Unwrap() error {
	return e.Err
}

type ExecFailedError struct {
	Program string
	Err     error
}

func (e *ExecFailedError) Error() string {
	return fmt.Sprintf("could not start program: %v: %v", e.Program, e.Err)
}

func (e *ExecFailedError) Unwrap() error {
	return e.Err
}

type CgroupError struct {
	Path string
	Err  error
}

func (e *CgroupError) Error() string {
	return fmt.Sprintf("could not place container in cgroup %v: %v", e.Path, e.Err)
}

func (e *CgroupError) Unwrap() error {
	return e.Err
}

// ExitCode maps a failure of the container itself to its exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return consts.ExitInternalFailure
}
