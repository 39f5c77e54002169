package container

import (
	"github.com/dustin/go-humanize"
	"github.com/lcpu-club/hpccontainer/container/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Limiter reads and writes resource limits of the current process.
type Limiter interface {
	Getrlimit(resource int, rlim *unix.Rlimit) error
	Setrlimit(resource int, rlim *unix.Rlimit) error
}

// SystemLimiter is the Limiter backed by getrlimit(2) and setrlimit(2).
type SystemLimiter struct{}

func (SystemLimiter) Getrlimit(resource int, rlim *unix.Rlimit) error {
	return unix.Getrlimit(resource, rlim)
}

func (SystemLimiter) Setrlimit(resource int, rlim *unix.Rlimit) error {
	return unix.Setrlimit(resource, rlim)
}

// ApplyLimits lowers the soft address space and CPU time limits of the
// current process. It runs in the init process of the child only: limits
// survive exec, so the program and everything it spawns inherit them. A
// value of -1 leaves the limit alone.
func ApplyLimits(limiter Limiter, inv *models.Invocation) error {
	if inv.MaxVirtualMemoryGB != models.Unlimited {
		size := uint64(inv.MaxVirtualMemoryGB) << 30
		if err := setSoftLimit(limiter, unix.RLIMIT_AS, "memory", size); err != nil {
			return err
		}
	}
	if inv.MaxCPUSeconds != models.Unlimited {
		if err := setSoftLimit(limiter, unix.RLIMIT_CPU, "CPU", uint64(inv.MaxCPUSeconds)); err != nil {
			return err
		}
	}
	return nil
}

// LogLimits reports the limits the program runs under.
func LogLimits(logger logrus.FieldLogger, inv *models.Invocation) {
	if inv.MaxVirtualMemoryGB == models.Unlimited {
		logger.Info("Maximum virtual memory size is not limited")
	} else {
		size := uint64(inv.MaxVirtualMemoryGB) << 30
		logger.Infof("Virtual memory size limited to %d GB (%v)", inv.MaxVirtualMemoryGB, humanize.IBytes(size))
	}
	if inv.MaxCPUSeconds == models.Unlimited {
		logger.Info("Maximum CPU time is not limited")
	} else {
		logger.Infof("Maximum CPU time limited to %d seconds", inv.MaxCPUSeconds)
	}
}

func setSoftLimit(limiter Limiter, resource int, name string, value uint64) error {
	rlim := &unix.Rlimit{}
	if err := limiter.Getrlimit(resource, rlim); err != nil {
		return &LimitSetError{Resource: name, Op: "get", Err: err}
	}
	rlim.Cur = value
	if err := limiter.Setrlimit(resource, rlim); err != nil {
		return &LimitSetError{Resource: name, Op: "set", Err: err}
	}
	return nil
}
