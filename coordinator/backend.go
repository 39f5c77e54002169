package coordinator

import (
	"context"
	"fmt"

	"github.com/lcpu-club/hpccontainer/container/configure"
)

// Backend serialises the scan of concurrently starting containers. The
// release function must be called once the scan is over.
type Backend interface {
	Name() string
	Acquire(ctx context.Context) (release func(), err error)
}

func NewBackend(conf *configure.CoordinationConfigure) (Backend, error) {
	switch conf.Backend {
	case configure.BackendProcessTable:
		return ProcessTableBackend{}, nil
	case configure.BackendFlock:
		return NewFlockBackend(conf.LockFile, conf.LockTimeout.Std()), nil
	case configure.BackendRedis:
		return NewRedisBackend(conf.Redis, conf.LockTimeout.Std()), nil
	}
	return nil, fmt.Errorf("%w: %v", configure.ErrUnknownBackend, conf.Backend)
}

// ProcessTableBackend takes no lock at all. Two containers starting within
// the same scan window may miss each other.
type ProcessTableBackend struct{}

func (ProcessTableBackend) Name() string {
	return configure.BackendProcessTable
}

func (ProcessTableBackend) Acquire(ctx context.Context) (func(), error) {
	return func() {}, nil
}
