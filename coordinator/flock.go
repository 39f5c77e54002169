package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"github.com/lcpu-club/hpccontainer/container/configure"
)

const flockRetryDelay = 50 * time.Millisecond

// FlockBackend holds an advisory lock on a file shared by all containers of
// the machine.
type FlockBackend struct {
	path    string
	timeout time.Duration
}

func NewFlockBackend(path string, timeout time.Duration) *FlockBackend {
	return &FlockBackend{path: path, timeout: timeout}
}

func (b *FlockBackend) Name() string {
	return configure.BackendFlock
}

func (b *FlockBackend) Acquire(ctx context.Context) (func(), error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	lock := flock.New(b.path)
	locked, err := lock.TryLockContext(ctx, flockRetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrLockTimeout, b.path)
		}
		return nil, err
	}
	if !locked {
		return nil, fmt.Errorf("%w: %v", ErrLockTimeout, b.path)
	}
	return func() {
		_ = lock.Unlock()
	}, nil
}
