// Package coordinator decides whether a container may start, by looking at
// the other containers running on the machine.
//
// Containers of the same job may run side by side up to a limit. A container
// of an older job is killed, and a container of a newer job makes this one
// give up. Job ids are compared as byte strings.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lcpu-club/hpccontainer/container/configure"
	"github.com/lcpu-club/hpccontainer/container/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

type Coordinator struct {
	table           ProcessTable
	backend         Backend
	logger          logrus.FieldLogger
	binaryName      string
	startleDelay    time.Duration
	killSignal      unix.Signal
	confirmTimeout  time.Duration
	confirmInterval time.Duration
}

// Result is what a scan found.
type Result struct {
	// SameJob counts the containers of this job, this one included.
	SameJob int
	// Killed lists the containers of older jobs that were signalled.
	Killed []int
	// Unconfirmed lists the killed containers still alive when the
	// confirmation timed out.
	Unconfirmed []int
}

func NewCoordinator(
	conf *configure.Configure, binaryName string, table ProcessTable, backend Backend, logger logrus.FieldLogger,
) (*Coordinator, error) {
	sig, err := ParseSignal(conf.KillSignal)
	if err != nil {
		return nil, err
	}
	c := &Coordinator{
		table:           table,
		backend:         backend,
		logger:          logger,
		binaryName:      binaryName,
		killSignal:      sig,
		confirmTimeout:  conf.KillConfirmTimeout.Std(),
		confirmInterval: conf.KillConfirmInterval.Std(),
	}
	if conf.StartleDelay != nil {
		c.startleDelay = conf.StartleDelay.Std()
	}
	return c, nil
}

// Coordinate waits for containers started at the same moment to show up in
// the process table, then scans it once and applies the policy. On
// ErrSuperseded and TooManyContainersError the caller must not start its
// program.
func (c *Coordinator) Coordinate(ctx context.Context, inv *models.Invocation) (*Result, error) {
	if err := sleepContext(ctx, c.startleDelay); err != nil {
		return nil, err
	}
	release, err := c.backend.Acquire(ctx)
	if err != nil {
		return nil, &LockError{Backend: c.backend.Name(), Err: err}
	}
	result, err := c.scan(ctx, inv.JobID)
	release()
	if err != nil {
		return result, err
	}
	c.logger.Infof("%v containers of job %v are running", result.SameJob, inv.JobID)
	if result.SameJob > inv.MaxConcurrentContainers {
		return result, &TooManyContainersError{Running: result.SameJob, Max: inv.MaxConcurrentContainers}
	}
	if len(result.Killed) > 0 && c.confirmTimeout > 0 {
		result.Unconfirmed = c.confirmKills(ctx, result.Killed)
		if len(result.Unconfirmed) > 0 {
			c.logger.Warnf("Containers of older jobs still running after %v: %v", c.confirmTimeout, result.Unconfirmed)
		}
	}
	return result, nil
}

func (c *Coordinator) scan(ctx context.Context, jobID string) (*Result, error) {
	snapshots, err := c.table.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not read the process table: %w", err)
	}
	result := &Result{}
	for _, s := range snapshots {
		switch Classify(s.CommandLine, c.binaryName, jobID) {
		case PeerSameJob:
			result.SameJob++
		case PeerOlderJob:
			peerJobID, _ := DecodeJobID(s.CommandLine)
			c.logger.Infof("Killing container belonging to job %v (pid %v)", peerJobID, s.PID)
			err := c.table.Kill(s.PID, c.killSignal)
			if errors.Is(err, unix.ESRCH) {
				continue
			}
			if err != nil {
				return result, &KillFailedError{PID: s.PID, Err: err}
			}
			result.Killed = append(result.Killed, s.PID)
		case PeerNewerJob:
			return result, fmt.Errorf("%w (pid %v)", ErrSuperseded, s.PID)
		}
	}
	return result, nil
}

func (c *Coordinator) confirmKills(ctx context.Context, pids []int) []int {
	deadline := time.Now().Add(c.confirmTimeout)
	pending := pids
	for {
		alive := []int{}
		for _, pid := range pending {
			if c.table.Alive(pid) {
				alive = append(alive, pid)
			}
		}
		pending = alive
		if len(pending) == 0 || !time.Now().Before(deadline) {
			return pending
		}
		if err := sleepContext(ctx, c.confirmInterval); err != nil {
			return pending
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
