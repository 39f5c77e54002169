package container

import (
	"bytes"
	"io"
	"testing"

	"github.com/lcpu-club/hpccontainer/common/logging"
	"github.com/lcpu-club/hpccontainer/container/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

const rlimInfinity = ^uint64(0)

type fakeLimiter struct {
	limits map[int]unix.Rlimit
	getErr error
	setErr error
	gets   []int
	sets   []int
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{limits: map[int]unix.Rlimit{
		unix.RLIMIT_AS:  {Cur: rlimInfinity, Max: rlimInfinity},
		unix.RLIMIT_CPU: {Cur: rlimInfinity, Max: 7200},
	}}
}

func (f *fakeLimiter) Getrlimit(resource int, rlim *unix.Rlimit) error {
	f.gets = append(f.gets, resource)
	if f.getErr != nil {
		return f.getErr
	}
	*rlim = f.limits[resource]
	return nil
}

func (f *fakeLimiter) Setrlimit(resource int, rlim *unix.Rlimit) error {
	f.sets = append(f.sets, resource)
	if f.setErr != nil {
		return f.setErr
	}
	f.limits[resource] = *rlim
	return nil
}

func quietLogger() logrus.FieldLogger {
	logger, _ := logging.NewLogger(io.Discard, io.Discard, "")
	return logger
}

func TestApplyLimitsSetsSoftValues(t *testing.T) {
	limiter := newFakeLimiter()
	err := ApplyLimits(limiter, &models.Invocation{MaxVirtualMemoryGB: 4, MaxCPUSeconds: 600})
	require.NoError(t, err)
	assert.Equal(t, unix.Rlimit{Cur: 4 << 30, Max: rlimInfinity}, limiter.limits[unix.RLIMIT_AS])
	assert.Equal(t, unix.Rlimit{Cur: 600, Max: 7200}, limiter.limits[unix.RLIMIT_CPU])
}

func TestLogLimits(t *testing.T) {
	stdout := &bytes.Buffer{}
	logger, err := logging.NewLogger(stdout, io.Discard, "")
	require.NoError(t, err)

	LogLimits(logger, &models.Invocation{MaxVirtualMemoryGB: 4, MaxCPUSeconds: 600})
	assert.Contains(t, stdout.String(), "Virtual memory size limited to 4 GB (4.0 GiB)")
	assert.Contains(t, stdout.String(), "Maximum CPU time limited to 600 seconds")

	stdout.Reset()
	LogLimits(logger, &models.Invocation{MaxVirtualMemoryGB: models.Unlimited, MaxCPUSeconds: models.Unlimited})
	assert.Contains(t, stdout.String(), "Maximum virtual memory size is not limited")
	assert.Contains(t, stdout.String(), "Maximum CPU time is not limited")
}

func TestApplyLimitsUnlimitedLeavesOSValues(t *testing.T) {
	limiter := newFakeLimiter()
	before := map[int]unix.Rlimit{}
	for k, v := range limiter.limits {
		before[k] = v
	}

	err := ApplyLimits(limiter, &models.Invocation{
		MaxVirtualMemoryGB: models.Unlimited,
		MaxCPUSeconds:      models.Unlimited,
	})
	require.NoError(t, err)
	assert.Empty(t, limiter.gets)
	assert.Empty(t, limiter.sets)
	assert.Equal(t, before, limiter.limits)
}

func TestApplyLimitsOnlyCPU(t *testing.T) {
	limiter := newFakeLimiter()
	err := ApplyLimits(limiter, &models.Invocation{MaxVirtualMemoryGB: models.Unlimited, MaxCPUSeconds: 5})
	require.NoError(t, err)
	assert.Equal(t, []int{unix.RLIMIT_CPU}, limiter.gets)
	assert.Equal(t, []int{unix.RLIMIT_CPU}, limiter.sets)
}

func TestApplyLimitsErrors(t *testing.T) {
	limiter := newFakeLimiter()
	limiter.getErr = unix.EPERM
	err := ApplyLimits(limiter, &models.Invocation{MaxVirtualMemoryGB: 1, MaxCPUSeconds: 1})
	var limitErr *LimitSetError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, "get", limitErr.Op)
	assert.Equal(t, "memory", limitErr.Resource)
	assert.ErrorIs(t, err, unix.EPERM)
	assert.Equal(t, "could not get memory limit: operation not permitted", err.Error())

	limiter = newFakeLimiter()
	limiter.setErr = unix.EINVAL
	err = ApplyLimits(limiter, &models.Invocation{MaxVirtualMemoryGB: models.Unlimited, MaxCPUSeconds: 1})
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, "set", limitErr.Op)
	assert.Equal(t, "CPU", limitErr.Resource)
	assert.ErrorIs(t, err, unix.EINVAL)
}
