package container

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/lcpu-club/hpccontainer/common/consts"
	"github.com/lcpu-club/hpccontainer/common/runner"
	"github.com/lcpu-club/hpccontainer/container/models"
	"github.com/sirupsen/logrus"
)

// ForwardedSignals are relayed from the container to its child.
var ForwardedSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT}

// ExitState is how the child ended.
type ExitState struct {
	PID    int
	Status int
	Signal string
}

type Supervisor struct {
	logger    logrus.FieldLogger
	runAsUser string
	spawner   *Spawner
	// InitPath is the executable started as the init process of the child.
	// It must call InitMain when IsInitProcess reports true.
	InitPath string
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
}

// NewSupervisor returns a supervisor wired to the standard streams of this
// process. spawner may be nil, in which case no cgroup is used.
func NewSupervisor(logger logrus.FieldLogger, runAsUser string, spawner *Spawner) *Supervisor {
	return &Supervisor{
		logger:    logger,
		runAsUser: runAsUser,
		spawner:   spawner,
		InitPath:  consts.InitExecutable,
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
	}
}

// Child is a program ready to be started.
type Child struct {
	supervisor *Supervisor
	inv        *models.Invocation
	program    string
	cmd        *exec.Cmd
	cgroup     Cgroup
}

// Prepare builds the command of the invocation without starting it. The
// program is run as given, without a search of PATH, with the environment
// of this process. The limits of the invocation are set by the init process
// of the child, never by the container itself.
func (s *Supervisor) Prepare(inv *models.Invocation) (*Child, error) {
	cmd := &exec.Cmd{
		Path:   s.InitPath,
		Args:   append([]string{consts.InitProcessName}, inv.Argv()...),
		Env:    append(os.Environ(), initEnv(inv)),
		Stdin:  s.Stdin,
		Stdout: s.Stdout,
		Stderr: s.Stderr,
	}
	setDeathSignal(cmd)
	if s.runAsUser != "" {
		if _, err := runner.CommandUseUser(cmd, s.runAsUser); err != nil {
			return nil, &ExecFailedError{Program: inv.ProgramPath, Err: fmt.Errorf("run as %v: %w", s.runAsUser, err)}
		}
	}
	child := &Child{supervisor: s, inv: inv, program: inv.ProgramPath, cmd: cmd}
	if s.spawner != nil {
		cg, err := s.spawner.NewCgroup(fmt.Sprintf("%v-%v", inv.JobID, os.Getpid()), inv)
		if err != nil {
			return nil, err
		}
		child.cgroup = cg
	}
	return child, nil
}

// Run starts the child and waits for it without a timeout. Signals in
// ForwardedSignals received meanwhile are passed on to the child.
func (c *Child) Run() (*ExitState, error) {
	// The death signal is bound to the thread that forks.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	signals := make(chan os.Signal, len(ForwardedSignals))
	signal.Notify(signals, ForwardedSignals...)
	defer signal.Stop(signals)

	statusR, statusW, err := os.Pipe()
	if err != nil {
		return nil, &ExecFailedError{Program: c.program, Err: err}
	}
	defer statusR.Close()
	startR, startW, err := os.Pipe()
	if err != nil {
		statusW.Close()
		return nil, &ExecFailedError{Program: c.program, Err: err}
	}
	defer startW.Close()
	c.cmd.ExtraFiles = []*os.File{statusW, startR}
	err = c.cmd.Start()
	statusW.Close()
	startR.Close()
	if err != nil {
		return nil, &ExecFailedError{Program: c.program, Err: err}
	}
	pid := c.cmd.Process.Pid
	if c.cgroup != nil {
		if err := c.cgroup.AddProc(pid); err != nil {
			c.cmd.Process.Kill()
			c.cmd.Wait()
			return nil, &CgroupError{Path: c.cgroup.Path(), Err: err}
		}
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case sig := <-signals:
				c.supervisor.logger.Debugf("Forwarding %v to pid %v", sig, pid)
				c.cmd.Process.Signal(sig)
			case <-done:
				return
			}
		}
	}()

	if err := c.release(startW, statusR); err != nil {
		c.cmd.Wait()
		return nil, err
	}
	LogLimits(c.supervisor.logger, c.inv)
	c.supervisor.logger.Infof("Executing: %v", strings.Join(c.inv.Argv(), " "))

	err = c.cmd.Wait()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return nil, err
	}
	status, sig := runner.ExitStatus(c.cmd.ProcessState)
	return &ExitState{PID: pid, Status: status, Signal: sig}, nil
}

// release lets the init process go on and waits until it has become the
// program or failed.
func (c *Child) release(start io.WriteCloser, status io.Reader) error {
	_, err := start.Write([]byte{0})
	start.Close()
	if err != nil {
		return &ExecFailedError{Program: c.program, Err: fmt.Errorf("release %v: %w", consts.InitProcessName, err)}
	}
	failure, err := readInitFailure(status)
	if err != nil {
		return &ExecFailedError{Program: c.program, Err: err}
	}
	if failure != nil {
		return failure.Err(c.program)
	}
	return nil
}

// Close removes the cgroup of the child, if any.
func (c *Child) Close() error {
	if c.cgroup == nil {
		return nil
	}
	return c.cgroup.Delete()
}
