package container

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/lcpu-club/hpccontainer/common/consts"
	"github.com/lcpu-club/hpccontainer/common/runner"
	"github.com/lcpu-club/hpccontainer/container/configure"
	"github.com/lcpu-club/hpccontainer/container/models"
	"github.com/lcpu-club/hpccontainer/coordinator"
	"github.com/lcpu-club/hpccontainer/report"
	"github.com/sirupsen/logrus"
)

type Command struct {
	configure   *configure.Configure
	logger      *logrus.Logger
	binaryName  string
	coordinator *coordinator.Coordinator
	supervisor  *Supervisor
	reporters   []report.Reporter
}

func NewCommand(logger *logrus.Logger) *Command {
	return &Command{
		logger: logger,
	}
}

// Main runs the container of args with conf. The command line is checked
// before anything on the host is opened, so a bad one always yields the
// usage error.
func Main(ctx context.Context, logger *logrus.Logger, conf *configure.Configure, args []string) (int, error) {
	inv, err := ParseInvocation(args)
	if err != nil {
		return ExitCode(err), err
	}
	cmd := NewCommand(logger)
	if err := cmd.Init(conf, args[0]); err != nil {
		return ExitCode(err), err
	}
	return cmd.Execute(ctx, inv)
}

// BinaryName is the name peers are recognised by: the configured one, or
// the base name of argv0.
func BinaryName(conf *configure.Configure, argv0 string) string {
	if conf.BinaryName != "" {
		return conf.BinaryName
	}
	name := filepath.Base(argv0)
	if name == "." || name == string(filepath.Separator) {
		return consts.DefaultBinaryName
	}
	return name
}

func (c *Command) Init(conf *configure.Configure, argv0 string) error {
	c.configure = conf
	c.binaryName = BinaryName(conf, argv0)
	table, err := coordinator.NewProcTable(conf.ProcPath)
	if err != nil {
		return err
	}
	backend, err := coordinator.NewBackend(conf.Coordination)
	if err != nil {
		return err
	}
	c.coordinator, err = coordinator.NewCoordinator(conf, c.binaryName, table, backend, c.logger)
	if err != nil {
		return err
	}
	var spawner *Spawner
	if conf.Cgroup.Enabled {
		spawner = NewSpawner(conf.Cgroup)
		if err := spawner.Init(); err != nil {
			return &CgroupError{Path: conf.Cgroup.BasePath, Err: err}
		}
	}
	c.supervisor = NewSupervisor(c.logger, conf.RunAsUser, spawner)
	c.reporters, err = report.NewReporters(conf.Report, c.logger)
	if err != nil {
		c.logger.Warnf("Run reports disabled: %v", err)
		c.reporters = nil
	}
	return nil
}

func (c *Command) Run(ctx context.Context, args []string) (int, error) {
	inv, err := ParseInvocation(args)
	if err != nil {
		return ExitCode(err), err
	}
	return c.Execute(ctx, inv)
}

// Execute coordinates with the other containers and runs the program under
// the limits of inv. It returns the exit status of the program, or a
// failure of the container itself together with its exit status.
func (c *Command) Execute(ctx context.Context, inv *models.Invocation) (int, error) {
	rep := c.newReport(inv)
	status, err := c.run(ctx, inv, rep)
	rep.FinishedAt = time.Now()
	if err != nil {
		status = ExitCode(err)
		rep.Status = models.RunStatusFailed
		rep.Error = err.Error()
	} else {
		rep.Status = models.RunStatusExited
	}
	rep.ExitCode = status
	report.Publish(ctx, c.reporters, rep, c.logger)
	return status, err
}

func (c *Command) run(ctx context.Context, inv *models.Invocation, rep *models.RunReport) (int, error) {
	result, err := c.coordinator.Coordinate(ctx, inv)
	if result != nil {
		rep.SameJobRunning = result.SameJob
		rep.KilledPeers = result.Killed
	}
	if err != nil {
		return 0, err
	}
	child, err := c.supervisor.Prepare(inv)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := child.Close(); err != nil {
			c.logger.Warnf("Could not remove cgroup: %v", err)
		}
	}()
	exit, err := child.Run()
	if err != nil {
		return 0, err
	}
	rep.ChildPID = exit.PID
	rep.Signal = exit.Signal
	if exit.Signal != "" {
		c.logger.Infof("Program terminated by signal: %v", exit.Signal)
	}
	return exit.Status, nil
}

func (c *Command) newReport(inv *models.Invocation) *models.RunReport {
	host, _ := os.Hostname()
	user, _ := runner.GetCurrentUsername()
	return &models.RunReport{
		JobID:        inv.JobID,
		Host:         host,
		User:         user,
		ContainerPID: os.Getpid(),
		Program:      inv.ProgramPath,
		Args:         inv.ProgramArgs,
		StartedAt:    time.Now(),
	}
}
