package utilitycmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lcpu-club/hpccontainer/common/consts"
	"github.com/lcpu-club/hpccontainer/common/runner"
	"github.com/lcpu-club/hpccontainer/container/configure"
	"github.com/lcpu-club/hpccontainer/coordinator"
	"github.com/satori/uuid"
	"github.com/urfave/cli/v3"
	"golang.org/x/sys/unix"
)

type Command struct {
	configure  *configure.Configure
	binaryName string
	table      coordinator.ProcessTable
	out        io.Writer
}

func NewCommand() *Command {
	cmd := new(Command)
	cmd.out = os.Stdout
	return cmd
}

func (c *Command) Init(conf *configure.Configure) error {
	c.configure = conf
	c.binaryName = conf.BinaryName
	if c.binaryName == "" {
		c.binaryName = consts.DefaultBinaryName
	}
	table, err := coordinator.NewProcTable(conf.ProcPath)
	if err != nil {
		return err
	}
	c.table = table
	return nil
}

func ErrWrongArgumentNumber(command string, expected string) error {
	return fmt.Errorf(
		"wrong argument number for %v, expected %v\r\n   (use \"%v help %v\" for help)",
		command, expected, os.Args[0], command,
	)
}

func (c *Command) containers() ([]coordinator.Container, error) {
	snapshots, err := c.table.Snapshot(context.Background())
	if err != nil {
		return nil, err
	}
	return coordinator.FindContainers(snapshots, c.binaryName), nil
}

func (c *Command) HandlePs(ctx *cli.Context) error {
	if ctx.Args().Len() != 0 {
		return ErrWrongArgumentNumber(ctx.Command.Name, "0")
	}
	return c.ListContainers(ctx.String("job"))
}

// ListContainers prints the running containers. When jobID is set, each one
// is classified the way a container of that job would see it.
func (c *Command) ListContainers(jobID string) error {
	containers, err := c.containers()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%-8v %-32v %-10v %v\n", "PID", "JOB", "CLASS", "COMMAND")
	for _, ct := range containers {
		class := "-"
		if jobID != "" {
			class = coordinator.Classify(ct.CommandLine, c.binaryName, jobID).String()
		}
		fmt.Fprintf(c.out, "%-8v %-32v %-10v %v\n", ct.PID, ct.JobID, class, strings.Join(ct.CommandLine, " "))
	}
	return nil
}

func (c *Command) HandleKillJob(ctx *cli.Context) error {
	if ctx.Args().Len() != 1 {
		return ErrWrongArgumentNumber(ctx.Command.Name, "1")
	}
	sigName := ctx.String("signal")
	if sigName == "" {
		sigName = c.configure.KillSignal
	}
	_, err := c.KillJob(ctx.Args().Get(0), sigName)
	return err
}

// KillJob signals every container of jobID and returns how many were
// signalled.
func (c *Command) KillJob(jobID string, sigName string) (int, error) {
	sig, err := coordinator.ParseSignal(sigName)
	if err != nil {
		return 0, err
	}
	containers, err := c.containers()
	if err != nil {
		return 0, err
	}
	killed := 0
	for _, ct := range containers {
		if ct.JobID != jobID {
			continue
		}
		err := c.table.Kill(ct.PID, sig)
		if errors.Is(err, unix.ESRCH) {
			continue
		}
		if err != nil {
			return killed, &coordinator.KillFailedError{PID: ct.PID, Err: err}
		}
		fmt.Fprintf(c.out, "Killed container %v of job %v\n", ct.PID, jobID)
		killed++
	}
	if killed == 0 {
		fmt.Fprintf(c.out, "No container of job %v is running\n", jobID)
	}
	return killed, nil
}

// JobIDLayout orders job ids by creation time when compared bytewise.
const JobIDLayout = "20060102T150405.000000000"

func NewJobID(now time.Time) string {
	return now.UTC().Format(JobIDLayout) + "-" + uuid.NewV4().String()
}

func (c *Command) HandleGenJobID(ctx *cli.Context) error {
	if ctx.Args().Len() != 0 {
		return ErrWrongArgumentNumber(ctx.Command.Name, "0")
	}
	fmt.Fprintln(c.out, NewJobID(time.Now()))
	return nil
}

func (c *Command) HandleRace(ctx *cli.Context) error {
	if ctx.Args().Len() < 2 {
		return ErrWrongArgumentNumber(ctx.Command.Name, "at least 2")
	}
	n, err := strconv.Atoi(ctx.Args().Get(0))
	if err != nil || n < 1 {
		return fmt.Errorf("invalid number of copies: %v", ctx.Args().Get(0))
	}
	statuses, err := c.Race(n, ctx.Args().Tail())
	if err != nil {
		return err
	}
	for i, status := range statuses {
		fmt.Fprintf(c.out, "copy %v: exit status %v\n", i, status)
	}
	return nil
}

// Race starts n copies of argv at the same instant and waits for all of
// them. It returns their exit statuses in launch order.
func (c *Command) Race(n int, argv []string) ([]int, error) {
	wg := &sync.WaitGroup{}
	start := make(chan struct{})
	statuses := make([]int, n)
	errs := make([]error, n)
	out := &lockedWriter{w: c.out}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cmd := exec.Command(argv[0], argv[1:]...)
			cmd.Stdout = out
			cmd.Stderr = os.Stderr
			<-start
			err := cmd.Run()
			var exitErr *exec.ExitError
			if err != nil && !errors.As(err, &exitErr) {
				errs[i] = err
				return
			}
			statuses[i], _ = runner.ExitStatus(cmd.ProcessState)
		}(i)
	}
	close(start)
	wg.Wait()
	return statuses, errors.Join(errs...)
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
