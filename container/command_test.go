package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"

	"github.com/lcpu-club/hpccontainer/common/logging"
	"github.com/lcpu-club/hpccontainer/container/configure"
	"github.com/lcpu-club/hpccontainer/container/models"
	"github.com/lcpu-club/hpccontainer/coordinator"
	"github.com/lcpu-club/hpccontainer/report"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type recordingReporter struct {
	reports []*models.RunReport
	closed  bool
}

func (r *recordingReporter) Name() string {
	return "recording"
}

func (r *recordingReporter) Report(ctx context.Context, rep *models.RunReport) error {
	r.reports = append(r.reports, rep)
	return nil
}

func (r *recordingReporter) Close() error {
	r.closed = true
	return nil
}

type testCommand struct {
	*Command
	procRoot string
	stdout   *bytes.Buffer
	stderr   *bytes.Buffer
	program  *bytes.Buffer
	reporter *recordingReporter
}

func newTestCommand(t *testing.T) *testCommand {
	t.Helper()
	tc := &testCommand{
		procRoot: t.TempDir(),
		stdout:   &bytes.Buffer{},
		stderr:   &bytes.Buffer{},
		program:  &bytes.Buffer{},
		reporter: &recordingReporter{},
	}
	conf := configure.Default()
	zero := configure.Duration(0)
	conf.StartleDelay = &zero
	conf.ProcPath = tc.procRoot

	logger, err := logging.NewLogger(tc.stdout, tc.stderr, "")
	require.NoError(t, err)
	tc.Command = NewCommand(logger)
	require.NoError(t, tc.Init(conf, "/usr/local/bin/hpc-container"))
	tc.reporters = []report.Reporter{tc.reporter}
	tc.supervisor.Stdin = strings.NewReader("")
	tc.supervisor.Stdout = tc.program
	tc.supervisor.Stderr = io.Discard
	return tc
}

func (tc *testCommand) addProcess(t *testing.T, pid int, argv ...string) {
	t.Helper()
	dir := filepath.Join(tc.procRoot, fmt.Sprint(pid))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	cmdline := strings.Join(argv, "\x00") + "\x00"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cmdline"), []byte(cmdline), 0o644))
}

func (tc *testCommand) lastReport(t *testing.T) *models.RunReport {
	t.Helper()
	require.NotEmpty(t, tc.reporter.reports)
	return tc.reporter.reports[len(tc.reporter.reports)-1]
}

func TestCommandRunsProgram(t *testing.T) {
	tc := newTestCommand(t)
	tc.addProcess(t, os.Getpid(), "/usr/local/bin/hpc-container", "-1", "-1", "1", "job-5", "/bin/sh")
	tc.addProcess(t, 1, "/sbin/init")

	status, err := tc.Run(context.Background(), []string{
		"hpc-container", "-1", "-1", "1", "job-5", "/bin/sh", "-c", "echo ran; exit 7",
	})
	require.NoError(t, err)
	assert.Equal(t, 7, status)
	assert.Equal(t, "ran\n", tc.program.String())
	assert.Contains(t, tc.stdout.String(), "Maximum virtual memory size is not limited")
	assert.Contains(t, tc.stdout.String(), "Executing: /bin/sh -c echo ran; exit 7")
	assert.Empty(t, tc.stderr.String())

	rep := tc.lastReport(t)
	assert.Equal(t, models.RunStatusExited, rep.Status)
	assert.Equal(t, 7, rep.ExitCode)
	assert.Equal(t, "job-5", rep.JobID)
	assert.Equal(t, 1, rep.SameJobRunning)
	assert.Equal(t, os.Getpid(), rep.ContainerPID)
	assert.NotZero(t, rep.ChildPID)
	assert.True(t, tc.reporter.closed)
}

func TestCommandAppliesLimits(t *testing.T) {
	tc := newTestCommand(t)
	status, err := tc.Run(context.Background(), []string{
		"hpc-container", "--record=v1", "--max-vm=2", "--max-time=60", "--max-procs=1", "--job-id=j", "--", "/bin/sh", "-c", "ulimit -v; ulimit -t",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, status)
	assert.Equal(t, "2097152\n60\n", tc.program.String())
	assert.Contains(t, tc.stdout.String(), "Virtual memory size limited to 2 GB (2.0 GiB)")
	assert.Contains(t, tc.stdout.String(), "Maximum CPU time limited to 60 seconds")
}

func TestCommandSurvivesSmallMemoryLimit(t *testing.T) {
	var before unix.Rlimit
	require.NoError(t, unix.Getrlimit(unix.RLIMIT_AS, &before))

	tc := newTestCommand(t)
	status, err := tc.Run(context.Background(), []string{
		"hpc-container", "1", "-1", "1", "job1", "/bin/sh", "-c", "exit 5",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, status)

	var after unix.Rlimit
	require.NoError(t, unix.Getrlimit(unix.RLIMIT_AS, &after))
	assert.Equal(t, before, after)
	rep := tc.lastReport(t)
	assert.Equal(t, models.RunStatusExited, rep.Status)
	assert.Equal(t, 5, rep.ExitCode)
}

func TestCommandLimitFailureDoesNotStartProgram(t *testing.T) {
	hard := lowerHardCPULimit(t)
	tc := newTestCommand(t)
	status, err := tc.Run(context.Background(), []string{
		"hpc-container", "-1", strconv.FormatUint(hard+1, 10), "1", "job-5", "/bin/sh", "-c", "echo ran",
	})
	var limitErr *LimitSetError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 2, status)
	assert.Empty(t, tc.program.String())
	assert.NotContains(t, tc.stdout.String(), "Executing:")

	rep := tc.lastReport(t)
	assert.Equal(t, models.RunStatusFailed, rep.Status)
	assert.Equal(t, 2, rep.ExitCode)
	assert.Equal(t, "could not set CPU limit: invalid argument", rep.Error)
}

func TestCommandSuperseded(t *testing.T) {
	tc := newTestCommand(t)
	tc.addProcess(t, 4242, "hpc-container", "-1", "-1", "1", "job-6", "/bin/sleep", "100")

	status, err := tc.Run(context.Background(), []string{
		"hpc-container", "-1", "-1", "1", "job-5", "/bin/sh", "-c", "echo ran",
	})
	assert.ErrorIs(t, err, coordinator.ErrSuperseded)
	assert.Equal(t, 2, status)
	assert.Empty(t, tc.program.String())
	assert.NotContains(t, tc.stdout.String(), "Executing:")
}

func TestCommandTooManyContainers(t *testing.T) {
	tc := newTestCommand(t)
	tc.addProcess(t, 4242, "hpc-container", "-1", "-1", "2", "job-5", "/bin/sleep", "100")
	tc.addProcess(t, 4243, "hpc-container", "-1", "-1", "2", "job-5", "/bin/sleep", "100")
	tc.addProcess(t, 4244, "hpc-container", "-1", "-1", "2", "job-5", "/bin/sleep", "100")

	status, err := tc.Run(context.Background(), []string{
		"hpc-container", "-1", "-1", "2", "job-5", "/bin/sh", "-c", "echo ran",
	})
	var tooMany *coordinator.TooManyContainersError
	require.ErrorAs(t, err, &tooMany)
	assert.Equal(t, 2, status)
	assert.Empty(t, tc.program.String())
	assert.Equal(t, 3, tc.lastReport(t).SameJobRunning)
}

func TestCommandKillsOlderJob(t *testing.T) {
	tc := newTestCommand(t)
	older := exec.Command("/bin/sleep", "30")
	require.NoError(t, older.Start())
	tc.addProcess(t, older.Process.Pid, "hpc-container", "-1", "-1", "1", "job-1", "/bin/sleep", "30")

	status, err := tc.Run(context.Background(), []string{
		"hpc-container", "-1", "-1", "1", "job-5", "/bin/sh", "-c", "exit 0",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, status)

	err = older.Wait()
	require.Error(t, err)
	ws := older.ProcessState.Sys().(syscall.WaitStatus)
	assert.True(t, ws.Signaled())
	assert.Equal(t, syscall.SIGKILL, ws.Signal())
	assert.Equal(t, []int{older.Process.Pid}, tc.lastReport(t).KilledPeers)
}

func TestCommandUsage(t *testing.T) {
	tc := newTestCommand(t)
	status, err := tc.Run(context.Background(), []string{"hpc-container", "1"})
	assert.ErrorIs(t, err, ErrUsage)
	assert.Equal(t, 2, status)
	assert.Empty(t, tc.reporter.reports)
}

func TestMainReportsUsageBeforeInit(t *testing.T) {
	conf := configure.Default()
	conf.ProcPath = filepath.Join(t.TempDir(), "missing")
	conf.Cgroup.Enabled = true
	conf.Cgroup.Mountpoint = filepath.Join(t.TempDir(), "no-cgroup")

	for _, args := range [][]string{
		{"hpc-container", "1"},
		{"hpc-container", "0", "-1", "1", "job-5", "/bin/true"},
		{"hpc-container", "--record=v2", "--", "/bin/true"},
	} {
		status, err := Main(context.Background(), testLogger(t), conf, args)
		assert.Equal(t, 2, status, args)
		var cgroupErr *CgroupError
		assert.False(t, errors.As(err, &cgroupErr), args)
		assert.NotErrorIs(t, err, fs.ErrNotExist, args)
	}

	status, err := Main(context.Background(), testLogger(t), conf, []string{"hpc-container", "1"})
	assert.Equal(t, 2, status)
	assert.ErrorIs(t, err, ErrUsage)
}

func TestMainFailsInitAfterValidCommandLine(t *testing.T) {
	conf := configure.Default()
	conf.ProcPath = filepath.Join(t.TempDir(), "missing")
	status, err := Main(context.Background(), testLogger(t), conf, []string{
		"hpc-container", "-1", "-1", "1", "job-5", "/bin/true",
	})
	assert.Equal(t, 2, status)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUsage)
}

func testLogger(t *testing.T) *logrus.Logger {
	t.Helper()
	logger, err := logging.NewLogger(io.Discard, io.Discard, "")
	require.NoError(t, err)
	return logger
}

func TestCommandExecFailure(t *testing.T) {
	tc := newTestCommand(t)
	status, err := tc.Run(context.Background(), []string{
		"hpc-container", "-1", "-1", "1", "job-5", "/nonexistent/program",
	})
	var execErr *ExecFailedError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 2, status)
	assert.Equal(t, models.RunStatusFailed, tc.lastReport(t).Status)
}

func TestBinaryName(t *testing.T) {
	conf := configure.Default()
	assert.Equal(t, "hpc-container", BinaryName(conf, "/usr/bin/hpc-container"))
	assert.Equal(t, "my-container", BinaryName(conf, "./my-container"))
	assert.Equal(t, "hpc-container", BinaryName(conf, ""))
	conf.BinaryName = "troilkatt_container"
	assert.Equal(t, "troilkatt_container", BinaryName(conf, "/usr/bin/hpc-container"))
}
