package container

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/lcpu-club/hpccontainer/common/consts"
	"github.com/lcpu-club/hpccontainer/container/models"
	"golang.org/x/sys/unix"
)

// File descriptors of the init process, in the order of exec.Cmd.ExtraFiles.
// The container writes one byte to the start pipe once the child may run.
// The init process answers on the status pipe: nothing when the exec
// succeeded, an initFailure otherwise.
const (
	initStatusFd = 3
	initStartFd  = 4
)

const (
	initStageInit  = "init"
	initStageLimit = "limit"
	initStageExec  = "exec"
)

type initFailure struct {
	Stage    string `json:"stage"`
	Resource string `json:"resource,omitempty"`
	Op       string `json:"op,omitempty"`
	Errno    int    `json:"errno,omitempty"`
	Message  string `json:"message"`
}

// IsInitProcess reports whether this process was started by a container to
// become its program.
func IsInitProcess() bool {
	_, ok := os.LookupEnv(consts.InitEnvVar)
	return ok && len(os.Args) > 0 && os.Args[0] == consts.InitProcessName
}

// InitMain sets the limits of this process and execs the program. It only
// returns control to the container through the status pipe.
func InitMain() {
	status := os.NewFile(initStatusFd, "init-status")
	start := os.NewFile(initStartFd, "init-start")
	failure := newInitFailure(execProgram(start, os.Args[1:], os.Environ()))
	if err := json.NewEncoder(status).Encode(failure); err != nil {
		fmt.Fprintf(os.Stderr, "%v: %v\n", consts.InitProcessName, err)
	}
	os.Exit(consts.ExitInternalFailure)
}

// execProgram only returns on failure.
func execProgram(start *os.File, argv []string, env []string) error {
	buf := make([]byte, 1)
	_, err := io.ReadFull(start, buf)
	start.Close()
	if err != nil {
		return fmt.Errorf("container went away: %w", err)
	}
	inv, env, err := takeInitEnv(env)
	if err != nil {
		return err
	}
	if len(argv) == 0 {
		return fmt.Errorf("no program given")
	}
	if err := ApplyLimits(SystemLimiter{}, inv); err != nil {
		return err
	}
	unix.CloseOnExec(initStatusFd)
	err = unix.Exec(argv[0], argv, env)
	return &ExecFailedError{Program: argv[0], Err: err}
}

func initEnv(inv *models.Invocation) string {
	return fmt.Sprintf("%v=%d:%d", consts.InitEnvVar, inv.MaxVirtualMemoryGB, inv.MaxCPUSeconds)
}

// takeInitEnv reads the limits passed by the container and removes them
// from env, which is otherwise handed to the program unchanged.
func takeInitEnv(env []string) (*models.Invocation, []string, error) {
	prefix := consts.InitEnvVar + "="
	rest := make([]string, 0, len(env))
	value := ""
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			value = kv[len(prefix):]
			continue
		}
		rest = append(rest, kv)
	}
	vm, cpu, ok := strings.Cut(value, ":")
	if !ok {
		return nil, nil, fmt.Errorf("malformed %v: %q", consts.InitEnvVar, value)
	}
	inv := &models.Invocation{}
	var err error
	if inv.MaxVirtualMemoryGB, err = strconv.ParseInt(vm, 10, 64); err != nil {
		return nil, nil, fmt.Errorf("malformed %v: %w", consts.InitEnvVar, err)
	}
	if inv.MaxCPUSeconds, err = strconv.ParseInt(cpu, 10, 64); err != nil {
		return nil, nil, fmt.Errorf("malformed %v: %w", consts.InitEnvVar, err)
	}
	return inv, rest, nil
}

func newInitFailure(err error) *initFailure {
	f := &initFailure{Stage: initStageInit, Message: err.Error()}
	var limitErr *LimitSetError
	var execErr *ExecFailedError
	switch {
	case errors.As(err, &limitErr):
		f.Stage, f.Resource, f.Op = initStageLimit, limitErr.Resource, limitErr.Op
	case errors.As(err, &execErr):
		f.Stage = initStageExec
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		f.Errno = int(errno)
	}
	return f
}

// Err rebuilds the error of the init process on the container side.
func (f *initFailure) Err(program string) error {
	cause := errors.New(f.Message)
	if f.Errno != 0 {
		cause = syscall.Errno(f.Errno)
	}
	switch f.Stage {
	case initStageLimit:
		return &LimitSetError{Resource: f.Resource, Op: f.Op, Err: cause}
	case initStageExec:
		return &ExecFailedError{Program: program, Err: &fs.PathError{Op: "exec", Path: program, Err: cause}}
	}
	return &ExecFailedError{Program: program, Err: fmt.Errorf("%v: %v", consts.InitProcessName, f.Message)}
}

// readInitFailure blocks until the init process has exec'd the program or
// given up. A nil failure means the program is running.
func readInitFailure(r io.Reader) (*initFailure, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	f := &initFailure{}
	if err := json.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("malformed status of %v %q: %w", consts.InitProcessName, data, err)
	}
	return f, nil
}
