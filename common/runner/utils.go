package runner

import (
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"syscall"
)

// CommandUseUser makes cmd run with the credentials of username. HOME and USER
// are overridden; the rest of the environment is kept as it is.
func CommandUseUser(cmd *exec.Cmd, username string) (*exec.Cmd, error) {
	u, err := user.Lookup(username)
	if err != nil {
		return nil, err
	}
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return nil, err
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return nil, err
	}
	if cmd.SysProcAttr.Credential == nil {
		cmd.SysProcAttr.Credential = &syscall.Credential{
			Uid: uint32(uid),
			Gid: uint32(gid),
		}
	}
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	cmd.Env = append(cmd.Env, []string{
		"HOME=" + u.HomeDir,
		"USER=" + u.Username,
	}...)
	return cmd, nil
}

// ExitStatus converts a finished process state into a shell style exit
// status: the exit code for a normal exit, 128+signal when it was killed.
// The second value names the signal, if any.
func ExitStatus(state *os.ProcessState) (int, string) {
	if state == nil {
		return -1, ""
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal()), ws.Signal().String()
	}
	return state.ExitCode(), ""
}

func GetCurrentUsername() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	return u.Username, nil
}
