package coordinator

import (
	"context"
	"errors"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

// ProcessTable is the view of the operating system's processes the
// coordinator works on.
type ProcessTable interface {
	Snapshot(ctx context.Context) ([]ProcessSnapshot, error)
	Kill(pid int, sig unix.Signal) error
	Alive(pid int) bool
}

// ProcTable reads the process table from a procfs mount.
type ProcTable struct {
	fs procfs.FS
}

func NewProcTable(root string) (*ProcTable, error) {
	fs, err := procfs.NewFS(root)
	if err != nil {
		return nil, err
	}
	return &ProcTable{fs: fs}, nil
}

// Snapshot lists every process with its command line. Processes that exit
// while the table is being read are left out.
func (t *ProcTable) Snapshot(ctx context.Context) ([]ProcessSnapshot, error) {
	procs, err := t.fs.AllProcs()
	if err != nil {
		return nil, err
	}
	snapshots := make([]ProcessSnapshot, 0, len(procs))
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cmdline, err := p.CmdLine()
		if err != nil {
			continue
		}
		snapshots = append(snapshots, ProcessSnapshot{PID: p.PID, CommandLine: cmdline})
	}
	return snapshots, nil
}

func (t *ProcTable) Kill(pid int, sig unix.Signal) error {
	return unix.Kill(pid, sig)
}

// Alive reports whether pid still exists. Zombies are dead.
func (t *ProcTable) Alive(pid int) bool {
	if err := unix.Kill(pid, 0); errors.Is(err, unix.ESRCH) {
		return false
	}
	p, err := t.fs.Proc(pid)
	if err != nil {
		return true
	}
	stat, err := p.Stat()
	if err != nil {
		return true
	}
	return stat.State != "Z"
}
