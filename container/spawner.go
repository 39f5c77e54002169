package container

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/containerd/cgroups/v3"
	"github.com/containerd/cgroups/v3/cgroup1"
	"github.com/containerd/cgroups/v3/cgroup2"
	"github.com/lcpu-club/hpccontainer/container/configure"
	"github.com/lcpu-club/hpccontainer/container/models"
	"github.com/opencontainers/runtime-spec/specs-go"
)

var ErrCgroupsNotAvailable = fmt.Errorf("cgroups not available")

// Cgroup is a control group a single child is placed in.
type Cgroup interface {
	Path() string
	AddProc(pid int) error
	Delete() error
}

// Spawner creates one cgroup per container below a common base path.
type Spawner struct {
	cgroupBasePath string
	mountpoint     string
	mode           cgroups.CGMode
}

func NewSpawner(conf *configure.CgroupConfigure) *Spawner {
	return &Spawner{
		cgroupBasePath: conf.BasePath,
		mountpoint:     conf.Mountpoint,
	}
}

func (s *Spawner) Init() error {
	s.mode = cgroups.Mode()
	if s.mode == cgroups.Unavailable {
		return ErrCgroupsNotAvailable
	}
	return nil
}

func (s *Spawner) calcCgroupPath(sub string) string {
	sb := []byte(sub)
	haystack := []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ1234567890-_.")
	for i := range sb {
		if !bytes.Contains(haystack, []byte{sb[i]}) {
			sb[i] = '-'
		}
	}
	return filepath.Join(s.cgroupBasePath, string(sb))
}

// NewCgroup creates the cgroup of a container. Its memory limit follows the
// virtual memory limit of the invocation.
func (s *Spawner) NewCgroup(name string, inv *models.Invocation) (Cgroup, error) {
	path := s.calcCgroupPath(name)
	var mem *int64
	if inv.MaxVirtualMemoryGB != models.Unlimited {
		limit := inv.MaxVirtualMemoryGB << 30
		mem = &limit
	}
	if s.mode == cgroups.Unified {
		resources := &cgroup2.Resources{}
		if mem != nil {
			resources.Memory = &cgroup2.Memory{Max: mem}
		}
		m, err := cgroup2.NewManager(s.mountpoint, path, resources)
		if err != nil {
			return nil, &CgroupError{Path: path, Err: err}
		}
		return &cgroup2Group{path: path, manager: m}, nil
	}
	resources := &specs.LinuxResources{}
	if mem != nil {
		resources.Memory = &specs.LinuxMemory{Limit: mem}
	}
	cg, err := cgroup1.New(cgroup1.StaticPath(path), resources)
	if err != nil {
		return nil, &CgroupError{Path: path, Err: err}
	}
	return &cgroup1Group{path: path, cgroup: cg}, nil
}

type cgroup1Group struct {
	path   string
	cgroup cgroup1.Cgroup
}

func (g *cgroup1Group) Path() string {
	return g.path
}

func (g *cgroup1Group) AddProc(pid int) error {
	return g.cgroup.AddProc(uint64(pid))
}

func (g *cgroup1Group) Delete() error {
	return g.cgroup.Delete()
}

type cgroup2Group struct {
	path    string
	manager *cgroup2.Manager
}

func (g *cgroup2Group) Path() string {
	return g.path
}

func (g *cgroup2Group) AddProc(pid int) error {
	return g.manager.AddProc(uint64(pid))
}

func (g *cgroup2Group) Delete() error {
	return g.manager.Delete()
}
