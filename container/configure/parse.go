package configure

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lcpu-club/hpccontainer/common/consts"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v2"
)

const (
	BackendProcessTable = "process-table"
	BackendFlock        = "flock"
	BackendRedis        = "redis"
)

var ErrUnknownBackend = fmt.Errorf("unknown coordination backend")

// LoadConfigure reads a configure file. Files ending in .toml are decoded as
// TOML, anything else as YAML. Unset values are filled with defaults.
func LoadConfigure(path string) (*Configure, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := new(Configure)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(f, c)
	} else {
		err = yaml.Unmarshal(f, c)
	}
	if err != nil {
		return nil, fmt.Errorf("parse configure file %v: %w", path, err)
	}
	c.fillDefaults()
	return c, c.validate()
}

// Resolve locates the configure file of the container. A path given in the
// environment must exist; the default path may be absent, in which case the
// built-in defaults are used.
func Resolve() (*Configure, error) {
	if path := os.Getenv(consts.ConfigureEnvVar); path != "" {
		return LoadConfigure(path)
	}
	c, err := LoadConfigure(consts.ConfigureFilePath)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return c, err
}

// Default returns the configure used when no file is present.
func Default() *Configure {
	c := new(Configure)
	c.fillDefaults()
	return c
}

func (c *Configure) fillDefaults() {
	if c.StartleDelay == nil {
		d := Duration(3 * time.Second)
		c.StartleDelay = &d
	}
	if c.ProcPath == "" {
		c.ProcPath = consts.DefaultProcPath
	}
	if c.KillSignal == "" {
		c.KillSignal = "SIGKILL"
	}
	if c.KillConfirmInterval == 0 {
		c.KillConfirmInterval = Duration(100 * time.Millisecond)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Coordination == nil {
		c.Coordination = &CoordinationConfigure{}
	}
	if c.Coordination.Backend == "" {
		c.Coordination.Backend = BackendProcessTable
	}
	if c.Coordination.LockFile == "" {
		c.Coordination.LockFile = consts.DefaultLockFilePath
	}
	if c.Coordination.LockTimeout == 0 {
		c.Coordination.LockTimeout = Duration(30 * time.Second)
	}
	if r := c.Coordination.Redis; r != nil {
		if r.KeyPrefix == "" {
			host, _ := os.Hostname()
			r.KeyPrefix = "hpc-container:" + host + ":"
		}
		if r.LockTTL == 0 {
			r.LockTTL = Duration(30 * time.Second)
		}
		if r.RetryInterval == 0 {
			r.RetryInterval = Duration(100 * time.Millisecond)
		}
		if r.KeepAlive == 0 {
			r.KeepAlive = Duration(time.Minute)
		}
	}
	if c.Cgroup == nil {
		c.Cgroup = &CgroupConfigure{}
	}
	if c.Cgroup.BasePath == "" {
		c.Cgroup.BasePath = consts.DefaultCgroupBasePath
	}
	if c.Cgroup.Mountpoint == "" {
		c.Cgroup.Mountpoint = "/sys/fs/cgroup"
	}
	if c.Report == nil {
		c.Report = &ReportConfigure{}
	}
	if m := c.Report.MinIO; m != nil && m.Timeout == 0 {
		m.Timeout = Duration(30 * time.Second)
	}
}

func (c *Configure) validate() error {
	switch c.Coordination.Backend {
	case BackendProcessTable, BackendFlock:
	case BackendRedis:
		if c.Coordination.Redis == nil || c.Coordination.Redis.Address == "" {
			return fmt.Errorf("coordination backend %v requires redis.address", BackendRedis)
		}
	default:
		return fmt.Errorf("%w: %v", ErrUnknownBackend, c.Coordination.Backend)
	}
	if m := c.Report.MinIO; m != nil && (m.Endpoint == "" || m.Bucket == "") {
		return fmt.Errorf("report.minio requires endpoint and bucket")
	}
	if n := c.Report.Nsq; n != nil && (n.Address == "" || n.Topic == "") {
		return fmt.Errorf("report.nsq requires address and topic")
	}
	return nil
}
