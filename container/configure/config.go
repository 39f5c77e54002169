package configure

import (
	"time"
)

type Configure struct {
	// BinaryName is matched as a suffix of every process's argv[0] to find
	// peers. Empty means the base name of this program's argv[0].
	BinaryName          string                 `yaml:"binary-name" toml:"binary-name"`
	StartleDelay        *Duration              `yaml:"startle-delay" toml:"startle-delay"`
	ProcPath            string                 `yaml:"proc-path" toml:"proc-path"`
	KillSignal          string                 `yaml:"kill-signal" toml:"kill-signal"`
	KillConfirmTimeout  Duration               `yaml:"kill-confirm-timeout" toml:"kill-confirm-timeout"`
	KillConfirmInterval Duration               `yaml:"kill-confirm-interval" toml:"kill-confirm-interval"`
	LogLevel            string                 `yaml:"log-level" toml:"log-level"`
	RunAsUser           string                 `yaml:"run-as-user" toml:"run-as-user"`
	Coordination        *CoordinationConfigure `yaml:"coordination" toml:"coordination"`
	Cgroup              *CgroupConfigure       `yaml:"cgroup" toml:"cgroup"`
	Report              *ReportConfigure       `yaml:"report" toml:"report"`
}

type CoordinationConfigure struct {
	Backend     string          `yaml:"backend" toml:"backend"`
	LockFile    string          `yaml:"lock-file" toml:"lock-file"`
	LockTimeout Duration        `yaml:"lock-timeout" toml:"lock-timeout"`
	Redis       *RedisConfigure `yaml:"redis" toml:"redis"`
}

type RedisConfigure struct {
	Address       string   `yaml:"address" toml:"address"`
	Password      string   `yaml:"password" toml:"password"`
	Database      int      `yaml:"database" toml:"database"`
	KeyPrefix     string   `yaml:"key-prefix" toml:"key-prefix"`
	LockTTL       Duration `yaml:"lock-ttl" toml:"lock-ttl"`
	RetryInterval Duration `yaml:"retry-interval" toml:"retry-interval"`
	KeepAlive     Duration `yaml:"keep-alive" toml:"keep-alive"`
}

type CgroupConfigure struct {
	Enabled    bool   `yaml:"enabled" toml:"enabled"`
	BasePath   string `yaml:"base-path" toml:"base-path"`
	Mountpoint string `yaml:"mountpoint" toml:"mountpoint"`
}

type ReportConfigure struct {
	MinIO *MinIOConfigure `yaml:"minio" toml:"minio"`
	Nsq   *NsqConfigure   `yaml:"nsq" toml:"nsq"`
}

type MinIOConfigure struct {
	Endpoint    string                     `yaml:"endpoint" toml:"endpoint"`
	Credentials *MinIOCredentialsConfigure `yaml:"credentials" toml:"credentials"`
	SSL         bool                       `yaml:"ssl" toml:"ssl"`
	Bucket      string                     `yaml:"bucket" toml:"bucket"`
	Timeout     Duration                   `yaml:"timeout" toml:"timeout"`
}

type MinIOCredentialsConfigure struct {
	AccessKey string `yaml:"access-key" toml:"access-key"`
	SecretKey string `yaml:"secret-key" toml:"secret-key"`
}

type NsqConfigure struct {
	Address    string `yaml:"address" toml:"address"`
	Topic      string `yaml:"topic" toml:"topic"`
	AuthSecret string `yaml:"auth-secret" toml:"auth-secret"`
}

// Duration is a time.Duration written as "3s" or "250ms" in configure files.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}
