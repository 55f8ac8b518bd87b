package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the whole application configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Transfer  TransferConfig  `yaml:"transfer"`
	Redis     RedisConfig     `yaml:"redis"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"ssl_mode"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
}

// TransferConfig holds the ASP gateway settings. Mode selects the
// transport: "sftp" for the real gateway, "local" for a directory on disk.
type TransferConfig struct {
	Mode string `yaml:"mode"`

	SFTP struct {
		Host           string `yaml:"host"`
		Port           int    `yaml:"port"`
		User           string `yaml:"user"`
		Password       string `yaml:"password"`
		PrivateKeyPath string `yaml:"private_key_path"`
		KnownHostsPath string `yaml:"known_hosts_path"`
	} `yaml:"sftp"`

	// LocalDir backs the "local" mode; the upload and feedback directories
	// are created under it.
	LocalDir string `yaml:"local_dir"`

	UploadDir   string `yaml:"upload_dir"`
	FeedbackDir string `yaml:"feedback_dir"`
}

// RedisConfig holds the event publishing settings. Publishing is disabled
// when Addr is empty.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// SchedulerConfig holds the cron expressions of the periodic cycles.
type SchedulerConfig struct {
	UploadSpec   string `yaml:"upload_spec"`
	DownloadSpec string `yaml:"download_spec"`
	UpdatesSpec  string `yaml:"updates_spec"`
	ArchiveSpec  string `yaml:"archive_spec"`
}

// LoggingConfig holds the logrus settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the configuration file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validateAndNormalize() error {
	if err := c.Database.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Transfer.validateAndNormalize(); err != nil {
		return err
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	return nil
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	lifetime, err := parseDurationAllowEmpty(d.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationAllowEmpty(d.ConnMaxIdleTimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	return nil
}

func (t *TransferConfig) validateAndNormalize() error {
	switch t.Mode {
	case "":
		t.Mode = "local"
	case "local", "sftp":
	default:
		return fmt.Errorf("config: transfer.mode must be \"local\" or \"sftp\", got %q", t.Mode)
	}

	if t.UploadDir == "" {
		t.UploadDir = "depot"
	}
	if t.FeedbackDir == "" {
		t.FeedbackDir = "retrait"
	}

	if t.Mode == "sftp" {
		s := &t.SFTP
		if s.Host == "" {
			return fmt.Errorf("config: transfer.sftp.host must be set")
		}
		if s.Port == 0 {
			s.Port = 22
		}
		if s.User == "" {
			return fmt.Errorf("config: transfer.sftp.user must be set")
		}
		if s.Password == "" && s.PrivateKeyPath == "" {
			return fmt.Errorf("config: transfer.sftp requires a password or a private key")
		}
	}
	if t.Mode == "local" && t.LocalDir == "" {
		return fmt.Errorf("config: transfer.local_dir must be set in local mode")
	}

	return nil
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

// DSN returns the pgx connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}
