package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sealdoc/sealdoc/internal/ratelimit"
)

type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Database  DatabaseConfig   `yaml:"database"`
	Storage   StorageConfig    `yaml:"storage"`
	Queue     QueueConfig      `yaml:"queue"`
	Acquire   AcquireConfig    `yaml:"acquire"`
	Webhooks  WebhookConfig    `yaml:"webhooks"`
	RateLimit ratelimit.Config `yaml:"rate_limit"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	Logging   LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	ListenAddr string    `yaml:"listen_addr"`
	TLS        TLSConfig `yaml:"tls"`
}

type TLSConfig struct {
	Enabled  bool       `yaml:"enabled"`
	CertFile string     `yaml:"cert_file"`
	KeyFile  string     `yaml:"key_file"`
	ACME     ACMEConfig `yaml:"acme"`
}

// ACMEConfig enables automatic certificates instead of cert_file/key_file.
type ACMEConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Email    string   `yaml:"email"`
	Domains  []string `yaml:"domains"`
	CacheDir string   `yaml:"cache_dir"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type StorageConfig struct {
	// Dir is the root of the blob store; attachment bytes are written
	// under it keyed by attachment uuid.
	Dir string `yaml:"dir"`
}

type QueueConfig struct {
	Path string `yaml:"path"`
}

type AcquireConfig struct {
	// MaxBytes caps the size of a remote download (0 = unlimited).
	MaxBytes int64         `yaml:"max_bytes"`
	Timeout  time.Duration `yaml:"timeout"`
}

type WebhookConfig struct {
	// FireOnCreate controls whether template.created events are emitted.
	// template.updated events are always emitted.
	FireOnCreate  bool          `yaml:"fire_on_create"`
	Workers       int           `yaml:"workers"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Timeout       time.Duration `yaml:"timeout"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	SetDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func SetDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "/var/lib/sealdoc/app.db"
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "/var/lib/sealdoc/blobs"
	}
	if cfg.Queue.Path == "" {
		cfg.Queue.Path = "/var/lib/sealdoc/queue.db"
	}
	if cfg.Acquire.MaxBytes == 0 {
		cfg.Acquire.MaxBytes = 50 << 20 // 50 MiB
	}
	if cfg.Acquire.Timeout == 0 {
		cfg.Acquire.Timeout = 30 * time.Second
	}
	if cfg.Webhooks.Workers == 0 {
		cfg.Webhooks.Workers = 4
	}
	if cfg.Webhooks.MaxRetries == 0 {
		cfg.Webhooks.MaxRetries = 5
	}
	if cfg.Webhooks.RetryInterval == 0 {
		cfg.Webhooks.RetryInterval = time.Minute
	}
	if cfg.Webhooks.Timeout == 0 {
		cfg.Webhooks.Timeout = 15 * time.Second
	}
	if cfg.RateLimit.Path == "" {
		cfg.RateLimit.Path = "/var/lib/sealdoc/ratelimit.db"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	if cfg.Server.TLS.Enabled && !cfg.Server.TLS.ACME.Enabled {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			return fmt.Errorf("server.tls.cert_file and server.tls.key_file are required when TLS is enabled")
		}
	}
	if cfg.Server.TLS.ACME.Enabled {
		if len(cfg.Server.TLS.ACME.Domains) == 0 {
			return fmt.Errorf("server.tls.acme.domains is required when ACME is enabled")
		}
		if cfg.Server.TLS.ACME.CacheDir == "" {
			return fmt.Errorf("server.tls.acme.cache_dir is required when ACME is enabled")
		}
	}
	if cfg.Acquire.MaxBytes < 0 {
		return fmt.Errorf("acquire.max_bytes must not be negative")
	}
	if cfg.Webhooks.Workers < 0 {
		return fmt.Errorf("webhooks.workers must not be negative")
	}
	return nil
}
