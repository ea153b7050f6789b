package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the full rfpx service configuration.
type Config struct {
	Listen      string     `yaml:"listen"`
	DBPath      string     `yaml:"db_path"`
	TraceDBPath string     `yaml:"trace_db_path"` // empty disables SQL trace persistence
	BlobDir     string     `yaml:"blob_dir"`
	MaxFileMB   int        `yaml:"max_file_mb"`
	Workers     int        `yaml:"workers"`
	QueueDepth  int        `yaml:"queue_depth"`
	LogLevel    string     `yaml:"log_level"`
	Auth        AuthConfig `yaml:"auth"`

	// RateLimits maps path prefixes to a per-IP requests-per-minute cap.
	// Empty means no rate limiting.
	RateLimits map[string]int `yaml:"rate_limits"`
}

// AuthConfig is the reviewer auth stub: a single Basic Auth account with a
// bcrypt password hash. Disabled by default; requests then act as "system".
type AuthConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Username       string `yaml:"username"`
	PasswordBcrypt string `yaml:"password_bcrypt"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:     ":8080",
		DBPath:     "data/rfpx.db",
		BlobDir:    "data/blobs",
		MaxFileMB:  50,
		Workers:    2,
		QueueDepth: 64,
		LogLevel:   "info",
	}
}

// LoadConfig reads and parses a YAML config file, merged over DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.BlobDir == "" {
		return fmt.Errorf("blob_dir is required")
	}
	if c.MaxFileMB <= 0 {
		return fmt.Errorf("max_file_mb must be > 0")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0")
	}
	if c.Auth.Enabled {
		if c.Auth.Username == "" || c.Auth.PasswordBcrypt == "" {
			return fmt.Errorf("auth enabled: username and password_bcrypt are required")
		}
	}
	return nil
}

// MaxFileBytes returns the upload size limit in bytes.
func (c *Config) MaxFileBytes() int64 { return int64(c.MaxFileMB) * 1024 * 1024 }
