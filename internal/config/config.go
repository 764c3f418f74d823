// Package config loads tabledb's settings: built-in defaults, then an
// optional YAML file, then command-line overrides applied by main.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tabledb/internal/domain"
	"tabledb/internal/etl"
)

// EnvConfigPath names the YAML file to load when -config is not given.
const EnvConfigPath = "TABLEDB_CONFIG"

// Storage backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Secret providers for external connection passwords.
const (
	SecretsEnv      = "env"
	SecretsKeychain = "keychain"
)

type Config struct {
	Addr      string `yaml:"addr"`
	DataDir   string `yaml:"data_dir"`
	Backend   string `yaml:"backend"`
	StaticDir string `yaml:"static_dir"`

	Backup  BackupConfig  `yaml:"backup"`
	Imports ImportsConfig `yaml:"imports"`

	Connections []domain.ExternalConnection `yaml:"connections"`
	Secrets     string                      `yaml:"secrets"`
}

type BackupConfig struct {
	Dir      string `yaml:"dir"`
	Schedule string `yaml:"schedule"` // cron expression; empty disables scheduled backups
	Keep     int    `yaml:"keep"`
}

type ImportsConfig struct {
	Jobs []etl.Job `yaml:"jobs"`
	// Debounce for file_watch triggers, e.g. "500ms".
	WatchDebounce string `yaml:"watch_debounce"`
	RunTimeout    string `yaml:"run_timeout"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Addr:      "127.0.0.1:5000",
		DataDir:   defaultDataDir(),
		Backend:   BackendJSON,
		StaticDir: "static",
		Backup:    BackupConfig{Keep: 10},
		Imports:   ImportsConfig{WatchDebounce: "500ms", RunTimeout: "5m"},
		Secrets:   SecretsEnv,
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "databases"
	}
	return filepath.Join(home, ".local", "share", "tabledb")
}

// Load reads path over the defaults. An empty path falls back to
// $TABLEDB_CONFIG; if that is unset too, the defaults are returned as is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail late at startup.
func (c *Config) Validate() error {
	c.DataDir = expandHome(c.DataDir)
	c.Backup.Dir = expandHome(c.Backup.Dir)

	switch c.Backend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("unknown backend %q (want json or sqlite)", c.Backend)
	}
	switch c.Secrets {
	case "", SecretsEnv, SecretsKeychain:
	default:
		return fmt.Errorf("unknown secrets provider %q", c.Secrets)
	}

	if _, err := c.Imports.Debounce(); err != nil {
		return err
	}
	if _, err := c.Imports.Timeout(); err != nil {
		return err
	}

	seen := make(map[string]bool)
	for i := range c.Imports.Jobs {
		j := &c.Imports.Jobs[i]
		if j.ID == "" {
			return fmt.Errorf("import job %d has no id", i)
		}
		if seen[j.ID] {
			return fmt.Errorf("duplicate import job id %q", j.ID)
		}
		seen[j.ID] = true
		if j.Trigger == "" {
			j.Trigger = etl.TriggerManual
		}
		if err := j.Validate(); err != nil {
			return err
		}
	}

	names := make(map[string]bool)
	for _, conn := range c.Connections {
		if conn.Name == "" {
			return fmt.Errorf("connection without a name")
		}
		if names[conn.Name] {
			return fmt.Errorf("duplicate connection %q", conn.Name)
		}
		names[conn.Name] = true
	}
	return nil
}

// Debounce parses WatchDebounce. Empty means the service default.
func (c ImportsConfig) Debounce() (time.Duration, error) {
	return parseDuration("imports.watch_debounce", c.WatchDebounce)
}

// Timeout parses RunTimeout. Empty means the service default.
func (c ImportsConfig) Timeout() (time.Duration, error) {
	return parseDuration("imports.run_timeout", c.RunTimeout)
}

func parseDuration(key, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

// BackupDir is Backup.Dir, or <data dir>/backups when unset.
func (c *Config) BackupDir() string {
	if c.Backup.Dir != "" {
		return c.Backup.Dir
	}
	return filepath.Join(c.DataDir, "backups")
}

// Job returns the configured import job with the given id.
func (c *Config) Job(id string) (*etl.Job, bool) {
	for i := range c.Imports.Jobs {
		if c.Imports.Jobs[i].ID == id {
			return &c.Imports.Jobs[i], true
		}
	}
	return nil, false
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
