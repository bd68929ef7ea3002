// rootd - user-space service supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rootd

// Package bootconfig loads the supervisor binary's own configuration: where
// its Daemon Set root lives, where its Control HTTP socket binds, and the
// restart-policy override knobs. This is distinct from internal/store's
// per-service Config Store (spec.md §4.1) — that one configures managed
// services; this one configures the rootd process itself.
package bootconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvRootDirectory is spec.md §6's root-directory selector.
const EnvRootDirectory = "FAULT_DAEMON_DIRECTORY"

// ConfigPathEnvVar overrides the YAML config file search.
const ConfigPathEnvVar = "ROOTD_CONFIG_PATH"

// DefaultConfigPaths lists where a YAML config file is searched for, in
// priority order; the first one found wins.
var DefaultConfigPaths = []string{
	"rootd.yaml",
	"rootd.yml",
	"/etc/rootd/rootd.yaml",
}

// Config holds the supervisor process's own bootstrap configuration.
type Config struct {
	Root   RootConfig   `koanf:"root"`
	Policy PolicyConfig `koanf:"policy"`
	Log    LogConfig    `koanf:"log"`
}

// RootConfig locates the Daemon Set this supervisor instance manages.
type RootConfig struct {
	// Directory is the Daemon Set root (spec.md §3). Empty means
	// $FAULT_DAEMON_DIRECTORY or ~/.fault/rootd.
	Directory string `koanf:"directory"`
	// SocketPath overrides the Control HTTP socket path. Empty means
	// <Directory>/if/http (spec.md §4.4/§6).
	SocketPath string `koanf:"socket_path"`
}

// PolicyConfig holds override knobs for spec.md §4.2's restart policy
// constants. These are override knobs, not semantics changes: a zero value
// means "use the spec.md default".
type PolicyConfig struct {
	MinimumRuntime  time.Duration `koanf:"minimum_runtime"`
	RetryWait       time.Duration `koanf:"retry_wait"`
	MaximumAttempts int           `koanf:"maximum_attempts"`
}

// LogConfig mirrors internal/logging.Config's fields for koanf binding.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

func defaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "json", Caller: false},
	}
}

// Load builds a Config in koanf's typical layered precedence: struct
// defaults, then an optional YAML file, then environment variables,
// highest priority last.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("bootconfig: load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("bootconfig: load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("ROOTD_", ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("bootconfig: load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("bootconfig: unmarshal: %w", err)
	}

	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envTransform maps the six ROOTD_* variables listed below to their koanf
// paths (ROOTD_ROOT_DIRECTORY -> root.directory, etc); any other key maps to
// "" and is skipped.
func envTransform(key string) string {
	switch key {
	case "ROOTD_ROOT_DIRECTORY":
		return "root.directory"
	case "ROOTD_SOCKET_PATH":
		return "root.socket_path"
	case "ROOTD_LOG_LEVEL":
		return "log.level"
	case "ROOTD_LOG_FORMAT":
		return "log.format"
	case "ROOTD_RETRY_WAIT":
		return "policy.retry_wait"
	case "ROOTD_MAXIMUM_ATTEMPTS":
		return "policy.maximum_attempts"
	default:
		return ""
	}
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// resolve fills in the spec.md §6 defaults for any field left unset after
// layered loading: $FAULT_DAEMON_DIRECTORY, then ~/.fault/rootd, and
// <root>/if/http for the control socket.
func (c *Config) resolve() error {
	if c.Root.Directory == "" {
		if env, ok := os.LookupEnv(EnvRootDirectory); ok && env != "" {
			c.Root.Directory = env
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("bootconfig: resolve default root directory: %w", err)
			}
			c.Root.Directory = filepath.Join(home, ".fault", "rootd")
		}
	}

	abs, err := filepath.Abs(c.Root.Directory)
	if err != nil {
		return fmt.Errorf("bootconfig: resolve root directory %s: %w", c.Root.Directory, err)
	}
	c.Root.Directory = abs

	if c.Root.SocketPath == "" {
		c.Root.SocketPath = filepath.Join(c.Root.Directory, "if", "http")
	}

	return nil
}
