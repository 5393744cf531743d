// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable Load reads the config path
// from.
const EnvironmentVariable = "BUREAU_CI_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the CI service configuration.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	Paths  PathsConfig  `yaml:"paths"`
	Server ServerConfig `yaml:"server"`
	GitHub GitHubConfig `yaml:"github"`
	Build  BuildConfig  `yaml:"build"`
	Log    LogConfig    `yaml:"log"`

	// Per-environment overrides, applied after the base config when
	// Environment matches.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains the sections that can differ per
// environment. Only non-zero fields override.
type ConfigOverrides struct {
	Server *ServerConfig `yaml:"server,omitempty"`
	Build  *BuildConfig  `yaml:"build,omitempty"`
	Log    *LogConfig    `yaml:"log,omitempty"`
}

// PathsConfig configures on-disk locations. ${BUREAU_CI_ROOT} in the
// other paths expands to Root.
type PathsConfig struct {
	// Root is the base directory for service state.
	Root string `yaml:"root"`

	// Ledger is the build history file.
	Ledger string `yaml:"ledger"`

	// Workspaces is the directory under which each build gets its
	// own temporary checkout.
	Workspaces string `yaml:"workspaces"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Address is the TCP listen address, such as ":8080".
	Address string `yaml:"address"`

	// PublicURL is the externally reachable base URL of this server.
	// When set, commit statuses link to the build's detail page.
	PublicURL string `yaml:"public_url"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// WebhookSecretEnv names the environment variable holding the
	// webhook HMAC secret. When that variable is empty, signatures are
	// not checked.
	WebhookSecretEnv string `yaml:"webhook_secret_env"`
}

// GitHubConfig configures the hosting platform.
type GitHubConfig struct {
	// APIURL is the REST API root. Must be HTTPS.
	APIURL string `yaml:"api_url"`

	// CloneURL is the prefix for clone URLs: <clone_url>/<owner>/<repo>.git.
	CloneURL string `yaml:"clone_url"`

	// TokenEnv names the environment variable holding the API token.
	TokenEnv string `yaml:"token_env"`

	// StatusContext labels posted commit statuses.
	StatusContext string `yaml:"status_context"`
}

// BuildConfig configures the build tool invocations.
type BuildConfig struct {
	// Compile is the clean-build argv, run in the checkout.
	Compile []string `yaml:"compile"`

	// Test is the test argv, run in the checkout.
	Test []string `yaml:"test"`

	// PhaseTimeout bounds each pipeline phase. Zero disables the
	// bound.
	PhaseTimeout time.Duration `yaml:"phase_timeout"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// File, when set, sends logs to a size-rotated file instead of
	// stderr.
	File string `yaml:"file"`

	// MaxSizeMB is the size at which the log file rotates.
	MaxSizeMB int `yaml:"max_size_mb"`

	// MaxBackups is how many rotated files to keep.
	MaxBackups int `yaml:"max_backups"`

	// MaxAgeDays removes rotated files older than this. Zero keeps
	// them regardless of age.
	MaxAgeDays int `yaml:"max_age_days"`

	// Compress gzips rotated files.
	Compress bool `yaml:"compress"`
}

// defaults returns the configuration before variable expansion.
func defaults() *Config {
	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:       "${HOME}/.cache/bureau-ci",
			Ledger:     "${BUREAU_CI_ROOT}/builds.json",
			Workspaces: "${BUREAU_CI_ROOT}/workspaces",
		},
		Server: ServerConfig{
			Address:          ":8080",
			ShutdownTimeout:  10 * time.Second,
			WebhookSecretEnv: "GITHUB_WEBHOOK_SECRET",
		},
		GitHub: GitHubConfig{
			APIURL:        "https://api.github.com",
			CloneURL:      "https://github.com",
			TokenEnv:      "GITHUB_TOKEN",
			StatusContext: "continuous-integration/bureau-ci",
		},
		Build: BuildConfig{
			Compile: []string{"mvn", "-B", "clean", "compile"},
			Test:    []string{"mvn", "-B", "test"},
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
		},
	}
}

// Default returns the default configuration with variables expanded.
// The service runs on these values when no config file is given.
func Default() *Config {
	cfg := defaults()
	cfg.expandVariables()
	return cfg
}

// Load loads configuration from the file named by BUREAU_CI_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path. Files ending in .json or
// .jsonc are read as JSON with comments; anything else as YAML. Keys
// the Config does not define are rejected.
func LoadFile(path string) (*Config, error) {
	cfg := defaults()
	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// JSON is decoded generically and re-encoded as YAML so that
		// both formats share one set of struct tags and the same
		// duration handling.
		var generic any
		if err := json.Unmarshal(jsonc.ToJSON(data), &generic); err != nil {
			return fmt.Errorf("parsing JSON: %w", err)
		}
		if data, err = yaml.Marshal(generic); err != nil {
			return fmt.Errorf("re-encoding JSON: %w", err)
		}
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnvironmentOverrides applies the section matching Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production without explicit overrides still drops debug
		// logging.
		if overrides == nil {
			overrides = &ConfigOverrides{Log: &LogConfig{Level: "info"}}
		}
	}
	if overrides == nil {
		return
	}

	if server := overrides.Server; server != nil {
		if server.Address != "" {
			c.Server.Address = server.Address
		}
		if server.PublicURL != "" {
			c.Server.PublicURL = server.PublicURL
		}
		if server.ShutdownTimeout != 0 {
			c.Server.ShutdownTimeout = server.ShutdownTimeout
		}
		if server.WebhookSecretEnv != "" {
			c.Server.WebhookSecretEnv = server.WebhookSecretEnv
		}
	}

	if build := overrides.Build; build != nil {
		if len(build.Compile) > 0 {
			c.Build.Compile = build.Compile
		}
		if len(build.Test) > 0 {
			c.Build.Test = build.Test
		}
		if build.PhaseTimeout != 0 {
			c.Build.PhaseTimeout = build.PhaseTimeout
		}
	}

	if log := overrides.Log; log != nil {
		if log.Level != "" {
			c.Log.Level = log.Level
		}
		if log.File != "" {
			c.Log.File = log.File
		}
		if log.MaxSizeMB != 0 {
			c.Log.MaxSizeMB = log.MaxSizeMB
		}
		if log.MaxBackups != 0 {
			c.Log.MaxBackups = log.MaxBackups
		}
		if log.MaxAgeDays != 0 {
			c.Log.MaxAgeDays = log.MaxAgeDays
		}
		// Compress is a bool, so an override section always sets it.
		c.Log.Compress = log.Compress
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["BUREAU_CI_ROOT"] = c.Paths.Root

	c.Paths.Ledger = expandVars(c.Paths.Ledger, vars)
	c.Paths.Workspaces = expandVars(c.Paths.Workspaces, vars)
	c.Log.File = expandVars(c.Log.File, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		// Provided vars first, then the process environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Paths.Ledger == "" {
		errs = append(errs, errors.New("paths.ledger is required"))
	}
	if c.Paths.Workspaces == "" {
		errs = append(errs, errors.New("paths.workspaces is required"))
	}
	if c.Server.Address == "" {
		errs = append(errs, errors.New("server.address is required"))
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must not be negative"))
	}
	if !strings.HasPrefix(c.GitHub.APIURL, "https://") {
		errs = append(errs, fmt.Errorf("github.api_url must be https (got %q)", c.GitHub.APIURL))
	}
	if c.GitHub.CloneURL == "" {
		errs = append(errs, errors.New("github.clone_url is required"))
	}
	if c.GitHub.TokenEnv == "" {
		errs = append(errs, errors.New("github.token_env is required"))
	}
	if len(c.Build.Compile) == 0 {
		errs = append(errs, errors.New("build.compile is required"))
	}
	if len(c.Build.Test) == 0 {
		errs = append(errs, errors.New("build.test is required"))
	}
	if c.Build.PhaseTimeout < 0 {
		errs = append(errs, errors.New("build.phase_timeout must not be negative"))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log.level: %q", c.Log.Level))
	}

	return errors.Join(errs...)
}
