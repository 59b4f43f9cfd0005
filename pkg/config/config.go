// Package config loads GraphLite's embedding-level configuration: which
// database directory to open, the credential/token settings
// pkg/coordinator hands to pkg/auth, and logging verbosity.
//
// Configuration can come from a YAML file (LoadFromFile, for applications
// that check a config file into their deploy) or from environment
// variables (LoadFromEnv, for container/process-manager style deploys),
// grounded on the teacher's environment-variable convention in
// pkg/config/config.go and pkg/auth's AuthConfig shape.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything needed to open a pkg/coordinator.Coordinator.
type Config struct {
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AuthConfig controls the credential store pkg/coordinator.newAuthenticator
// builds around pkg/auth.Authenticator.
type AuthConfig struct {
	// Enabled controls whether Coordinator.Login enforces authentication;
	// CreateSimpleSession always grants full access regardless (spec.md §6
	// describes session creation, not authentication, as the core's
	// concern — enforcement is the embedding layer's choice).
	Enabled bool `yaml:"enabled"`
	// InitialUsername/InitialPassword seed an admin account the first time
	// a data directory is opened.
	InitialUsername string `yaml:"initial_username"`
	InitialPassword string `yaml:"initial_password"`
	// MinPasswordLength for password policy, passed through to
	// auth.AuthConfig.MinPasswordLength.
	MinPasswordLength int `yaml:"min_password_length"`
	// TokenExpiry for minted bearer tokens; 0 means tokens never expire.
	TokenExpiry time.Duration `yaml:"token_expiry"`
}

// DatabaseConfig holds storage settings.
type DatabaseConfig struct {
	// DataDir is the directory pkg/coordinator.FromPath opens: Badger
	// graph/catalog storage under DataDir/data, WAL under DataDir/wal.
	DataDir string `yaml:"data_dir"`
	// DefaultSchema/DefaultGraph seed a session's CurrentSchema/
	// CurrentGraph when an application doesn't set one explicitly.
	DefaultSchema string `yaml:"default_schema"`
	DefaultGraph  string `yaml:"default_graph"`
}

// LoggingConfig controls pkg/glog verbosity.
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR.
	Level string `yaml:"level"`
}

// Default returns the configuration a fresh, unconfigured embedding gets:
// authentication disabled, data under ./data, INFO-level logging.
func Default() *Config {
	return &Config{
		Auth: AuthConfig{
			Enabled:           false,
			InitialUsername:   "admin",
			InitialPassword:   "admin",
			MinPasswordLength: 8,
			TokenExpiry:       0,
		},
		Database: DatabaseConfig{
			DataDir:       "./data",
			DefaultSchema: "main",
			DefaultGraph:  "default",
		},
		Logging: LoggingConfig{Level: "INFO"},
	}
}

// LoadFromFile reads and parses a YAML configuration file, starting from
// Default() so a file only needs to override what it cares about.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, e.g. for a CLI "init" command that
// wants to leave behind an editable starting point.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: encoding: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadFromEnv builds a Config from GRAPHLITE_-prefixed environment
// variables, starting from Default(). It never touches a config file, so
// it composes with LoadFromFile by calling one then overriding individual
// fields from the other as the caller sees fit.
func LoadFromEnv() *Config {
	cfg := Default()

	cfg.Auth.Enabled = getEnvBool("GRAPHLITE_AUTH_ENABLED", cfg.Auth.Enabled)
	cfg.Auth.InitialUsername = getEnv("GRAPHLITE_AUTH_USER", cfg.Auth.InitialUsername)
	cfg.Auth.InitialPassword = getEnv("GRAPHLITE_AUTH_PASSWORD", cfg.Auth.InitialPassword)
	cfg.Auth.MinPasswordLength = getEnvInt("GRAPHLITE_AUTH_MIN_PASSWORD_LENGTH", cfg.Auth.MinPasswordLength)
	cfg.Auth.TokenExpiry = getEnvDuration("GRAPHLITE_AUTH_TOKEN_EXPIRY", cfg.Auth.TokenExpiry)

	cfg.Database.DataDir = getEnv("GRAPHLITE_DATA_DIR", cfg.Database.DataDir)
	cfg.Database.DefaultSchema = getEnv("GRAPHLITE_DEFAULT_SCHEMA", cfg.Database.DefaultSchema)
	cfg.Database.DefaultGraph = getEnv("GRAPHLITE_DEFAULT_GRAPH", cfg.Database.DefaultGraph)

	cfg.Logging.Level = getEnv("GRAPHLITE_LOG_LEVEL", cfg.Logging.Level)

	return cfg
}

// Validate catches the config errors that would otherwise surface as a
// confusing failure deep inside pkg/coordinator or pkg/auth.
func (c *Config) Validate() error {
	if c.Auth.Enabled {
		if c.Auth.InitialUsername == "" {
			return fmt.Errorf("config: authentication enabled but no initial username set")
		}
		if len(c.Auth.InitialPassword) < c.Auth.MinPasswordLength {
			return fmt.Errorf("config: initial password shorter than min_password_length (%d)", c.Auth.MinPasswordLength)
		}
	}
	if c.Database.DataDir == "" {
		return fmt.Errorf("config: database.data_dir must not be empty")
	}
	switch strings.ToUpper(c.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("config: invalid logging level %q", c.Logging.Level)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}
