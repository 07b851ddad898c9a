// Package config loads stmtimport settings from an optional YAML file and STMTIMPORT_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends
const (
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
)

// Config holds the runtime configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store"`
	RulesFile  string           `yaml:"rules_file"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
}

type StoreConfig struct {
	Backend          string `yaml:"backend"`
	DatabasePath     string `yaml:"database_path"`
	FirestoreProject string `yaml:"firestore_project"`
	CredentialsFile  string `yaml:"credentials_file"`
}

type ClassifierConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Model           string        `yaml:"model"`
	APIKey          string        `yaml:"api_key"`
	Timeout         time.Duration `yaml:"timeout"`
	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

type ServerConfig struct {
	Addr   string `yaml:"addr"`
	NoAuth bool   `yaml:"no_auth"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Backend:      BackendSQLite,
			DatabasePath: "stmtimport.db",
		},
		Classifier: ClassifierConfig{
			Model:           "gemini-2.5-flash",
			Timeout:         8 * time.Second,
			BreakerFailures: 3,
			BreakerCooldown: time.Minute,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads path (if non-empty) over the defaults, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %q: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Store.Backend = getEnv("STMTIMPORT_STORE", c.Store.Backend)
	c.Store.DatabasePath = getEnv("STMTIMPORT_DB", c.Store.DatabasePath)
	c.Store.FirestoreProject = getEnv("STMTIMPORT_FIRESTORE_PROJECT", c.Store.FirestoreProject)
	c.Store.CredentialsFile = getEnv("STMTIMPORT_CREDENTIALS_FILE", c.Store.CredentialsFile)
	c.RulesFile = getEnv("STMTIMPORT_RULES_FILE", c.RulesFile)
	c.Classifier.Model = getEnv("STMTIMPORT_CLASSIFIER_MODEL", c.Classifier.Model)
	c.Classifier.APIKey = getEnv("STMTIMPORT_CLASSIFIER_API_KEY", c.Classifier.APIKey)
	c.Server.Addr = getEnv("STMTIMPORT_ADDR", c.Server.Addr)
	c.Log.Level = getEnv("STMTIMPORT_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("STMTIMPORT_LOG_FORMAT", c.Log.Format)

	var err error
	if c.Classifier.Enabled, err = getEnvBool("STMTIMPORT_CLASSIFIER_ENABLED", c.Classifier.Enabled); err != nil {
		return err
	}
	if c.Classifier.Timeout, err = getEnvDuration("STMTIMPORT_CLASSIFIER_TIMEOUT", c.Classifier.Timeout); err != nil {
		return err
	}
	if c.Server.NoAuth, err = getEnvBool("STMTIMPORT_NO_AUTH", c.Server.NoAuth); err != nil {
		return err
	}
	return nil
}

// Validate checks the configuration for contradictions.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite:
		if c.Store.DatabasePath == "" {
			return fmt.Errorf("store.database_path is required for the sqlite backend")
		}
	case BackendFirestore:
		if c.Store.FirestoreProject == "" {
			return fmt.Errorf("store.firestore_project is required for the firestore backend")
		}
	default:
		return fmt.Errorf("invalid store.backend %q (must be 'sqlite' or 'firestore')", c.Store.Backend)
	}
	if c.Classifier.Timeout < 0 {
		return fmt.Errorf("classifier.timeout cannot be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}
