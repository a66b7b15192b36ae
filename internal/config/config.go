// Package config holds the application settings: where the configuration
// document lives, where catalog metadata comes from and how to log.
// Values come from flags, SFETL_* environment variables and an optional
// YAML file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"sfetl/internal/logging"
	"sfetl/internal/storage"
)

// Store backends.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendMySQL    = "mysql"
	BackendPostgres = "postgres"
)

// EnvPrefix is the environment variable prefix (SFETL_STORE_PATH, ...).
const EnvPrefix = "SFETL"

// Config is the resolved application settings.
type Config struct {
	Store   StoreConfig
	Catalog CatalogConfig
	Log     LogConfig
}

// StoreConfig selects the persistence sink for the document.
type StoreConfig struct {
	Backend string // file | sqlite | mysql | postgres
	Path    string // document file, or database file for sqlite
	DSN     string // mysql / postgres connection string
	Key     string // document key within the sink
}

// CatalogConfig selects the metadata the editing operations validate against.
type CatalogConfig struct {
	Fixture          string // YAML/JSON fixture with source objects and fields
	IntrospectTarget bool   // list target tables from the configured target database
}

type LogConfig struct {
	Level  string
	Format string
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.path", "config.json")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.key", storage.DefaultKey)
	v.SetDefault("catalog.fixture", "")
	v.SetDefault("catalog.introspect_target", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatText)
}

// NewViper returns a viper instance with defaults and environment binding.
// file, when set, is read as YAML.
func NewViper(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read settings %s: %w", file, err)
		}
	}
	return v, nil
}

// Load resolves and validates the settings held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Store: StoreConfig{
			Backend: strings.ToLower(v.GetString("store.backend")),
			Path:    v.GetString("store.path"),
			DSN:     v.GetString("store.dsn"),
			Key:     v.GetString("store.key"),
		},
		Catalog: CatalogConfig{
			Fixture:          v.GetString("catalog.fixture"),
			IntrospectTarget: v.GetBool("catalog.introspect_target"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: strings.ToLower(v.GetString("log.format")),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case BackendFile, BackendSQLite:
		if c.Store.Path == "" {
			errs = append(errs, fmt.Errorf("store.path is required for the %s backend", c.Store.Backend))
		}
	case BackendMySQL, BackendPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for the %s backend", c.Store.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend (%q) must be one of: file, sqlite, mysql, postgres", c.Store.Backend))
	}
	if strings.TrimSpace(c.Store.Key) == "" {
		errs = append(errs, errors.New("store.key must not be empty"))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level (%q) must be one of: debug, info, warn, error", c.Log.Level))
	}
	if c.Log.Format != logging.FormatText && c.Log.Format != logging.FormatJSON {
		errs = append(errs, fmt.Errorf("log.format (%q) must be one of: text, json", c.Log.Format))
	}

	return errors.Join(errs...)
}
