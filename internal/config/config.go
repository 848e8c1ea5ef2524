// Package config loads tada settings from defaults, TOML files, the
// environment and command-line flags, in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Backend names accepted by the backend setting.
const (
	BackendJSON     = "json"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendHTTP     = "http"
)

const (
	DefaultBackend    = BackendJSON
	DefaultDataFile   = "todos.json"
	DefaultSQLitePath = "tada.db"
	DefaultAPIURL     = "http://localhost:3000"
	DefaultAPITimeout = 10 * time.Second
	DefaultAPIRate    = 10.0
	DefaultAPIBurst   = 5
	DefaultTheme      = "classic"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
)

// Config is the resolved configuration.
type Config struct {
	Backend     string        `toml:"backend"`
	DataFile    string        `toml:"data_file"`
	SQLitePath  string        `toml:"sqlite_path"`
	PostgresDSN string        `toml:"postgres_dsn"`
	APIURL      string        `toml:"api_url"`
	APITimeout  time.Duration `toml:"api_timeout"`
	APIRate     float64       `toml:"api_rate"`
	APIBurst    int           `toml:"api_burst"`

	Theme     string `toml:"theme"`
	Group     bool   `toml:"group"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogFile   string `toml:"log_file"`
}

func setDefaults(cfg *Config) {
	cfg.Backend = DefaultBackend
	cfg.DataFile = DefaultDataFile
	cfg.SQLitePath = DefaultSQLitePath
	cfg.APIURL = DefaultAPIURL
	cfg.APITimeout = DefaultAPITimeout
	cfg.APIRate = DefaultAPIRate
	cfg.APIBurst = DefaultAPIBurst
	cfg.Theme = DefaultTheme
	cfg.LogLevel = DefaultLogLevel
	cfg.LogFormat = DefaultLogFormat
}

// finalizeConfig normalizes values and rejects ones nothing downstream can use.
func finalizeConfig(cfg *Config) error {
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch cfg.Backend {
	case BackendJSON, BackendSQLite, BackendHTTP:
	case BackendPostgres:
		if cfg.PostgresDSN == "" {
			return fmt.Errorf("backend %q needs postgres_dsn", cfg.Backend)
		}
	default:
		return fmt.Errorf("unknown backend %q (want json, sqlite, postgres or http)", cfg.Backend)
	}

	cfg.DataFile = expandPath(cfg.DataFile)
	cfg.SQLitePath = expandPath(cfg.SQLitePath)
	cfg.LogFile = expandPath(cfg.LogFile)
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")

	if cfg.APITimeout <= 0 {
		cfg.APITimeout = DefaultAPITimeout
	}
	if cfg.APIRate <= 0 {
		cfg.APIRate = DefaultAPIRate
	}
	if cfg.APIBurst <= 0 {
		cfg.APIBurst = DefaultAPIBurst
	}

	cfg.Theme = strings.ToLower(strings.TrimSpace(cfg.Theme))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	return nil
}
