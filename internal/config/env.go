package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// loadFromEnv overrides config from TADA_* environment variables.
func loadFromEnv(cfg *Config) error {
	strs := map[string]*string{
		"TADA_BACKEND":      &cfg.Backend,
		"TADA_DATA_FILE":    &cfg.DataFile,
		"TADA_SQLITE_PATH":  &cfg.SQLitePath,
		"TADA_POSTGRES_DSN": &cfg.PostgresDSN,
		"TADA_API_URL":      &cfg.APIURL,
		"TADA_THEME":        &cfg.Theme,
		"TADA_LOG_LEVEL":    &cfg.LogLevel,
		"TADA_LOG_FORMAT":   &cfg.LogFormat,
		"TADA_LOG_FILE":     &cfg.LogFile,
	}
	for name, dst := range strs {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("TADA_API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TADA_API_TIMEOUT: %w", err)
		}
		cfg.APITimeout = d
	}
	if v := os.Getenv("TADA_API_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("TADA_API_RATE: %w", err)
		}
		cfg.APIRate = f
	}
	if v := os.Getenv("TADA_API_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TADA_API_BURST: %w", err)
		}
		cfg.APIBurst = n
	}
	if v := os.Getenv("TADA_GROUP"); v != "" {
		cfg.Group = boolFromString(v)
	}
	return nil
}

func boolFromString(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}
