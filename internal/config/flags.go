package config

import "flag"

// parseFlags defines the root flags on fs and parses args.
func parseFlags(cfg *Config, fs *flag.FlagSet, args []string) error {
	if fs == nil {
		fs = flag.NewFlagSet("todo", flag.ContinueOnError)
	}
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "storage backend: json, sqlite, postgres or http")
	fs.StringVar(&cfg.DataFile, "data", cfg.DataFile, "path of the JSON data file")
	fs.StringVar(&cfg.SQLitePath, "sqlite", cfg.SQLitePath, "path of the SQLite database")
	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "Postgres connection string")
	fs.StringVar(&cfg.APIURL, "api", cfg.APIURL, "base URL of the todo API")
	fs.DurationVar(&cfg.APITimeout, "api-timeout", cfg.APITimeout, "per-request API timeout")
	fs.StringVar(&cfg.Theme, "theme", cfg.Theme, "color theme: classic, neon or mono")
	fs.BoolVar(&cfg.Group, "group", cfg.Group, "group output by pending/done")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text, json or logfmt")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "write logs to this file instead of stderr")
	return fs.Parse(args)
}
