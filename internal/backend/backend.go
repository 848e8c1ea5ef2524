// Package backend defines the storage contract shared by the local stores
// and the API client, and opens the one selected by configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/Makepad-fr/tada/internal/auth"
	"github.com/Makepad-fr/tada/internal/backend/httpapi"
	"github.com/Makepad-fr/tada/internal/config"
	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/store/jsonstore"
	"github.com/Makepad-fr/tada/internal/store/sqlstore"
	"github.com/Makepad-fr/tada/internal/todoapp"
)

// Backend creates, reads, updates and deletes todos and labels.
// Missing records are reported with model.ErrNotFound.
type Backend interface {
	todoapp.Creator
	Find(ctx context.Context, id int) (model.Todo, error)
	All(ctx context.Context) ([]model.Todo, error)
	Update(ctx context.Context, id int, u model.UpdateTodo) (model.Todo, error)
	Delete(ctx context.Context, id int) error

	CreateLabel(ctx context.Context, name string) (model.Label, error)
	Labels(ctx context.Context) ([]model.Label, error)
	DeleteLabel(ctx context.Context, id int) error

	Close() error
}

var (
	_ Backend = (*jsonstore.Store)(nil)
	_ Backend = (*sqlstore.Store)(nil)
	_ Backend = (*httpapi.Client)(nil)
)

// Open returns the backend named by cfg.Backend.
func Open(ctx context.Context, cfg *config.Config, logger *log.Logger) (Backend, error) {
	if logger == nil {
		logger = log.Default()
	}
	switch cfg.Backend {
	case config.BackendJSON, "":
		logger.Debug("using json backend", "path", cfg.DataFile)
		return jsonstore.New(cfg.DataFile), nil

	case config.BackendSQLite:
		logger.Debug("using sqlite backend", "path", cfg.SQLitePath)
		return sqlstore.OpenSQLite(ctx, cfg.SQLitePath)

	case config.BackendPostgres:
		logger.Debug("using postgres backend")
		return sqlstore.OpenPostgres(ctx, cfg.PostgresDSN)

	case config.BackendHTTP:
		opts := []httpapi.Option{
			httpapi.WithTimeout(cfg.APITimeout),
			httpapi.WithRateLimit(cfg.APIRate, cfg.APIBurst),
			httpapi.WithLogger(logger),
		}
		ti, err := auth.Get()
		if err != nil {
			return nil, fmt.Errorf("load token: %w", err)
		}
		if ti != nil {
			opts = append(opts, httpapi.WithToken(ti.Token))
		}
		logger.Debug("using http backend", "url", cfg.APIURL, "auth", ti != nil)
		return httpapi.New(cfg.APIURL, opts...)
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
