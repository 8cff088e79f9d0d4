// Package dbmanager manages the pooled database connections for the metadata
// store. Each logical DAL call checks out one connection for its whole
// duration; the pool is the only shared mutable resource.
package dbmanager

import (
	"context"
	"database/sql"

	"github.com/metastack/metastore/internal/metasrv/config"
)

type Pool interface {
	// Conn checks a connection out of the pool.
	Conn(ctx context.Context) (*sql.Conn, error)
	// Stats reports pool usage.
	Stats() sql.DBStats
	// Close releases the pool.
	Close() error
}

// New opens a connection pool for the configured backend.
func New(ctx context.Context, cfg *config.ConfigParam) (Pool, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		return newPostgresPool(ctx, cfg)
	case config.BackendSqlite:
		return newSqlitePool(ctx, cfg)
	}
	return nil, errUnsupportedBackend(cfg.Backend)
}
