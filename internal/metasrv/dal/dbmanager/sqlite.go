package dbmanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/metastack/metastore/internal/metasrv/config"
)

type sqlitePool struct {
	db *sql.DB
}

func newSqlitePool(ctx context.Context, cfg *config.ConfigParam) (Pool, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", cfg.Sqlite.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to open sqlite db")
		return nil, err
	}
	if cfg.Pool.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.Pool.MaxConns)
	}
	if err := db.PingContext(ctx); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to ping sqlite db")
		db.Close()
		return nil, err
	}
	return &sqlitePool{db: db}, nil
}

func (p *sqlitePool) Conn(ctx context.Context) (*sql.Conn, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to obtain connection")
		return nil, err
	}
	return conn, nil
}

func (p *sqlitePool) Stats() sql.DBStats {
	return p.db.Stats()
}

func (p *sqlitePool) Close() error {
	return p.db.Close()
}
