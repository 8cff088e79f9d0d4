package dbmanager

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/rs/zerolog/log"

	"github.com/metastack/metastore/internal/metasrv/config"
)

type postgresPool struct {
	db *sql.DB
}

func errUnsupportedBackend(backend string) error {
	return fmt.Errorf("unsupported backend: %s", backend)
}

func newPostgresPool(ctx context.Context, cfg *config.ConfigParam) (Pool, error) {
	db, err := sql.Open("pgx", cfg.Postgres.Dsn())
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to open postgres db")
		return nil, err
	}
	if cfg.Pool.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.Pool.MaxConns)
	}
	if err := db.PingContext(ctx); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to ping postgres db")
		db.Close()
		return nil, err
	}
	return &postgresPool{db: db}, nil
}

func (p *postgresPool) Conn(ctx context.Context) (*sql.Conn, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to obtain connection")
		return nil, err
	}
	// bound every statement so a wedged backend cannot hold a connection
	if _, err := conn.ExecContext(ctx, "SET lock_timeout = '5s'"); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to set lock timeout")
		conn.Close()
		return nil, err
	}
	if _, err := conn.ExecContext(ctx, "SET statement_timeout = '30s'"); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to set statement timeout")
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func (p *postgresPool) Stats() sql.DBStats {
	return p.db.Stats()
}

func (p *postgresPool) Close() error {
	return p.db.Close()
}
