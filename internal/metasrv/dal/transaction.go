package dal

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog/log"

	"github.com/metastack/metastore/internal/common/apperrors"
	"github.com/metastack/metastore/internal/metasrv/dal/dalerror"
)

// runInTransaction executes work atomically: one pooled connection, one
// transaction, commit on success and rollback on any error. The transaction
// context is detached from caller cancellation — an abandoned future never
// leaves a transaction half-done; the backend's statement timeouts are the
// only cutoff.
func (s *Store) runInTransaction(ctx context.Context, work func(ctx context.Context, tx *sql.Tx) error) error {
	ctx = context.WithoutCancel(ctx)

	conn, err := s.pool.Conn(ctx)
	if err != nil {
		return dalerror.ErrMetadataStore.Msg("failed to obtain connection").Err(err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to begin transaction")
		return dalerror.ErrMetadataStore.Msg("failed to begin transaction").Err(err)
	}

	if err := work(ctx, tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			log.Ctx(ctx).Error().Err(rollbackErr).Msg("failed to rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to commit transaction")
		return err
	}
	return nil
}

// prepareMappingTable creates the transaction-scoped staging table used by
// the batch readers to join on arrays of keys.
func (s *Store) prepareMappingTable(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, s.dialect.MappingTableDDL()); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to create mapping table")
		return err
	}
	return nil
}

// passthroughDomainError returns the error unchanged when the unit of work
// already produced a domain error (validation raised in memory, unknown
// tenant). Such errors bypass classification.
func passthroughDomainError(err error) (apperrors.Error, bool) {
	if aerr, ok := err.(apperrors.Error); ok {
		return aerr, true
	}
	return nil, false
}
