package dal

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/metastack/metastore/internal/metasrv/dal/dialect"
	"github.com/metastack/metastore/pkg/types"
)

// The batch writers insert one row per batch index through a prepared
// statement and return surrogate keys in input order. Duplicate detection is
// left entirely to the relational unique constraints; there are no pre-check
// queries.

// writeObjectIdentities inserts one identity row per (type, uuid) pair and
// returns the new surrogate keys.
func (s *Store) writeObjectIdentities(
	ctx context.Context, tx *sql.Tx, tenantID int,
	objectTypes []types.ObjectType, objectIDs []uuid.UUID,
) ([]int64, error) {
	query := fmt.Sprintf(`
		INSERT INTO object_id (tenant_id, object_type, object_uuid)
		VALUES (%s, %s, %s)
		RETURNING pk`,
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare object id insert")
	}
	defer stmt.Close()

	pks := make([]int64, len(objectIDs))
	for i := range objectIDs {
		row := stmt.QueryRowContext(ctx, tenantID, string(objectTypes[i]), objectIDs[i])
		if err := row.Scan(&pks[i]); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("object_id", objectIDs[i].String()).Msg("failed to insert object id")
			return nil, errors.Wrap(err, "failed to insert object id")
		}
	}
	return pks, nil
}

// writeDefinitions inserts one definition (object-version) row per batch
// index. Rows start with the latest flag clear; the latest pointer is set
// separately, in the same transaction.
func (s *Store) writeDefinitions(
	ctx context.Context, tx *sql.Tx, tenantID int,
	identityKeys []int64, versions []int, definitions [][]byte,
) ([]int64, error) {
	query := fmt.Sprintf(`
		INSERT INTO object_definition (tenant_id, object_fk, object_version, definition, object_is_latest)
		VALUES (%s, %s, %s, %s, FALSE)
		RETURNING pk`,
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3), s.dialect.Placeholder(4))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare definition insert")
	}
	defer stmt.Close()

	pks := make([]int64, len(identityKeys))
	for i := range identityKeys {
		row := stmt.QueryRowContext(ctx, tenantID, identityKeys[i], versions[i], definitions[i])
		if err := row.Scan(&pks[i]); err != nil {
			log.Ctx(ctx).Error().Err(err).Int64("object_fk", identityKeys[i]).Int("object_version", versions[i]).Msg("failed to insert definition")
			return nil, errors.Wrap(err, "failed to insert definition")
		}
	}
	return pks, nil
}

// writeTagRecords inserts one tag row per batch index, linked to the given
// definition keys.
func (s *Store) writeTagRecords(
	ctx context.Context, tx *sql.Tx, tenantID int,
	definitionKeys []int64, tagVersions []int,
) ([]int64, error) {
	query := fmt.Sprintf(`
		INSERT INTO tag (tenant_id, definition_fk, tag_version, tag_is_latest)
		VALUES (%s, %s, %s, FALSE)
		RETURNING pk`,
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare tag insert")
	}
	defer stmt.Close()

	pks := make([]int64, len(definitionKeys))
	for i := range definitionKeys {
		row := stmt.QueryRowContext(ctx, tenantID, definitionKeys[i], tagVersions[i])
		if err := row.Scan(&pks[i]); err != nil {
			log.Ctx(ctx).Error().Err(err).Int64("definition_fk", definitionKeys[i]).Int("tag_version", tagVersions[i]).Msg("failed to insert tag")
			return nil, errors.Wrap(err, "failed to insert tag")
		}
	}
	return pks, nil
}

// writeTagAttrs writes the full attribute set for each tag. Tags are
// immutable once written, so attribute rows are insert-only.
func (s *Store) writeTagAttrs(
	ctx context.Context, tx *sql.Tx, tenantID int,
	tagKeys []int64, attrs []map[string]types.Value,
) error {
	query := fmt.Sprintf(`
		INSERT INTO tag_attr (tenant_id, tag_fk, attr_name, attr_type,
			attr_value_boolean, attr_value_integer, attr_value_float, attr_value_string)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s)`,
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3), s.dialect.Placeholder(4),
		s.dialect.Placeholder(5), s.dialect.Placeholder(6), s.dialect.Placeholder(7), s.dialect.Placeholder(8))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return errors.Wrap(err, "failed to prepare attribute insert")
	}
	defer stmt.Close()

	for i, attrMap := range attrs {
		names := make([]string, 0, len(attrMap))
		for name := range attrMap {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			value := attrMap[name]
			boolVal := sql.NullBool{Bool: value.BooleanValue, Valid: value.Type == types.ValueTypeBoolean}
			intVal := sql.NullInt64{Int64: value.IntegerValue, Valid: value.Type == types.ValueTypeInteger}
			floatVal := sql.NullFloat64{Float64: value.FloatValue, Valid: value.Type == types.ValueTypeFloat}
			strVal := sql.NullString{String: value.StringValue, Valid: value.Type == types.ValueTypeString}

			_, err := stmt.ExecContext(ctx, tenantID, tagKeys[i], name, string(value.Type),
				boolVal, intVal, floatVal, strVal)
			if err != nil {
				log.Ctx(ctx).Error().Err(err).Int64("tag_fk", tagKeys[i]).Str("attr_name", name).Msg("failed to insert attribute")
				return errors.Wrap(err, "failed to insert attribute")
			}
		}
	}
	return nil
}

// writeLatestVersion marks freshly inserted definition rows as latest. Used
// for the first version of an identity, where no prior latest row exists.
func (s *Store) writeLatestVersion(ctx context.Context, tx *sql.Tx, tenantID int, definitionKeys []int64) error {
	query := fmt.Sprintf(`
		UPDATE object_definition SET object_is_latest = TRUE
		WHERE tenant_id = %s AND pk = %s`,
		s.dialect.Placeholder(1), s.dialect.Placeholder(2))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return errors.Wrap(err, "failed to prepare latest version update")
	}
	defer stmt.Close()

	for _, pk := range definitionKeys {
		if _, err := stmt.ExecContext(ctx, tenantID, pk); err != nil {
			log.Ctx(ctx).Error().Err(err).Int64("definition_pk", pk).Msg("failed to set latest version")
			return errors.Wrap(err, "failed to set latest version")
		}
	}
	return nil
}

// updateLatestVersion moves the latest pointer of each identity to the given
// version. Clearing the previous latest and setting the new one happen in a
// single statement, so no concurrent reader observes zero or two latest rows.
func (s *Store) updateLatestVersion(
	ctx context.Context, tx *sql.Tx, tenantID int,
	identityKeys []int64, versions []int,
) error {
	query := fmt.Sprintf(`
		UPDATE object_definition
		SET object_is_latest = (object_version = %s)
		WHERE tenant_id = %s AND object_fk = %s
		  AND (object_is_latest OR object_version = %s)`,
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3), s.dialect.Placeholder(4))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return errors.Wrap(err, "failed to prepare latest version move")
	}
	defer stmt.Close()

	for i := range identityKeys {
		result, err := stmt.ExecContext(ctx, versions[i], tenantID, identityKeys[i], versions[i])
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Int64("object_fk", identityKeys[i]).Msg("failed to move latest version")
			return errors.Wrap(err, "failed to move latest version")
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "failed to read result of latest version move")
		}
		if rowsAffected == 0 {
			return errors.Wrapf(dialect.ErrNoData, "no version %d for identity key %d", versions[i], identityKeys[i])
		}
	}
	return nil
}

// writeLatestTag marks freshly inserted tag rows as latest, for the first tag
// of a definition.
func (s *Store) writeLatestTag(ctx context.Context, tx *sql.Tx, tenantID int, tagKeys []int64) error {
	query := fmt.Sprintf(`
		UPDATE tag SET tag_is_latest = TRUE
		WHERE tenant_id = %s AND pk = %s`,
		s.dialect.Placeholder(1), s.dialect.Placeholder(2))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return errors.Wrap(err, "failed to prepare latest tag update")
	}
	defer stmt.Close()

	for _, pk := range tagKeys {
		if _, err := stmt.ExecContext(ctx, tenantID, pk); err != nil {
			log.Ctx(ctx).Error().Err(err).Int64("tag_pk", pk).Msg("failed to set latest tag")
			return errors.Wrap(err, "failed to set latest tag")
		}
	}
	return nil
}

// updateLatestTag mirrors updateLatestVersion at the tag level, scoped to
// (definition, tag version).
func (s *Store) updateLatestTag(
	ctx context.Context, tx *sql.Tx, tenantID int,
	definitionKeys []int64, tagVersions []int,
) error {
	query := fmt.Sprintf(`
		UPDATE tag
		SET tag_is_latest = (tag_version = %s)
		WHERE tenant_id = %s AND definition_fk = %s
		  AND (tag_is_latest OR tag_version = %s)`,
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3), s.dialect.Placeholder(4))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return errors.Wrap(err, "failed to prepare latest tag move")
	}
	defer stmt.Close()

	for i := range definitionKeys {
		result, err := stmt.ExecContext(ctx, tagVersions[i], tenantID, definitionKeys[i], tagVersions[i])
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Int64("definition_fk", definitionKeys[i]).Msg("failed to move latest tag")
			return errors.Wrap(err, "failed to move latest tag")
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "failed to read result of latest tag move")
		}
		if rowsAffected == 0 {
			return errors.Wrapf(dialect.ErrNoData, "no tag version %d for definition key %d", tagVersions[i], definitionKeys[i])
		}
	}
	return nil
}
