package dal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/metastack/metastore/internal/metasrv/dal/dialect"
	"github.com/metastack/metastore/internal/metasrv/dal/models"
	"github.com/metastack/metastore/pkg/types"
)

// The batch readers resolve arrays of logical keys in one bulk round trip.
// Input keys are staged into the transaction-scoped key_mapping table with
// their position, then joined against the metadata tables; results come back
// placed by ordinal, so output order always matches input order. Single-item
// reads are batches of length one — there is no separate code path.

// keyedTypes carries resolved identity surrogate keys with stored types.
type keyedTypes struct {
	keys        []int64
	objectTypes []types.ObjectType
}

// keyedDefinitions carries resolved definition keys with stored versions and
// payloads. Versions are the concrete stored numbers, with Latest sentinels
// resolved.
type keyedDefinitions struct {
	keys       []int64
	versions   []int
	definition [][]byte
}

// keyedTags carries resolved tag keys with stored tag versions.
type keyedTags struct {
	keys        []int64
	tagVersions []int
}

func (s *Store) clearMappingTable(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM key_mapping`); err != nil {
		return errors.Wrap(err, "failed to clear mapping table")
	}
	return nil
}

func (s *Store) stageUUIDKeys(ctx context.Context, tx *sql.Tx, ids []uuid.UUID) error {
	if err := s.clearMappingTable(ctx, tx); err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO key_mapping (ordinal, id) VALUES (%s, %s)`,
		s.dialect.Placeholder(1), s.dialect.Placeholder(2))
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return errors.Wrap(err, "failed to prepare key staging")
	}
	defer stmt.Close()

	for i, id := range ids {
		if _, err := stmt.ExecContext(ctx, i, id); err != nil {
			return errors.Wrap(err, "failed to stage uuid key")
		}
	}
	return nil
}

func (s *Store) stagePkVersionKeys(ctx context.Context, tx *sql.Tx, pks []int64, versions []int) error {
	if err := s.clearMappingTable(ctx, tx); err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO key_mapping (ordinal, pk, version) VALUES (%s, %s, %s)`,
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3))
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return errors.Wrap(err, "failed to prepare key staging")
	}
	defer stmt.Close()

	for i := range pks {
		var version any
		if versions != nil {
			version = versions[i]
		}
		if _, err := stmt.ExecContext(ctx, i, pks[i], version); err != nil {
			return errors.Wrap(err, "failed to stage surrogate key")
		}
	}
	return nil
}

// readObjectTypeByID resolves identity rows for the given object uuids. Any
// uuid without a stored identity fails the whole batch with no-data.
func (s *Store) readObjectTypeByID(
	ctx context.Context, tx *sql.Tx, tenantID int, objectIDs []uuid.UUID,
) (keyedTypes, error) {
	result := keyedTypes{
		keys:        make([]int64, len(objectIDs)),
		objectTypes: make([]types.ObjectType, len(objectIDs)),
	}
	if err := s.stageUUIDKeys(ctx, tx, objectIDs); err != nil {
		return result, err
	}

	query := fmt.Sprintf(`
		SELECT km.ordinal, o.pk, o.object_type
		FROM key_mapping km
		JOIN object_id o ON o.tenant_id = %s AND o.object_uuid = km.id
		ORDER BY km.ordinal`,
		s.dialect.Placeholder(1))

	rows, err := tx.QueryContext(ctx, query, tenantID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to read object types")
		return result, errors.Wrap(err, "failed to read object types")
	}
	defer rows.Close()

	found := 0
	for rows.Next() {
		var ordinal int
		var identity models.ObjectIdentity
		if err := rows.Scan(&ordinal, &identity.Pk, &identity.ObjectType); err != nil {
			return result, errors.Wrap(err, "failed to scan object type row")
		}
		result.keys[ordinal] = identity.Pk
		result.objectTypes[ordinal] = identity.ObjectType
		found++
	}
	if err := rows.Err(); err != nil {
		return result, errors.Wrap(err, "error after scanning object types")
	}
	if found != len(objectIDs) {
		return result, errors.Wrapf(dialect.ErrNoData, "%d of %d object ids found", found, len(objectIDs))
	}
	return result, nil
}

// readDefinitionByVersion resolves definition rows for (identity, version)
// pairs and fetches the stored payloads. A negative version takes the row
// with the latest flag set.
func (s *Store) readDefinitionByVersion(
	ctx context.Context, tx *sql.Tx, tenantID int,
	identityKeys []int64, versions []int,
) (keyedDefinitions, error) {
	result := keyedDefinitions{
		keys:       make([]int64, len(identityKeys)),
		versions:   make([]int, len(identityKeys)),
		definition: make([][]byte, len(identityKeys)),
	}
	if err := s.stagePkVersionKeys(ctx, tx, identityKeys, versions); err != nil {
		return result, err
	}

	query := fmt.Sprintf(`
		SELECT km.ordinal, d.pk, d.object_version, d.definition
		FROM key_mapping km
		JOIN object_definition d
		  ON d.tenant_id = %s AND d.object_fk = km.pk
		 AND (d.object_version = km.version OR (km.version < 0 AND d.object_is_latest))
		ORDER BY km.ordinal`,
		s.dialect.Placeholder(1))

	rows, err := tx.QueryContext(ctx, query, tenantID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to read definitions")
		return result, errors.Wrap(err, "failed to read definitions")
	}
	defer rows.Close()

	found := 0
	for rows.Next() {
		var ordinal int
		var rec models.DefinitionRecord
		if err := rows.Scan(&ordinal, &rec.Pk, &rec.ObjectVersion, &rec.Definition); err != nil {
			return result, errors.Wrap(err, "failed to scan definition row")
		}
		result.keys[ordinal] = rec.Pk
		result.versions[ordinal] = rec.ObjectVersion
		result.definition[ordinal] = rec.Definition
		found++
	}
	if err := rows.Err(); err != nil {
		return result, errors.Wrap(err, "error after scanning definitions")
	}
	if found != len(identityKeys) {
		return result, errors.Wrapf(dialect.ErrNoData, "%d of %d definitions found", found, len(identityKeys))
	}
	return result, nil
}

// lookupDefinitionPk resolves definition surrogate keys for existing
// (identity, version) pairs without fetching payloads. Used when attaching a
// new tag to an already-stored version.
func (s *Store) lookupDefinitionPk(
	ctx context.Context, tx *sql.Tx, tenantID int,
	identityKeys []int64, versions []int,
) ([]int64, error) {
	if err := s.stagePkVersionKeys(ctx, tx, identityKeys, versions); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT km.ordinal, d.pk
		FROM key_mapping km
		JOIN object_definition d
		  ON d.tenant_id = %s AND d.object_fk = km.pk
		 AND (d.object_version = km.version OR (km.version < 0 AND d.object_is_latest))
		ORDER BY km.ordinal`,
		s.dialect.Placeholder(1))

	rows, err := tx.QueryContext(ctx, query, tenantID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to look up definition keys")
		return nil, errors.Wrap(err, "failed to look up definition keys")
	}
	defer rows.Close()

	pks := make([]int64, len(identityKeys))
	found := 0
	for rows.Next() {
		var ordinal int
		var pk int64
		if err := rows.Scan(&ordinal, &pk); err != nil {
			return nil, errors.Wrap(err, "failed to scan definition key row")
		}
		pks[ordinal] = pk
		found++
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error after scanning definition keys")
	}
	if found != len(identityKeys) {
		return nil, errors.Wrapf(dialect.ErrNoData, "%d of %d definitions found", found, len(identityKeys))
	}
	return pks, nil
}

// readTagRecordByVersion resolves tag rows for (definition, tag version)
// pairs. A negative tag version takes the row with the latest flag set.
func (s *Store) readTagRecordByVersion(
	ctx context.Context, tx *sql.Tx, tenantID int,
	definitionKeys []int64, tagVersions []int,
) (keyedTags, error) {
	result := keyedTags{
		keys:        make([]int64, len(definitionKeys)),
		tagVersions: make([]int, len(definitionKeys)),
	}
	if err := s.stagePkVersionKeys(ctx, tx, definitionKeys, tagVersions); err != nil {
		return result, err
	}

	query := fmt.Sprintf(`
		SELECT km.ordinal, t.pk, t.tag_version
		FROM key_mapping km
		JOIN tag t
		  ON t.tenant_id = %s AND t.definition_fk = km.pk
		 AND (t.tag_version = km.version OR (km.version < 0 AND t.tag_is_latest))
		ORDER BY km.ordinal`,
		s.dialect.Placeholder(1))

	rows, err := tx.QueryContext(ctx, query, tenantID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to read tag records")
		return result, errors.Wrap(err, "failed to read tag records")
	}
	defer rows.Close()

	found := 0
	for rows.Next() {
		var ordinal int
		var rec models.TagRecord
		if err := rows.Scan(&ordinal, &rec.Pk, &rec.TagVersion); err != nil {
			return result, errors.Wrap(err, "failed to scan tag record row")
		}
		result.keys[ordinal] = rec.Pk
		result.tagVersions[ordinal] = rec.TagVersion
		found++
	}
	if err := rows.Err(); err != nil {
		return result, errors.Wrap(err, "error after scanning tag records")
	}
	if found != len(definitionKeys) {
		return result, errors.Wrapf(dialect.ErrNoData, "%d of %d tag records found", found, len(definitionKeys))
	}
	return result, nil
}

// readTagAttrs returns one attribute map per input tag key, in input order.
// A tag with no attributes yields an empty map.
func (s *Store) readTagAttrs(
	ctx context.Context, tx *sql.Tx, tenantID int, tagKeys []int64,
) ([]map[string]types.Value, error) {
	if err := s.stagePkVersionKeys(ctx, tx, tagKeys, nil); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT km.ordinal, a.attr_name, a.attr_type,
		       a.attr_value_boolean, a.attr_value_integer, a.attr_value_float, a.attr_value_string
		FROM key_mapping km
		JOIN tag_attr a ON a.tenant_id = %s AND a.tag_fk = km.pk
		ORDER BY km.ordinal`,
		s.dialect.Placeholder(1))

	rows, err := tx.QueryContext(ctx, query, tenantID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to read tag attributes")
		return nil, errors.Wrap(err, "failed to read tag attributes")
	}
	defer rows.Close()

	attrs := make([]map[string]types.Value, len(tagKeys))
	for i := range attrs {
		attrs[i] = make(map[string]types.Value)
	}

	for rows.Next() {
		var ordinal int
		var attr models.TagAttr
		var attrType string
		var boolVal sql.NullBool
		var intVal sql.NullInt64
		var floatVal sql.NullFloat64
		var strVal sql.NullString
		if err := rows.Scan(&ordinal, &attr.AttrName, &attrType, &boolVal, &intVal, &floatVal, &strVal); err != nil {
			return nil, errors.Wrap(err, "failed to scan attribute row")
		}
		attr.Value = decodeAttrValue(types.ValueType(attrType), boolVal, intVal, floatVal, strVal)
		attrs[ordinal][attr.AttrName] = attr.Value
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error after scanning attributes")
	}
	return attrs, nil
}

func decodeAttrValue(
	attrType types.ValueType,
	boolVal sql.NullBool, intVal sql.NullInt64, floatVal sql.NullFloat64, strVal sql.NullString,
) types.Value {
	switch attrType {
	case types.ValueTypeBoolean:
		return types.BoolValue(boolVal.Bool)
	case types.ValueTypeInteger:
		return types.IntValue(intVal.Int64)
	case types.ValueTypeFloat:
		return types.FloatValue(floatVal.Float64)
	default:
		return types.StringValue(strVal.String)
	}
}
