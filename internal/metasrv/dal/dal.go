// Package dal implements the metadata store data access layer: immutable,
// versioned objects and tags persisted relationally with surrogate keys.
// Every public operation runs as one transaction on one pooled connection and
// returns a future; batches either commit fully or not at all.
package dal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/metastack/metastore/internal/common/apperrors"
	"github.com/metastack/metastore/internal/common/promise"
	"github.com/metastack/metastore/internal/metasrv/config"
	"github.com/metastack/metastore/internal/metasrv/dal/dalerror"
	"github.com/metastack/metastore/internal/metasrv/dal/dbmanager"
	"github.com/metastack/metastore/internal/metasrv/dal/dialect"
	"github.com/metastack/metastore/pkg/types"
)

// MetadataStore is the public surface of the DAL. Save operations are
// all-or-nothing per call; load operations return results in input order.
type MetadataStore interface {
	SaveNewObject(ctx context.Context, tenant types.TenantCode, tag types.Tag) *promise.Future[struct{}]
	SaveNewObjects(ctx context.Context, tenant types.TenantCode, tags []types.Tag) *promise.Future[struct{}]
	SaveNewVersion(ctx context.Context, tenant types.TenantCode, tag types.Tag) *promise.Future[struct{}]
	SaveNewVersions(ctx context.Context, tenant types.TenantCode, tags []types.Tag) *promise.Future[struct{}]
	SaveNewTag(ctx context.Context, tenant types.TenantCode, tag types.Tag) *promise.Future[struct{}]
	SaveNewTags(ctx context.Context, tenant types.TenantCode, tags []types.Tag) *promise.Future[struct{}]
	PreallocateObjectID(ctx context.Context, tenant types.TenantCode, objectType types.ObjectType, objectID uuid.UUID) *promise.Future[struct{}]
	PreallocateObjectIDs(ctx context.Context, tenant types.TenantCode, refs []ObjectRef) *promise.Future[struct{}]
	SavePreallocatedObject(ctx context.Context, tenant types.TenantCode, tag types.Tag) *promise.Future[struct{}]
	SavePreallocatedObjects(ctx context.Context, tenant types.TenantCode, tags []types.Tag) *promise.Future[struct{}]

	LoadTag(ctx context.Context, tenant types.TenantCode, objectType types.ObjectType, objectID uuid.UUID, objectVersion, tagVersion int) *promise.Future[types.Tag]
	LoadTags(ctx context.Context, tenant types.TenantCode, keys []TagKey) *promise.Future[[]types.Tag]
	LoadLatestTag(ctx context.Context, tenant types.TenantCode, objectType types.ObjectType, objectID uuid.UUID, objectVersion int) *promise.Future[types.Tag]
	LoadLatestVersion(ctx context.Context, tenant types.TenantCode, objectType types.ObjectType, objectID uuid.UUID) *promise.Future[types.Tag]
}

type Store struct {
	pool    dbmanager.Pool
	dialect dialect.Dialect
	exec    *promise.Pool
	tenants tenantCache
}

var _ MetadataStore = (*Store)(nil)

// New creates a Store over the given pool. Call Startup before serving.
func New(pool dbmanager.Pool, d dialect.Dialect, poolCfg config.PoolConfig) *Store {
	workers := poolCfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Store{
		pool:    pool,
		dialect: d,
		exec:    promise.NewPool(workers, poolCfg.QueueSize),
	}
}

// Startup loads the tenant map. The store accepts no calls before this
// completes.
func (s *Store) Startup(ctx context.Context) error {
	return s.loadTenantMap(ctx)
}

// Shutdown drains in-flight work and releases the connection pool.
func (s *Store) Shutdown(ctx context.Context) {
	s.exec.Shutdown()
	if err := s.pool.Close(); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to close connection pool")
	}
}

// DeploySchema applies the backend DDL. Administrative, used by tooling and
// tests; idempotent.
func (s *Store) DeploySchema(ctx context.Context) apperrors.Error {
	err := s.runInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range s.dialect.SchemaDDL() {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if aerr, ok := passthroughDomainError(err); ok {
			return aerr
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to deploy schema")
		return dalerror.ErrMetadataStore.Msg("failed to deploy schema").Err(err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Save operations
// -----------------------------------------------------------------------------

func (s *Store) SaveNewObject(ctx context.Context, tenant types.TenantCode, tag types.Tag) *promise.Future[struct{}] {
	return s.SaveNewObjects(ctx, tenant, []types.Tag{tag})
}

func (s *Store) SaveNewObjects(ctx context.Context, tenant types.TenantCode, tags []types.Tag) *promise.Future[struct{}] {
	if len(tags) == 0 {
		return promise.Resolved(struct{}{}, nil)
	}
	parts := separateTagParts(tags)
	return submitVoid(s, func() error { return s.saveNewObjects(ctx, tenant, parts) })
}

func (s *Store) saveNewObjects(ctx context.Context, tenant types.TenantCode, parts objectParts) apperrors.Error {
	if err := parts.validate(); err != nil {
		return err
	}
	err := s.runInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		tenantID, aerr := s.tenantID(tenant)
		if aerr != nil {
			return aerr
		}

		objectPk, err := s.writeObjectIdentities(ctx, tx, tenantID, parts.objectType, parts.objectID)
		if err != nil {
			return err
		}
		defPk, err := s.writeDefinitions(ctx, tx, tenantID, objectPk, parts.version, parts.definition)
		if err != nil {
			return err
		}
		tagPk, err := s.writeTagRecords(ctx, tx, tenantID, defPk, parts.tagVersion)
		if err != nil {
			return err
		}
		if err := s.writeTagAttrs(ctx, tx, tenantID, tagPk, parts.attrs); err != nil {
			return err
		}

		if err := s.writeLatestVersion(ctx, tx, tenantID, defPk); err != nil {
			return err
		}
		return s.writeLatestTag(ctx, tx, tenantID, tagPk)
	})
	if err == nil {
		return nil
	}
	if aerr, ok := passthroughDomainError(err); ok {
		return aerr
	}
	log.Ctx(ctx).Error().Err(err).Str("tenant", string(tenant)).Msg("failed to save new objects")
	switch dialect.Classify(s.dialect, err) {
	case dialect.CodeDuplicate:
		return dalerror.ErrDuplicateObjectID.Msg(duplicateMsg(parts)).Err(err)
	case dialect.CodeNoData, dialect.CodeWrongType, dialect.CodeUnknown:
		fallthrough
	default:
		return dalerror.ErrMetadataStore.Err(err)
	}
}

func (s *Store) SaveNewVersion(ctx context.Context, tenant types.TenantCode, tag types.Tag) *promise.Future[struct{}] {
	return s.SaveNewVersions(ctx, tenant, []types.Tag{tag})
}

func (s *Store) SaveNewVersions(ctx context.Context, tenant types.TenantCode, tags []types.Tag) *promise.Future[struct{}] {
	if len(tags) == 0 {
		return promise.Resolved(struct{}{}, nil)
	}
	parts := separateTagParts(tags)
	return submitVoid(s, func() error { return s.saveNewVersions(ctx, tenant, parts) })
}

func (s *Store) saveNewVersions(ctx context.Context, tenant types.TenantCode, parts objectParts) apperrors.Error {
	if err := parts.validate(); err != nil {
		return err
	}
	err := s.runInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.prepareMappingTable(ctx, tx); err != nil {
			return err
		}
		tenantID, aerr := s.tenantID(tenant)
		if aerr != nil {
			return aerr
		}

		stored, err := s.readObjectTypeByID(ctx, tx, tenantID, parts.objectID)
		if err != nil {
			return err
		}
		if err := checkObjectTypes(parts, stored); err != nil {
			return err
		}

		defPk, err := s.writeDefinitions(ctx, tx, tenantID, stored.keys, parts.version, parts.definition)
		if err != nil {
			return err
		}
		tagPk, err := s.writeTagRecords(ctx, tx, tenantID, defPk, parts.tagVersion)
		if err != nil {
			return err
		}
		if err := s.writeTagAttrs(ctx, tx, tenantID, tagPk, parts.attrs); err != nil {
			return err
		}

		if err := s.updateLatestVersion(ctx, tx, tenantID, stored.keys, parts.version); err != nil {
			return err
		}
		return s.writeLatestTag(ctx, tx, tenantID, tagPk)
	})
	if err == nil {
		return nil
	}
	if aerr, ok := passthroughDomainError(err); ok {
		return aerr
	}
	log.Ctx(ctx).Error().Err(err).Str("tenant", string(tenant)).Msg("failed to save new versions")
	switch dialect.Classify(s.dialect, err) {
	case dialect.CodeNoData:
		return dalerror.ErrMissingItem.Err(err)
	case dialect.CodeDuplicate:
		return dalerror.ErrDuplicateObjectID.Msg(duplicateMsg(parts)).Err(err)
	case dialect.CodeWrongType:
		return dalerror.ErrWrongItemType.Err(err)
	default:
		return dalerror.ErrMetadataStore.Err(err)
	}
}

func (s *Store) SaveNewTag(ctx context.Context, tenant types.TenantCode, tag types.Tag) *promise.Future[struct{}] {
	return s.SaveNewTags(ctx, tenant, []types.Tag{tag})
}

func (s *Store) SaveNewTags(ctx context.Context, tenant types.TenantCode, tags []types.Tag) *promise.Future[struct{}] {
	if len(tags) == 0 {
		return promise.Resolved(struct{}{}, nil)
	}
	parts := separateTagParts(tags)
	return submitVoid(s, func() error { return s.saveNewTags(ctx, tenant, parts) })
}

func (s *Store) saveNewTags(ctx context.Context, tenant types.TenantCode, parts objectParts) apperrors.Error {
	if err := parts.validate(); err != nil {
		return err
	}
	err := s.runInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.prepareMappingTable(ctx, tx); err != nil {
			return err
		}
		tenantID, aerr := s.tenantID(tenant)
		if aerr != nil {
			return aerr
		}

		stored, err := s.readObjectTypeByID(ctx, tx, tenantID, parts.objectID)
		if err != nil {
			return err
		}
		if err := checkObjectTypes(parts, stored); err != nil {
			return err
		}

		defPk, err := s.lookupDefinitionPk(ctx, tx, tenantID, stored.keys, parts.version)
		if err != nil {
			return err
		}
		tagPk, err := s.writeTagRecords(ctx, tx, tenantID, defPk, parts.tagVersion)
		if err != nil {
			return err
		}
		if err := s.writeTagAttrs(ctx, tx, tenantID, tagPk, parts.attrs); err != nil {
			return err
		}

		return s.updateLatestTag(ctx, tx, tenantID, defPk, parts.tagVersion)
	})
	if err == nil {
		return nil
	}
	if aerr, ok := passthroughDomainError(err); ok {
		return aerr
	}
	log.Ctx(ctx).Error().Err(err).Str("tenant", string(tenant)).Msg("failed to save new tags")
	switch dialect.Classify(s.dialect, err) {
	case dialect.CodeNoData:
		return dalerror.ErrMissingItem.Err(err)
	case dialect.CodeDuplicate:
		return dalerror.ErrDuplicateObjectID.Msg(duplicateMsg(parts)).Err(err)
	case dialect.CodeWrongType:
		return dalerror.ErrWrongItemType.Err(err)
	default:
		return dalerror.ErrMetadataStore.Err(err)
	}
}

func (s *Store) PreallocateObjectID(ctx context.Context, tenant types.TenantCode, objectType types.ObjectType, objectID uuid.UUID) *promise.Future[struct{}] {
	return s.PreallocateObjectIDs(ctx, tenant, []ObjectRef{{ObjectType: objectType, ObjectID: objectID}})
}

func (s *Store) PreallocateObjectIDs(ctx context.Context, tenant types.TenantCode, refs []ObjectRef) *promise.Future[struct{}] {
	if len(refs) == 0 {
		return promise.Resolved(struct{}{}, nil)
	}
	parts := separateRefParts(refs)
	return submitVoid(s, func() error { return s.preallocateObjectIDs(ctx, tenant, parts) })
}

func (s *Store) preallocateObjectIDs(ctx context.Context, tenant types.TenantCode, parts objectParts) apperrors.Error {
	if err := parts.validate(); err != nil {
		return err
	}
	err := s.runInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		tenantID, aerr := s.tenantID(tenant)
		if aerr != nil {
			return aerr
		}
		_, err := s.writeObjectIdentities(ctx, tx, tenantID, parts.objectType, parts.objectID)
		return err
	})
	if err == nil {
		return nil
	}
	if aerr, ok := passthroughDomainError(err); ok {
		return aerr
	}
	log.Ctx(ctx).Error().Err(err).Str("tenant", string(tenant)).Msg("failed to preallocate object ids")
	switch dialect.Classify(s.dialect, err) {
	case dialect.CodeDuplicate:
		return dalerror.ErrDuplicateObjectID.Msg(duplicateMsg(parts)).Err(err)
	default:
		return dalerror.ErrMetadataStore.Err(err)
	}
}

func (s *Store) SavePreallocatedObject(ctx context.Context, tenant types.TenantCode, tag types.Tag) *promise.Future[struct{}] {
	return s.SavePreallocatedObjects(ctx, tenant, []types.Tag{tag})
}

func (s *Store) SavePreallocatedObjects(ctx context.Context, tenant types.TenantCode, tags []types.Tag) *promise.Future[struct{}] {
	if len(tags) == 0 {
		return promise.Resolved(struct{}{}, nil)
	}
	parts := separateTagParts(tags)
	return submitVoid(s, func() error { return s.savePreallocatedObjects(ctx, tenant, parts) })
}

func (s *Store) savePreallocatedObjects(ctx context.Context, tenant types.TenantCode, parts objectParts) apperrors.Error {
	if err := parts.validate(); err != nil {
		return err
	}
	err := s.runInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.prepareMappingTable(ctx, tx); err != nil {
			return err
		}
		tenantID, aerr := s.tenantID(tenant)
		if aerr != nil {
			return aerr
		}

		stored, err := s.readObjectTypeByID(ctx, tx, tenantID, parts.objectID)
		if err != nil {
			return err
		}
		if err := checkObjectTypes(parts, stored); err != nil {
			return err
		}

		defPk, err := s.writeDefinitions(ctx, tx, tenantID, stored.keys, parts.version, parts.definition)
		if err != nil {
			return err
		}
		tagPk, err := s.writeTagRecords(ctx, tx, tenantID, defPk, parts.tagVersion)
		if err != nil {
			return err
		}
		if err := s.writeTagAttrs(ctx, tx, tenantID, tagPk, parts.attrs); err != nil {
			return err
		}

		if err := s.writeLatestVersion(ctx, tx, tenantID, defPk); err != nil {
			return err
		}
		return s.writeLatestTag(ctx, tx, tenantID, tagPk)
	})
	if err == nil {
		return nil
	}
	if aerr, ok := passthroughDomainError(err); ok {
		return aerr
	}
	log.Ctx(ctx).Error().Err(err).Str("tenant", string(tenant)).Msg("failed to save preallocated objects")
	// The finer split between "identity was never preallocated" and "already
	// has content" stays within the generic three-way classification.
	switch dialect.Classify(s.dialect, err) {
	case dialect.CodeNoData:
		return dalerror.ErrMissingItem.Err(err)
	case dialect.CodeDuplicate:
		return dalerror.ErrDuplicateObjectID.Msg(duplicateMsg(parts)).Err(err)
	case dialect.CodeWrongType:
		return dalerror.ErrWrongItemType.Err(err)
	default:
		return dalerror.ErrMetadataStore.Err(err)
	}
}

// -----------------------------------------------------------------------------
// Load operations
// -----------------------------------------------------------------------------

func (s *Store) LoadTag(ctx context.Context, tenant types.TenantCode, objectType types.ObjectType, objectID uuid.UUID, objectVersion, tagVersion int) *promise.Future[types.Tag] {
	parts := assembleKeyParts([]TagKey{{
		ObjectType:    objectType,
		ObjectID:      objectID,
		ObjectVersion: objectVersion,
		TagVersion:    tagVersion,
	}})
	return promise.Submit(s.exec, func() (types.Tag, error) {
		tags, err := s.loadTags(ctx, tenant, parts)
		if err != nil {
			return types.Tag{}, err
		}
		return tags[0], nil
	})
}

func (s *Store) LoadTags(ctx context.Context, tenant types.TenantCode, keys []TagKey) *promise.Future[[]types.Tag] {
	if len(keys) == 0 {
		return promise.Resolved([]types.Tag{}, nil)
	}
	parts := assembleKeyParts(keys)
	return promise.Submit(s.exec, func() ([]types.Tag, error) {
		return s.loadTags(ctx, tenant, parts)
	})
}

func (s *Store) LoadLatestTag(ctx context.Context, tenant types.TenantCode, objectType types.ObjectType, objectID uuid.UUID, objectVersion int) *promise.Future[types.Tag] {
	return s.LoadTag(ctx, tenant, objectType, objectID, objectVersion, types.LatestTag)
}

func (s *Store) LoadLatestVersion(ctx context.Context, tenant types.TenantCode, objectType types.ObjectType, objectID uuid.UUID) *promise.Future[types.Tag] {
	return s.LoadTag(ctx, tenant, objectType, objectID, types.LatestVersion, types.LatestTag)
}

func (s *Store) loadTags(ctx context.Context, tenant types.TenantCode, parts objectParts) ([]types.Tag, apperrors.Error) {
	if err := parts.validate(); err != nil {
		return nil, err
	}
	var result []types.Tag
	err := s.runInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.prepareMappingTable(ctx, tx); err != nil {
			return err
		}
		tenantID, aerr := s.tenantID(tenant)
		if aerr != nil {
			return aerr
		}

		stored, err := s.readObjectTypeByID(ctx, tx, tenantID, parts.objectID)
		if err != nil {
			return err
		}
		defs, err := s.readDefinitionByVersion(ctx, tx, tenantID, stored.keys, parts.version)
		if err != nil {
			return err
		}
		tagRecords, err := s.readTagRecordByVersion(ctx, tx, tenantID, defs.keys, parts.tagVersion)
		if err != nil {
			return err
		}
		attrs, err := s.readTagAttrs(ctx, tx, tenantID, tagRecords.keys)
		if err != nil {
			return err
		}

		result = buildTags(parts, defs.versions, tagRecords.tagVersions, defs.definition, attrs)
		return nil
	})
	if err == nil {
		return result, nil
	}
	if aerr, ok := passthroughDomainError(err); ok {
		return nil, aerr
	}
	log.Ctx(ctx).Warn().Err(err).Str("tenant", string(tenant)).Msg("failed to load tags")
	switch dialect.Classify(s.dialect, err) {
	case dialect.CodeNoData:
		return nil, dalerror.ErrMissingItem.Err(err)
	case dialect.CodeDuplicate, dialect.CodeWrongType, dialect.CodeUnknown:
		fallthrough
	default:
		return nil, dalerror.ErrMetadataStore.Err(err)
	}
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func submitVoid(s *Store, fn func() error) *promise.Future[struct{}] {
	return promise.Submit(s.exec, func() (struct{}, error) {
		if err := fn(); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})
}

// checkObjectTypes compares the caller's declared types against the stored
// identity rows. A mismatch is detected in memory, before any constraint can
// fire.
func checkObjectTypes(parts objectParts, stored keyedTypes) error {
	for i := range parts.objectType {
		if parts.objectType[i] != stored.objectTypes[i] {
			return dalerror.ErrWrongItemType.Msg(fmt.Sprintf(
				"object %s has type %s, caller declared %s",
				parts.objectID[i], stored.objectTypes[i], parts.objectType[i]))
		}
	}
	return nil
}

func duplicateMsg(parts objectParts) string {
	if parts.len() == 1 {
		return fmt.Sprintf("duplicate object id %s", parts.objectID[0])
	}
	return fmt.Sprintf("duplicate object id in batch of %d", parts.len())
}
