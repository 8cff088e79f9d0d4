package dal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metastack/metastore/internal/metasrv/config"
	"github.com/metastack/metastore/internal/metasrv/dal/dalerror"
	"github.com/metastack/metastore/internal/metasrv/dal/dbmanager"
	"github.com/metastack/metastore/internal/metasrv/dal/dialect"
	"github.com/metastack/metastore/pkg/types"
)

const testTenant = types.TenantCode("acme")

// newTestStore brings up a store over a file-backed sqlite database, deploys
// the schema and registers the test tenant.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	cfg := &config.ConfigParam{
		Backend: config.BackendSqlite,
		Sqlite: config.SqliteConfig{
			Path: filepath.Join(t.TempDir(), "metastore.db"),
		},
		Pool: config.PoolConfig{
			MaxConns:  4,
			Workers:   4,
			QueueSize: 16,
		},
	}

	pool, err := dbmanager.New(ctx, cfg)
	require.NoError(t, err)

	d, err := dialect.New(cfg.Backend)
	require.NoError(t, err)

	s := New(pool, d, cfg.Pool)
	t.Cleanup(func() { s.Shutdown(ctx) })

	require.NoError(t, s.DeploySchema(ctx))
	require.NoError(t, s.CreateTenant(ctx, testTenant))
	require.NoError(t, s.Startup(ctx))
	return s
}

func newTag(objectType types.ObjectType, id uuid.UUID, version, tagVersion int, attrs map[string]types.Value) types.Tag {
	return types.Tag{
		Header: types.ObjectHeader{
			ObjectType:    objectType,
			ObjectID:      id,
			ObjectVersion: version,
		},
		TagVersion: tagVersion,
		Attrs:      attrs,
		Definition: []byte(`{"schema":"v1"}`),
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	tag := newTag(types.ObjectTypeData, id, 1, 1, map[string]types.Value{
		"owner": types.StringValue("alice"),
	})

	_, err := s.SaveNewObject(ctx, testTenant, tag).Wait(ctx)
	require.NoError(t, err)

	loaded, err := s.LoadLatestVersion(ctx, testTenant, types.ObjectTypeData, id).Wait(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, loaded.Header.ObjectVersion)
	assert.Equal(t, 1, loaded.TagVersion)
	assert.Equal(t, types.StringValue("alice"), loaded.Attrs["owner"])
	assert.True(t, tag.Equal(loaded))
}

func TestAttrTypesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := uuid.New()
	tag := newTag(types.ObjectTypeModel, id, 1, 1, map[string]types.Value{
		"trained":  types.BoolValue(true),
		"epochs":   types.IntValue(40),
		"loss":     types.FloatValue(0.125),
		"approver": types.StringValue("bob"),
	})

	_, err := s.SaveNewObject(ctx, testTenant, tag).Wait(ctx)
	require.NoError(t, err)

	loaded, err := s.LoadLatestVersion(ctx, testTenant, types.ObjectTypeModel, id).Wait(ctx)
	require.NoError(t, err)
	assert.True(t, tag.Equal(loaded))
}

func TestDuplicateObjectID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := uuid.New()
	tag := newTag(types.ObjectTypeData, id, 1, 1, nil)

	_, err := s.SaveNewObject(ctx, testTenant, tag).Wait(ctx)
	require.NoError(t, err)

	_, err = s.SaveNewObject(ctx, testTenant, tag).Wait(ctx)
	assert.ErrorIs(t, err, dalerror.ErrDuplicateObjectID)
}

func TestBatchFailureIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	existing := uuid.New()
	_, err := s.SaveNewObject(ctx, testTenant, newTag(types.ObjectTypeData, existing, 1, 1, nil)).Wait(ctx)
	require.NoError(t, err)

	fresh := uuid.New()
	batch := []types.Tag{
		newTag(types.ObjectTypeData, fresh, 1, 1, nil),
		newTag(types.ObjectTypeData, existing, 1, 1, nil), // collides
	}
	_, err = s.SaveNewObjects(ctx, testTenant, batch).Wait(ctx)
	require.ErrorIs(t, err, dalerror.ErrDuplicateObjectID)

	// The first item of the failed batch must not have been persisted.
	_, err = s.LoadLatestVersion(ctx, testTenant, types.ObjectTypeData, fresh).Wait(ctx)
	assert.ErrorIs(t, err, dalerror.ErrMissingItem)
}

func TestSaveNewVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := uuid.New()
	v1 := newTag(types.ObjectTypeData, id, 1, 1, map[string]types.Value{
		"rev": types.IntValue(1),
	})
	_, err := s.SaveNewObject(ctx, testTenant, v1).Wait(ctx)
	require.NoError(t, err)

	v2 := newTag(types.ObjectTypeData, id, 2, 1, map[string]types.Value{
		"rev": types.IntValue(2),
	})
	_, err = s.SaveNewVersion(ctx, testTenant, v2).Wait(ctx)
	require.NoError(t, err)

	latest, err := s.LoadLatestVersion(ctx, testTenant, types.ObjectTypeData, id).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Header.ObjectVersion)
	assert.Equal(t, types.IntValue(2), latest.Attrs["rev"])

	// The prior version stays reachable by explicit number.
	old, err := s.LoadTag(ctx, testTenant, types.ObjectTypeData, id, 1, 1).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, old.Header.ObjectVersion)
	assert.Equal(t, types.IntValue(1), old.Attrs["rev"])
}

func TestSaveNewVersionMissingObject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tag := newTag(types.ObjectTypeData, uuid.New(), 2, 1, nil)
	_, err := s.SaveNewVersion(ctx, testTenant, tag).Wait(ctx)
	assert.ErrorIs(t, err, dalerror.ErrMissingItem)
}

func TestSaveNewVersionWrongType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := uuid.New()
	_, err := s.SaveNewObject(ctx, testTenant, newTag(types.ObjectTypeData, id, 1, 1, nil)).Wait(ctx)
	require.NoError(t, err)

	wrong := newTag(types.ObjectTypeModel, id, 2, 1, nil)
	_, err = s.SaveNewVersion(ctx, testTenant, wrong).Wait(ctx)
	require.ErrorIs(t, err, dalerror.ErrWrongItemType)

	// Rejected write leaves the latest pointer untouched.
	latest, err := s.LoadLatestVersion(ctx, testTenant, types.ObjectTypeData, id).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, latest.Header.ObjectVersion)
}

func TestTagVersionSequence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := uuid.New()
	_, err := s.SaveNewObject(ctx, testTenant, newTag(types.ObjectTypeFlow, id, 1, 1, map[string]types.Value{
		"state": types.StringValue("draft"),
	})).Wait(ctx)
	require.NoError(t, err)

	for i, state := range []string{"review", "approved"} {
		tag := newTag(types.ObjectTypeFlow, id, 1, i+2, map[string]types.Value{
			"state": types.StringValue(state),
		})
		_, err := s.SaveNewTag(ctx, testTenant, tag).Wait(ctx)
		require.NoError(t, err)
	}

	latest, err := s.LoadLatestTag(ctx, testTenant, types.ObjectTypeFlow, id, 1).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, latest.TagVersion)
	assert.Equal(t, types.StringValue("approved"), latest.Attrs["state"])

	middle, err := s.LoadTag(ctx, testTenant, types.ObjectTypeFlow, id, 1, 2).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.StringValue("review"), middle.Attrs["state"])
}

func TestSaveNewTagMissingVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := uuid.New()
	_, err := s.SaveNewObject(ctx, testTenant, newTag(types.ObjectTypeData, id, 1, 1, nil)).Wait(ctx)
	require.NoError(t, err)

	// Tag on a version that was never written.
	tag := newTag(types.ObjectTypeData, id, 7, 2, nil)
	_, err = s.SaveNewTag(ctx, testTenant, tag).Wait(ctx)
	assert.ErrorIs(t, err, dalerror.ErrMissingItem)
}

func TestPreallocateFlow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := uuid.New()
	_, err := s.PreallocateObjectID(ctx, testTenant, types.ObjectTypeJob, id).Wait(ctx)
	require.NoError(t, err)

	// Identity exists but carries no content yet.
	_, err = s.LoadLatestVersion(ctx, testTenant, types.ObjectTypeJob, id).Wait(ctx)
	require.ErrorIs(t, err, dalerror.ErrMissingItem)

	// Preallocating the same id twice is a duplicate.
	_, err = s.PreallocateObjectID(ctx, testTenant, types.ObjectTypeJob, id).Wait(ctx)
	require.ErrorIs(t, err, dalerror.ErrDuplicateObjectID)

	tag := newTag(types.ObjectTypeJob, id, 1, 1, map[string]types.Value{
		"status": types.StringValue("queued"),
	})
	_, err = s.SavePreallocatedObject(ctx, testTenant, tag).Wait(ctx)
	require.NoError(t, err)

	loaded, err := s.LoadLatestVersion(ctx, testTenant, types.ObjectTypeJob, id).Wait(ctx)
	require.NoError(t, err)
	assert.True(t, tag.Equal(loaded))
}

func TestSavePreallocatedWrongType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := uuid.New()
	_, err := s.PreallocateObjectID(ctx, testTenant, types.ObjectTypeJob, id).Wait(ctx)
	require.NoError(t, err)

	tag := newTag(types.ObjectTypeFile, id, 1, 1, nil)
	_, err = s.SavePreallocatedObject(ctx, testTenant, tag).Wait(ctx)
	assert.ErrorIs(t, err, dalerror.ErrWrongItemType)
}

func TestBatchLoadPreservesOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	batch := make([]types.Tag, len(ids))
	for i, id := range ids {
		batch[i] = newTag(types.ObjectTypeData, id, 1, 1, map[string]types.Value{
			"n": types.IntValue(int64(i)),
		})
	}
	_, err := s.SaveNewObjects(ctx, testTenant, batch).Wait(ctx)
	require.NoError(t, err)

	// Request in reverse order; results must come back in request order.
	keys := []TagKey{
		{ObjectType: types.ObjectTypeData, ObjectID: ids[2], ObjectVersion: types.LatestVersion, TagVersion: types.LatestTag},
		{ObjectType: types.ObjectTypeData, ObjectID: ids[0], ObjectVersion: types.LatestVersion, TagVersion: types.LatestTag},
		{ObjectType: types.ObjectTypeData, ObjectID: ids[1], ObjectVersion: types.LatestVersion, TagVersion: types.LatestTag},
	}
	loaded, err := s.LoadTags(ctx, testTenant, keys).Wait(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	assert.Equal(t, types.IntValue(2), loaded[0].Attrs["n"])
	assert.Equal(t, types.IntValue(0), loaded[1].Attrs["n"])
	assert.Equal(t, types.IntValue(1), loaded[2].Attrs["n"])
}

func TestBatchLoadMissingItemFailsWhole(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := uuid.New()
	_, err := s.SaveNewObject(ctx, testTenant, newTag(types.ObjectTypeData, id, 1, 1, nil)).Wait(ctx)
	require.NoError(t, err)

	keys := []TagKey{
		{ObjectType: types.ObjectTypeData, ObjectID: id, ObjectVersion: 1, TagVersion: 1},
		{ObjectType: types.ObjectTypeData, ObjectID: uuid.New(), ObjectVersion: 1, TagVersion: 1},
	}
	_, err = s.LoadTags(ctx, testTenant, keys).Wait(ctx)
	assert.ErrorIs(t, err, dalerror.ErrMissingItem)
}

func TestEmptyBatches(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveNewObjects(ctx, testTenant, nil).Wait(ctx)
	assert.NoError(t, err)

	loaded, err := s.LoadTags(ctx, testTenant, nil).Wait(ctx)
	assert.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestUnknownTenant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tag := newTag(types.ObjectTypeData, uuid.New(), 1, 1, nil)
	_, err := s.SaveNewObject(ctx, "nobody", tag).Wait(ctx)
	assert.ErrorIs(t, err, dalerror.ErrUnknownTenant)

	_, err = s.LoadLatestVersion(ctx, "nobody", types.ObjectTypeData, uuid.New()).Wait(ctx)
	assert.ErrorIs(t, err, dalerror.ErrUnknownTenant)
}

func TestInvalidInputRejectedBeforeWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tag := newTag(types.ObjectTypeData, uuid.Nil, 1, 1, nil)
	_, err := s.SaveNewObject(ctx, testTenant, tag).Wait(ctx)
	assert.ErrorIs(t, err, dalerror.ErrInvalidInput)

	tag = newTag("BOGUS", uuid.New(), 1, 1, nil)
	_, err = s.SaveNewObject(ctx, testTenant, tag).Wait(ctx)
	assert.ErrorIs(t, err, dalerror.ErrInvalidInput)
}

func TestEnsureTenantsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// "acme" already exists from setup; EnsureTenants must skip it.
	require.NoError(t, s.EnsureTenants(ctx, []string{"acme", "globex"}))
	require.NoError(t, s.EnsureTenants(ctx, []string{"acme", "globex"}))

	codes, err := s.ListTenants(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.TenantCode{"acme", "globex"}, codes)
}

func TestCreateTenantDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.CreateTenant(ctx, testTenant)
	assert.ErrorIs(t, err, dalerror.ErrDuplicateObjectID)

	codes, err := s.ListTenants(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.TenantCode{testTenant}, codes)
}
