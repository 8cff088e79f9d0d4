package dal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/metastack/metastore/internal/common/apperrors"
	"github.com/metastack/metastore/internal/metasrv/dal/dalerror"
	"github.com/metastack/metastore/internal/metasrv/dal/dialect"
	"github.com/metastack/metastore/internal/metasrv/dal/models"
	"github.com/metastack/metastore/pkg/types"
)

// tenantCache is the code-to-id mapping loaded once at startup. It is
// read-only on the hot path; administrative tenant changes happen outside the
// DAL write path and require a reload.
type tenantCache struct {
	mu     sync.RWMutex
	byCode map[types.TenantCode]int
}

func (c *tenantCache) replace(byCode map[types.TenantCode]int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byCode = byCode
}

func (c *tenantCache) lookup(code types.TenantCode) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byCode[code]
	return id, ok
}

// loadTenantMap scans the tenant table into the in-memory cache. Called once
// during Startup, before the store accepts any calls.
func (s *Store) loadTenantMap(ctx context.Context) error {
	conn, err := s.pool.Conn(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to obtain connection")
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, `SELECT tenant_id, tenant_code FROM tenant`)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to load tenant map")
		return errors.Wrap(err, "failed to load tenant map")
	}
	defer rows.Close()

	byCode := make(map[types.TenantCode]int)
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.TenantID, &t.TenantCode); err != nil {
			return errors.Wrap(err, "failed to scan tenant row")
		}
		byCode[types.TenantCode(t.TenantCode)] = t.TenantID
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "error after scanning tenants")
	}

	s.tenants.replace(byCode)
	log.Ctx(ctx).Info().Int("tenant_count", len(byCode)).Msg("tenant map loaded")
	return nil
}

// tenantID resolves a tenant code against the startup cache; no database
// access on the hot path.
func (s *Store) tenantID(code types.TenantCode) (int, apperrors.Error) {
	id, ok := s.tenants.lookup(code)
	if !ok {
		return 0, dalerror.ErrUnknownTenant.Msg(fmt.Sprintf("unknown tenant code: %s", code))
	}
	return id, nil
}

// CreateTenant registers a tenant code, allocating the next internal id. This
// is an administrative operation, not part of the DAL hot path; it does not
// touch the startup cache.
func (s *Store) CreateTenant(ctx context.Context, code types.TenantCode) apperrors.Error {
	if code == "" {
		return dalerror.ErrInvalidInput.Msg("tenant code must not be empty")
	}

	err := s.runInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		t := models.Tenant{TenantCode: string(code)}
		row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(tenant_id), 0) + 1 FROM tenant`)
		if err := row.Scan(&t.TenantID); err != nil {
			return errors.Wrap(err, "failed to allocate tenant id")
		}
		query := fmt.Sprintf(`INSERT INTO tenant (tenant_id, tenant_code) VALUES (%s, %s)`,
			s.dialect.Placeholder(1), s.dialect.Placeholder(2))
		if _, err := tx.ExecContext(ctx, query, t.TenantID, t.TenantCode); err != nil {
			return errors.Wrap(err, "failed to insert tenant")
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if aerr, ok := passthroughDomainError(err); ok {
		return aerr
	}
	log.Ctx(ctx).Error().Err(err).Str("tenant_code", string(code)).Msg("failed to create tenant")
	switch dialect.Classify(s.dialect, err) {
	case dialect.CodeDuplicate:
		return dalerror.ErrDuplicateObjectID.Msg(fmt.Sprintf("tenant code already exists: %s", code)).Err(err)
	default:
		return dalerror.ErrMetadataStore.Err(err)
	}
}

// EnsureTenants registers each code, skipping ones already present. Used by
// deployment tooling to apply the configured tenant list.
func (s *Store) EnsureTenants(ctx context.Context, codes []string) apperrors.Error {
	for _, code := range codes {
		if err := s.CreateTenant(ctx, types.TenantCode(code)); err != nil {
			if errors.Is(err, dalerror.ErrDuplicateObjectID) {
				continue
			}
			return err
		}
	}
	return nil
}

// ListTenants returns the registered tenants, for administrative tooling.
func (s *Store) ListTenants(ctx context.Context) ([]types.TenantCode, apperrors.Error) {
	conn, err := s.pool.Conn(ctx)
	if err != nil {
		return nil, dalerror.ErrMetadataStore.Err(err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, `SELECT tenant_code FROM tenant ORDER BY tenant_id`)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to list tenants")
		return nil, dalerror.ErrMetadataStore.Err(err)
	}
	defer rows.Close()

	var codes []types.TenantCode
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, dalerror.ErrMetadataStore.Err(err)
		}
		codes = append(codes, types.TenantCode(code))
	}
	if err := rows.Err(); err != nil {
		return nil, dalerror.ErrMetadataStore.Err(err)
	}
	return codes, nil
}
