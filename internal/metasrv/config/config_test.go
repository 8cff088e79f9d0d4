package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metastore.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	require.NoError(t, LoadConfig(""))
	c := Config()
	require.NotNil(t, c)
	assert.Equal(t, BackendPostgres, c.Backend)
	assert.Greater(t, c.Pool.Workers, 0)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfigFile(t, `
backend = "sqlite"
tenants = ["acme", "globex"]

[sqlite]
path = "/var/lib/metastore/meta.db"

[pool]
max_conns = 8
workers = 4
queue_size = 32
`)
	require.NoError(t, LoadConfig(path))
	c := Config()
	assert.Equal(t, BackendSqlite, c.Backend)
	assert.Equal(t, "/var/lib/metastore/meta.db", c.Sqlite.Path)
	assert.Equal(t, 8, c.Pool.MaxConns)
	assert.Equal(t, 4, c.Pool.Workers)
	assert.Equal(t, []string{"acme", "globex"}, c.TenantList)
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	path := writeConfigFile(t, `backend = "oracle"`)
	assert.Error(t, LoadConfig(path))
}

func TestLoadConfigMissingFile(t *testing.T) {
	assert.Error(t, LoadConfig(filepath.Join(t.TempDir(), "absent.toml")))
}
