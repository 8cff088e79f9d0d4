package dialect

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/jackc/pgconn"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSqliteErr mimics the modernc driver error surface.
type fakeSqliteErr struct {
	code int
}

func (e *fakeSqliteErr) Error() string {
	return fmt.Sprintf("sqlite error %d", e.code)
}

func (e *fakeSqliteErr) Code() int {
	return e.code
}

func TestPostgresMapError(t *testing.T) {
	d, err := New("postgresql")
	require.NoError(t, err)

	cases := []struct {
		code string
		want ErrorCode
	}{
		{"23505", CodeDuplicate},
		{"23503", CodeNoData},
		{"02000", CodeNoData},
		{"42601", CodeUnknown},
	}
	for _, c := range cases {
		pgErr := &pgconn.PgError{Code: c.code}
		assert.Equal(t, c.want, d.MapError(pgErr), "code %s", c.code)
		// wrapped errors must classify the same way
		assert.Equal(t, c.want, d.MapError(errors.Wrap(pgErr, "exec failed")))
	}

	assert.Equal(t, CodeUnknown, d.MapError(errors.New("not a pg error")))
}

func TestSqliteMapError(t *testing.T) {
	d, err := New("sqlite")
	require.NoError(t, err)

	cases := []struct {
		code int
		want ErrorCode
	}{
		{2067, CodeDuplicate},
		{1555, CodeDuplicate},
		{787, CodeNoData},
		{1, CodeUnknown},
	}
	for _, c := range cases {
		sqErr := &fakeSqliteErr{code: c.code}
		assert.Equal(t, c.want, d.MapError(sqErr), "code %d", c.code)
		assert.Equal(t, c.want, d.MapError(errors.Wrap(sqErr, "exec failed")))
	}

	assert.Equal(t, CodeUnknown, d.MapError(errors.New("not a sqlite error")))
}

func TestClassifySentinels(t *testing.T) {
	for _, backend := range []string{"postgresql", "sqlite"} {
		d, err := New(backend)
		require.NoError(t, err)

		assert.Equal(t, CodeNoData, Classify(d, ErrNoData))
		assert.Equal(t, CodeNoData, Classify(d, errors.Wrap(ErrNoData, "read failed")))
		assert.Equal(t, CodeNoData, Classify(d, sql.ErrNoRows))
		assert.Equal(t, CodeWrongType, Classify(d, ErrWrongType))
		assert.Equal(t, CodeUnknown, Classify(d, errors.New("disk on fire")))
	}
}

func TestPlaceholder(t *testing.T) {
	pg, err := New("postgresql")
	require.NoError(t, err)
	assert.Equal(t, "$1", pg.Placeholder(1))
	assert.Equal(t, "$7", pg.Placeholder(7))

	sq, err := New("sqlite")
	require.NoError(t, err)
	assert.Equal(t, "?", sq.Placeholder(1))
	assert.Equal(t, "?", sq.Placeholder(7))
}

func TestUnsupportedBackend(t *testing.T) {
	_, err := New("oracle")
	assert.Error(t, err)
}
