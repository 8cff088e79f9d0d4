package dialect

import (
	"errors"
)

// SQLite extended result codes recognized by the classifier. The modernc
// driver reports these through an error type exposing Code().
const (
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
	sqliteConstraintForeignKey = 787
)

// sqliteCoder is implemented by modernc.org/sqlite errors.
type sqliteCoder interface {
	Code() int
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string {
	return "sqlite"
}

func (sqliteDialect) Placeholder(n int) string {
	return "?"
}

func (sqliteDialect) MapError(err error) ErrorCode {
	var coded sqliteCoder
	if !errors.As(err, &coded) {
		return CodeUnknown
	}
	switch coded.Code() {
	case sqliteConstraintUnique, sqliteConstraintPrimaryKey:
		return CodeDuplicate
	case sqliteConstraintForeignKey:
		return CodeNoData
	}
	return CodeUnknown
}

func (sqliteDialect) MappingTableDDL() string {
	return `
		CREATE TEMP TABLE IF NOT EXISTS key_mapping (
			ordinal INTEGER NOT NULL,
			id TEXT,
			pk INTEGER,
			version INTEGER
		)`
}

func (sqliteDialect) SchemaDDL() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS tenant (
			tenant_id INTEGER NOT NULL PRIMARY KEY,
			tenant_code TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS object_id (
			pk INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id INTEGER NOT NULL REFERENCES tenant (tenant_id),
			object_type TEXT NOT NULL,
			object_uuid TEXT NOT NULL,
			UNIQUE (tenant_id, object_uuid)
		)`,
		`CREATE TABLE IF NOT EXISTS object_definition (
			pk INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id INTEGER NOT NULL,
			object_fk INTEGER NOT NULL REFERENCES object_id (pk),
			object_version INTEGER NOT NULL CHECK (object_version > 0),
			definition BLOB NOT NULL,
			object_is_latest BOOLEAN NOT NULL DEFAULT 0,
			UNIQUE (tenant_id, object_fk, object_version)
		)`,
		`CREATE TABLE IF NOT EXISTS tag (
			pk INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id INTEGER NOT NULL,
			definition_fk INTEGER NOT NULL REFERENCES object_definition (pk),
			tag_version INTEGER NOT NULL CHECK (tag_version > 0),
			tag_is_latest BOOLEAN NOT NULL DEFAULT 0,
			UNIQUE (tenant_id, definition_fk, tag_version)
		)`,
		`CREATE TABLE IF NOT EXISTS tag_attr (
			tenant_id INTEGER NOT NULL,
			tag_fk INTEGER NOT NULL REFERENCES tag (pk),
			attr_name TEXT NOT NULL,
			attr_type TEXT NOT NULL,
			attr_value_boolean BOOLEAN,
			attr_value_integer INTEGER,
			attr_value_float REAL,
			attr_value_string TEXT,
			UNIQUE (tenant_id, tag_fk, attr_name)
		)`,
	}
}
