package dialect

import (
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
)

// PostgreSQL error codes recognized by the classifier.
const (
	pgCodeUniqueViolation     = "23505"
	pgCodeForeignKeyViolation = "23503"
	pgCodeNoData              = "02000"
)

type postgresDialect struct{}

func (postgresDialect) Name() string {
	return "postgresql"
}

func (postgresDialect) Placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func (postgresDialect) MapError(err error) ErrorCode {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return CodeUnknown
	}
	switch pgErr.Code {
	case pgCodeUniqueViolation:
		return CodeDuplicate
	case pgCodeForeignKeyViolation, pgCodeNoData:
		return CodeNoData
	}
	return CodeUnknown
}

func (postgresDialect) MappingTableDDL() string {
	return `
		CREATE TEMPORARY TABLE IF NOT EXISTS key_mapping (
			ordinal INT NOT NULL,
			id UUID,
			pk BIGINT,
			version INT
		) ON COMMIT DROP`
}

func (postgresDialect) SchemaDDL() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS tenant (
			tenant_id SMALLINT NOT NULL,
			tenant_code VARCHAR(32) NOT NULL,
			PRIMARY KEY (tenant_id),
			CONSTRAINT tenant_code_uniq UNIQUE (tenant_code)
		)`,
		`CREATE TABLE IF NOT EXISTS object_id (
			pk BIGSERIAL PRIMARY KEY,
			tenant_id SMALLINT NOT NULL REFERENCES tenant (tenant_id),
			object_type VARCHAR(16) NOT NULL,
			object_uuid UUID NOT NULL,
			CONSTRAINT object_id_uniq UNIQUE (tenant_id, object_uuid)
		)`,
		`CREATE TABLE IF NOT EXISTS object_definition (
			pk BIGSERIAL PRIMARY KEY,
			tenant_id SMALLINT NOT NULL,
			object_fk BIGINT NOT NULL REFERENCES object_id (pk),
			object_version INT NOT NULL CHECK (object_version > 0),
			definition BYTEA NOT NULL,
			object_is_latest BOOLEAN NOT NULL DEFAULT FALSE,
			CONSTRAINT object_definition_uniq UNIQUE (tenant_id, object_fk, object_version)
		)`,
		`CREATE TABLE IF NOT EXISTS tag (
			pk BIGSERIAL PRIMARY KEY,
			tenant_id SMALLINT NOT NULL,
			definition_fk BIGINT NOT NULL REFERENCES object_definition (pk),
			tag_version INT NOT NULL CHECK (tag_version > 0),
			tag_is_latest BOOLEAN NOT NULL DEFAULT FALSE,
			CONSTRAINT tag_uniq UNIQUE (tenant_id, definition_fk, tag_version)
		)`,
		`CREATE TABLE IF NOT EXISTS tag_attr (
			tenant_id SMALLINT NOT NULL,
			tag_fk BIGINT NOT NULL REFERENCES tag (pk),
			attr_name VARCHAR(256) NOT NULL,
			attr_type VARCHAR(16) NOT NULL,
			attr_value_boolean BOOLEAN,
			attr_value_integer BIGINT,
			attr_value_float DOUBLE PRECISION,
			attr_value_string TEXT,
			CONSTRAINT tag_attr_uniq UNIQUE (tenant_id, tag_fk, attr_name)
		)`,
	}
}
