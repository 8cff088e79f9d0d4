// Package models holds the row structs for the metadata tables. Surrogate
// keys (pk columns) join the tables together and are never exposed to
// callers.
package models

import (
	"github.com/google/uuid"

	"github.com/metastack/metastore/pkg/types"
)

/*
  Table "tenant"
    tenant_id    | smallint  | not null | primary key
    tenant_code  | varchar   | not null | unique
*/

type Tenant struct {
	TenantID   int    `db:"tenant_id"`
	TenantCode string `db:"tenant_code"`
}

/*
  Table "object_id"
    pk           | bigserial | not null | primary key
    tenant_id    | smallint  | not null |
    object_type  | varchar   | not null |
    object_uuid  | uuid      | not null |
  Constraints:
    "object_id_uniq" UNIQUE (tenant_id, object_uuid)
*/

type ObjectIdentity struct {
	Pk         int64            `db:"pk"`
	TenantID   int              `db:"tenant_id"`
	ObjectType types.ObjectType `db:"object_type"`
	ObjectUUID uuid.UUID        `db:"object_uuid"`
}

/*
  Table "object_definition"
    pk                | bigserial | not null | primary key
    tenant_id         | smallint  | not null |
    object_fk         | bigint    | not null | references object_id (pk)
    object_version    | integer   | not null | > 0
    definition        | bytea     | not null |
    object_is_latest  | boolean   | not null | default false
  Constraints:
    "object_definition_uniq" UNIQUE (tenant_id, object_fk, object_version)
  Exactly one row per object_fk carries object_is_latest = true; the flag is
  the only mutable column, flipped transactionally when a version is added.
*/

type DefinitionRecord struct {
	Pk            int64  `db:"pk"`
	ObjectFk      int64  `db:"object_fk"`
	ObjectVersion int    `db:"object_version"`
	Definition    []byte `db:"definition"`
	IsLatest      bool   `db:"object_is_latest"`
}

/*
  Table "tag"
    pk             | bigserial | not null | primary key
    tenant_id      | smallint  | not null |
    definition_fk  | bigint    | not null | references object_definition (pk)
    tag_version    | integer   | not null | > 0
    tag_is_latest  | boolean   | not null | default false
  Constraints:
    "tag_uniq" UNIQUE (tenant_id, definition_fk, tag_version)
*/

type TagRecord struct {
	Pk           int64 `db:"pk"`
	DefinitionFk int64 `db:"definition_fk"`
	TagVersion   int   `db:"tag_version"`
	IsLatest     bool  `db:"tag_is_latest"`
}

/*
  Table "tag_attr"
    tenant_id           | smallint | not null |
    tag_fk              | bigint   | not null | references tag (pk)
    attr_name           | varchar  | not null |
    attr_type           | varchar  | not null |
    attr_value_boolean  | boolean  |          |
    attr_value_integer  | bigint   |          |
    attr_value_float    | double   |          |
    attr_value_string   | text     |          |
  Constraints:
    "tag_attr_uniq" UNIQUE (tenant_id, tag_fk, attr_name)
  One row per attribute; a tag version always carries its full attribute set.
*/

type TagAttr struct {
	TagFk    int64       `db:"tag_fk"`
	AttrName string      `db:"attr_name"`
	Value    types.Value `db:"-"`
}
