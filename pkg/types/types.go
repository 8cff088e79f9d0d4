package types

import (
	"github.com/google/uuid"
)

type TenantCode string

// ObjectType identifies the kind of metadata object an identity refers to.
// The type is fixed when the identity is created and never changes across
// versions.
type ObjectType string

const (
	ObjectTypeData  ObjectType = "DATA"
	ObjectTypeModel ObjectType = "MODEL"
	ObjectTypeFlow  ObjectType = "FLOW"
	ObjectTypeJob   ObjectType = "JOB"
	ObjectTypeFile  ObjectType = "FILE"
)

func (t ObjectType) IsValid() bool {
	switch t {
	case ObjectTypeData, ObjectTypeModel, ObjectTypeFlow, ObjectTypeJob, ObjectTypeFile:
		return true
	}
	return false
}

// Version sentinels accepted by load operations in place of an explicit
// version number.
const (
	LatestVersion = -1
	LatestTag     = -1
)

// ObjectHeader names one version of a logical object: the (type, id) identity
// plus the object version number.
type ObjectHeader struct {
	ObjectType    ObjectType
	ObjectID      uuid.UUID
	ObjectVersion int
}

// Tag is one versioned set of attributes attached to one object version,
// together with the definition payload of that version. Definition bytes are
// opaque to the metadata store.
type Tag struct {
	Header     ObjectHeader
	TagVersion int
	Attrs      map[string]Value
	Definition []byte
}

// Equal reports whether two tags match in all observable fields: header,
// tag version, definition payload and the full attribute set.
func (t Tag) Equal(other Tag) bool {
	if t.Header != other.Header || t.TagVersion != other.TagVersion {
		return false
	}
	if string(t.Definition) != string(other.Definition) {
		return false
	}
	if len(t.Attrs) != len(other.Attrs) {
		return false
	}
	for name, v := range t.Attrs {
		ov, ok := other.Attrs[name]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}
