package dal

import (
	"github.com/google/uuid"

	"github.com/metastack/metastore/internal/common/apperrors"
	"github.com/metastack/metastore/internal/metasrv/dal/dalerror"
	"github.com/metastack/metastore/pkg/types"
)

// TagKey names one stored tag for a batch load: identity, object version and
// tag version. Version fields accept the Latest sentinels.
type TagKey struct {
	ObjectType    types.ObjectType
	ObjectID      uuid.UUID
	ObjectVersion int
	TagVersion    int
}

// ObjectRef names an object identity for preallocation.
type ObjectRef struct {
	ObjectType types.ObjectType
	ObjectID   uuid.UUID
}

// objectParts is the columnar form of a batch request. Single-item and
// batch operations share one code path by both reducing to objectParts; all
// slices have equal length and results are produced in the same order.
type objectParts struct {
	objectType []types.ObjectType
	objectID   []uuid.UUID
	version    []int
	tagVersion []int

	attrs      []map[string]types.Value
	definition [][]byte
}

func (p objectParts) len() int {
	return len(p.objectID)
}

func (p objectParts) validate() apperrors.Error {
	for i := range p.objectID {
		if !p.objectType[i].IsValid() {
			return dalerror.ErrInvalidInput.Msg("invalid object type: " + string(p.objectType[i]))
		}
		if p.objectID[i] == uuid.Nil {
			return dalerror.ErrInvalidInput.Msg("object id must not be nil")
		}
	}
	return nil
}

// separateTagParts transposes incoming tags to columnar form for the writers.
func separateTagParts(tags []types.Tag) objectParts {
	parts := objectParts{
		objectType: make([]types.ObjectType, len(tags)),
		objectID:   make([]uuid.UUID, len(tags)),
		version:    make([]int, len(tags)),
		tagVersion: make([]int, len(tags)),
		attrs:      make([]map[string]types.Value, len(tags)),
		definition: make([][]byte, len(tags)),
	}
	for i, tag := range tags {
		parts.objectType[i] = tag.Header.ObjectType
		parts.objectID[i] = tag.Header.ObjectID
		parts.version[i] = tag.Header.ObjectVersion
		parts.tagVersion[i] = tag.TagVersion
		parts.attrs[i] = tag.Attrs
		parts.definition[i] = tag.Definition
	}
	return parts
}

func separateRefParts(refs []ObjectRef) objectParts {
	parts := objectParts{
		objectType: make([]types.ObjectType, len(refs)),
		objectID:   make([]uuid.UUID, len(refs)),
		version:    make([]int, len(refs)),
		tagVersion: make([]int, len(refs)),
	}
	for i, ref := range refs {
		parts.objectType[i] = ref.ObjectType
		parts.objectID[i] = ref.ObjectID
	}
	return parts
}

func assembleKeyParts(keys []TagKey) objectParts {
	parts := objectParts{
		objectType: make([]types.ObjectType, len(keys)),
		objectID:   make([]uuid.UUID, len(keys)),
		version:    make([]int, len(keys)),
		tagVersion: make([]int, len(keys)),
	}
	for i, key := range keys {
		parts.objectType[i] = key.ObjectType
		parts.objectID[i] = key.ObjectID
		parts.version[i] = key.ObjectVersion
		parts.tagVersion[i] = key.TagVersion
	}
	return parts
}

// buildTag reconstructs a domain tag from its header fields plus the stored
// definition and attributes. Inverse of separateTagParts: a separated tag
// rebuilt from its stored parts equals the original in all observable fields.
func buildTag(
	objectType types.ObjectType, objectID uuid.UUID,
	objectVersion, tagVersion int,
	definition []byte,
	attrs map[string]types.Value,
) types.Tag {
	return types.Tag{
		Header: types.ObjectHeader{
			ObjectType:    objectType,
			ObjectID:      objectID,
			ObjectVersion: objectVersion,
		},
		TagVersion: tagVersion,
		Attrs:      attrs,
		Definition: definition,
	}
}

// buildTags reconstructs one tag per batch index. Version numbers come from
// the stored rows, not the request, so Latest sentinels resolve to concrete
// versions in the result.
func buildTags(
	parts objectParts,
	versions []int, tagVersions []int,
	definitions [][]byte,
	attrs []map[string]types.Value,
) []types.Tag {
	tags := make([]types.Tag, parts.len())
	for i := range tags {
		tags[i] = buildTag(
			parts.objectType[i], parts.objectID[i],
			versions[i], tagVersions[i],
			definitions[i], attrs[i],
		)
	}
	return tags
}
