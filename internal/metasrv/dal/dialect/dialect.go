// Package dialect isolates everything backend-specific: DDL, parameter
// placeholder style, and the mapping from native SQL error codes to the
// abstract error codes used by the transaction executor. No other package
// inspects raw backend errors.
package dialect

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrorCode is the abstract outcome of a failed SQL operation, independent of
// which relational backend produced it.
type ErrorCode int

const (
	CodeUnknown ErrorCode = iota
	CodeDuplicate
	CodeNoData
	CodeWrongType
)

func (c ErrorCode) String() string {
	switch c {
	case CodeDuplicate:
		return "DUPLICATE"
	case CodeNoData:
		return "NO_DATA"
	case CodeWrongType:
		return "WRONG_TYPE"
	}
	return "UNKNOWN"
}

// Sentinels raised inside a unit of work for conditions the backend reports
// only indirectly, such as a bulk read resolving fewer rows than keys. They
// are classified like backend errors so every operation translates failures
// through the same single point.
var (
	ErrNoData    = errors.New("sql: no data for one or more keys")
	ErrWrongType = errors.New("sql: stored object type does not match")
)

type Dialect interface {
	Name() string
	// Placeholder returns the parameter marker for the 1-based position n.
	Placeholder(n int) string
	// SchemaDDL returns the statements that create the metadata tables.
	SchemaDDL() []string
	// MappingTableDDL returns the statement creating the transaction-scoped
	// key_mapping staging table used by batch reads.
	MappingTableDDL() string
	// MapError translates a native driver error to an abstract code. Errors
	// the dialect does not recognize map to CodeUnknown.
	MapError(err error) ErrorCode
}

// Classify maps any error raised during a unit of work to an abstract code.
// Internal sentinels are recognized first; everything else is handed to the
// backend dialect.
func Classify(d Dialect, err error) ErrorCode {
	switch {
	case errors.Is(err, ErrNoData), errors.Is(err, sql.ErrNoRows):
		return CodeNoData
	case errors.Is(err, ErrWrongType):
		return CodeWrongType
	}
	return d.MapError(err)
}

// New returns the dialect for the named backend.
func New(backend string) (Dialect, error) {
	switch backend {
	case "postgresql":
		return postgresDialect{}, nil
	case "sqlite":
		return sqliteDialect{}, nil
	}
	return nil, fmt.Errorf("unsupported backend: %s", backend)
}
