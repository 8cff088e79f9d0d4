// Package dalerror defines the domain errors surfaced by the metadata store.
// Callers never see a raw backend error; every failure is one of these kinds,
// wrapping the original cause for diagnostics.
package dalerror

import (
	"net/http"

	"github.com/metastack/metastore/internal/common/apperrors"
)

var (
	// ErrMetadataStore is the internal-error kind: unrecognized backend
	// failures and programming invariant violations.
	ErrMetadataStore apperrors.Error = apperrors.New("metadata store error").SetStatusCode(http.StatusInternalServerError)

	// ErrDuplicateObjectID reports a save that hit a uniqueness constraint on
	// an identity, version or tag row.
	ErrDuplicateObjectID apperrors.Error = ErrMetadataStore.New("duplicate object id").SetStatusCode(http.StatusConflict)

	// ErrMissingItem reports a read or update targeting an identity, version
	// or tag that does not exist.
	ErrMissingItem apperrors.Error = ErrMetadataStore.New("metadata item does not exist").SetStatusCode(http.StatusNotFound)

	// ErrWrongItemType reports a save against an existing identity whose
	// stored object type differs from the caller's.
	ErrWrongItemType apperrors.Error = ErrMetadataStore.New("metadata item has the wrong type").SetStatusCode(http.StatusBadRequest)

	ErrConfiguration apperrors.Error = apperrors.New("configuration error").SetStatusCode(http.StatusInternalServerError)
	ErrUnknownTenant apperrors.Error = ErrConfiguration.New("unknown tenant code")

	ErrInvalidInput apperrors.Error = ErrMetadataStore.New("invalid input").SetStatusCode(http.StatusBadRequest)
)
