package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidQuery is returned when a query or threshold is malformed
	ErrInvalidQuery = errors.New("invalid query")

	// ErrSchema is returned when the catalog source lacks a required column
	ErrSchema = errors.New("catalog schema error")

	// ErrCatalogFetch is returned when a remote catalog cannot be downloaded
	ErrCatalogFetch = errors.New("catalog fetch failed")

	// ErrCatalogNotLoaded is returned when no catalog has been published yet
	ErrCatalogNotLoaded = errors.New("catalog not loaded")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)

// SchemaError reports the required columns missing from a catalog source
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("catalog is missing required columns: %s", strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// InvalidQueryError describes why a query was rejected.
// Index is the 1-based position of the query in a batch, or 0 when the
// error is not tied to a particular query.
type InvalidQueryError struct {
	Index  int
	Field  string
	Reason string
}

func (e *InvalidQueryError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("query %d: %s %s", e.Index, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *InvalidQueryError) Unwrap() error { return ErrInvalidQuery }
