package dedup

import (
	"fmt"

	"phone-catalog-ingest/internal/stats"
)

var (
	// ErrMissingIdentifier rejects a record without a usable model name.
	ErrMissingIdentifier = &recordError{kind: stats.KindMissingIdentifier, msg: "record has no model name"}

	// ErrMissingBrand rejects a record whose brand is empty or a placeholder.
	ErrMissingBrand = &recordError{kind: stats.KindMissingIdentifier, msg: "record has no brand"}
)

type recordError struct {
	kind string
	msg  string
}

func (e *recordError) Error() string     { return e.msg }
func (e *recordError) ErrorKind() string { return e.kind }

// StoreError wraps a failed storage call with the operation and the record
// it was made for.
type StoreError struct {
	Op         string
	Identifier string
	Err        error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed for %q: %v", e.Op, e.Identifier, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) ErrorKind() string { return stats.KindStoreQuery }

func (e *StoreError) Operation() string { return e.Op }
