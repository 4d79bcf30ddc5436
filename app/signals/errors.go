package signals

import (
	"errors"
	"fmt"
)

// ErrRollback makes WithinTx roll the transaction back without reporting an error.
var ErrRollback = errors.New("rollback requested")

var ErrNotFound = errors.New("not found")

type FetchError struct {
	Adapter string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch from %s failed: %v", e.Adapter, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

type NormalizationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *NormalizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("normalization failed on %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("normalization failed on %s: %s", e.Field, e.Reason)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

const (
	KindFetch         = "fetch"
	KindNormalization = "normalization"
	KindValidation    = "validation"
	KindStore         = "store"
	KindUnknown       = "unknown"
)

// ErrorKind names the taxonomy bucket of err for logs and summaries.
func ErrorKind(err error) string {
	var (
		fetchErr *FetchError
		normErr  *NormalizationError
		valErr   *ValidationError
		storeErr *StoreError
	)
	switch {
	case errors.As(err, &fetchErr):
		return KindFetch
	case errors.As(err, &normErr):
		return KindNormalization
	case errors.As(err, &valErr):
		return KindValidation
	case errors.As(err, &storeErr):
		return KindStore
	default:
		return KindUnknown
	}
}
