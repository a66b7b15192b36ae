package etl

import (
	"errors"
	"fmt"
)

// ── Error taxonomy ─────────────────────────────────────────
// Mutating operations reject bad input with ValidationError or IndexError
// and leave state untouched. Catalog and persistence failures are wrapped
// so callers can classify them with errors.Is / errors.As.

var (
	// ErrCatalogUnavailable matches any *CatalogError.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrPersistence matches any *PersistenceError.
	ErrPersistence = errors.New("persistence failure")
)

// ValidationError reports input that names an unknown object, table,
// column or transform parameter, or violates a structural rule.
type ValidationError struct {
	Field string // offending parameter or key
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Msg
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Msg)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// IndexError reports a registry position outside [0, Len).
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d out of range [0, %d)", e.Index, e.Len)
}

// CatalogError wraps a failure of the external metadata provider.
type CatalogError struct {
	Op  string
	Err error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("catalog unavailable: %s: %v", e.Op, e.Err)
}

func (e *CatalogError) Unwrap() error { return e.Err }

func (e *CatalogError) Is(target error) bool { return target == ErrCatalogUnavailable }

// MigrationWarning is a non-fatal note that a legacy value could not be
// carried over exactly and a documented default was substituted.
type MigrationWarning struct {
	Path string // gjson path of the affected value
	Msg  string
}

func (w MigrationWarning) Error() string {
	if w.Path == "" {
		return w.Msg
	}
	return w.Path + ": " + w.Msg
}

// PersistenceError wraps a failed read or write of the durable document.
type PersistenceError struct {
	Op  string // "load" | "save" | ...
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// IsValidation reports whether err is (or wraps) a *ValidationError or *IndexError.
func IsValidation(err error) bool {
	var ve *ValidationError
	var ie *IndexError
	return errors.As(err, &ve) || errors.As(err, &ie)
}
