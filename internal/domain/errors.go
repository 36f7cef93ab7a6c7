package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error kinds. Every pipeline failure wraps exactly one of these so callers
// can classify it with errors.Is. None of them is retried.
var (
	// ErrSchema is returned when a required column is missing.
	ErrSchema = errors.New("schema error")

	// ErrType is returned when a column holds the wrong kind of values.
	ErrType = errors.New("type error")

	// ErrValue is returned for invalid parameters, bad data and broken invariants.
	ErrValue = errors.New("value error")
)

// Specific value errors.
var (
	ErrDuplicateKey       = fmt.Errorf("%w: duplicate key", ErrValue)
	ErrColumnExists       = fmt.Errorf("%w: column exists", ErrValue)
	ErrInvalidParameter   = fmt.Errorf("%w: invalid parameter", ErrValue)
	ErrWeightInvariant    = fmt.Errorf("%w: sum of daily weights is not equal 0 nor 1", ErrValue)
	ErrInconsistentPrices = fmt.Errorf("%w: inconsistent prices", ErrValue)
)

// SchemaError lists the columns a frame was expected to carry.
type SchemaError struct {
	Missing []string
}

// NewSchemaError returns a SchemaError with the missing names sorted.
func NewSchemaError(missing []string) *SchemaError {
	m := append([]string(nil), missing...)
	sort.Strings(m)
	return &SchemaError{Missing: m}
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing columns: %s", strings.Join(e.Missing, ", "))
}

// Is makes errors.Is(err, ErrSchema) match.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}
