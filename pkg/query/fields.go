package query

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidField is returned for field names that are malformed or unknown
// to the backend.
var ErrInvalidField = errors.New("invalid field")

// validFieldName accepts identifiers and dotted paths of identifiers.
var validFieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// ValidateField checks the syntax of a field name. It does not check that the
// field exists; backends do that when resolving.
func ValidateField(name string) error {
	if !validFieldName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidField, name)
	}
	return nil
}

// FieldResolver maps a caller-facing field name to the backend's physical
// name (column or document key), rejecting fields the entity does not have.
type FieldResolver interface {
	Resolve(field string) (string, error)
}

// FieldResolverFunc adapts a function to FieldResolver.
type FieldResolverFunc func(field string) (string, error)

// Resolve calls f.
func (f FieldResolverFunc) Resolve(field string) (string, error) {
	return f(field)
}

// UnknownField builds the error resolvers return for a field the entity lacks.
func UnknownField(field string) error {
	return fmt.Errorf("%w: unknown field %q", ErrInvalidField, field)
}
