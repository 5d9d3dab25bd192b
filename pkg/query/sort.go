package query

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSort is returned when a sort field is malformed.
var ErrInvalidSort = errors.New("invalid sort")

// Direction orders results.
type Direction string

const (
	// Ascending sorts smallest first.
	Ascending Direction = "asc"
	// Descending sorts largest first.
	Descending Direction = "desc"
)

// Sort specifies a single ordering field.
type Sort struct {
	Field     string
	Direction Direction
}

// IsZero reports whether no ordering was requested.
func (s Sort) IsZero() bool {
	return s.Field == ""
}

// ParseSort reads "field" as ascending and "!field" as descending. An empty
// string yields the zero Sort.
func ParseSort(raw string) (Sort, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Sort{}, nil
	}
	dir := Ascending
	if rest, negated := strings.CutPrefix(raw, NegationMarker); negated {
		dir = Descending
		raw = rest
	}
	if err := ValidateField(raw); err != nil {
		return Sort{}, fmt.Errorf("%w: %w", ErrInvalidSort, err)
	}
	return Sort{Field: raw, Direction: dir}, nil
}
