// Package query turns string-keyed search criteria into a backend-neutral
// predicate tree and holds the paging and sorting arithmetic shared by every
// repository backend.
package query

import (
	"fmt"
	"sort"
)

// Canonical names of the lifecycle fields. Backends resolve them like any
// other field name.
const (
	FieldID        = "ID"
	FieldCreatedAt = "CreatedAt"
	FieldUpdatedAt = "UpdatedAt"
	FieldDeletedAt = "DeletedAt"
	FieldIsDeleted = "IsDeleted"
)

// Op is a comparison applied by a Match.
type Op int

const (
	// OpEq matches when the field equals Value.
	OpEq Op = iota
	// OpNe matches when the field differs from Value or is absent.
	OpNe
	// OpContains matches when the field's text contains Value literally.
	OpContains
)

// String returns a short operator name.
func (o Op) String() string {
	switch o {
	case OpEq:
		return "eq"
	case OpNe:
		return "ne"
	case OpContains:
		return "contains"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Predicate is a node of the filter tree: Match, All, Any or Everything.
type Predicate interface {
	predicate()
}

// Match compares one field against a literal value.
type Match struct {
	Field string
	Op    Op
	Value any
}

// All is the conjunction of its members.
type All []Predicate

// Any is the disjunction of its members.
type Any []Predicate

type everything struct{}

// Everything places no restriction.
var Everything Predicate = everything{}

func (Match) predicate()      {}
func (All) predicate()        {}
func (Any) predicate()        {}
func (everything) predicate() {}

// Eq builds an equality match.
func Eq(field string, value any) Predicate {
	return Match{Field: field, Op: OpEq, Value: value}
}

// Ne builds an inequality match.
func Ne(field string, value any) Predicate {
	return Match{Field: field, Op: OpNe, Value: value}
}

// Contains builds a literal substring match.
func Contains(field, text string) Predicate {
	return Match{Field: field, Op: OpContains, Value: text}
}

// Live restricts results to records that are not soft-deleted.
func Live() Predicate {
	return Eq(FieldIsDeleted, false)
}

// And conjoins predicates. Nil and Everything members are dropped and nested
// All nodes are flattened; an empty conjunction is Everything.
func And(preds ...Predicate) Predicate {
	out := make(All, 0, len(preds))
	for _, p := range preds {
		switch v := p.(type) {
		case nil, everything:
			continue
		case All:
			switch flat := And(v...).(type) {
			case everything:
			case All:
				out = append(out, flat...)
			default:
				out = append(out, flat)
			}
		default:
			out = append(out, v)
		}
	}
	switch len(out) {
	case 0:
		return Everything
	case 1:
		return out[0]
	default:
		return out
	}
}

// Or disjoins predicates. Any member that is Everything makes the whole
// disjunction Everything, as does an empty argument list.
func Or(preds ...Predicate) Predicate {
	out := make(Any, 0, len(preds))
	for _, p := range preds {
		switch v := p.(type) {
		case nil:
			continue
		case everything:
			return Everything
		case Any:
			switch flat := Or(v...).(type) {
			case everything:
				return Everything
			case Any:
				out = append(out, flat...)
			default:
				out = append(out, flat)
			}
		default:
			out = append(out, v)
		}
	}
	switch len(out) {
	case 0:
		return Everything
	case 1:
		return out[0]
	default:
		return out
	}
}

// IsEverything reports whether p places no restriction.
func IsEverything(p Predicate) bool {
	if p == nil {
		return true
	}
	_, ok := p.(everything)
	return ok
}

// Fields returns the sorted, de-duplicated field names referenced by p.
func Fields(p Predicate) []string {
	seen := map[string]struct{}{}
	collectFields(p, seen)
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func collectFields(p Predicate, seen map[string]struct{}) {
	switch v := p.(type) {
	case Match:
		seen[v.Field] = struct{}{}
	case All:
		for _, child := range v {
			collectFields(child, seen)
		}
	case Any:
		for _, child := range v {
			collectFields(child, seen)
		}
	}
}

// Validate checks that every field name in p is syntactically valid.
func Validate(p Predicate) error {
	for _, name := range Fields(p) {
		if err := ValidateField(name); err != nil {
			return err
		}
	}
	return nil
}
