package query

import (
	"sort"
	"strconv"
	"strings"
)

// NegationMarker prefixes a criterion or sort field to invert it.
const NegationMarker = "!"

// SearchSpec maps field names to raw textual criteria.
type SearchSpec map[string]string

// Translate builds the conjunction of one predicate per entry. Entries are
// processed in key order so the resulting tree is deterministic.
//
// Each criterion is read as follows:
//   - empty: no restriction
//   - "a,b,!c": positive values are alternatives, negated values are all
//     excluded, i.e. (f = a OR f = b) AND f != c
//   - "!v": f != v
//   - "true" / "false" (any case): boolean equality
//   - base-10 integer: integer equality
//   - anything else: f contains the literal text
func Translate(spec SearchSpec) (Predicate, error) {
	if len(spec) == 0 {
		return Everything, nil
	}

	keys := make([]string, 0, len(spec))
	for k := range spec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	preds := make([]Predicate, 0, len(keys))
	for _, field := range keys {
		p, err := ParseCriterion(field, spec[field])
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return And(preds...), nil
}

// ParseCriterion translates one field's raw criterion.
func ParseCriterion(field, raw string) (Predicate, error) {
	if err := ValidateField(field); err != nil {
		return nil, err
	}
	if raw == "" {
		return Everything, nil
	}
	if !strings.Contains(raw, ",") {
		return single(field, raw), nil
	}

	var include, exclude []Predicate
	for _, part := range strings.Split(raw, ",") {
		if part == "" {
			continue
		}
		if strings.HasPrefix(part, NegationMarker) {
			exclude = append(exclude, single(field, part))
			continue
		}
		include = append(include, single(field, part))
	}
	if len(include) == 0 {
		return And(exclude...), nil
	}
	return And(append([]Predicate{Or(include...)}, exclude...)...), nil
}

func single(field, v string) Predicate {
	if rest, negated := strings.CutPrefix(v, NegationMarker); negated {
		return Ne(field, typed(rest))
	}
	switch value := typed(v).(type) {
	case string:
		return Contains(field, value)
	default:
		return Eq(field, value)
	}
}

// typed coerces a literal to bool or int64 when it reads as one, otherwise
// it stays a string.
func typed(v string) any {
	if strings.EqualFold(v, "true") {
		return true
	}
	if strings.EqualFold(v, "false") {
		return false
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	return v
}
