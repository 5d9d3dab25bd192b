package query

import "strings"

// ParseInclude splits a comma-separated list of related collection names,
// dropping blanks and duplicates while keeping order.
func ParseInclude(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	return NormalizeInclude(strings.Split(raw, ","))
}

// NormalizeInclude trims, validates and de-duplicates relation names.
func NormalizeInclude(names []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		if err := ValidateField(name); err != nil {
			return nil, err
		}
		seen[name] = true
		out = append(out, name)
	}
	return out, nil
}
