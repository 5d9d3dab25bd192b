package repository

import (
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/nimburion/repokit/pkg/query"
)

// gormFields resolves caller field names against a parsed GORM schema.
type gormFields struct {
	schema *schema.Schema
}

// field finds a persisted field by Go name or column name, falling back to a
// case-insensitive match so "createdAt", "CreatedAt" and "created_at" agree.
func (g gormFields) field(name string) (*schema.Field, error) {
	if f := g.schema.LookUpField(name); f != nil && f.DBName != "" {
		return f, nil
	}
	for _, f := range g.schema.Fields {
		if f.DBName == "" {
			continue
		}
		if strings.EqualFold(f.Name, name) || strings.EqualFold(f.DBName, name) {
			return f, nil
		}
	}
	return nil, query.UnknownField(name)
}

// Resolve returns the column name of name.
func (g gormFields) Resolve(name string) (string, error) {
	f, err := g.field(name)
	if err != nil {
		return "", err
	}
	return f.DBName, nil
}

// relation returns the canonical preload path for an include name. Only the
// first segment is checked; nested segments are left to GORM.
func (g gormFields) relation(name string) (string, error) {
	head, rest, nested := strings.Cut(name, ".")
	canonical := ""
	if _, ok := g.schema.Relationships.Relations[head]; ok {
		canonical = head
	} else {
		for rel := range g.schema.Relationships.Relations {
			if strings.EqualFold(rel, head) {
				canonical = rel
				break
			}
		}
	}
	if canonical == "" {
		return "", fmt.Errorf("%w: unknown relation %q", query.ErrInvalidField, name)
	}
	if nested {
		return canonical + "." + rest, nil
	}
	return canonical, nil
}

func (g gormFields) column(f *schema.Field) clause.Column {
	return clause.Column{Table: clause.CurrentTable, Name: f.DBName}
}

// compile turns a predicate into a clause expression. Values are always bound
// as parameters. Contains compiles to equality: SQL backends get no pattern
// matching, as reported by Capabilities.
func (g gormFields) compile(p query.Predicate) (clause.Expression, error) {
	if query.IsEverything(p) {
		return nil, nil
	}
	switch v := p.(type) {
	case query.Match:
		f, err := g.field(v.Field)
		if err != nil {
			return nil, err
		}
		value, err := coerce(f, v.Value)
		if err != nil {
			return nil, err
		}
		switch v.Op {
		case query.OpEq, query.OpContains:
			return clause.Eq{Column: g.column(f), Value: value}, nil
		case query.OpNe:
			return clause.Neq{Column: g.column(f), Value: value}, nil
		default:
			return nil, fmt.Errorf("unsupported operator %s", v.Op)
		}
	case query.All:
		exprs, err := g.compileAll(v)
		if err != nil || len(exprs) == 0 {
			return nil, err
		}
		if len(exprs) == 1 {
			return exprs[0], nil
		}
		return clause.And(exprs...), nil
	case query.Any:
		exprs, err := g.compileAll(v)
		if err != nil || len(exprs) == 0 {
			return nil, err
		}
		if len(exprs) == 1 {
			return exprs[0], nil
		}
		return clause.Or(exprs...), nil
	default:
		return nil, fmt.Errorf("unsupported predicate %T", p)
	}
}

func (g gormFields) compileAll(preds []query.Predicate) ([]clause.Expression, error) {
	exprs := make([]clause.Expression, 0, len(preds))
	for _, p := range preds {
		expr, err := g.compile(p)
		if err != nil {
			return nil, err
		}
		if expr != nil {
			exprs = append(exprs, expr)
		}
	}
	return exprs, nil
}

// coerce converts typed literals to the column's Go kind where SQL would
// otherwise compare across types, e.g. the literal 42 against a text column.
// A literal the column can never hold, such as "abc" against an integer, is
// an invalid criterion.
func coerce(f *schema.Field, v any) (any, error) {
	switch f.DataType {
	case schema.String:
		switch x := v.(type) {
		case int64:
			return strconv.FormatInt(x, 10), nil
		case bool:
			return strconv.FormatBool(x), nil
		}
		return v, nil
	case schema.Int, schema.Uint, schema.Float:
		switch x := v.(type) {
		case int64:
			return x, nil
		case string:
			if n, err := strconv.ParseFloat(x, 64); err == nil {
				return n, nil
			}
		}
	case schema.Bool:
		if _, ok := v.(bool); ok {
			return v, nil
		}
	case schema.Time:
		if _, ok := v.(string); ok {
			return v, nil
		}
	default:
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s expects a %s value, got %v", query.ErrInvalidField, f.Name, f.DataType, v)
}

// where scopes a query to the live records matching p.
func (g gormFields) where(p query.Predicate) (func(*gorm.DB) *gorm.DB, error) {
	expr, err := g.compile(query.And(query.Live(), p))
	if err != nil {
		return nil, err
	}
	return func(db *gorm.DB) *gorm.DB {
		if expr == nil {
			return db
		}
		return db.Where(expr)
	}, nil
}

// order scopes a query to the requested ordering, defaulting to the primary
// key. Ties on any other column are broken by the primary key ascending.
func (g gormFields) order(s query.Sort) (func(*gorm.DB) *gorm.DB, error) {
	pk := g.schema.PrioritizedPrimaryField
	var f *schema.Field
	if s.IsZero() {
		f = pk
		if f == nil {
			return func(db *gorm.DB) *gorm.DB { return db }, nil
		}
	} else {
		var err error
		if f, err = g.field(s.Field); err != nil {
			return nil, fmt.Errorf("%w: %w", query.ErrInvalidSort, err)
		}
	}
	cols := []clause.OrderByColumn{{Column: g.column(f), Desc: s.Direction == query.Descending}}
	if pk != nil && f != pk {
		cols = append(cols, clause.OrderByColumn{Column: g.column(pk)})
	}
	return func(db *gorm.DB) *gorm.DB {
		for _, col := range cols {
			db = db.Order(col)
		}
		return db
	}, nil
}

// paginate scopes a query to one page.
func paginate(page query.PageRequest) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(page.Offset()).Limit(page.Limit())
	}
}

// preload scopes a query to eager-load the given relations.
func (g gormFields) preload(include []string) (func(*gorm.DB) *gorm.DB, error) {
	paths := make([]string, 0, len(include))
	for _, name := range include {
		path, err := g.relation(name)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return func(db *gorm.DB) *gorm.DB {
		for _, path := range paths {
			db = db.Preload(path)
		}
		return db
	}, nil
}
