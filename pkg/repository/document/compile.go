package document

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nimburion/repokit/pkg/query"
)

// compile turns a predicate into a filter document. Contains becomes a
// $regex of the quoted literal, so user text never acts as a pattern.
func (f docFields) compile(p query.Predicate) (bson.D, error) {
	if query.IsEverything(p) {
		return bson.D{}, nil
	}
	switch v := p.(type) {
	case query.Match:
		field, err := f.field(v.Field)
		if err != nil {
			return nil, err
		}
		value := coerce(field, v.Value)
		switch v.Op {
		case query.OpEq:
			return bson.D{{Key: field.key, Value: value}}, nil
		case query.OpNe:
			return bson.D{{Key: field.key, Value: bson.D{{Key: "$ne", Value: value}}}}, nil
		case query.OpContains:
			pattern := regexp.QuoteMeta(fmt.Sprint(v.Value))
			return bson.D{{Key: field.key, Value: bson.D{{Key: "$regex", Value: primitive.Regex{Pattern: pattern}}}}}, nil
		default:
			return nil, fmt.Errorf("unsupported operator %s", v.Op)
		}
	case query.All:
		return f.combine("$and", v)
	case query.Any:
		return f.combine("$or", v)
	default:
		return nil, fmt.Errorf("unsupported predicate %T", p)
	}
}

func (f docFields) combine(op string, preds []query.Predicate) (bson.D, error) {
	parts := make(bson.A, 0, len(preds))
	var single bson.D
	for _, p := range preds {
		doc, err := f.compile(p)
		if err != nil {
			return nil, err
		}
		if len(doc) == 0 {
			continue
		}
		single = doc
		parts = append(parts, doc)
	}
	switch len(parts) {
	case 0:
		return bson.D{}, nil
	case 1:
		return single, nil
	default:
		return bson.D{{Key: op, Value: parts}}, nil
	}
}

// coerce converts typed literals to the field's kind where BSON would
// otherwise compare across types, e.g. the literal 42 against a string field.
func coerce(field docField, v any) any {
	if field.kind != reflect.String {
		return v
	}
	switch x := v.(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return v
	}
}

// live compiles p conjoined with the live restriction.
func (f docFields) live(p query.Predicate) (bson.D, error) {
	return f.compile(query.And(query.Live(), p))
}

// sortStage returns the $sort specification, defaulting to _id ascending.
func (f docFields) sortStage(s query.Sort) (bson.D, error) {
	if s.IsZero() {
		return bson.D{{Key: "_id", Value: 1}}, nil
	}
	key, err := f.Resolve(s.Field)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", query.ErrInvalidSort, err)
	}
	dir := 1
	if s.Direction == query.Descending {
		dir = -1
	}
	if key == "_id" {
		return bson.D{{Key: key, Value: dir}}, nil
	}
	return bson.D{{Key: key, Value: dir}, {Key: "_id", Value: 1}}, nil
}
