package document

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// memoryExecutor evaluates the subset of the query language the repository
// emits against documents held in memory.
type memoryExecutor struct {
	mu          sync.Mutex
	collections map[string][]bson.Raw
	err         error
	pipelines   []mongo.Pipeline
}

var _ Executor = (*memoryExecutor)(nil)

func newMemoryExecutor() *memoryExecutor {
	return &memoryExecutor{collections: map[string][]bson.Raw{}}
}

func (m *memoryExecutor) failWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *memoryExecutor) InsertOne(_ context.Context, collection string, doc any) error {
	return m.InsertMany(context.Background(), collection, []any{doc})
}

func (m *memoryExecutor) InsertMany(_ context.Context, collection string, docs []any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	encoded := make([]bson.Raw, 0, len(docs))
	seen := map[string]bool{}
	for _, existing := range m.collections[collection] {
		seen[existing.Lookup("_id").String()] = true
	}
	for _, doc := range docs {
		raw, err := bson.Marshal(doc)
		if err != nil {
			return err
		}
		id := bson.Raw(raw).Lookup("_id").String()
		if seen[id] {
			return fmt.Errorf("E11000 duplicate key error collection: %s index: _id_ dup key: %s", collection, id)
		}
		seen[id] = true
		encoded = append(encoded, raw)
	}
	m.collections[collection] = append(m.collections[collection], encoded...)
	return nil
}

func (m *memoryExecutor) FindOne(_ context.Context, collection string, filter bson.D) (bson.Raw, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, doc := range m.collections[collection] {
		if matches(doc, filter) {
			return doc, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (m *memoryExecutor) Aggregate(_ context.Context, collection string, pipeline mongo.Pipeline) ([]bson.Raw, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pipelines = append(m.pipelines, pipeline)
	if m.err != nil {
		return nil, m.err
	}
	docs := append([]bson.Raw(nil), m.collections[collection]...)
	for _, stage := range pipeline {
		if len(stage) != 1 {
			return nil, fmt.Errorf("malformed stage %v", stage)
		}
		op, arg := stage[0].Key, stage[0].Value
		switch op {
		case "$match":
			var kept []bson.Raw
			for _, doc := range docs {
				if matches(doc, arg.(bson.D)) {
					kept = append(kept, doc)
				}
			}
			docs = kept
		case "$sort":
			order := arg.(bson.D)
			sort.SliceStable(docs, func(i, j int) bool {
				for _, e := range order {
					c := compare(lookup(docs[i], e.Key), lookup(docs[j], e.Key))
					if e.Value.(int) < 0 {
						c = -c
					}
					if c != 0 {
						return c < 0
					}
				}
				return false
			})
		case "$skip":
			n := int(arg.(int64))
			if n > len(docs) {
				n = len(docs)
			}
			docs = docs[n:]
		case "$limit":
			n := int(arg.(int64))
			if n < len(docs) {
				docs = docs[:n]
			}
		case "$lookup":
			spec := arg.(bson.D)
			joined, err := m.join(docs, stringAt(spec, "from"), stringAt(spec, "localField"), stringAt(spec, "foreignField"), stringAt(spec, "as"))
			if err != nil {
				return nil, err
			}
			docs = joined
		default:
			return nil, fmt.Errorf("unsupported stage %s", op)
		}
	}
	return docs, nil
}

func (m *memoryExecutor) join(docs []bson.Raw, from, local, foreign, as string) ([]bson.Raw, error) {
	out := make([]bson.Raw, 0, len(docs))
	for _, doc := range docs {
		key := lookup(doc, local)
		related := bson.A{}
		for _, other := range m.collections[from] {
			if key.Type != 0 && compare(key, lookup(other, foreign)) == 0 {
				related = append(related, other)
			}
		}
		var d bson.D
		if err := bson.Unmarshal(doc, &d); err != nil {
			return nil, err
		}
		d = setKey(d, as, related)
		raw, err := bson.Marshal(d)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

func (m *memoryExecutor) CountDocuments(_ context.Context, collection string, filter bson.D) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for _, doc := range m.collections[collection] {
		if matches(doc, filter) {
			n++
		}
	}
	return n, nil
}

func (m *memoryExecutor) UpdateOne(_ context.Context, collection string, filter, update bson.D) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	docs := m.collections[collection]
	for i, doc := range docs {
		if !matches(doc, filter) {
			continue
		}
		var d bson.D
		if err := bson.Unmarshal(doc, &d); err != nil {
			return 0, err
		}
		for _, op := range update {
			if op.Key != "$set" {
				return 0, fmt.Errorf("unsupported update operator %s", op.Key)
			}
			for _, e := range op.Value.(bson.D) {
				d = setKey(d, e.Key, e.Value)
			}
		}
		raw, err := bson.Marshal(d)
		if err != nil {
			return 0, err
		}
		docs[i] = raw
		return 1, nil
	}
	return 0, nil
}

func (m *memoryExecutor) DeleteOne(_ context.Context, collection string, filter bson.D) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	docs := m.collections[collection]
	for i, doc := range docs {
		if matches(doc, filter) {
			m.collections[collection] = append(docs[:i:i], docs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (m *memoryExecutor) lastPipeline() mongo.Pipeline {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pipelines) == 0 {
		return nil
	}
	return m.pipelines[len(m.pipelines)-1]
}

func setKey(d bson.D, key string, value any) bson.D {
	for i := range d {
		if d[i].Key == key {
			d[i].Value = value
			return d
		}
	}
	return append(d, bson.E{Key: key, Value: value})
}

func stringAt(d bson.D, key string) string {
	for _, e := range d {
		if e.Key == key {
			s, _ := e.Value.(string)
			return s
		}
	}
	return ""
}

func lookup(doc bson.Raw, key string) bson.RawValue {
	v, err := doc.LookupErr(strings.Split(key, ".")...)
	if err != nil {
		return bson.RawValue{}
	}
	return v
}

func rawValue(v any) bson.RawValue {
	t, data, err := bson.MarshalValue(v)
	if err != nil {
		panic(err)
	}
	return bson.RawValue{Type: t, Value: data}
}

func matches(doc bson.Raw, filter bson.D) bool {
	for _, e := range filter {
		switch e.Key {
		case "$and":
			for _, sub := range e.Value.(bson.A) {
				if !matches(doc, sub.(bson.D)) {
					return false
				}
			}
		case "$or":
			found := false
			for _, sub := range e.Value.(bson.A) {
				if matches(doc, sub.(bson.D)) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			if !matchField(lookup(doc, e.Key), e.Value) {
				return false
			}
		}
	}
	return true
}

func matchField(field bson.RawValue, cond any) bool {
	if ops, ok := cond.(bson.D); ok && len(ops) > 0 && strings.HasPrefix(ops[0].Key, "$") {
		for _, op := range ops {
			switch op.Key {
			case "$ne":
				if field.Type != 0 && compare(field, rawValue(op.Value)) == 0 {
					return false
				}
			case "$regex":
				s, ok := field.StringValueOK()
				if !ok || !regexp.MustCompile(op.Value.(primitive.Regex).Pattern).MatchString(s) {
					return false
				}
			default:
				panic("unsupported operator " + op.Key)
			}
		}
		return true
	}
	return field.Type != 0 && compare(field, rawValue(cond)) == 0
}

func number(v bson.RawValue) (float64, bool) {
	switch v.Type {
	case bsontype.Double:
		return v.Double(), true
	case bsontype.Int32, bsontype.Int64:
		return float64(v.AsInt64()), true
	default:
		return 0, false
	}
}

// compare orders two values of the same BSON family; mismatched types
// compare by type number.
func compare(a, b bson.RawValue) int {
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			default:
				return 0
			}
		}
	}
	if a.Type != b.Type {
		return int(a.Type) - int(b.Type)
	}
	switch a.Type {
	case bsontype.String:
		return strings.Compare(a.StringValue(), b.StringValue())
	case bsontype.DateTime:
		x, y := a.DateTime(), b.DateTime()
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case bsontype.Boolean:
		x, y := a.Boolean(), b.Boolean()
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	default:
		if a.Equal(b) {
			return 0
		}
		return strings.Compare(a.String(), b.String())
	}
}

var errStoreDown = errors.New("connection refused")
