package cli

import (
	"sort"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/nimburion/repokit/pkg/entity"
)

// Record is a document of any shape. The lifecycle fields are typed; every
// other key lands in Fields, and any key may be used to search or sort.
type Record struct {
	entity.Base `bson:",inline"`
	Fields      bson.M `bson:",inline"`
}

// Document returns the record with the lifecycle fields first and the
// remaining keys in lexical order.
func (r *Record) Document() bson.D {
	doc := bson.D{
		{Key: "_id", Value: r.ID},
		{Key: "createdAt", Value: r.CreatedAt},
		{Key: "updatedAt", Value: r.UpdatedAt},
		{Key: "isDeleted", Value: r.IsDeleted},
	}
	if r.DeletedAt != nil {
		doc = append(doc, bson.E{Key: "deletedAt", Value: *r.DeletedAt})
	}
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		doc = append(doc, bson.E{Key: k, Value: r.Fields[k]})
	}
	return doc
}
