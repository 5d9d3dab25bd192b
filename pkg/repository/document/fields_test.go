package document

import (
	"errors"
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nimburion/repokit/pkg/entity"
	"github.com/nimburion/repokit/pkg/query"
)

type address struct {
	City string `bson:"city"`
	Zip  string
}

type customer struct {
	entity.Base `bson:",inline"`
	FullName    string  `bson:"full_name"`
	Secret      string  `bson:"-"`
	Address     address `bson:"addr"`
	Score       int
}

type loose struct {
	entity.Base `bson:",inline"`
	Extra       bson.M `bson:",inline"`
}

func TestDocFields_Resolve(t *testing.T) {
	f := describe(reflect.TypeOf(customer{}))
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "ID", want: "_id"},
		{name: "_id", want: "_id"},
		{name: "IsDeleted", want: "isDeleted"},
		{name: "isdeleted", want: "isDeleted"},
		{name: "FullName", want: "full_name"},
		{name: "full_name", want: "full_name"},
		{name: "score", want: "score"},
		{name: "Address.City", want: "addr.city"},
		{name: "addr.zip", want: "addr.zip"},
		{name: "Secret", wantErr: true},
		{name: "colour", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Resolve(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Resolve(%q) error = %v", tt.name, err)
			}
			if tt.wantErr {
				if !errors.Is(err, query.ErrInvalidField) {
					t.Fatalf("expected ErrInvalidField, got %v", err)
				}
				return
			}
			if got != tt.want {
				t.Fatalf("Resolve(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestDocFields_OpenSchema(t *testing.T) {
	f := describe(reflect.TypeOf(loose{}))
	if got, err := f.Resolve("createdAt"); err != nil || got != "createdAt" {
		t.Fatalf("declared field = %q, %v", got, err)
	}
	if got, err := f.Resolve("colour"); err != nil || got != "colour" {
		t.Fatalf("undeclared field = %q, %v", got, err)
	}
	if _, err := f.Resolve("bad name"); err == nil {
		t.Fatal("malformed names must still be rejected")
	}
}

func TestDocFields_Compile(t *testing.T) {
	f := describe(reflect.TypeOf(customer{}))
	tests := []struct {
		name string
		pred query.Predicate
		want bson.D
	}{
		{name: "everything", pred: query.Everything, want: bson.D{}},
		{name: "equality", pred: query.Eq("FullName", "ada"), want: bson.D{{Key: "full_name", Value: "ada"}}},
		{name: "integer literal on text field", pred: query.Eq("FullName", int64(7)), want: bson.D{{Key: "full_name", Value: "7"}}},
		{name: "integer on number field", pred: query.Eq("Score", int64(7)), want: bson.D{{Key: "score", Value: int64(7)}}},
		{name: "inequality", pred: query.Ne("isDeleted", true), want: bson.D{{Key: "isDeleted", Value: bson.D{{Key: "$ne", Value: true}}}}},
		{name: "contains quotes pattern", pred: query.Contains("FullName", "a.b*"), want: bson.D{{Key: "full_name", Value: bson.D{{Key: "$regex", Value: primitive.Regex{Pattern: `a\.b\*`}}}}}},
		{name: "single member unwrapped", pred: query.All{query.Eq("Score", int64(1))}, want: bson.D{{Key: "score", Value: int64(1)}}},
		{
			name: "disjunction",
			pred: query.Or(query.Eq("Score", int64(1)), query.Eq("Score", int64(2))),
			want: bson.D{{Key: "$or", Value: bson.A{
				bson.D{{Key: "score", Value: int64(1)}},
				bson.D{{Key: "score", Value: int64(2)}},
			}}},
		},
		{
			name: "live conjunction",
			pred: query.And(query.Live(), query.Eq("Score", int64(3))),
			want: bson.D{{Key: "$and", Value: bson.A{
				bson.D{{Key: "isDeleted", Value: false}},
				bson.D{{Key: "score", Value: int64(3)}},
			}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.compile(tt.pred)
			if err != nil {
				t.Fatalf("compile() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("compile() = %#v, want %#v", got, tt.want)
			}
		})
	}

	if _, err := f.compile(query.Eq("colour", "red")); !errors.Is(err, query.ErrInvalidField) {
		t.Fatalf("unknown field error = %v", err)
	}
}

func TestDocFields_SortStage(t *testing.T) {
	f := describe(reflect.TypeOf(customer{}))
	tests := []struct {
		name    string
		sort    query.Sort
		want    bson.D
		wantErr bool
	}{
		{name: "default", want: bson.D{{Key: "_id", Value: 1}}},
		{name: "descending", sort: query.Sort{Field: "Score", Direction: query.Descending}, want: bson.D{{Key: "score", Value: -1}, {Key: "_id", Value: 1}}},
		{name: "by id", sort: query.Sort{Field: "ID", Direction: query.Descending}, want: bson.D{{Key: "_id", Value: -1}}},
		{name: "unknown", sort: query.Sort{Field: "colour"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.sortStage(tt.sort)
			if tt.wantErr {
				if !errors.Is(err, query.ErrInvalidSort) {
					t.Fatalf("expected ErrInvalidSort, got %v", err)
				}
				return
			}
			if err != nil || !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("sortStage() = %v, %v; want %v", got, err, tt.want)
			}
		})
	}
}
