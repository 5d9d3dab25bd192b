// Package document implements the soft-delete repository on a document store
// through an Executor, normally backed by MongoDB.
package document

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nimburion/repokit/pkg/entity"
	"github.com/nimburion/repokit/pkg/query"
	"github.com/nimburion/repokit/pkg/repository"
	"github.com/nimburion/repokit/pkg/result"
)

// BackendMongo is the Capabilities.Backend of Repository.
const BackendMongo = "mongodb"

// Repository implements repository.Repository on one document collection.
// T must embed entity.Base with `bson:",inline"`.
type Repository[T any, PT entity.Pointer[T]] struct {
	exec       Executor
	collection string
	fields     docFields
	opts       repository.Options
	inst       repository.Instrument

	idKey, createdKey, updatedKey, deletedAtKey, isDeletedKey string
	versionKey                                               string
}

// NewRepository returns a repository storing T in collection.
func NewRepository[T any, PT entity.Pointer[T]](exec Executor, collection string, opts ...repository.Option) (*Repository[T, PT], error) {
	if exec == nil {
		return nil, errors.New("document executor is nil")
	}
	if collection == "" {
		return nil, errors.New("collection name is required")
	}

	r := &Repository[T, PT]{
		exec:       exec,
		collection: collection,
		fields:     describe(reflect.TypeOf(new(T)).Elem()),
		opts:       repository.NewOptions(opts...),
	}
	for name, dst := range map[string]*string{
		query.FieldID:        &r.idKey,
		query.FieldCreatedAt: &r.createdKey,
		query.FieldUpdatedAt: &r.updatedKey,
		query.FieldDeletedAt: &r.deletedAtKey,
		query.FieldIsDeleted: &r.isDeletedKey,
	} {
		key, err := r.fields.Resolve(name)
		if err != nil {
			return nil, fmt.Errorf("entity must embed entity.Base inline: %w", err)
		}
		*dst = key
	}
	if r.idKey != "_id" {
		return nil, fmt.Errorf("entity.Base must be inlined, got id key %q", r.idKey)
	}
	if _, ok := any(PT(new(T))).(repository.Versioned); ok {
		key, err := r.fields.Resolve("Version")
		if err != nil {
			return nil, fmt.Errorf("versioned entity has no Version field: %w", err)
		}
		r.versionKey = key
	}
	for name, lookup := range r.opts.Lookups {
		if lookup.From == "" || lookup.LocalField == "" || lookup.ForeignField == "" {
			return nil, fmt.Errorf("lookup %q is incomplete", name)
		}
	}

	name := r.opts.Collection
	if name == "" {
		name = collection
	}
	r.inst = repository.NewInstrument(r.opts, BackendMongo, name)
	return r, nil
}

// Capabilities reports substring matching and lookup includes.
func (r *Repository[T, PT]) Capabilities() repository.Capabilities {
	return repository.Capabilities{
		Backend:           BackendMongo,
		PatternMatch:      true,
		Include:           true,
		OptimisticLocking: true,
	}
}

// AddItem inserts item, filling a missing identifier and zero timestamps.
func (r *Repository[T, PT]) AddItem(ctx context.Context, item *T) result.Ack {
	started := time.Now()
	if item == nil {
		return r.done(ctx, repository.OpAddItem, started, result.Invalid[struct{}](repository.MsgItemNull))
	}
	PT(item).EntityBase().Stamp(r.opts.Clock, r.opts.IDs)
	if err := r.exec.InsertOne(ctx, r.collection, PT(item)); err != nil {
		return r.done(ctx, repository.OpAddItem, started, r.failed(repository.OpAddItem, err))
	}
	return r.done(ctx, repository.OpAddItem, started, result.Done(repository.MsgAdded))
}

// AddManyItems inserts items in one batch.
func (r *Repository[T, PT]) AddManyItems(ctx context.Context, items []*T) result.Ack {
	started := time.Now()
	if len(items) == 0 {
		return r.done(ctx, repository.OpAddManyItems, started, result.Invalid[struct{}](repository.MsgItemsEmpty))
	}
	docs := make([]any, 0, len(items))
	for _, item := range items {
		if item == nil {
			return r.done(ctx, repository.OpAddManyItems, started, result.Invalid[struct{}](repository.MsgItemNull))
		}
		PT(item).EntityBase().Stamp(r.opts.Clock, r.opts.IDs)
		docs = append(docs, PT(item))
	}
	if err := r.exec.InsertMany(ctx, r.collection, docs); err != nil {
		return r.done(ctx, repository.OpAddManyItems, started, r.failed(repository.OpAddManyItems, err))
	}
	return r.done(ctx, repository.OpAddManyItems, started, result.Done(repository.MsgAddedMany))
}

// GetByID returns the live document with the given identifier.
func (r *Repository[T, PT]) GetByID(ctx context.Context, id string) result.Result[*T] {
	started := time.Now()
	done := func(res result.Result[*T]) result.Result[*T] {
		return repository.Observe(ctx, r.inst, repository.OpGetByID, started, res)
	}
	if entity.ValidateID(id) != nil {
		return done(result.Invalid[*T](repository.MsgIDNull))
	}
	raw, err := r.exec.FindOne(ctx, r.collection, r.liveID(id))
	if errors.Is(err, mongo.ErrNoDocuments) {
		return done(result.NotFound[*T](repository.MsgItemNotFound))
	}
	if err != nil {
		return done(result.Failed[*T](repository.Action(repository.OpGetByID), err))
	}
	item := new(T)
	if err := bson.Unmarshal(raw, PT(item)); err != nil {
		return done(result.Failed[*T](repository.Action(repository.OpGetByID), err))
	}
	return done(result.OK(item, repository.MsgFound))
}

// GetByFilter returns every live document matching filter in identifier
// order, with the named lookups attached.
func (r *Repository[T, PT]) GetByFilter(ctx context.Context, filter query.Predicate, include ...string) result.Result[[]*T] {
	started := time.Now()
	done := func(res result.Result[[]*T]) result.Result[[]*T] {
		return repository.Observe(ctx, r.inst, repository.OpGetByFilter, started, res)
	}

	if err := query.Validate(filter); err != nil {
		return done(result.Invalid[[]*T](err.Error()))
	}
	include, err := query.NormalizeInclude(include)
	if err != nil {
		return done(result.Invalid[[]*T](err.Error()))
	}
	pipeline, err := r.pipeline(filter, query.Sort{}, 0, 0, include)
	if err != nil {
		return done(result.Invalid[[]*T](err.Error()))
	}
	items, err := r.aggregate(ctx, pipeline)
	if err != nil {
		return done(result.Failed[[]*T](repository.Action(repository.OpGetByFilter), err))
	}
	if len(items) == 0 {
		return done(result.NotFound[[]*T](repository.MsgListNotFound))
	}
	return done(result.OK(items, repository.MsgListed))
}

// GetPaging returns one page of the live documents matching search.
func (r *Repository[T, PT]) GetPaging(ctx context.Context, search query.SearchSpec, page query.PageRequest) result.Result[[]*T] {
	started := time.Now()
	done := func(res result.Result[[]*T]) result.Result[[]*T] {
		return repository.Observe(ctx, r.inst, repository.OpGetPaging, started, res)
	}

	page, err := page.Normalize()
	if err != nil {
		return done(result.Invalid[[]*T](err.Error()))
	}
	filter, err := query.Translate(search)
	if err != nil {
		return done(result.Invalid[[]*T](err.Error()))
	}
	sort, err := query.ParseSort(page.Sort)
	if err != nil {
		return done(result.Invalid[[]*T](err.Error()))
	}
	include, err := query.ParseInclude(page.Include)
	if err != nil {
		return done(result.Invalid[[]*T](err.Error()))
	}
	pipeline, err := r.pipeline(filter, sort, page.Offset(), page.Limit(), include)
	if err != nil {
		return done(result.Invalid[[]*T](err.Error()))
	}
	items, err := r.aggregate(ctx, pipeline)
	if err != nil {
		return done(result.Failed[[]*T](repository.Action(repository.OpGetPaging), err))
	}
	return done(result.OK(items, repository.MsgPaged))
}

// RemoveItem physically deletes the document, live or soft-deleted.
func (r *Repository[T, PT]) RemoveItem(ctx context.Context, id string) result.Ack {
	started := time.Now()
	if entity.ValidateID(id) != nil {
		return r.done(ctx, repository.OpRemoveItem, started, result.Invalid[struct{}](repository.MsgIDNull))
	}
	deleted, err := r.exec.DeleteOne(ctx, r.collection, bson.D{{Key: r.idKey, Value: id}})
	if err != nil {
		return r.done(ctx, repository.OpRemoveItem, started, r.failed(repository.OpRemoveItem, err))
	}
	if deleted == 0 {
		return r.done(ctx, repository.OpRemoveItem, started, result.NotFound[struct{}](repository.MsgItemNotFound))
	}
	return r.done(ctx, repository.OpRemoveItem, started, result.Done(repository.MsgRemoved))
}

// SoftRemoveItem marks a live document deleted in a single conditional update.
func (r *Repository[T, PT]) SoftRemoveItem(ctx context.Context, id string) result.Ack {
	started := time.Now()
	if entity.ValidateID(id) != nil {
		return r.done(ctx, repository.OpSoftRemoveItem, started, result.Invalid[struct{}](repository.MsgIDNull))
	}
	now := r.opts.Clock.Now()
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: r.isDeletedKey, Value: true},
		{Key: r.deletedAtKey, Value: now},
		{Key: r.updatedKey, Value: now},
	}}}
	matched, err := r.exec.UpdateOne(ctx, r.collection, r.liveID(id), update)
	if err != nil {
		return r.done(ctx, repository.OpSoftRemoveItem, started, r.failed(repository.OpSoftRemoveItem, err))
	}
	if matched == 0 {
		return r.done(ctx, repository.OpSoftRemoveItem, started, result.NotFound[struct{}](repository.MsgNotFoundOrGone))
	}
	return r.done(ctx, repository.OpSoftRemoveItem, started, result.Done(repository.MsgSoftRemoved))
}

// UpdateItem overwrites the mutable fields of the live document id with item.
// Identity and lifecycle fields other than UpdatedAt are left untouched.
// Versioned entities must carry the stored version and get the next one.
func (r *Repository[T, PT]) UpdateItem(ctx context.Context, id string, item *T) result.Ack {
	started := time.Now()
	if entity.ValidateID(id) != nil {
		return r.done(ctx, repository.OpUpdateItem, started, result.Invalid[struct{}](repository.MsgIDNull))
	}
	if item == nil {
		return r.done(ctx, repository.OpUpdateItem, started, result.Invalid[struct{}](repository.MsgItemNull))
	}

	base := PT(item).EntityBase()
	previous := base.UpdatedAt
	base.UpdatedAt = r.opts.Clock.Now()

	filter := r.liveID(id)
	versioned, isVersioned := repository.AsVersioned(PT(item))
	var expected int64
	if isVersioned {
		expected = versioned.GetVersion()
		filter = append(filter, bson.E{Key: r.versionKey, Value: expected})
		versioned.SetVersion(expected + 1)
	}
	restore := func() {
		base.UpdatedAt = previous
		if isVersioned {
			versioned.SetVersion(expected)
		}
	}

	set, err := r.mutable(PT(item))
	if err != nil {
		restore()
		return r.done(ctx, repository.OpUpdateItem, started, r.failed(repository.OpUpdateItem, err))
	}
	matched, err := r.exec.UpdateOne(ctx, r.collection, filter, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		restore()
		return r.done(ctx, repository.OpUpdateItem, started, r.failed(repository.OpUpdateItem, err))
	}
	if matched == 0 {
		restore()
		if isVersioned {
			if actual, ok := r.currentVersion(ctx, id); ok {
				return r.done(ctx, repository.OpUpdateItem, started,
					r.failed(repository.OpUpdateItem, repository.NewOptimisticLockError(id, expected, actual)))
			}
		}
		return r.done(ctx, repository.OpUpdateItem, started, result.NotFound[struct{}](repository.MsgItemNotFound))
	}
	return r.done(ctx, repository.OpUpdateItem, started, result.Done(repository.MsgUpdated))
}

// mutable encodes item and drops the fields an update must not touch.
func (r *Repository[T, PT]) mutable(item PT) (bson.D, error) {
	raw, err := bson.Marshal(item)
	if err != nil {
		return nil, err
	}
	var doc bson.D
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	frozen := map[string]bool{
		r.idKey:        true,
		r.createdKey:   true,
		r.isDeletedKey: true,
		r.deletedAtKey: true,
	}
	set := make(bson.D, 0, len(doc))
	for _, e := range doc {
		if !frozen[e.Key] {
			set = append(set, e)
		}
	}
	return set, nil
}

func (r *Repository[T, PT]) currentVersion(ctx context.Context, id string) (int64, bool) {
	raw, err := r.exec.FindOne(ctx, r.collection, r.liveID(id))
	if err != nil {
		return 0, false
	}
	current := PT(new(T))
	if err := bson.Unmarshal(raw, current); err != nil {
		return 0, false
	}
	versioned, ok := repository.AsVersioned(current)
	if !ok {
		return 0, false
	}
	return versioned.GetVersion(), true
}

// Count returns the number of pages of pageSize live documents matching search.
func (r *Repository[T, PT]) Count(ctx context.Context, search query.SearchSpec, pageSize int) (int64, error) {
	started := time.Now()
	pages, err := r.count(ctx, search, pageSize)
	if err != nil {
		err = fmt.Errorf("%w: %w", result.ErrInvalidArgument, err)
	}
	return repository.ObserveCount(ctx, r.inst, started, pages, err)
}

func (r *Repository[T, PT]) count(ctx context.Context, search query.SearchSpec, pageSize int) (int64, error) {
	size, err := query.NormalizePageSize(pageSize)
	if err != nil {
		return 0, err
	}
	filter, err := query.Translate(search)
	if err != nil {
		return 0, err
	}
	match, err := r.fields.live(filter)
	if err != nil {
		return 0, err
	}
	matches, err := r.exec.CountDocuments(ctx, r.collection, match)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", repository.Action(repository.OpCount), err)
	}
	return query.PageCount(matches, size), nil
}

// pipeline builds $match, $sort, $skip, $limit and one $lookup per include.
// A zero limit leaves the result unbounded.
func (r *Repository[T, PT]) pipeline(filter query.Predicate, sort query.Sort, skip, limit int, include []string) (mongo.Pipeline, error) {
	match, err := r.fields.live(filter)
	if err != nil {
		return nil, err
	}
	order, err := r.fields.sortStage(sort)
	if err != nil {
		return nil, err
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: order}},
	}
	if skip > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$skip", Value: int64(skip)}})
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: int64(limit)}})
	}
	for _, name := range include {
		lookup, ok := r.opts.Lookups[name]
		if !ok {
			return nil, fmt.Errorf("unknown include %q", name)
		}
		local := lookup.LocalField
		if key, err := r.fields.Resolve(local); err == nil {
			local = key
		}
		pipeline = append(pipeline, bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: lookup.From},
			{Key: "localField", Value: local},
			{Key: "foreignField", Value: lookup.ForeignField},
			{Key: "as", Value: name},
		}}})
	}
	return pipeline, nil
}

func (r *Repository[T, PT]) aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]*T, error) {
	raws, err := r.exec.Aggregate(ctx, r.collection, pipeline)
	if err != nil {
		return nil, err
	}
	items := make([]*T, 0, len(raws))
	for _, raw := range raws {
		item := new(T)
		if err := bson.Unmarshal(raw, PT(item)); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *Repository[T, PT]) liveID(id string) bson.D {
	return bson.D{
		{Key: r.idKey, Value: id},
		{Key: r.isDeletedKey, Value: false},
	}
}

func (r *Repository[T, PT]) failed(op string, err error) result.Ack {
	return result.Failed[struct{}](repository.Action(op), err)
}

func (r *Repository[T, PT]) done(ctx context.Context, op string, started time.Time, res result.Ack) result.Ack {
	return repository.Observe(ctx, r.inst, op, started, res)
}
