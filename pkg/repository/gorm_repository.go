package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nimburion/repokit/pkg/entity"
	"github.com/nimburion/repokit/pkg/query"
	"github.com/nimburion/repokit/pkg/result"
)

// BackendGorm is the Capabilities.Backend of GormRepository.
const BackendGorm = "gorm"

// GormRepository implements Repository on a relational database through GORM.
// It is safe for concurrent use.
type GormRepository[T any, PT entity.Pointer[T]] struct {
	db     *gorm.DB
	fields gormFields
	opts   Options
	inst   Instrument

	idCol, createdCol, updatedCol, deletedAtCol, isDeletedCol string
	versionCol                                                string
}

// NewGormRepository parses the schema of T and returns a repository bound to
// its table.
func NewGormRepository[T any, PT entity.Pointer[T]](db *gorm.DB, opts ...Option) (*GormRepository[T, PT], error) {
	if db == nil {
		return nil, errors.New("gorm db is nil")
	}
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(PT(new(T))); err != nil {
		return nil, fmt.Errorf("failed to parse entity schema: %w", err)
	}

	r := &GormRepository[T, PT]{
		db:     db,
		fields: gormFields{schema: stmt.Schema},
		opts:   NewOptions(opts...),
	}
	for name, dst := range map[string]*string{
		query.FieldID:        &r.idCol,
		query.FieldCreatedAt: &r.createdCol,
		query.FieldUpdatedAt: &r.updatedCol,
		query.FieldDeletedAt: &r.deletedAtCol,
		query.FieldIsDeleted: &r.isDeletedCol,
	} {
		col, err := r.fields.Resolve(name)
		if err != nil {
			return nil, fmt.Errorf("entity %s does not embed entity.Base: %w", stmt.Schema.Name, err)
		}
		*dst = col
	}
	if _, ok := any(PT(new(T))).(Versioned); ok {
		col, err := r.fields.Resolve("Version")
		if err != nil {
			return nil, fmt.Errorf("versioned entity %s has no Version column: %w", stmt.Schema.Name, err)
		}
		r.versionCol = col
	}

	collection := r.opts.Collection
	if collection == "" {
		collection = stmt.Schema.Table
	}
	r.inst = NewInstrument(r.opts, BackendGorm, collection)
	return r, nil
}

// Capabilities reports equality-only text matching and association includes.
func (r *GormRepository[T, PT]) Capabilities() Capabilities {
	return Capabilities{
		Backend:           BackendGorm,
		PatternMatch:      false,
		Include:           true,
		OptimisticLocking: true,
	}
}

// AddItem inserts item, filling a missing identifier and zero timestamps.
func (r *GormRepository[T, PT]) AddItem(ctx context.Context, item *T) result.Ack {
	started := time.Now()
	if item == nil {
		return Observe(ctx, r.inst, OpAddItem, started, result.Invalid[struct{}](MsgItemNull))
	}
	PT(item).EntityBase().Stamp(r.opts.Clock, r.opts.IDs)
	if err := r.db.WithContext(ctx).Create(PT(item)).Error; err != nil {
		return Observe(ctx, r.inst, OpAddItem, started, result.Failed[struct{}](actionAdd, err))
	}
	return Observe(ctx, r.inst, OpAddItem, started, result.Done(MsgAdded))
}

// AddManyItems inserts items in one batch.
func (r *GormRepository[T, PT]) AddManyItems(ctx context.Context, items []*T) result.Ack {
	started := time.Now()
	if len(items) == 0 {
		return Observe(ctx, r.inst, OpAddManyItems, started, result.Invalid[struct{}](MsgItemsEmpty))
	}
	for _, item := range items {
		if item == nil {
			return Observe(ctx, r.inst, OpAddManyItems, started, result.Invalid[struct{}](MsgItemNull))
		}
		PT(item).EntityBase().Stamp(r.opts.Clock, r.opts.IDs)
	}
	if err := r.db.WithContext(ctx).Create(items).Error; err != nil {
		return Observe(ctx, r.inst, OpAddManyItems, started, result.Failed[struct{}](actionAddMany, err))
	}
	return Observe(ctx, r.inst, OpAddManyItems, started, result.Done(MsgAddedMany))
}

// GetByID returns the live record with the given identifier.
func (r *GormRepository[T, PT]) GetByID(ctx context.Context, id string) result.Result[*T] {
	started := time.Now()
	if entity.ValidateID(id) != nil {
		return Observe(ctx, r.inst, OpGetByID, started, result.Invalid[*T](MsgIDNull))
	}
	item := new(T)
	err := r.db.WithContext(ctx).
		Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: r.idCol}, Value: id}).
		Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: r.isDeletedCol}, Value: false}).
		Take(PT(item)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Observe(ctx, r.inst, OpGetByID, started, result.NotFound[*T](MsgItemNotFound))
	}
	if err != nil {
		return Observe(ctx, r.inst, OpGetByID, started, result.Failed[*T](actionGetByID, err))
	}
	return Observe(ctx, r.inst, OpGetByID, started, result.OK(item, MsgFound))
}

// GetByFilter returns every live record matching filter, ordered by primary
// key, with the named associations preloaded.
func (r *GormRepository[T, PT]) GetByFilter(ctx context.Context, filter query.Predicate, include ...string) result.Result[[]*T] {
	started := time.Now()
	done := func(res result.Result[[]*T]) result.Result[[]*T] {
		return Observe(ctx, r.inst, OpGetByFilter, started, res)
	}

	if err := query.Validate(filter); err != nil {
		return done(result.Invalid[[]*T](err.Error()))
	}
	include, err := query.NormalizeInclude(include)
	if err != nil {
		return done(result.Invalid[[]*T](err.Error()))
	}
	where, err := r.fields.where(filter)
	if err != nil {
		return done(result.Invalid[[]*T](err.Error()))
	}
	order, err := r.fields.order(query.Sort{})
	if err != nil {
		return done(result.Invalid[[]*T](err.Error()))
	}
	preload, err := r.fields.preload(include)
	if err != nil {
		return done(result.Invalid[[]*T](err.Error()))
	}

	var items []*T
	if err := r.db.WithContext(ctx).Model(PT(new(T))).Scopes(where, order, preload).Find(&items).Error; err != nil {
		return done(result.Failed[[]*T](actionGetList, err))
	}
	if len(items) == 0 {
		return done(result.NotFound[[]*T](MsgListNotFound))
	}
	return done(result.OK(items, MsgListed))
}

// GetPaging returns one page of the live records matching search.
func (r *GormRepository[T, PT]) GetPaging(ctx context.Context, search query.SearchSpec, page query.PageRequest) result.Result[[]*T] {
	started := time.Now()
	done := func(res result.Result[[]*T]) result.Result[[]*T] {
		return Observe(ctx, r.inst, OpGetPaging, started, res)
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
	where, err := r.fields.where(filter)
	if err != nil {
		return done(result.Invalid[[]*T](err.Error()))
	}
	order, err := r.fields.order(sort)
	if err != nil {
		return done(result.Invalid[[]*T](err.Error()))
	}
	preload, err := r.fields.preload(include)
	if err != nil {
		return done(result.Invalid[[]*T](err.Error()))
	}

	items := make([]*T, 0, page.Limit())
	err = r.db.WithContext(ctx).Model(PT(new(T))).
		Scopes(where, order, paginate(page), preload).
		Find(&items).Error
	if err != nil {
		return done(result.Failed[[]*T](actionGetList, err))
	}
	return done(result.OK(items, MsgPaged))
}

// RemoveItem physically deletes the record, live or soft-deleted.
func (r *GormRepository[T, PT]) RemoveItem(ctx context.Context, id string) result.Ack {
	started := time.Now()
	if entity.ValidateID(id) != nil {
		return Observe(ctx, r.inst, OpRemoveItem, started, result.Invalid[struct{}](MsgIDNull))
	}
	tx := r.db.WithContext(ctx).Unscoped().
		Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: r.idCol}, Value: id}).
		Delete(PT(new(T)))
	if tx.Error != nil {
		return Observe(ctx, r.inst, OpRemoveItem, started, result.Failed[struct{}](actionRemove, tx.Error))
	}
	if tx.RowsAffected == 0 {
		return Observe(ctx, r.inst, OpRemoveItem, started, result.NotFound[struct{}](MsgItemNotFound))
	}
	return Observe(ctx, r.inst, OpRemoveItem, started, result.Done(MsgRemoved))
}

// SoftRemoveItem marks a live record deleted in a single conditional update.
func (r *GormRepository[T, PT]) SoftRemoveItem(ctx context.Context, id string) result.Ack {
	started := time.Now()
	if entity.ValidateID(id) != nil {
		return Observe(ctx, r.inst, OpSoftRemoveItem, started, result.Invalid[struct{}](MsgIDNull))
	}
	now := r.opts.Clock.Now()
	tx := r.db.WithContext(ctx).Model(PT(new(T))).
		Where(r.liveID(id)).
		Updates(map[string]any{
			r.isDeletedCol: true,
			r.deletedAtCol: now,
			r.updatedCol:   now,
		})
	if tx.Error != nil {
		return Observe(ctx, r.inst, OpSoftRemoveItem, started, result.Failed[struct{}](actionSoftRemove, tx.Error))
	}
	if tx.RowsAffected == 0 {
		return Observe(ctx, r.inst, OpSoftRemoveItem, started, result.NotFound[struct{}](MsgNotFoundOrGone))
	}
	return Observe(ctx, r.inst, OpSoftRemoveItem, started, result.Done(MsgSoftRemoved))
}

// UpdateItem overwrites the mutable fields of the live record id with item.
// Identity and lifecycle columns other than UpdatedAt are left untouched.
// Versioned entities must carry the stored version and get the next one.
func (r *GormRepository[T, PT]) UpdateItem(ctx context.Context, id string, item *T) result.Ack {
	started := time.Now()
	if entity.ValidateID(id) != nil {
		return Observe(ctx, r.inst, OpUpdateItem, started, result.Invalid[struct{}](MsgIDNull))
	}
	if item == nil {
		return Observe(ctx, r.inst, OpUpdateItem, started, result.Invalid[struct{}](MsgItemNull))
	}

	base := PT(item).EntityBase()
	previous := base.UpdatedAt
	base.UpdatedAt = r.opts.Clock.Now()

	tx := r.db.WithContext(ctx).Model(PT(new(T))).Where(r.liveID(id))
	versioned, isVersioned := AsVersioned(PT(item))
	var expected int64
	if isVersioned {
		expected = versioned.GetVersion()
		tx = tx.Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: r.versionCol}, Value: expected})
		versioned.SetVersion(expected + 1)
	}
	tx = tx.Select("*").
		Omit(r.idCol, r.createdCol, r.isDeletedCol, r.deletedAtCol, clause.Associations).
		Updates(PT(item))

	if tx.Error != nil || tx.RowsAffected == 0 {
		base.UpdatedAt = previous
		if isVersioned {
			versioned.SetVersion(expected)
		}
	}
	if tx.Error != nil {
		return Observe(ctx, r.inst, OpUpdateItem, started, result.Failed[struct{}](actionUpdate, tx.Error))
	}
	if tx.RowsAffected == 0 {
		if isVersioned {
			if actual, ok := r.currentVersion(ctx, id); ok {
				return Observe(ctx, r.inst, OpUpdateItem, started,
					result.Failed[struct{}](actionUpdate, NewOptimisticLockError(id, expected, actual)))
			}
		}
		return Observe(ctx, r.inst, OpUpdateItem, started, result.NotFound[struct{}](MsgItemNotFound))
	}
	return Observe(ctx, r.inst, OpUpdateItem, started, result.Done(MsgUpdated))
}

// currentVersion reads the stored version of a live record, for reporting a
// lock conflict after a conditional update matched nothing.
func (r *GormRepository[T, PT]) currentVersion(ctx context.Context, id string) (int64, bool) {
	var versions []int64
	err := r.db.WithContext(ctx).Model(PT(new(T))).
		Where(r.liveID(id)).
		Limit(1).
		Pluck(r.versionCol, &versions).Error
	if err != nil || len(versions) == 0 {
		return 0, false
	}
	return versions[0], true
}

// Count returns the number of pages of pageSize live records matching search.
func (r *GormRepository[T, PT]) Count(ctx context.Context, search query.SearchSpec, pageSize int) (int64, error) {
	started := time.Now()
	pages, err := r.count(ctx, search, pageSize)
	if err != nil {
		err = fmt.Errorf("%w: %w", result.ErrInvalidArgument, err)
	}
	return ObserveCount(ctx, r.inst, started, pages, err)
}

func (r *GormRepository[T, PT]) count(ctx context.Context, search query.SearchSpec, pageSize int) (int64, error) {
	size, err := query.NormalizePageSize(pageSize)
	if err != nil {
		return 0, err
	}
	filter, err := query.Translate(search)
	if err != nil {
		return 0, err
	}
	where, err := r.fields.where(filter)
	if err != nil {
		return 0, err
	}
	var matches int64
	if err := r.db.WithContext(ctx).Model(PT(new(T))).Scopes(where).Count(&matches).Error; err != nil {
		return 0, fmt.Errorf("%s: %w", actionCount, err)
	}
	return query.PageCount(matches, size), nil
}

func (r *GormRepository[T, PT]) liveID(id string) clause.Expression {
	return clause.And(
		clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: r.idCol}, Value: id},
		clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: r.isDeletedCol}, Value: false},
	)
}
