package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimburion/repokit/pkg/entity"
	"github.com/nimburion/repokit/pkg/observability/logger"
	"github.com/nimburion/repokit/pkg/observability/metrics"
	"github.com/nimburion/repokit/pkg/query"
	"github.com/nimburion/repokit/pkg/result"
)

// Lookup attaches documents of another collection to each result, joining
// LocalField of the result to ForeignField of From. The matches are stored
// under the include name.
type Lookup struct {
	From         string
	LocalField   string
	ForeignField string
}

// Options configures a repository. Use the With* functions to set them.
type Options struct {
	Logger     logger.Logger
	Metrics    metrics.Recorder
	Clock      entity.Clock
	IDs        entity.IDGenerator
	Collection string
	Lookups    map[string]Lookup
}

// Option mutates Options.
type Option func(*Options)

// WithLogger sets the logger. The default discards output.
func WithLogger(l logger.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithMetrics records every operation with m.
func WithMetrics(m metrics.Recorder) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithClock sets the clock used for lifecycle stamps.
func WithClock(c entity.Clock) Option {
	return func(o *Options) { o.Clock = c }
}

// WithIDGenerator sets the generator used when AddItem receives a record
// without an identifier.
func WithIDGenerator(g entity.IDGenerator) Option {
	return func(o *Options) { o.IDs = g }
}

// WithCollectionName overrides the name reported in logs and metrics.
func WithCollectionName(name string) Option {
	return func(o *Options) { o.Collection = name }
}

// WithLookup registers a related collection that callers can request by name
// through the include hint. Only the document backend uses lookups; the
// relational backend resolves includes from the entity's associations.
func WithLookup(name, from, localField, foreignField string) Option {
	return func(o *Options) {
		if o.Lookups == nil {
			o.Lookups = make(map[string]Lookup)
		}
		o.Lookups[name] = Lookup{From: from, LocalField: localField, ForeignField: foreignField}
	}
}

// NewOptions applies opts over the defaults.
func NewOptions(opts ...Option) Options {
	o := Options{
		Logger: logger.NewNop(),
		Clock:  entity.SystemClock{},
		IDs:    entity.UUIDGenerator{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.Logger == nil {
		o.Logger = logger.NewNop()
	}
	if o.Clock == nil {
		o.Clock = entity.SystemClock{}
	}
	if o.IDs == nil {
		o.IDs = entity.UUIDGenerator{}
	}
	return o
}

// Instrument logs and measures operations of one repository.
type Instrument struct {
	log        logger.Logger
	metrics    metrics.Recorder
	backend    string
	collection string
}

// NewInstrument binds the logger and metrics of o to a backend and collection.
func NewInstrument(o Options, backend, collection string) Instrument {
	return Instrument{
		log:        o.Logger.With("backend", backend, "collection", collection),
		metrics:    o.Metrics,
		backend:    backend,
		collection: collection,
	}
}

// Observe records the outcome of op started at started and returns res
// unchanged. Failures are logged at error level, everything else at debug.
func Observe[T any](ctx context.Context, in Instrument, op string, started time.Time, res result.Result[T]) result.Result[T] {
	log := in.log.WithContext(ctx)
	switch res.Kind {
	case result.KindFailed:
		log.Error("repository operation failed", "operation", op, "message", res.Message, "error", res.Err)
	default:
		log.Debug("repository operation", "operation", op, "outcome", res.Kind.String(), "message", res.Message)
	}
	if in.metrics != nil {
		in.metrics.Observe(in.backend, in.collection, op, res.Kind.String(), time.Since(started))
	}
	return res
}

// ObserveCount records the outcome of Count, which reports failures as errors.
// Rejected arguments count as invalid; anything else is a store failure.
func ObserveCount(ctx context.Context, in Instrument, started time.Time, pages int64, err error) (int64, error) {
	res := result.OK(pages, "")
	switch {
	case err == nil:
	case rejected(err):
		res = result.Invalid[int64](err.Error())
		in.log.WithContext(ctx).Debug("repository count rejected", "error", err)
	default:
		res = result.Failed[int64](Action(OpCount), err)
		in.log.WithContext(ctx).Error("repository operation failed", "operation", OpCount, "error", err)
	}
	if in.metrics != nil {
		in.metrics.Observe(in.backend, in.collection, OpCount, res.Kind.String(), time.Since(started))
	}
	return pages, err
}

func rejected(err error) bool {
	return errors.Is(err, query.ErrInvalidField) ||
		errors.Is(err, query.ErrInvalidPage) ||
		errors.Is(err, query.ErrInvalidSort)
}
