// Package mongodb provides the MongoDB connection used by the document repository.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/nimburion/repokit/pkg/observability/logger"
)

const (
	defaultConnectTimeout   = 5 * time.Second
	defaultOperationTimeout = 5 * time.Second
	disconnectTimeout       = 5 * time.Second
)

// ErrClosed is returned by every operation on a closed adapter.
var ErrClosed = errors.New("mongodb adapter is closed")

// Config holds MongoDB adapter configuration. Zero pool values keep the
// driver defaults.
type Config struct {
	URL              string
	Database         string
	AppName          string
	MaxPoolSize      uint64
	MinPoolSize      uint64
	MaxConnIdleTime  time.Duration
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
}

func (c Config) clientOptions() *options.ClientOptions {
	opts := options.Client().ApplyURI(c.URL).SetConnectTimeout(c.ConnectTimeout)
	if c.AppName != "" {
		opts.SetAppName(c.AppName)
	}
	if c.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(c.MaxPoolSize)
	}
	if c.MinPoolSize > 0 && (c.MaxPoolSize == 0 || c.MinPoolSize <= c.MaxPoolSize) {
		opts.SetMinPoolSize(c.MinPoolSize)
	}
	if c.MaxConnIdleTime > 0 {
		opts.SetMaxConnIdleTime(c.MaxConnIdleTime)
	}
	return opts
}

// Adapter owns one client bound to one database. Collection operations get
// the operation timeout unless the caller's context already has a deadline.
type Adapter struct {
	client   *mongo.Client
	database string
	logger   logger.Logger
	timeout  time.Duration
	mu       sync.RWMutex
	closed   bool
}

// Cosa fa: apre il client MongoDB e verifica la connettività via ping.
// Cosa NON fa: non crea indici o collezioni automaticamente.
// Esempio minimo: adapter, err := mongodb.NewAdapter(cfg, log)
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("mongodb URL is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("mongodb database is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = defaultOperationTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, cfg.clientOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	log.Info("MongoDB connection established", "database", cfg.Database, "operation_timeout", cfg.OperationTimeout)
	return &Adapter{
		client:   client,
		database: cfg.Database,
		logger:   log,
		timeout:  cfg.OperationTimeout,
	}, nil
}

// DatabaseName returns the database the adapter is bound to.
func (a *Adapter) DatabaseName() string {
	return a.database
}

func (a *Adapter) collection(name string) (*mongo.Collection, error) {
	if a.isClosed() {
		return nil, ErrClosed
	}
	return a.client.Database(a.database).Collection(name), nil
}

func (a *Adapter) isClosed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.closed
}

// Ping checks the primary is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	if a.isClosed() {
		return ErrClosed
	}
	return a.client.Ping(ctx, readpref.Primary())
}

// HealthCheck pings within the operation timeout.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	hcCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	if err := a.Ping(hcCtx); err != nil {
		a.logger.Error("MongoDB health check failed", "error", err)
		return fmt.Errorf("mongodb health check failed: %w", err)
	}
	return nil
}

// Close disconnects the client. Closing twice is a no-op.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	if a.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	if err := a.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to close mongodb connection: %w", err)
	}
	a.logger.Info("MongoDB connection closed", "database", a.database)
	return nil
}

// InsertOne stores doc in collection.
func (a *Adapter) InsertOne(ctx context.Context, collection string, doc any) error {
	coll, err := a.collection(collection)
	if err != nil {
		return err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	_, err = coll.InsertOne(opCtx, doc)
	return err
}

// InsertMany inserts docs in a single ordered batch.
func (a *Adapter) InsertMany(ctx context.Context, collection string, docs []any) error {
	coll, err := a.collection(collection)
	if err != nil {
		return err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	_, err = coll.InsertMany(opCtx, docs)
	return err
}

// FindOneRaw returns the first matching document undecoded, or
// mongo.ErrNoDocuments.
func (a *Adapter) FindOneRaw(ctx context.Context, collection string, filter any) (bson.Raw, error) {
	coll, err := a.collection(collection)
	if err != nil {
		return nil, err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return coll.FindOne(opCtx, filter).Raw()
}

// Aggregate runs pipeline and returns every resulting document undecoded.
func (a *Adapter) Aggregate(ctx context.Context, collection string, pipeline any) ([]bson.Raw, error) {
	coll, err := a.collection(collection)
	if err != nil {
		return nil, err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	cursor, err := coll.Aggregate(opCtx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(opCtx)

	var docs []bson.Raw
	for cursor.Next(opCtx) {
		doc := make(bson.Raw, len(cursor.Current))
		copy(doc, cursor.Current)
		docs = append(docs, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (a *Adapter) CountDocuments(ctx context.Context, collection string, filter any) (int64, error) {
	coll, err := a.collection(collection)
	if err != nil {
		return 0, err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return coll.CountDocuments(opCtx, filter)
}

// UpdateOne applies update to the first match and reports how many documents
// matched, whether or not they changed.
func (a *Adapter) UpdateOne(ctx context.Context, collection string, filter, update any) (int64, error) {
	coll, err := a.collection(collection)
	if err != nil {
		return 0, err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	res, err := coll.UpdateOne(opCtx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

// DeleteOne removes the first match and reports how many documents went.
func (a *Adapter) DeleteOne(ctx context.Context, collection string, filter any) (int64, error) {
	coll, err := a.collection(collection)
	if err != nil {
		return 0, err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	res, err := coll.DeleteOne(opCtx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListCollections returns the collection names of the configured database.
func (a *Adapter) ListCollections(ctx context.Context) ([]string, error) {
	if a.isClosed() {
		return nil, ErrClosed
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.client.Database(a.database).ListCollectionNames(opCtx, bson.D{})
}

func (a *Adapter) withOperationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}
