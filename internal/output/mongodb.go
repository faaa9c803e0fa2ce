// internal/output/mongodb.go
package output

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/valpere/FeedScrapexter/internal/utils"
	"github.com/valpere/FeedScrapexter/pkg/types"
)

// DefaultMongoCollection is used when no collection is configured.
const DefaultMongoCollection = "batches"

// MongoOptions configures MongoSink.
type MongoOptions struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// MongoSink stores each batch as one document. A unique index on batch_id
// makes redelivery of the same batch a no-op.
type MongoSink struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
	logger     utils.Logger
}

// NewMongoSink connects, pings and ensures the batch_id index.
func NewMongoSink(ctx context.Context, opts MongoOptions, logger utils.Logger) (*MongoSink, error) {
	if opts.URI == "" {
		return nil, fmt.Errorf("mongodb connection string is required")
	}
	if opts.Database == "" {
		return nil, fmt.Errorf("mongodb database is required")
	}
	if opts.Collection == "" {
		opts.Collection = DefaultMongoCollection
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	clientOptions := options.Client().
		ApplyURI(opts.URI).
		SetServerSelectionTimeout(opts.Timeout).
		SetRetryWrites(true)

	connectCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(opts.Database).Collection(opts.Collection)
	_, err = collection.Indexes().CreateOne(connectCtx, mongo.IndexModel{
		Keys:    bson.D{{Key: "batch_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("batch_id_unique"),
	})
	if err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create batch index: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"database":   opts.Database,
		"collection": opts.Collection,
	}).Info("connected to MongoDB")

	return &MongoSink{
		client:     client,
		collection: collection,
		timeout:    opts.Timeout,
		logger:     logger.WithField("sink", "mongodb"),
	}, nil
}

func (s *MongoSink) Name() string { return "mongodb" }

func (s *MongoSink) Deliver(ctx context.Context, batch *types.Batch) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.collection.InsertOne(ctx, batch); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			s.logger.WithField("batch_id", batch.ID).Debug("batch already stored")
			return nil
		}
		return fmt.Errorf("failed to insert batch %s: %w", batch.ID, err)
	}
	return nil
}

func (s *MongoSink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
