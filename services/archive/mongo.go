// Package archive mirrors newly persisted enriched bars into MongoDB.
// The mirror is best-effort and entirely optional: without a configured
// URI every operation is a no-op, and mirror failures never affect the
// relational store.
package archive

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go_stock_collector/models"
)

const (
	mongoDBName    = "stock_collector"
	connectTimeout = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// MongoArchive handles the MongoDB mirror connection and writes
type MongoArchive struct {
	client   *mongo.Client
	database *mongo.Database
	enabled  bool
}

// NewMongoArchive connects to MongoDB when a URI is configured. An empty
// URI yields a disabled archive, not an error.
func NewMongoArchive(uri string) (*MongoArchive, error) {
	if uri == "" {
		log.Println("MONGODB_URI not set, bar archive disabled")
		return &MongoArchive{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(10).
		SetMaxConnIdleTime(30 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("MongoDB ping failed: %w", err)
	}

	log.Println("MongoDB bar archive connected")
	return &MongoArchive{
		client:   client,
		database: client.Database(mongoDBName),
		enabled:  true,
	}, nil
}

// Enabled reports whether the archive has a live connection
func (m *MongoArchive) Enabled() bool {
	return m.enabled
}

// PublishBars mirrors persisted rows into the collection named after the
// bar table. Duplicate rows from overlapping windows are skipped, any
// other failure is logged and swallowed.
func (m *MongoArchive) PublishBars(ticker, table string, bars []models.EnrichedBar) {
	if !m.enabled || len(bars) == 0 {
		return
	}

	docs := make([]interface{}, 0, len(bars))
	for _, b := range bars {
		docs = append(docs, b)
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	opts := options.InsertMany().SetOrdered(false)
	if _, err := m.database.Collection(table).InsertMany(ctx, docs, opts); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return
		}
		log.Printf("Warning: failed to archive %d bars for '%s': %v", len(bars), ticker, err)
	}
}

// Close disconnects from MongoDB
func (m *MongoArchive) Close() {
	if !m.enabled {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.client.Disconnect(ctx); err != nil {
		log.Printf("Error disconnecting MongoDB archive: %v", err)
	}
}
