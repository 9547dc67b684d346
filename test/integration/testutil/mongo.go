//go:build integration

package testutil

import (
	"context"
	"testing"
	"time"

	"hotelops/internal/slots/repository"
	"hotelops/pkg/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultMongoURI     = config.DefaultMongoURI
	DefaultDatabaseName = config.DefaultMongoDatabaseName
	ConnectionTimeout   = 10 * time.Second
)

type MongoHelper struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoHelper(t *testing.T, mongoURI, dbName string) *MongoHelper {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), ConnectionTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		t.Fatalf("failed to connect to MongoDB: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		t.Fatalf("failed to ping MongoDB: %v", err)
	}

	return &MongoHelper{
		Client:   client,
		Database: client.Database(dbName),
	}
}

func (m *MongoHelper) Close(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.Client.Disconnect(ctx); err != nil {
		t.Logf("warning: failed to disconnect from MongoDB: %v", err)
	}
}

// ClearAllocations deletes documents but keeps the collections, so the
// migrated validator and partial unique index stay in place.
func (m *MongoHelper) ClearAllocations(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := m.Database.Collection(repository.CollectionName).DeleteMany(ctx, bson.M{}); err != nil {
		t.Fatalf("failed to clear %s: %v", repository.CollectionName, err)
	}
}

// CountAllocations counts stored records of slotNumber, optionally only active ones.
func (m *MongoHelper) CountAllocations(t *testing.T, slotNumber int, activeOnly bool) int64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	filter := bson.M{"slot_number": slotNumber}
	if activeOnly {
		filter["active"] = true
	}
	count, err := m.Database.Collection(repository.CollectionName).CountDocuments(ctx, filter)
	if err != nil {
		t.Fatalf("failed to count allocations: %v", err)
	}
	return count
}
