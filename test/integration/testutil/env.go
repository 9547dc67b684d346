//go:build integration

package testutil

import (
	"fmt"
	"os"
	"testing"
	"time"
)

const DefaultReadyTimeout = 30 * time.Second

type TestEnv struct {
	MongoURI     string
	DatabaseName string
	ServerURL    string
}

func NewTestEnv() *TestEnv {
	serverPort := getEnv("TEST_SERVER_PORT", "5000")

	return &TestEnv{
		MongoURI:     getEnv("TEST_MONGO_URI", DefaultMongoURI),
		DatabaseName: getEnv("TEST_DB_NAME", DefaultDatabaseName),
		ServerURL:    getEnv("TEST_SERVER_URL", fmt.Sprintf("http://localhost:%s", serverPort)),
	}
}

// Setup empties the allocation collections and waits for the service. The
// service must run with STORAGE_DRIVER=mongo against the same database.
func (e *TestEnv) Setup(t *testing.T) (*MongoHelper, *Client) {
	t.Helper()

	mongo := NewMongoHelper(t, e.MongoURI, e.DatabaseName)
	mongo.ClearAllocations(t)

	client := NewClient(e.ServerURL)
	client.WaitForReady(t, DefaultReadyTimeout)

	t.Cleanup(func() {
		mongo.ClearAllocations(t)
		mongo.Close(t)
	})
	return mongo, client
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
