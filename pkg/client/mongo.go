package client

import (
	"context"
	"time"

	"hotelops/pkg/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const mongoAppName = "hotelops-slots"

// mongoOptions reads allocations from the primary and acknowledges writes on a
// majority, so a record that won the active-slot index is never rolled back.
func mongoOptions(mongoURI string, connTimeout time.Duration) *options.ClientOptions {
	return options.Client().
		ApplyURI(mongoURI).
		SetAppName(mongoAppName).
		SetServerSelectionTimeout(connTimeout).
		SetReadPreference(readpref.Primary()).
		SetWriteConcern(writeconcern.Majority())
}

func (c *Client) SetMongo(log *logger.Logger, mongoURI string, mongoConnTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, mongoOptions(mongoURI, mongoConnTimeout))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		log.Fatal("Failed to ping MongoDB", "error", err)
	}

	log.Info("Connected to MongoDB", "app_name", mongoAppName)
	c.Mongo = client
}
