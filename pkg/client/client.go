package client

import (
	"context"
	"database/sql"
	"time"

	"hotelops/pkg/logger"

	"go.mongodb.org/mongo-driver/mongo"
)

const disconnectTimeout = 5 * time.Second

// Client holds the storage connections opened for the process. At most one of
// Mongo and SQL is set, depending on the configured storage driver.
type Client struct {
	Mongo *mongo.Client
	SQL   *sql.DB

	SQLDriver string
}

func NewClient() *Client {
	return &Client{}
}

func (c *Client) GracefulShutdown(log *logger.Logger) {
	if c.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
		defer cancel()

		if err := c.Mongo.Disconnect(ctx); err != nil {
			log.Error("Failed to disconnect from MongoDB", "error", err)
		} else {
			log.Info("Disconnected from MongoDB")
		}
	}

	if c.SQL != nil {
		if err := c.SQL.Close(); err != nil {
			log.Error("Failed to close SQL database", "driver", c.SQLDriver, "error", err)
		} else {
			log.Info("Closed SQL database", "driver", c.SQLDriver)
		}
	}
}
