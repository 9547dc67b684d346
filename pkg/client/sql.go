package client

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hotelops/pkg/logger"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLDriverName maps a configured storage driver to its database/sql driver name.
func SQLDriverName(driver string) (string, error) {
	switch driver {
	case "postgres":
		return "postgres", nil
	case "sqlite":
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unsupported SQL driver: %s", driver)
	}
}

// OpenSQL opens and pings a SQL database. SQLite connections are capped at one
// so every statement sees the same database, including ":memory:" ones.
func OpenSQL(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	name, err := SQLDriverName(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if name == "sqlite3" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}
	return db, nil
}

func (c *Client) SetSQL(log *logger.Logger, driver, dsn string, connTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), connTimeout)
	defer cancel()

	db, err := OpenSQL(ctx, driver, dsn)
	if err != nil {
		log.Fatal("Failed to connect to SQL database", "driver", driver, "error", err)
	}

	log.Info("Successfully connected to SQL database", "driver", driver)
	c.SQL = db
	c.SQLDriver = driver
}
