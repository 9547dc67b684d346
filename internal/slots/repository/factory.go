package repository

import (
	"fmt"

	"hotelops/pkg/config"
)

// NewFromConfig builds the store selected by STORAGE_DRIVER. The matching
// client must already be connected through cfg.SetStorage.
func NewFromConfig(cfg *config.Config) (AllocationStore, error) {
	switch cfg.StorageDriver {
	case config.DriverMongo:
		if cfg.Client == nil || cfg.Client.Mongo == nil {
			return nil, fmt.Errorf("mongo client is not connected")
		}
		return NewMongoAllocationStore(cfg.Client.Mongo.Database(cfg.MongoDatabaseName), cfg.StoreTimeout), nil
	case config.DriverPostgres:
		if cfg.Client == nil || cfg.Client.SQL == nil {
			return nil, fmt.Errorf("SQL database is not connected")
		}
		return NewSQLAllocationStore(cfg.Client.SQL, DialectPostgres, cfg.StoreTimeout)
	case config.DriverSQLite:
		if cfg.Client == nil || cfg.Client.SQL == nil {
			return nil, fmt.Errorf("SQL database is not connected")
		}
		return NewSQLAllocationStore(cfg.Client.SQL, DialectSQLite, cfg.StoreTimeout)
	case config.DriverMemory:
		return NewMemoryAllocationStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}
}
