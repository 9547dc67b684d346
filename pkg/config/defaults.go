package config

import "time"

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "hotelDB"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultStorageDriver = DriverMongo

	DefaultPort     = "5000"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 120
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 10 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 64 * 1024 // 64KB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultStoreTimeout       = 3 * time.Second
	DefaultStoreRetryAttempts = 2
	DefaultStoreRetryBackoff  = 50 * time.Millisecond

	// The front desk grid shows twenty bays.
	DefaultSlotCount = 20

	DefaultEventsEnabled   = false
	DefaultSlotEventsTopic = "hotel.parking.slots"

	DefaultMetricsEnabled = true
	DefaultMetricsPath    = "/metrics"

	DefaultTracingEnabled = false
)
