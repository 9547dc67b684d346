package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"hotelops/pkg/client"
	"hotelops/pkg/logger"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	StorageDriver string
	SQLDSN        string

	Port     string
	LogLevel string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	StoreTimeout       time.Duration
	StoreRetryAttempts int
	StoreRetryBackoff  time.Duration

	SlotCount int

	EventsEnabled   bool
	SlotEventsTopic string

	MetricsEnabled bool
	MetricsPath    string

	TracingEnabled bool

	Log    *logger.Logger
	Client *client.Client
}

// Load builds the configuration from defaults, the optional TOML file named by
// CONFIG_FILE, and finally environment variables. Invalid configuration is fatal.
func Load(serviceName string) *Config {
	cfg, err := build(os.Getenv(EnvConfigFile))

	cfg.Log = logger.New(logger.Config{
		Level:     cfg.LogLevel,
		Format:    logger.JSON,
		AddSource: true,
		Service:   serviceName,
	})
	cfg.Client = client.NewClient()

	if err != nil {
		cfg.Log.Fatal("Failed to load configuration file", "error", err)
	}
	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func build(configFile string) (*Config, error) {
	cfg := Defaults()

	var fileErr error
	if configFile != "" {
		fileErr = applyFile(cfg, configFile)
	}
	applyEnv(cfg)

	return cfg, fileErr
}

func Defaults() *Config {
	return &Config{
		MongoURI:          DefaultMongoURI,
		MongoDatabaseName: DefaultMongoDatabaseName,
		MongoConnTimeout:  DefaultMongoConnTimeout,

		StorageDriver: DefaultStorageDriver,

		Port:     DefaultPort,
		LogLevel: DefaultLogLevel,

		RateLimitRequests: DefaultRateLimitRequests,
		RateLimitWindow:   DefaultRateLimitWindow,

		RequestTimeout: DefaultRequestTimeout,
		IdempotencyTTL: DefaultIdempotencyTTL,
		MaxRequestSize: DefaultMaxRequestSize,

		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,

		StoreTimeout:       DefaultStoreTimeout,
		StoreRetryAttempts: DefaultStoreRetryAttempts,
		StoreRetryBackoff:  DefaultStoreRetryBackoff,

		SlotCount: DefaultSlotCount,

		EventsEnabled:   DefaultEventsEnabled,
		SlotEventsTopic: DefaultSlotEventsTopic,

		MetricsEnabled: DefaultMetricsEnabled,
		MetricsPath:    DefaultMetricsPath,

		TracingEnabled: DefaultTracingEnabled,
	}
}

func applyEnv(cfg *Config) {
	cfg.MongoURI = getEnvStr(EnvMongoURI, cfg.MongoURI)
	cfg.MongoDatabaseName = getEnvStr(EnvMongoDatabaseName, cfg.MongoDatabaseName)
	cfg.MongoConnTimeout = getEnvDuration(EnvMongoConnTimeout, cfg.MongoConnTimeout)

	cfg.StorageDriver = strings.ToLower(getEnvStr(EnvStorageDriver, cfg.StorageDriver))
	cfg.SQLDSN = getEnvStr(EnvSQLDSN, cfg.SQLDSN)

	cfg.Port = getEnvStr(EnvPort, cfg.Port)
	cfg.LogLevel = getEnvStr(EnvLogLevel, cfg.LogLevel)

	cfg.RateLimitRequests = getEnvNum(EnvRateLimitRequests, cfg.RateLimitRequests)
	cfg.RateLimitWindow = getEnvDuration(EnvRateLimitWindow, cfg.RateLimitWindow)

	cfg.RequestTimeout = getEnvDuration(EnvRequestTimeout, cfg.RequestTimeout)
	cfg.IdempotencyTTL = getEnvDuration(EnvIdempotencyTTL, cfg.IdempotencyTTL)
	cfg.MaxRequestSize = getEnvNum(EnvMaxRequestSize, cfg.MaxRequestSize)

	cfg.ReadTimeout = getEnvDuration(EnvReadTimeout, cfg.ReadTimeout)
	cfg.WriteTimeout = getEnvDuration(EnvWriteTimeout, cfg.WriteTimeout)
	cfg.IdleTimeout = getEnvDuration(EnvIdleTimeout, cfg.IdleTimeout)
	cfg.ShutdownTimeout = getEnvDuration(EnvShutdownTimeout, cfg.ShutdownTimeout)

	cfg.StoreTimeout = getEnvDuration(EnvStoreTimeout, cfg.StoreTimeout)
	cfg.StoreRetryAttempts = getEnvNum(EnvStoreRetryAttempts, cfg.StoreRetryAttempts)
	cfg.StoreRetryBackoff = getEnvDuration(EnvStoreRetryBackoff, cfg.StoreRetryBackoff)

	cfg.SlotCount = getEnvNum(EnvSlotCount, cfg.SlotCount)

	cfg.EventsEnabled = getEnvBool(EnvEventsEnabled, cfg.EventsEnabled)
	cfg.SlotEventsTopic = getEnvStr(EnvSlotEventsTopic, cfg.SlotEventsTopic)

	cfg.MetricsEnabled = getEnvBool(EnvMetricsEnabled, cfg.MetricsEnabled)
	cfg.MetricsPath = getEnvStr(EnvMetricsPath, cfg.MetricsPath)

	cfg.TracingEnabled = getEnvBool(EnvTracingEnabled, cfg.TracingEnabled)
}

// SetStorage opens the client for the configured storage driver. The memory
// driver needs no connection.
func (cfg *Config) SetStorage() {
	switch cfg.StorageDriver {
	case DriverMongo:
		cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
	case DriverPostgres, DriverSQLite:
		cfg.Client.SetSQL(cfg.Log, cfg.StorageDriver, cfg.SQLDSN, cfg.MongoConnTimeout)
	}
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StorageDriver {
	case DriverMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
	case DriverPostgres, DriverSQLite:
		if cfg.SQLDSN == "" {
			errors = append(errors, fmt.Sprintf("SQLDSN cannot be empty when StorageDriver is %s", cfg.StorageDriver))
		}
	case DriverMemory:
	default:
		errors = append(errors, fmt.Sprintf("StorageDriver must be one of [mongo, postgres, sqlite, memory], got: %s", cfg.StorageDriver))
	}

	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}
	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}
	if cfg.StoreTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("StoreTimeout must be positive, got: %s", cfg.StoreTimeout))
	}
	if cfg.StoreTimeout >= cfg.RequestTimeout {
		errors = append(errors, fmt.Sprintf("StoreTimeout (%s) must be shorter than RequestTimeout (%s)", cfg.StoreTimeout, cfg.RequestTimeout))
	}
	if cfg.StoreRetryAttempts < 0 {
		errors = append(errors, fmt.Sprintf("StoreRetryAttempts cannot be negative, got: %d", cfg.StoreRetryAttempts))
	}
	if cfg.StoreRetryBackoff < 0 {
		errors = append(errors, fmt.Sprintf("StoreRetryBackoff cannot be negative, got: %s", cfg.StoreRetryBackoff))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.SlotCount <= 0 {
		errors = append(errors, fmt.Sprintf("SlotCount must be positive, got: %d", cfg.SlotCount))
	}

	if cfg.EventsEnabled && cfg.SlotEventsTopic == "" {
		errors = append(errors, "SlotEventsTopic cannot be empty when events are enabled")
	}
	if cfg.MetricsEnabled && !strings.HasPrefix(cfg.MetricsPath, "/") {
		errors = append(errors, fmt.Sprintf("MetricsPath must start with '/', got: %s", cfg.MetricsPath))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"storage_driver", cfg.StorageDriver,
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"sql_dsn", redactDSN(cfg.SQLDSN),
		"port", cfg.Port,
		"log_level", cfg.LogLevel,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"store_timeout", cfg.StoreTimeout,
		"store_retry_attempts", cfg.StoreRetryAttempts,
		"store_retry_backoff", cfg.StoreRetryBackoff,
		"slot_count", cfg.SlotCount,
		"events_enabled", cfg.EventsEnabled,
		"slot_events_topic", cfg.SlotEventsTopic,
		"metrics_enabled", cfg.MetricsEnabled,
		"metrics_path", cfg.MetricsPath,
		"tracing_enabled", cfg.TracingEnabled,
	)
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func redactDSN(dsn string) string {
	urlCredentials := regexp.MustCompile(`(://)[^:/@]+:[^@]+@`)
	dsn = urlCredentials.ReplaceAllString(dsn, "${1}***:***@")
	keyValuePassword := regexp.MustCompile(`(password=)\S+`)
	return keyValuePassword.ReplaceAllString(dsn, "${1}***")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
