package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// fileConfig mirrors the TOML layout of a config file. Every field is optional;
// durations are Go duration strings such as "250ms" or "1m".
type fileConfig struct {
	Server struct {
		Port            string `toml:"port"`
		LogLevel        string `toml:"log_level"`
		ReadTimeout     string `toml:"read_timeout"`
		WriteTimeout    string `toml:"write_timeout"`
		IdleTimeout     string `toml:"idle_timeout"`
		ShutdownTimeout string `toml:"shutdown_timeout"`
		RequestTimeout  string `toml:"request_timeout"`
		MaxRequestSize  int    `toml:"max_request_size"`
		IdempotencyTTL  string `toml:"idempotency_ttl"`
	} `toml:"server"`

	RateLimit struct {
		Requests int    `toml:"requests"`
		Window   string `toml:"window"`
	} `toml:"rate_limit"`

	Storage struct {
		Driver        string `toml:"driver"`
		DSN           string `toml:"dsn"`
		Timeout       string `toml:"timeout"`
		RetryAttempts *int   `toml:"retry_attempts"`
		RetryBackoff  string `toml:"retry_backoff"`
	} `toml:"storage"`

	Mongo struct {
		URI          string `toml:"uri"`
		DatabaseName string `toml:"database_name"`
		ConnTimeout  string `toml:"conn_timeout"`
	} `toml:"mongo"`

	Slots struct {
		Count int `toml:"count"`
	} `toml:"slots"`

	Events struct {
		Enabled *bool  `toml:"enabled"`
		Topic   string `toml:"topic"`
	} `toml:"events"`

	Metrics struct {
		Enabled *bool  `toml:"enabled"`
		Path    string `toml:"path"`
	} `toml:"metrics"`

	Tracing struct {
		Enabled *bool `toml:"enabled"`
	} `toml:"tracing"`
}

func applyFile(cfg *Config, path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	return fc.apply(cfg)
}

func (fc *fileConfig) apply(cfg *Config) error {
	var err error
	setStr := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}
	setBool := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	setDuration := func(dst *time.Duration, key, v string) {
		if v == "" || err != nil {
			return
		}
		d, parseErr := time.ParseDuration(v)
		if parseErr != nil {
			err = fmt.Errorf("invalid duration for %s: %q", key, v)
			return
		}
		*dst = d
	}

	setStr(&cfg.Port, fc.Server.Port)
	setStr(&cfg.LogLevel, fc.Server.LogLevel)
	setDuration(&cfg.ReadTimeout, "server.read_timeout", fc.Server.ReadTimeout)
	setDuration(&cfg.WriteTimeout, "server.write_timeout", fc.Server.WriteTimeout)
	setDuration(&cfg.IdleTimeout, "server.idle_timeout", fc.Server.IdleTimeout)
	setDuration(&cfg.ShutdownTimeout, "server.shutdown_timeout", fc.Server.ShutdownTimeout)
	setDuration(&cfg.RequestTimeout, "server.request_timeout", fc.Server.RequestTimeout)
	setInt(&cfg.MaxRequestSize, fc.Server.MaxRequestSize)
	setDuration(&cfg.IdempotencyTTL, "server.idempotency_ttl", fc.Server.IdempotencyTTL)

	setInt(&cfg.RateLimitRequests, fc.RateLimit.Requests)
	setDuration(&cfg.RateLimitWindow, "rate_limit.window", fc.RateLimit.Window)

	setStr(&cfg.StorageDriver, fc.Storage.Driver)
	setStr(&cfg.SQLDSN, fc.Storage.DSN)
	setDuration(&cfg.StoreTimeout, "storage.timeout", fc.Storage.Timeout)
	if fc.Storage.RetryAttempts != nil {
		cfg.StoreRetryAttempts = *fc.Storage.RetryAttempts
	}
	setDuration(&cfg.StoreRetryBackoff, "storage.retry_backoff", fc.Storage.RetryBackoff)

	setStr(&cfg.MongoURI, fc.Mongo.URI)
	setStr(&cfg.MongoDatabaseName, fc.Mongo.DatabaseName)
	setDuration(&cfg.MongoConnTimeout, "mongo.conn_timeout", fc.Mongo.ConnTimeout)

	setInt(&cfg.SlotCount, fc.Slots.Count)

	setBool(&cfg.EventsEnabled, fc.Events.Enabled)
	setStr(&cfg.SlotEventsTopic, fc.Events.Topic)

	setBool(&cfg.MetricsEnabled, fc.Metrics.Enabled)
	setStr(&cfg.MetricsPath, fc.Metrics.Path)

	setBool(&cfg.TracingEnabled, fc.Tracing.Enabled)

	return err
}
