package main

import (
	"context"
	"os"

	"hotelops/internal/slots/events"
	"hotelops/internal/slots/handler"
	"hotelops/internal/slots/repository"
	"hotelops/internal/slots/service"
	"hotelops/internal/slots/validator"
	"hotelops/pkg/app"
	"hotelops/pkg/config"
	"hotelops/pkg/metrics"
	"hotelops/pkg/tracing"
)

const (
	ServiceName    = "slots"
	ServiceVersion = "1.0.0"
	MetricsPrefix  = "hotelops"
)

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetStorage()

	cfg.Log.Info("Starting Slots service", "storage_driver", cfg.StorageDriver)

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New(MetricsPrefix)
	}

	if cfg.TracingEnabled {
		if err := tracing.Init(ServiceName, ServiceVersion, os.Stdout); err != nil {
			cfg.Log.Fatal("Failed to initialize tracing", "error", err)
		}
		cfg.Log.Info("Tracing enabled", "exporter", "stdout")
	}

	store, err := repository.NewFromConfig(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to create allocation store", "error", err)
	}

	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), cfg.MongoConnTimeout)
	err = repository.VerifySchema(schemaCtx, store)
	cancelSchema()
	if err != nil {
		cfg.Log.Fatal("Allocation store is not ready, run the migrate command first", "error", err)
	}

	publisher, err := events.NewFromConfig(cfg, ServiceName, m)
	if err != nil {
		cfg.Log.Fatal("Failed to create slot event publisher", "error", err)
	}

	slotService := initServices(cfg, store, publisher, m)

	serverApp := app.NewApplication(cfg, m)
	serverApp.OnShutdown("events", func(context.Context) error { return publisher.Close() })
	serverApp.OnShutdown("tracing", tracing.Shutdown)
	serverApp.OnShutdown("storage", func(context.Context) error {
		cfg.GracefulShutdown()
		return nil
	})
	serverApp.SetApp(
		handler.NewSlotHandler(slotService, cfg.Log),
		handler.NewHealthHandler(store, cfg.StorageDriver, cfg.Log),
	)
	serverApp.Run()
}

func initServices(cfg *config.Config, store repository.AllocationStore, publisher events.Publisher, m *metrics.Metrics) service.SlotService {
	slotValidator := validator.NewSlotValidator(cfg.Log, cfg.SlotCount)
	slotService := service.NewSlotService(
		store,
		slotValidator,
		cfg,
		service.WithPublisher(publisher),
		service.WithMetrics(m),
	)

	cfg.Log.Info("Slots service initialized",
		"slot_count", cfg.SlotCount,
		"store_retry_attempts", cfg.StoreRetryAttempts,
	)
	return slotService
}
