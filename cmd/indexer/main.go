package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chainindexer/services/dispatcher"
	"chainindexer/services/handler"
	"chainindexer/services/listener"
	"chainindexer/services/supervisor"
	"chainindexer/shared/cache"
	"chainindexer/shared/config"
	"chainindexer/shared/httpapi"
	"chainindexer/shared/logger"
	"chainindexer/shared/metrics"
	"chainindexer/shared/mq"
	"chainindexer/shared/store"
)

func main() {
	cfg := config.Load()

	appLogger, err := logger.NewLoggerDefault()
	if err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	defer appLogger.Sync()

	redisCache, err := cache.NewCache(cfg.RedisURL)
	if err != nil {
		appLogger.Error("failed to connect to redis: %v", err)
		log.Fatal(err)
	}

	db, err := store.NewPostgresStore(cfg.StoreDSN, redisCache)
	if err != nil {
		appLogger.Error("failed to connect to store: %v", err)
		log.Fatal(err)
	}

	metricsClient := metrics.New()

	dispatch := dispatcher.New(appLogger, metricsClient, cfg.DispatcherMaxQueue)
	dispatch.RegisterHandler(handler.New(db, db, redisCache, appLogger, metricsClient))
	dispatch.RegisterHandler(buildPublishHandler(cfg, appLogger, metricsClient))

	pullParams := listener.PullParams{
		ScanInterval:       time.Duration(cfg.ScanIntervalMs) * time.Millisecond,
		BlocksPerScan:      cfg.BlocksPerScan,
		ContractBatchSize:  cfg.ContractBatchSize,
		ContractBatchDelay: time.Duration(cfg.ContractBatchDelayMs) * time.Millisecond,
		EventBatchSize:     cfg.EventBatchSize,
		EventBatchDelay:    time.Duration(cfg.EventBatchDelayMs) * time.Millisecond,
		BlockBatchSize:     cfg.BlockBatchSize,
		BlockBatchDelay:    time.Duration(cfg.BlockBatchDelayMs) * time.Millisecond,
	}
	refreshInterval := time.Duration(cfg.ContractRefreshInterval) * time.Second
	gracePeriod := time.Duration(cfg.ShutdownGraceSeconds) * time.Second

	sup := supervisor.New(db, dispatch, appLogger, metricsClient, pullParams, refreshInterval, cfg.WebsocketReconnectAttempts, gracePeriod)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sup.Start(ctx); err != nil {
		appLogger.Error("supervisor failed to start: %v", err)
		log.Fatal(err)
	}
	appLogger.Info("supervisor started, listeners running for every enabled chain")

	api := httpapi.New(":"+cfg.Port, sup, db, appLogger)
	go func() {
		if err := api.Start(ctx); err != nil {
			appLogger.Error("httpapi server error: %v", err)
		}
	}()
	appLogger.Info("operator http surface listening on port %s", cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutdown signal received, draining listeners")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), gracePeriod)
	defer shutdownCancel()

	if err := sup.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("supervisor shutdown error: %v", err)
	}
	if err := api.Stop(shutdownCtx); err != nil {
		appLogger.Error("httpapi shutdown error: %v", err)
	}
	cancel()

	appLogger.Info("shutdown complete")
}

// buildPublishHandler wires the Kafka plugin as the downstream
// analytics/alerting publish path. A plugin initialization failure is
// logged and the handler degrades to a no-op rather than blocking
// startup, since publishing is not on the ingestion critical path.
func buildPublishHandler(cfg *config.RuntimeConfig, log logger.Logger, m *metrics.Metrics) *handler.PublishHandler {
	brokers := make([]interface{}, len(cfg.KafkaBrokers))
	for i, b := range cfg.KafkaBrokers {
		brokers[i] = b
	}

	multi := mq.NewMultiProtocolMQ("kafka")
	if err := multi.Initialize(map[string]map[string]interface{}{
		"kafka": {"brokers": brokers},
	}); err != nil {
		log.Warn("publish handler: kafka init failed, publishing disabled: %v", err)
		return handler.NewPublishHandler(nil, "blockchain-events", log, m)
	}

	return handler.NewPublishHandler(multi, "blockchain-events", log, m)
}
