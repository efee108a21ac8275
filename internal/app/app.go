package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/riskibarqy/match-tracker/internal/config"
	"github.com/riskibarqy/match-tracker/internal/domain/aggregate"
	"github.com/riskibarqy/match-tracker/internal/domain/event"
	"github.com/riskibarqy/match-tracker/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/match-tracker/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/match-tracker/internal/infrastructure/stream"
	"github.com/riskibarqy/match-tracker/internal/interfaces/httpapi"
	"github.com/riskibarqy/match-tracker/internal/platform/cache"
	idgen "github.com/riskibarqy/match-tracker/internal/platform/id"
	"github.com/riskibarqy/match-tracker/internal/platform/logging"
	"github.com/riskibarqy/match-tracker/internal/platform/resilience"
	"github.com/riskibarqy/match-tracker/internal/usecase"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
)

// App holds the wired service: the HTTP server, the change-stream
// dispatcher, and the database handle they share.
type App struct {
	HTTPServer *http.Server
	Dispatcher *stream.Dispatcher

	db     *sqlx.DB
	logger *logging.Logger
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	var (
		db       *sqlx.DB
		eventLog event.Log
		statsav  aggregate.Store
	)

	switch cfg.StorageBackend {
	case config.BackendMemory:
		eventLog = memory.NewEventLogRepository()
		statsav = memory.NewStatisticsRepository()
		logger.Info("storage backend", "backend", config.BackendMemory)
	default:
		opened, err := otelsqlx.Open("postgres", normalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary),
			otelsql.WithDBSystem("postgresql"),
			otelsql.WithDBName(dbNameFromURL(cfg.DBURL)),
			otelsql.WithQueryFormatter(formatDBQueryForTrace),
		)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		opened.SetMaxOpenConns(25)
		opened.SetMaxIdleConns(5)
		opened.SetConnMaxLifetime(30 * time.Minute)

		db = opened
		eventLog = postgres.NewEventLogRepository(db)
		statsav = postgres.NewStatisticsRepository(db)
		logger.Info("storage backend", "backend", config.BackendPostgres, "db", dbNameFromURL(cfg.DBURL))
	}

	var (
		queryCache  *cache.Store
		invalidator usecase.CacheInvalidator
	)
	if cfg.CacheEnabled {
		queryCache = cache.NewStore(cfg.CacheTTL)
		invalidator = queryCache
	}

	writeMode, err := usecase.ParseWriteMode(cfg.AggregateWriteMode)
	if err != nil {
		closeDB(db, logger)
		return nil, err
	}

	generator := idgen.NewRandomGenerator()
	ingestSvc := usecase.NewIngestService(eventLog, generator, logger)
	aggregationSvc := usecase.NewAggregationService(statsav, writeMode, invalidator, logger)
	querySvc := usecase.NewQueryService(eventLog, statsav, queryCache, generator, logger)

	consumers := []stream.Consumer{
		stream.ConsumerFunc{
			ConsumerName: "aggregation-engine",
			Handle:       aggregationSvc.Process,
		},
	}
	if cfg.WebhookEnabled {
		relay, err := stream.NewWebhookRelay(stream.WebhookRelayConfig{
			URL:     cfg.WebhookURL,
			Timeout: cfg.WebhookTimeout,
			Retries: cfg.WebhookRetries,
			CircuitBreaker: resilience.CircuitBreakerConfig{
				Enabled:          cfg.WebhookCircuitEnabled,
				FailureThreshold: cfg.WebhookCircuitFailureCount,
				OpenTimeout:      cfg.WebhookCircuitOpenTimeout,
				HalfOpenMaxReq:   cfg.WebhookCircuitHalfOpenMaxReq,
			},
		}, logger)
		if err != nil {
			closeDB(db, logger)
			return nil, err
		}
		consumers = append(consumers, relay)
	}

	dispatcher, err := stream.NewDispatcher(stream.DispatcherConfig{
		PollInterval: cfg.StreamPollInterval,
		BatchSize:    cfg.StreamBatchSize,
		WorkerCount:  cfg.StreamWorkerCount,
		MaxAttempts:  cfg.StreamMaxAttempts,
		RetryDelay:   cfg.StreamRetryDelay,
	}, eventLog, consumers, logger)
	if err != nil {
		closeDB(db, logger)
		return nil, err
	}

	handler := httpapi.NewHandler(ingestSvc, querySvc, logger)
	router := httpapi.NewRouter(handler, logger, cfg.CORSAllowedOrigins)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if server.Addr == "" {
		closeDB(db, logger)
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	return &App{
		HTTPServer: server,
		Dispatcher: dispatcher,
		db:         db,
		logger:     logger,
	}, nil
}

// Close stops the dispatcher and releases the database handle. The HTTP
// server is shut down by the caller before Close.
func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}

	a.Dispatcher.Stop()
	closeDB(a.db, a.logger)

	return nil
}

func closeDB(db *sqlx.DB, logger *logging.Logger) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		logger.Error("close database", "error", err)
	}
}
