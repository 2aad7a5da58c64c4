package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jwalitptl/vitalflow/internal/app"
	"github.com/jwalitptl/vitalflow/internal/config"
	"github.com/jwalitptl/vitalflow/internal/datasource"
	"github.com/jwalitptl/vitalflow/internal/handler/health"
	"github.com/jwalitptl/vitalflow/internal/repository"
	"github.com/jwalitptl/vitalflow/internal/repository/memory"
	"github.com/jwalitptl/vitalflow/internal/repository/postgres"
	"github.com/jwalitptl/vitalflow/pkg/logger"
	"github.com/jwalitptl/vitalflow/pkg/messaging"
	"github.com/jwalitptl/vitalflow/pkg/messaging/redis"
	"github.com/jwalitptl/vitalflow/pkg/metrics"
	"github.com/jwalitptl/vitalflow/pkg/telemetry"
	"github.com/jwalitptl/vitalflow/pkg/worker"
)

func main() {
	configPath := flag.String("config", "", "path to config.yml")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Console:    cfg.Log.Format == "console",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.Endpoint,
	}, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics("vitalflow", reg)

	checks := map[string]health.Check{}

	var actions repository.ActionRepository
	switch cfg.Sync.Store {
	case config.SyncStorePostgres:
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			log.Fatal(err, "failed to connect to database")
		}
		defer db.Close()
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				log.Fatal(err, "failed to migrate database")
			}
		}
		checks["database"] = pingDB(db)
		actions = postgres.NewActionRepository(db)
	default:
		actions = memory.NewActionRepository()
	}

	src, err := datasource.New(cfg.DataSource, log)
	if err != nil {
		log.Fatal(err, "failed to create data source")
	}

	a, err := app.New(ctx, cfg, app.Deps{
		Logger:   log,
		Metrics:  m,
		Gatherer: reg,
		Actions:  actions,
		Source:   src,
		Checks:   checks,
	})
	if err != nil {
		log.Fatal(err, "failed to start", "datasource", string(cfg.DataSource.Mode))
	}

	// With Redis enabled the API process publishes its own queue. The
	// standalone worker does the same for a shared postgres queue.
	if cfg.Redis.Enabled {
		broker, err := redis.NewRedisBroker(ctx, cfg.Redis.ToBrokerConfig(), &log.ZL)
		if err != nil {
			log.Fatal(err, "failed to connect to Redis")
		}
		defer broker.Close()
		startSync(ctx, cfg, a, broker, log, m)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      a.Router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server listening", "addr", srv.Addr, "datasource", string(cfg.DataSource.Mode), "sync_store", string(cfg.Sync.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err, "failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "server forced to shutdown")
	}
	if err := a.Close(shutdownCtx); err != nil {
		log.Error(err, "failed to persist store")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error(err, "failed to flush traces")
	}
	log.Info("server exited")
}

func startSync(ctx context.Context, cfg *config.Config, a *app.App, broker messaging.Broker, log *logger.Logger, m *metrics.Metrics) {
	processor := worker.NewSyncProcessor(a.Queue, broker, cfg.Sync.ToWorkerConfig(), log, m)
	go processor.Start(ctx)

	cleanup := worker.NewSyncCleanupWorker(a.Queue, cfg.Sync.Retention, cfg.Sync.CleanupInterval, log, m)
	go cleanup.Start(ctx)
}

func pingDB(db *sqlx.DB) health.Check {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}
