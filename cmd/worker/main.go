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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/vitalflow/internal/config"
	"github.com/jwalitptl/vitalflow/internal/handler/health"
	promHandler "github.com/jwalitptl/vitalflow/internal/handler/prometheus"
	"github.com/jwalitptl/vitalflow/internal/middleware"
	"github.com/jwalitptl/vitalflow/internal/repository/postgres"
	"github.com/jwalitptl/vitalflow/internal/service/syncqueue"
	"github.com/jwalitptl/vitalflow/pkg/logger"
	"github.com/jwalitptl/vitalflow/pkg/messaging/redis"
	"github.com/jwalitptl/vitalflow/pkg/metrics"
	"github.com/jwalitptl/vitalflow/pkg/worker"
)

// The worker drains the postgres sync queue to Redis. It is only useful
// when the API runs with sync.store=postgres; the in-memory queue lives and
// dies with the API process.
func main() {
	configPath := flag.String("config", "", "path to config.yml")
	addr := flag.String("addr", ":8081", "listen address for health and metrics")
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
	}).Component("worker")

	if cfg.Sync.Store != config.SyncStorePostgres {
		log.Fatal(errors.New("sync.store must be postgres"), "nothing to drain", "sync_store", string(cfg.Sync.Store))
	}
	if !cfg.Redis.Enabled {
		log.Fatal(errors.New("redis.enabled must be true"), "nowhere to publish")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("vitalflow_worker", reg)

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

	broker, err := redis.NewRedisBroker(ctx, cfg.Redis.ToBrokerConfig(), &log.ZL)
	if err != nil {
		log.Fatal(err, "failed to connect to Redis")
	}
	defer broker.Close()

	queue := syncqueue.NewService(postgres.NewActionRepository(db), log, m, syncqueue.WithPageSize(cfg.Sync.BatchSize))
	processor := worker.NewSyncProcessor(queue, broker, cfg.Sync.ToWorkerConfig(), log, m)
	cleanup := worker.NewSyncCleanupWorker(queue, cfg.Sync.Retention, cfg.Sync.CleanupInterval, log, m)

	srv := &http.Server{Addr: *addr, Handler: opsEngine(log, reg, db.PingContext)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err, "health server failed")
		}
	}()

	go cleanup.Start(ctx)
	log.Info("worker started", "channel", cfg.Sync.Channel, "batch_size", cfg.Sync.BatchSize)
	processor.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "health server forced to shutdown")
	}
	log.Info("worker exited")
}

func opsEngine(log *logger.Logger, reg prometheus.Gatherer, ping health.Check) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(middleware.Recovery(log))
	root := engine.Group("")
	health.NewHandler(map[string]health.Check{"database": ping}).RegisterRoutes(root)
	promHandler.New(reg).RegisterRoutes(root)
	return engine
}
