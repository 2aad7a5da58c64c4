// Package app wires the entity store, decision log, sync queue, services and
// HTTP router into one graph.
package app

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/vitalflow/internal/config"
	"github.com/jwalitptl/vitalflow/internal/datasource"
	"github.com/jwalitptl/vitalflow/internal/handler/bed"
	decisionHandler "github.com/jwalitptl/vitalflow/internal/handler/decision"
	"github.com/jwalitptl/vitalflow/internal/handler/health"
	"github.com/jwalitptl/vitalflow/internal/handler/hospital"
	"github.com/jwalitptl/vitalflow/internal/handler/patient"
	promHandler "github.com/jwalitptl/vitalflow/internal/handler/prometheus"
	staffHandler "github.com/jwalitptl/vitalflow/internal/handler/staff"
	queueHandler "github.com/jwalitptl/vitalflow/internal/handler/syncqueue"
	transferHandler "github.com/jwalitptl/vitalflow/internal/handler/transfer"
	tripHandler "github.com/jwalitptl/vitalflow/internal/handler/trip"
	"github.com/jwalitptl/vitalflow/internal/middleware"
	"github.com/jwalitptl/vitalflow/internal/repository"
	"github.com/jwalitptl/vitalflow/internal/router"
	"github.com/jwalitptl/vitalflow/internal/service/admission"
	"github.com/jwalitptl/vitalflow/internal/service/decision"
	"github.com/jwalitptl/vitalflow/internal/service/staff"
	"github.com/jwalitptl/vitalflow/internal/service/stats"
	"github.com/jwalitptl/vitalflow/internal/service/syncqueue"
	"github.com/jwalitptl/vitalflow/internal/service/transfer"
	"github.com/jwalitptl/vitalflow/internal/service/trip"
	"github.com/jwalitptl/vitalflow/internal/store"
	"github.com/jwalitptl/vitalflow/pkg/logger"
	"github.com/jwalitptl/vitalflow/pkg/metrics"
	"github.com/jwalitptl/vitalflow/pkg/validator"
)

type Deps struct {
	Logger   *logger.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Actions  repository.ActionRepository
	Source   datasource.Source
	// Checks are reported by /health/ready.
	Checks map[string]health.Check
	// StoreOptions are passed to store.New after the journal.
	StoreOptions []store.Option
}

type App struct {
	Store     *store.Store
	Decisions *decision.Service
	Queue     *syncqueue.Service
	Transfers *transfer.Service
	Trips     *trip.Service
	Admission *admission.Service
	Staff     *staff.Service
	Stats     *stats.Service
	Router    *router.Router

	source datasource.Source
	logger *logger.Logger
}

// New builds the graph and seeds the store from deps.Source.
func New(ctx context.Context, cfg *config.Config, deps Deps) (*App, error) {
	log := deps.Logger
	m := deps.Metrics

	decisions := decision.NewService(log, m)
	queue := syncqueue.NewService(deps.Actions, log, m,
		syncqueue.WithPageSize(cfg.Sync.BatchSize),
		syncqueue.WithListener(decisions))
	if err := restoreHistory(ctx, decisions, queue); err != nil {
		return nil, err
	}
	decisions.AttachQueue(queue)

	st := store.New(append([]store.Option{store.WithJournal(decisions)}, deps.StoreOptions...)...)
	snap, err := datasource.Seed(ctx, st, deps.Source, log)
	if err != nil {
		return nil, err
	}
	decisions.Restore(snap.Actions)
	if _, err := queue.Restore(ctx, snap.Actions); err != nil {
		return nil, err
	}
	if _, err := queue.Len(ctx); err != nil {
		log.Warn("failed to read sync queue depth", "error", err.Error())
	}

	v := validator.New()
	a := &App{
		Store:     st,
		Decisions: decisions,
		Queue:     queue,
		Transfers: transfer.NewService(st, nil, log, m),
		Trips:     trip.NewService(st, log, m),
		Admission: admission.NewService(st, v, log),
		Staff:     staff.NewService(st, log),
		Stats:     stats.NewService(st, cfg.Stats.CacheTTL, m),
		source:    deps.Source,
		logger:    log,
	}

	cors := middleware.DefaultCORSConfig()
	if len(cfg.Server.AllowOrigins) > 0 {
		cors.AllowOrigins = cfg.Server.AllowOrigins
	}
	rc := router.RouterConfig{
		Mode:           cfg.Server.Mode,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		CORSConfig:     cors,
		ServiceName:    cfg.Telemetry.ServiceName,
	}
	if cfg.RateLimit.Enabled {
		rc.RateLimit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
		rc.RateBurst = cfg.RateLimit.Burst
	}

	a.Router = router.NewRouter(log, m, rc,
		[]router.Handler{
			health.NewHandler(deps.Checks),
			promHandler.New(deps.Gatherer),
		},
		transferHandler.NewHandler(a.Transfers, v),
		tripHandler.NewHandler(a.Trips, v),
		patient.NewHandler(a.Admission, v),
		bed.NewHandler(a.Admission, v),
		staffHandler.NewHandler(a.Staff),
		decisionHandler.NewHandler(decisions, v),
		queueHandler.NewHandler(queue),
		hospital.NewHandler(a.Stats, a.Admission, a.Staff),
	)
	return a, nil
}

// restoreHistory reloads the actions a durable queue still holds and moves
// the sequence counter past every stored seq, so actions from this run
// always drain after those of earlier runs.
func restoreHistory(ctx context.Context, decisions *decision.Service, queue *syncqueue.Service) error {
	history, err := queue.History(ctx)
	if err != nil {
		return err
	}
	decisions.Restore(history)
	last, err := queue.LastSeq(ctx)
	if err != nil {
		return err
	}
	decisions.ResumeAfter(last)
	return nil
}

// Close writes the store and the decision log back through the data source
// when it supports it.
func (a *App) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	snap := a.Store.Snapshot()
	snap.Actions = a.Decisions.All()
	return datasource.Flush(ctx, snap, a.source, a.logger)
}
