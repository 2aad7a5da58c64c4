// Package datasource seeds the entity store and, for file-backed modes,
// writes it back on shutdown.
package datasource

import (
	"context"
	"fmt"

	"github.com/jwalitptl/vitalflow/internal/config"
	"github.com/jwalitptl/vitalflow/internal/store"
	"github.com/jwalitptl/vitalflow/pkg/logger"
)

// Source produces the initial contents of the store.
type Source interface {
	Load(ctx context.Context) (store.Snapshot, error)
}

// Flusher is implemented by sources that persist the store on shutdown.
type Flusher interface {
	Flush(ctx context.Context, snap store.Snapshot) error
}

// New picks the source for cfg.Mode.
func New(cfg config.DataSourceConfig, log *logger.Logger) (Source, error) {
	switch cfg.Mode {
	case config.ModeMock:
		return NewMock(cfg.Seed, nil), nil
	case config.ModeJSON:
		return NewJSONFile(cfg.JSONPath), nil
	case config.ModeAPI:
		return NewAPI(cfg.API, log), nil
	default:
		return nil, fmt.Errorf("unknown data source mode %q", cfg.Mode)
	}
}

// Seed loads src into st and returns the snapshot so callers can restore
// the decision log it carries.
func Seed(ctx context.Context, st *store.Store, src Source, log *logger.Logger) (store.Snapshot, error) {
	snap, err := src.Load(ctx)
	if err != nil {
		return snap, fmt.Errorf("load data source: %w", err)
	}
	if err := st.Load(snap); err != nil {
		return snap, err
	}
	log.Info("store seeded",
		"hospitals", len(snap.Hospitals),
		"beds", len(snap.Beds),
		"patients", len(snap.Patients),
		"staff", len(snap.Staff),
		"actions", len(snap.Actions))
	return snap, nil
}

// Flush writes snap back through src when it supports it. Other sources are
// a no-op.
func Flush(ctx context.Context, snap store.Snapshot, src Source, log *logger.Logger) error {
	f, ok := src.(Flusher)
	if !ok {
		return nil
	}
	if err := f.Flush(ctx, snap); err != nil {
		return fmt.Errorf("flush data source: %w", err)
	}
	log.Info("store flushed", "transfers", len(snap.Transfers), "trips", len(snap.Trips), "actions", len(snap.Actions))
	return nil
}
