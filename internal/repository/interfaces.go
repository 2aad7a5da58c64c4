package repository

import (
	"context"
	"time"

	"github.com/jwalitptl/vitalflow/internal/model"
)

// All repository interfaces in one file
type (
	// ActionRepository stores the actions awaiting delivery to the backend
	// of record. Rows are append-only apart from the synced timestamp.
	ActionRepository interface {
		Append(ctx context.Context, action *model.Action) error
		Get(ctx context.Context, id string) (*model.Action, error)
		// ListPending returns unsynced actions with seq > afterSeq in seq order.
		ListPending(ctx context.Context, afterSeq uint64, limit int) ([]*model.Action, error)
		// MarkSynced reports whether the row changed; an already synced row
		// is not an error.
		MarkSynced(ctx context.Context, id string, at time.Time) (bool, error)
		// List returns every stored action, synced or not, with seq >
		// afterSeq in seq order.
		List(ctx context.Context, afterSeq uint64, limit int) ([]*model.Action, error)
		// MaxSeq is the highest seq ever stored that is still present, or 0.
		MaxSeq(ctx context.Context) (uint64, error)
		CountPending(ctx context.Context) (int, error)
		DeleteSyncedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
