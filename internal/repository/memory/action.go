// Package memory provides process-local repository implementations.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jwalitptl/vitalflow/internal/model"
	"github.com/jwalitptl/vitalflow/internal/repository"
	apperrors "github.com/jwalitptl/vitalflow/pkg/errors"
)

type actionRepository struct {
	mu      sync.RWMutex
	byID    map[string]*model.Action
	ordered []*model.Action
}

func NewActionRepository() repository.ActionRepository {
	return &actionRepository{byID: map[string]*model.Action{}}
}

func (r *actionRepository) Append(_ context.Context, action *model.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[action.ID]; exists {
		return nil
	}
	c := action.Clone()
	r.byID[c.ID] = c
	r.ordered = append(r.ordered, c)
	// Appends normally arrive in seq order; keep the slice sorted when a
	// spilled action is replayed late.
	if n := len(r.ordered); n > 1 && r.ordered[n-2].Seq > c.Seq {
		sort.SliceStable(r.ordered, func(i, j int) bool { return r.ordered[i].Seq < r.ordered[j].Seq })
	}
	return nil
}

func (r *actionRepository) Get(_ context.Context, id string) (*model.Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, apperrors.InvalidReference("action", id)
	}
	return a.Clone(), nil
}

func (r *actionRepository) ListPending(_ context.Context, afterSeq uint64, limit int) ([]*model.Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	start := sort.Search(len(r.ordered), func(i int) bool { return r.ordered[i].Seq > afterSeq })
	var out []*model.Action
	for _, a := range r.ordered[start:] {
		if a.Synced {
			continue
		}
		out = append(out, a.Clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *actionRepository) List(_ context.Context, afterSeq uint64, limit int) ([]*model.Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	start := sort.Search(len(r.ordered), func(i int) bool { return r.ordered[i].Seq > afterSeq })
	var out []*model.Action
	for _, a := range r.ordered[start:] {
		out = append(out, a.Clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *actionRepository) MaxSeq(_ context.Context) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.ordered) == 0 {
		return 0, nil
	}
	return r.ordered[len(r.ordered)-1].Seq, nil
}

func (r *actionRepository) MarkSynced(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return false, apperrors.InvalidReference("action", id)
	}
	if a.Synced {
		return false, nil
	}
	a.Synced = true
	a.SyncedAt = &at
	return true, nil
}

func (r *actionRepository) CountPending(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, a := range r.ordered {
		if !a.Synced {
			n++
		}
	}
	return n, nil
}

func (r *actionRepository) DeleteSyncedBefore(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.ordered[:0]
	var removed int64
	for _, a := range r.ordered {
		if a.Synced && a.SyncedAt != nil && a.SyncedAt.Before(before) {
			delete(r.byID, a.ID)
			removed++
			continue
		}
		kept = append(kept, a)
	}
	r.ordered = kept
	return removed, nil
}
