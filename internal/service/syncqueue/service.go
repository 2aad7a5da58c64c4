// Package syncqueue holds actions until the backend of record acknowledges
// them.
package syncqueue

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/jwalitptl/vitalflow/internal/model"
	"github.com/jwalitptl/vitalflow/internal/repository"
	apperrors "github.com/jwalitptl/vitalflow/pkg/errors"
	"github.com/jwalitptl/vitalflow/pkg/logger"
	"github.com/jwalitptl/vitalflow/pkg/metrics"
)

const defaultPageSize = 100

// SyncListener is told when an action is acknowledged.
type SyncListener interface {
	MarkSynced(id string, at time.Time) bool
}

type Service struct {
	repo     repository.ActionRepository
	listener SyncListener
	pageSize int
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	// spill holds actions the repository refused; they are retried on the
	// next drain and still count as pending.
	mu    sync.Mutex
	spill []*model.Action
}

type Option func(*Service)

func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

func WithListener(l SyncListener) Option {
	return func(s *Service) { s.listener = l }
}

func NewService(repo repository.ActionRepository, log *logger.Logger, m *metrics.Metrics, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		pageSize: defaultPageSize,
		logger:   log.Component("sync_queue"),
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue stores action for delivery. It never fails: when the repository
// rejects the write the action is kept in memory and retried later.
func (s *Service) Enqueue(ctx context.Context, action *model.Action) {
	a := action.Clone()
	if err := s.repo.Append(ctx, a); err != nil {
		s.logger.Error(err, "Failed to persist action, buffering in memory", "action_id", a.ID)
		s.metrics.SyncSpilled.Inc()
		s.mu.Lock()
		s.spill = append(s.spill, a)
		s.mu.Unlock()
	}
	s.metrics.SyncQueueDepth.Inc()
}

// flushSpill moves buffered actions into the repository, keeping the ones
// that still fail.
func (s *Service) flushSpill(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.spill) == 0 {
		return
	}
	kept := s.spill[:0]
	for _, a := range s.spill {
		if err := s.repo.Append(ctx, a); err != nil {
			kept = append(kept, a)
			continue
		}
		if a.Synced && a.SyncedAt != nil {
			if _, err := s.repo.MarkSynced(ctx, a.ID, *a.SyncedAt); err != nil {
				s.logger.Error(err, "Failed to replay acknowledgement", "action_id", a.ID)
			}
		}
	}
	s.spill = kept
}

func (s *Service) pendingSpill() []*model.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Action
	for _, a := range s.spill {
		if !a.Synced {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// DrainPending returns the unsynced actions in sequence order. Pages are
// read lazily as the caller iterates, and every call starts from the
// beginning, so a consumer that stops early simply calls it again. Nothing
// is removed until MarkSynced.
func (s *Service) DrainPending(ctx context.Context) iter.Seq2[*model.Action, error] {
	return func(yield func(*model.Action, error) bool) {
		s.flushSpill(ctx)
		spilled := s.pendingSpill()

		emitSpillBefore := func(seq uint64, all bool) bool {
			for len(spilled) > 0 && (all || spilled[0].Seq < seq) {
				a := spilled[0]
				spilled = spilled[1:]
				if !yield(a, nil) {
					return false
				}
			}
			return true
		}

		var after uint64
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			page, err := s.repo.ListPending(ctx, after, s.pageSize)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, a := range page {
				if !emitSpillBefore(a.Seq, false) {
					return
				}
				if !yield(a, nil) {
					return
				}
				after = a.Seq
			}
			if len(page) < s.pageSize {
				break
			}
		}
		emitSpillBefore(0, true)
	}
}

// Pending collects up to limit actions from DrainPending.
func (s *Service) Pending(ctx context.Context, limit int) ([]*model.Action, error) {
	var out []*model.Action
	for a, err := range s.DrainPending(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, a)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// MarkSynced acknowledges an action. Acknowledging twice is a no-op.
func (s *Service) MarkSynced(ctx context.Context, id string) error {
	at := s.now()

	spilled, changed := s.ackSpilled(id, at)
	if !spilled {
		var err error
		changed, err = s.repo.MarkSynced(ctx, id, at)
		if err != nil {
			if errors.Is(err, apperrors.InvalidReferenceErr) {
				return err
			}
			return apperrors.NewInternal(err)
		}
	}

	if changed {
		s.metrics.SyncQueueDepth.Dec()
		s.logger.Debug("action synced", "action_id", id)
	}
	if s.listener != nil {
		s.listener.MarkSynced(id, at)
	}
	return nil
}

func (s *Service) ackSpilled(id string, at time.Time) (found, changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.spill {
		if a.ID != id {
			continue
		}
		if a.Synced {
			return true, false
		}
		a.Synced = true
		a.SyncedAt = &at
		return true, true
	}
	return false, false
}

// Len returns the number of unsynced actions and refreshes the depth gauge.
func (s *Service) Len(ctx context.Context) (int, error) {
	n, err := s.repo.CountPending(ctx)
	if err != nil {
		return 0, err
	}
	n += len(s.pendingSpill())
	s.metrics.SyncQueueDepth.Set(float64(n))
	return n, nil
}

// History returns every action the repository still holds, synced or not,
// in sequence order.
func (s *Service) History(ctx context.Context) ([]*model.Action, error) {
	var (
		out   []*model.Action
		after uint64
	)
	for {
		page, err := s.repo.List(ctx, after, s.pageSize)
		if err != nil {
			return nil, fmt.Errorf("load action history: %w", err)
		}
		out = append(out, page...)
		if len(page) < s.pageSize {
			return out, nil
		}
		after = page[len(page)-1].Seq
	}
}

// LastSeq is the highest seq the repository holds.
func (s *Service) LastSeq(ctx context.Context) (uint64, error) {
	seq, err := s.repo.MaxSeq(ctx)
	if err != nil {
		return 0, fmt.Errorf("read last seq: %w", err)
	}
	return seq, nil
}

// Restore queues the unsynced actions the repository does not hold yet,
// such as those carried over in a snapshot file. It returns how many were
// queued.
func (s *Service) Restore(ctx context.Context, actions []*model.Action) (int, error) {
	n := 0
	for _, a := range actions {
		if a.Synced {
			continue
		}
		_, err := s.repo.Get(ctx, a.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, apperrors.InvalidReferenceErr) {
			return n, fmt.Errorf("restore action %s: %w", a.ID, err)
		}
		s.Enqueue(ctx, a)
		n++
	}
	if n > 0 {
		s.logger.Info("restored unsynced actions", "count", n)
	}
	return n, nil
}

// Cleanup removes acknowledged actions older than retention.
func (s *Service) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteSyncedBefore(ctx, s.now().Add(-retention))
}
