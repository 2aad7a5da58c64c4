// Package decision implements the append-only decision log.
package decision

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jwalitptl/vitalflow/internal/model"
	apperrors "github.com/jwalitptl/vitalflow/pkg/errors"
	"github.com/jwalitptl/vitalflow/pkg/logger"
	"github.com/jwalitptl/vitalflow/pkg/metrics"
	"github.com/jwalitptl/vitalflow/pkg/telemetry"
)

// Enqueuer receives a copy of every appended action for delivery.
type Enqueuer interface {
	Enqueue(ctx context.Context, action *model.Action)
}

type Service struct {
	mu       sync.RWMutex
	actions  []*model.Action
	byID     map[string]int
	byActor  map[string][]int
	byEntity map[string][]int
	seq      uint64

	queue   Enqueuer
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		byID:     map[string]int{},
		byActor:  map[string][]int{},
		byEntity: map[string][]int{},
		logger:   log.Component("decision_log"),
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AttachQueue wires the sync queue. It must be called before the first
// Append to guarantee every action is queued.
func (s *Service) AttachQueue(q Enqueuer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = q
}

// Restore loads actions recorded by an earlier run. They are not queued
// again. Actions already present are skipped and the sequence counter moves
// past the highest restored seq. It returns the number of actions added.
func (s *Service) Restore(actions []*model.Action) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, a := range actions {
		if _, exists := s.byID[a.ID]; exists {
			continue
		}
		c := a.Clone()
		c.Synced = c.Synced || c.SyncedAt != nil
		s.byID[c.ID] = len(s.actions)
		s.actions = append(s.actions, c)
		if c.Seq > s.seq {
			s.seq = c.Seq
		}
		added++
	}
	if added > 0 {
		s.reindex()
	}
	return added
}

// ResumeAfter makes the next appended action take a seq above seq.
func (s *Service) ResumeAfter(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq > s.seq {
		s.seq = seq
	}
}

func (s *Service) reindex() {
	sort.SliceStable(s.actions, func(i, j int) bool {
		if s.actions[i].Seq != s.actions[j].Seq {
			return s.actions[i].Seq < s.actions[j].Seq
		}
		return s.actions[i].Timestamp.Before(s.actions[j].Timestamp)
	})
	s.byID = make(map[string]int, len(s.actions))
	s.byActor = map[string][]int{}
	s.byEntity = map[string][]int{}
	for idx, a := range s.actions {
		s.byID[a.ID] = idx
		s.byActor[a.Actor] = append(s.byActor[a.Actor], idx)
		if a.EntityID != "" {
			key := entityKey(a.EntityType, a.EntityID)
			s.byEntity[key] = append(s.byEntity[key], idx)
		}
	}
}

func entityKey(t model.EntityType, id string) string {
	return string(t) + ":" + id
}

// Append assigns sequence numbers to actions and records them. Either every
// action is recorded or none is.
func (s *Service) Append(ctx context.Context, actions ...*model.Action) error {
	for _, a := range actions {
		if a.Type == "" {
			return apperrors.Validation("action type is required", nil)
		}
		if a.Actor == "" {
			return apperrors.Validation(fmt.Sprintf("actor is required for %s", a.Type), nil)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range actions {
		if _, exists := s.byID[a.ID]; exists {
			return apperrors.Validation(fmt.Sprintf("action %s already recorded", a.ID), nil)
		}
	}

	for _, a := range actions {
		s.seq++
		a.Seq = s.seq
		if a.Timestamp.IsZero() {
			a.Timestamp = s.now()
		}
		a.Synced = false
		a.SyncedAt = nil

		stored := a.Clone()
		idx := len(s.actions)
		s.actions = append(s.actions, stored)
		s.byID[stored.ID] = idx
		s.byActor[stored.Actor] = append(s.byActor[stored.Actor], idx)
		if stored.EntityID != "" {
			key := entityKey(stored.EntityType, stored.EntityID)
			s.byEntity[key] = append(s.byEntity[key], idx)
		}
		s.metrics.ActionsAppended.WithLabelValues(string(stored.Type)).Inc()

		if s.queue != nil {
			s.queue.Enqueue(ctx, stored.Clone())
		}
	}
	return nil
}

// Override records a new decision that supersedes actionID. The original
// action is left untouched.
func (s *Service) Override(ctx context.Context, actionID, actor, newOutcome, reason string) (*model.Action, error) {
	_, span := telemetry.Tracer("decision").Start(ctx, "decision.Override")
	var err error
	defer func() { telemetry.End(span, err) }()

	if actor == "" {
		err = apperrors.Validation("actor is required", nil)
		return nil, err
	}
	if newOutcome == "" {
		err = apperrors.Validation("new outcome is required", nil)
		return nil, err
	}

	original, err := s.Get(actionID)
	if err != nil {
		return nil, err
	}

	ref := original.ID
	override := model.NewAction(model.ActionOverrideDecision, actor, original.EntityType, original.EntityID, map[string]string{
		"original_action": original.ID,
		"original_type":   string(original.Type),
		"new_outcome":     newOutcome,
		"reason":          reason,
	}, s.now())
	override.RefActionID = &ref

	if err = s.Append(ctx, override); err != nil {
		return nil, err
	}
	s.logger.Info("decision overridden", "action_id", actionID, "override_id", override.ID, "actor", actor)
	return override.Clone(), nil
}

func (s *Service) Get(id string) (*model.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return nil, apperrors.InvalidReference("action", id)
	}
	return s.actions[idx].Clone(), nil
}

// Query returns matching actions in sequence order.
func (s *Service) Query(f model.ActionFilters) []*model.Action {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := s.candidates(f)
	out := make([]*model.Action, 0, len(candidates))
	for _, idx := range candidates {
		a := s.actions[idx]
		if f.Actor != "" && a.Actor != f.Actor {
			continue
		}
		if f.EntityType != "" && a.EntityType != f.EntityType {
			continue
		}
		if f.EntityID != "" && a.EntityID != f.EntityID {
			continue
		}
		if f.Type != "" && a.Type != f.Type {
			continue
		}
		if !f.TimeRange.Contains(a.Timestamp) {
			continue
		}
		out = append(out, a.Clone())
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// candidates narrows the scan using the actor or entity index.
func (s *Service) candidates(f model.ActionFilters) []int {
	switch {
	case f.EntityID != "" && f.EntityType != "":
		return s.byEntity[entityKey(f.EntityType, f.EntityID)]
	case f.Actor != "":
		return s.byActor[f.Actor]
	}
	all := make([]int, len(s.actions))
	for i := range all {
		all[i] = i
	}
	return all
}

// MarkSynced sets the synced flag of an action. It reports whether the flag
// changed.
func (s *Service) MarkSynced(id string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byID[id]
	if !ok || s.actions[idx].Synced {
		return false
	}
	s.actions[idx].Synced = true
	s.actions[idx].SyncedAt = &at
	return true
}

// All returns every action in sequence order.
func (s *Service) All() []*model.Action {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Action, len(s.actions))
	for i, a := range s.actions {
		out[i] = a.Clone()
	}
	return out
}

func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.actions)
}
