// Package store holds the in-memory entity store. All writes go through
// Update, which stages copies of the touched records and commits them
// together with the actions they produced.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jwalitptl/vitalflow/internal/model"
	apperrors "github.com/jwalitptl/vitalflow/pkg/errors"
)

// Journal receives the actions recorded by a transaction before its entity
// changes become visible. A Journal error aborts the commit.
type Journal interface {
	Append(ctx context.Context, actions ...*model.Action) error
}

type cloneable[T any] interface {
	Clone() T
}

type table[T cloneable[T]] map[string]T

type state struct {
	hospitals table[*model.Hospital]
	patients  table[*model.Patient]
	beds      table[*model.Bed]
	staff     table[*model.Staff]
	transfers table[*model.TransferRequest]
	trips     table[*model.Trip]
}

func newState() state {
	return state{
		hospitals: table[*model.Hospital]{},
		patients:  table[*model.Patient]{},
		beds:      table[*model.Bed]{},
		staff:     table[*model.Staff]{},
		transfers: table[*model.TransferRequest]{},
		trips:     table[*model.Trip]{},
	}
}

type Store struct {
	mu      sync.RWMutex
	st      state
	version uint64
	journal Journal
	now     func() time.Time
}

type Option func(*Store)

// WithJournal sets the sink for recorded actions.
func WithJournal(j Journal) Option {
	return func(s *Store) { s.journal = j }
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		st:  newState(),
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update runs fn under the store's write lock. If fn returns nil, the
// recorded actions are appended to the journal and the staged records are
// committed; otherwise nothing is applied.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := newTx(ctx, &s.st, s.now(), s.version)
	if err := fn(tx); err != nil {
		return err
	}
	if len(tx.actions) > 0 && s.journal != nil {
		if err := s.journal.Append(ctx, tx.actions...); err != nil {
			return fmt.Errorf("append actions: %w", err)
		}
	}
	if tx.apply(&s.st) {
		s.version++
	}
	return nil
}

// View runs fn against a consistent view of the store. Anything fn stages
// is discarded.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(newTx(ctx, &s.st, s.now(), s.version))
}

// Version increases on every committed change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Store) Now() time.Time {
	return s.now()
}

func get[T cloneable[T]](mu *sync.RWMutex, t table[T], entity, id string) (T, error) {
	mu.RLock()
	defer mu.RUnlock()
	v, ok := t[id]
	if !ok {
		var zero T
		return zero, apperrors.InvalidReference(entity, id)
	}
	return v.Clone(), nil
}

func list[T cloneable[T]](mu *sync.RWMutex, t table[T], keep func(T) bool) []T {
	mu.RLock()
	defer mu.RUnlock()
	return collect(t, keep)
}

func collect[T cloneable[T]](t table[T], keep func(T) bool) []T {
	ids := make([]string, 0, len(t))
	for id, v := range t {
		if keep == nil || keep(v) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, t[id].Clone())
	}
	return out
}

func (s *Store) Hospital(id string) (*model.Hospital, error) {
	return get(&s.mu, s.st.hospitals, "hospital", id)
}

func (s *Store) Hospitals() []*model.Hospital {
	return list(&s.mu, s.st.hospitals, nil)
}

func (s *Store) Patient(id string) (*model.Patient, error) {
	return get(&s.mu, s.st.patients, "patient", id)
}

func (s *Store) Patients(f model.PatientFilters) []*model.Patient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collect(s.st.patients, func(p *model.Patient) bool {
		if p.Archived() && !f.IncludeArchived {
			return false
		}
		if f.HospitalID != "" && p.HospitalID != f.HospitalID {
			return false
		}
		if f.Status != "" && p.Status != f.Status {
			return false
		}
		if f.Floor != 0 {
			if p.BedID == nil {
				return false
			}
			bed, ok := s.st.beds[*p.BedID]
			if !ok || bed.Floor != f.Floor {
				return false
			}
		}
		return true
	})
}

func (s *Store) Bed(id string) (*model.Bed, error) {
	return get(&s.mu, s.st.beds, "bed", id)
}

func (s *Store) Beds(f model.BedFilters) []*model.Bed {
	return list(&s.mu, s.st.beds, func(b *model.Bed) bool {
		if f.HospitalID != "" && b.HospitalID != f.HospitalID {
			return false
		}
		if f.Floor != 0 && b.Floor != f.Floor {
			return false
		}
		if f.Type != "" && b.Type != f.Type {
			return false
		}
		if f.AvailableOnly && b.Occupancy != model.BedEmpty {
			return false
		}
		return true
	})
}

func (s *Store) StaffMember(id string) (*model.Staff, error) {
	return get(&s.mu, s.st.staff, "staff", id)
}

func (s *Store) Staff(f model.StaffFilters) []*model.Staff {
	return list(&s.mu, s.st.staff, func(m *model.Staff) bool {
		if f.HospitalID != "" && m.HospitalID != f.HospitalID {
			return false
		}
		if f.Role != "" && m.Role != f.Role {
			return false
		}
		if f.OnDutyOnly && !m.OnDuty {
			return false
		}
		return true
	})
}

func (s *Store) Transfer(id string) (*model.TransferRequest, error) {
	return get(&s.mu, s.st.transfers, "transfer", id)
}

// Transfers returns matching transfers ordered by creation time.
func (s *Store) Transfers(f model.TransferFilters) []*model.TransferRequest {
	out := list(&s.mu, s.st.transfers, func(t *model.TransferRequest) bool {
		if f.Status != "" && t.Status != f.Status {
			return false
		}
		if f.PatientID != "" && t.PatientID != f.PatientID {
			return false
		}
		return true
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) Trip(id string) (*model.Trip, error) {
	return get(&s.mu, s.st.trips, "trip", id)
}

func (s *Store) Trips() []*model.Trip {
	out := list(&s.mu, s.st.trips, nil)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// CheckOccupancy verifies that every OCCUPIED bed and every placed patient
// point at each other.
func (s *Store) CheckOccupancy() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return checkOccupancy(&s.st)
}

func checkOccupancy(st *state) error {
	occupied := 0
	for id, b := range st.beds {
		if b.Occupancy != model.BedOccupied {
			if b.OccupantID != nil {
				return fmt.Errorf("bed %s is %s but has occupant %s", id, b.Occupancy, *b.OccupantID)
			}
			continue
		}
		occupied++
		if b.OccupantID == nil {
			return fmt.Errorf("bed %s is occupied without an occupant", id)
		}
		p, ok := st.patients[*b.OccupantID]
		if !ok || p.BedID == nil || *p.BedID != id {
			return fmt.Errorf("bed %s occupant %s does not point back", id, *b.OccupantID)
		}
	}
	placed := 0
	for id, p := range st.patients {
		if p.BedID == nil {
			continue
		}
		placed++
		b, ok := st.beds[*p.BedID]
		if !ok || b.OccupantID == nil || *b.OccupantID != id {
			return fmt.Errorf("patient %s bed %s does not point back", id, *p.BedID)
		}
	}
	if occupied != placed {
		return fmt.Errorf("%d occupied beds but %d placed patients", occupied, placed)
	}
	return nil
}
