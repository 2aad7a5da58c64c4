package store

import (
	"fmt"

	"github.com/jwalitptl/vitalflow/internal/model"
)

// Snapshot is the serialisable form of the store used by the data sources.
// Actions carries the decision log alongside the entities; the store itself
// neither fills nor reads it.
type Snapshot struct {
	Hospitals []*model.Hospital        `json:"hospitals"`
	Patients  []*model.Patient         `json:"patients"`
	Beds      []*model.Bed             `json:"beds"`
	Staff     []*model.Staff           `json:"staff"`
	Transfers []*model.TransferRequest `json:"transfers,omitempty"`
	Trips     []*model.Trip            `json:"trips,omitempty"`
	Actions   []*model.Action          `json:"actions,omitempty"`
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Hospitals: collect(s.st.hospitals, nil),
		Patients:  collect(s.st.patients, nil),
		Beds:      collect(s.st.beds, nil),
		Staff:     collect(s.st.staff, nil),
		Transfers: collect(s.st.transfers, nil),
		Trips:     collect(s.st.trips, nil),
	}
}

// Load replaces the store contents with snap. The snapshot must satisfy the
// bed occupancy invariant; on error the store is left unchanged.
func (s *Store) Load(snap Snapshot) error {
	st := newState()
	fill(st.hospitals, snap.Hospitals, func(h *model.Hospital) string { return h.ID })
	fill(st.patients, snap.Patients, func(p *model.Patient) string { return p.ID })
	fill(st.beds, snap.Beds, func(b *model.Bed) string { return b.ID })
	fill(st.staff, snap.Staff, func(m *model.Staff) string { return m.ID })
	fill(st.transfers, snap.Transfers, func(t *model.TransferRequest) string { return t.ID })
	fill(st.trips, snap.Trips, func(t *model.Trip) string { return t.ID })

	if err := checkOccupancy(&st); err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = st
	s.version++
	return nil
}

func fill[T cloneable[T]](dst table[T], src []T, key func(T) string) {
	for _, v := range src {
		dst[key(v)] = v.Clone()
	}
}
