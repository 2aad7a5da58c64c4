// Package stats computes hospital occupancy dashboards from the entity store.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/vitalflow/internal/model"
	"github.com/jwalitptl/vitalflow/internal/store"
	"github.com/jwalitptl/vitalflow/pkg/metrics"
)

const cacheName = "hospital_stats"

type Service struct {
	store   *store.Store
	cache   *cache.Cache
	metrics *metrics.Metrics
}

// NewService caches results for ttl. Entries are keyed by store version, so
// a commit makes the old entry unreachable before it expires.
func NewService(st *store.Store, ttl time.Duration, m *metrics.Metrics) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{
		store:   st,
		cache:   cache.New(ttl, 2*ttl),
		metrics: m,
	}
}

func (s *Service) Hospital(ctx context.Context, hospitalID string) (*model.HospitalStats, error) {
	key := fmt.Sprintf("%s@%d", hospitalID, s.store.Version())
	if v, ok := s.cache.Get(key); ok {
		s.metrics.CacheRequests.WithLabelValues(cacheName, "hit").Inc()
		return v.(*model.HospitalStats), nil
	}
	s.metrics.CacheRequests.WithLabelValues(cacheName, "miss").Inc()

	var out *model.HospitalStats
	err := s.store.View(ctx, func(tx *store.Tx) error {
		if _, err := tx.Hospital(hospitalID); err != nil {
			return err
		}
		out = compute(tx, hospitalID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Set(fmt.Sprintf("%s@%d", hospitalID, out.StoreVersion), out, cache.DefaultExpiration)
	return out, nil
}

func compute(tx *store.Tx, hospitalID string) *model.HospitalStats {
	st := &model.HospitalStats{
		HospitalID:   hospitalID,
		BedsByType:   map[model.BedType]model.OccupancyCount{},
		Patients:     map[model.PatientStatus]int{},
		StoreVersion: tx.Version(),
	}
	for _, t := range model.BedTypes {
		st.BedsByType[t] = model.OccupancyCount{}
	}
	for _, s := range model.ClinicalStatuses {
		st.Patients[s] = 0
	}

	inHospital := map[string]bool{}
	for _, b := range tx.Beds(func(b *model.Bed) bool { return b.HospitalID == hospitalID }) {
		inHospital[b.ID] = true
		byType := st.BedsByType[b.Type]
		count(&st.Beds, b.Occupancy)
		count(&byType, b.Occupancy)
		st.BedsByType[b.Type] = byType
	}
	for _, p := range tx.Patients(func(p *model.Patient) bool { return p.HospitalID == hospitalID && !p.Archived() }) {
		st.Patients[p.Status]++
	}
	for _, m := range tx.StaffList(func(m *model.Staff) bool { return m.HospitalID == hospitalID }) {
		st.TotalStaff++
		if m.OnDuty {
			st.StaffOnDuty++
		}
	}
	st.OpenTransfers = len(tx.Transfers(func(t *model.TransferRequest) bool {
		return !t.Status.Terminal() && (t.DestinationHospitalID == hospitalID || inHospital[t.DestinationBedID])
	}))

	drivers := map[string]bool{}
	for _, m := range tx.StaffList(func(m *model.Staff) bool { return m.HospitalID == hospitalID && m.Role == model.StaffRoleDriver }) {
		drivers[m.ID] = true
	}
	st.ActiveTrips = len(tx.Trips(func(t *model.Trip) bool { return !t.State.Terminal() && drivers[t.DriverID] }))
	return st
}

func count(c *model.OccupancyCount, o model.BedOccupancy) {
	c.Total++
	switch o {
	case model.BedEmpty:
		c.Available++
	case model.BedOccupied:
		c.Occupied++
	case model.BedReserved:
		c.Reserved++
	case model.BedMaintenance:
		c.Maintenance++
	}
}

func (s *Service) Hospitals(_ context.Context) []*model.Hospital {
	return s.store.Hospitals()
}

func (s *Service) HospitalByID(_ context.Context, hospitalID string) (*model.Hospital, error) {
	return s.store.Hospital(hospitalID)
}
