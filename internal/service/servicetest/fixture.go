// Package servicetest wires the workflow services over an in-memory store
// for tests.
package servicetest

import (
	"testing"

	"github.com/jwalitptl/vitalflow/internal/model"
	"github.com/jwalitptl/vitalflow/internal/repository/memory"
	"github.com/jwalitptl/vitalflow/internal/service/decision"
	"github.com/jwalitptl/vitalflow/internal/service/syncqueue"
	"github.com/jwalitptl/vitalflow/internal/store"
	"github.com/jwalitptl/vitalflow/pkg/logger"
	"github.com/jwalitptl/vitalflow/pkg/metrics"
)

type Fixture struct {
	Store   *store.Store
	Log     *decision.Service
	Queue   *syncqueue.Service
	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

func str(s string) *string { return &s }

// Seed is a small hospital: P1 in B1, P2 in B3, B2 and B4 empty, B5 under
// maintenance, and one staff member of each role plus a second driver.
func Seed() store.Snapshot {
	return store.Snapshot{
		Hospitals: []*model.Hospital{{ID: "H1", Name: "City General"}},
		Patients: []*model.Patient{
			{ID: "P1", HospitalID: "H1", Name: "Asha Rao", Status: model.PatientStatusSerious, BedID: str("B1")},
			{ID: "P2", HospitalID: "H1", Name: "Ben Ode", Status: model.PatientStatusCritical, BedID: str("B3")},
		},
		Beds: []*model.Bed{
			{ID: "B1", HospitalID: "H1", Floor: 1, Ward: "A", Type: model.BedTypeGeneral, Occupancy: model.BedOccupied, OccupantID: str("P1")},
			{ID: "B2", HospitalID: "H1", Floor: 2, Ward: "ICU", Type: model.BedTypeICU, Occupancy: model.BedEmpty},
			{ID: "B3", HospitalID: "H1", Floor: 1, Ward: "A", Type: model.BedTypeGeneral, Occupancy: model.BedOccupied, OccupantID: str("P2")},
			{ID: "B4", HospitalID: "H1", Floor: 1, Ward: "A", Type: model.BedTypeGeneral, Occupancy: model.BedEmpty},
			{ID: "B5", HospitalID: "H1", Floor: 3, Ward: "ER", Type: model.BedTypeEmergency, Occupancy: model.BedMaintenance},
		},
		Staff: []*model.Staff{
			{ID: "S1", HospitalID: "H1", Name: "Sam", Role: model.StaffRoleNurse},
			{ID: "DR1", HospitalID: "H1", Name: "Dr. A", Role: model.StaffRoleDoctor},
			{ID: "W1", HospitalID: "H1", Name: "Wes", Role: model.StaffRoleWardboy},
			{ID: "D1", HospitalID: "H1", Name: "Dev", Role: model.StaffRoleDriver},
			{ID: "D2", HospitalID: "H1", Name: "Dina", Role: model.StaffRoleDriver},
		},
	}
}

// New builds the store, decision log and sync queue the way main does and
// loads Seed.
func New(t testing.TB, opts ...store.Option) *Fixture {
	t.Helper()
	log := logger.Nop()
	m := metrics.New("test")

	decisions := decision.NewService(log, m)
	queue := syncqueue.NewService(memory.NewActionRepository(), log, m, syncqueue.WithListener(decisions))
	decisions.AttachQueue(queue)

	st := store.New(append([]store.Option{store.WithJournal(decisions)}, opts...)...)
	if err := st.Load(Seed()); err != nil {
		t.Fatalf("load seed: %v", err)
	}

	return &Fixture{Store: st, Log: decisions, Queue: queue, Logger: log, Metrics: m}
}

// ActionTypes lists the decision log in order.
func (f *Fixture) ActionTypes() []model.ActionType {
	var out []model.ActionType
	for _, a := range f.Log.Query(model.ActionFilters{}) {
		out = append(out, a.Type)
	}
	return out
}
