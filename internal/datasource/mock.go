package datasource

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jwalitptl/vitalflow/internal/model"
	"github.com/jwalitptl/vitalflow/internal/store"
)

var (
	diagnoses = []string{
		"Acute Myocardial Infarction", "Pneumonia", "Sepsis", "Stroke",
		"Diabetic Ketoacidosis", "Respiratory Failure", "Heart Failure",
		"Renal Failure", "Trauma - Multiple Injuries", "Post-Surgical Recovery",
		"Gastrointestinal Bleeding", "Acute Pancreatitis", "COPD Exacerbation", "Fracture - Hip",
	}
	firstNames = []string{"Aarav", "Diya", "Kabir", "Meera", "Rohan", "Ananya", "Vikram", "Isha", "Arjun", "Priya", "Nikhil", "Sara"}
	lastNames  = []string{"Sharma", "Iyer", "Patel", "Reddy", "Khan", "Menon", "Das", "Kapoor", "Nair", "Joshi"}
	notes      = []string{"", "Requires monitoring", "Family notified", "Awaiting test results"}
)

type mockHospital struct {
	id, name, address string
	lat, lon          float64
}

var network = []mockHospital{
	{"H001", "VitalFlow Central Hospital", "Marine Drive, Mumbai", 19.0760, 72.8777},
	{"H002", "VitalFlow North Wing", "Bandra West, Mumbai", 19.1136, 72.8697},
	{"H003", "VitalFlow South Medical", "Colaba, Mumbai", 19.0176, 72.8562},
	{"H004", "VitalFlow East Care", "Chembur, Mumbai", 19.0596, 72.9295},
}

type floorPlan struct {
	ward      string
	bedType   model.BedType
	beds      int
	occupancy float64
}

var floors = []floorPlan{
	{"Emergency Department", model.BedTypeEmergency, 20, 0.85},
	{"ICU Complex", model.BedTypeICU, 15, 0.90},
	{"General Ward A", model.BedTypeGeneral, 30, 0.70},
	{"General Ward B", model.BedTypeGeneral, 30, 0.65},
	{"General Ward C", model.BedTypeGeneral, 25, 0.60},
}

var bedPrefix = map[model.BedType]string{
	model.BedTypeEmergency: "ER",
	model.BedTypeICU:       "ICU",
	model.BedTypeGeneral:   "GW",
}

// Mock generates a deterministic demo network for a seed.
type Mock struct {
	seed int64
	now  func() time.Time
}

func NewMock(seed int64, now func() time.Time) *Mock {
	if now == nil {
		now = time.Now
	}
	return &Mock{seed: seed, now: now}
}

func (m *Mock) Load(_ context.Context) (store.Snapshot, error) {
	g := &generator{
		r:   rand.New(rand.NewPCG(uint64(m.seed), 0x5eed)),
		now: m.now().UTC(),
	}
	var snap store.Snapshot
	for _, h := range network {
		g.hospital(&snap, h)
	}
	return snap, nil
}

type generator struct {
	r        *rand.Rand
	now      time.Time
	patients int
}

func (g *generator) pick(xs []string) string { return xs[g.r.IntN(len(xs))] }

func (g *generator) name() string { return g.pick(firstNames) + " " + g.pick(lastNames) }

// weighted returns an index into weights chosen proportionally.
func (g *generator) weighted(weights ...int) int {
	total := 0
	for _, w := range weights {
		total += w
	}
	n := g.r.IntN(total)
	for i, w := range weights {
		if n < w {
			return i
		}
		n -= w
	}
	return len(weights) - 1
}

func (g *generator) hospital(snap *store.Snapshot, h mockHospital) {
	snap.Hospitals = append(snap.Hospitals, &model.Hospital{
		ID: h.id, Name: h.name, Address: h.address, Latitude: h.lat, Longitude: h.lon,
	})

	for i, f := range floors {
		floor := i + 1
		for n := 1; n <= f.beds; n++ {
			bed := &model.Bed{
				ID:         fmt.Sprintf("%s-%s-%d%02d", h.id, bedPrefix[f.bedType], floor, n),
				HospitalID: h.id,
				Floor:      floor,
				Ward:       f.ward,
				RoomNumber: fmt.Sprintf("%d%02d", floor, n),
				Type:       f.bedType,
				Occupancy:  model.BedEmpty,
				UpdatedAt:  g.now,
			}
			if g.r.Float64() < f.occupancy {
				p := g.patient(h.id, bed)
				bed.Occupy(p.ID, g.now)
				snap.Patients = append(snap.Patients, p)
			}
			snap.Beds = append(snap.Beds, bed)
		}
	}

	roles := []model.StaffRole{model.StaffRoleDoctor, model.StaffRoleNurse, model.StaffRoleWardboy, model.StaffRoleDriver}
	for i := 1; i <= 25; i++ {
		role := roles[g.weighted(20, 40, 25, 15)]
		m := &model.Staff{
			ID:         fmt.Sprintf("%s-S%03d", h.id, i),
			HospitalID: h.id,
			Name:       g.name(),
			Role:       role,
		}
		if role == model.StaffRoleDoctor {
			m.Name = "Dr. " + m.Name
		}
		if g.r.Float64() < 0.6 {
			start := g.now.Add(-time.Duration(g.r.IntN(9)) * time.Hour)
			m.OnDuty = true
			m.ShiftStart = &start
		}
		snap.Staff = append(snap.Staff, m)
	}
}

func (g *generator) patient(hospitalID string, bed *model.Bed) *model.Patient {
	var status model.PatientStatus
	if bed.Type == model.BedTypeGeneral {
		status = model.ClinicalStatuses[g.weighted(5, 20, 45, 30)]
	} else {
		status = model.ClinicalStatuses[g.weighted(30, 40, 20, 10)]
	}
	g.patients++
	bedID := bed.ID
	admitted := g.now.Add(-time.Duration(1+g.r.IntN(168)) * time.Hour)
	return &model.Patient{
		ID:             fmt.Sprintf("P%05d", g.patients),
		HospitalID:     hospitalID,
		Name:           g.name(),
		Age:            18 + g.r.IntN(68),
		Diagnosis:      g.pick(diagnoses),
		Status:         status,
		Vitals:         g.vitals(status),
		BedID:          &bedID,
		AssignedDoctor: "Dr. " + g.pick(lastNames),
		Notes:          g.pick(notes),
		AdmittedAt:     admitted,
		UpdatedAt:      admitted,
	}
}

func (g *generator) between(lo, hi int) int { return lo + g.r.IntN(hi-lo+1) }

func (g *generator) temp(lo, hi float64) float64 {
	t := lo + g.r.Float64()*(hi-lo)
	return float64(int(t*10)) / 10
}

func (g *generator) vitals(s model.PatientStatus) model.Vitals {
	switch s {
	case model.PatientStatusCritical:
		hr := g.between(120, 160)
		if g.r.IntN(2) == 0 {
			hr = g.between(35, 50)
		}
		return model.Vitals{
			SpO2: g.between(75, 89), HeartRate: hr,
			BloodPressure: fmt.Sprintf("%d/%d", g.between(70, 90), g.between(40, 60)),
			Temperature:   g.temp(38.5, 40.5),
		}
	case model.PatientStatusSerious:
		hr := g.between(100, 120)
		if g.r.IntN(2) == 0 {
			hr = g.between(50, 60)
		}
		return model.Vitals{
			SpO2: g.between(90, 93), HeartRate: hr,
			BloodPressure: fmt.Sprintf("%d/%d", g.between(90, 110), g.between(55, 70)),
			Temperature:   g.temp(37.8, 38.5),
		}
	case model.PatientStatusStable:
		return model.Vitals{
			SpO2: g.between(95, 98), HeartRate: g.between(60, 90),
			BloodPressure: fmt.Sprintf("%d/%d", g.between(110, 130), g.between(70, 85)),
			Temperature:   g.temp(36.5, 37.3),
		}
	default:
		return model.Vitals{
			SpO2: g.between(96, 100), HeartRate: g.between(65, 85),
			BloodPressure: fmt.Sprintf("%d/%d", g.between(115, 125), g.between(75, 82)),
			Temperature:   g.temp(36.3, 37.0),
		}
	}
}
