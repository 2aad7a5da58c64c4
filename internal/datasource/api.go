package datasource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/vitalflow/internal/config"
	"github.com/jwalitptl/vitalflow/internal/model"
	"github.com/jwalitptl/vitalflow/internal/store"
	"github.com/jwalitptl/vitalflow/pkg/logger"
)

// Wire format of the hospital backend.
type (
	apiHospital struct {
		ID      string  `json:"id"`
		Name    string  `json:"name"`
		Address string  `json:"address"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
	}

	apiBed struct {
		ID         string  `json:"id"`
		Floor      int     `json:"floor"`
		Ward       string  `json:"ward"`
		BedType    string  `json:"bed_type"`
		IsOccupied bool    `json:"is_occupied"`
		PatientID  *string `json:"patient_id"`
		RoomNumber string  `json:"room_number"`
	}

	apiPatient struct {
		ID             string  `json:"id"`
		Name           string  `json:"name"`
		Age            int     `json:"age"`
		Diagnosis      string  `json:"diagnosis"`
		Status         string  `json:"status"`
		SpO2           int     `json:"spo2"`
		HeartRate      int     `json:"heart_rate"`
		BloodPressure  string  `json:"blood_pressure"`
		Temperature    float64 `json:"temperature"`
		BedID          *string `json:"bed_id"`
		AdmittedAt     string  `json:"admitted_at"`
		AssignedDoctor string  `json:"assigned_doctor"`
		Notes          *string `json:"notes"`
	}

	apiStaff struct {
		ID               string   `json:"id"`
		Name             string   `json:"name"`
		Role             string   `json:"role"`
		IsOnDuty         bool     `json:"is_on_duty"`
		ShiftStart       *string  `json:"shift_start"`
		AssignedPatients []string `json:"assigned_patients"`
	}

	apiHospitalData struct {
		Hospital apiHospital  `json:"hospital"`
		Beds     []apiBed     `json:"beds"`
		Patients []apiPatient `json:"patients"`
		Staff    []apiStaff   `json:"staff"`
	}
)

// API reads hospitals from a remote backend. It never writes back.
type API struct {
	client *resty.Client
	cache  *cache.Cache
	logger *logger.Logger
}

func NewAPI(cfg config.APIConfig, log *logger.Logger) *API {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() >= 500
		}).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &API{
		client: client,
		cache:  cache.New(ttl, 2*ttl),
		logger: log.Component("datasource.api"),
	}
}

// get fetches path into out, serving repeats from the cache.
func get[T any](ctx context.Context, a *API, path string) (T, error) {
	if v, ok := a.cache.Get(path); ok {
		return v.(T), nil
	}
	var out T
	resp, err := a.client.R().SetContext(ctx).SetResult(&out).Get(path)
	if err != nil {
		return out, fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.IsError() {
		return out, fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode())
	}
	a.cache.Set(path, out, cache.DefaultExpiration)
	return out, nil
}

func (a *API) Load(ctx context.Context) (store.Snapshot, error) {
	var snap store.Snapshot
	hospitals, err := get[[]apiHospital](ctx, a, "/api/hospitals")
	if err != nil {
		return snap, err
	}
	for _, h := range hospitals {
		data, err := get[apiHospitalData](ctx, a, "/api/hospital/"+h.ID)
		if err != nil {
			return snap, err
		}
		a.convert(&snap, h, data)
	}
	dropped := reconcile(&snap)
	if dropped > 0 {
		a.logger.Warn("dropped inconsistent bed assignments", "count", dropped)
	}
	return snap, nil
}

func (a *API) convert(snap *store.Snapshot, h apiHospital, data apiHospitalData) {
	snap.Hospitals = append(snap.Hospitals, &model.Hospital{
		ID: h.ID, Name: h.Name, Address: h.Address, Latitude: h.Lat, Longitude: h.Lon,
	})
	for _, b := range data.Beds {
		bed := &model.Bed{
			ID:         b.ID,
			HospitalID: h.ID,
			Floor:      b.Floor,
			Ward:       b.Ward,
			RoomNumber: b.RoomNumber,
			Type:       model.BedType(strings.ToUpper(b.BedType)),
			Occupancy:  model.BedEmpty,
		}
		if b.IsOccupied && b.PatientID != nil {
			bed.Occupancy = model.BedOccupied
			bed.OccupantID = b.PatientID
		}
		snap.Beds = append(snap.Beds, bed)
	}
	for _, p := range data.Patients {
		pt := &model.Patient{
			ID:         p.ID,
			HospitalID: h.ID,
			Name:       p.Name,
			Age:        p.Age,
			Diagnosis:  p.Diagnosis,
			Status:     model.PatientStatus(strings.ToUpper(p.Status)),
			Vitals: model.Vitals{
				SpO2: p.SpO2, HeartRate: p.HeartRate, BloodPressure: p.BloodPressure, Temperature: p.Temperature,
			},
			BedID:          p.BedID,
			AssignedDoctor: p.AssignedDoctor,
			AdmittedAt:     parseTime(p.AdmittedAt),
		}
		if p.Notes != nil {
			pt.Notes = *p.Notes
		}
		pt.UpdatedAt = pt.AdmittedAt
		snap.Patients = append(snap.Patients, pt)
	}
	for _, s := range data.Staff {
		m := &model.Staff{
			ID:               s.ID,
			HospitalID:       h.ID,
			Name:             s.Name,
			Role:             model.StaffRole(strings.ToUpper(s.Role)),
			OnDuty:           s.IsOnDuty,
			AssignedPatients: s.AssignedPatients,
		}
		if s.ShiftStart != nil {
			if t := parseTime(*s.ShiftStart); !t.IsZero() {
				m.ShiftStart = &t
			}
		}
		snap.Staff = append(snap.Staff, m)
	}
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// reconcile keeps only bed assignments both sides agree on and returns how
// many one-sided links it dropped.
func reconcile(snap *store.Snapshot) int {
	beds := make(map[string]*model.Bed, len(snap.Beds))
	for _, b := range snap.Beds {
		beds[b.ID] = b
	}
	patients := make(map[string]*model.Patient, len(snap.Patients))
	for _, p := range snap.Patients {
		patients[p.ID] = p
	}

	dropped := 0
	for _, b := range snap.Beds {
		if b.OccupantID == nil {
			continue
		}
		p, ok := patients[*b.OccupantID]
		if !ok || p.BedID == nil || *p.BedID != b.ID {
			b.Release(b.UpdatedAt)
			dropped++
		}
	}
	for _, p := range snap.Patients {
		if p.BedID == nil {
			continue
		}
		b, ok := beds[*p.BedID]
		if !ok || b.OccupantID == nil || *b.OccupantID != p.ID {
			p.BedID = nil
			dropped++
		}
	}
	return dropped
}
