package model

import "time"

type PatientStatus string

const (
	PatientStatusCritical   PatientStatus = "CRITICAL"
	PatientStatusSerious    PatientStatus = "SERIOUS"
	PatientStatusStable     PatientStatus = "STABLE"
	PatientStatusRecovering PatientStatus = "RECOVERING"
	PatientStatusDischarged PatientStatus = "DISCHARGED"
)

// ClinicalStatuses lists the statuses a patient in care can hold.
var ClinicalStatuses = []PatientStatus{
	PatientStatusCritical,
	PatientStatusSerious,
	PatientStatusStable,
	PatientStatusRecovering,
}

type Vitals struct {
	SpO2          int     `json:"spo2" validate:"gte=0,lte=100"`
	HeartRate     int     `json:"heart_rate" validate:"gte=0,lte=300"`
	BloodPressure string  `json:"blood_pressure"`
	Temperature   float64 `json:"temperature"`
}

type Patient struct {
	ID             string        `json:"id"`
	HospitalID     string        `json:"hospital_id"`
	Name           string        `json:"name"`
	Age            int           `json:"age"`
	Diagnosis      string        `json:"diagnosis"`
	Status         PatientStatus `json:"status"`
	Vitals         Vitals        `json:"vitals"`
	BedID          *string       `json:"bed_id,omitempty"`
	AssignedDoctor string        `json:"assigned_doctor,omitempty"`
	Notes          string        `json:"notes,omitempty"`
	AdmittedAt     time.Time     `json:"admitted_at"`
	DischargedAt   *time.Time    `json:"discharged_at,omitempty"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Archived reports whether the patient has been discharged.
func (p *Patient) Archived() bool {
	return p.Status == PatientStatusDischarged
}

func (p *Patient) Clone() *Patient {
	c := *p
	c.BedID = copyString(p.BedID)
	c.DischargedAt = copyTime(p.DischargedAt)
	return &c
}

type PatientFilters struct {
	HospitalID string        `form:"hospital_id"`
	Status     PatientStatus `form:"status"`
	Floor      int           `form:"floor"`
	// IncludeArchived returns discharged patients too.
	IncludeArchived bool `form:"include_archived"`
}

type AdmitPatientRequest struct {
	HospitalID     string        `json:"hospital_id" validate:"required"`
	Name           string        `json:"name" validate:"required"`
	Age            int           `json:"age" validate:"gte=0,lte=150"`
	Diagnosis      string        `json:"diagnosis"`
	Status         PatientStatus `json:"status" validate:"required,oneof=CRITICAL SERIOUS STABLE RECOVERING"`
	Vitals         Vitals        `json:"vitals"`
	BedID          string        `json:"bed_id" validate:"required"`
	AssignedDoctor string        `json:"assigned_doctor"`
	Notes          string        `json:"notes"`
}

// UpdateVitalsRequest carries the readings that changed; nil fields keep
// their current value.
type UpdateVitalsRequest struct {
	SpO2          *int     `json:"spo2" validate:"omitempty,gte=0,lte=100"`
	HeartRate     *int     `json:"heart_rate" validate:"omitempty,gte=0,lte=300"`
	BloodPressure *string  `json:"blood_pressure" validate:"omitempty,max=16"`
	Temperature   *float64 `json:"temperature" validate:"omitempty,gte=25,lte=45"`
	Actor         string   `json:"actor" validate:"required"`
}

type VitalsUpdate struct {
	Patient       *Patient      `json:"patient"`
	OldStatus     PatientStatus `json:"old_status"`
	StatusChanged bool          `json:"status_changed"`
	// NeedsICU is set when the patient turned critical outside an ICU bed.
	NeedsICU bool `json:"needs_icu"`
}

type DischargeRequest struct {
	Actor string `json:"actor" validate:"required"`
	Notes string `json:"notes" validate:"max=2000"`
}
