package model

import "time"

type StaffRole string

const (
	StaffRoleDoctor  StaffRole = "DOCTOR"
	StaffRoleNurse   StaffRole = "NURSE"
	StaffRoleWardboy StaffRole = "WARDBOY"
	StaffRoleDriver  StaffRole = "DRIVER"
)

type Staff struct {
	ID               string     `json:"id"`
	HospitalID       string     `json:"hospital_id"`
	Name             string     `json:"name"`
	Role             StaffRole  `json:"role"`
	OnDuty           bool       `json:"is_on_duty"`
	ShiftStart       *time.Time `json:"shift_start,omitempty"`
	AssignedPatients []string   `json:"assigned_patients"`
}

func (s *Staff) Clone() *Staff {
	c := *s
	c.ShiftStart = copyTime(s.ShiftStart)
	c.AssignedPatients = append([]string(nil), s.AssignedPatients...)
	return &c
}

// HoursWorked returns the length of the current shift, zero when off duty.
func (s *Staff) HoursWorked(now time.Time) float64 {
	if !s.OnDuty || s.ShiftStart == nil {
		return 0
	}
	return now.Sub(*s.ShiftStart).Hours()
}

type StaffFilters struct {
	HospitalID string    `form:"hospital_id"`
	Role       StaffRole `form:"role"`
	OnDutyOnly bool      `form:"on_duty"`
}

// FatigueLevel buckets hours on shift.
type FatigueLevel string

const (
	FatigueFresh    FatigueLevel = "fresh"
	FatigueNormal   FatigueLevel = "normal"
	FatigueTired    FatigueLevel = "tired"
	FatigueFatigued FatigueLevel = "fatigued"
)

type FatigueStatus struct {
	StaffID     string       `json:"staff_id"`
	HoursWorked float64      `json:"hours_worked"`
	Level       FatigueLevel `json:"level"`
	IsFatigued  bool         `json:"is_fatigued"`
	IsMaxHours  bool         `json:"is_max_hours"`
	Warning     string       `json:"warning_message,omitempty"`
}
