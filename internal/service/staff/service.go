// Package staff tracks shifts and fatigue.
package staff

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jwalitptl/vitalflow/internal/model"
	"github.com/jwalitptl/vitalflow/internal/store"
	apperrors "github.com/jwalitptl/vitalflow/pkg/errors"
	"github.com/jwalitptl/vitalflow/pkg/logger"
)

const (
	WarningHours = 10.0
	MaxHours     = 12.0
	freshHours   = 4.0
)

type Service struct {
	store  *store.Store
	logger *logger.Logger
}

func NewService(st *store.Store, log *logger.Logger) *Service {
	return &Service{store: st, logger: log.Component("staff")}
}

// PunchIn starts a shift. Punching in twice is an invalid transition.
func (s *Service) PunchIn(ctx context.Context, staffID string) (*model.Staff, error) {
	var out *model.Staff
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		m, err := tx.StaffMember(staffID)
		if err != nil {
			return err
		}
		if m.OnDuty {
			return apperrors.InvalidTransition("staff "+m.ID, "ON_DUTY", "ON_DUTY")
		}
		now := tx.Now()
		m.OnDuty = true
		m.ShiftStart = &now

		tx.Record(model.NewAction(model.ActionPunchIn, m.ID, model.EntityStaff, m.ID, map[string]string{
			"role": string(m.Role),
		}, now))
		out = m.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("shift started", "staff_id", staffID)
	return out, nil
}

// PunchOut ends a shift and drops the member's patient assignments.
func (s *Service) PunchOut(ctx context.Context, staffID string) (*model.Staff, error) {
	var (
		out   *model.Staff
		hours float64
	)
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		m, err := tx.StaffMember(staffID)
		if err != nil {
			return err
		}
		if !m.OnDuty {
			return apperrors.InvalidTransition("staff "+m.ID, "OFF_DUTY", "OFF_DUTY")
		}
		now := tx.Now()
		hours = round1(m.HoursWorked(now))

		for _, p := range tx.Patients(func(p *model.Patient) bool { return p.AssignedDoctor == m.ID }) {
			p.AssignedDoctor = ""
			p.UpdatedAt = now
			tx.PutPatient(p)
		}
		m.OnDuty = false
		m.ShiftStart = nil
		m.AssignedPatients = nil

		tx.Record(model.NewAction(model.ActionPunchOut, m.ID, model.EntityStaff, m.ID, map[string]float64{
			"hours_worked": hours,
		}, now))
		out = m.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("shift ended", "staff_id", staffID, "hours_worked", hours)
	return out, nil
}

// FatigueCheck reports how long a member has been on shift. Fatigued from
// WarningHours, at the limit from MaxHours.
func (s *Service) FatigueCheck(_ context.Context, staffID string) (*model.FatigueStatus, error) {
	m, err := s.store.StaffMember(staffID)
	if err != nil {
		return nil, err
	}
	return fatigue(m, s.store.Now()), nil
}

func fatigue(m *model.Staff, now time.Time) *model.FatigueStatus {
	hours := m.HoursWorked(now)
	st := &model.FatigueStatus{
		StaffID:     m.ID,
		HoursWorked: round1(hours),
		IsFatigued:  hours >= WarningHours,
		IsMaxHours:  hours >= MaxHours,
	}
	switch {
	case hours < freshHours:
		st.Level = model.FatigueFresh
	case hours < WarningHours:
		st.Level = model.FatigueNormal
	case hours < MaxHours:
		st.Level = model.FatigueTired
	default:
		st.Level = model.FatigueFatigued
	}
	switch {
	case st.IsMaxHours:
		st.Warning = fmt.Sprintf("%s reached the %.0fh limit (%.1fh) and should not take new critical cases", m.Name, MaxHours, hours)
	case st.IsFatigued:
		st.Warning = fmt.Sprintf("%s is approaching the fatigue limit (%.1fh of %.0fh)", m.Name, hours, MaxHours)
	}
	return st
}

// Available lists on-duty staff of a role, optionally leaving out anyone at
// the hour limit.
func (s *Service) Available(_ context.Context, role model.StaffRole, excludeFatigued bool) []*model.Staff {
	now := s.store.Now()
	var out []*model.Staff
	for _, m := range s.store.Staff(model.StaffFilters{Role: role, OnDutyOnly: true}) {
		if excludeFatigued && m.HoursWorked(now) >= MaxHours {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (s *Service) Get(_ context.Context, staffID string) (*model.Staff, error) {
	return s.store.StaffMember(staffID)
}

func (s *Service) List(_ context.Context, f model.StaffFilters) []*model.Staff {
	return s.store.Staff(f)
}

func round1(h float64) float64 {
	return math.Round(h*10) / 10
}
