// Package admission handles patients entering and leaving beds outside the
// transfer workflow, and taking beds in and out of service.
package admission

import (
	"context"
	"fmt"
	"slices"

	"github.com/jwalitptl/vitalflow/internal/model"
	"github.com/jwalitptl/vitalflow/internal/store"
	apperrors "github.com/jwalitptl/vitalflow/pkg/errors"
	"github.com/jwalitptl/vitalflow/pkg/logger"
	"github.com/jwalitptl/vitalflow/pkg/validator"
)

type Service struct {
	store     *store.Store
	validator validator.Validator
	logger    *logger.Logger
}

func NewService(st *store.Store, v validator.Validator, log *logger.Logger) *Service {
	if v == nil {
		v = validator.New()
	}
	return &Service{
		store:     st,
		validator: v,
		logger:    log.Component("admission"),
	}
}

// Admit creates a patient directly in an EMPTY bed.
func (s *Service) Admit(ctx context.Context, req *model.AdmitPatientRequest, actor string) (*model.Patient, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if actor == "" {
		return nil, apperrors.Validation("admitting actor is required", nil)
	}

	var out *model.Patient
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		if _, err := tx.Hospital(req.HospitalID); err != nil {
			return err
		}
		bed, err := tx.Bed(req.BedID)
		if err != nil {
			return err
		}
		if bed.HospitalID != req.HospitalID {
			return apperrors.Validation(fmt.Sprintf("bed %s is not in hospital %s", bed.ID, req.HospitalID), nil)
		}
		if bed.Occupancy != model.BedEmpty {
			return apperrors.BedUnavailable(bed.ID, string(bed.Occupancy))
		}

		now := tx.Now()
		bedID := bed.ID
		p := &model.Patient{
			ID:             model.NewID("P-"),
			HospitalID:     req.HospitalID,
			Name:           req.Name,
			Age:            req.Age,
			Diagnosis:      req.Diagnosis,
			Status:         req.Status,
			Vitals:         req.Vitals,
			BedID:          &bedID,
			AssignedDoctor: req.AssignedDoctor,
			Notes:          req.Notes,
			AdmittedAt:     now,
			UpdatedAt:      now,
		}
		bed.Occupy(p.ID, now)

		tx.PutPatient(p)
		tx.Record(model.NewAction(model.ActionAdmitPatient, actor, model.EntityPatient, p.ID, map[string]string{
			"bed_id": bed.ID,
			"status": string(p.Status),
		}, now))
		out = p.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("patient admitted", "patient_id", out.ID, "bed_id", req.BedID, "actor", actor)
	return out, nil
}

// Discharge archives a patient and empties their bed. A patient with an open
// transfer has to have it resolved first.
func (s *Service) Discharge(ctx context.Context, patientID, actor, notes string) (*model.Patient, error) {
	if actor == "" {
		return nil, apperrors.Validation("discharging actor is required", nil)
	}

	var out *model.Patient
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		p, err := tx.Patient(patientID)
		if err != nil {
			return err
		}
		if p.Archived() {
			return apperrors.InvalidTransition("patient "+p.ID, string(p.Status), string(model.PatientStatusDischarged))
		}
		if open, ok := tx.OpenTransferFor(p.ID); ok {
			return &apperrors.AppError{
				Code:    apperrors.ErrInvalidTransition,
				Message: fmt.Sprintf("patient %s has open transfer %s (%s)", p.ID, open.ID, open.Status),
			}
		}

		now := tx.Now()
		var bedID string
		if p.BedID != nil {
			bedID = *p.BedID
			bed, err := tx.Bed(bedID)
			if err != nil {
				return err
			}
			if bed.OccupantID != nil && *bed.OccupantID == p.ID {
				bed.Release(now)
			}
		}
		for _, m := range tx.StaffList(func(m *model.Staff) bool { return slices.Contains(m.AssignedPatients, p.ID) }) {
			m.AssignedPatients = slices.DeleteFunc(m.AssignedPatients, func(id string) bool { return id == p.ID })
			tx.PutStaff(m)
		}

		p.Status = model.PatientStatusDischarged
		p.BedID = nil
		p.DischargedAt = &now
		p.UpdatedAt = now
		if notes != "" {
			p.Notes = notes
		}

		tx.Record(model.NewAction(model.ActionDischargePatient, actor, model.EntityPatient, p.ID, map[string]string{
			"bed_id": bedID,
			"notes":  notes,
		}, now))
		out = p.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("patient discharged", "patient_id", patientID, "actor", actor)
	return out, nil
}

// SetMaintenance takes a bed out of service. A bed held for a transfer loses
// its hold; the transfer then fails on approve or complete.
func (s *Service) SetMaintenance(ctx context.Context, bedID, actor string) (*model.Bed, error) {
	if actor == "" {
		return nil, apperrors.Validation("actor is required", nil)
	}

	var (
		out     *model.Bed
		revoked string
	)
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		bed, err := tx.Bed(bedID)
		if err != nil {
			return err
		}
		switch bed.Occupancy {
		case model.BedEmpty:
		case model.BedReserved:
			if bed.ReservedFor != nil {
				revoked = *bed.ReservedFor
			}
		default:
			return apperrors.BedUnavailable(bed.ID, string(bed.Occupancy))
		}

		now := tx.Now()
		bed.Release(now)
		bed.Occupancy = model.BedMaintenance

		tx.Record(model.NewAction(model.ActionBedMaintenance, actor, model.EntityBed, bed.ID, map[string]string{
			"revoked_transfer_id": revoked,
		}, now))
		out = bed.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if revoked != "" {
		s.logger.Warn("bed reservation revoked", "bed_id", bedID, "transfer_id", revoked, "actor", actor)
	}
	return out, nil
}

// ClearMaintenance returns a bed under maintenance to service as EMPTY.
func (s *Service) ClearMaintenance(ctx context.Context, bedID, actor string) (*model.Bed, error) {
	if actor == "" {
		return nil, apperrors.Validation("actor is required", nil)
	}

	var out *model.Bed
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		bed, err := tx.Bed(bedID)
		if err != nil {
			return err
		}
		if bed.Occupancy != model.BedMaintenance {
			return apperrors.InvalidTransition("bed "+bed.ID, string(bed.Occupancy), string(model.BedEmpty))
		}
		now := tx.Now()
		bed.Release(now)
		tx.Record(model.NewAction(model.ActionBedAvailable, actor, model.EntityBed, bed.ID, nil, now))
		out = bed.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Patient(_ context.Context, patientID string) (*model.Patient, error) {
	return s.store.Patient(patientID)
}

func (s *Service) Patients(_ context.Context, f model.PatientFilters) []*model.Patient {
	return s.store.Patients(f)
}

func (s *Service) Bed(_ context.Context, bedID string) (*model.Bed, error) {
	return s.store.Bed(bedID)
}

func (s *Service) Beds(_ context.Context, f model.BedFilters) []*model.Bed {
	return s.store.Beds(f)
}
