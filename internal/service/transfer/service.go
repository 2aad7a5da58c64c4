// Package transfer implements the patient transfer workflow:
// REQUESTED -> PENDING_APPROVAL -> APPROVED|DECLINED, APPROVED -> IN_PROGRESS -> COMPLETED.
package transfer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/jwalitptl/vitalflow/internal/model"
	"github.com/jwalitptl/vitalflow/internal/store"
	apperrors "github.com/jwalitptl/vitalflow/pkg/errors"
	"github.com/jwalitptl/vitalflow/pkg/logger"
	"github.com/jwalitptl/vitalflow/pkg/metrics"
	"github.com/jwalitptl/vitalflow/pkg/telemetry"
)

const machine = "transfer"

type Service struct {
	store       *store.Store
	recommender Recommender
	logger      *logger.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

func NewService(st *store.Store, rec Recommender, log *logger.Logger, m *metrics.Metrics) *Service {
	if rec == nil {
		rec = BedTypeRecommender{}
	}
	return &Service{
		store:       st,
		recommender: rec,
		logger:      log.Component(machine),
		metrics:     m,
		tracer:      telemetry.Tracer(machine),
	}
}

func (s *Service) start(ctx context.Context, op, transferID string) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "transfer."+op)
	if transferID != "" {
		span.SetAttributes(telemetry.ID("transfer_id", transferID))
	}
	return ctx, span
}

func (s *Service) finish(span trace.Span, err error, to model.TransferStatus) {
	if err != nil {
		s.metrics.RejectedTransitions.WithLabelValues(machine, apperrors.CodeOf(err).String()).Inc()
	} else if to != "" {
		s.metrics.Transitions.WithLabelValues(machine, string(to)).Inc()
	}
	telemetry.End(span, err)
}

func guard(t *model.TransferRequest, to model.TransferStatus) error {
	if !model.ValidTransferTransition(t.Status, to) {
		return apperrors.InvalidTransition("transfer "+t.ID, string(t.Status), string(to))
	}
	return nil
}

// Request creates a transfer of patientID into destinationBedID and holds the
// bed for it. The request ends up in PENDING_APPROVAL.
func (s *Service) Request(ctx context.Context, patientID, destinationBedID, actor string) (*model.TransferRequest, error) {
	return s.request(ctx, patientID, destinationBedID, actor, "")
}

func (s *Service) request(ctx context.Context, patientID, destinationBedID, actor, rationale string) (out *model.TransferRequest, err error) {
	ctx, span := s.start(ctx, "Request", "")
	defer func() { s.finish(span, err, model.TransferPendingApproval) }()

	if actor == "" {
		return nil, apperrors.Validation("requesting actor is required", nil)
	}

	err = s.store.Update(ctx, func(tx *store.Tx) error {
		patient, err := tx.Patient(patientID)
		if err != nil {
			return err
		}
		if patient.Archived() {
			return apperrors.InvalidReference("patient", patientID)
		}
		bed, err := tx.Bed(destinationBedID)
		if err != nil {
			return err
		}
		if bed.Occupancy != model.BedEmpty {
			if err := requestable(tx, patient, bed); err != nil {
				return err
			}
			return apperrors.BedUnavailable(bed.ID, string(bed.Occupancy))
		}

		t, err := openRequest(tx, patient, bed, actor, rationale)
		if err != nil {
			return err
		}
		bed.Reserve(t.ID, tx.Now())
		recordRequest(tx, t, actor, nil)
		out = t.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(telemetry.ID("transfer_id", out.ID))
	s.logger.Info("transfer requested", "transfer_id", out.ID, "patient_id", patientID, "bed_id", destinationBedID, "actor", actor)
	return out, nil
}

// requestable checks that patient may start a transfer into bed.
func requestable(tx *store.Tx, patient *model.Patient, bed *model.Bed) error {
	if patient.BedID != nil && *patient.BedID == bed.ID {
		return apperrors.Validation(fmt.Sprintf("patient %s is already in bed %s", patient.ID, bed.ID), nil)
	}
	if open, ok := tx.OpenTransferFor(patient.ID); ok {
		return &apperrors.AppError{
			Code:    apperrors.ErrInvalidTransition,
			Message: fmt.Sprintf("patient %s already has open transfer %s (%s)", patient.ID, open.ID, open.Status),
		}
	}
	return nil
}

// openRequest stages a new transfer in PENDING_APPROVAL. Taking the bed hold
// and recording the action are left to the caller.
func openRequest(tx *store.Tx, patient *model.Patient, bed *model.Bed, actor, rationale string) (*model.TransferRequest, error) {
	if err := requestable(tx, patient, bed); err != nil {
		return nil, err
	}
	t := &model.TransferRequest{
		ID:                    model.NewID("TRF-"),
		PatientID:             patient.ID,
		SourceBedID:           patient.BedID,
		DestinationBedID:      bed.ID,
		DestinationHospitalID: bed.HospitalID,
		RequestedBy:           actor,
		Status:                model.TransferRequested,
		History:               []model.TransferStatus{model.TransferRequested},
		Rationale:             rationale,
		CreatedAt:             tx.Now(),
	}
	if err := guard(t, model.TransferPendingApproval); err != nil {
		return nil, err
	}
	t.MoveTo(model.TransferPendingApproval)
	tx.PutTransfer(t)
	return t, nil
}

func recordRequest(tx *store.Tx, t *model.TransferRequest, actor string, extra map[string]interface{}) {
	payload := map[string]interface{}{
		"patient_id":         t.PatientID,
		"source_bed_id":      t.SourceBedID,
		"destination_bed_id": t.DestinationBedID,
		"rationale":          t.Rationale,
	}
	for k, v := range extra {
		payload[k] = v
	}
	tx.Record(model.NewAction(model.ActionRequestTransfer, actor, model.EntityTransfer, t.ID, payload, tx.Now()))
}

// Approve moves a pending transfer to APPROVED and confirms the bed hold.
// A hold that was revoked while pending is re-taken if the bed is still empty.
func (s *Service) Approve(ctx context.Context, transferID, actor, rationale string) (out *model.TransferRequest, err error) {
	ctx, span := s.start(ctx, "Approve", transferID)
	defer func() { s.finish(span, err, model.TransferApproved) }()

	if actor == "" {
		return nil, apperrors.Validation("approving actor is required", nil)
	}

	err = s.store.Update(ctx, func(tx *store.Tx) error {
		t, err := tx.Transfer(transferID)
		if err != nil {
			return err
		}
		if err := guard(t, model.TransferApproved); err != nil {
			return err
		}
		bed, err := tx.Bed(t.DestinationBedID)
		if err != nil {
			return err
		}
		now := tx.Now()
		switch {
		case bed.ReservedBy(t.ID):
		case bed.Occupancy == model.BedEmpty:
			bed.Reserve(t.ID, now)
		default:
			return apperrors.BedUnavailable(bed.ID, string(bed.Occupancy))
		}

		t.MoveTo(model.TransferApproved)
		t.DecidedBy = actor
		t.DecidedAt = &now
		t.Rationale = rationale

		tx.Record(model.NewAction(model.ActionApproveTransfer, actor, model.EntityTransfer, t.ID, map[string]string{
			"rationale":          rationale,
			"destination_bed_id": bed.ID,
		}, now))
		out = t.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transfer approved", "transfer_id", transferID, "actor", actor)
	return out, nil
}

// Decline rejects a pending transfer and releases its bed hold.
func (s *Service) Decline(ctx context.Context, transferID, actor, reason string) (out *model.TransferRequest, err error) {
	ctx, span := s.start(ctx, "Decline", transferID)
	defer func() { s.finish(span, err, model.TransferDeclined) }()

	err = s.store.Update(ctx, func(tx *store.Tx) error {
		t, err := tx.Transfer(transferID)
		if err != nil {
			return err
		}
		if err := guard(t, model.TransferDeclined); err != nil {
			return err
		}
		if actor == "" {
			return apperrors.Validation("declining actor is required", nil)
		}
		if reason == "" {
			return apperrors.Validation("decline reason is required", nil)
		}

		now := tx.Now()
		bed, err := tx.Bed(t.DestinationBedID)
		if err != nil {
			return err
		}
		if bed.ReservedBy(t.ID) {
			bed.Release(now)
		}

		t.MoveTo(model.TransferDeclined)
		t.DecidedBy = actor
		t.DecidedAt = &now
		t.Rationale = reason

		tx.Record(model.NewAction(model.ActionDeclineTransfer, actor, model.EntityTransfer, t.ID, map[string]string{
			"reason": reason,
		}, now))
		out = t.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transfer declined", "transfer_id", transferID, "actor", actor, "reason", reason)
	return out, nil
}

// Start marks an approved transfer as physically under way.
func (s *Service) Start(ctx context.Context, transferID, staffID string) (out *model.TransferRequest, err error) {
	ctx, span := s.start(ctx, "Start", transferID)
	defer func() { s.finish(span, err, model.TransferInProgress) }()

	err = s.store.Update(ctx, func(tx *store.Tx) error {
		if _, err := tx.StaffMember(staffID); err != nil {
			return err
		}
		t, err := tx.Transfer(transferID)
		if err != nil {
			return err
		}
		if err := guard(t, model.TransferInProgress); err != nil {
			return err
		}
		bed, err := tx.Bed(t.DestinationBedID)
		if err != nil {
			return err
		}
		if !bed.ReservedBy(t.ID) {
			return revoked(t, bed, model.TransferInProgress)
		}

		now := tx.Now()
		t.MoveTo(model.TransferInProgress)
		t.StartedAt = &now

		tx.Record(model.NewAction(model.ActionStartTransfer, staffID, model.EntityTransfer, t.ID, nil, now))
		out = t.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transfer started", "transfer_id", transferID, "staff_id", staffID)
	return out, nil
}

func revoked(t *model.TransferRequest, bed *model.Bed, to model.TransferStatus) error {
	return &apperrors.AppError{
		Code: apperrors.ErrInvalidTransition,
		Message: fmt.Sprintf("transfer %s cannot move from %s to %s: reservation on bed %s was revoked (bed is %s)",
			t.ID, t.Status, to, bed.ID, bed.Occupancy),
	}
}

// Complete moves the patient into the destination bed and empties the bed
// they came from.
func (s *Service) Complete(ctx context.Context, transferID, staffID string) (out *model.TransferRequest, err error) {
	ctx, span := s.start(ctx, "Complete", transferID)
	defer func() { s.finish(span, err, model.TransferCompleted) }()

	err = s.store.Update(ctx, func(tx *store.Tx) error {
		if _, err := tx.StaffMember(staffID); err != nil {
			return err
		}
		t, err := tx.Transfer(transferID)
		if err != nil {
			return err
		}
		if err := guard(t, model.TransferCompleted); err != nil {
			return err
		}
		dest, err := tx.Bed(t.DestinationBedID)
		if err != nil {
			return err
		}
		if !dest.ReservedBy(t.ID) {
			return revoked(t, dest, model.TransferCompleted)
		}
		patient, err := tx.Patient(t.PatientID)
		if err != nil {
			return err
		}

		now := tx.Now()
		if patient.BedID != nil {
			src, err := tx.Bed(*patient.BedID)
			if err != nil {
				return err
			}
			if src.OccupantID != nil && *src.OccupantID == patient.ID {
				src.Release(now)
				handOver(tx, t, src, now)
			}
		}
		dest.Occupy(patient.ID, now)
		bedID := dest.ID
		patient.BedID = &bedID
		patient.HospitalID = dest.HospitalID
		patient.UpdatedAt = now

		t.MoveTo(model.TransferCompleted)
		t.CompletedBy = staffID
		t.CompletedAt = &now

		tx.Record(model.NewAction(model.ActionCompleteTransfer, staffID, model.EntityTransfer, t.ID, map[string]interface{}{
			"patient_id":         patient.ID,
			"source_bed_id":      t.SourceBedID,
			"destination_bed_id": dest.ID,
		}, now))
		out = t.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transfer completed", "transfer_id", transferID, "staff_id", staffID)
	return out, nil
}

// Annotate adds an audit note. Allowed in every state, terminal included;
// the status never changes.
func (s *Service) Annotate(ctx context.Context, transferID, actor, note string) (out *model.TransferRequest, err error) {
	ctx, span := s.start(ctx, "Annotate", transferID)
	defer func() { s.finish(span, err, "") }()

	if actor == "" || note == "" {
		return nil, apperrors.Validation("actor and note are required", nil)
	}

	err = s.store.Update(ctx, func(tx *store.Tx) error {
		t, err := tx.Transfer(transferID)
		if err != nil {
			return err
		}
		now := tx.Now()
		t.Annotations = append(t.Annotations, model.Annotation{Actor: actor, Note: note, At: now})
		tx.Record(model.NewAction(model.ActionAnnotateTransfer, actor, model.EntityTransfer, t.ID, map[string]string{
			"note": note,
		}, now))
		out = t.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Get(_ context.Context, transferID string) (*model.TransferRequest, error) {
	return s.store.Transfer(transferID)
}

func (s *Service) List(_ context.Context, f model.TransferFilters) []*model.TransferRequest {
	return s.store.Transfers(f)
}
