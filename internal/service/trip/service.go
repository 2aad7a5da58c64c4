// Package trip runs ambulance trips through
// IDLE -> EN_ROUTE -> LOADED -> ARRIVING -> COMPLETED, with CANCELLED reachable
// from any state that is not terminal.
package trip

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

const machine = "trip"

type Service struct {
	store   *store.Store
	logger  *logger.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

func NewService(st *store.Store, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:   st,
		logger:  log.Component(machine),
		metrics: m,
		tracer:  telemetry.Tracer(machine),
	}
}

func (s *Service) start(ctx context.Context, op, tripID string) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "trip."+op)
	if tripID != "" {
		span.SetAttributes(telemetry.ID("trip_id", tripID))
	}
	return ctx, span
}

func (s *Service) finish(span trace.Span, err error, to model.TripState) {
	if err != nil {
		s.metrics.RejectedTransitions.WithLabelValues(machine, apperrors.CodeOf(err).String()).Inc()
	} else if to != "" {
		s.metrics.Transitions.WithLabelValues(machine, string(to)).Inc()
	}
	telemetry.End(span, err)
}

func driver(tx *store.Tx, driverID string) (*model.Staff, error) {
	m, err := tx.StaffMember(driverID)
	if err != nil {
		return nil, err
	}
	if m.Role != model.StaffRoleDriver {
		return nil, apperrors.InvalidReference("driver", driverID)
	}
	return m, nil
}

// owned loads a trip and checks it belongs to driverID.
func owned(tx *store.Tx, tripID, driverID string) (*model.Trip, error) {
	t, err := tx.Trip(tripID)
	if err != nil {
		return nil, err
	}
	if t.DriverID != driverID {
		return nil, &apperrors.AppError{
			Code:    apperrors.ErrInvalidReference,
			Message: fmt.Sprintf("trip %s is not assigned to driver %s", tripID, driverID),
		}
	}
	return t, nil
}

func guard(t *model.Trip, to model.TripState) error {
	if !model.ValidTripTransition(t.State, to) {
		return apperrors.InvalidTransition("trip "+t.ID, string(t.State), string(to))
	}
	return nil
}

// Start opens a trip for driverID and sends it EN_ROUTE.
func (s *Service) Start(ctx context.Context, driverID, pickupLocation, patientName string) (out *model.Trip, err error) {
	ctx, span := s.start(ctx, "Start", "")
	defer func() { s.finish(span, err, model.TripEnRoute) }()

	err = s.store.Update(ctx, func(tx *store.Tx) error {
		if _, err := driver(tx, driverID); err != nil {
			return err
		}
		if pickupLocation == "" {
			return apperrors.Validation("pickup location is required", nil)
		}
		if active, ok := tx.ActiveTripFor(driverID); ok {
			return apperrors.DriverBusy(driverID, active.ID)
		}

		now := tx.Now()
		t := &model.Trip{
			ID:             model.NewID("TRIP-"),
			DriverID:       driverID,
			PatientName:    patientName,
			PickupLocation: pickupLocation,
			State:          model.TripIdle,
			CreatedAt:      now,
		}
		if err := guard(t, model.TripEnRoute); err != nil {
			return err
		}
		t.MoveTo(model.TripEnRoute, now)

		tx.PutTrip(t)
		tx.Record(model.NewAction(model.ActionStartTrip, driverID, model.EntityTrip, t.ID, map[string]string{
			"pickup_location": pickupLocation,
			"patient_name":    patientName,
		}, now))
		out = t.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(telemetry.ID("trip_id", out.ID))
	s.logger.Info("trip started", "trip_id", out.ID, "driver_id", driverID, "pickup", pickupLocation)
	return out, nil
}

// Advance moves the trip one step forward, or to CANCELLED. Completion goes
// through the same rules as Complete.
func (s *Service) Advance(ctx context.Context, tripID, driverID string, target model.TripState) (*model.Trip, error) {
	switch target {
	case model.TripCompleted:
		return s.Complete(ctx, tripID, driverID)
	case model.TripCancelled:
		return s.Cancel(ctx, tripID, driverID, "")
	}
	return s.transition(ctx, "Advance", tripID, driverID, target, model.ActionUpdateTripState, "")
}

// Complete ends a trip that is ARRIVING.
func (s *Service) Complete(ctx context.Context, tripID, driverID string) (*model.Trip, error) {
	return s.transition(ctx, "Complete", tripID, driverID, model.TripCompleted, model.ActionEndTrip, "")
}

// Cancel abandons a trip in any non-terminal state.
func (s *Service) Cancel(ctx context.Context, tripID, driverID, reason string) (*model.Trip, error) {
	return s.transition(ctx, "Cancel", tripID, driverID, model.TripCancelled, model.ActionCancelTrip, reason)
}

func (s *Service) transition(ctx context.Context, op, tripID, driverID string, to model.TripState, typ model.ActionType, reason string) (out *model.Trip, err error) {
	ctx, span := s.start(ctx, op, tripID)
	defer func() { s.finish(span, err, to) }()

	err = s.store.Update(ctx, func(tx *store.Tx) error {
		t, err := owned(tx, tripID, driverID)
		if err != nil {
			return err
		}
		if err := guard(t, to); err != nil {
			return err
		}

		from := t.State
		now := tx.Now()
		t.MoveTo(to, now)
		payload := map[string]string{"from": string(from), "to": string(to)}
		if to == model.TripCancelled {
			t.CancelReason = reason
			payload["reason"] = reason
		}

		tx.Record(model.NewAction(typ, driverID, model.EntityTrip, t.ID, payload, now))
		out = t.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("trip state changed", "trip_id", tripID, "driver_id", driverID, "state", to)
	return out, nil
}

// UpdateETA records a new arrival estimate on an active trip.
func (s *Service) UpdateETA(ctx context.Context, tripID, driverID string, minutes int) (out *model.Trip, err error) {
	ctx, span := s.start(ctx, "UpdateETA", tripID)
	defer func() { s.finish(span, err, "") }()

	if minutes < 0 {
		return nil, apperrors.Validation("eta must not be negative", nil)
	}

	err = s.store.Update(ctx, func(tx *store.Tx) error {
		t, err := owned(tx, tripID, driverID)
		if err != nil {
			return err
		}
		if t.State.Terminal() {
			return apperrors.InvalidTransition("trip "+t.ID, string(t.State), string(t.State))
		}
		now := tx.Now()
		t.ETAMinutes = minutes
		tx.Record(model.NewAction(model.ActionUpdateETA, driverID, model.EntityTrip, t.ID, map[string]int{
			"eta_minutes": minutes,
		}, now))
		out = t.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AttachPatient links an admitted patient to an active trip.
func (s *Service) AttachPatient(ctx context.Context, tripID, driverID, patientID string) (out *model.Trip, err error) {
	ctx, span := s.start(ctx, "AttachPatient", tripID)
	defer func() { s.finish(span, err, "") }()

	err = s.store.Update(ctx, func(tx *store.Tx) error {
		t, err := owned(tx, tripID, driverID)
		if err != nil {
			return err
		}
		if t.State.Terminal() {
			return apperrors.InvalidTransition("trip "+t.ID, string(t.State), string(t.State))
		}
		p, err := tx.Patient(patientID)
		if err != nil {
			return err
		}
		if p.Archived() {
			return apperrors.InvalidReference("patient", patientID)
		}

		now := tx.Now()
		id := p.ID
		t.PatientID = &id
		t.PatientName = p.Name
		tx.Record(model.NewAction(model.ActionAttachPatient, driverID, model.EntityTrip, t.ID, map[string]string{
			"patient_id": p.ID,
		}, now))
		out = t.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Get(_ context.Context, tripID string) (*model.Trip, error) {
	return s.store.Trip(tripID)
}

func (s *Service) List(_ context.Context) []*model.Trip {
	return s.store.Trips()
}

// ActiveForDriver returns the driver's non-terminal trip, or nil.
func (s *Service) ActiveForDriver(ctx context.Context, driverID string) (*model.Trip, error) {
	var out *model.Trip
	err := s.store.View(ctx, func(tx *store.Tx) error {
		if _, err := driver(tx, driverID); err != nil {
			return err
		}
		if t, ok := tx.ActiveTripFor(driverID); ok {
			out = t.Clone()
		}
		return nil
	})
	return out, err
}
