package transfer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/vitalflow/internal/model"
	"github.com/jwalitptl/vitalflow/internal/service/servicetest"
	"github.com/jwalitptl/vitalflow/internal/store"
	apperrors "github.com/jwalitptl/vitalflow/pkg/errors"
)

// fillICU puts P3 into the only ICU bed so that P2 has nowhere to go.
func fillICU(t *testing.T, f *servicetest.Fixture, status model.PatientStatus, v model.Vitals) {
	t.Helper()
	err := f.Store.Update(context.Background(), func(tx *store.Tx) error {
		b2, err := tx.Bed("B2")
		if err != nil {
			return err
		}
		b2.Occupy("P3", tx.Now())
		bedID := "B2"
		tx.PutPatient(&model.Patient{ID: "P3", HospitalID: "H1", Name: "Cara Lim", Status: status, Vitals: v, BedID: &bedID})
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, f.Store.CheckOccupancy())
}

func TestStabilityScore(t *testing.T) {
	tests := []struct {
		name   string
		status model.PatientStatus
		vitals model.Vitals
		want   float64
	}{
		{"recovering with normal vitals", model.PatientStatusRecovering, model.Vitals{SpO2: 98, HeartRate: 72}, 100},
		{"stable", model.PatientStatusStable, model.Vitals{SpO2: 96, HeartRate: 105}, 75},
		{"serious", model.PatientStatusSerious, model.Vitals{SpO2: 91, HeartRate: 118}, 30},
		{"critical", model.PatientStatusCritical, model.Vitals{SpO2: 86, HeartRate: 128}, 10},
		{"out of every band", model.PatientStatusCritical, model.Vitals{SpO2: 80, HeartRate: 160}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &model.Patient{Status: tt.status, Vitals: tt.vitals}
			assert.Equal(t, tt.want, StabilityScore(p))
		})
	}
}

func TestProposeSwapPrefersFreeBed(t *testing.T) {
	svc, f := setup(t)

	plan, err := svc.ProposeSwap(context.Background(), "P2", "Dr. A")
	require.NoError(t, err)
	assert.Nil(t, plan.StepDown)
	assert.Equal(t, "B2", plan.Incoming.DestinationBedID)
	assert.Nil(t, plan.Incoming.SwapPartnerID)
	assert.Equal(t, model.BedReserved, bed(t, f, "B2").Occupancy)
}

func TestProposeSwapStepsDownStablePatient(t *testing.T) {
	svc, f := setup(t)
	ctx := context.Background()
	fillICU(t, f, model.PatientStatusStable, model.Vitals{SpO2: 98, HeartRate: 80})

	plan, err := svc.ProposeSwap(ctx, "P2", "Dr. A")
	require.NoError(t, err)
	require.NotNil(t, plan.StepDown)
	assert.Equal(t, float64(90), plan.StabilityScore)

	down, in := plan.StepDown, plan.Incoming
	assert.Equal(t, "P3", down.PatientID)
	assert.Equal(t, "B4", down.DestinationBedID)
	assert.Equal(t, "P2", in.PatientID)
	assert.Equal(t, "B2", in.DestinationBedID)
	require.NotNil(t, down.SwapPartnerID)
	require.NotNil(t, in.SwapPartnerID)
	assert.Equal(t, in.ID, *down.SwapPartnerID)
	assert.Equal(t, down.ID, *in.SwapPartnerID)
	assert.Equal(t, model.TransferPendingApproval, down.Status)
	assert.Equal(t, model.TransferPendingApproval, in.Status)

	// Only the step-down holds a bed; the freed bed is still occupied.
	assert.True(t, bed(t, f, "B4").ReservedBy(down.ID))
	assert.Equal(t, model.BedOccupied, bed(t, f, "B2").Occupancy)

	_, err = svc.Approve(ctx, in.ID, "Dr. B", "")
	assert.ErrorIs(t, err, apperrors.BedUnavailableErr)

	_, err = svc.Approve(ctx, down.ID, "Dr. B", "stable enough for ward")
	require.NoError(t, err)
	_, err = svc.Complete(ctx, down.ID, "S1")
	require.NoError(t, err)
	assert.True(t, bed(t, f, "B2").ReservedBy(in.ID))

	_, err = svc.Approve(ctx, in.ID, "Dr. B", "ICU freed")
	require.NoError(t, err)
	_, err = svc.Complete(ctx, in.ID, "S1")
	require.NoError(t, err)

	p2, err := f.Store.Patient("P2")
	require.NoError(t, err)
	assert.Equal(t, "B2", *p2.BedID)
	p3, err := f.Store.Patient("P3")
	require.NoError(t, err)
	assert.Equal(t, "B4", *p3.BedID)
	assert.Equal(t, model.BedEmpty, bed(t, f, "B3").Occupancy)
	require.NoError(t, f.Store.CheckOccupancy())

	assert.Equal(t, []model.ActionType{
		model.ActionRequestTransfer,
		model.ActionRequestTransfer,
		model.ActionProposeSwap,
		model.ActionApproveTransfer,
		model.ActionCompleteTransfer,
		model.ActionApproveTransfer,
		model.ActionCompleteTransfer,
	}, f.ActionTypes())
}

func TestProposeSwapSkipsUnsuitableCandidates(t *testing.T) {
	tests := []struct {
		name   string
		status model.PatientStatus
		vitals model.Vitals
	}{
		{"critical occupant", model.PatientStatusCritical, model.Vitals{SpO2: 99, HeartRate: 80}},
		{"score under threshold", model.PatientStatusSerious, model.Vitals{SpO2: 88, HeartRate: 125}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, f := setup(t)
			fillICU(t, f, tt.status, tt.vitals)

			_, err := svc.ProposeSwap(context.Background(), "P2", "Dr. A")
			assert.ErrorIs(t, err, apperrors.BedUnavailableErr)
			assert.Equal(t, model.BedOccupied, bed(t, f, "B2").Occupancy)
			assert.Equal(t, model.BedEmpty, bed(t, f, "B4").Occupancy)
			assert.Empty(t, f.ActionTypes())
		})
	}
}

func TestProposeSwapSkipsPatientInTransfer(t *testing.T) {
	svc, f := setup(t)
	ctx := context.Background()
	fillICU(t, f, model.PatientStatusRecovering, model.Vitals{SpO2: 99, HeartRate: 70})

	_, err := svc.Request(ctx, "P3", "B4", "Dr. A")
	require.NoError(t, err)

	_, err = svc.ProposeSwap(ctx, "P2", "Dr. A")
	assert.ErrorIs(t, err, apperrors.BedUnavailableErr)
}

func TestProposeSwapErrors(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.ProposeSwap(ctx, "P2", "")
	assert.ErrorIs(t, err, apperrors.ValidationErr)
	_, err = svc.ProposeSwap(ctx, "P9", "Dr. A")
	assert.ErrorIs(t, err, apperrors.InvalidReferenceErr)

	err = svc.store.Update(ctx, func(tx *store.Tx) error {
		p, err := tx.Patient("P1")
		if err != nil {
			return err
		}
		p.Status = model.PatientStatusStable
		return nil
	})
	require.NoError(t, err)
	_, err = svc.ProposeSwap(ctx, "P1", "Dr. A")
	assert.ErrorIs(t, err, apperrors.ValidationErr)
}
