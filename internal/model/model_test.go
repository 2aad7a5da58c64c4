package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidTransferTransition(t *testing.T) {
	cases := []struct {
		from, to TransferStatus
		valid    bool
	}{
		{TransferRequested, TransferPendingApproval, true},
		{TransferPendingApproval, TransferApproved, true},
		{TransferPendingApproval, TransferDeclined, true},
		{TransferApproved, TransferInProgress, true},
		{TransferApproved, TransferCompleted, true},
		{TransferInProgress, TransferCompleted, true},
		{TransferRequested, TransferApproved, false},
		{TransferApproved, TransferDeclined, false},
		{TransferCompleted, TransferDeclined, false},
		{TransferDeclined, TransferApproved, false},
		{TransferPendingApproval, TransferCompleted, false},
	}
	for _, tt := range cases {
		assert.Equal(t, tt.valid, ValidTransferTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestValidTripTransition(t *testing.T) {
	assert.True(t, ValidTripTransition(TripIdle, TripEnRoute))
	assert.True(t, ValidTripTransition(TripLoaded, TripArriving))
	assert.True(t, ValidTripTransition(TripLoaded, TripCancelled))
	assert.False(t, ValidTripTransition(TripEnRoute, TripArriving))
	assert.False(t, ValidTripTransition(TripArriving, TripLoaded))
	assert.False(t, ValidTripTransition(TripCompleted, TripCancelled))
	assert.False(t, ValidTripTransition(TripCancelled, TripEnRoute))
	assert.Equal(t, TripState(""), TripCompleted.Next())
}

func TestTripMoveToStampsTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	trip := &Trip{State: TripIdle}
	trip.MoveTo(TripEnRoute, now)
	assert.Equal(t, TripEnRoute, trip.State)
	assert.Equal(t, now, *trip.StartedAt)

	c := trip.Clone()
	c.StartedAt = nil
	assert.NotNil(t, trip.StartedAt)
}

func TestBedReservation(t *testing.T) {
	now := time.Now()
	b := &Bed{ID: "B2", Occupancy: BedEmpty}
	b.Reserve("TRF-1", now)
	assert.True(t, b.ReservedBy("TRF-1"))
	assert.False(t, b.ReservedBy("TRF-2"))
	b.Occupy("P1", now)
	assert.Equal(t, BedOccupied, b.Occupancy)
	assert.Nil(t, b.ReservedFor)
	b.Release(now)
	assert.Equal(t, BedEmpty, b.Occupancy)
	assert.Nil(t, b.OccupantID)
}

func TestNewActionMarshalsPayload(t *testing.T) {
	a := NewAction(ActionApproveTransfer, "Dr. A", EntityTransfer, "TRF-1", map[string]string{"rationale": "ok"}, time.Now())
	assert.Contains(t, a.ID, "ACT-")
	assert.JSONEq(t, `{"rationale":"ok"}`, string(a.Payload))
	assert.False(t, a.Synced)
}

func TestTimeRangeContains(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := TimeRange{From: base, To: base.Add(time.Hour)}
	assert.True(t, r.Contains(base.Add(30*time.Minute)))
	assert.False(t, r.Contains(base.Add(2*time.Hour)))
	assert.True(t, TimeRange{}.Contains(base))
}
