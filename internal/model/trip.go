package model

import "time"

type TripState string

const (
	TripIdle      TripState = "IDLE"
	TripEnRoute   TripState = "EN_ROUTE"
	TripLoaded    TripState = "LOADED"
	TripArriving  TripState = "ARRIVING"
	TripCompleted TripState = "COMPLETED"
	TripCancelled TripState = "CANCELLED"
)

var tripOrder = []TripState{TripIdle, TripEnRoute, TripLoaded, TripArriving, TripCompleted}

func (s TripState) Terminal() bool {
	return s == TripCompleted || s == TripCancelled
}

// Next returns the single forward successor of s, or "" for terminal states.
func (s TripState) Next() TripState {
	for i, st := range tripOrder[:len(tripOrder)-1] {
		if st == s {
			return tripOrder[i+1]
		}
	}
	return ""
}

// ValidTripTransition allows one forward step, or CANCELLED from any
// non-terminal state.
func ValidTripTransition(from, to TripState) bool {
	if from.Terminal() {
		return false
	}
	if to == TripCancelled {
		return true
	}
	return from.Next() == to
}

type Trip struct {
	ID             string     `json:"id"`
	DriverID       string     `json:"driver_id"`
	PatientID      *string    `json:"patient_id,omitempty"`
	PatientName    string     `json:"patient_name"`
	PickupLocation string     `json:"pickup_location"`
	State          TripState  `json:"state"`
	ETAMinutes     int        `json:"eta_minutes"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	LoadedAt       *time.Time `json:"loaded_at,omitempty"`
	ArrivingAt     *time.Time `json:"arriving_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
	CancelReason   string     `json:"cancel_reason,omitempty"`
}

// MoveTo sets the state and stamps the matching transition time.
func (t *Trip) MoveTo(s TripState, at time.Time) {
	t.State = s
	switch s {
	case TripEnRoute:
		t.StartedAt = timePtr(at)
	case TripLoaded:
		t.LoadedAt = timePtr(at)
	case TripArriving:
		t.ArrivingAt = timePtr(at)
	case TripCompleted:
		t.CompletedAt = timePtr(at)
	case TripCancelled:
		t.CancelledAt = timePtr(at)
	}
}

func (t *Trip) Clone() *Trip {
	c := *t
	c.PatientID = copyString(t.PatientID)
	c.StartedAt = copyTime(t.StartedAt)
	c.LoadedAt = copyTime(t.LoadedAt)
	c.ArrivingAt = copyTime(t.ArrivingAt)
	c.CompletedAt = copyTime(t.CompletedAt)
	c.CancelledAt = copyTime(t.CancelledAt)
	return &c
}

type StartTripRequest struct {
	DriverID       string `json:"driver_id" validate:"required"`
	PickupLocation string `json:"pickup_location" validate:"required"`
	PatientName    string `json:"patient_name"`
}

type AdvanceTripRequest struct {
	DriverID string    `json:"driver_id" validate:"required"`
	State    TripState `json:"state" validate:"required,oneof=EN_ROUTE LOADED ARRIVING COMPLETED CANCELLED"`
}

type DriverRequest struct {
	DriverID string `json:"driver_id" validate:"required"`
}

type CancelTripRequest struct {
	DriverID string `json:"driver_id" validate:"required"`
	Reason   string `json:"reason" validate:"max=500"`
}

type UpdateETARequest struct {
	DriverID   string `json:"driver_id" validate:"required"`
	ETAMinutes int    `json:"eta_minutes" validate:"gte=0,lte=1440"`
}

type AttachPatientRequest struct {
	DriverID  string `json:"driver_id" validate:"required"`
	PatientID string `json:"patient_id" validate:"required"`
}
