package model

import (
	"encoding/json"
	"time"
)

type ActionType string

const (
	ActionRequestTransfer  ActionType = "REQUEST_TRANSFER"
	ActionApproveTransfer  ActionType = "APPROVE_TRANSFER"
	ActionDeclineTransfer  ActionType = "DECLINE_TRANSFER"
	ActionStartTransfer    ActionType = "START_TRANSFER"
	ActionCompleteTransfer ActionType = "COMPLETE_TRANSFER"
	ActionAnnotateTransfer ActionType = "ANNOTATE_TRANSFER"
	ActionProposeSwap      ActionType = "PROPOSE_SWAP"

	ActionStartTrip       ActionType = "START_TRIP"
	ActionUpdateTripState ActionType = "UPDATE_TRIP_STATE"
	ActionEndTrip         ActionType = "END_TRIP"
	ActionCancelTrip      ActionType = "CANCEL_TRIP"
	ActionUpdateETA       ActionType = "UPDATE_ETA"
	ActionAttachPatient   ActionType = "ATTACH_PATIENT"

	ActionOverrideDecision ActionType = "OVERRIDE_DECISION"
	ActionAdmitPatient     ActionType = "ADMIT_PATIENT"
	ActionDischargePatient ActionType = "DISCHARGE_PATIENT"
	ActionUpdateVitals     ActionType = "UPDATE_VITALS"
	ActionBedMaintenance   ActionType = "BED_MAINTENANCE"
	ActionBedAvailable     ActionType = "BED_AVAILABLE"
	ActionPunchIn          ActionType = "PUNCH_IN"
	ActionPunchOut         ActionType = "PUNCH_OUT"
)

type EntityType string

const (
	EntityTransfer EntityType = "transfer"
	EntityTrip     EntityType = "trip"
	EntityPatient  EntityType = "patient"
	EntityBed      EntityType = "bed"
	EntityStaff    EntityType = "staff"
	EntityAction   EntityType = "action"
)

// Action is an immutable audit record. Only Synced may change after append.
type Action struct {
	ID         string          `json:"id" db:"id"`
	Seq        uint64          `json:"seq" db:"seq"`
	Type       ActionType      `json:"type" db:"type"`
	Actor      string          `json:"actor" db:"actor"`
	EntityType EntityType      `json:"entity_type" db:"entity_type"`
	EntityID   string          `json:"entity_id" db:"entity_id"`
	Timestamp  time.Time       `json:"timestamp" db:"created_at"`
	Payload    json.RawMessage `json:"payload,omitempty" db:"payload"`
	// RefActionID points at the overridden action for OVERRIDE_DECISION.
	RefActionID *string    `json:"ref_action_id,omitempty" db:"ref_action_id"`
	Synced      bool       `json:"is_synced" db:"-"`
	SyncedAt    *time.Time `json:"synced_at,omitempty" db:"synced_at"`
}

func (a *Action) Clone() *Action {
	c := *a
	c.Payload = append(json.RawMessage(nil), a.Payload...)
	c.RefActionID = copyString(a.RefActionID)
	c.SyncedAt = copyTime(a.SyncedAt)
	return &c
}

// NewAction builds an unsequenced action; payload is marshalled to JSON and
// dropped if it cannot be.
func NewAction(typ ActionType, actor string, entity EntityType, entityID string, payload interface{}, at time.Time) *Action {
	a := &Action{
		ID:         NewID("ACT-"),
		Type:       typ,
		Actor:      actor,
		EntityType: entity,
		EntityID:   entityID,
		Timestamp:  at,
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			a.Payload = raw
		}
	}
	return a
}

type ActionFilters struct {
	Actor      string     `form:"actor"`
	EntityType EntityType `form:"entity_type"`
	EntityID   string     `form:"entity_id"`
	Type       ActionType `form:"type"`
	TimeRange
	Limit int `form:"limit"`
}

type OverrideRequest struct {
	Actor      string `json:"actor" validate:"required"`
	NewOutcome string `json:"new_outcome" validate:"required"`
	Reason     string `json:"reason" validate:"max=1000"`
}
