package model

import "time"

type TransferStatus string

const (
	TransferRequested       TransferStatus = "REQUESTED"
	TransferPendingApproval TransferStatus = "PENDING_APPROVAL"
	TransferApproved        TransferStatus = "APPROVED"
	TransferDeclined        TransferStatus = "DECLINED"
	TransferInProgress      TransferStatus = "IN_PROGRESS"
	TransferCompleted       TransferStatus = "COMPLETED"
)

// Terminal reports whether no further status change is possible.
func (s TransferStatus) Terminal() bool {
	return s == TransferDeclined || s == TransferCompleted
}

var transferTransitions = map[TransferStatus][]TransferStatus{
	TransferPendingApproval: {TransferRequested},
	TransferApproved:        {TransferPendingApproval},
	TransferDeclined:        {TransferPendingApproval},
	TransferInProgress:      {TransferApproved},
	TransferCompleted:       {TransferApproved, TransferInProgress},
}

// ValidTransferTransition reports whether a transfer may move from -> to.
func ValidTransferTransition(from, to TransferStatus) bool {
	for _, s := range transferTransitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

type Annotation struct {
	Actor string    `json:"actor"`
	Note  string    `json:"note"`
	At    time.Time `json:"at"`
}

type TransferRequest struct {
	ID                    string         `json:"id"`
	PatientID             string         `json:"patient_id"`
	SourceBedID           *string        `json:"source_bed_id,omitempty"`
	DestinationBedID      string         `json:"destination_bed_id"`
	DestinationHospitalID string         `json:"destination_hospital_id"`
	RequestedBy           string         `json:"requested_by"`
	Status                TransferStatus `json:"status"`
	// History lists every status the request has held, in order.
	History     []TransferStatus `json:"history"`
	Rationale   string           `json:"rationale,omitempty"`
	DecidedBy   string           `json:"decided_by,omitempty"`
	CompletedBy string           `json:"completed_by,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	DecidedAt   *time.Time       `json:"decided_at,omitempty"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Annotations []Annotation     `json:"annotations,omitempty"`
	// SwapPartnerID links the two halves of a bed swap: the step-down that
	// frees a bed and the transfer waiting to take it.
	SwapPartnerID *string `json:"swap_partner_id,omitempty"`
}

// MoveTo records a status change. Callers check ValidTransferTransition first.
func (t *TransferRequest) MoveTo(s TransferStatus) {
	t.Status = s
	t.History = append(t.History, s)
}

func (t *TransferRequest) Clone() *TransferRequest {
	c := *t
	c.SourceBedID = copyString(t.SourceBedID)
	c.History = append([]TransferStatus(nil), t.History...)
	c.DecidedAt = copyTime(t.DecidedAt)
	c.StartedAt = copyTime(t.StartedAt)
	c.CompletedAt = copyTime(t.CompletedAt)
	c.Annotations = append([]Annotation(nil), t.Annotations...)
	c.SwapPartnerID = copyString(t.SwapPartnerID)
	return &c
}

type TransferFilters struct {
	Status    TransferStatus `form:"status"`
	PatientID string         `form:"patient_id"`
}

type CreateTransferRequest struct {
	PatientID        string `json:"patient_id" validate:"required"`
	DestinationBedID string `json:"destination_bed_id" validate:"required"`
	Actor            string `json:"actor" validate:"required"`
}

type ProposeTransferRequest struct {
	PatientID string `json:"patient_id" validate:"required"`
	Actor     string `json:"actor" validate:"required"`
}

// SwapPlan is the result of placing a patient by swap. StepDown is nil when
// a bed was free and Incoming was requested directly.
type SwapPlan struct {
	StepDown       *TransferRequest `json:"step_down,omitempty"`
	Incoming       *TransferRequest `json:"incoming"`
	StabilityScore float64          `json:"stability_score,omitempty"`
}

type DecisionRequest struct {
	Actor     string `json:"actor" validate:"required"`
	Rationale string `json:"rationale" validate:"max=1000"`
}

type DeclineRequest struct {
	Actor  string `json:"actor" validate:"required"`
	Reason string `json:"reason" validate:"required,max=1000"`
}

type StaffActionRequest struct {
	StaffID string `json:"staff_id" validate:"required"`
}

type AnnotateRequest struct {
	Actor string `json:"actor" validate:"required"`
	Note  string `json:"note" validate:"required,max=2000"`
}
