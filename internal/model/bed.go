package model

import "time"

type BedType string

const (
	BedTypeICU       BedType = "ICU"
	BedTypeGeneral   BedType = "GENERAL"
	BedTypeEmergency BedType = "EMERGENCY"
)

var BedTypes = []BedType{BedTypeICU, BedTypeEmergency, BedTypeGeneral}

type BedOccupancy string

const (
	BedEmpty       BedOccupancy = "EMPTY"
	BedOccupied    BedOccupancy = "OCCUPIED"
	BedReserved    BedOccupancy = "RESERVED"
	BedMaintenance BedOccupancy = "MAINTENANCE"
)

type Bed struct {
	ID         string       `json:"id"`
	HospitalID string       `json:"hospital_id"`
	Floor      int          `json:"floor"`
	Ward       string       `json:"ward"`
	RoomNumber string       `json:"room_number"`
	Type       BedType      `json:"bed_type"`
	Occupancy  BedOccupancy `json:"occupancy"`
	// OccupantID is a weak reference; the patient's BedID must point back here.
	OccupantID *string `json:"occupant_id,omitempty"`
	// ReservedFor holds the transfer id while Occupancy is RESERVED.
	ReservedFor *string   `json:"reserved_for,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ReservedBy reports whether the bed is held for the given transfer.
func (b *Bed) ReservedBy(transferID string) bool {
	return b.Occupancy == BedReserved && b.ReservedFor != nil && *b.ReservedFor == transferID
}

// Release empties the bed, dropping any occupant or hold.
func (b *Bed) Release(at time.Time) {
	b.Occupancy = BedEmpty
	b.OccupantID = nil
	b.ReservedFor = nil
	b.UpdatedAt = at
}

func (b *Bed) Reserve(transferID string, at time.Time) {
	b.Occupancy = BedReserved
	b.ReservedFor = &transferID
	b.OccupantID = nil
	b.UpdatedAt = at
}

func (b *Bed) Occupy(patientID string, at time.Time) {
	b.Occupancy = BedOccupied
	b.OccupantID = &patientID
	b.ReservedFor = nil
	b.UpdatedAt = at
}

func (b *Bed) Clone() *Bed {
	c := *b
	c.OccupantID = copyString(b.OccupantID)
	c.ReservedFor = copyString(b.ReservedFor)
	return &c
}

type BedFilters struct {
	HospitalID    string  `form:"hospital_id"`
	Floor         int     `form:"floor"`
	Type          BedType `form:"type"`
	AvailableOnly bool    `form:"available"`
}

type MaintenanceRequest struct {
	Actor string `json:"actor" validate:"required"`
}
