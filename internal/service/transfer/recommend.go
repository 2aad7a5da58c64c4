package transfer

import (
	"context"
	"fmt"

	"github.com/jwalitptl/vitalflow/internal/model"
	apperrors "github.com/jwalitptl/vitalflow/pkg/errors"
)

// Proposal is a suggested destination for a patient.
type Proposal struct {
	BedID     string `json:"bed_id"`
	Rationale string `json:"rationale"`
}

// Recommender proposes a destination bed. Implementations are advisory: the
// proposal goes through Request like any other transfer.
type Recommender interface {
	Recommend(ctx context.Context, patient *model.Patient, available []*model.Bed) (*Proposal, error)
}

var bedPriority = map[model.PatientStatus][]model.BedType{
	model.PatientStatusCritical: {model.BedTypeICU, model.BedTypeEmergency},
	model.PatientStatusSerious:  {model.BedTypeICU, model.BedTypeEmergency, model.BedTypeGeneral},
}

var defaultPriority = []model.BedType{model.BedTypeGeneral, model.BedTypeEmergency}

// BedTypeRecommender picks the first empty bed by bed type priority for the
// patient's clinical status, lowest floor first.
type BedTypeRecommender struct{}

func (BedTypeRecommender) Recommend(_ context.Context, patient *model.Patient, available []*model.Bed) (*Proposal, error) {
	priority, ok := bedPriority[patient.Status]
	if !ok {
		priority = defaultPriority
	}

	for _, typ := range priority {
		var best *model.Bed
		for _, b := range available {
			if b.Type != typ || b.Occupancy != model.BedEmpty || b.HospitalID != patient.HospitalID {
				continue
			}
			if best == nil || b.Floor < best.Floor || (b.Floor == best.Floor && b.ID < best.ID) {
				best = b
			}
		}
		if best != nil {
			return &Proposal{
				BedID:     best.ID,
				Rationale: fmt.Sprintf("%s patient: first available %s bed (floor %d)", patient.Status, typ, best.Floor),
			}, nil
		}
	}
	return nil, apperrors.BedUnavailable("any "+joinTypes(priority), "full")
}

func joinTypes(types []model.BedType) string {
	out := ""
	for i, t := range types {
		if i > 0 {
			out += "/"
		}
		out += string(t)
	}
	return out
}

// Propose asks the recommender for a destination and requests the transfer.
func (s *Service) Propose(ctx context.Context, patientID, actor string) (*model.TransferRequest, error) {
	patient, err := s.store.Patient(patientID)
	if err != nil {
		return nil, err
	}
	if patient.Archived() {
		return nil, apperrors.InvalidReference("patient", patientID)
	}
	beds := s.store.Beds(model.BedFilters{HospitalID: patient.HospitalID, AvailableOnly: true})

	proposal, err := s.recommender.Recommend(ctx, patient, beds)
	if err != nil {
		return nil, fmt.Errorf("no destination for patient %s: %w", patientID, err)
	}
	return s.request(ctx, patientID, proposal.BedID, actor, proposal.Rationale)
}
