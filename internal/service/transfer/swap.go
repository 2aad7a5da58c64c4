package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/vitalflow/internal/model"
	"github.com/jwalitptl/vitalflow/internal/store"
	apperrors "github.com/jwalitptl/vitalflow/pkg/errors"
	"github.com/jwalitptl/vitalflow/pkg/telemetry"
)

// minSwapStability is the lowest score a patient may have and still be
// stepped down to make room.
const minSwapStability = 30

var stepDownTypes = []model.BedType{model.BedTypeGeneral, model.BedTypeEmergency}

// StabilityScore rates from 0 to 100 how safely a patient can move to a
// lower level of care: up to 40 for clinical status, 30 for SpO2 and 30
// for heart rate.
func StabilityScore(p *model.Patient) float64 {
	var score float64
	switch p.Status {
	case model.PatientStatusRecovering:
		score += 40
	case model.PatientStatusStable:
		score += 30
	case model.PatientStatusSerious:
		score += 10
	}

	switch spo2 := p.Vitals.SpO2; {
	case spo2 >= 98:
		score += 30
	case spo2 >= 95:
		score += 25
	case spo2 >= 92:
		score += 15
	case spo2 >= 90:
		score += 10
	case spo2 >= 85:
		score += 5
	}

	switch hr := p.Vitals.HeartRate; {
	case hr >= 60 && hr <= 100:
		score += 30
	case hr >= 55 && hr <= 110:
		score += 20
	case hr >= 50 && hr <= 120:
		score += 10
	case hr >= 45 && hr <= 130:
		score += 5
	}
	return score
}

// ProposeSwap places a critical or serious patient. When a suitable bed is
// free it is requested directly. Otherwise the most stable non-critical
// patient in a suitable bed is stepped down to a lower-care bed, and two
// linked transfers are opened: the step-down, holding the lower-care bed,
// and the incoming transfer, which takes the freed bed once the step-down
// completes. Both still need approval.
func (s *Service) ProposeSwap(ctx context.Context, patientID, actor string) (plan *model.SwapPlan, err error) {
	if actor == "" {
		return nil, apperrors.Validation("requesting actor is required", nil)
	}
	patient, err := s.store.Patient(patientID)
	if err != nil {
		return nil, err
	}
	if patient.Archived() {
		return nil, apperrors.InvalidReference("patient", patientID)
	}
	if patient.Status != model.PatientStatusCritical && patient.Status != model.PatientStatusSerious {
		return nil, apperrors.Validation(fmt.Sprintf("patient %s is %s; only critical or serious patients are placed by swap", patientID, patient.Status), nil)
	}

	beds := s.store.Beds(model.BedFilters{HospitalID: patient.HospitalID, AvailableOnly: true})
	proposal, err := s.recommender.Recommend(ctx, patient, beds)
	switch {
	case err == nil:
		t, err := s.request(ctx, patientID, proposal.BedID, actor, proposal.Rationale)
		if err != nil {
			return nil, err
		}
		return &model.SwapPlan{Incoming: t}, nil
	case !errors.Is(err, apperrors.BedUnavailableErr):
		return nil, err
	}

	ctx, span := s.start(ctx, "ProposeSwap", "")
	defer func() { s.finish(span, err, "") }()

	err = s.store.Update(ctx, func(tx *store.Tx) error {
		incoming, err := tx.Patient(patientID)
		if err != nil {
			return err
		}

		var (
			candidate *model.Patient
			freed     *model.Bed
			score     float64
		)
		for _, typ := range bedPriority[incoming.Status] {
			if candidate, freed, score = swapCandidate(tx, incoming, typ); candidate != nil {
				break
			}
		}
		if candidate == nil {
			return &apperrors.AppError{
				Code:    apperrors.ErrBedUnavailable,
				Message: fmt.Sprintf("no bed for patient %s and no stable patient to step down", patientID),
			}
		}
		down := stepDownBed(tx, incoming.HospitalID, freed.Type)
		if down == nil {
			return &apperrors.AppError{
				Code:    apperrors.ErrBedUnavailable,
				Message: fmt.Sprintf("no lower-care bed to step patient %s down into", candidate.ID),
			}
		}
		if freed, err = tx.Bed(freed.ID); err != nil {
			return err
		}
		if down, err = tx.Bed(down.ID); err != nil {
			return err
		}

		stepDown, err := openRequest(tx, candidate, down, actor,
			fmt.Sprintf("step down (stability %.0f/100) to free %s bed %s for %s patient %s",
				score, freed.Type, freed.ID, incoming.Status, incoming.ID))
		if err != nil {
			return err
		}
		down.Reserve(stepDown.ID, tx.Now())

		in, err := openRequest(tx, incoming, freed, actor,
			fmt.Sprintf("%s bed %s freed by step-down of patient %s", freed.Type, freed.ID, candidate.ID))
		if err != nil {
			return err
		}
		stepDownID, inID := stepDown.ID, in.ID
		stepDown.SwapPartnerID = &inID
		in.SwapPartnerID = &stepDownID

		recordRequest(tx, stepDown, actor, map[string]interface{}{"swap_partner_id": inID, "stability_score": score})
		recordRequest(tx, in, actor, map[string]interface{}{"swap_partner_id": stepDownID})
		tx.Record(model.NewAction(model.ActionProposeSwap, actor, model.EntityPatient, incoming.ID, map[string]interface{}{
			"incoming_patient_id":   incoming.ID,
			"incoming_transfer_id":  inID,
			"stepped_down_patient":  candidate.ID,
			"step_down_transfer_id": stepDownID,
			"stability_score":       score,
			"freed_bed_id":          freed.ID,
			"step_down_bed_id":      down.ID,
			"spo2":                  incoming.Vitals.SpO2,
			"heart_rate":            incoming.Vitals.HeartRate,
		}, tx.Now()))

		plan = &model.SwapPlan{StepDown: stepDown.Clone(), Incoming: in.Clone(), StabilityScore: score}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transitions.WithLabelValues(machine, string(model.TransferPendingApproval)).Add(2)
	span.SetAttributes(telemetry.ID("transfer_id", plan.Incoming.ID))
	s.logger.Info("bed swap proposed",
		"patient_id", patientID,
		"stepped_down", plan.StepDown.PatientID,
		"freed_bed", plan.Incoming.DestinationBedID,
		"step_down_bed", plan.StepDown.DestinationBedID,
		"stability", plan.StabilityScore,
		"actor", actor)
	return plan, nil
}

// swapCandidate finds the most stable patient occupying a bed of typ in the
// incoming patient's hospital. Critical patients, patients already in a
// transfer and scores under minSwapStability are never picked.
func swapCandidate(tx *store.Tx, incoming *model.Patient, typ model.BedType) (*model.Patient, *model.Bed, float64) {
	occupied := tx.Beds(func(b *model.Bed) bool {
		return b.HospitalID == incoming.HospitalID && b.Type == typ &&
			b.Occupancy == model.BedOccupied && b.OccupantID != nil && *b.OccupantID != incoming.ID
	})

	var (
		best      *model.Patient
		bestBed   *model.Bed
		bestScore float64
	)
	for _, b := range occupied {
		p, err := tx.Patient(*b.OccupantID)
		if err != nil || p.Archived() || p.Status == model.PatientStatusCritical {
			continue
		}
		if _, busy := tx.OpenTransferFor(p.ID); busy {
			continue
		}
		score := StabilityScore(p)
		if score < minSwapStability {
			continue
		}
		if best == nil || score > bestScore {
			best, bestBed, bestScore = p, b, score
		}
	}
	return best, bestBed, bestScore
}

// stepDownBed picks the lowest empty bed of a lower care level than from.
func stepDownBed(tx *store.Tx, hospitalID string, from model.BedType) *model.Bed {
	for _, typ := range stepDownTypes {
		if typ == from {
			continue
		}
		var best *model.Bed
		for _, b := range tx.Beds(func(b *model.Bed) bool {
			return b.HospitalID == hospitalID && b.Type == typ && b.Occupancy == model.BedEmpty
		}) {
			if best == nil || b.Floor < best.Floor || (b.Floor == best.Floor && b.ID < best.ID) {
				best = b
			}
		}
		if best != nil {
			return best
		}
	}
	return nil
}

// handOver reserves a bed that a step-down just vacated for the incoming
// half of its swap, if that transfer is still waiting.
func handOver(tx *store.Tx, t *model.TransferRequest, freed *model.Bed, now time.Time) {
	if t.SwapPartnerID == nil {
		return
	}
	partner, err := tx.Transfer(*t.SwapPartnerID)
	if err != nil || partner.Status != model.TransferPendingApproval || partner.DestinationBedID != freed.ID {
		return
	}
	freed.Reserve(partner.ID, now)
}
