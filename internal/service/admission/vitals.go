package admission

import (
	"context"

	"github.com/jwalitptl/vitalflow/internal/model"
	"github.com/jwalitptl/vitalflow/internal/store"
	apperrors "github.com/jwalitptl/vitalflow/pkg/errors"
)

// Vital sign thresholds. SpO2 in percent, heart rate in beats per minute.
const (
	spo2Critical  = 85
	spo2Low       = 90
	spo2NormalMin = 95

	hrCriticalLow  = 40
	hrLow          = 50
	hrNormalMin    = 60
	hrNormalMax    = 100
	hrHigh         = 120
	hrCriticalHigh = 150
)

// statusForVitals applies the escalation rules to a patient currently in
// status. Readings only ever raise a patient to SERIOUS or CRITICAL; the
// one automatic improvement is SERIOUS to STABLE once both readings are
// back in the normal range.
func statusForVitals(status model.PatientStatus, v model.Vitals) model.PatientStatus {
	critical := v.SpO2 < spo2Critical || v.HeartRate < hrCriticalLow || v.HeartRate > hrCriticalHigh
	serious := v.SpO2 < spo2Low || v.HeartRate < hrLow || v.HeartRate > hrHigh
	normal := v.SpO2 >= spo2NormalMin && v.HeartRate >= hrNormalMin && v.HeartRate <= hrNormalMax

	switch {
	case critical:
		return model.PatientStatusCritical
	case serious && status != model.PatientStatusCritical:
		return model.PatientStatusSerious
	case normal && status == model.PatientStatusSerious:
		return model.PatientStatusStable
	}
	return status
}

// UpdateVitals records new readings and moves the clinical status when they
// cross a threshold. A patient who turns critical outside an ICU bed is
// flagged with NeedsICU; moving them is left to the transfer workflow.
func (s *Service) UpdateVitals(ctx context.Context, patientID string, req *model.UpdateVitalsRequest) (*model.VitalsUpdate, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var out *model.VitalsUpdate
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		p, err := tx.Patient(patientID)
		if err != nil {
			return err
		}
		if p.Archived() {
			return apperrors.InvalidTransition("patient "+p.ID, string(p.Status), "vitals update")
		}

		if req.SpO2 != nil {
			p.Vitals.SpO2 = *req.SpO2
		}
		if req.HeartRate != nil {
			p.Vitals.HeartRate = *req.HeartRate
		}
		if req.BloodPressure != nil {
			p.Vitals.BloodPressure = *req.BloodPressure
		}
		if req.Temperature != nil {
			p.Vitals.Temperature = *req.Temperature
		}

		old := p.Status
		p.Status = statusForVitals(old, p.Vitals)
		now := tx.Now()
		p.UpdatedAt = now

		needsICU := false
		if p.Status == model.PatientStatusCritical && old != model.PatientStatusCritical {
			needsICU = true
			if p.BedID != nil {
				if bed, err := tx.Bed(*p.BedID); err == nil && bed.Type == model.BedTypeICU {
					needsICU = false
				}
			}
		}

		tx.Record(model.NewAction(model.ActionUpdateVitals, req.Actor, model.EntityPatient, p.ID, map[string]interface{}{
			"vitals":     p.Vitals,
			"old_status": old,
			"new_status": p.Status,
			"needs_icu":  needsICU,
		}, now))
		out = &model.VitalsUpdate{
			Patient:       p.Clone(),
			OldStatus:     old,
			StatusChanged: old != p.Status,
			NeedsICU:      needsICU,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.StatusChanged {
		s.logger.Info("patient status changed by vitals",
			"patient_id", patientID,
			"old_status", string(out.OldStatus),
			"new_status", string(out.Patient.Status),
			"needs_icu", out.NeedsICU)
	}
	return out, nil
}
