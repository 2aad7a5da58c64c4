package store

import (
	"context"
	"sort"
	"time"

	"github.com/jwalitptl/vitalflow/internal/model"
	apperrors "github.com/jwalitptl/vitalflow/pkg/errors"
)

// Tx is a staged view of the store. Records returned by the lookup methods
// are private copies; changes to them are committed when Update returns nil.
type Tx struct {
	ctx     context.Context
	base    *state
	staged  state
	actions []*model.Action
	now     time.Time
	version uint64
}

func newTx(ctx context.Context, base *state, now time.Time, version uint64) *Tx {
	return &Tx{ctx: ctx, base: base, staged: newState(), now: now, version: version}
}

// Version is the store version the transaction started from.
func (tx *Tx) Version() uint64 { return tx.version }

func (tx *Tx) Context() context.Context { return tx.ctx }

// Now is fixed for the lifetime of the transaction.
func (tx *Tx) Now() time.Time { return tx.now }

// Record queues an action to be appended on commit.
func (tx *Tx) Record(a *model.Action) {
	if a.Timestamp.IsZero() {
		a.Timestamp = tx.now
	}
	tx.actions = append(tx.actions, a)
}

func (tx *Tx) Actions() []*model.Action {
	return tx.actions
}

func stage[T cloneable[T]](base, staged table[T], entity, id string) (T, error) {
	if v, ok := staged[id]; ok {
		return v, nil
	}
	v, ok := base[id]
	if !ok {
		var zero T
		return zero, apperrors.InvalidReference(entity, id)
	}
	c := v.Clone()
	staged[id] = c
	return c, nil
}

// merged lists records with staged copies taking precedence. Base records are
// returned as copies that are not staged.
func merged[T cloneable[T]](base, staged table[T], keep func(T) bool) []T {
	ids := make([]string, 0, len(base)+len(staged))
	seen := make(map[string]struct{}, len(staged))
	for id, v := range staged {
		seen[id] = struct{}{}
		if keep == nil || keep(v) {
			ids = append(ids, id)
		}
	}
	for id, v := range base {
		if _, ok := seen[id]; ok {
			continue
		}
		if keep == nil || keep(v) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if v, ok := staged[id]; ok {
			out = append(out, v)
			continue
		}
		out = append(out, base[id].Clone())
	}
	return out
}

func (tx *Tx) Hospital(id string) (*model.Hospital, error) {
	return stage(tx.base.hospitals, tx.staged.hospitals, "hospital", id)
}

func (tx *Tx) Patient(id string) (*model.Patient, error) {
	return stage(tx.base.patients, tx.staged.patients, "patient", id)
}

func (tx *Tx) Bed(id string) (*model.Bed, error) {
	return stage(tx.base.beds, tx.staged.beds, "bed", id)
}

func (tx *Tx) StaffMember(id string) (*model.Staff, error) {
	return stage(tx.base.staff, tx.staged.staff, "staff", id)
}

func (tx *Tx) Transfer(id string) (*model.TransferRequest, error) {
	return stage(tx.base.transfers, tx.staged.transfers, "transfer", id)
}

func (tx *Tx) Trip(id string) (*model.Trip, error) {
	return stage(tx.base.trips, tx.staged.trips, "trip", id)
}

func (tx *Tx) PutHospital(h *model.Hospital)        { tx.staged.hospitals[h.ID] = h }
func (tx *Tx) PutPatient(p *model.Patient)          { tx.staged.patients[p.ID] = p }
func (tx *Tx) PutBed(b *model.Bed)                  { tx.staged.beds[b.ID] = b }
func (tx *Tx) PutStaff(m *model.Staff)              { tx.staged.staff[m.ID] = m }
func (tx *Tx) PutTransfer(t *model.TransferRequest) { tx.staged.transfers[t.ID] = t }
func (tx *Tx) PutTrip(t *model.Trip)                { tx.staged.trips[t.ID] = t }

func (tx *Tx) Beds(keep func(*model.Bed) bool) []*model.Bed {
	return merged(tx.base.beds, tx.staged.beds, keep)
}

func (tx *Tx) Patients(keep func(*model.Patient) bool) []*model.Patient {
	return merged(tx.base.patients, tx.staged.patients, keep)
}

func (tx *Tx) StaffList(keep func(*model.Staff) bool) []*model.Staff {
	return merged(tx.base.staff, tx.staged.staff, keep)
}

func (tx *Tx) Transfers(keep func(*model.TransferRequest) bool) []*model.TransferRequest {
	return merged(tx.base.transfers, tx.staged.transfers, keep)
}

func (tx *Tx) Trips(keep func(*model.Trip) bool) []*model.Trip {
	return merged(tx.base.trips, tx.staged.trips, keep)
}

// OpenTransferFor returns the non-terminal transfer of a patient, if any.
// An APPROVED or IN_PROGRESS transfer whose bed hold was revoked can never
// complete and does not count.
func (tx *Tx) OpenTransferFor(patientID string) (*model.TransferRequest, bool) {
	open := tx.Transfers(func(t *model.TransferRequest) bool {
		return t.PatientID == patientID && !t.Status.Terminal() && !tx.holdRevoked(t)
	})
	if len(open) == 0 {
		return nil, false
	}
	return open[0], true
}

func (tx *Tx) holdRevoked(t *model.TransferRequest) bool {
	if t.Status != model.TransferApproved && t.Status != model.TransferInProgress {
		return false
	}
	b, ok := tx.staged.beds[t.DestinationBedID]
	if !ok {
		if b, ok = tx.base.beds[t.DestinationBedID]; !ok {
			return true
		}
	}
	return !b.ReservedBy(t.ID)
}

// ActiveTripFor returns the non-terminal trip of a driver, if any.
func (tx *Tx) ActiveTripFor(driverID string) (*model.Trip, bool) {
	active := tx.Trips(func(t *model.Trip) bool {
		return t.DriverID == driverID && !t.State.Terminal()
	})
	if len(active) == 0 {
		return nil, false
	}
	return active[0], true
}

func (tx *Tx) apply(st *state) bool {
	n := commit(st.hospitals, tx.staged.hospitals) +
		commit(st.patients, tx.staged.patients) +
		commit(st.beds, tx.staged.beds) +
		commit(st.staff, tx.staged.staff) +
		commit(st.transfers, tx.staged.transfers) +
		commit(st.trips, tx.staged.trips)
	return n > 0 || len(tx.actions) > 0
}

func commit[T cloneable[T]](dst, staged table[T]) int {
	for id, v := range staged {
		dst[id] = v.Clone()
	}
	return len(staged)
}
