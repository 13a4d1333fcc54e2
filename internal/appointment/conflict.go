package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ConflictType string

const (
	PatientTimeConflict ConflictType = "PATIENT_TIME_CONFLICT"
	DoctorTimeConflict  ConflictType = "DOCTOR_TIME_CONFLICT"
)

type Conflict struct {
	Type              ConflictType
	AppointmentID     uuid.UUID
	AppointmentNumber string
	Time              time.Time
	Gap               time.Duration
	Severity          ConflictLevel
	Message           string
}

// ConflictAnalysis is advisory. A non-NONE risk never blocks a booking.
type ConflictAnalysis struct {
	PatientConflicts   []Conflict
	DoctorConflicts    []Conflict
	WithinWorkingHours bool
	SlotAvailable      bool
	Score              int
	Risk               ConflictLevel
	Suggestions        *Suggestions
}

func (a *ConflictAnalysis) HasConflicts() bool {
	return len(a.PatientConflicts) > 0 || len(a.DoctorConflicts) > 0
}

type ConflictDetector struct {
	repo  Repository
	slots SlotRegistry
	rules Rules
}

func NewConflictDetector(repo Repository, slots SlotRegistry, rules Rules) *ConflictDetector {
	return &ConflictDetector{repo: repo, slots: slots, rules: rules.withDefaults()}
}

// Analyze scores booking patientID with doctorID at t against the active
// appointments of both, ignoring exclude.
func (d *ConflictDetector) Analyze(ctx context.Context, patientID, doctorID uuid.UUID, t time.Time, exclude uuid.UUID) (*ConflictAnalysis, error) {
	available, inHours, err := d.slotAvailable(ctx, doctorID, t, false)
	if err != nil {
		return nil, err
	}
	return d.analyze(ctx, patientID, doctorID, t, exclude, available, inHours)
}

// AnalyzeExisting re-scores a stored appointment. Its own reservation
// counts as available capacity.
func (d *ConflictDetector) AnalyzeExisting(ctx context.Context, appt *Appointment) (*ConflictAnalysis, error) {
	holds := appt.Status == StatusPending || appt.Status == StatusConfirmed
	available, inHours, err := d.slotAvailable(ctx, appt.DoctorID, appt.Time, holds)
	if err != nil {
		return nil, err
	}
	return d.analyze(ctx, appt.PatientID, appt.DoctorID, appt.Time, appt.ID, available, inHours)
}

func (d *ConflictDetector) analyze(ctx context.Context, patientID, doctorID uuid.UUID, t time.Time, exclude uuid.UUID, available, inHours bool) (*ConflictAnalysis, error) {
	patient, err := d.PatientConflicts(ctx, patientID, t, exclude)
	if err != nil {
		return nil, err
	}
	doctor, err := d.DoctorConflicts(ctx, doctorID, t, exclude)
	if err != nil {
		return nil, err
	}

	score := d.rules.PatientConflictWeight*len(patient) + d.rules.DoctorConflictWeight*len(doctor)
	if !available {
		score += d.rules.SlotUnavailableWeight
	}

	return &ConflictAnalysis{
		PatientConflicts:   patient,
		DoctorConflicts:    doctor,
		WithinWorkingHours: inHours,
		SlotAvailable:      available,
		Score:              score,
		Risk:               d.rules.Risk(score),
	}, nil
}

func (d *ConflictDetector) PatientConflicts(ctx context.Context, patientID uuid.UUID, t time.Time, exclude uuid.UUID) ([]Conflict, error) {
	from, to := d.rules.DayBounds(t)
	appts, err := d.repo.ListPatientAppointmentsBetween(ctx, patientID, from, to, activeStatuses...)
	if err != nil {
		return nil, wrapInfra("list patient appointments", err)
	}
	return d.collect(appts, t, exclude, d.rules.PatientGap, PatientTimeConflict), nil
}

func (d *ConflictDetector) DoctorConflicts(ctx context.Context, doctorID uuid.UUID, t time.Time, exclude uuid.UUID) ([]Conflict, error) {
	from, to := d.rules.DayBounds(t)
	appts, err := d.repo.ListDoctorAppointmentsBetween(ctx, doctorID, from, to, activeStatuses...)
	if err != nil {
		return nil, wrapInfra("list doctor appointments", err)
	}
	return d.collect(appts, t, exclude, d.rules.DoctorGap, DoctorTimeConflict), nil
}

func (d *ConflictDetector) collect(appts []Appointment, t time.Time, exclude uuid.UUID, limit time.Duration, kind ConflictType) []Conflict {
	var out []Conflict
	for _, a := range appts {
		if a.ID == exclude {
			continue
		}
		gap := absDuration(t.Sub(a.Time))
		if gap >= limit {
			continue
		}
		out = append(out, Conflict{
			Type:              kind,
			AppointmentID:     a.ID,
			AppointmentNumber: a.Number,
			Time:              a.Time,
			Gap:               gap,
			Severity:          ConflictHigh,
			Message:           d.conflictMessage(kind, a, gap),
		})
	}
	return out
}

func (d *ConflictDetector) conflictMessage(kind ConflictType, a Appointment, gap time.Duration) string {
	who := "patient"
	if kind == DoctorTimeConflict {
		who = "doctor"
	}
	return fmt.Sprintf("%s already has appointment %s at %s, %d minutes apart",
		who, a.Number, a.Time.In(d.rules.Location).Format("15:04"), int(gap.Minutes()))
}

// SlotAvailable reports whether t falls in working hours and the doctor's
// slot for it is ACTIVE with free capacity.
func (d *ConflictDetector) SlotAvailable(ctx context.Context, doctorID uuid.UUID, t time.Time) (bool, error) {
	ok, _, err := d.slotAvailable(ctx, doctorID, t, false)
	return ok, err
}

func (d *ConflictDetector) slotAvailable(ctx context.Context, doctorID uuid.UUID, t time.Time, holdsReservation bool) (available, inHours bool, err error) {
	key, err := d.rules.SlotKeyFor(doctorID, t)
	if err != nil {
		return false, false, nil
	}
	slot, err := d.slots.GetSlot(ctx, key)
	if errors.Is(err, ErrSlotNotFound) {
		return false, true, nil
	}
	if err != nil {
		return false, true, wrapInfra("get slot", err)
	}
	if slot.Status != SlotActive {
		return false, true, nil
	}
	return holdsReservation || slot.AvailableCapacity > 0, true, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
