package appointment

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

type Suggestions struct {
	RecommendedTimes   []time.Time
	AlternativeDoctors []DoctorSuggestion
}

type DoctorSuggestion struct {
	DoctorID       uuid.UUID
	Name           string
	Title          string
	Specialty      string
	AvailableCount int
	Congestion     Congestion
	DayLoad        int
}

type SuggestionEngine struct {
	detector *ConflictDetector
	repo     Repository
	doctors  DoctorDirectory
	slots    SlotRegistry
	rules    Rules
	now      func() time.Time
}

func NewSuggestionEngine(detector *ConflictDetector, repo Repository, doctors DoctorDirectory, slots SlotRegistry, rules Rules, now func() time.Time) *SuggestionEngine {
	if now == nil {
		now = time.Now
	}
	return &SuggestionEngine{
		detector: detector,
		repo:     repo,
		doctors:  doctors,
		slots:    slots,
		rules:    rules.withDefaults(),
		now:      now,
	}
}

// candidateOffsets lists candidate offsets nearest first, earlier before later.
func (e *SuggestionEngine) candidateOffsets() []time.Duration {
	offsets := make([]time.Duration, 0, 2*e.rules.SuggestionSteps)
	for i := 1; i <= e.rules.SuggestionSteps; i++ {
		step := time.Duration(i) * e.rules.SuggestionStep
		offsets = append(offsets, -step, step)
	}
	return offsets
}

// RecommendedTimes returns up to max times near target at which neither the
// patient nor the doctor has a conflict and the doctor's slot has capacity.
func (e *SuggestionEngine) RecommendedTimes(ctx context.Context, patientID, doctorID uuid.UUID, target time.Time, max int) ([]time.Time, error) {
	if max <= 0 {
		max = e.rules.MaxSuggestions
	}
	now := e.now()

	var out []time.Time
	for _, off := range e.candidateOffsets() {
		if len(out) >= max {
			break
		}
		candidate := target.Add(off)
		if candidate.Before(now) {
			continue
		}
		ok, err := e.freeAt(ctx, patientID, doctorID, candidate)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, candidate)
		}
	}
	return out, nil
}

func (e *SuggestionEngine) freeAt(ctx context.Context, patientID, doctorID uuid.UUID, t time.Time) (bool, error) {
	available, err := e.detector.SlotAvailable(ctx, doctorID, t)
	if err != nil || !available {
		return false, err
	}
	if patientID != uuid.Nil {
		pc, err := e.detector.PatientConflicts(ctx, patientID, t, uuid.Nil)
		if err != nil || len(pc) > 0 {
			return false, err
		}
	}
	dc, err := e.detector.DoctorConflicts(ctx, doctorID, t, uuid.Nil)
	if err != nil {
		return false, err
	}
	return len(dc) == 0, nil
}

// AlternativeDoctors lists other doctors of departmentID who could take an
// appointment at t, ordered by id. DayLoad is reported but does not rank.
func (e *SuggestionEngine) AlternativeDoctors(ctx context.Context, currentDoctorID, departmentID uuid.UUID, t time.Time, max int) ([]DoctorSuggestion, error) {
	if max <= 0 {
		max = e.rules.MaxAlternativeDoctors
	}
	key, err := e.rules.SlotKeyFor(uuid.Nil, t)
	if err != nil {
		return nil, nil
	}

	ids, err := e.doctors.ListDoctorsInDepartment(ctx, departmentID)
	if err != nil {
		return nil, wrapInfra("list department doctors", err)
	}

	var out []DoctorSuggestion
	for _, id := range ids {
		if id == currentDoctorID {
			continue
		}
		key.DoctorID = id
		slot, err := e.slots.GetSlot(ctx, key)
		if errors.Is(err, ErrSlotNotFound) {
			continue
		}
		if err != nil {
			return nil, wrapInfra("get slot", err)
		}
		if slot.Status != SlotActive || slot.AvailableCapacity <= 0 {
			continue
		}
		conflicts, err := e.detector.DoctorConflicts(ctx, id, t, uuid.Nil)
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 {
			continue
		}
		load, err := dayLoad(ctx, e.repo, e.rules, id, t)
		if err != nil {
			return nil, err
		}
		doc, err := e.doctors.GetDoctor(ctx, id)
		if err != nil {
			return nil, wrapInfra("get doctor", err)
		}
		out = append(out, DoctorSuggestion{
			DoctorID:       id,
			Name:           doc.Name,
			Title:          doc.Title,
			Specialty:      doc.Specialty,
			AvailableCount: slot.AvailableCapacity,
			Congestion:     e.rules.Congestion(slot),
			DayLoad:        load,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DoctorID.String() < out[j].DoctorID.String()
	})
	if len(out) > max {
		out = out[:max]
	}
	return out, nil
}

// Suggest combines recommended times with the doctor and alternative doctors.
func (e *SuggestionEngine) Suggest(ctx context.Context, patientID, doctorID, departmentID uuid.UUID, t time.Time) (*Suggestions, error) {
	times, err := e.RecommendedTimes(ctx, patientID, doctorID, t, 0)
	if err != nil {
		return nil, err
	}
	doctors, err := e.AlternativeDoctors(ctx, doctorID, departmentID, t, 0)
	if err != nil {
		return nil, err
	}
	return &Suggestions{RecommendedTimes: times, AlternativeDoctors: doctors}, nil
}

// dayLoad counts a doctor's non-cancelled appointments on t's local date.
func dayLoad(ctx context.Context, repo Repository, rules Rules, doctorID uuid.UUID, t time.Time) (int, error) {
	from, to := rules.DayBounds(t)
	appts, err := repo.ListDoctorAppointmentsBetween(ctx, doctorID, from, to, loadStatuses...)
	if err != nil {
		return 0, wrapInfra("count doctor appointments", err)
	}
	return len(appts), nil
}
