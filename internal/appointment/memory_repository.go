package appointment

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a Repository backed by process memory.
type MemoryRepository struct {
	mu           sync.RWMutex
	appointments map[uuid.UUID]*Appointment
	numbers      map[string]uuid.UUID
	events       []EventLog
	now          func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		appointments: make(map[uuid.UUID]*Appointment),
		numbers:      make(map[string]uuid.UUID),
		now:          time.Now,
	}
}

func (r *MemoryRepository) CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.numbers[appt.Number]; taken {
		return nil, ErrDuplicateAppointmentNumber
	}
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	now := r.now()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	appt.Reminded = false

	stored := appt
	r.appointments[appt.ID] = &stored
	r.numbers[appt.Number] = appt.ID

	return &appt, nil
}

func (r *MemoryRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

// filter returns copies of matching appointments ordered by time ascending.
func (r *MemoryRepository) filter(match func(a *Appointment) bool) []Appointment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, a := range r.appointments {
		if match(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time.Equal(out[j].Time) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].Time.Before(out[j].Time)
	})
	return out
}

func inWindow(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func hasStatus(s Status, statuses []Status) bool {
	return len(statuses) == 0 || slices.Contains(statuses, s)
}

func (r *MemoryRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	all := r.filter(func(a *Appointment) bool { return a.PatientID == patientID })
	slices.Reverse(all)

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *MemoryRepository) ListPatientAppointmentsBetween(ctx context.Context, patientID uuid.UUID, from, to time.Time, statuses ...Status) ([]Appointment, error) {
	return r.filter(func(a *Appointment) bool {
		return a.PatientID == patientID && inWindow(a.Time, from, to) && hasStatus(a.Status, statuses)
	}), nil
}

func (r *MemoryRepository) ListDoctorAppointmentsBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time, statuses ...Status) ([]Appointment, error) {
	return r.filter(func(a *Appointment) bool {
		return a.DoctorID == doctorID && inWindow(a.Time, from, to) && hasStatus(a.Status, statuses)
	}), nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = r.now()

	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) FindDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	return r.filter(func(a *Appointment) bool {
		return !a.Reminded && inWindow(a.Time, from, to) && hasStatus(a.Status, activeStatuses)
	}), nil
}

func (r *MemoryRepository) MarkReminded(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	a.Reminded = true
	a.UpdatedAt = r.now()
	return nil
}

func (r *MemoryRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = r.now()
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the event log.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.events)
}
