package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SlotRegistry owns the capacity counters of published doctor schedules.
// Reserve and Release are atomic per slot; no ordering is guaranteed
// between different slots.
type SlotRegistry interface {
	CreateSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, period Period, maxCapacity int) (*ScheduleSlot, error)
	// Reserve takes one unit of capacity from an ACTIVE slot.
	Reserve(ctx context.Context, key SlotKey) (*ScheduleSlot, error)
	// Release gives one unit of capacity back, regardless of slot status.
	Release(ctx context.Context, key SlotKey) (*ScheduleSlot, error)
	GetSlot(ctx context.Context, key SlotKey) (*ScheduleSlot, error)
	SetSlotStatus(ctx context.Context, key SlotKey, status SlotStatus) (*ScheduleSlot, error)
	// ListSlots returns a doctor's slots with from <= date <= to, ordered by date and period.
	ListSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]ScheduleSlot, error)
}

func validateSlot(period Period, maxCapacity int) error {
	if _, err := ParsePeriod(string(period)); err != nil {
		return err
	}
	if maxCapacity <= 0 {
		return ErrInvalidCapacity
	}
	return nil
}

type memorySlot struct {
	mu   sync.Mutex
	slot ScheduleSlot
}

// MemoryRegistry keeps slots in process memory, one mutex per slot.
type MemoryRegistry struct {
	mu    sync.RWMutex
	slots map[SlotKey]*memorySlot
	now   func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		slots: make(map[SlotKey]*memorySlot),
		now:   time.Now,
	}
}

func (m *MemoryRegistry) CreateSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, period Period, maxCapacity int) (*ScheduleSlot, error) {
	if err := validateSlot(period, maxCapacity); err != nil {
		return nil, err
	}
	key := NewSlotKey(doctorID, date, period)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.slots[key]; ok {
		return nil, ErrDuplicateSlot
	}
	now := m.now()
	entry := &memorySlot{slot: ScheduleSlot{
		ID:                uuid.New(),
		DoctorID:          doctorID,
		Date:              key.Date,
		Period:            period,
		MaxCapacity:       maxCapacity,
		AvailableCapacity: maxCapacity,
		Status:            SlotActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}}
	m.slots[key] = entry

	s := entry.slot
	return &s, nil
}

func (m *MemoryRegistry) entry(key SlotKey) (*memorySlot, error) {
	key = NewSlotKey(key.DoctorID, key.Date, key.Period)

	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.slots[key]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return e, nil
}

// update runs fn on the slot while holding its mutex. Changes are kept only
// when fn returns nil.
func (m *MemoryRegistry) update(key SlotKey, fn func(s *ScheduleSlot) error) (*ScheduleSlot, error) {
	e, err := m.entry(key)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.slot
	if err := fn(&next); err != nil {
		return nil, err
	}
	next.UpdatedAt = m.now()
	e.slot = next

	return &next, nil
}

func (m *MemoryRegistry) Reserve(ctx context.Context, key SlotKey) (*ScheduleSlot, error) {
	return m.update(key, func(s *ScheduleSlot) error {
		if s.Status != SlotActive {
			return ErrSlotSuspended
		}
		if s.AvailableCapacity <= 0 {
			return ErrSlotFull
		}
		s.AvailableCapacity--
		return nil
	})
}

func (m *MemoryRegistry) Release(ctx context.Context, key SlotKey) (*ScheduleSlot, error) {
	return m.update(key, func(s *ScheduleSlot) error {
		if s.AvailableCapacity >= s.MaxCapacity {
			return ErrOverRelease
		}
		s.AvailableCapacity++
		return nil
	})
}

func (m *MemoryRegistry) SetSlotStatus(ctx context.Context, key SlotKey, status SlotStatus) (*ScheduleSlot, error) {
	if _, err := ParseSlotStatus(string(status)); err != nil {
		return nil, err
	}
	return m.update(key, func(s *ScheduleSlot) error {
		s.Status = status
		return nil
	})
}

func (m *MemoryRegistry) GetSlot(ctx context.Context, key SlotKey) (*ScheduleSlot, error) {
	e, err := m.entry(key)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	s := e.slot
	e.mu.Unlock()

	return &s, nil
}

func (m *MemoryRegistry) ListSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]ScheduleSlot, error) {
	from, to = civilDate(from), civilDate(to)

	m.mu.RLock()
	var entries []*memorySlot
	for k, e := range m.slots {
		if k.DoctorID == doctorID && !k.Date.Before(from) && !k.Date.After(to) {
			entries = append(entries, e)
		}
	}
	m.mu.RUnlock()

	result := make([]ScheduleSlot, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		result = append(result, e.slot)
		e.mu.Unlock()
	}
	sortSlots(result)
	return result, nil
}

func sortSlots(slots []ScheduleSlot) {
	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].Date.Equal(slots[j].Date) {
			return slots[i].Date.Before(slots[j].Date)
		}
		return slots[i].Period == PeriodMorning && slots[j].Period != PeriodMorning
	})
}
