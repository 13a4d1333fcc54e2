package appointment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
)

func TestMemoryRegistryCreateSlot(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	doctor := uuid.New()

	slot, err := reg.CreateSlot(ctx, doctor, at(10, 0, 0), PeriodMorning, 3)
	if err != nil {
		t.Fatalf("CreateSlot() error = %v", err)
	}
	if slot.AvailableCapacity != 3 || slot.MaxCapacity != 3 {
		t.Errorf("capacity = %d/%d, want 3/3", slot.AvailableCapacity, slot.MaxCapacity)
	}
	if slot.Status != SlotActive {
		t.Errorf("status = %s, want ACTIVE", slot.Status)
	}

	// Same civil date given as a different clock time is the same key.
	_, err = reg.CreateSlot(ctx, doctor, at(10, 15, 0), PeriodMorning, 1)
	if !errors.Is(err, ErrDuplicateSlot) {
		t.Fatalf("duplicate CreateSlot() error = %v, want ErrDuplicateSlot", err)
	}
	if !errors.Is(err, ErrCapacity) {
		t.Errorf("ErrDuplicateSlot should be a capacity error")
	}

	if _, err := reg.CreateSlot(ctx, doctor, at(10, 0, 0), PeriodAfternoon, 0); !errors.Is(err, ErrInvalidCapacity) {
		t.Errorf("zero capacity error = %v, want ErrInvalidCapacity", err)
	}
	if _, err := reg.CreateSlot(ctx, doctor, at(10, 0, 0), Period("EVENING"), 2); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("bad period error = %v, want ErrInvalidPeriod", err)
	}
}

func TestMemoryRegistryReserveRelease(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	doctor := uuid.New()
	key := NewSlotKey(doctor, at(10, 0, 0), PeriodMorning)

	if _, err := reg.Reserve(ctx, key); !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("Reserve() on missing slot error = %v, want ErrSlotNotFound", err)
	}
	if _, err := reg.Release(ctx, key); !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("Release() on missing slot error = %v, want ErrSlotNotFound", err)
	}

	if _, err := reg.CreateSlot(ctx, doctor, key.Date, key.Period, 2); err != nil {
		t.Fatalf("CreateSlot() error = %v", err)
	}

	if _, err := reg.Release(ctx, key); !errors.Is(err, ErrOverRelease) {
		t.Fatalf("Release() on full capacity error = %v, want ErrOverRelease", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := reg.Reserve(ctx, key); err != nil {
			t.Fatalf("Reserve() #%d error = %v", i+1, err)
		}
	}
	if _, err := reg.Reserve(ctx, key); !errors.Is(err, ErrSlotFull) {
		t.Fatalf("Reserve() on full slot error = %v, want ErrSlotFull", err)
	}

	s, err := reg.Release(ctx, key)
	if err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if s.AvailableCapacity != 1 {
		t.Errorf("available = %d, want 1", s.AvailableCapacity)
	}
}

func TestMemoryRegistrySuspend(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	doctor := uuid.New()
	key := NewSlotKey(doctor, at(10, 0, 0), PeriodAfternoon)

	if _, err := reg.CreateSlot(ctx, doctor, key.Date, key.Period, 2); err != nil {
		t.Fatalf("CreateSlot() error = %v", err)
	}
	if _, err := reg.Reserve(ctx, key); err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if _, err := reg.SetSlotStatus(ctx, key, SlotSuspended); err != nil {
		t.Fatalf("SetSlotStatus() error = %v", err)
	}

	if _, err := reg.Reserve(ctx, key); !errors.Is(err, ErrSlotSuspended) {
		t.Fatalf("Reserve() on suspended slot error = %v, want ErrSlotSuspended", err)
	}
	// Cancellations still return capacity to a suspended slot.
	if _, err := reg.Release(ctx, key); err != nil {
		t.Fatalf("Release() on suspended slot error = %v", err)
	}

	if _, err := reg.SetSlotStatus(ctx, key, SlotActive); err != nil {
		t.Fatalf("SetSlotStatus() error = %v", err)
	}
	if _, err := reg.Reserve(ctx, key); err != nil {
		t.Fatalf("Reserve() after resume error = %v", err)
	}
	if _, err := reg.SetSlotStatus(ctx, key, SlotStatus("DELETED")); !errors.Is(err, ErrInvalidSlotStatus) {
		t.Errorf("SetSlotStatus(bad) error = %v, want ErrInvalidSlotStatus", err)
	}
}

func TestMemoryRegistryConcurrentReserve(t *testing.T) {
	for _, n := range []int{2, 16, 128} {
		ctx := context.Background()
		reg := NewMemoryRegistry()
		doctor := uuid.New()
		key := NewSlotKey(doctor, at(10, 0, 0), PeriodMorning)
		if _, err := reg.CreateSlot(ctx, doctor, key.Date, key.Period, 1); err != nil {
			t.Fatalf("CreateSlot() error = %v", err)
		}

		var wg sync.WaitGroup
		var ok, full, other int64
		start := make(chan struct{})
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := reg.Reserve(ctx, key)
				switch {
				case err == nil:
					atomic.AddInt64(&ok, 1)
				case errors.Is(err, ErrSlotFull):
					atomic.AddInt64(&full, 1)
				default:
					atomic.AddInt64(&other, 1)
				}
			}()
		}
		close(start)
		wg.Wait()

		if ok != 1 || full != int64(n-1) || other != 0 {
			t.Errorf("n=%d: success=%d full=%d other=%d, want 1/%d/0", n, ok, full, other, n-1)
		}
	}
}

func TestMemoryRegistryConcurrentReserveRelease(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	doctor := uuid.New()
	key := NewSlotKey(doctor, at(10, 0, 0), PeriodMorning)
	if _, err := reg.CreateSlot(ctx, doctor, key.Date, key.Period, 5); err != nil {
		t.Fatalf("CreateSlot() error = %v", err)
	}

	var wg sync.WaitGroup
	var held int64
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := reg.Reserve(ctx, key); err != nil {
					continue
				}
				atomic.AddInt64(&held, 1)
				if j%2 == 0 {
					if _, err := reg.Release(ctx, key); err != nil {
						t.Errorf("Release() error = %v", err)
						return
					}
					atomic.AddInt64(&held, -1)
				}
			}
		}()
	}
	wg.Wait()

	s, err := reg.GetSlot(ctx, key)
	if err != nil {
		t.Fatalf("GetSlot() error = %v", err)
	}
	if s.AvailableCapacity < 0 || s.AvailableCapacity > s.MaxCapacity {
		t.Fatalf("available = %d out of [0, %d]", s.AvailableCapacity, s.MaxCapacity)
	}
	if got := int64(s.Booked()); got != held {
		t.Errorf("booked = %d, want %d held reservations", got, held)
	}
}

func TestMemoryRegistryListSlots(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	doctor := uuid.New()

	for _, day := range []int{12, 10, 11} {
		for _, p := range []Period{PeriodAfternoon, PeriodMorning} {
			if _, err := reg.CreateSlot(ctx, doctor, at(day, 0, 0), p, 1); err != nil {
				t.Fatalf("CreateSlot() error = %v", err)
			}
		}
	}
	if _, err := reg.CreateSlot(ctx, uuid.New(), at(10, 0, 0), PeriodMorning, 1); err != nil {
		t.Fatalf("CreateSlot() error = %v", err)
	}

	slots, err := reg.ListSlots(ctx, doctor, at(10, 0, 0), at(11, 0, 0))
	if err != nil {
		t.Fatalf("ListSlots() error = %v", err)
	}
	if len(slots) != 4 {
		t.Fatalf("len = %d, want 4", len(slots))
	}
	if slots[0].Date.Day() != 10 || slots[0].Period != PeriodMorning || slots[1].Period != PeriodAfternoon {
		t.Errorf("unexpected order: %+v", slots)
	}
	if slots[3].Date.Day() != 11 {
		t.Errorf("last slot day = %d, want 11", slots[3].Date.Day())
	}
}
