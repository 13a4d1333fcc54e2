package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yyds352/hospital-appointment/internal/appointment"
)

type countingDoctors struct {
	*Memory
	gets  int
	lists int
}

func (c *countingDoctors) GetDoctor(ctx context.Context, id uuid.UUID) (*appointment.Doctor, error) {
	c.gets++
	return c.Memory.GetDoctor(ctx, id)
}

func (c *countingDoctors) ListDoctorsInDepartment(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	c.lists++
	return c.Memory.ListDoctorsInDepartment(ctx, id)
}

func TestCachedDoctorsHitsCache(t *testing.T) {
	ctx := context.Background()
	backend := &countingDoctors{Memory: NewMemory()}
	dept := uuid.New()
	doc := appointment.Doctor{ID: uuid.New(), Name: "Dr. Li", DepartmentID: dept}
	backend.AddDoctor(doc)

	c := NewCachedDoctors(backend, 16, time.Minute)

	for i := 0; i < 3; i++ {
		got, err := c.GetDoctor(ctx, doc.ID)
		if err != nil || got.ID != doc.ID {
			t.Fatalf("GetDoctor = %v, %v", got, err)
		}
		ids, err := c.ListDoctorsInDepartment(ctx, dept)
		if err != nil || len(ids) != 1 {
			t.Fatalf("ListDoctorsInDepartment = %v, %v", ids, err)
		}
	}
	if backend.gets != 1 || backend.lists != 1 {
		t.Errorf("backend gets=%d lists=%d, want 1 each", backend.gets, backend.lists)
	}

	c.Invalidate(doc.ID, dept)
	if _, err := c.GetDoctor(ctx, doc.ID); err != nil {
		t.Fatal(err)
	}
	if backend.gets != 2 {
		t.Errorf("gets after invalidate = %d, want 2", backend.gets)
	}
}

func TestCachedDoctorsDoesNotCacheMisses(t *testing.T) {
	ctx := context.Background()
	backend := &countingDoctors{Memory: NewMemory()}
	c := NewCachedDoctors(backend, 16, time.Minute)

	id := uuid.New()
	for i := 0; i < 2; i++ {
		if _, err := c.GetDoctor(ctx, id); !errors.Is(err, appointment.ErrDoctorNotFound) {
			t.Fatalf("err = %v", err)
		}
	}
	if backend.gets != 2 {
		t.Errorf("gets = %d, want 2", backend.gets)
	}

	backend.AddDoctor(appointment.Doctor{ID: id})
	if _, err := c.GetDoctor(ctx, id); err != nil {
		t.Errorf("doctor added after a miss should be found: %v", err)
	}
}

// writableDoctors accepts doctor writes like the Postgres directory does.
type writableDoctors struct {
	countingDoctors
}

func (w *writableDoctors) AddDoctor(_ context.Context, d appointment.Doctor) error {
	w.Memory.AddDoctor(d)
	return nil
}

func TestCachedDoctorsAddDoctorRefreshesRoster(t *testing.T) {
	ctx := context.Background()
	backend := &writableDoctors{countingDoctors{Memory: NewMemory()}}
	dept := uuid.New()
	first := appointment.Doctor{ID: uuid.New(), Name: "Dr. Li", Title: "Resident", DepartmentID: dept}
	c := NewCachedDoctors(backend, 16, time.Minute)

	if err := c.AddDoctor(ctx, first); err != nil {
		t.Fatalf("AddDoctor() error = %v", err)
	}
	if ids, _ := c.ListDoctorsInDepartment(ctx, dept); len(ids) != 1 {
		t.Fatalf("roster = %v, want 1 doctor", ids)
	}
	if _, err := c.GetDoctor(ctx, first.ID); err != nil {
		t.Fatal(err)
	}

	second := appointment.Doctor{ID: uuid.New(), Name: "Dr. Wu", DepartmentID: dept}
	if err := c.AddDoctor(ctx, second); err != nil {
		t.Fatalf("AddDoctor() error = %v", err)
	}
	if ids, _ := c.ListDoctorsInDepartment(ctx, dept); len(ids) != 2 {
		t.Errorf("roster after add = %v, want 2 doctors", ids)
	}

	first.Title = "Chief"
	if err := c.AddDoctor(ctx, first); err != nil {
		t.Fatalf("AddDoctor() error = %v", err)
	}
	got, err := c.GetDoctor(ctx, first.ID)
	if err != nil || got.Title != "Chief" {
		t.Errorf("GetDoctor after update = %+v, %v", got, err)
	}
}

func TestCachedDoctorsAddDoctorReadOnlyBackend(t *testing.T) {
	c := NewCachedDoctors(&countingDoctors{Memory: NewMemory()}, 16, time.Minute)
	if err := c.AddDoctor(context.Background(), appointment.Doctor{ID: uuid.New()}); !errors.Is(err, errReadOnly) {
		t.Errorf("AddDoctor() error = %v, want errReadOnly", err)
	}
}
