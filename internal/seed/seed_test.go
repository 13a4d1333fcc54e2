package seed

import (
	"context"
	"testing"
	"time"

	"github.com/yyds352/hospital-appointment/internal/appointment"
	"github.com/yyds352/hospital-appointment/internal/directory"
)

func TestGenerateShape(t *testing.T) {
	start := time.Date(2024, 6, 3, 15, 30, 0, 0, time.UTC)
	ds := Generate(Options{Departments: 2, DoctorsPerDepartment: 3, Patients: 5, Days: 2, Start: start, Capacity: 4, Seed: 42})

	if len(ds.Departments) != 2 || len(ds.Doctors) != 6 || len(ds.Patients) != 5 {
		t.Fatalf("got %d departments %d doctors %d patients", len(ds.Departments), len(ds.Doctors), len(ds.Patients))
	}
	if len(ds.Slots) != 6*2*2 {
		t.Fatalf("slots = %d, want 24", len(ds.Slots))
	}

	depts := map[string]bool{}
	for _, d := range ds.Departments {
		depts[d.ID.String()] = true
	}
	for _, doc := range ds.Doctors {
		if !depts[doc.DepartmentID.String()] {
			t.Errorf("doctor %s has unknown department", doc.Name)
		}
	}
	for _, s := range ds.Slots {
		if s.Date.Hour() != 0 || s.MaxCapacity != 4 {
			t.Errorf("slot %+v not at midnight with capacity 4", s)
		}
	}
}

func TestLoadIsRerunnable(t *testing.T) {
	ctx := context.Background()
	ds := Generate(Options{Departments: 1, DoctorsPerDepartment: 2, Patients: 3, Days: 1, Seed: 7})

	dir := directory.NewMemory()
	slots := appointment.NewMemoryRegistry()

	sum, err := Load(ctx, ds, MemoryWriter(dir), slots)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Slots != 4 || sum.Skipped != 0 {
		t.Fatalf("first load = %+v", sum)
	}

	sum, err = Load(ctx, ds, MemoryWriter(dir), slots)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Slots != 0 || sum.Skipped != 4 {
		t.Errorf("second load = %+v, want all slots skipped", sum)
	}

	ids, _ := dir.ListDoctorsInDepartment(ctx, ds.Departments[0].ID)
	if len(ids) != 2 {
		t.Errorf("doctors in department = %d", len(ids))
	}
}
