package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/yyds352/hospital-appointment/internal/appointment"
	"github.com/yyds352/hospital-appointment/internal/directory"
)

var departmentNames = []string{
	"Cardiology",
	"Dermatology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Ophthalmology",
	"ENT",
	"Gastroenterology",
}

var titles = []string{"Resident", "Attending", "Associate Chief", "Chief"}

type Options struct {
	Departments          int
	DoctorsPerDepartment int
	Patients             int
	Days                 int       // slot days generated from Start
	Start                time.Time // first slot date
	Capacity             int       // max capacity per slot
	Seed                 uint64    // 0 picks a random seed
}

func (o Options) withDefaults() Options {
	if o.Departments <= 0 {
		o.Departments = 3
	}
	if o.Departments > len(departmentNames) {
		o.Departments = len(departmentNames)
	}
	if o.DoctorsPerDepartment <= 0 {
		o.DoctorsPerDepartment = 3
	}
	if o.Patients <= 0 {
		o.Patients = 50
	}
	if o.Days <= 0 {
		o.Days = 7
	}
	if o.Capacity <= 0 {
		o.Capacity = 10
	}
	if o.Start.IsZero() {
		o.Start = time.Now()
	}
	return o
}

type Slot struct {
	DoctorID    uuid.UUID
	Date        time.Time
	Period      appointment.Period
	MaxCapacity int
}

// Dataset is a generated clinic: departments, their doctors, patients and a
// morning and afternoon slot per doctor per day.
type Dataset struct {
	Departments []appointment.Department
	Doctors     []appointment.Doctor
	Patients    []appointment.Patient
	Slots       []Slot
}

func Generate(opts Options) Dataset {
	opts = opts.withDefaults()
	f := gofakeit.New(opts.Seed)

	var ds Dataset
	for i := 0; i < opts.Departments; i++ {
		dept := appointment.Department{
			ID:       uuid.New(),
			Name:     departmentNames[i],
			Location: fmt.Sprintf("Building %s, Floor %d", f.Letter(), f.Number(1, 6)),
		}
		ds.Departments = append(ds.Departments, dept)

		for j := 0; j < opts.DoctorsPerDepartment; j++ {
			ds.Doctors = append(ds.Doctors, appointment.Doctor{
				ID:           uuid.New(),
				Name:         "Dr. " + f.Name(),
				Title:        f.RandomString(titles),
				Specialty:    dept.Name,
				DepartmentID: dept.ID,
			})
		}
	}

	for i := 0; i < opts.Patients; i++ {
		ds.Patients = append(ds.Patients, appointment.Patient{
			ID:    uuid.New(),
			Name:  f.Name(),
			Phone: f.Phone(),
		})
	}

	start := time.Date(opts.Start.Year(), opts.Start.Month(), opts.Start.Day(), 0, 0, 0, 0, time.UTC)
	for _, doc := range ds.Doctors {
		for d := 0; d < opts.Days; d++ {
			date := start.AddDate(0, 0, d)
			for _, p := range []appointment.Period{appointment.PeriodMorning, appointment.PeriodAfternoon} {
				ds.Slots = append(ds.Slots, Slot{DoctorID: doc.ID, Date: date, Period: p, MaxCapacity: opts.Capacity})
			}
		}
	}
	return ds
}

// Writer persists directory records.
type Writer interface {
	AddDepartment(ctx context.Context, d appointment.Department) error
	AddDoctor(ctx context.Context, d appointment.Doctor) error
	AddPatient(ctx context.Context, p appointment.Patient) error
}

type memoryWriter struct {
	m *directory.Memory
}

// MemoryWriter adapts an in-memory directory to Writer.
func MemoryWriter(m *directory.Memory) Writer {
	return memoryWriter{m: m}
}

func (w memoryWriter) AddDepartment(_ context.Context, d appointment.Department) error {
	w.m.AddDepartment(d)
	return nil
}

func (w memoryWriter) AddDoctor(_ context.Context, d appointment.Doctor) error {
	w.m.AddDoctor(d)
	return nil
}

func (w memoryWriter) AddPatient(_ context.Context, p appointment.Patient) error {
	w.m.AddPatient(p)
	return nil
}

type Summary struct {
	Departments int
	Doctors     int
	Patients    int
	Slots       int
	Skipped     int // slots that already existed
}

// Load writes ds. Existing slots are skipped so Load can be rerun.
func Load(ctx context.Context, ds Dataset, w Writer, slots appointment.SlotRegistry) (Summary, error) {
	var sum Summary
	for _, d := range ds.Departments {
		if err := w.AddDepartment(ctx, d); err != nil {
			return sum, err
		}
		sum.Departments++
	}
	for _, d := range ds.Doctors {
		if err := w.AddDoctor(ctx, d); err != nil {
			return sum, err
		}
		sum.Doctors++
	}
	for _, p := range ds.Patients {
		if err := w.AddPatient(ctx, p); err != nil {
			return sum, err
		}
		sum.Patients++
	}
	for _, s := range ds.Slots {
		_, err := slots.CreateSlot(ctx, s.DoctorID, s.Date, s.Period, s.MaxCapacity)
		if errors.Is(err, appointment.ErrDuplicateSlot) {
			sum.Skipped++
			continue
		}
		if err != nil {
			return sum, fmt.Errorf("create slot: %w", err)
		}
		sum.Slots++
	}
	return sum, nil
}
