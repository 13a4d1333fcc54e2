package appointment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// mockDirectory implements every directory the service reads from.
type mockDirectory struct {
	departments map[uuid.UUID]*Department
	doctors     map[uuid.UUID]*Doctor
	patients    map[uuid.UUID]*Patient
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		departments: make(map[uuid.UUID]*Department),
		doctors:     make(map[uuid.UUID]*Doctor),
		patients:    make(map[uuid.UUID]*Patient),
	}
}

func (m *mockDirectory) addDepartment(name string) uuid.UUID {
	id := uuid.New()
	m.departments[id] = &Department{ID: id, Name: name}
	return id
}

func (m *mockDirectory) addDoctor(departmentID uuid.UUID, name string) uuid.UUID {
	id := uuid.New()
	m.doctors[id] = &Doctor{ID: id, Name: name, Title: "Attending", DepartmentID: departmentID}
	return id
}

func (m *mockDirectory) addPatient(name string) uuid.UUID {
	id := uuid.New()
	m.patients[id] = &Patient{ID: id, Name: name}
	return id
}

func (m *mockDirectory) GetDepartment(_ context.Context, id uuid.UUID) (*Department, error) {
	d, ok := m.departments[id]
	if !ok {
		return nil, ErrDepartmentNotFound
	}
	return d, nil
}

func (m *mockDirectory) ListDepartments(_ context.Context) ([]Department, error) {
	out := make([]Department, 0, len(m.departments))
	for _, d := range m.departments {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockDirectory) GetDoctor(_ context.Context, id uuid.UUID) (*Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return d, nil
}

func (m *mockDirectory) ListDoctorsInDepartment(_ context.Context, departmentID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id, d := range m.doctors {
		if d.DepartmentID == departmentID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (m *mockDirectory) GetPatient(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return p, nil
}

type recordingSink struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (r *recordingSink) Notify(_ context.Context, _ uuid.UUID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, message)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

// testNow is the fixed clock used across the package tests.
var testNow = time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC)

func testRules() Rules {
	r := DefaultRules()
	r.Location = time.UTC
	return r
}

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 6, day, hour, minute, 0, 0, time.UTC)
}

type fixture struct {
	svc   *Service
	repo  *MemoryRepository
	slots *MemoryRegistry
	dir   *mockDirectory
	sink  *recordingSink
	dept  uuid.UUID
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		repo:  NewMemoryRepository(),
		slots: NewMemoryRegistry(),
		dir:   newMockDirectory(),
		sink:  &recordingSink{},
	}
	f.dept = f.dir.addDepartment("Cardiology")

	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	f.svc = NewService(Dependencies{
		Repo:        f.repo,
		Slots:       f.slots,
		Departments: f.dir,
		Doctors:     f.dir,
		Patients:    f.dir,
		Notifier:    f.sink,
	}, testRules(), zerolog.Nop(), opts...)
	return f
}

func (f *fixture) slot(t *testing.T, doctorID uuid.UUID, date time.Time, period Period, max int) {
	t.Helper()
	if _, err := f.slots.CreateSlot(context.Background(), doctorID, date, period, max); err != nil {
		t.Fatalf("CreateSlot() error = %v", err)
	}
}

func (f *fixture) available(t *testing.T, doctorID uuid.UUID, date time.Time, period Period) int {
	t.Helper()
	s, err := f.slots.GetSlot(context.Background(), NewSlotKey(doctorID, date, period))
	if err != nil {
		t.Fatalf("GetSlot() error = %v", err)
	}
	return s.AvailableCapacity
}

// seedAppointment stores an appointment directly, bypassing the slot registry.
func (f *fixture) seedAppointment(t *testing.T, patientID, doctorID uuid.UUID, when time.Time, status Status) Appointment {
	t.Helper()
	a, err := f.repo.CreateAppointment(context.Background(), Appointment{
		Number:       uuid.NewString(),
		PatientID:    patientID,
		DoctorID:     doctorID,
		DepartmentID: f.dept,
		Time:         when,
		Status:       status,
	})
	if err != nil {
		t.Fatalf("seed appointment: %v", err)
	}
	return *a
}

func mustCategory(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("error = %v, want %v", err, want)
	}
}
