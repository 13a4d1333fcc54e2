package directory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/yyds352/hospital-appointment/internal/appointment"
)

// Memory is an in-process directory of departments, doctors and patients.
type Memory struct {
	mu          sync.RWMutex
	departments map[uuid.UUID]appointment.Department
	doctors     map[uuid.UUID]appointment.Doctor
	patients    map[uuid.UUID]appointment.Patient
}

func NewMemory() *Memory {
	return &Memory{
		departments: make(map[uuid.UUID]appointment.Department),
		doctors:     make(map[uuid.UUID]appointment.Doctor),
		patients:    make(map[uuid.UUID]appointment.Patient),
	}
}

func (m *Memory) AddDepartment(d appointment.Department) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.departments[d.ID] = d
}

func (m *Memory) AddDoctor(d appointment.Doctor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doctors[d.ID] = d
}

func (m *Memory) AddPatient(p appointment.Patient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[p.ID] = p
}

func (m *Memory) GetDepartment(_ context.Context, id uuid.UUID) (*appointment.Department, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.departments[id]
	if !ok {
		return nil, appointment.ErrDepartmentNotFound
	}
	return &d, nil
}

// ListDepartments returns every department ordered by name.
func (m *Memory) ListDepartments(_ context.Context) ([]appointment.Department, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]appointment.Department, 0, len(m.departments))
	for _, d := range m.departments {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *Memory) GetDoctor(_ context.Context, id uuid.UUID) (*appointment.Doctor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, appointment.ErrDoctorNotFound
	}
	return &d, nil
}

// ListDoctorsInDepartment returns ids ordered by their string form.
func (m *Memory) ListDoctorsInDepartment(_ context.Context, departmentID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []uuid.UUID
	for id, d := range m.doctors {
		if d.DepartmentID == departmentID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (m *Memory) GetPatient(_ context.Context, id uuid.UUID) (*appointment.Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, appointment.ErrPatientNotFound
	}
	return &p, nil
}
