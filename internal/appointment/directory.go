package appointment

import (
	"context"

	"github.com/google/uuid"
)

// Directories are read-only lookups owned outside the scheduling core.
// Lookups of unknown ids return the matching ErrXNotFound.

type DepartmentDirectory interface {
	GetDepartment(ctx context.Context, id uuid.UUID) (*Department, error)
	ListDepartments(ctx context.Context) ([]Department, error)
}

type DoctorDirectory interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListDoctorsInDepartment(ctx context.Context, departmentID uuid.UUID) ([]uuid.UUID, error)
}

type PatientDirectory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
}

// NotificationSink delivers patient-facing messages. Delivery is best effort.
type NotificationSink interface {
	Notify(ctx context.Context, appointmentID uuid.UUID, message string) error
}
