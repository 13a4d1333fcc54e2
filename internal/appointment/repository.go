package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all appointment storage needed by the service.
type Repository interface {
	// CreateAppointment returns ErrDuplicateAppointmentNumber when the number is taken.
	CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// For conflict checks and load ranking. The window is [from, to).
	ListPatientAppointmentsBetween(ctx context.Context, patientID uuid.UUID, from, to time.Time, statuses ...Status) ([]Appointment, error)
	ListDoctorAppointmentsBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time, statuses ...Status) ([]Appointment, error)

	// UpdateAppointmentStatus moves id from one status to another and returns
	// ErrAppointmentNotFound when no row is currently in status from.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// Reminders
	FindDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error)
	MarkReminded(ctx context.Context, id uuid.UUID) error

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
