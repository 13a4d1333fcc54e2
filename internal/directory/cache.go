package directory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/yyds352/hospital-appointment/internal/appointment"
)

// CachedDoctors fronts a DoctorDirectory with expiring LRU caches.
// Doctor records and department rosters change rarely but are read on every
// booking, suggestion and auto-selection.
type CachedDoctors struct {
	next    appointment.DoctorDirectory
	doctors *expirable.LRU[uuid.UUID, appointment.Doctor]
	rosters *expirable.LRU[uuid.UUID, []uuid.UUID]
}

func NewCachedDoctors(next appointment.DoctorDirectory, size int, ttl time.Duration) *CachedDoctors {
	if size <= 0 {
		size = 1024
	}
	return &CachedDoctors{
		next:    next,
		doctors: expirable.NewLRU[uuid.UUID, appointment.Doctor](size, nil, ttl),
		rosters: expirable.NewLRU[uuid.UUID, []uuid.UUID](size, nil, ttl),
	}
}

// GetDoctor only caches hits; an unknown id is looked up every time.
func (c *CachedDoctors) GetDoctor(ctx context.Context, id uuid.UUID) (*appointment.Doctor, error) {
	if d, ok := c.doctors.Get(id); ok {
		return &d, nil
	}
	d, err := c.next.GetDoctor(ctx, id)
	if err != nil {
		return nil, err
	}
	c.doctors.Add(id, *d)
	return d, nil
}

func (c *CachedDoctors) ListDoctorsInDepartment(ctx context.Context, departmentID uuid.UUID) ([]uuid.UUID, error) {
	if ids, ok := c.rosters.Get(departmentID); ok {
		return append([]uuid.UUID(nil), ids...), nil
	}
	ids, err := c.next.ListDoctorsInDepartment(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	c.rosters.Add(departmentID, append([]uuid.UUID(nil), ids...))
	return ids, nil
}

// Invalidate drops a doctor and its department roster.
func (c *CachedDoctors) Invalidate(doctorID, departmentID uuid.UUID) {
	c.doctors.Remove(doctorID)
	c.rosters.Remove(departmentID)
}

// DoctorWriter stores doctor records.
type DoctorWriter interface {
	AddDoctor(ctx context.Context, d appointment.Doctor) error
}

var errReadOnly = errors.New("wrapped doctor directory does not accept writes")

// AddDoctor stores d in the wrapped directory, then invalidates d and the
// roster of its department.
func (c *CachedDoctors) AddDoctor(ctx context.Context, d appointment.Doctor) error {
	w, ok := c.next.(DoctorWriter)
	if !ok {
		return errReadOnly
	}
	if err := w.AddDoctor(ctx, d); err != nil {
		return err
	}
	c.Invalidate(d.ID, d.DepartmentID)
	return nil
}
