package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yyds352/hospital-appointment/internal/appointment"
)

// Postgres reads the directory tables created by the init migration.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) GetDepartment(ctx context.Context, id uuid.UUID) (*appointment.Department, error) {
	var d appointment.Department
	err := p.pool.QueryRow(ctx, `
		SELECT id, name, location
		FROM departments
		WHERE id = $1
	`, id).Scan(&d.ID, &d.Name, &d.Location)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, appointment.ErrDepartmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get department: %w", err)
	}
	return &d, nil
}

func (p *Postgres) ListDepartments(ctx context.Context) ([]appointment.Department, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, location
		FROM departments
		ORDER BY name, id::text
	`)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	depts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (appointment.Department, error) {
		var d appointment.Department
		err := row.Scan(&d.ID, &d.Name, &d.Location)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return depts, nil
}

func (p *Postgres) GetDoctor(ctx context.Context, id uuid.UUID) (*appointment.Doctor, error) {
	var d appointment.Doctor
	err := p.pool.QueryRow(ctx, `
		SELECT id, name, title, specialty, department_id
		FROM doctors
		WHERE id = $1
	`, id).Scan(&d.ID, &d.Name, &d.Title, &d.Specialty, &d.DepartmentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, appointment.ErrDoctorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	return &d, nil
}

func (p *Postgres) ListDoctorsInDepartment(ctx context.Context, departmentID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id
		FROM doctors
		WHERE department_id = $1
		ORDER BY id::text
	`, departmentID)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return ids, nil
}

func (p *Postgres) GetPatient(ctx context.Context, id uuid.UUID) (*appointment.Patient, error) {
	var pt appointment.Patient
	err := p.pool.QueryRow(ctx, `
		SELECT id, name, phone
		FROM patients
		WHERE id = $1
	`, id).Scan(&pt.ID, &pt.Name, &pt.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, appointment.ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return &pt, nil
}

func (p *Postgres) AddDepartment(ctx context.Context, d appointment.Department) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO departments (id, name, location)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, d.ID, d.Name, d.Location)
	if err != nil {
		return fmt.Errorf("insert department: %w", err)
	}
	return nil
}

func (p *Postgres) AddDoctor(ctx context.Context, d appointment.Doctor) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO doctors (id, name, title, specialty, department_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, d.ID, d.Name, d.Title, d.Specialty, d.DepartmentID)
	if err != nil {
		return fmt.Errorf("insert doctor: %w", err)
	}
	return nil
}

func (p *Postgres) AddPatient(ctx context.Context, pt appointment.Patient) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO patients (id, name, phone)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, pt.ID, pt.Name, pt.Phone)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}
