package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// PgRegistry stores slots in the schedule_slots table. Reserve and Release
// are single conditional UPDATEs so the row lock serializes them.
type PgRegistry struct {
	pool *pgxpool.Pool
}

func NewPgRegistry(pool *pgxpool.Pool) *PgRegistry {
	return &PgRegistry{pool: pool}
}

const slotColumns = `id, doctor_id, slot_date, period, max_capacity, available_capacity, status, created_at, updated_at`

func scanSlot(row pgx.Row) (*ScheduleSlot, error) {
	var s ScheduleSlot

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.Date,
		&s.Period,
		&s.MaxCapacity,
		&s.AvailableCapacity,
		&s.Status,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	s.Date = civilDate(s.Date)
	return &s, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (r *PgRegistry) CreateSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, period Period, maxCapacity int) (*ScheduleSlot, error) {
	if err := validateSlot(period, maxCapacity); err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO schedule_slots (id, doctor_id, slot_date, period, max_capacity, available_capacity, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5, 'ACTIVE', now(), now())
		RETURNING `+slotColumns,
		uuid.New(), doctorID, civilDate(date), period, maxCapacity)

	s, err := scanSlot(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateSlot
		}
		return nil, fmt.Errorf("insert slot: %w", err)
	}
	return s, nil
}

func (r *PgRegistry) Reserve(ctx context.Context, key SlotKey) (*ScheduleSlot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE schedule_slots
		SET available_capacity = available_capacity - 1,
		    updated_at = now()
		WHERE doctor_id = $1
		  AND slot_date = $2
		  AND period = $3
		  AND status = 'ACTIVE'
		  AND available_capacity > 0
		RETURNING `+slotColumns,
		key.DoctorID, civilDate(key.Date), key.Period)

	s, err := scanSlot(row)
	if errors.Is(err, ErrSlotNotFound) {
		return nil, r.reserveFailure(ctx, key)
	}
	if err != nil {
		return nil, fmt.Errorf("reserve slot: %w", err)
	}
	return s, nil
}

// reserveFailure explains why the conditional update matched no row.
func (r *PgRegistry) reserveFailure(ctx context.Context, key SlotKey) error {
	s, err := r.GetSlot(ctx, key)
	if err != nil {
		return err
	}
	if s.Status != SlotActive {
		return ErrSlotSuspended
	}
	return ErrSlotFull
}

func (r *PgRegistry) Release(ctx context.Context, key SlotKey) (*ScheduleSlot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE schedule_slots
		SET available_capacity = available_capacity + 1,
		    updated_at = now()
		WHERE doctor_id = $1
		  AND slot_date = $2
		  AND period = $3
		  AND available_capacity < max_capacity
		RETURNING `+slotColumns,
		key.DoctorID, civilDate(key.Date), key.Period)

	s, err := scanSlot(row)
	if errors.Is(err, ErrSlotNotFound) {
		if _, getErr := r.GetSlot(ctx, key); getErr != nil {
			return nil, getErr
		}
		return nil, ErrOverRelease
	}
	if err != nil {
		return nil, fmt.Errorf("release slot: %w", err)
	}
	return s, nil
}

func (r *PgRegistry) GetSlot(ctx context.Context, key SlotKey) (*ScheduleSlot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM schedule_slots
		WHERE doctor_id = $1 AND slot_date = $2 AND period = $3
	`, key.DoctorID, civilDate(key.Date), key.Period)
	return scanSlot(row)
}

func (r *PgRegistry) SetSlotStatus(ctx context.Context, key SlotKey, status SlotStatus) (*ScheduleSlot, error) {
	if _, err := ParseSlotStatus(string(status)); err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE schedule_slots
		SET status = $4,
		    updated_at = now()
		WHERE doctor_id = $1 AND slot_date = $2 AND period = $3
		RETURNING `+slotColumns,
		key.DoctorID, civilDate(key.Date), key.Period, status)
	return scanSlot(row)
}

func (r *PgRegistry) ListSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]ScheduleSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM schedule_slots
		WHERE doctor_id = $1
		  AND slot_date BETWEEN $2 AND $3
		ORDER BY slot_date, period DESC
	`, doctorID, civilDate(from), civilDate(to))
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var result []ScheduleSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
