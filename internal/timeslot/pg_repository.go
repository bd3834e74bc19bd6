package timeslot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/telehealth-scheduling/internal/db"
)

const slotColumns = `id, doctor_id, start_at, end_at, availability, type, created_at, updated_at, deleted_at`

type PgRepository struct {
	pool db.Executor
}

func NewPgRepository(pool db.Executor) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) exec(q db.Executor) db.Executor {
	if q == nil {
		return r.pool
	}
	return q
}

func scanSlot(row pgx.Row) (*TimeSlot, error) {
	var s TimeSlot

	err := row.Scan(
		&s.id,
		&s.doctorID,
		&s.startAt,
		&s.endAt,
		&s.availability,
		&s.slotType,
		&s.createdAt,
		&s.updatedAt,
		&s.deletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

func (r *PgRepository) Insert(ctx context.Context, q db.Executor, slot *TimeSlot) error {
	_, err := r.exec(q).Exec(ctx, `
		INSERT INTO time_slots (id, doctor_id, start_at, end_at, availability, type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, slot.id, slot.doctorID, slot.startAt, slot.endAt, slot.availability, slot.slotType, slot.createdAt, slot.updatedAt)
	if err != nil {
		return fmt.Errorf("insert time slot: %w", err)
	}
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, q db.Executor, id uuid.UUID) (*TimeSlot, error) {
	row := r.exec(q).QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM time_slots
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ExistsAtStart(ctx context.Context, doctorID uuid.UUID, startAt time.Time, filter DuplicateFilter) (bool, error) {
	var slotType *string
	if filter.Type != "" {
		t := string(filter.Type)
		slotType = &t
	}

	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM time_slots
			WHERE doctor_id = $1
			  AND start_at = $2
			  AND deleted_at IS NULL
			  AND id <> $3
			  AND ($4::text IS NULL OR type = $4)
		)
	`, doctorID, startAt, filter.ExcludeID, slotType).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check duplicate time slot: %w", err)
	}
	return exists, nil
}

func (r *PgRepository) Update(ctx context.Context, q db.Executor, slot *TimeSlot) error {
	tag, err := r.exec(q).Exec(ctx, `
		UPDATE time_slots
		SET start_at = $2,
		    end_at = $3,
		    type = $4,
		    updated_at = $5
		WHERE id = $1
		  AND deleted_at IS NULL
		  AND availability
	`, slot.id, slot.startAt, slot.endAt, slot.slotType, slot.updatedAt)
	if err != nil {
		return fmt.Errorf("update time slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotUnavailable
	}
	return nil
}

func (r *PgRepository) SoftDelete(ctx context.Context, q db.Executor, slot *TimeSlot) error {
	tag, err := r.exec(q).Exec(ctx, `
		UPDATE time_slots
		SET deleted_at = $2,
		    updated_at = $2
		WHERE id = $1
		  AND deleted_at IS NULL
		  AND availability
	`, slot.id, slot.deletedAt)
	if err != nil {
		return fmt.Errorf("delete time slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotUnavailable
	}
	return nil
}

func (r *PgRepository) SetAvailability(ctx context.Context, q db.Executor, id uuid.UUID, from, to bool, at time.Time) (bool, error) {
	tag, err := r.exec(q).Exec(ctx, `
		UPDATE time_slots
		SET availability = $3,
		    updated_at = $4
		WHERE id = $1
		  AND availability = $2
		  AND deleted_at IS NULL
	`, id, from, to, at)
	if err != nil {
		return false, fmt.Errorf("set time slot availability: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*TimeSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM time_slots
		WHERE doctor_id = $1
		  AND deleted_at IS NULL
		  AND start_at >= $2
		  AND start_at < $3
		ORDER BY start_at
	`, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list time slots: %w", err)
	}
	defer rows.Close()

	var result []*TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
