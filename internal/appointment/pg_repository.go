package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/telehealth-scheduling/internal/db"
)

const detailSelect = `
	SELECT a.id, a.patient_id, a.time_slot_id, a.meeting_link_url, a.status,
	       a.created_at, a.updated_at, a.deleted_at,
	       s.start_at, s.end_at, s.doctor_id
	FROM appointments a
	JOIN time_slots s ON s.id = a.time_slot_id
`

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

func scanDetail(row pgx.Row) (*Detail, error) {
	var (
		a Appointment
		d Detail
	)

	err := row.Scan(
		&a.id,
		&a.patientID,
		&a.timeSlotID,
		&a.meetingLinkURL,
		&a.status,
		&a.createdAt,
		&a.updatedAt,
		&a.deletedAt,
		&d.StartAt,
		&d.EndAt,
		&d.DoctorID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	d.Appointment = &a
	return &d, nil
}

func (r *PgRepository) Insert(ctx context.Context, q db.Executor, appt *Appointment) error {
	_, err := r.exec(q).Exec(ctx, `
		INSERT INTO appointments (id, patient_id, time_slot_id, meeting_link_url, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, appt.id, appt.patientID, appt.timeSlotID, appt.meetingLinkURL, appt.status, appt.createdAt, appt.updatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) FindByID(ctx context.Context, q db.Executor, id uuid.UUID) (*Detail, error) {
	row := r.exec(q).QueryRow(ctx, detailSelect+`
		WHERE a.id = $1
		  AND a.deleted_at IS NULL
	`, id)
	return scanDetail(row)
}

func (r *PgRepository) FindByIDAndPatient(ctx context.Context, q db.Executor, id, patientID uuid.UUID) (*Detail, error) {
	row := r.exec(q).QueryRow(ctx, detailSelect+`
		WHERE a.id = $1
		  AND a.patient_id = $2
		  AND a.deleted_at IS NULL
	`, id, patientID)
	return scanDetail(row)
}

func (r *PgRepository) SoftDelete(ctx context.Context, q db.Executor, appt *Appointment) error {
	tag, err := r.exec(q).Exec(ctx, `
		UPDATE appointments
		SET status = $2,
		    deleted_at = $3,
		    updated_at = $4
		WHERE id = $1
		  AND status = $5
		  AND deleted_at IS NULL
	`, appt.id, appt.status, appt.deletedAt, appt.updatedAt, StatusUpcoming)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Detail, error) {
	rows, err := r.pool.Query(ctx, detailSelect+`
		WHERE a.patient_id = $1
		  AND a.deleted_at IS NULL
		ORDER BY s.start_at
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	defer rows.Close()

	var result []Detail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
