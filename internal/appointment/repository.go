package appointment

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/telehealth-scheduling/internal/db"
)

// Repository persists appointments. A nil db.Executor means the pool
// connection; lifecycle writes always pass the open transaction.
type Repository interface {
	Insert(ctx context.Context, q db.Executor, appt *Appointment) error

	// FindByID and FindByIDAndPatient only return appointments that are not
	// soft deleted.
	FindByID(ctx context.Context, q db.Executor, id uuid.UUID) (*Detail, error)
	FindByIDAndPatient(ctx context.Context, q db.Executor, id, patientID uuid.UUID) (*Detail, error)

	// SoftDelete persists a canceled appointment. It fails with
	// ErrAppointmentNotFound if the stored row is no longer upcoming.
	SoftDelete(ctx context.Context, q db.Executor, appt *Appointment) error

	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Detail, error)
}
