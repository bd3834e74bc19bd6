package timeslot

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/telehealth-scheduling/internal/db"
)

// DuplicateFilter narrows a start time collision check. Zero values disable
// the corresponding filter.
type DuplicateFilter struct {
	ExcludeID uuid.UUID
	Type      SlotType
}

// Repository persists time slots. Methods taking a db.Executor run on it when
// it is non-nil, so callers can include them in their own transaction.
type Repository interface {
	Insert(ctx context.Context, q db.Executor, slot *TimeSlot) error
	GetByID(ctx context.Context, q db.Executor, id uuid.UUID) (*TimeSlot, error)
	ExistsAtStart(ctx context.Context, doctorID uuid.UUID, startAt time.Time, filter DuplicateFilter) (bool, error)
	Update(ctx context.Context, q db.Executor, slot *TimeSlot) error
	SoftDelete(ctx context.Context, q db.Executor, slot *TimeSlot) error

	// SetAvailability flips availability only when it currently equals from.
	SetAvailability(ctx context.Context, q db.Executor, id uuid.UUID, from, to bool, at time.Time) (bool, error)

	ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*TimeSlot, error)
}
