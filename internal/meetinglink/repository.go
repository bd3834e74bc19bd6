package meetinglink

import (
	"context"
	"time"

	"github.com/hackgods/telehealth-scheduling/internal/db"
)

// Repository persists the link pool. A nil db.Executor means the pool
// connection.
type Repository interface {
	// ClaimAvailable moves one AVAILABLE link to IN_USED in a single statement
	// and returns it, or ErrPoolExhausted.
	ClaimAvailable(ctx context.Context, q db.Executor, at time.Time) (*MeetingLink, error)
	GetByURL(ctx context.Context, q db.Executor, url string) (*MeetingLink, error)
	// SetStatus writes link's status only while the stored status equals from.
	SetStatus(ctx context.Context, q db.Executor, link *MeetingLink, from Status) (bool, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
	// Insert reports false when a link with the same URL already exists.
	Insert(ctx context.Context, q db.Executor, link *MeetingLink) (bool, error)
}
