package meetinglink

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusInUse     Status = "IN_USED"
)

// MeetingLink is one reusable video call URL from the shared pool.
type MeetingLink struct {
	id        uuid.UUID
	url       string
	status    Status
	createdAt time.Time
	updatedAt time.Time
}

// New returns an available link.
func New(id uuid.UUID, url string, now time.Time) *MeetingLink {
	return &MeetingLink{
		id:        id,
		url:       url,
		status:    StatusAvailable,
		createdAt: now,
		updatedAt: now,
	}
}

func (l *MeetingLink) ID() uuid.UUID        { return l.id }
func (l *MeetingLink) URL() string          { return l.url }
func (l *MeetingLink) Status() Status       { return l.status }
func (l *MeetingLink) CreatedAt() time.Time { return l.createdAt }
func (l *MeetingLink) UpdatedAt() time.Time { return l.updatedAt }

func (l *MeetingLink) Claim(now time.Time) error {
	if l.status != StatusAvailable {
		return ErrLinkInUse
	}
	l.status = StatusInUse
	l.updatedAt = now
	return nil
}

func (l *MeetingLink) Release(now time.Time) error {
	if l.status != StatusInUse {
		return ErrLinkNotInUse
	}
	l.status = StatusAvailable
	l.updatedAt = now
	return nil
}
