package timeslot

import (
	"time"

	"github.com/google/uuid"
)

type SlotType string

const (
	TypeOnline   SlotType = "ONLINE"
	TypePhysical SlotType = "PHYSICAL"
)

// MinDuration is the shortest slot a doctor may publish.
const MinDuration = 30 * time.Minute

// ParseSlotType maps an input string to a SlotType. Empty input means ONLINE.
func ParseSlotType(raw string) (SlotType, error) {
	switch SlotType(raw) {
	case "":
		return TypeOnline, nil
	case TypeOnline, TypePhysical:
		return SlotType(raw), nil
	}
	return "", ErrInvalidType
}

// TimeSlot is one doctor published interval. State changes go through its
// methods; only this package's repository restores fields directly.
type TimeSlot struct {
	id           uuid.UUID
	doctorID     uuid.UUID
	startAt      time.Time
	endAt        time.Time
	availability bool
	slotType     SlotType
	createdAt    time.Time
	updatedAt    time.Time
	deletedAt    *time.Time
}

// New returns an available slot.
func New(id, doctorID uuid.UUID, startAt, endAt time.Time, slotType SlotType, now time.Time) *TimeSlot {
	return &TimeSlot{
		id:           id,
		doctorID:     doctorID,
		startAt:      startAt,
		endAt:        endAt,
		availability: true,
		slotType:     slotType,
		createdAt:    now,
		updatedAt:    now,
	}
}

func (s *TimeSlot) ID() uuid.UUID         { return s.id }
func (s *TimeSlot) DoctorID() uuid.UUID   { return s.doctorID }
func (s *TimeSlot) StartAt() time.Time    { return s.startAt }
func (s *TimeSlot) EndAt() time.Time      { return s.endAt }
func (s *TimeSlot) Available() bool       { return s.availability }
func (s *TimeSlot) Type() SlotType        { return s.slotType }
func (s *TimeSlot) CreatedAt() time.Time  { return s.createdAt }
func (s *TimeSlot) UpdatedAt() time.Time  { return s.updatedAt }
func (s *TimeSlot) DeletedAt() *time.Time { return s.deletedAt }

func (s *TimeSlot) OwnedBy(doctorID uuid.UUID) bool {
	return s.doctorID == doctorID
}

// Reschedule moves an unbooked slot.
func (s *TimeSlot) Reschedule(startAt, endAt time.Time, slotType SlotType, now time.Time) error {
	if !s.availability {
		return ErrSlotBooked
	}
	s.startAt = startAt
	s.endAt = endAt
	s.slotType = slotType
	s.updatedAt = now
	return nil
}

func (s *TimeSlot) MarkBooked(now time.Time) error {
	if !s.availability {
		return ErrSlotUnavailable
	}
	s.availability = false
	s.updatedAt = now
	return nil
}

func (s *TimeSlot) MarkFree(now time.Time) {
	s.availability = true
	s.updatedAt = now
}

func (s *TimeSlot) Delete(now time.Time) {
	s.deletedAt = &now
	s.updatedAt = now
}
