package timeslot

import "github.com/hackgods/telehealth-scheduling/internal/apperror"

var (
	ErrSlotNotFound    = apperror.NotFound("time slot not found")
	ErrDoctorNotFound  = apperror.Authorization("doctor not found")
	ErrNotDoctor       = apperror.Authorization("only doctors can manage time slots")
	ErrDuplicateSlot   = apperror.Validation("a time slot already exists at this start time")
	ErrStartInPast     = apperror.Validation("start time must be in the future")
	ErrStartAfterEnd   = apperror.Validation("start time must be before end time")
	ErrTooShort        = apperror.Validation("time slot must be at least 30 minutes long")
	ErrInvalidType     = apperror.Validation("time slot type must be ONLINE or PHYSICAL")
	ErrSlotBooked      = apperror.Validation("booked time slots cannot be changed")
	ErrSlotUnavailable = apperror.Validation("time slot is no longer available")
	ErrEmptyBatch      = apperror.Validation("at least one time slot is required")
)
