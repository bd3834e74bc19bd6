package appointment

import "github.com/hackgods/telehealth-scheduling/internal/apperror"

var (
	ErrNotPatient          = apperror.Authorization("only patients can manage appointments")
	ErrPatientNotFound     = apperror.Authorization("patient not found")
	ErrDoctorNotFound      = apperror.Authorization("doctor not found")
	ErrSlotNotFound        = apperror.Authorization("time slot not found")
	ErrBookTooLate         = apperror.Validation("must book at least 24 hours in advance")
	ErrOutsideBooking      = apperror.Validation("can only book time slots in the current or next month")
	ErrSlotBeingBooked     = apperror.Validation("time slot is currently being booked, please retry")
	ErrCancelTooLate       = apperror.Validation("cannot cancel within 24 hours of the appointment")
	ErrNotUpcoming         = apperror.Validation("only upcoming appointments can be canceled")
	ErrAppointmentNotFound = apperror.NotFound("appointment not found")
)
