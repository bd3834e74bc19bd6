package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/telehealth-scheduling/internal/appointment"
	"github.com/hackgods/telehealth-scheduling/internal/timeslot"
)

type TimeSlotRequest struct {
	StartAt time.Time `json:"startAt" validate:"required"`
	EndAt   time.Time `json:"endAt" validate:"required"`
	Type    string    `json:"type" validate:"omitempty,oneof=ONLINE PHYSICAL"`
}

type CreateTimeSlotsRequest struct {
	Slots []TimeSlotRequest `json:"slots" validate:"required,min=1,max=100,dive"`
}

type BookAppointmentRequest struct {
	TimeSlotID string `json:"timeSlotId" validate:"required,uuid"`
}

type TimeSlotResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctorId"`
	StartAt   time.Time `json:"startAt"`
	EndAt     time.Time `json:"endAt"`
	Available bool      `json:"availability"`
	Type      string    `json:"type"`
}

func newTimeSlotResponse(s *timeslot.TimeSlot) TimeSlotResponse {
	return TimeSlotResponse{
		ID:        s.ID(),
		DoctorID:  s.DoctorID(),
		StartAt:   s.StartAt(),
		EndAt:     s.EndAt(),
		Available: s.Available(),
		Type:      string(s.Type()),
	}
}

func newTimeSlotResponses(slots []*timeslot.TimeSlot) []TimeSlotResponse {
	out := make([]TimeSlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, newTimeSlotResponse(s))
	}
	return out
}

type AppointmentResponse struct {
	ID             uuid.UUID `json:"id"`
	TimeSlotID     uuid.UUID `json:"timeSlotId"`
	DoctorID       uuid.UUID `json:"doctorId"`
	StartAt        time.Time `json:"startAt"`
	EndAt          time.Time `json:"endAt"`
	MeetingLinkURL string    `json:"meetingLinkUrl"`
	Status         string    `json:"status"`
}

func newAppointmentResponse(d appointment.Detail) AppointmentResponse {
	return AppointmentResponse{
		ID:             d.ID(),
		TimeSlotID:     d.TimeSlotID(),
		DoctorID:       d.DoctorID,
		StartAt:        d.StartAt,
		EndAt:          d.EndAt,
		MeetingLinkURL: d.MeetingLinkURL(),
		Status:         string(d.Status()),
	}
}

// Envelope wraps successful responses. Warning is set when the operation
// succeeded but a follow-up action such as a notification failed.
type Envelope struct {
	Data    any    `json:"data"`
	Warning string `json:"warning,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
