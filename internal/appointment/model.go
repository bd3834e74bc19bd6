package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusUpcoming        Status = "UPCOMING"
	StatusPatientCanceled Status = "PATIENT_CANCELED"
	// StatusCompleted is written by processes outside this service.
	StatusCompleted Status = "COMPLETED"
)

// Appointment reserves one time slot and one meeting link for a patient.
type Appointment struct {
	id             uuid.UUID
	patientID      uuid.UUID
	timeSlotID     uuid.UUID
	meetingLinkURL string
	status         Status
	createdAt      time.Time
	updatedAt      time.Time
	deletedAt      *time.Time
}

// New returns an upcoming appointment.
func New(id, patientID, timeSlotID uuid.UUID, meetingLinkURL string, now time.Time) *Appointment {
	return &Appointment{
		id:             id,
		patientID:      patientID,
		timeSlotID:     timeSlotID,
		meetingLinkURL: meetingLinkURL,
		status:         StatusUpcoming,
		createdAt:      now,
		updatedAt:      now,
	}
}

func (a *Appointment) ID() uuid.UUID          { return a.id }
func (a *Appointment) PatientID() uuid.UUID   { return a.patientID }
func (a *Appointment) TimeSlotID() uuid.UUID  { return a.timeSlotID }
func (a *Appointment) MeetingLinkURL() string { return a.meetingLinkURL }
func (a *Appointment) Status() Status         { return a.status }
func (a *Appointment) CreatedAt() time.Time   { return a.createdAt }
func (a *Appointment) UpdatedAt() time.Time   { return a.updatedAt }
func (a *Appointment) DeletedAt() *time.Time  { return a.deletedAt }

// Cancel marks an upcoming appointment as canceled by the patient and soft
// deletes it.
func (a *Appointment) Cancel(now time.Time) error {
	if a.status != StatusUpcoming || a.deletedAt != nil {
		return ErrNotUpcoming
	}
	a.status = StatusPatientCanceled
	a.deletedAt = &now
	a.updatedAt = now
	return nil
}

// Detail is an appointment together with the slot it occupies.
type Detail struct {
	*Appointment
	StartAt  time.Time
	EndAt    time.Time
	DoctorID uuid.UUID
}

// ReminderJobKey names the scheduled reminder of an appointment.
func ReminderJobKey(appointmentID uuid.UUID) string {
	return appointmentID.String() + "_notification"
}
