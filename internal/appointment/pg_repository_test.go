package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var detailColumns = []string{
	"id", "patient_id", "time_slot_id", "meeting_link_url", "status",
	"created_at", "updated_at", "deleted_at", "start_at", "end_at", "doctor_id",
}

func TestPgFindByIDAndPatient(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewPgRepository(mock)

	id, patientID, slotID, doctorID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	created := time.Date(2023, 6, 18, 9, 0, 0, 0, time.UTC)
	start := time.Date(2023, 6, 28, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`JOIN time_slots s ON s.id = a.time_slot_id\s+WHERE a.id = \$1\s+AND a.patient_id = \$2`).
		WithArgs(id, patientID).
		WillReturnRows(pgxmock.NewRows(detailColumns).AddRow(
			id, patientID, slotID, "https://meet.example.com/1", StatusUpcoming,
			created, created, (*time.Time)(nil), start, start.Add(30*time.Minute), doctorID,
		))

	detail, err := repo.FindByIDAndPatient(context.Background(), nil, id, patientID)
	require.NoError(t, err)
	assert.Equal(t, slotID, detail.TimeSlotID())
	assert.Equal(t, doctorID, detail.DoctorID)
	assert.Equal(t, start, detail.StartAt)
	assert.Equal(t, StatusUpcoming, detail.Status())

	mock.ExpectQuery(`WHERE a.id = \$1`).
		WithArgs(id, patientID).
		WillReturnRows(pgxmock.NewRows(detailColumns))

	_, err = repo.FindByIDAndPatient(context.Background(), nil, id, patientID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgInsertAndSoftDeleteInTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewPgRepository(mock)
	ctx := context.Background()

	now := time.Date(2023, 6, 18, 9, 0, 0, 0, time.UTC)
	appt := New(uuid.New(), uuid.New(), uuid.New(), "https://meet.example.com/1", now)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO appointments`).
		WithArgs(appt.ID(), appt.PatientID(), appt.TimeSlotID(), appt.MeetingLinkURL(), StatusUpcoming, now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE appointments`).
		WithArgs(appt.ID(), StatusPatientCanceled, pgxmock.AnyArg(), now.Add(time.Hour), StatusUpcoming).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE appointments`).
		WithArgs(appt.ID(), StatusPatientCanceled, pgxmock.AnyArg(), now.Add(time.Hour), StatusUpcoming).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	tx, err := mock.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.Insert(ctx, tx, appt))
	require.NoError(t, appt.Cancel(now.Add(time.Hour)))
	require.NoError(t, repo.SoftDelete(ctx, tx, appt))
	assert.ErrorIs(t, repo.SoftDelete(ctx, tx, appt), ErrAppointmentNotFound)

	require.NoError(t, tx.Rollback(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}
