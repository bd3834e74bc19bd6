package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/telehealth-scheduling/internal/apperror"
	"github.com/hackgods/telehealth-scheduling/internal/appointment"
	"github.com/hackgods/telehealth-scheduling/internal/auth"
	"github.com/hackgods/telehealth-scheduling/internal/meetinglink"
	"github.com/hackgods/telehealth-scheduling/internal/timeslot"
)

const testSecret = "test-secret"

type stubSlots struct {
	createIn  timeslot.CreateInput
	createErr error
	batch     []timeslot.CreateInput
	deleted   uuid.UUID
	caller    auth.Identity
}

func (s *stubSlots) Create(ctx context.Context, caller auth.Identity, in timeslot.CreateInput) (*timeslot.TimeSlot, error) {
	s.caller = caller
	s.createIn = in
	if s.createErr != nil {
		return nil, s.createErr
	}
	return timeslot.New(uuid.New(), uuid.New(), in.StartAt, in.EndAt, timeslot.TypeOnline, time.Now()), nil
}

func (s *stubSlots) CreateMany(ctx context.Context, caller auth.Identity, items []timeslot.CreateInput) ([]*timeslot.TimeSlot, error) {
	s.batch = items
	out := make([]*timeslot.TimeSlot, 0, len(items))
	for _, in := range items {
		out = append(out, timeslot.New(uuid.New(), uuid.New(), in.StartAt, in.EndAt, timeslot.TypeOnline, time.Now()))
	}
	return out, nil
}

func (s *stubSlots) Edit(ctx context.Context, caller auth.Identity, slotID uuid.UUID, in timeslot.EditInput) (*timeslot.TimeSlot, error) {
	return nil, timeslot.ErrSlotNotFound
}

func (s *stubSlots) Delete(ctx context.Context, caller auth.Identity, slotID uuid.UUID) error {
	s.deleted = slotID
	return nil
}

func (s *stubSlots) ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*timeslot.TimeSlot, error) {
	return nil, nil
}

type stubAppointments struct {
	bookRes   appointment.BookResult
	bookErr   error
	cancelErr error
	booked    uuid.UUID
}

func (s *stubAppointments) Book(ctx context.Context, caller auth.Identity, slotID uuid.UUID) (appointment.BookResult, error) {
	s.booked = slotID
	return s.bookRes, s.bookErr
}

func (s *stubAppointments) Cancel(ctx context.Context, caller auth.Identity, id uuid.UUID) (appointment.CancelResult, error) {
	if s.cancelErr != nil {
		return appointment.CancelResult{}, s.cancelErr
	}
	return appointment.CancelResult{ConsultAppointmentID: id, Status: appointment.StatusPatientCanceled}, nil
}

func (s *stubAppointments) ListByPatient(ctx context.Context, caller auth.Identity, limit, offset int) ([]appointment.Detail, error) {
	return nil, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

type stubLinks struct{ stats meetinglink.Stats }

func (l stubLinks) Stats(ctx context.Context) (meetinglink.Stats, error) { return l.stats, nil }

func newTestRouter(slots *stubSlots, appts *stubAppointments) http.Handler {
	return NewRouter(RouterConfig{
		Slots:          slots,
		Appointments:   appts,
		Postgres:       stubPinger{},
		Redis:          stubPinger{},
		Links:          stubLinks{stats: meetinglink.Stats{Available: 3, InUse: 1}},
		MetricsHandler: http.NotFoundHandler(),
		JWTSecret:      testSecret,
		CORSOrigins:    []string{"*"},
	})
}

func token(t *testing.T, role auth.Role) (string, auth.Identity) {
	t.Helper()
	id := auth.Identity{UserID: uuid.New(), Role: role}
	tok, err := auth.IssueToken(testSecret, id, time.Hour, time.Now())
	require.NoError(t, err)
	return tok, id
}

func do(t *testing.T, h http.Handler, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticationRequired(t *testing.T) {
	h := newTestRouter(&stubSlots{}, &stubAppointments{})

	rec := do(t, h, http.MethodPost, "/v1/appointments", "", BookAppointmentRequest{TimeSlotID: uuid.NewString()})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/appointments", "not-a-jwt", BookAppointmentRequest{TimeSlotID: uuid.NewString()})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateTimeSlot(t *testing.T) {
	slots := &stubSlots{}
	h := newTestRouter(slots, &stubAppointments{})
	tok, id := token(t, auth.RoleDoctor)
	start := time.Date(2023, 7, 18, 13, 0, 0, 0, time.UTC)

	rec := do(t, h, http.MethodPost, "/v1/time-slots", tok, map[string]any{
		"startAt": start,
		"endAt":   start.Add(time.Hour),
		"type":    "ONLINE",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, id, slots.caller)
	assert.True(t, slots.createIn.StartAt.Equal(start))

	var body struct {
		Data TimeSlotResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Data.Available)
}

func TestCreateTimeSlotRequestValidation(t *testing.T) {
	h := newTestRouter(&stubSlots{}, &stubAppointments{})
	tok, _ := token(t, auth.RoleDoctor)

	rec := do(t, h, http.MethodPost, "/v1/time-slots", tok, map[string]any{"type": "HOME"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Details, "startat is required")
	assert.Contains(t, body.Details, "type must be one of ONLINE, PHYSICAL")

	rec = do(t, h, http.MethodPost, "/v1/time-slots/batch", tok, CreateTimeSlotsRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorKindMapping(t *testing.T) {
	tok, _ := token(t, auth.RoleDoctor)
	start := time.Date(2023, 7, 18, 13, 0, 0, 0, time.UTC)
	body := TimeSlotRequest{StartAt: start, EndAt: start.Add(time.Hour)}

	tests := []struct {
		err  error
		code int
	}{
		{timeslot.ErrDuplicateSlot, http.StatusUnprocessableEntity},
		{timeslot.ErrNotDoctor, http.StatusForbidden},
		{timeslot.ErrSlotNotFound, http.StatusNotFound},
		{errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			h := newTestRouter(&stubSlots{createErr: tt.err}, &stubAppointments{})
			rec := do(t, h, http.MethodPost, "/v1/time-slots", tok, body)
			assert.Equal(t, tt.code, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			if tt.code == http.StatusInternalServerError {
				assert.Equal(t, "internal error", resp.Details, "internal details are not leaked")
			} else {
				assert.Equal(t, apperror.Message(tt.err), resp.Details)
			}
		})
	}
}

func TestBookAppointment(t *testing.T) {
	apptID := uuid.New()
	appts := &stubAppointments{bookRes: appointment.BookResult{ID: apptID}}
	h := newTestRouter(&stubSlots{}, appts)
	tok, _ := token(t, auth.RolePatient)
	slotID := uuid.New()

	rec := do(t, h, http.MethodPost, "/v1/appointments", tok, BookAppointmentRequest{TimeSlotID: slotID.String()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, slotID, appts.booked)

	var body struct {
		Data    appointment.BookResult `json:"data"`
		Warning string                 `json:"warning"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, apptID, body.Data.ID)
	assert.Empty(t, body.Warning)

	rec = do(t, h, http.MethodPost, "/v1/appointments", tok, BookAppointmentRequest{TimeSlotID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookAppointmentMalformedSlotID(t *testing.T) {
	appts := &stubAppointments{}
	h := newTestRouter(&stubSlots{}, appts)
	tok, _ := token(t, auth.RolePatient)

	for _, raw := range []string{"nope", "", "{" + uuid.NewString() + "}", uuid.NewString() + "x"} {
		var rec *httptest.ResponseRecorder
		require.NotPanics(t, func() {
			rec = do(t, h, http.MethodPost, "/v1/appointments", tok, BookAppointmentRequest{TimeSlotID: raw})
		}, raw)
		assert.Equal(t, http.StatusBadRequest, rec.Code, raw)
	}
	assert.Equal(t, uuid.Nil, appts.booked)
}

func TestBookAppointmentSideEffectWarning(t *testing.T) {
	apptID := uuid.New()
	appts := &stubAppointments{
		bookRes: appointment.BookResult{ID: apptID},
		bookErr: apperror.SideEffect("appointment booked but follow-up actions failed", errors.New("amqp closed")),
	}
	h := newTestRouter(&stubSlots{}, appts)
	tok, _ := token(t, auth.RolePatient)

	rec := do(t, h, http.MethodPost, "/v1/appointments", tok, BookAppointmentRequest{TimeSlotID: uuid.NewString()})
	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		Data    appointment.BookResult `json:"data"`
		Warning string                 `json:"warning"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, apptID, body.Data.ID)
	assert.Equal(t, "appointment booked but follow-up actions failed", body.Warning)
}

func TestCancelAppointment(t *testing.T) {
	h := newTestRouter(&stubSlots{}, &stubAppointments{})
	tok, _ := token(t, auth.RolePatient)
	id := uuid.New()

	rec := do(t, h, http.MethodPost, "/v1/appointments/"+id.String()+"/cancel", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data appointment.CancelResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, id, body.Data.ConsultAppointmentID)
	assert.Equal(t, appointment.StatusPatientCanceled, body.Data.Status)

	h = newTestRouter(&stubSlots{}, &stubAppointments{cancelErr: appointment.ErrCancelTooLate})
	rec = do(t, h, http.MethodPost, "/v1/appointments/"+id.String()+"/cancel", tok, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/appointments/xyz/cancel", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteTimeSlot(t *testing.T) {
	slots := &stubSlots{}
	h := newTestRouter(slots, &stubAppointments{})
	tok, _ := token(t, auth.RoleDoctor)
	id := uuid.New()

	rec := do(t, h, http.MethodDelete, "/v1/time-slots/"+id.String(), tok, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, id, slots.deleted)
}

func TestListDoctorTimeSlotsRange(t *testing.T) {
	h := newTestRouter(&stubSlots{}, &stubAppointments{})
	tok, _ := token(t, auth.RolePatient)
	doctorID := uuid.NewString()

	rec := do(t, h, http.MethodGet, "/v1/doctors/"+doctorID+"/time-slots?from=2023-07-01T00:00:00Z&to=2023-08-01T00:00:00Z", tok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/doctors/"+doctorID+"/time-slots?from=yesterday", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReadiness(t *testing.T) {
	h := newTestRouter(&stubSlots{}, &stubAppointments{})

	rec := do(t, h, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	require.NotNil(t, body.MeetingLinks)
	assert.Equal(t, 3, body.MeetingLinks.Available)

	down := NewRouter(RouterConfig{
		Postgres:       stubPinger{err: errors.New("down")},
		Redis:          stubPinger{},
		MetricsHandler: http.NotFoundHandler(),
	})
	rec = do(t, down, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
