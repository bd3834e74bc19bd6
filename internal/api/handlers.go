package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/telehealth-scheduling/internal/appointment"
	"github.com/hackgods/telehealth-scheduling/internal/auth"
	"github.com/hackgods/telehealth-scheduling/internal/timeslot"
)

type SlotService interface {
	Create(ctx context.Context, caller auth.Identity, in timeslot.CreateInput) (*timeslot.TimeSlot, error)
	CreateMany(ctx context.Context, caller auth.Identity, items []timeslot.CreateInput) ([]*timeslot.TimeSlot, error)
	Edit(ctx context.Context, caller auth.Identity, slotID uuid.UUID, in timeslot.EditInput) (*timeslot.TimeSlot, error)
	Delete(ctx context.Context, caller auth.Identity, slotID uuid.UUID) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*timeslot.TimeSlot, error)
}

type AppointmentService interface {
	Book(ctx context.Context, caller auth.Identity, slotID uuid.UUID) (appointment.BookResult, error)
	Cancel(ctx context.Context, caller auth.Identity, appointmentID uuid.UUID) (appointment.CancelResult, error)
	ListByPatient(ctx context.Context, caller auth.Identity, limit, offset int) ([]appointment.Detail, error)
}

type Handler struct {
	slots        SlotService
	appointments AppointmentService
	logger       *zap.Logger
}

func NewHandler(slots SlotService, appointments AppointmentService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{slots: slots, appointments: appointments, logger: logger}
}

func (h *Handler) createTimeSlot(w http.ResponseWriter, r *http.Request) {
	var req TimeSlotRequest
	if !decodeBody(w, r, &req) {
		return
	}

	slot, err := h.slots.Create(r.Context(), mustIdentity(r), timeslot.CreateInput{
		StartAt: req.StartAt,
		EndAt:   req.EndAt,
		Type:    req.Type,
	})
	if err != nil {
		writeResult(w, r, h.logger, 0, nil, err)
		return
	}
	writeResult(w, r, h.logger, http.StatusCreated, newTimeSlotResponse(slot), nil)
}

func (h *Handler) createTimeSlots(w http.ResponseWriter, r *http.Request) {
	var req CreateTimeSlotsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	items := make([]timeslot.CreateInput, 0, len(req.Slots))
	for _, s := range req.Slots {
		items = append(items, timeslot.CreateInput{StartAt: s.StartAt, EndAt: s.EndAt, Type: s.Type})
	}

	slots, err := h.slots.CreateMany(r.Context(), mustIdentity(r), items)
	if err != nil {
		writeResult(w, r, h.logger, 0, nil, err)
		return
	}
	writeResult(w, r, h.logger, http.StatusCreated, newTimeSlotResponses(slots), nil)
}

func (h *Handler) editTimeSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req TimeSlotRequest
	if !decodeBody(w, r, &req) {
		return
	}

	slot, err := h.slots.Edit(r.Context(), mustIdentity(r), id, timeslot.EditInput{
		StartAt: req.StartAt,
		EndAt:   req.EndAt,
		Type:    req.Type,
	})
	if err != nil {
		writeResult(w, r, h.logger, 0, nil, err)
		return
	}
	writeResult(w, r, h.logger, http.StatusOK, newTimeSlotResponse(slot), nil)
}

func (h *Handler) deleteTimeSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.slots.Delete(r.Context(), mustIdentity(r), id); err != nil {
		writeResult(w, r, h.logger, 0, nil, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listDoctorTimeSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := pathUUID(w, r, "doctorID")
	if !ok {
		return
	}

	from, to, ok := parseRange(w, r)
	if !ok {
		return
	}

	slots, err := h.slots.ListByDoctor(r.Context(), doctorID, from, to)
	if err != nil {
		writeResult(w, r, h.logger, 0, nil, err)
		return
	}
	writeResult(w, r, h.logger, http.StatusOK, newTimeSlotResponses(slots), nil)
}

func (h *Handler) bookAppointment(w http.ResponseWriter, r *http.Request) {
	var req BookAppointmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	slotID, err := uuid.Parse(req.TimeSlotID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_timeSlotId", "timeSlotId must be a valid UUID")
		return
	}

	res, err := h.appointments.Book(r.Context(), mustIdentity(r), slotID)
	writeResult(w, r, h.logger, http.StatusCreated, res, err)
}

func (h *Handler) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	res, err := h.appointments.Cancel(r.Context(), mustIdentity(r), id)
	writeResult(w, r, h.logger, http.StatusOK, res, err)
}

func (h *Handler) listAppointments(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	list, err := h.appointments.ListByPatient(r.Context(), mustIdentity(r), limit, offset)
	if err != nil {
		writeResult(w, r, h.logger, 0, nil, err)
		return
	}

	out := make([]AppointmentResponse, 0, len(list))
	for _, d := range list {
		out = append(out, newAppointmentResponse(d))
	}
	writeResult(w, r, h.logger, http.StatusOK, out, nil)
}

// mustIdentity is only called behind the Authenticate middleware.
func mustIdentity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	q := r.URL.Query()
	from, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_from", "from must be an RFC3339 timestamp")
		return time.Time{}, time.Time{}, false
	}
	to, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_to", "to must be an RFC3339 timestamp")
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
