package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hackgods/telehealth-scheduling/internal/apperror"
	"github.com/hackgods/telehealth-scheduling/internal/auth"
	"github.com/hackgods/telehealth-scheduling/internal/db"
	"github.com/hackgods/telehealth-scheduling/internal/directory"
	"github.com/hackgods/telehealth-scheduling/internal/meetinglink"
	"github.com/hackgods/telehealth-scheduling/internal/metrics"
	"github.com/hackgods/telehealth-scheduling/internal/notify"
	redisclient "github.com/hackgods/telehealth-scheduling/internal/redis"
	"github.com/hackgods/telehealth-scheduling/internal/timeslot"
	"github.com/hackgods/telehealth-scheduling/internal/window"
)

const (
	// MinLeadTime is how far ahead of a slot's start it may be booked or
	// canceled.
	MinLeadTime = 24 * time.Hour

	JobKindReminder = "appointment_reminder"

	displayLayout = "Mon, 02 Jan 2006 15:04 MST"
)

var tracer = otel.Tracer("telehealth.internal.appointment")

// SlotRegistry is the part of timeslot.Registry the lifecycle uses.
type SlotRegistry interface {
	Get(ctx context.Context, slotID uuid.UUID) (*timeslot.TimeSlot, error)
	MarkBooked(ctx context.Context, q db.Executor, slotID uuid.UUID) error
	MarkFree(ctx context.Context, q db.Executor, slotID uuid.UUID) error
}

// LinkPool is the part of meetinglink.Pool the lifecycle uses.
type LinkPool interface {
	Allocate(ctx context.Context, q db.Executor) (*meetinglink.MeetingLink, error)
	Release(ctx context.Context, q db.Executor, url string) error
}

type JobScheduler interface {
	CreateJob(ctx context.Context, job redisclient.Job) error
	CancelJob(ctx context.Context, key string) (bool, error)
	ClaimDue(ctx context.Context, now time.Time, limit int64) ([]redisclient.Job, error)
}

type Dependencies struct {
	Repo     Repository
	Slots    SlotRegistry
	Links    LinkPool
	Patients directory.PatientDirectory
	Doctors  directory.DoctorDirectory
	Tx       db.TxManager
	// Locker is optional; without it bookings rely on the database alone.
	Locker   redisclient.SlotLocker
	Jobs     JobScheduler
	Notifier notify.Gateway
	Metrics  *metrics.SchedulingMetrics
	Logger   *zap.Logger
}

type Settings struct {
	ReminderLead       time.Duration
	ReopenSlotOnCancel bool
	Location           *time.Location
}

type BookResult struct {
	ID uuid.UUID `json:"id"`
}

type CancelResult struct {
	ConsultAppointmentID uuid.UUID `json:"consultAppointmentId"`
	Status               Status    `json:"status"`
}

type Service struct {
	repo     Repository
	slots    SlotRegistry
	links    LinkPool
	patients directory.PatientDirectory
	doctors  directory.DoctorDirectory
	txm      db.TxManager
	locker   redisclient.SlotLocker
	jobs     JobScheduler
	notifier notify.Gateway
	metrics  *metrics.SchedulingMetrics
	logger   *zap.Logger
	settings Settings
	now      func() time.Time
	newID    func() uuid.UUID
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() uuid.UUID) Option {
	return func(s *Service) { s.newID = newID }
}

func NewService(deps Dependencies, settings Settings, opts ...Option) *Service {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	s := &Service{
		repo:     deps.Repo,
		slots:    deps.Slots,
		links:    deps.Links,
		patients: deps.Patients,
		doctors:  deps.Doctors,
		txm:      deps.Tx,
		locker:   deps.Locker,
		jobs:     deps.Jobs,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		settings: settings,
		now:      time.Now,
		newID:    uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Book reserves slotID for the calling patient. The link claim, the slot flip
// and the appointment insert commit together or not at all.
//
// A non-nil error of kind apperror.KindSideEffect comes with a valid result:
// the booking is stored but its reminder or notification failed.
func (s *Service) Book(ctx context.Context, caller auth.Identity, slotID uuid.UUID) (BookResult, error) {
	ctx, span := tracer.Start(ctx, "appointment.Book", trace.WithAttributes(
		attribute.String("telehealth.slot_id", slotID.String()),
	))
	defer span.End()
	started := time.Now()

	result, err := s.book(ctx, caller, slotID)

	s.metrics.ObserveBooking(outcome(err))
	s.metrics.ObserveLatency("book", time.Since(started).Seconds())
	recordSpan(span, err)
	if err == nil || apperror.IsKind(err, apperror.KindSideEffect) {
		span.SetAttributes(attribute.String("telehealth.appointment_id", result.ID.String()))
	}
	return result, err
}

func (s *Service) book(ctx context.Context, caller auth.Identity, slotID uuid.UUID) (BookResult, error) {
	patient, err := s.resolvePatient(ctx, caller)
	if err != nil {
		return BookResult{}, err
	}

	slot, err := s.slots.Get(ctx, slotID)
	if err != nil {
		if errors.Is(err, timeslot.ErrSlotNotFound) {
			return BookResult{}, ErrSlotNotFound
		}
		return BookResult{}, fmt.Errorf("load time slot: %w", err)
	}

	doctor, err := s.resolveDoctor(ctx, slot.DoctorID())
	if err != nil {
		return BookResult{}, err
	}

	now := s.now()
	if slot.StartAt().Before(now.Add(MinLeadTime)) {
		return BookResult{}, ErrBookTooLate
	}
	if !window.Bookable(now.In(s.settings.Location), slot.StartAt()) {
		return BookResult{}, ErrOutsideBooking
	}
	if !slot.Available() {
		return BookResult{}, timeslot.ErrSlotUnavailable
	}

	var appt *Appointment
	err = s.withSlotLock(ctx, slot.ID(), func(ctx context.Context) error {
		var err error
		appt, err = s.bookInTx(ctx, patient, slot, now)
		return err
	})
	if err != nil {
		return BookResult{}, err
	}

	s.logger.Info("appointment booked",
		zap.String("appointment_id", appt.ID().String()),
		zap.String("slot_id", slot.ID().String()),
		zap.String("patient_id", patient.ID.String()),
	)

	result := BookResult{ID: appt.ID()}
	var sideErrs []error
	if err := s.scheduleReminder(ctx, appt, patient, doctor, slot.StartAt(), now); err != nil {
		s.metrics.ObserveSideEffectFailure("reminder_job")
		sideErrs = append(sideErrs, err)
	}
	if err := s.notifier.CreateNotification(ctx, notify.Notification{
		Title:   "New appointment",
		Content: fmt.Sprintf("%s booked a consultation with you on %s.", patient.Name, s.display(slot.StartAt())),
		Type:    notify.TypeNewAppointment,
		UserID:  doctor.UserID,
	}); err != nil {
		s.metrics.ObserveSideEffectFailure("notification")
		sideErrs = append(sideErrs, fmt.Errorf("notify doctor: %w", err))
	}
	if len(sideErrs) > 0 {
		err := apperror.SideEffect("appointment booked but follow-up actions failed", errors.Join(sideErrs...))
		s.logger.Warn("booking side effects failed", zap.String("appointment_id", appt.ID().String()), zap.Error(err))
		return result, err
	}
	return result, nil
}

func (s *Service) bookInTx(ctx context.Context, patient *directory.Patient, slot *timeslot.TimeSlot, now time.Time) (*Appointment, error) {
	tx, err := s.txm.Begin(ctx, pgx.ReadCommitted)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rbErr := db.RollbackQuietly(ctx, tx); rbErr != nil {
			s.logger.Warn("rollback booking", zap.Error(rbErr))
		}
	}()

	link, err := s.links.Allocate(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := s.slots.MarkBooked(ctx, tx, slot.ID()); err != nil {
		return nil, err
	}

	appt := New(s.newID(), patient.ID, slot.ID(), link.URL(), now)
	if err := s.repo.Insert(ctx, tx, appt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit booking: %w", err)
	}
	return appt, nil
}

func (s *Service) withSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	err := s.locker.WithSlotLock(ctx, slotID, fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrSlotBeingBooked
	}
	return err
}

// scheduleReminder is a no-op when the reminder time has already passed.
func (s *Service) scheduleReminder(ctx context.Context, appt *Appointment, patient *directory.Patient, doctor *directory.Doctor, startAt, now time.Time) error {
	runAt := startAt.Add(-s.settings.ReminderLead)
	if !runAt.After(now) {
		return nil
	}
	err := s.jobs.CreateJob(ctx, redisclient.Job{
		Key:   ReminderJobKey(appt.ID()),
		RunAt: runAt,
		Kind:  JobKindReminder,
		Payload: map[string]string{
			"appointment_id":  appt.ID().String(),
			"patient_user_id": patient.UserID.String(),
			"doctor_name":     doctor.Name,
			"start_at":        startAt.Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("schedule reminder: %w", err)
	}
	return nil
}

// Cancel cancels one of the calling patient's upcoming appointments, returning
// its meeting link to the pool.
//
// As with Book, a SideEffect error comes with a valid result.
func (s *Service) Cancel(ctx context.Context, caller auth.Identity, appointmentID uuid.UUID) (CancelResult, error) {
	ctx, span := tracer.Start(ctx, "appointment.Cancel", trace.WithAttributes(
		attribute.String("telehealth.appointment_id", appointmentID.String()),
	))
	defer span.End()
	started := time.Now()

	result, err := s.cancel(ctx, caller, appointmentID)

	s.metrics.ObserveCancellation(outcome(err))
	s.metrics.ObserveLatency("cancel", time.Since(started).Seconds())
	recordSpan(span, err)
	return result, err
}

func (s *Service) cancel(ctx context.Context, caller auth.Identity, appointmentID uuid.UUID) (CancelResult, error) {
	patient, err := s.resolvePatient(ctx, caller)
	if err != nil {
		return CancelResult{}, err
	}

	detail, err := s.repo.FindByIDAndPatient(ctx, nil, appointmentID, patient.ID)
	if err != nil {
		return CancelResult{}, err
	}

	doctor, err := s.resolveDoctor(ctx, detail.DoctorID)
	if err != nil {
		return CancelResult{}, err
	}

	now := s.now()
	if detail.StartAt.Sub(now) < MinLeadTime {
		return CancelResult{}, ErrCancelTooLate
	}

	appt := detail.Appointment
	if err := s.cancelInTx(ctx, appt, now); err != nil {
		return CancelResult{}, err
	}

	s.logger.Info("appointment canceled",
		zap.String("appointment_id", appt.ID().String()),
		zap.String("patient_id", patient.ID.String()),
	)

	result := CancelResult{ConsultAppointmentID: appt.ID(), Status: StatusPatientCanceled}
	var sideErrs []error
	if found, err := s.jobs.CancelJob(ctx, ReminderJobKey(appt.ID())); err != nil {
		s.metrics.ObserveSideEffectFailure("reminder_job")
		sideErrs = append(sideErrs, fmt.Errorf("cancel reminder: %w", err))
	} else if !found {
		s.logger.Debug("no reminder scheduled", zap.String("appointment_id", appt.ID().String()))
	}
	if err := s.notifier.CreateNotification(ctx, notify.Notification{
		Title:   "Appointment canceled",
		Content: fmt.Sprintf("Your consultation with %s on %s has been canceled.", doctor.Name, s.display(detail.StartAt)),
		Type:    notify.TypeAppointmentCanceled,
		UserID:  patient.UserID,
	}); err != nil {
		s.metrics.ObserveSideEffectFailure("notification")
		sideErrs = append(sideErrs, fmt.Errorf("notify patient: %w", err))
	}
	if len(sideErrs) > 0 {
		err := apperror.SideEffect("appointment canceled but follow-up actions failed", errors.Join(sideErrs...))
		s.logger.Warn("cancellation side effects failed", zap.String("appointment_id", appt.ID().String()), zap.Error(err))
		return result, err
	}
	return result, nil
}

func (s *Service) cancelInTx(ctx context.Context, appt *Appointment, now time.Time) error {
	tx, err := s.txm.Begin(ctx, pgx.ReadCommitted)
	if err != nil {
		return err
	}
	defer func() {
		if rbErr := db.RollbackQuietly(ctx, tx); rbErr != nil {
			s.logger.Warn("rollback cancellation", zap.Error(rbErr))
		}
	}()

	if err := s.links.Release(ctx, tx, appt.MeetingLinkURL()); err != nil {
		return err
	}
	if err := appt.Cancel(now); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, tx, appt); err != nil {
		return err
	}
	if s.settings.ReopenSlotOnCancel {
		if err := s.slots.MarkFree(ctx, tx, appt.TimeSlotID()); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit cancellation: %w", err)
	}
	return nil
}

// ListByPatient returns the calling patient's upcoming appointments.
func (s *Service) ListByPatient(ctx context.Context, caller auth.Identity, limit, offset int) ([]Detail, error) {
	patient, err := s.resolvePatient(ctx, caller)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	appointments, err := s.repo.ListByPatient(ctx, patient.ID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appointments, nil
}

func (s *Service) resolvePatient(ctx context.Context, caller auth.Identity) (*directory.Patient, error) {
	if caller.Role != auth.RolePatient {
		return nil, ErrNotPatient
	}
	patient, err := s.patients.FindPatientByUserID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, directory.ErrPatientNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	return patient, nil
}

func (s *Service) resolveDoctor(ctx context.Context, doctorID uuid.UUID) (*directory.Doctor, error) {
	doctor, err := s.doctors.FindDoctorByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, directory.ErrDoctorNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	return doctor, nil
}

func (s *Service) display(t time.Time) string {
	return t.In(s.settings.Location).Format(displayLayout)
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return string(apperror.KindOf(err))
}

func recordSpan(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	if !apperror.IsKind(err, apperror.KindSideEffect) {
		span.SetStatus(codes.Error, apperror.Message(err))
	}
}
