package timeslot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/hackgods/telehealth-scheduling/internal/apperror"
	"github.com/hackgods/telehealth-scheduling/internal/auth"
	"github.com/hackgods/telehealth-scheduling/internal/db"
	"github.com/hackgods/telehealth-scheduling/internal/directory"
	"github.com/hackgods/telehealth-scheduling/internal/window"
)

type CreateInput struct {
	StartAt time.Time
	EndAt   time.Time
	Type    string
}

type EditInput struct {
	StartAt time.Time
	EndAt   time.Time
	Type    string
}

// Registry owns time slots: publishing, editing, deleting and the
// availability flag flipped by bookings.
type Registry struct {
	repo    Repository
	doctors directory.DoctorDirectory
	txm     db.TxManager
	logger  *zap.Logger
	now     func() time.Time
	loc     *time.Location
	newID   func() uuid.UUID
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithLocation sets the calendar the publishing window is evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(r *Registry) { r.loc = loc }
}

func WithIDGenerator(newID func() uuid.UUID) Option {
	return func(r *Registry) { r.newID = newID }
}

func NewRegistry(repo Repository, doctors directory.DoctorDirectory, txm db.TxManager, logger *zap.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		repo:    repo,
		doctors: doctors,
		txm:     txm,
		logger:  logger,
		now:     time.Now,
		loc:     time.UTC,
		newID:   uuid.New,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.loc == nil {
		r.loc = time.UTC
	}
	return r
}

// current is the clock read in the registry's calendar. window.Allowed
// compares whole days in the location of the time it is given.
func (r *Registry) current() time.Time {
	return r.now().In(r.loc)
}

// Create publishes a single slot for the calling doctor.
func (r *Registry) Create(ctx context.Context, caller auth.Identity, in CreateInput) (*TimeSlot, error) {
	doctor, err := r.resolveDoctor(ctx, caller)
	if err != nil {
		return nil, err
	}

	slotType, err := ParseSlotType(in.Type)
	if err != nil {
		return nil, err
	}

	now := r.current()
	if err := validateSchedule(now, in.StartAt, in.EndAt); err != nil {
		return nil, err
	}

	dup, err := r.repo.ExistsAtStart(ctx, doctor.ID, in.StartAt, DuplicateFilter{})
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicateSlot
	}

	slot := New(r.newID(), doctor.ID, in.StartAt, in.EndAt, slotType, now)
	if err := r.repo.Insert(ctx, nil, slot); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicateSlot
		}
		return nil, err
	}

	r.logger.Info("time slot created",
		zap.String("slot_id", slot.ID().String()),
		zap.String("doctor_id", doctor.ID.String()),
		zap.Time("start_at", slot.StartAt()),
	)
	return slot, nil
}

// CreateMany publishes several slots at once. Each item is validated exactly
// like Create, and either every slot is stored or none is.
func (r *Registry) CreateMany(ctx context.Context, caller auth.Identity, items []CreateInput) ([]*TimeSlot, error) {
	doctor, err := r.resolveDoctor(ctx, caller)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyBatch
	}

	now := r.current()
	seen := make(map[int64]struct{}, len(items))
	slots := make([]*TimeSlot, 0, len(items))

	for _, in := range items {
		slotType, err := ParseSlotType(in.Type)
		if err != nil {
			return nil, err
		}
		if err := validateSchedule(now, in.StartAt, in.EndAt); err != nil {
			return nil, err
		}

		key := in.StartAt.UnixNano()
		if _, ok := seen[key]; ok {
			return nil, ErrDuplicateSlot
		}
		seen[key] = struct{}{}

		dup, err := r.repo.ExistsAtStart(ctx, doctor.ID, in.StartAt, DuplicateFilter{})
		if err != nil {
			return nil, err
		}
		if dup {
			return nil, ErrDuplicateSlot
		}

		slots = append(slots, New(r.newID(), doctor.ID, in.StartAt, in.EndAt, slotType, now))
	}

	tx, err := r.txm.Begin(ctx, pgx.ReadCommitted)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rbErr := db.RollbackQuietly(ctx, tx); rbErr != nil {
			r.logger.Warn("rollback time slot batch", zap.Error(rbErr))
		}
	}()

	for _, slot := range slots {
		if err := r.repo.Insert(ctx, tx, slot); err != nil {
			if db.IsUniqueViolation(err) {
				return nil, ErrDuplicateSlot
			}
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit time slot batch: %w", err)
	}

	r.logger.Info("time slots created",
		zap.String("doctor_id", doctor.ID.String()),
		zap.Int("count", len(slots)),
	)
	return slots, nil
}

// Edit moves one of the calling doctor's unbooked slots.
func (r *Registry) Edit(ctx context.Context, caller auth.Identity, slotID uuid.UUID, in EditInput) (*TimeSlot, error) {
	doctor, err := r.resolveDoctor(ctx, caller)
	if err != nil {
		return nil, err
	}

	slot, err := r.repo.GetByID(ctx, nil, slotID)
	if err != nil {
		return nil, err
	}
	if !slot.OwnedBy(doctor.ID) {
		return nil, ErrSlotNotFound
	}
	if !slot.Available() {
		return nil, ErrSlotBooked
	}

	slotType, err := ParseSlotType(in.Type)
	if err != nil {
		return nil, err
	}

	if slotType == slot.Type() {
		dup, err := r.repo.ExistsAtStart(ctx, doctor.ID, in.StartAt, DuplicateFilter{ExcludeID: slot.ID(), Type: slotType})
		if err != nil {
			return nil, err
		}
		if dup {
			return nil, ErrDuplicateSlot
		}
	}

	now := r.current()
	if err := validateSchedule(now, in.StartAt, in.EndAt); err != nil {
		return nil, err
	}

	if err := slot.Reschedule(in.StartAt, in.EndAt, slotType, now); err != nil {
		return nil, err
	}
	if err := r.repo.Update(ctx, nil, slot); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicateSlot
		}
		return nil, err
	}

	r.logger.Info("time slot edited",
		zap.String("slot_id", slot.ID().String()),
		zap.Time("start_at", slot.StartAt()),
	)
	return slot, nil
}

// Delete soft deletes one of the calling doctor's unbooked slots. The slot is
// looked up before the doctor, so an unknown slot is reported as not found
// even for unknown callers.
func (r *Registry) Delete(ctx context.Context, caller auth.Identity, slotID uuid.UUID) error {
	slot, err := r.repo.GetByID(ctx, nil, slotID)
	if err != nil {
		return err
	}

	doctor, err := r.resolveDoctor(ctx, caller)
	if err != nil {
		return err
	}
	if !slot.OwnedBy(doctor.ID) {
		return ErrSlotNotFound
	}
	if !slot.Available() {
		return ErrSlotBooked
	}

	now := r.current()
	if d := window.Allowed(now, slot.StartAt()); !d.OK {
		return apperror.Validation(d.Reason)
	}

	slot.Delete(now)
	if err := r.repo.SoftDelete(ctx, nil, slot); err != nil {
		return err
	}

	r.logger.Info("time slot deleted", zap.String("slot_id", slot.ID().String()))
	return nil
}

// Get returns a non-deleted slot.
func (r *Registry) Get(ctx context.Context, slotID uuid.UUID) (*TimeSlot, error) {
	return r.repo.GetByID(ctx, nil, slotID)
}

func (r *Registry) ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*TimeSlot, error) {
	if !from.Before(to) {
		return nil, apperror.Validation("from must be before to")
	}
	return r.repo.ListByDoctor(ctx, doctorID, from, to)
}

// MarkBooked flips an available slot to booked through the caller's
// transaction.
func (r *Registry) MarkBooked(ctx context.Context, q db.Executor, slotID uuid.UUID) error {
	ok, err := r.repo.SetAvailability(ctx, q, slotID, true, false, r.current())
	if err != nil {
		return err
	}
	if !ok {
		return ErrSlotUnavailable
	}
	return nil
}

// MarkFree makes a booked slot available again through the caller's
// transaction.
func (r *Registry) MarkFree(ctx context.Context, q db.Executor, slotID uuid.UUID) error {
	ok, err := r.repo.SetAvailability(ctx, q, slotID, false, true, r.current())
	if err != nil {
		return err
	}
	if !ok {
		return ErrSlotNotFound
	}
	return nil
}

func (r *Registry) resolveDoctor(ctx context.Context, caller auth.Identity) (*directory.Doctor, error) {
	if caller.Role != auth.RoleDoctor {
		return nil, ErrNotDoctor
	}
	doctor, err := r.doctors.FindDoctorByUserID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, directory.ErrDoctorNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	return doctor, nil
}

// validateSchedule applies the rules shared by create and edit, failing on
// the first violation.
func validateSchedule(now, startAt, endAt time.Time) error {
	if !startAt.After(now) {
		return ErrStartInPast
	}
	if !startAt.Before(endAt) {
		return ErrStartAfterEnd
	}
	if endAt.Sub(startAt) < MinDuration {
		return ErrTooShort
	}
	if d := window.Allowed(now, startAt); !d.OK {
		return apperror.Validation(d.Reason)
	}
	return nil
}
