package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/telehealth-scheduling/internal/notify"
	redisclient "github.com/hackgods/telehealth-scheduling/internal/redis"
)

const (
	reminderBatchSize = 100
	// MaxReminderAttempts bounds how often a reminder whose notification
	// failed is scheduled again.
	MaxReminderAttempts = 5
	reminderRetryBase   = time.Minute
)

var errBadReminder = errors.New("malformed reminder job")

// SendDueReminders claims every reminder job that is due and notifies the
// patient. Jobs whose appointment was canceled in the meantime are dropped.
// It is intended to be called by the worker periodically.
func (s *Service) SendDueReminders(ctx context.Context) (int, error) {
	sent := 0
	for {
		jobs, err := s.jobs.ClaimDue(ctx, s.now(), reminderBatchSize)
		if err != nil {
			return sent, fmt.Errorf("claim due reminders: %w", err)
		}

		for _, job := range jobs {
			if job.Kind != JobKindReminder {
				s.logger.Warn("unknown job kind", zap.String("key", job.Key), zap.String("kind", job.Kind))
				continue
			}
			ok, err := s.sendReminder(ctx, job)
			if err != nil {
				s.logger.Error("send reminder", zap.String("key", job.Key), zap.Int("attempts", job.Attempts+1), zap.Error(err))
				s.metrics.ObserveReminder(s.retryReminder(ctx, job, err))
				continue
			}
			if !ok {
				s.metrics.ObserveReminder("skipped")
				continue
			}
			s.metrics.ObserveReminder("sent")
			sent++
		}

		if len(jobs) < reminderBatchSize {
			return sent, nil
		}
	}
}

// retryReminder schedules a failed reminder again with exponential backoff
// and returns the metric outcome. Malformed jobs and jobs out of attempts are
// dropped.
func (s *Service) retryReminder(ctx context.Context, job redisclient.Job, cause error) string {
	if errors.Is(cause, errBadReminder) || job.Attempts+1 >= MaxReminderAttempts {
		return "failed"
	}

	job.Attempts++
	job.RunAt = s.now().Add(reminderRetryBase << (job.Attempts - 1))
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		s.logger.Error("reschedule reminder", zap.String("key", job.Key), zap.Error(err))
		return "failed"
	}
	return "retried"
}

func (s *Service) sendReminder(ctx context.Context, job redisclient.Job) (bool, error) {
	appointmentID, err := uuid.Parse(job.Payload["appointment_id"])
	if err != nil {
		return false, fmt.Errorf("%w %s: appointment id: %v", errBadReminder, job.Key, err)
	}
	userID, err := uuid.Parse(job.Payload["patient_user_id"])
	if err != nil {
		return false, fmt.Errorf("%w %s: patient user id: %v", errBadReminder, job.Key, err)
	}

	detail, err := s.repo.FindByID(ctx, nil, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load appointment: %w", err)
	}
	if detail.Status() != StatusUpcoming {
		return false, nil
	}

	err = s.notifier.CreateNotification(ctx, notify.Notification{
		Title:   "Upcoming consultation",
		Content: fmt.Sprintf("Your consultation with %s starts %s. Join at %s", job.Payload["doctor_name"], s.display(detail.StartAt), detail.MeetingLinkURL()),
		Type:    notify.TypeAppointmentReminder,
		UserID:  userID,
	})
	if err != nil {
		return false, fmt.Errorf("notify patient: %w", err)
	}

	s.logger.Info("reminder sent",
		zap.String("appointment_id", appointmentID.String()),
		zap.Duration("starts_in", detail.StartAt.Sub(s.now()).Round(time.Minute)),
	)
	return true, nil
}
