// Package notify delivers user facing notifications produced by the
// scheduling flows.
package notify

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Type string

const (
	TypeNewAppointment      Type = "NEW_APPOINTMENT"
	TypeAppointmentCanceled Type = "APPOINTMENT_CANCELED"
	TypeAppointmentReminder Type = "APPOINTMENT_REMINDER"
)

type Notification struct {
	Title   string    `json:"title"`
	Content string    `json:"content"`
	Type    Type      `json:"type"`
	UserID  uuid.UUID `json:"user_id"`
}

// Gateway hands a notification to the delivery system. A nil error means the
// notification was accepted, not that it reached the user.
type Gateway interface {
	CreateNotification(ctx context.Context, n Notification) error
}

// LogGateway writes notifications to the log. It is used when no broker is
// configured.
type LogGateway struct {
	logger *zap.Logger
}

func NewLogGateway(logger *zap.Logger) *LogGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogGateway{logger: logger}
}

func (g *LogGateway) CreateNotification(ctx context.Context, n Notification) error {
	g.logger.Info("notification",
		zap.String("type", string(n.Type)),
		zap.String("user_id", n.UserID.String()),
		zap.String("title", n.Title),
		zap.String("content", n.Content),
	)
	return nil
}
