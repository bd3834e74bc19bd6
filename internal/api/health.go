package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hackgods/telehealth-scheduling/internal/meetinglink"
	"github.com/hackgods/telehealth-scheduling/internal/metrics"
)

var errNotConfigured = errors.New("not configured")

type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts clients whose Ping does not return a bare error, such as
// go-redis.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type LinkStats interface {
	Stats(ctx context.Context) (meetinglink.Stats, error)
}

type HealthHandler struct {
	postgres Pinger
	redis    Pinger
	links    LinkStats
	metrics  *metrics.SchedulingMetrics
	env      string
	version  string
}

func NewHealthHandler(postgres, redis Pinger, links LinkStats, m *metrics.SchedulingMetrics, env, version string) *HealthHandler {
	return &HealthHandler{
		postgres: postgres,
		redis:    redis,
		links:    links,
		metrics:  m,
		env:      env,
		version:  version,
	}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
	MeetingLinks *LinkPoolStatus   `json:"meetingLinks,omitempty"`
}

type LinkPoolStatus struct {
	Available int `json:"available"`
	InUse     int `json:"inUse"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	})
}

// Readiness fails when Postgres is down. Redis only degrades the service:
// bookings still work without the slot lock and reminders.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string)
	status := "ok"

	if err := ping(ctx, h.postgres); err != nil {
		deps["postgres"] = "down"
		status = "error"
	} else {
		deps["postgres"] = "ok"
	}

	if err := ping(ctx, h.redis); err != nil {
		deps["redis"] = "down"
		if status == "ok" {
			status = "degraded"
		}
	} else {
		deps["redis"] = "ok"
	}

	resp := ReadinessResponse{
		Status:       status,
		Version:      h.version,
		Env:          h.env,
		Dependencies: deps,
	}

	if status != "error" && h.links != nil {
		if stats, err := h.links.Stats(ctx); err == nil {
			resp.MeetingLinks = &LinkPoolStatus{Available: stats.Available, InUse: stats.InUse}
			h.metrics.SetMeetingLinks(stats.Available, stats.InUse)
			if stats.Available == 0 && status == "ok" {
				status = "degraded"
				resp.Status = status
			}
		}
	}

	httpStatus := http.StatusOK
	if status == "error" {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, resp)
}

func ping(ctx context.Context, p Pinger) error {
	if p == nil {
		return errNotConfigured
	}
	pingCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return p.Ping(pingCtx)
}
