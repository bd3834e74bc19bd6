package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hackgods/telehealth-scheduling/internal/metrics"
)

type RouterConfig struct {
	Slots        SlotService
	Appointments AppointmentService
	Postgres     Pinger
	Redis        Pinger
	Links        LinkStats
	Metrics      *metrics.SchedulingMetrics
	// MetricsHandler serves /metrics; promhttp.Handler() when nil.
	MetricsHandler http.Handler
	Logger         *zap.Logger
	JWTSecret      string
	RateLimit      int
	CORSOrigins    []string
	Env            string
	Version        string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = promhttp.Handler()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Links, cfg.Metrics, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", cfg.MetricsHandler)

	h := NewHandler(cfg.Slots, cfg.Appointments, cfg.Logger)

	r.Route("/v1", func(r chi.Router) {
		if cfg.RateLimit > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimit, time.Second))
		}
		r.Use(Authenticate(cfg.JWTSecret))

		r.Route("/time-slots", func(r chi.Router) {
			r.Post("/", h.createTimeSlot)
			r.Post("/batch", h.createTimeSlots)
			r.Put("/{id}", h.editTimeSlot)
			r.Delete("/{id}", h.deleteTimeSlot)
		})
		r.Get("/doctors/{doctorID}/time-slots", h.listDoctorTimeSlots)

		r.Route("/appointments", func(r chi.Router) {
			r.Get("/", h.listAppointments)
			r.Post("/", h.bookAppointment)
			r.Post("/{id}/cancel", h.cancelAppointment)
		})
	})

	return r
}
