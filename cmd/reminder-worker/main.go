package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/telehealth-scheduling/internal/appointment"
	"github.com/hackgods/telehealth-scheduling/internal/config"
	"github.com/hackgods/telehealth-scheduling/internal/db"
	"github.com/hackgods/telehealth-scheduling/internal/logging"
	"github.com/hackgods/telehealth-scheduling/internal/metrics"
	"github.com/hackgods/telehealth-scheduling/internal/notify"
	redisclient "github.com/hackgods/telehealth-scheduling/internal/redis"
)

// The reminder worker only reads appointments and claims jobs, so it wires
// the service without the slot registry, link pool or lock.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("reminder-worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval),
		zap.String("metrics_port", cfg.MetricsPort),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 4})
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()

	rdb, err := redisclient.NewClient(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		logger.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", zap.Error(err))
		}
	}()

	var notifier notify.Gateway = notify.NewLogGateway(logger)
	if cfg.RabbitMQURL != "" {
		conn, err := notify.Dial(cfg.RabbitMQURL)
		if err != nil {
			logger.Fatal("rabbitmq connection error", zap.Error(err))
		}
		defer conn.Close()

		publisher, err := notify.NewRabbitPublisher(conn, cfg.NotificationQueue)
		if err != nil {
			logger.Fatal("rabbitmq publisher error", zap.Error(err))
		}
		defer publisher.Close()
		notifier = publisher
	}

	jobs := redisclient.NewJobStore(rdb)
	svc := appointment.NewService(appointment.Dependencies{
		Repo:     appointment.NewPgRepository(pgPool),
		Jobs:     jobs,
		Notifier: notifier,
		Metrics:  metrics.NewSchedulingMetrics(nil),
		Logger:   logger,
	}, appointment.Settings{
		ReminderLead: cfg.ReminderLead,
		Location:     cfg.Location,
	})

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, nil)
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}()

	runOnce(rootCtx, logger, svc, jobs)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, logger, svc, jobs)
		}
	}
}

func runOnce(ctx context.Context, logger *zap.Logger, svc *appointment.Service, jobs *redisclient.JobStore) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	sent, err := svc.SendDueReminders(runCtx)
	if err != nil {
		logger.Error("reminder run error", zap.Int("sent", sent), zap.Error(err))
		return
	}

	pending, err := jobs.Pending(runCtx)
	if err != nil {
		logger.Warn("count pending reminders", zap.Error(err))
	}
	logger.Info("reminder run complete",
		zap.Int("sent", sent),
		zap.Int64("pending", pending),
		zap.Duration("took", time.Since(start)),
	)
}
