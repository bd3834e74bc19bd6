package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/telehealth-scheduling/internal/api"
	"github.com/hackgods/telehealth-scheduling/internal/appointment"
	"github.com/hackgods/telehealth-scheduling/internal/config"
	"github.com/hackgods/telehealth-scheduling/internal/db"
	"github.com/hackgods/telehealth-scheduling/internal/directory"
	"github.com/hackgods/telehealth-scheduling/internal/logging"
	"github.com/hackgods/telehealth-scheduling/internal/meetinglink"
	"github.com/hackgods/telehealth-scheduling/internal/metrics"
	"github.com/hackgods/telehealth-scheduling/internal/notify"
	redisclient "github.com/hackgods/telehealth-scheduling/internal/redis"
	"github.com/hackgods/telehealth-scheduling/internal/timeslot"
)

var version = "dev"

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

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("version", version),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: cfg.PostgresMaxConns})
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

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
	logger.Info("connected to Redis")

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
		logger.Info("publishing notifications to RabbitMQ", zap.String("queue", cfg.NotificationQueue))
	}

	m := metrics.NewSchedulingMetrics(nil)
	txm := db.NewPgTxManager(pgPool)
	people := directory.NewPgDirectory(pgPool)

	registry := timeslot.NewRegistry(timeslot.NewPgRepository(pgPool), people, txm, logger,
		timeslot.WithLocation(cfg.Location),
	)
	links := meetinglink.NewPool(meetinglink.NewPgRepository(pgPool), logger)

	appointments := appointment.NewService(appointment.Dependencies{
		Repo:     appointment.NewPgRepository(pgPool),
		Slots:    registry,
		Links:    links,
		Patients: people,
		Doctors:  people,
		Tx:       txm,
		Locker:   redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL, logger),
		Jobs:     redisclient.NewJobStore(rdb),
		Notifier: notifier,
		Metrics:  m,
		Logger:   logger,
	}, appointment.Settings{
		ReminderLead:       cfg.ReminderLead,
		ReopenSlotOnCancel: cfg.ReopenSlotOnCancel,
		Location:           cfg.Location,
	})

	router := api.NewRouter(api.RouterConfig{
		Slots:        registry,
		Appointments: appointments,
		Postgres:     pgPool,
		Redis:        api.PingFunc(func(ctx context.Context) error { return redisPing(ctx, rdb) }),
		Links:        links,
		Metrics:      m,
		Logger:       logger,
		JWTSecret:    cfg.JWTSecret,
		RateLimit:    cfg.RateLimitPerSecond,
		CORSOrigins:  cfg.CORSAllowedOrigins,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server", zap.Duration("timeout", cfg.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func redisPing(ctx context.Context, rdb *redis.Client) error {
	return rdb.Ping(ctx).Err()
}
