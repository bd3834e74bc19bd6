package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/telehealth-scheduling/internal/config"
	"github.com/hackgods/telehealth-scheduling/internal/db"
	"github.com/hackgods/telehealth-scheduling/internal/logging"
	"github.com/hackgods/telehealth-scheduling/internal/meetinglink"
	"github.com/hackgods/telehealth-scheduling/internal/timeslot"
	"github.com/hackgods/telehealth-scheduling/internal/window"
)

const (
	doctorCount   = 50
	patientCount  = 2000
	linkCount     = 200
	slotsPerDay   = 6
	seedAheadDays = 14
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

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

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{})
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	doctorIDs, err := seedDoctors(ctx, pool, doctorCount)
	if err != nil {
		logger.Fatal("seed doctors", zap.Error(err))
	}
	logger.Info("doctors seeded", zap.Int("count", len(doctorIDs)))

	if err := seedPatients(ctx, pool, patientCount); err != nil {
		logger.Fatal("seed patients", zap.Error(err))
	}
	logger.Info("patients seeded", zap.Int("count", patientCount))

	slots, err := seedSlots(ctx, pool, doctorIDs, cfg.Location)
	if err != nil {
		logger.Fatal("seed time slots", zap.Error(err))
	}
	logger.Info("time slots seeded", zap.Int("count", slots))

	links := meetinglink.NewPool(meetinglink.NewPgRepository(pool), logger)
	urls := make([]string, 0, linkCount)
	for i := 0; i < linkCount; i++ {
		urls = append(urls, fmt.Sprintf("https://meet.example.com/%s", gofakeit.LetterN(10)))
	}
	added, err := links.Provision(ctx, urls, uuid.New)
	if err != nil {
		logger.Fatal("provision meeting links", zap.Error(err))
	}
	logger.Info("meeting links provisioned", zap.Int("added", added))

	logger.Info("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		specialty := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, user_id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, uuid.New(), "Dr. "+gofakeit.Name(), specialty)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, user_id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, uuid.New(), uuid.New(), gofakeit.Name(), gofakeit.Email())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}
	return nil
}

// seedSlots inserts half hour slots from 09:00 for the next two weeks directly
// through the repository, so they are bookable right away. Dates patients
// could not book are skipped.
func seedSlots(ctx context.Context, pool *pgxpool.Pool, doctorIDs []uuid.UUID, loc *time.Location) (int, error) {
	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	repo := timeslot.NewPgRepository(pool)
	count := 0
	for _, doctorID := range doctorIDs {
		for day := 2; day <= seedAheadDays; day++ {
			date := today.AddDate(0, 0, day)
			for i := 0; i < slotsPerDay; i++ {
				start := date.Add(9*time.Hour + time.Duration(i)*timeslot.MinDuration)
				if !window.Bookable(now, start) {
					continue
				}
				slot := timeslot.New(uuid.New(), doctorID, start, start.Add(timeslot.MinDuration), timeslot.TypeOnline, now)
				if err := repo.Insert(ctx, tx, slot); err != nil {
					return count, err
				}
				count++
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return count, err
	}
	return count, nil
}
