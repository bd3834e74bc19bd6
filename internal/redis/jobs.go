package redisclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const (
	jobScheduleKey = "jobs:schedule"
	jobDataKey     = "jobs:data"
)

// Job is a one shot task due at RunAt. Key is unique; scheduling a job under
// an existing key replaces it. Attempts counts failed runs of a job that was
// scheduled again after a failure.
type Job struct {
	Key      string            `json:"key"`
	RunAt    time.Time         `json:"run_at"`
	Kind     string            `json:"kind"`
	Payload  map[string]string `json:"payload,omitempty"`
	Attempts int               `json:"attempts,omitempty"`
}

// JobStore keeps scheduled jobs in a sorted set scored by due time, with the
// job bodies in a hash.
type JobStore struct {
	client redis.UniversalClient
}

func NewJobStore(client redis.UniversalClient) *JobStore {
	return &JobStore{client: client}
}

func (s *JobStore) CreateJob(ctx context.Context, job Job) error {
	if job.Key == "" {
		return errors.New("job key is required")
	}
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.Key, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, jobDataKey, job.Key, body)
		pipe.ZAdd(ctx, jobScheduleKey, redis.Z{Score: float64(job.RunAt.Unix()), Member: job.Key})
		return nil
	})
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", job.Key, err)
	}
	return nil
}

// CancelJob removes a scheduled job. It reports false when no such job was
// pending.
func (s *JobStore) CancelJob(ctx context.Context, key string) (bool, error) {
	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.ZRem(ctx, jobScheduleKey, key)
		pipe.HDel(ctx, jobDataKey, key)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("cancel job %s: %w", key, err)
	}
	return removed.Val() > 0, nil
}

// ClaimDue returns up to limit jobs due at or before now. A job is handed to
// exactly one caller: whoever removes it from the schedule owns it. A claimed
// job is gone from the store; callers that fail to run it schedule it again
// with CreateJob.
func (s *JobStore) ClaimDue(ctx context.Context, now time.Time, limit int64) ([]Job, error) {
	keys, err := s.client.ZRangeByScore(ctx, jobScheduleKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list due jobs: %w", err)
	}

	jobs := make([]Job, 0, len(keys))
	for _, key := range keys {
		n, err := s.client.ZRem(ctx, jobScheduleKey, key).Result()
		if err != nil {
			return jobs, fmt.Errorf("claim job %s: %w", key, err)
		}
		if n == 0 {
			continue
		}

		body, err := s.client.HGet(ctx, jobDataKey, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return jobs, fmt.Errorf("load job %s: %w", key, err)
		}
		if err := s.client.HDel(ctx, jobDataKey, key).Err(); err != nil {
			return jobs, fmt.Errorf("delete job %s: %w", key, err)
		}

		var job Job
		if err := json.Unmarshal(body, &job); err != nil {
			return jobs, fmt.Errorf("decode job %s: %w", key, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Pending returns the number of scheduled jobs.
func (s *JobStore) Pending(ctx context.Context) (int64, error) {
	return s.client.ZCard(ctx, jobScheduleKey).Result()
}
