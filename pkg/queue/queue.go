package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueArchive is the Redis list key for reservation archival jobs.
	QueueArchive = "worker:archive"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
	// PollTimeout bounds a single blocking pop so workers notice shutdown.
	PollTimeout = 5 * time.Second
	// PendingTTL bounds how long an un-acked archive job suppresses duplicates.
	PendingTTL = 24 * time.Hour

	pendingPrefix = "worker:archive:pending:"
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeArchive JobType = "reservation_archive"
)

// ArchivePayload is the payload for archival jobs.
type ArchivePayload struct {
	ReservationID uuid.UUID `json:"reservation_id"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// Stats reports queue depths.
type Stats struct {
	Pending     int64 `json:"pending"`
	DeadLetters int64 `json:"dead_letters"`
}

func pendingKey(reservationID uuid.UUID) string {
	return pendingPrefix + reservationID.String()
}

// EnqueueArchive enqueues archival of a terminal reservation. A reservation that
// already has an un-acked job is not enqueued twice.
func (q *Queue) EnqueueArchive(ctx context.Context, reservationID uuid.UUID) error {
	fresh, err := q.client.SetNX(ctx, pendingKey(reservationID), time.Now().Unix(), PendingTTL).Result()
	if err != nil {
		return fmt.Errorf("mark pending: %w", err)
	}
	if !fresh {
		q.logger.Debug("archive job already pending", zap.String("reservation_id", reservationID.String()))
		return nil
	}

	body, err := json.Marshal(ArchivePayload{ReservationID: reservationID})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      JobTypeArchive,
		Payload:   body,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, QueueArchive, raw).Err(); err != nil {
		q.client.Del(ctx, pendingKey(reservationID))
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued archive job", zap.String("job_id", job.ID), zap.String("reservation_id", reservationID.String()))
	return nil
}

// Dequeue waits up to PollTimeout for a job. A nil job with nil error means nothing arrived.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	result, err := q.client.BLPop(ctx, PollTimeout, QueueArchive).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return q.Ack(ctx, job)
	}
	if err := q.client.RPush(ctx, QueueArchive, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// Ack clears the duplicate guard of a finished archive job.
func (q *Queue) Ack(ctx context.Context, job *Job) error {
	if job.Type != JobTypeArchive {
		return nil
	}
	var payload ArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil
	}
	return q.client.Del(ctx, pendingKey(payload.ReservationID)).Err()
}

// Stats returns the archive queue and dead-letter depths.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	pipe := q.client.Pipeline()
	pending := pipe.LLen(ctx, QueueArchive)
	dead := pipe.LLen(ctx, QueueDLQ)
	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return Stats{Pending: pending.Val(), DeadLetters: dead.Val()}, nil
}
