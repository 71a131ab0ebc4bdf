package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueEmails is the Redis list key for email jobs.
	QueueEmails = "worker:emails"
	// QueueReminders is the Redis list key for reminder sweep jobs.
	QueueReminders = "worker:reminders"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
	// PollTimeout bounds one blocking dequeue so the worker can notice shutdown.
	PollTimeout = 5 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeEmail         JobType = "email"
	JobTypeReminderSweep JobType = "reminder_sweep"
)

// EmailPayload is one notification email to render and send.
type EmailPayload struct {
	NotificationType string            `json:"notification_type"`
	RecipientID      uuid.UUID         `json:"recipient_id"`
	RecipientEmail   string            `json:"recipient_email"`
	RecipientName    string            `json:"recipient_name"`
	Subject          string            `json:"subject"`
	Message          string            `json:"message"`
	EventID          *uuid.UUID        `json:"event_id,omitempty"`
	MeetingID        *uuid.UUID        `json:"meeting_id,omitempty"`
	Details          map[string]string `json:"details,omitempty"`
}

// ReminderSweepPayload asks the worker to run the reminder sweep as of Date (YYYY-MM-DD).
type ReminderSweepPayload struct {
	Date string `json:"date"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// QueueFor returns the list key holding jobs of type t.
func QueueFor(t JobType) string {
	if t == JobTypeReminderSweep {
		return QueueReminders
	}
	return QueueEmails
}

// NewJob wraps payload in a job envelope.
func NewJob(t JobType, payload interface{}) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Job{
		ID:        uuid.New().String(),
		Type:      t,
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	}, nil
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

func (q *Queue) push(ctx context.Context, key string, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	return nil
}

// EnqueueEmail enqueues an email job.
func (q *Queue) EnqueueEmail(ctx context.Context, payload EmailPayload) error {
	job, err := NewJob(JobTypeEmail, payload)
	if err != nil {
		return err
	}
	if err := q.push(ctx, QueueEmails, job); err != nil {
		return err
	}
	q.logger.Debug("enqueued email job", zap.String("job_id", job.ID), zap.String("notification_type", payload.NotificationType))
	return nil
}

// EnqueueReminderSweep enqueues a reminder sweep for events on date.
func (q *Queue) EnqueueReminderSweep(ctx context.Context, date string) error {
	job, err := NewJob(JobTypeReminderSweep, ReminderSweepPayload{Date: date})
	if err != nil {
		return err
	}
	if err := q.push(ctx, QueueReminders, job); err != nil {
		return err
	}
	q.logger.Debug("enqueued reminder sweep", zap.String("job_id", job.ID), zap.String("date", date))
	return nil
}

// Dequeue waits up to PollTimeout for a job on any queue. It returns a nil
// job when nothing arrived.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	result, err := q.client.BLPop(ctx, PollTimeout, QueueReminders, QueueEmails).Result()
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
		q.logger.Warn("invalid job payload", zap.String("queue", result[0]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	if job.Attempt >= MaxRetries {
		if err := q.push(ctx, QueueDLQ, job); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.push(ctx, QueueFor(job.Type), job); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// ClaimOnce sets key if absent and reports whether this caller set it. Workers
// use it so that only one of them schedules a given daily job.
func (q *Queue) ClaimOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := q.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	return ok, nil
}
