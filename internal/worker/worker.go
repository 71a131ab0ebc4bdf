// Package worker runs the background jobs: notification email delivery and the
// daily reminder sweep.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unievents/backend/internal/mailer"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/internal/reminders"
	"github.com/unievents/backend/pkg/queue"
)

// Preferences decides whether an email may be sent and records the outcome.
type Preferences interface {
	ShouldSend(ctx context.Context, userID uuid.UUID, typ models.NotificationType) (bool, string, error)
	Log(ctx context.Context, l *models.EmailLog) error
}

// Mailer delivers a rendered email.
type Mailer interface {
	Enabled() bool
	Send(ctx context.Context, msg mailer.Message) error
}

// Sweeper runs a reminder sweep.
type Sweeper interface {
	Run(ctx context.Context, today time.Time) (reminders.Result, error)
}

// Queue is the job source.
type Queue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Processor executes jobs.
type Processor struct {
	prefs   Preferences
	mail    Mailer
	sweeper Sweeper
	logger  *zap.Logger
	now     func() time.Time
}

// NewProcessor creates a job processor.
func NewProcessor(prefs Preferences, mail Mailer, sweeper Sweeper, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{prefs: prefs, mail: mail, sweeper: sweeper, logger: logger, now: time.Now}
}

// Process executes one job. A returned error means the job should be retried.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeEmail:
		var payload queue.EmailPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal email payload: %w", err)
		}
		return p.deliver(ctx, payload)
	case queue.JobTypeReminderSweep:
		var payload queue.ReminderSweepPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal reminder payload: %w", err)
		}
		today, err := time.Parse(models.DateLayout, payload.Date)
		if err != nil {
			return fmt.Errorf("reminder date %q: %w", payload.Date, err)
		}
		_, err = p.sweeper.Run(ctx, today)
		return err
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (p *Processor) deliver(ctx context.Context, payload queue.EmailPayload) error {
	typ := models.NotificationType(payload.NotificationType)
	recipient := payload.RecipientID
	entry := &models.EmailLog{
		RecipientID:      &recipient,
		RecipientEmail:   payload.RecipientEmail,
		NotificationType: typ,
		Subject:          payload.Subject,
		EventID:          payload.EventID,
		MeetingID:        payload.MeetingID,
	}

	ok, reason, err := p.prefs.ShouldSend(ctx, payload.RecipientID, typ)
	if err != nil {
		return fmt.Errorf("load email preferences: %w", err)
	}
	switch {
	case !ok:
		entry.Status, entry.ErrorMessage = models.EmailLogStatusSkipped, reason
	case !p.mail.Enabled():
		entry.Status, entry.ErrorMessage = models.EmailLogStatusSkipped, mailer.ErrNotConfigured.Error()
	default:
		sendErr := p.mail.Send(ctx, mailer.Message{
			To:            payload.RecipientEmail,
			RecipientName: payload.RecipientName,
			Subject:       payload.Subject,
			Body:          payload.Message,
			Details:       payload.Details,
			Path:          linkPath(payload),
		})
		if sendErr != nil {
			entry.Status, entry.ErrorMessage = models.EmailLogStatusFailed, sendErr.Error()
			p.record(ctx, entry)
			return sendErr
		}
		at := p.now().UTC()
		entry.Status, entry.SentAt = models.EmailLogStatusSent, &at
	}
	p.record(ctx, entry)
	return nil
}

func (p *Processor) record(ctx context.Context, entry *models.EmailLog) {
	if err := p.prefs.Log(ctx, entry); err != nil {
		p.logger.Error("write email log failed", zap.String("to", entry.RecipientEmail), zap.Error(err))
	}
	p.logger.Info("email processed", zap.String("to", entry.RecipientEmail),
		zap.String("type", string(entry.NotificationType)), zap.String("status", entry.Status))
}

func linkPath(payload queue.EmailPayload) string {
	switch {
	case payload.MeetingID != nil:
		return "/meetings/" + payload.MeetingID.String()
	case payload.EventID != nil:
		return "/events/" + payload.EventID.String()
	}
	return ""
}

// Runner drives a Processor from a queue.
type Runner struct {
	queue     Queue
	processor *Processor
	backoff   time.Duration
	logger    *zap.Logger
}

// NewRunner creates a worker loop.
func NewRunner(q Queue, p *Processor, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{queue: q, processor: p, backoff: queue.RetryBackoff, logger: logger}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (r *Runner) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("worker stopping")
			return
		default:
		}

		job, err := r.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}
			r.logger.Warn("dequeue error", zap.Error(err))
			r.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		r.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := r.processor.Process(ctx, job); err != nil {
			r.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := r.queue.Retry(ctx, job); reErr != nil {
				r.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			r.sleep(ctx)
		}
	}
}

func (r *Runner) sleep(ctx context.Context) {
	t := time.NewTimer(r.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Scheduling enqueues the daily reminder sweep.
type Scheduling interface {
	ClaimOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	EnqueueReminderSweep(ctx context.Context, date string) error
}

// ScheduleReminders checks every interval whether today's sweep has been
// enqueued by any worker and enqueues it if not.
func ScheduleReminders(ctx context.Context, s Scheduling, interval time.Duration, now func() time.Time, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		if err := ScheduleToday(ctx, s, now()); err != nil {
			logger.Warn("schedule reminder sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

// ScheduleToday enqueues the sweep for the day of now unless already claimed.
func ScheduleToday(ctx context.Context, s Scheduling, now time.Time) error {
	date := now.UTC().Format(models.DateLayout)
	claimed, err := s.ClaimOnce(ctx, "reminders:sweep:"+date, 48*time.Hour)
	if err != nil || !claimed {
		return err
	}
	return s.EnqueueReminderSweep(ctx, date)
}
