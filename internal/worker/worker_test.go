package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unievents/backend/internal/emailsettings"
	"github.com/unievents/backend/internal/mailer"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/internal/reminders"
	"github.com/unievents/backend/pkg/queue"
)

type prefs struct {
	allow  bool
	reason string
	logs   []*models.EmailLog
}

func (p *prefs) ShouldSend(context.Context, uuid.UUID, models.NotificationType) (bool, string, error) {
	return p.allow, p.reason, nil
}

func (p *prefs) Log(_ context.Context, l *models.EmailLog) error {
	p.logs = append(p.logs, l)
	return nil
}

type outbox struct {
	enabled bool
	err     error
	sent    []mailer.Message
}

func (o *outbox) Enabled() bool { return o.enabled }

func (o *outbox) Send(_ context.Context, m mailer.Message) error {
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, m)
	return nil
}

type sweeps struct{ days []time.Time }

func (s *sweeps) Run(_ context.Context, today time.Time) (reminders.Result, error) {
	s.days = append(s.days, today)
	return reminders.Result{}, nil
}

func emailJob(t *testing.T) *queue.Job {
	t.Helper()
	eventID := uuid.New()
	job, err := queue.NewJob(queue.JobTypeEmail, queue.EmailPayload{
		NotificationType: string(models.NotifyEventApproved),
		RecipientID:      uuid.New(),
		RecipientEmail:   "org@campus.edu",
		RecipientName:    "Org",
		Subject:          "Event approved",
		Message:          "It is approved.",
		EventID:          &eventID,
	})
	require.NoError(t, err)
	return job
}

func TestEmailSent(t *testing.T) {
	pr, out := &prefs{allow: true}, &outbox{enabled: true}
	p := NewProcessor(pr, out, &sweeps{}, nil)
	p.now = func() time.Time { return time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC) }

	require.NoError(t, p.Process(context.Background(), emailJob(t)))

	require.Len(t, out.sent, 1)
	assert.Equal(t, "org@campus.edu", out.sent[0].To)
	assert.Contains(t, out.sent[0].Path, "/events/")
	require.Len(t, pr.logs, 1)
	assert.Equal(t, models.EmailLogStatusSent, pr.logs[0].Status)
	require.NotNil(t, pr.logs[0].SentAt)
	assert.Equal(t, 2025, pr.logs[0].SentAt.Year())
}

func TestEmailSkipped(t *testing.T) {
	pr, out := &prefs{allow: false, reason: emailsettings.SkipDisabledByUser}, &outbox{enabled: true}
	p := NewProcessor(pr, out, &sweeps{}, nil)

	require.NoError(t, p.Process(context.Background(), emailJob(t)))

	assert.Empty(t, out.sent)
	require.Len(t, pr.logs, 1)
	assert.Equal(t, models.EmailLogStatusSkipped, pr.logs[0].Status)
	assert.Equal(t, emailsettings.SkipDisabledByUser, pr.logs[0].ErrorMessage)

	pr.allow = true
	out.enabled = false
	require.NoError(t, p.Process(context.Background(), emailJob(t)))
	assert.Equal(t, models.EmailLogStatusSkipped, pr.logs[1].Status)
	assert.Equal(t, mailer.ErrNotConfigured.Error(), pr.logs[1].ErrorMessage)
}

func TestEmailFailureIsLoggedAndRetried(t *testing.T) {
	pr, out := &prefs{allow: true}, &outbox{enabled: true, err: errors.New("421 try later")}
	p := NewProcessor(pr, out, &sweeps{}, nil)

	err := p.Process(context.Background(), emailJob(t))

	require.Error(t, err)
	require.Len(t, pr.logs, 1)
	assert.Equal(t, models.EmailLogStatusFailed, pr.logs[0].Status)
	assert.Contains(t, pr.logs[0].ErrorMessage, "421")
}

func TestReminderJob(t *testing.T) {
	sw := &sweeps{}
	p := NewProcessor(&prefs{}, &outbox{}, sw, nil)
	job, err := queue.NewJob(queue.JobTypeReminderSweep, queue.ReminderSweepPayload{Date: "2025-03-14"})
	require.NoError(t, err)

	require.NoError(t, p.Process(context.Background(), job))
	require.Len(t, sw.days, 1)
	assert.Equal(t, "2025-03-14", sw.days[0].Format(models.DateLayout))

	job.Payload = []byte(`{"date":"14/03/2025"}`)
	assert.Error(t, p.Process(context.Background(), job))

	job.Type = "recording_upload"
	assert.Error(t, p.Process(context.Background(), job))
}

type chanQueue struct {
	mu      sync.Mutex
	jobs    chan *queue.Job
	retried []*queue.Job
}

func (q *chanQueue) Dequeue(ctx context.Context) (*queue.Job, error) {
	select {
	case j := <-q.jobs:
		return j, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *chanQueue) Retry(_ context.Context, job *queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.retried = append(q.retried, job)
	return nil
}

func TestRunnerRetriesFailedJobs(t *testing.T) {
	q := &chanQueue{jobs: make(chan *queue.Job, 2)}
	q.jobs <- emailJob(t)
	p := NewProcessor(&prefs{allow: true}, &outbox{enabled: true, err: errors.New("down")}, &sweeps{}, nil)
	r := NewRunner(q, p, nil)
	r.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.retried) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

type scheduler struct {
	claimed  map[string]bool
	enqueued []string
}

func (s *scheduler) ClaimOnce(_ context.Context, key string, _ time.Duration) (bool, error) {
	if s.claimed[key] {
		return false, nil
	}
	s.claimed[key] = true
	return true, nil
}

func (s *scheduler) EnqueueReminderSweep(_ context.Context, date string) error {
	s.enqueued = append(s.enqueued, date)
	return nil
}

func TestScheduleTodayOncePerDay(t *testing.T) {
	s := &scheduler{claimed: map[string]bool{}}
	ctx := context.Background()
	morning := time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC)

	require.NoError(t, ScheduleToday(ctx, s, morning))
	require.NoError(t, ScheduleToday(ctx, s, morning.Add(4*time.Hour)))
	require.NoError(t, ScheduleToday(ctx, s, morning.Add(24*time.Hour)))

	assert.Equal(t, []string{"2025-03-14", "2025-03-15"}, s.enqueued)
}
