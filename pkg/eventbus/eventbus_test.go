package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestPublishKeysByEvent(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{w: w, topic: "event-lifecycle"}
	id := uuid.New()

	require.NoError(t, p.Publish(context.Background(), Message{Type: "event_approved", EventID: id, Status: "approved"}))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, id.String(), string(w.msgs[0].Key))
	var m Message
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &m))
	assert.Equal(t, "approved", m.Status)
	assert.False(t, m.OccurredAt.IsZero())
}

func TestPublishWrapsWriterError(t *testing.T) {
	boom := errors.New("broker down")
	p := &Publisher{w: &fakeWriter{err: boom}, topic: "event-lifecycle"}
	err := p.Publish(context.Background(), Message{EventID: uuid.New()})
	assert.ErrorIs(t, err, boom)
}

func TestDisabledPublisherIsNoop(t *testing.T) {
	p := New(nil, "event-lifecycle", nil)
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Publish(context.Background(), Message{}))
	assert.NoError(t, p.Close())
}
