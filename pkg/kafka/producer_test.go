package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages    []kafka.Message
	err         error
	hadDeadline bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	_, w.hadDeadline = ctx.Deadline()
	w.messages = append(w.messages, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error { return nil }

func TestProducer_SendMessage(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, time.Second)

	require.NoError(t, p.SendMessage(context.Background(), "workspace-3", map[string]string{"type": "booking.created"}))
	require.Len(t, w.messages, 1)
	assert.Equal(t, []byte("workspace-3"), w.messages[0].Key)
	assert.JSONEq(t, `{"type":"booking.created"}`, string(w.messages[0].Value))
	assert.True(t, w.hadDeadline)
	assert.NoError(t, p.Close())
}

func TestProducer_WriteError(t *testing.T) {
	p := NewProducerWithWriter(&fakeWriter{err: errors.New("leader not available")}, 0)

	err := p.SendMessage(context.Background(), "k", 1)
	assert.ErrorContains(t, err, "leader not available")
}
