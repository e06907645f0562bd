package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, maxRetries int) (*RedisQueue, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := DefaultRedisQueueConfig()
	cfg.MaxRetries = maxRetries
	cfg.BaseDelay = 0
	cfg.QueueTimeout = time.Second

	return NewRedisQueue(client, cfg, nil, nil), client
}

func bookingTask() *Task {
	return &Task{
		ID:   "booking_created_1",
		Type: TaskTypeBookingCreated,
		Data: map[string]interface{}{"booking_id": int64(1), "status": "confirmed"},
	}
}

func TestRedisQueue_PublishAndProcess(t *testing.T) {
	ctx := context.Background()
	q, client := newTestQueue(t, 3)

	require.NoError(t, q.Publish(ctx, bookingTask()))
	assert.Equal(t, int64(1), client.LLen(ctx, q.mainQueue).Val())

	var got *Task
	taken, err := q.ProcessNext(ctx, func(task *Task) error {
		got = task
		return nil
	})
	require.NoError(t, err)
	assert.True(t, taken)
	require.NotNil(t, got)
	assert.Equal(t, TaskTypeBookingCreated, got.Type)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, int64(1), got.GetInt64("booking_id"))
	assert.Equal(t, "confirmed", got.GetString("status"))

	assert.Zero(t, client.LLen(ctx, q.processingQueue).Val())
	assert.Zero(t, client.LLen(ctx, q.mainQueue).Val())
}

func TestRedisQueue_DelayedTasks(t *testing.T) {
	ctx := context.Background()
	q, client := newTestQueue(t, 3)

	task := bookingTask()
	task.ExecuteAt = time.Now().Add(time.Hour)
	require.NoError(t, q.Publish(ctx, task))
	assert.Equal(t, int64(1), client.ZCard(ctx, q.delayedQueue).Val())

	moved, err := q.MoveReadyDelayedTasks(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, moved)

	moved, err = q.MoveReadyDelayedTasks(ctx, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, moved)
	assert.Zero(t, client.ZCard(ctx, q.delayedQueue).Val())
	assert.Equal(t, int64(1), client.LLen(ctx, q.mainQueue).Val())
}

func TestRedisQueue_RetryThenDLQ(t *testing.T) {
	ctx := context.Background()
	q, client := newTestQueue(t, 2)

	require.NoError(t, q.Publish(ctx, bookingTask()))

	failing := func(*Task) error { return errors.New("broker unavailable") }

	taken, err := q.ProcessNext(ctx, failing)
	require.NoError(t, err)
	assert.True(t, taken)
	assert.Equal(t, int64(1), client.LLen(ctx, q.mainQueue).Val(), "first failure is rescheduled")

	_, err = q.ProcessNext(ctx, failing)
	require.NoError(t, err)
	assert.Zero(t, client.LLen(ctx, q.mainQueue).Val())

	failed, err := q.dlqHandler.GetFailedTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 2, failed[0].Attempts)
	assert.Equal(t, "broker unavailable", failed[0].Error)

	stats, err := q.GetQueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.DLQ)

	require.NoError(t, q.dlqHandler.RequeueFailedTask(ctx, "booking_created_1"))
	assert.Equal(t, int64(1), client.LLen(ctx, q.mainQueue).Val())
	assert.ErrorIs(t, q.dlqHandler.RequeueFailedTask(ctx, "booking_created_1"), ErrTaskNotFound)
}

func TestRedisQueue_CancelledConsumerKeepsUnsettledTask(t *testing.T) {
	q, client := newTestQueue(t, 3)
	bg := context.Background()

	require.NoError(t, q.Publish(bg, bookingTask()))
	ctx, cancel := context.WithCancel(bg)
	taken, err := q.ProcessNext(ctx, func(*Task) error {
		cancel()
		return nil
	})
	require.NoError(t, err)
	assert.True(t, taken)
	assert.Zero(t, client.LLen(bg, q.processingQueue).Val(), "handled task is removed after cancellation")

	require.NoError(t, q.Publish(bg, bookingTask()))
	ctx, cancel = context.WithCancel(bg)
	_, err = q.ProcessNext(ctx, func(*Task) error {
		cancel()
		return errors.New("broker unavailable")
	})
	assert.Error(t, err, "retry cannot be scheduled on a cancelled context")
	assert.Equal(t, int64(1), client.LLen(bg, q.processingQueue).Val())
	assert.Zero(t, client.LLen(bg, q.mainQueue).Val())

	handled := make(chan *Task, 1)
	subCtx, stop := context.WithCancel(bg)
	defer stop()
	require.NoError(t, q.Subscribe(subCtx, func(task *Task) error {
		handled <- task
		return nil
	}))
	defer q.Close()

	select {
	case task := <-handled:
		assert.Equal(t, "booking_created_1", task.ID)
	case <-time.After(3 * time.Second):
		t.Fatal("task left in the processing queue was not redelivered")
	}
}

func TestRedisQueue_PermanentFailureRecordedAfterCancellation(t *testing.T) {
	q, client := newTestQueue(t, 3)
	bg := context.Background()

	require.NoError(t, q.Publish(bg, bookingTask()))
	ctx, cancel := context.WithCancel(bg)
	_, err := q.ProcessNext(ctx, func(*Task) error {
		cancel()
		return Permanent(errors.New("unknown task payload"))
	})
	require.NoError(t, err)

	assert.Zero(t, client.LLen(bg, q.processingQueue).Val())
	failed, err := q.dlqHandler.GetFailedTasks(bg, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "booking_created_1", failed[0].Task.ID)
}

func TestRedisQueue_RequeueProcessing(t *testing.T) {
	ctx := context.Background()
	q, client := newTestQueue(t, 3)

	require.NoError(t, client.LPush(ctx, q.processingQueue, "a", "b").Err())

	moved, err := q.RequeueProcessing(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)
	assert.Zero(t, client.LLen(ctx, q.processingQueue).Val())
	assert.Equal(t, int64(2), client.LLen(ctx, q.mainQueue).Val())

	moved, err = q.RequeueProcessing(ctx)
	require.NoError(t, err)
	assert.Zero(t, moved)
}

func TestRedisQueue_PermanentFailureSkipsRetry(t *testing.T) {
	ctx := context.Background()
	q, client := newTestQueue(t, 5)

	require.NoError(t, q.Publish(ctx, bookingTask()))

	_, err := q.ProcessNext(ctx, func(*Task) error {
		return Permanent(errors.New("unknown task payload"))
	})
	require.NoError(t, err)
	assert.Zero(t, client.LLen(ctx, q.mainQueue).Val())

	dlqStats, err := q.dlqHandler.GetDLQStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dlqStats.QueueSize)
	assert.False(t, dlqStats.NewestFailure.IsZero())
}

func TestRedisQueue_CorruptedPayloadGoesToDLQ(t *testing.T) {
	ctx := context.Background()
	q, client := newTestQueue(t, 3)

	require.NoError(t, client.LPush(ctx, q.mainQueue, "not json").Err())

	called := false
	taken, err := q.ProcessNext(ctx, func(*Task) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, taken)
	assert.False(t, called)

	failed, err := q.dlqHandler.GetFailedTasks(ctx, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, TaskType("corrupted"), failed[0].Task.Type)
	assert.Equal(t, "not json", failed[0].Task.GetString("raw_data"))
}

func TestRetryManager(t *testing.T) {
	rm := NewRetryManager(3, 100*time.Millisecond)

	retry, delay := rm.ShouldRetry(&Task{Attempts: 1, MaxRetries: 3}, errors.New("timeout"))
	assert.True(t, retry)
	assert.GreaterOrEqual(t, delay, 75*time.Millisecond)
	assert.LessOrEqual(t, delay, 125*time.Millisecond)

	retry, _ = rm.ShouldRetry(&Task{Attempts: 3, MaxRetries: 3}, errors.New("timeout"))
	assert.False(t, retry)

	retry, _ = rm.ShouldRetry(&Task{Attempts: 1}, Permanent(errors.New("bad payload")))
	assert.False(t, retry)

	for attempt := 1; attempt < 10; attempt++ {
		_, delay := rm.ShouldRetry(&Task{Attempts: attempt, MaxRetries: 20}, errors.New("x"))
		assert.LessOrEqual(t, delay, 1600*time.Millisecond)
	}
}
