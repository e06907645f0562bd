package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubCompleter struct {
	mu     sync.Mutex
	calls  int
	result int64
	err    error
}

func (s *stubCompleter) CompleteElapsedBookings(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.result, s.err
}

func (s *stubCompleter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestRunOnce(t *testing.T) {
	completer := &stubCompleter{result: 3}
	w := NewBookingCompletionWorker(completer, time.Minute)

	w.RunOnce(context.Background())
	w.RunOnce(context.Background())

	completer.err = errors.New("db down")
	w.RunOnce(context.Background())

	stats := w.GetStats()
	assert.Equal(t, int64(3), stats["runs"])
	assert.Equal(t, int64(6), stats["completed"])
	assert.Equal(t, int64(1), stats["failures"])
}

func TestStart_SweepsUntilCancelled(t *testing.T) {
	completer := &stubCompleter{}
	w := NewBookingCompletionWorker(completer, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return completer.Calls() >= 3 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
