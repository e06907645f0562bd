package queue

import (
	"context"
)

// Queue is a durable task queue with delayed delivery.
type Queue interface {
	Publish(ctx context.Context, task *Task) error
	Subscribe(ctx context.Context, handler func(*Task) error) error
	Close() error
}
