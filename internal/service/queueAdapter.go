package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gabrie-lhilarion/spacemania/internal/entity"
	"github.com/gabrie-lhilarion/spacemania/pkg/queue"
)

var eventTaskTypes = map[entity.BookingEventType]queue.TaskType{
	entity.BookingEventCreated:   queue.TaskTypeBookingCreated,
	entity.BookingEventCancelled: queue.TaskTypeBookingCancelled,
}

// QueueAdapter publishes booking events as tasks on a queue.Queue.
type QueueAdapter struct {
	queue queue.Queue
}

func NewQueueAdapter(q queue.Queue) *QueueAdapter {
	return &QueueAdapter{queue: q}
}

func (a *QueueAdapter) Publish(ctx context.Context, event *entity.BookingEvent) error {
	task, err := EventToTask(event)
	if err != nil {
		return err
	}
	return a.queue.Publish(ctx, task)
}

// EventToTask encodes a booking event as a queue task.
func EventToTask(event *entity.BookingEvent) (*queue.Task, error) {
	taskType, ok := eventTaskTypes[event.Type]
	if !ok {
		return nil, fmt.Errorf("unknown booking event type %q", event.Type)
	}

	return &queue.Task{
		ID:   event.ID,
		Type: taskType,
		Data: map[string]interface{}{
			"event_type":   string(event.Type),
			"booking_id":   event.BookingID,
			"user_id":      event.UserID,
			"workspace_id": event.WorkspaceID,
			"status":       string(event.Status),
			"start_time":   event.StartTime.UTC().Format(time.RFC3339Nano),
			"end_time":     event.EndTime.UTC().Format(time.RFC3339Nano),
			"attendees":    event.Attendees,
			"occurred_at":  event.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
	}, nil
}

// TaskToEvent decodes a task produced by EventToTask.
func TaskToEvent(task *queue.Task) (*entity.BookingEvent, error) {
	eventType := entity.BookingEventType(task.GetString("event_type"))
	if expected, ok := eventTaskTypes[eventType]; !ok || expected != task.Type {
		return nil, fmt.Errorf("task %s is not a booking event", task.ID)
	}

	status, err := entity.ParseBookingStatus(task.GetString("status"))
	if err != nil {
		return nil, err
	}

	event := &entity.BookingEvent{
		ID:          task.ID,
		Type:        eventType,
		BookingID:   task.GetInt64("booking_id"),
		UserID:      task.GetInt64("user_id"),
		WorkspaceID: task.GetInt64("workspace_id"),
		Status:      status,
		StartTime:   task.GetTime("start_time"),
		EndTime:     task.GetTime("end_time"),
		Attendees:   task.GetInt("attendees"),
		OccurredAt:  task.GetTime("occurred_at"),
	}
	if event.BookingID == 0 {
		return nil, fmt.Errorf("task %s has no booking id", task.ID)
	}
	return event, nil
}

// NotificationHandler returns a queue handler that decodes booking events
// and passes them to the notifier. Undecodable tasks fail permanently.
func NotificationHandler(notifier Notifier) func(*queue.Task) error {
	return func(task *queue.Task) error {
		event, err := TaskToEvent(task)
		if err != nil {
			return queue.Permanent(err)
		}
		return notifier.Notify(context.Background(), event)
	}
}
