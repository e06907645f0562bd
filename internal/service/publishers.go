package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gabrie-lhilarion/spacemania/internal/entity"
	"github.com/sirupsen/logrus"
)

// RabbitSender is satisfied by *rabbitmq.Publisher.
type RabbitSender interface {
	Publish(ctx context.Context, routingKey string, message interface{}) error
}

// KafkaSender is satisfied by *kafka.Producer.
type KafkaSender interface {
	SendMessage(ctx context.Context, key string, message interface{}) error
}

// RabbitPublisher routes each event by its type, e.g. "booking.created".
type RabbitPublisher struct {
	sender RabbitSender
}

func NewRabbitPublisher(sender RabbitSender) *RabbitPublisher {
	return &RabbitPublisher{sender: sender}
}

func (p *RabbitPublisher) Publish(ctx context.Context, event *entity.BookingEvent) error {
	return p.sender.Publish(ctx, string(event.Type), event)
}

// KafkaPublisher keys events by workspace so one workspace's history stays ordered.
type KafkaPublisher struct {
	sender KafkaSender
}

func NewKafkaPublisher(sender KafkaSender) *KafkaPublisher {
	return &KafkaPublisher{sender: sender}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event *entity.BookingEvent) error {
	return p.sender.SendMessage(ctx, fmt.Sprintf("workspace-%d", event.WorkspaceID), event)
}

// MultiPublisher fans an event out to every configured publisher. Every
// publisher is attempted; failures are joined.
type MultiPublisher []EventPublisher

func (m MultiPublisher) Publish(ctx context.Context, event *entity.BookingEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier records events in the application log. Delivery channels
// plug in behind the Notifier interface.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, event *entity.BookingEvent) error {
	logrus.WithFields(logrus.Fields{
		"event_id":     event.ID,
		"event_type":   event.Type,
		"booking_id":   event.BookingID,
		"user_id":      event.UserID,
		"workspace_id": event.WorkspaceID,
		"status":       event.Status,
	}).Info("Booking notification")
	return nil
}
