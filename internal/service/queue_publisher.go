// Package service holds adapters between the scheduler and external systems.
package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/iliyamo/restaurant-reservation/internal/queue"
)

// QueuePublisher publishes reservation events to the durable
// reservation.events queue.  Each call dials its own connection so a broker
// outage never leaves a broken connection behind; failures are logged and
// returned for the caller to ignore.
type QueuePublisher struct {
	url string
	log zerolog.Logger
}

// NewQueuePublisher returns a publisher for the broker at url.
func NewQueuePublisher(url string, log zerolog.Logger) *QueuePublisher {
	return &QueuePublisher{url: url, log: log.With().Str("component", "reservation-publisher").Logger()}
}

// Publish sends ev as a persistent JSON message on the default exchange.
func (p *QueuePublisher) Publish(ctx context.Context, ev queue.ReservationEvent) error {
	msg, err := newPublishing(ev)
	if err != nil {
		p.log.Error().Err(err).Msg("marshal event")
		return err
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(2 * time.Second)})
	if err != nil {
		p.log.Warn().Err(err).Msg("dial broker")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn().Err(err).Msg("open channel")
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue.ReservationQueueName, true, false, false, false, nil); err != nil {
		p.log.Warn().Err(err).Msg("declare queue")
		return err
	}
	if err := ch.PublishWithContext(ctx, "", queue.ReservationQueueName, false, false, msg); err != nil {
		p.log.Warn().Err(err).Str("event_id", ev.EventID).Msg("publish")
		return err
	}
	p.log.Debug().Str("event_id", ev.EventID).Str("type", ev.Type).Uint64("reservation_id", ev.ReservationID).Msg("published")
	return nil
}

func newPublishing(ev queue.ReservationEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Type:         ev.Type,
		Timestamp:    ev.OccurredAt,
		Body:         body,
	}, nil
}
