// Package service publishes domain events to RabbitMQ. Failures are logged
// and never interrupt the request that produced the event.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/henrythedev90/henrys-dog-adoption-agency/internal/queue"
	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/session"
)

const publishTimeout = 5 * time.Second

// PublishAuthEvent publishes event to the auth.events queue as a persistent
// JSON message. Any error is logged and returned so the caller may ignore it.
func PublishAuthEvent(ctx context.Context, url string, event q.AuthEvent, log *slog.Logger) error {
	conn, err := amqp.Dial(url)
	if err != nil {
		log.Warn("rabbitmq: dial failed", "err", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Warn("rabbitmq: channel open failed", "err", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(q.AuthEventsQueue, true, false, false, false, nil); err != nil {
		log.Warn("rabbitmq: queue declare failed", "err", err)
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Warn("rabbitmq: marshal event failed", "err", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", q.AuthEventsQueue, false, false, pub); err != nil {
		log.Warn("rabbitmq: publish failed", "err", err)
		return err
	}
	return nil
}

// Publisher is a session.EventSink backed by RabbitMQ. Each event is sent
// from its own goroutine so request latency never depends on the broker.
type Publisher struct {
	URL string
	Log *slog.Logger
	Now func() time.Time
}

var _ session.EventSink = (*Publisher)(nil)

func NewPublisher(url string, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{URL: url, Log: log, Now: time.Now}
}

func (p *Publisher) Publish(ctx context.Context, ev session.Event) {
	msg := toAuthEvent(ev, p.Now())
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		_ = PublishAuthEvent(ctx, p.URL, msg, p.Log.With("event", msg.Type))
	}()
}

func toAuthEvent(ev session.Event, at time.Time) q.AuthEvent {
	return q.AuthEvent{
		Type:       ev.Type,
		UserID:     ev.UserID,
		UserName:   ev.UserName,
		OccurredAt: at.UTC().Format(time.RFC3339),
	}
}
