package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/mysocial/shop-api/internal/queue"
)

// ResetNotifier hands a password reset off for delivery.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, ev queue.PasswordResetRequestedEvent) error
}

// QueuePublisher publishes reset events to RabbitMQ; a consumer sends the
// email.  Errors are logged and returned so callers can ignore them
// without interrupting the request.
type QueuePublisher struct {
	URL string
	Log *zap.Logger
}

func NewQueuePublisher(url string, log *zap.Logger) *QueuePublisher {
	return &QueuePublisher{URL: url, Log: log}
}

func (p *QueuePublisher) NotifyPasswordReset(ctx context.Context, ev queue.PasswordResetRequestedEvent) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		p.Log.Warn("rabbitmq: dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.Log.Warn("rabbitmq: channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		queue.PasswordResetQueue, // name
		true,                     // durable
		false,                    // autoDelete
		false,                    // exclusive
		false,                    // noWait
		nil,                      // args
	); err != nil {
		p.Log.Warn("rabbitmq: queue declare failed", zap.Error(err))
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.PasswordResetQueue, false, false, pub); err != nil {
		p.Log.Warn("rabbitmq: publish failed", zap.Error(err))
		return err
	}
	return nil
}

// DirectNotifier sends the email inline, for deployments without a broker.
type DirectNotifier struct {
	Mailer Mailer
}

func (n DirectNotifier) NotifyPasswordReset(ctx context.Context, ev queue.PasswordResetRequestedEvent) error {
	return DeliverResetEmail(ctx, n.Mailer, ev)
}
