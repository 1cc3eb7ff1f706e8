package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/stay-reservation/internal/model"
	"github.com/iliyamo/stay-reservation/internal/ranking"
)

// Publisher sends events to RabbitMQ. Each publish dials its own
// connection; volumes are low and this keeps the publisher stateless.
// Errors are logged and returned so callers may ignore them.
type Publisher struct {
	url    string
	logger *logrus.Logger
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, logger *logrus.Logger) *Publisher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Publisher{url: url, logger: logger}
}

// PublishBookingConfirmed implements booking.Publisher.
func (p *Publisher) PublishBookingConfirmed(ctx context.Context, b *model.Booking, l *model.Listing) error {
	return p.publish(ctx, BookingConfirmedQueue, NewBookingConfirmedEvent(b, l))
}

// PublishHostNotification implements ranking.Sink.
func (p *Publisher) PublishHostNotification(ctx context.Context, n ranking.Notification) error {
	return p.publish(ctx, HostNotificationQueue, n)
}

func (p *Publisher) publish(ctx context.Context, queue string, event any) error {
	log := p.logger.WithField("queue", queue)

	body, err := json.Marshal(event)
	if err != nil {
		log.WithError(err).Error("marshal event failed")
		return err
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.WithError(err).Warn("rabbitmq dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.WithError(err).Warn("rabbitmq channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		log.WithError(err).Warn("rabbitmq queue declare failed")
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		log.WithError(err).Warn("rabbitmq publish failed")
		return err
	}
	log.WithField("message_id", pub.MessageId).Debug("event published")
	return nil
}
