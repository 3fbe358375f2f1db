// Package queue_publisher publishes pass lifecycle events to RabbitMQ.
// Errors are logged and returned to allow callers to ignore failures
// without interrupting the main request flow.
package queue_publisher

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/schoolsecure/hallpass/internal/queue"
)

// Publisher sends pass events to the broker at URL. A nil publisher or an
// empty URL disables publishing: every publish becomes a silent no-op, so
// the API runs fine without a broker in development.
type Publisher struct {
	URL string
}

func NewPublisher(url string) *Publisher { return &Publisher{URL: url} }

// PublishPassEvent publishes a PassEvent to the pass.events queue.
// Messages are marked persistent so they survive a broker restart. The
// connection is dialed per publish; pass traffic is low enough that the
// simplicity is worth more than a pooled channel.
func (p *Publisher) PublishPassEvent(ctx context.Context, event q.PassEvent) error {
	if p == nil || p.URL == "" {
		return nil
	}
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		q.PassQueueName, // name
		true,            // durable
		false,           // autoDelete
		false,           // exclusive
		false,           // noWait
		nil,             // args
	); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",              // default exchange
		q.PassQueueName, // routing key = queue name
		false,           // mandatory
		false,           // immediate
		pub,
	); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}

	return nil
}
