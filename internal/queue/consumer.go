// Package queue contains the background consumer that listens to the
// pass.events queue and writes structured logs to logs/passes.log.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartPassEventConsumer connects to RabbitMQ, declares the pass.events
// queue (durable), and starts consuming messages. Each message is appended
// to logs/passes.log in a single-line, human-friendly format. The function
// runs a reconnect loop and keeps running across broker restarts, logging
// any processing errors while rejecting the offending message so the
// server continues operating. It returns nil once ctx is cancelled.
// An empty URL disables the consumer.
func StartPassEventConsumer(ctx context.Context, url string) error {
	if url == "" {
		log.Printf("pass-consumer: no broker URL configured, consumer disabled")
		return nil
	}

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return nil
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("pass-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleepCtx(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(ctx, conn); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("pass-consumer: consume loop ended: %v; reconnecting", err)
			if !sleepCtx(ctx, 2*time.Second) {
				return nil
			}
			continue
		}
	}
}

// sleepCtx waits for d or until ctx is cancelled, reporting false on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("pass-consumer: set QoS failed: %v", err)
	}

	_, err = ch.QueueDeclare(PassQueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(PassQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	// Closing the connection ends the deliveries channel, so a blocked
	// range below wakes up when ctx is cancelled.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for d := range msgs {
		if err := handleMessage(d.Body); err != nil {
			log.Printf("pass-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte) error {
	var ev PassEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "passes.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	flags := ""
	if ev.IsSummons {
		flags = " | summons"
	}
	if ev.IsEarlyRelease {
		flags += " | early_release"
	}

	line := fmt.Sprintf("[%s] %s | pass_id=%d | school_id=%d | student_id=%d | actor_id=%d | location_id=%d | status=%s%s | event_id=%s\n",
		ev.OccurredAt, ev.Type, ev.PassID, ev.SchoolID, ev.StudentID, ev.ActorID, ev.LocationID, ev.Status, flags, ev.EventID)

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
