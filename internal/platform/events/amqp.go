package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
)

// channel is the part of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	GetNextPublishSeqNo() uint64
	Close() error
}

// AMQPPublisher publishes persistent JSON messages to a durable queue on the
// default exchange and waits for the broker confirm of each one. Confirms are
// matched by delivery tag, so a late confirm for a publish that already gave
// up waiting is skipped rather than credited to the next message.
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       channel
	queue    string
	confirms <-chan amqp.Confirmation
	mu       sync.Mutex
}

// DialAMQP connects to the broker, declares the queue and enables publisher
// confirms.
func DialAMQP(url, queue string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}

	p := newAMQPPublisher(ch, queue, ch.NotifyPublish(make(chan amqp.Confirmation, 16)))
	p.conn = conn
	return p, nil
}

func newAMQPPublisher(ch channel, queue string, confirms <-chan amqp.Confirmation) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, queue: queue, confirms: confirms}
}

func (p *AMQPPublisher) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	msg := amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    evt.ID,
		Type:         evt.Type,
		Timestamp:    evt.OccurredAt,
		Body:         body,
		DeliveryMode: amqp.Persistent,
	}
	tag := p.ch.GetNextPublishSeqNo()
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", evt.Type, p.queue, err)
	}

	for {
		select {
		case confirmed, ok := <-p.confirms:
			if !ok {
				return fmt.Errorf("publish %s to %s: channel closed", evt.Type, p.queue)
			}
			if confirmed.DeliveryTag < tag {
				// stale confirm of an earlier publish whose caller stopped waiting
				continue
			}
			if confirmed.DeliveryTag > tag {
				return fmt.Errorf("publish %s to %s: confirm for tag %d skipped past %d",
					evt.Type, p.queue, confirmed.DeliveryTag, tag)
			}
			if !confirmed.Ack {
				return fmt.Errorf("publish %s to %s: message not confirmed", evt.Type, p.queue)
			}
			return nil
		case <-ctx.Done():
			return fmt.Errorf("publish %s to %s: %w", evt.Type, p.queue, ctx.Err())
		}
	}
}

func (p *AMQPPublisher) Close() error {
	if err := p.ch.Close(); err != nil {
		return err
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
