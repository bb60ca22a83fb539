package mq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"ideaflow/pkg/otel"
	"ideaflow/pkg/trace"
)

const traceHeader = "x-trace-id"

// Publisher publishes to the events exchange with publisher confirms.
// amqp091 channels are not safe for concurrent publishing, so calls are serialized.
type Publisher struct {
	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

func NewPublisher(url string) (*Publisher, error) {
	conn, ch, err := openChannel(url)
	if err != nil {
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	return &Publisher{
		conn:    conn,
		channel: ch,
	}, nil
}

func (p *Publisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// IsConnected checks if the publisher connection is still alive
func (p *Publisher) IsConnected() bool {
	if p.conn == nil || p.channel == nil {
		return false
	}
	return !p.conn.IsClosed() && !p.channel.IsClosed()
}

// PublishWithContext publishes an already-encoded body and waits for the broker confirm.
// messageID is used by consumers for deduplication; empty means none.
func (p *Publisher) PublishWithContext(ctx context.Context, routingKey, messageID string, body []byte) error {
	headers := amqp091.Table{}
	if traceID := trace.FromContext(ctx); traceID != "" {
		headers[traceHeader] = traceID
	}

	ctx, span := otel.MQPublishSpan(ctx, routingKey, ExchangeName, headers)
	defer span.End()

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Persistent,
		MessageId:    messageID,
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	confirm, err := p.channel.PublishWithDeferredConfirmWithContext(ctx, ExchangeName, routingKey, false, false, msg)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("wait confirm %s: %w", routingKey, err)
	}
	if !acked {
		return fmt.Errorf("broker nacked %s", routingKey)
	}
	return nil
}
