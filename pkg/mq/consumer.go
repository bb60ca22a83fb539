package mq

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"ideaflow/pkg/metrics"
	"ideaflow/pkg/otel"
	"ideaflow/pkg/trace"
)

// Delivery is what a MessageHandler sees of an AMQP message.
type Delivery struct {
	RoutingKey string
	MessageID  string
	Body       json.RawMessage
}

type MessageHandler func(ctx context.Context, d Delivery) error

// RetryTracker counts failed attempts per message across redeliveries.
type RetryTracker interface {
	Increment(ctx context.Context, key string) (int, error)
	Reset(ctx context.Context, key string) error
}

type outcome string

const (
	outcomeAck     outcome = "ack"
	outcomeRequeue outcome = "requeue"
	outcomeDLQ     outcome = "dlq"
)

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithRetry enables bounded retries; after maxRetries failed attempts the message goes to the DLQ.
func WithRetry(tracker RetryTracker, maxRetries int) ConsumerOption {
	return func(c *Consumer) {
		c.retries = tracker
		c.maxRetries = maxRetries
	}
}

// WithRetryable overrides which handler errors are worth retrying.
func WithRetryable(fn func(error) bool) ConsumerOption {
	return func(c *Consumer) {
		c.retryable = fn
	}
}

type Consumer struct {
	mu          sync.Mutex
	channel     *amqp091.Channel
	queue       amqp091.Queue
	routingKeys []string
	handler     MessageHandler
	conn        *amqp091.Connection
	logger      *zap.Logger
	tag         string

	retries    RetryTracker
	maxRetries int
	retryable  func(error) bool
}

// NewConsumer creates a durable queue bound to every routing key and its paired DLQ.
func NewConsumer(url, queueName string, routingKeys []string, logger *zap.Logger, opts ...ConsumerOption) (*Consumer, error) {
	conn, ch, err := openChannel(url)
	if err != nil {
		return nil, err
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	for _, key := range routingKeys {
		if err := ch.QueueBind(q.Name, key, ExchangeName, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to bind queue to %s: %w", key, err)
		}
	}

	if _, err := DeclareDLQQueue(ch, queueName); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if err := ch.Qos(10, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	logger.Info("Consumer initialized",
		zap.Strings("routing_keys", routingKeys),
		zap.String("queue", queueName),
		zap.String("exchange", ExchangeName),
	)

	c := &Consumer{
		conn:        conn,
		channel:     ch,
		queue:       q,
		routingKeys: routingKeys,
		logger:      logger,
		tag:         queueName + "-" + trace.GenerateTraceID()[:8],
		maxRetries:  3,
		retryable:   func(error) bool { return true },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

// IsConnected reports whether the underlying connection and channel are open.
func (c *Consumer) IsConnected() bool {
	if c.conn == nil || c.channel == nil {
		return false
	}
	return !c.conn.IsClosed() && !c.channel.IsClosed()
}

// Stop cancels the consumer; StartConsuming returns once in-flight deliveries drain.
func (c *Consumer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil && !c.channel.IsClosed() {
		if err := c.channel.Cancel(c.tag, false); err != nil {
			c.logger.Warn("Failed to cancel consumer", zap.String("queue", c.queue.Name), zap.Error(err))
		}
	}
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming starts consuming messages. This method blocks and should be called in a goroutine.
func (c *Consumer) StartConsuming() error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		c.tag,
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.Strings("routing_keys", c.routingKeys),
		zap.String("queue", c.queue.Name),
	)

	// every message ends acked, nacked or in the DLQ
	for msg := range deliveries {
		c.process(msg)
	}

	c.logger.Info("Consumer stopped", zap.String("queue", c.queue.Name))
	return nil
}

func (c *Consumer) process(msg amqp091.Delivery) {
	start := time.Now()

	ctx := context.Background()
	if traceID, ok := msg.Headers[traceHeader].(string); ok && traceID != "" {
		ctx = trace.WithContext(ctx, traceID)
	}
	ctx, _ = trace.Ensure(ctx)
	ctx, span := otel.MQConsumeSpan(ctx, msg.RoutingKey, c.queue.Name, msg.Headers)
	defer span.End()

	log := c.logger.With(
		zap.String("routing_key", msg.RoutingKey),
		zap.String("queue", c.queue.Name),
		zap.String("message_id", msg.MessageId),
		zap.String("trace_id", trace.FromContext(ctx)),
	)
	log.Debug("Received message", zap.Int("message_size", len(msg.Body)))

	handlerErr := c.invoke(ctx, msg)
	metrics.RecordMQConsumeLatency(msg.RoutingKey, c.queue.Name, time.Since(start))

	key := retryKey(c.queue.Name, msg)
	if handlerErr == nil {
		if c.retries != nil {
			if err := c.retries.Reset(ctx, key); err != nil {
				log.Warn("Failed to reset retry counter", zap.Error(err))
			}
		}
		c.settle(ctx, log, msg, outcomeAck, nil)
		return
	}

	span.RecordError(handlerErr)
	attempts := 1
	if c.retries != nil {
		n, err := c.retries.Increment(ctx, key)
		if err != nil {
			log.Warn("Failed to increment retry counter", zap.Error(err))
		} else {
			attempts = n
		}
	}

	result := decide(handlerErr, attempts, c.maxRetries, c.retries != nil, c.retryable)
	log.Error("Handler error",
		zap.Int("attempt", attempts),
		zap.String("outcome", string(result)),
		zap.Error(handlerErr),
	)
	c.settle(ctx, log, msg, result, handlerErr)
}

// invoke runs the handler and converts a panic into an error.
func (c *Consumer) invoke(ctx context.Context, msg amqp091.Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return c.handler(ctx, Delivery{
		RoutingKey: msg.RoutingKey,
		MessageID:  msg.MessageId,
		Body:       msg.Body,
	})
}

func (c *Consumer) settle(ctx context.Context, log *zap.Logger, msg amqp091.Delivery, result outcome, cause error) {
	metrics.IncrementMQConsumeResult(c.queue.Name, string(result))

	switch result {
	case outcomeAck:
		if err := msg.Ack(false); err != nil {
			log.Error("Failed to ack message", zap.Error(err))
		}
	case outcomeRequeue:
		if err := msg.Nack(false, true); err != nil {
			log.Error("Failed to nack message", zap.Error(err))
		}
	case outcomeDLQ:
		if err := publishToDLQ(ctx, c.channel, c.queue.Name, msg, cause); err != nil {
			log.Error("Failed to publish to DLQ, requeueing", zap.Error(err))
			_ = msg.Nack(false, true)
			return
		}
		if c.retries != nil {
			_ = c.retries.Reset(ctx, retryKey(c.queue.Name, msg))
		}
		if err := msg.Ack(false); err != nil {
			log.Error("Failed to ack dead-lettered message", zap.Error(err))
		}
	}
}

// decide picks what to do with a failed delivery.
// Without a retry tracker the message is requeued indefinitely.
func decide(err error, attempts, maxRetries int, tracked bool, retryable func(error) bool) outcome {
	if err == nil {
		return outcomeAck
	}
	if retryable != nil && !retryable(err) {
		return outcomeDLQ
	}
	if tracked && attempts >= maxRetries {
		return outcomeDLQ
	}
	return outcomeRequeue
}

func retryKey(queue string, msg amqp091.Delivery) string {
	id := msg.MessageId
	if id == "" {
		sum := sha256.Sum256(msg.Body)
		id = hex.EncodeToString(sum[:12])
	}
	return queue + ":" + id
}
