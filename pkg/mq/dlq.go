package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	DLQExchangeName = "events.dlq"
)

// DeclareDLQExchange declares the dead letter exchange.
func DeclareDLQExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		DLQExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
}

// DeclareDLQQueue declares the dead letter queue paired with a work queue.
// Dead letters are routed by the name of the queue they failed in.
func DeclareDLQQueue(ch *amqp091.Channel, queueName string) (amqp091.Queue, error) {
	dlqName := fmt.Sprintf("%s.dlq", queueName)

	q, err := ch.QueueDeclare(
		dlqName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to declare DLQ queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, queueName, DLQExchangeName, false, nil); err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to bind DLQ queue: %w", err)
	}

	return q, nil
}

// publishToDLQ republishes a failed delivery to the dead letter exchange.
func publishToDLQ(ctx context.Context, ch *amqp091.Channel, queue string, d amqp091.Delivery, cause error) error {
	headers := amqp091.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers["x-original-error"] = cause.Error()
	headers["x-original-routing-key"] = d.RoutingKey
	headers["x-failed-at"] = time.Now().UTC().Format(time.RFC3339)

	return ch.PublishWithContext(
		ctx,
		DLQExchangeName,
		queue,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         d.Body,
			DeliveryMode: amqp091.Persistent,
			MessageId:    d.MessageId,
			Headers:      headers,
		},
	)
}
