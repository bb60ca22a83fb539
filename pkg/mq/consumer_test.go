package mq

import (
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	errBoom := errors.New("boom")
	errFatal := errors.New("fatal")
	retryable := func(err error) bool { return !errors.Is(err, errFatal) }

	tests := []struct {
		name       string
		err        error
		attempts   int
		maxRetries int
		tracked    bool
		want       outcome
	}{
		{"success", nil, 0, 3, true, outcomeAck},
		{"first failure requeues", errBoom, 1, 3, true, outcomeRequeue},
		{"last allowed attempt goes to dlq", errBoom, 3, 3, true, outcomeDLQ},
		{"non retryable skips retries", errFatal, 1, 3, true, outcomeDLQ},
		{"untracked always requeues", errBoom, 10, 3, false, outcomeRequeue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decide(tt.err, tt.attempts, tt.maxRetries, tt.tracked, retryable))
		})
	}
}

func TestRetryKey(t *testing.T) {
	withID := amqp091.Delivery{MessageId: "evt-1", Body: []byte(`{}`)}
	assert.Equal(t, "q:evt-1", retryKey("q", withID))

	a := amqp091.Delivery{Body: []byte(`{"a":1}`)}
	b := amqp091.Delivery{Body: []byte(`{"a":2}`)}
	assert.Equal(t, retryKey("q", a), retryKey("q", a))
	assert.NotEqual(t, retryKey("q", a), retryKey("q", b))
}
