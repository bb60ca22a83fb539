package mqhandler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"ideaflow/pkg/mq"
	"ideaflow/pkg/util"
)

// Deduper guards a handler against redelivered messages.
type Deduper interface {
	AcquireOnce(ctx context.Context, handler, eventKey string) bool
	Release(ctx context.Context, handler, eventKey string)
}

// eventKey identifies a delivery across redeliveries and outbox replays.
func eventKey(d mq.Delivery) string {
	if d.MessageID != "" {
		return d.MessageID
	}
	sum := sha256.Sum256(d.Body)
	return d.RoutingKey + "-" + hex.EncodeToString(sum[:12])
}

// decode fails permanently: a malformed payload never gets better on retry.
func decode(d mq.Delivery, v any) error {
	if err := json.Unmarshal(d.Body, v); err != nil {
		return util.Permanent(fmt.Errorf("decode %s payload: %w", d.RoutingKey, err))
	}
	return nil
}

// once runs fn unless handler already processed d. A failed run releases the
// dedup key so the redelivery is processed again.
func once(ctx context.Context, dedup Deduper, handler string, d mq.Delivery, fn func() error) error {
	key := eventKey(d)
	if !dedup.AcquireOnce(ctx, handler, key) {
		return nil
	}
	if err := fn(); err != nil {
		dedup.Release(ctx, handler, key)
		return err
	}
	return nil
}
