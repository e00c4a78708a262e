package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"server/internal/infra"
)

const channelPrefix = "target-events:"

// RedisBroker bridges the change feed across processes via Redis pub/sub.
// The api and worker processes each hold one; events published by a worker
// reach subscribers attached to any api instance.
type RedisBroker struct {
	rdb    *redis.Client
	logger infra.Logger
}

// NewRedisBroker wraps an established Redis client.
func NewRedisBroker(rdb *redis.Client, logger infra.Logger) *RedisBroker {
	return &RedisBroker{rdb: rdb, logger: logger}
}

// Publish serializes the event onto the target's channel. Pub/sub delivery is
// fire-and-forget; subscribers absent at publish time simply miss the event.
func (b *RedisBroker) Publish(ctx context.Context, event TargetEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}
	if err := b.rdb.Publish(ctx, channelPrefix+event.TargetID, payload).Err(); err != nil {
		return fmt.Errorf("notify: publish: %w", err)
	}
	return nil
}

// Subscribe attaches to the target's channel and decodes events until cancel
// is called or the context ends.
func (b *RedisBroker) Subscribe(ctx context.Context, targetID string) (<-chan TargetEvent, func(), error) {
	sub := b.rdb.Subscribe(ctx, channelPrefix+targetID)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("notify: subscribe: %w", err)
	}

	out := make(chan TargetEvent, 16)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var event TargetEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn().Err(err).Str("target_id", targetID).Msg("notify: drop malformed event")
				continue
			}
			select {
			case out <- event:
			default:
			}
		}
	}()

	cancel := func() { _ = sub.Close() }
	return out, cancel, nil
}
