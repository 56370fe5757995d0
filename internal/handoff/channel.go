// Package handoff relays "receive this order" intent from the order view
// to the receipt-creation flow.
//
// The relay is a single Redis slot with last-write-wins publish and
// consume-once read: reading deletes the slot atomically so the same
// intent can never feed two receipt flows.
package handoff

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 15 * time.Minute

// Channel is a single-slot relay backed by Redis.
type Channel struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewChannel constructs a Channel. An empty key falls back to the default slot.
func NewChannel(client *redis.Client, key string) *Channel {
	if key == "" {
		key = "handoff:receive_order"
	}
	return &Channel{client: client, key: key, ttl: defaultTTL}
}

// Publish stores the order reference, overwriting any unread intent.
func (c *Channel) Publish(ctx context.Context, orderID int64) error {
	if c == nil || c.client == nil {
		return errors.New("handoff: channel not initialised")
	}
	if orderID <= 0 {
		return errors.New("handoff: order id required")
	}
	return c.client.Set(ctx, c.key, strconv.FormatInt(orderID, 10), c.ttl).Err()
}

// ConsumeOnce returns the stored order reference and clears the slot in a
// single round trip. ok is false when the slot is empty.
func (c *Channel) ConsumeOnce(ctx context.Context) (orderID int64, ok bool, err error) {
	if c == nil || c.client == nil {
		return 0, false, errors.New("handoff: channel not initialised")
	}
	raw, err := c.client.GetDel(ctx, c.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, errors.New("handoff: malformed slot payload")
	}
	return id, true, nil
}
