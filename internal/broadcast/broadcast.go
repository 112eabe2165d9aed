// Package broadcast fans monitor events out to live admin feeds, either
// through Redis Pub/Sub or inside the process.
package broadcast

import "context"

// Subscription delivers payloads published on one channel.
type Subscription interface {
	C() <-chan []byte
	Close() error
}

// Broadcaster publishes and subscribes by channel name.
type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}
