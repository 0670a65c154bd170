// Package broadcast pushes pipeline state events to connected clients via
// Redis pub/sub. Delivery is at most once; a failed publish never blocks or
// retries the pipeline.
package broadcast

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/veridian-group/compliance-cli/internal/model"
)

// Broadcaster publishes events to a single Redis channel.
type Broadcaster struct {
	client  *redis.Client
	channel string
}

// New creates a Broadcaster from a Redis URL. Returns nil if the URL is
// empty (push notifications not configured).
func New(ctx context.Context, url, channel string) (*Broadcaster, error) {
	if url == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "broadcast: parse redis URL")
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, eris.Wrap(err, "broadcast: redis ping")
	}

	return &Broadcaster{client: client, channel: channel}, nil
}

// Publish sends one event. Errors are returned for logging but callers
// treat delivery as best effort.
func (b *Broadcaster) Publish(ctx context.Context, event model.Event) error {
	payload, err := EncodeEvent(event)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return eris.Wrapf(err, "broadcast: publish %s", event.Event)
	}
	zap.L().Debug("broadcast event published",
		zap.String("event", event.Event),
		zap.String("channel", b.channel),
	)
	return nil
}

// Close closes the Redis connection.
func (b *Broadcaster) Close() error {
	return b.client.Close()
}

// EncodeEvent serializes an event for the wire.
func EncodeEvent(event model.Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, eris.Wrapf(err, "broadcast: marshal %s", event.Event)
	}
	return payload, nil
}
