package sink

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/23016960-sys/honeypot/internal/event"
)

// eventStream is the Redis stream events are appended to.
const eventStream = "honeypot:events"

// Redis is an optional mid-chain sink that appends events to a Redis stream.
// It sits between the relational store and the file fallback when configured,
// exercising the chain beyond the stock primary/fallback pair.
type Redis struct {
	client *redis.Client
}

// NewRedis builds the stream sink. The server is not contacted until the
// first Append.
func NewRedis(addr string) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (r *Redis) Name() string { return "redis" }

// Append XADDs the event fields to the stream. Stream entry IDs are assigned
// by Redis and not mapped back to an event identity.
func (r *Redis) Append(ctx context.Context, ev event.Event) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, appendTimeout)
	defer cancel()
	err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: eventStream,
		Values: map[string]interface{}{
			"ts":      ev.Timestamp,
			"src_ip":  ev.SourceAddr,
			"xff":     ev.ForwardedFor,
			"method":  ev.Method,
			"path":    ev.Path,
			"headers": ev.HeadersJSON(),
			"body":    ev.Body,
		},
	}).Err()
	if err != nil {
		return 0, fmt.Errorf("xadd event: %w", err)
	}
	return 0, nil
}

func (r *Redis) Close() error { return r.client.Close() }
