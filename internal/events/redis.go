package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultStream is the Redis stream vault events are appended to.
const DefaultStream = "vault:events"

// RedisStream appends records to a Redis stream so other services can consume
// them with XREAD / consumer groups.
type RedisStream struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStream builds a stream emitter. maxLen <= 0 keeps the stream unbounded.
func NewRedisStream(client *redis.Client, stream string, maxLen int64) *RedisStream {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStream{client: client, stream: stream, maxLen: maxLen}
}

// Emit writes one stream entry per record in a single pipeline.
func (s *RedisStream) Emit(ctx context.Context, records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	pipe := s.client.TxPipeline()
	for _, r := range records {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", r.ID, err)
		}
		args := &redis.XAddArgs{
			Stream: s.stream,
			Values: map[string]any{"id": r.ID, "kind": r.Kind, "asset": r.Asset.String(), "payload": string(payload)},
		}
		if s.maxLen > 0 {
			args.MaxLen = s.maxLen
			args.Approx = true
		}
		pipe.XAdd(ctx, args)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append events to %s: %w", s.stream, err)
	}
	return nil
}
