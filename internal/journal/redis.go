package journal

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSink appends entries to a Redis stream.
type RedisSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisSink writes to stream. A positive maxLen caps the stream length
// approximately.
func NewRedisSink(client *redis.Client, stream string, maxLen int64) *RedisSink {
	return &RedisSink{client: client, stream: stream, maxLen: maxLen}
}

// Record adds the entry with XADD.
func (s *RedisSink) Record(ctx context.Context, entry Entry) error {
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"id":               entry.ID.String(),
			"sequence":         strconv.FormatInt(entry.Sequence, 10),
			"verb":             entry.Verb,
			"account":          entry.Account,
			"card_mask":        entry.CardMask,
			"card_fingerprint": entry.CardFingerprint,
			"amount":           strconv.FormatInt(entry.Amount, 10),
			"status":           strconv.Itoa(entry.Status),
			"error":            entry.Error,
			"recorded_at":      entry.RecordedAt.UTC().Format(time.RFC3339Nano),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("journal xadd %s: %w", s.stream, err)
	}
	return nil
}
