package journal

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// defaultStreamMaxLen bounds the Redis journal stream.
const defaultStreamMaxLen = 100_000

// Build assembles the sinks for whichever backends are connected. With
// neither a pool nor a client it returns Discard.
func Build(ctx context.Context, db *pgxpool.Pool, cache *redis.Client, stream string) (Sink, error) {
	var sinks []Sink
	if db != nil {
		pg := NewPostgresSink(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		sinks = append(sinks, pg)
	}
	if cache != nil {
		sinks = append(sinks, NewRedisSink(cache, stream, defaultStreamMaxLen))
	}
	switch len(sinks) {
	case 0:
		return Discard, nil
	case 1:
		return sinks[0], nil
	default:
		return Multi(sinks...), nil
	}
}
