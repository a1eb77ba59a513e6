package replylog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultRedisTTL = 24 * time.Hour

// RedisStore keeps encoded records under "replylog:<key>" so several API
// replicas share the pending reply.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisStore {
	if client == nil {
		panic("replylog: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	if tracer == nil {
		tracer = otel.Tracer("marketbot.internal.replylog")
	}
	return &RedisStore{redis: client, ttl: ttl, tracer: tracer}
}

func (s *RedisStore) Write(ctx context.Context, key string, entry Entry) error {
	ctx, span := s.tracer.Start(ctx, "replylog.write")
	defer span.End()

	if err := s.redis.Set(ctx, redisKey(key), Encode(entry), s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("replylog: persist reply: %w", err)
	}
	return nil
}

func (s *RedisStore) Read(ctx context.Context, key string) (Entry, error) {
	ctx, span := s.tracer.Start(ctx, "replylog.read")
	defer span.End()

	record, err := s.redis.Get(ctx, redisKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, ErrEmpty
		}
		span.RecordError(err)
		return Entry{}, fmt.Errorf("replylog: load reply: %w", err)
	}
	return Decode(record)
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	ctx, span := s.tracer.Start(ctx, "replylog.clear")
	defer span.End()

	if err := s.redis.Del(ctx, redisKey(key)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("replylog: clear reply: %w", err)
	}
	return nil
}

func redisKey(key string) string {
	return fmt.Sprintf("replylog:%s", key)
}
