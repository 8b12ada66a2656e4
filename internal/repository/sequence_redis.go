package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type redisSequence struct {
	client *redis.Client
	prefix string
}

// NewRedisSequence allocates numbers with INCR on one key per year.
func NewRedisSequence(client *redis.Client, prefix string) SequenceAllocator {
	if prefix == "" {
		prefix = "demanda"
	}
	return &redisSequence{client: client, prefix: prefix}
}

func (s *redisSequence) key(year int) string {
	return fmt.Sprintf("%s:seq:%d", s.prefix, year)
}

func (s *redisSequence) Allocate(ctx context.Context, year int) (int64, error) {
	n, err := s.client.Incr(ctx, s.key(year)).Result()
	if err != nil {
		return 0, unavailable("allocate sequence", err)
	}
	return n, nil
}
