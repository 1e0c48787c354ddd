package session

import (
	"context"
	"time"

	"github.com/ayxworxfr/go_backoffice/pkg/crypter"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// RedisStore 每个会话一个 hash，键名是会话ID的 HMAC 摘要，过期交给 redis
type RedisStore struct {
	client    redis.UniversalClient
	prefix    string
	ttl       time.Duration
	digestKey []byte
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration, digestKey []byte) *RedisStore {
	return &RedisStore{
		client:    client,
		prefix:    prefix,
		ttl:       ttl,
		digestKey: digestKey,
	}
}

func (s *RedisStore) key(sid string) string {
	return s.prefix + crypter.Digest(s.digestKey, sid)
}

func (s *RedisStore) Get(ctx context.Context, sid, key string) (string, bool, error) {
	value, err := s.client.HGet(ctx, s.key(sid), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "redis hget")
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, sid, key, value string) error {
	redisKey := s.key(sid)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, redisKey, key, value)
		pipe.Expire(ctx, redisKey, s.ttl)
		return nil
	})
	return errors.Wrap(err, "redis hset")
}

func (s *RedisStore) Delete(ctx context.Context, sid string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return errors.Wrap(s.client.HDel(ctx, s.key(sid), keys...).Err(), "redis hdel")
}

// Sweep redis 自行过期，无需清理
func (s *RedisStore) Sweep(context.Context) (int, error) {
	return 0, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
