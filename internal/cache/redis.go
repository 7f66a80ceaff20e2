package cache

import (
	"time"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"
)

const redisPrefix = "sorograph:blobs:"

type redisStore struct {
	client *redis.Client
}

func newRedisStore(addr string) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 10 * time.Second,
		ReadTimeout: 10 * time.Second,
	})
	if err := client.Ping().Err(); err != nil {
		return nil, errors.Wrap(err, "connecting to redis cache")
	}
	return &redisStore{client: client}, nil
}

func (s *redisStore) Get(key string) ([]byte, bool) {
	val, err := s.client.Get(redisPrefix + key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		logger("redis").WithError(err).Debug("cache get failed")
		return nil, false
	}
	return val, true
}

func (s *redisStore) Put(key string, val []byte) {
	// Ledger data is immutable by hash; the TTL just bounds memory.
	if err := s.client.Set(redisPrefix+key, val, 24*time.Hour).Err(); err != nil {
		logger("redis").WithError(err).Debug("cache put failed")
	}
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
