package kvstore

import (
	"fmt"
	"sort"
	"time"

	"github.com/gomodule/redigo/redis"
)

const redisKeyPrefix = "docuflow:client:"

// Redis stores each namespace as one hash.
type Redis struct {
	pool *redis.Pool
}

func NewRedis(pool *redis.Pool) (*Redis, error) {
	if pool == nil {
		return nil, fmt.Errorf("redis pool is required")
	}
	return &Redis{pool: pool}, nil
}

// NewRedisPool dials addr lazily; connections are checked with PING when
// they have been idle.
func NewRedisPool(addr string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:   8,
		MaxActive: 64,
		Wait:      true,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr)
		},
		TestOnBorrow: func(c redis.Conn, _ time.Time) error {
			_, err := c.Do("PING")
			return err
		},
	}
}

func redisKey(ns string) string {
	return redisKeyPrefix + ns
}

func (s *Redis) safeClose(conn redis.Conn) {
	_ = conn.Close()
}

func (s *Redis) Get(ns, key string) (string, bool, error) {
	conn := s.pool.Get()
	defer s.safeClose(conn)

	v, err := redis.String(conn.Do("HGET", redisKey(ns), key))
	if err == redis.ErrNil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis HGET: %w", err)
	}
	return v, true, nil
}

func (s *Redis) Set(ns, key, value string) error {
	conn := s.pool.Get()
	defer s.safeClose(conn)

	if _, err := conn.Do("HSET", redisKey(ns), key, value); err != nil {
		return fmt.Errorf("redis HSET: %w", err)
	}
	return nil
}

func (s *Redis) Delete(ns string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	conn := s.pool.Get()
	defer s.safeClose(conn)

	args := redis.Args{}.Add(redisKey(ns)).AddFlat(keys)
	if _, err := conn.Do("HDEL", args...); err != nil {
		return fmt.Errorf("redis HDEL: %w", err)
	}
	return nil
}

func (s *Redis) Keys(ns string) ([]string, error) {
	conn := s.pool.Get()
	defer s.safeClose(conn)

	keys, err := redis.Strings(conn.Do("HKEYS", redisKey(ns)))
	if err != nil && err != redis.ErrNil {
		return nil, fmt.Errorf("redis HKEYS: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Redis) Clear(ns string) error {
	conn := s.pool.Get()
	defer s.safeClose(conn)

	if _, err := conn.Do("DEL", redisKey(ns)); err != nil {
		return fmt.Errorf("redis DEL: %w", err)
	}
	return nil
}
