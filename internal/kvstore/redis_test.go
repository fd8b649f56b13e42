package kvstore

import (
	"testing"

	"github.com/gomodule/redigo/redis"
	"github.com/rafaeljusto/redigomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRedis(t *testing.T) (*Redis, *redigomock.Conn) {
	t.Helper()
	conn := redigomock.NewConn()
	pool := &redis.Pool{
		Dial: func() (redis.Conn, error) {
			return conn, nil
		},
	}
	store, err := NewRedis(pool)
	require.NoError(t, err)
	return store, conn
}

func TestRedisGetSet(t *testing.T) {
	store, conn := newMockRedis(t)

	set := conn.Command("HSET", "docuflow:client:c1", "access_token", "tok").Expect(int64(1))
	conn.Command("HGET", "docuflow:client:c1", "access_token").Expect([]byte("tok"))
	conn.Command("HGET", "docuflow:client:c1", "user").Expect(nil)

	require.NoError(t, store.Set("c1", "access_token", "tok"))
	assert.Equal(t, 1, conn.Stats(set))

	v, ok, err := store.Get("c1", "access_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)

	_, ok, err = store.Get("c1", "user")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisKeysDeleteClear(t *testing.T) {
	store, conn := newMockRedis(t)

	conn.Command("HKEYS", "docuflow:client:c1").Expect([]interface{}{[]byte("user"), []byte("access_token")})
	del := conn.Command("HDEL", "docuflow:client:c1", "access_token", "user").Expect(int64(2))
	clear := conn.Command("DEL", "docuflow:client:c1").Expect(int64(1))

	keys, err := store.Keys("c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"access_token", "user"}, keys)

	require.NoError(t, store.Delete("c1", "access_token", "user"))
	require.NoError(t, store.Delete("c1"))
	assert.Equal(t, 1, conn.Stats(del))

	require.NoError(t, store.Clear("c1"))
	assert.Equal(t, 1, conn.Stats(clear))
}

func TestRedisRequiresPool(t *testing.T) {
	_, err := NewRedis(nil)
	assert.Error(t, err)
}
