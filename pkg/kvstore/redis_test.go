package kvstore_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/yusufsyaifudin/emailer/pkg/kvstore"
)

func prepareMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
		DB:   1,
	})

	return s, client
}

func TestNewRedis(t *testing.T) {
	t.Run("bad dep", func(t *testing.T) {
		c, err := kvstore.NewRedis(kvstore.RedisConfig{})
		assert.Nil(t, c)
		assert.Error(t, err)
	})

	t.Run("ok", func(t *testing.T) {
		_, redisConn := prepareMiniRedis(t)
		c, err := kvstore.NewRedis(kvstore.RedisConfig{DB: redisConn})
		assert.NotNil(t, c)
		assert.NoError(t, err)
	})
}

func TestRedis_GetAs(t *testing.T) {
	type S struct {
		Value string
	}

	t.Run("no key found", func(t *testing.T) {
		_, redisConn := prepareMiniRedis(t)
		c, err := kvstore.NewRedis(kvstore.RedisConfig{DB: redisConn})
		assert.NotNil(t, c)
		assert.NoError(t, err)

		var out S
		err = c.GetAs(context.Background(), "key", &out)
		assert.Error(t, err)
		assert.ErrorIs(t, err, kvstore.ErrKeyNotExist)
	})

	t.Run("redis error: closed connection", func(t *testing.T) {
		_, redisConn := prepareMiniRedis(t)
		c, err := kvstore.NewRedis(kvstore.RedisConfig{DB: redisConn})
		assert.NotNil(t, c)
		assert.NoError(t, err)

		// close redis to state error
		assert.NoError(t, redisConn.Close())

		var out S
		err = c.GetAs(context.Background(), "key", &out)
		assert.Error(t, err)
		assert.ErrorIs(t, err, redis.ErrClosed)
	})

	t.Run("success with prefix", func(t *testing.T) {
		mr, redisConn := prepareMiniRedis(t)
		c, err := kvstore.NewRedis(kvstore.RedisConfig{DB: redisConn, KeyPrefix: "emailer:"})
		assert.NotNil(t, c)
		assert.NoError(t, err)

		in := S{
			Value: "this is value",
		}

		err = c.Set(context.Background(), "key", in)
		assert.NoError(t, err)

		assert.True(t, mr.DB(1).Exists("emailer:key"))
		assert.Zero(t, mr.DB(1).TTL("emailer:key"))

		var out S
		err = c.GetAs(context.Background(), "key", &out)
		assert.NoError(t, err)
		assert.Equal(t, in, out)
	})
}

func TestRedis_Set(t *testing.T) {
	t.Run("error marshal data", func(t *testing.T) {
		_, redisConn := prepareMiniRedis(t)
		c, err := kvstore.NewRedis(kvstore.RedisConfig{DB: redisConn})
		assert.NotNil(t, c)
		assert.NoError(t, err)

		in := map[string]interface{}{
			"key": make(chan int, 1),
		}

		err = c.Set(context.Background(), "key", in)
		assert.Error(t, err)
	})
}

func TestRedis_Delete(t *testing.T) {
	t.Run("success: not exist key", func(t *testing.T) {
		_, redisConn := prepareMiniRedis(t)
		c, err := kvstore.NewRedis(kvstore.RedisConfig{DB: redisConn})
		assert.NotNil(t, c)
		assert.NoError(t, err)

		err = c.Delete(context.Background(), "key")
		assert.NoError(t, err)
	})

	t.Run("redis error: closed connection", func(t *testing.T) {
		_, redisConn := prepareMiniRedis(t)
		c, err := kvstore.NewRedis(kvstore.RedisConfig{DB: redisConn})
		assert.NotNil(t, c)
		assert.NoError(t, err)

		assert.NoError(t, redisConn.Close())

		err = c.Delete(context.Background(), "key")
		assert.Error(t, err)
		assert.ErrorIs(t, err, redis.ErrClosed)
	})

	t.Run("success", func(t *testing.T) {
		_, redisConn := prepareMiniRedis(t)
		c, err := kvstore.NewRedis(kvstore.RedisConfig{DB: redisConn})
		assert.NotNil(t, c)
		assert.NoError(t, err)

		err = c.Set(context.Background(), "a", "value")
		assert.NoError(t, err)
		err = c.Set(context.Background(), "b", "value")
		assert.NoError(t, err)

		err = c.Delete(context.Background(), "a", "b")
		assert.NoError(t, err)

		var out string
		assert.ErrorIs(t, c.GetAs(context.Background(), "a", &out), kvstore.ErrKeyNotExist)
		assert.ErrorIs(t, c.GetAs(context.Background(), "b", &out), kvstore.ErrKeyNotExist)
	})
}
