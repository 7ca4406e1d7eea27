package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/encoding/json"
	"github.com/yusufsyaifudin/emailer/pkg/validator"
)

type RedisConfig struct {
	DB redis.UniversalClient `validate:"required"`

	// KeyPrefix is prepended into every key, i.e: "emailer:" so one redis can be shared.
	KeyPrefix string `validate:"-"`
}

type Redis struct {
	Conf RedisConfig
}

var _ KV = (*Redis)(nil)

func NewRedis(conf RedisConfig) (*Redis, error) {
	err := validator.Validate(conf)
	if err != nil {
		err = fmt.Errorf("error validate kv redis: %w", err)
		return nil, err
	}

	return &Redis{Conf: conf}, nil
}

func (r *Redis) GetAs(ctx context.Context, key string, out interface{}) error {
	val, err := r.Conf.DB.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		err = fmt.Errorf("%w: %s", ErrKeyNotExist, err)
		return err
	}

	if err != nil {
		err = fmt.Errorf("error occurred on redis: %w", err)
		return err
	}

	return json.Unmarshal([]byte(val), out)
}

// Set stores value without expiration.
func (r *Redis) Set(ctx context.Context, key string, inValue interface{}) error {
	val, err := json.Marshal(inValue)
	if err != nil {
		err = fmt.Errorf("cannot marshal json value: %w", err)
		return err
	}

	err = r.Conf.DB.Set(ctx, r.key(key), val, 0).Err()
	if err != nil {
		err = fmt.Errorf("error occurred on redis: %w", err)
		return err
	}

	return nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	redisKeys := make([]string, 0, len(keys))
	for _, key := range keys {
		redisKeys = append(redisKeys, r.key(key))
	}

	err := r.Conf.DB.Del(ctx, redisKeys...).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		err = fmt.Errorf("error occurred on redis: %w", err)
		return err
	}

	return nil
}

// Close does nothing, the connection is owned by whoever creates it.
func (r *Redis) Close() error {
	return nil
}

func (r *Redis) key(k string) string {
	return r.Conf.KeyPrefix + k
}
