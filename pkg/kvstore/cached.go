package kvstore

import (
	"context"
	"fmt"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/segmentio/encoding/json"
	"github.com/yusufsyaifudin/emailer/pkg/validator"
)

const defaultCacheMaxBytes = 32 * 1048576 // 32MB

type CachedConfig struct {
	Next     KV  `validate:"required"`
	MaxBytes int `validate:"min=0"`
}

// Cached serves reads from fastcache in front of Next.
// Next stays the source of truth: an evicted entry is read again from Next.
// Other processes writing into Next are not seen until the entry is evicted or rewritten here.
type Cached struct {
	next  KV
	cache *fastcache.Cache
}

var _ KV = (*Cached)(nil)

func NewCached(conf CachedConfig) (*Cached, error) {
	err := validator.Validate(conf)
	if err != nil {
		err = fmt.Errorf("error validate kv cached: %w", err)
		return nil, err
	}

	if conf.MaxBytes <= 0 {
		conf.MaxBytes = defaultCacheMaxBytes
	}

	return &Cached{
		next:  conf.Next,
		cache: fastcache.New(conf.MaxBytes),
	}, nil
}

func (c *Cached) GetAs(ctx context.Context, key string, out interface{}) error {
	if b := c.cache.GetBig(nil, []byte(key)); len(b) > 0 {
		return json.Unmarshal(b, out)
	}

	var raw json.RawMessage
	err := c.next.GetAs(ctx, key, &raw)
	if err != nil {
		return err
	}

	c.cache.SetBig([]byte(key), raw)
	return json.Unmarshal(raw, out)
}

func (c *Cached) Set(ctx context.Context, key string, inValue interface{}) error {
	val, err := json.Marshal(inValue)
	if err != nil {
		return fmt.Errorf("cannot marshal json value: %w", err)
	}

	// drop first, a failed write must not leave a value Next does not have
	c.cache.Del([]byte(key))

	err = c.next.Set(ctx, key, json.RawMessage(val))
	if err != nil {
		return err
	}

	c.cache.SetBig([]byte(key), val)
	return nil
}

func (c *Cached) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		c.cache.Del([]byte(key))
	}

	return c.next.Delete(ctx, keys...)
}

func (c *Cached) Close() error {
	c.cache.Reset()
	return c.next.Close()
}
