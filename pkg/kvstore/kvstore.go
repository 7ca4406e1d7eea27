package kvstore

import (
	"context"
	"fmt"
	"io"
)

var (
	ErrKeyNotExist = fmt.Errorf("kv key not exists")
)

// KV is a durable key-value surface. Values are stored as JSON.
type KV interface {
	io.Closer

	GetAs(ctx context.Context, key string, out interface{}) error
	Set(ctx context.Context, key string, inValue interface{}) error
	Delete(ctx context.Context, keys ...string) error
}
