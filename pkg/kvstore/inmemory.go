package kvstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/renameio/v2"
	"github.com/segmentio/encoding/json"
)

type InMemoryConfig struct {
	// SnapshotFile when not empty makes every write flushed into this path,
	// and the content is loaded back on start.
	SnapshotFile string `validate:"-"`
}

// InMemory keeps every key until it is deleted, nothing is evicted.
// The snapshot is a JSON object of key to value, replaced atomically on each write.
type InMemory struct {
	conf InMemoryConfig
	lock sync.RWMutex
	data map[string]json.RawMessage
}

var _ KV = (*InMemory)(nil)

func NewInMemory(conf InMemoryConfig) (*InMemory, error) {
	conf.SnapshotFile = strings.TrimSpace(conf.SnapshotFile)

	kv := &InMemory{
		conf: conf,
		data: make(map[string]json.RawMessage),
	}

	if conf.SnapshotFile == "" {
		return kv, nil
	}

	content, err := os.ReadFile(conf.SnapshotFile)
	if errors.Is(err, os.ErrNotExist) {
		return kv, nil
	}

	if err != nil {
		return nil, fmt.Errorf("cannot read snapshot %s: %w", conf.SnapshotFile, err)
	}

	if len(content) == 0 {
		return kv, nil
	}

	err = json.Unmarshal(content, &kv.data)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s is corrupted: %w", conf.SnapshotFile, err)
	}

	return kv, nil
}

func (i *InMemory) GetAs(_ context.Context, key string, out interface{}) error {
	i.lock.RLock()
	result, ok := i.data[key]
	i.lock.RUnlock()

	if !ok {
		return ErrKeyNotExist
	}

	return json.Unmarshal(result, out)
}

func (i *InMemory) Set(_ context.Context, key string, inValue interface{}) error {
	val, err := json.Marshal(inValue)
	if err != nil {
		err = fmt.Errorf("cannot marshal json value: %w", err)
		return err
	}

	i.lock.Lock()
	defer i.lock.Unlock()

	i.data[key] = val
	return i.flush()
}

func (i *InMemory) Delete(_ context.Context, keys ...string) error {
	i.lock.Lock()
	defer i.lock.Unlock()

	for _, key := range keys {
		delete(i.data, key)
	}

	return i.flush()
}

func (i *InMemory) Close() error {
	i.lock.Lock()
	defer i.lock.Unlock()

	return i.flush()
}

// flush must be called with write lock held.
func (i *InMemory) flush() error {
	if i.conf.SnapshotFile == "" {
		return nil
	}

	content, err := json.Marshal(i.data)
	if err != nil {
		return fmt.Errorf("cannot marshal snapshot: %w", err)
	}

	err = renameio.WriteFile(i.conf.SnapshotFile, content, 0o600)
	if err != nil {
		err = fmt.Errorf("cannot save snapshot to %s: %w", i.conf.SnapshotFile, err)
		return err
	}

	return nil
}
