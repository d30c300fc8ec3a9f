package feedback

import (
	"bytes"
	"context"
	"hash/fnv"
	"strings"
	"sync"
)

const memShardCount = 16

// MemStore is an in-process RecordStore: a sharded map with per-shard
// locking, so writes to unrelated keys never contend. It backs tests and
// single-node deployments without Redis.
type MemStore struct {
	shards [memShardCount]memShard
}

type memShard struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	m := &MemStore{}
	for i := range m.shards {
		m.shards[i].data = make(map[string][]byte)
	}
	return m
}

func (m *MemStore) shard(key string) *memShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &m.shards[h.Sum32()%memShardCount]
}

// Get returns a copy of the value stored at key.
func (m *MemStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	sh := m.shard(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	data, ok := sh.data[key]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(data), true, nil
}

// CompareAndSwap replaces the value at key if it still equals expected; a
// nil expected means the key must not exist. It reports whether the swap
// happened.
func (m *MemStore) CompareAndSwap(ctx context.Context, key string, expected, updated []byte) (bool, error) {
	sh := m.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	current, exists := sh.data[key]
	if expected == nil {
		if exists {
			return false, nil
		}
	} else if !exists || !bytes.Equal(current, expected) {
		return false, nil
	}
	sh.data[key] = bytes.Clone(updated)
	return true, nil
}

// Scan returns every key/value pair whose key starts with prefix.
func (m *MemStore) Scan(ctx context.Context, prefix string) (map[string][]byte, error) {
	result := make(map[string][]byte)
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.RLock()
		for key, data := range sh.data {
			if strings.HasPrefix(key, prefix) {
				result[key] = bytes.Clone(data)
			}
		}
		sh.mu.RUnlock()
	}
	return result, nil
}
