// Package redis wraps go-redis/v9 with connection pooling, byte-value
// get/set, prefix scanning, and an optimistic compare-and-swap built on
// WATCH transactions.
package redis

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/errdocs/retrieval-engine/pkg/config"
	"github.com/redis/go-redis/v9"
)

// Client wraps a go-redis client.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a Redis client and verifies the connection with a PING.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// GetBytes returns the value for key, with found=false for a missing key.
func (c *Client) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

// Set stores a value without expiry.
func (c *Client) Set(ctx context.Context, key string, value []byte) error {
	return c.rdb.Set(ctx, key, value, 0).Err()
}

// CompareAndSwap atomically replaces the value at key with updated, provided
// the stored value still equals expected. A nil expected means the key must
// not exist yet. It reports whether the swap happened; a lost WATCH race is
// (false, nil), not an error.
func (c *Client) CompareAndSwap(ctx context.Context, key string, expected, updated []byte) (bool, error) {
	swapped := false
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		switch {
		case err == redis.Nil:
			if expected != nil {
				return nil
			}
		case err != nil:
			return err
		default:
			if expected == nil || !bytes.Equal(current, expected) {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		if err == nil {
			swapped = true
		}
		return err
	}
	err := c.rdb.Watch(ctx, txf, key)
	if err == redis.TxFailedErr {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis cas %s: %w", key, err)
	}
	return swapped, nil
}

// ScanPrefix returns every key/value pair whose key starts with prefix.
func (c *Client) ScanPrefix(ctx context.Context, prefix string) (map[string][]byte, error) {
	result := make(map[string][]byte)
	iter := c.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := c.rdb.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get %s during scan: %w", key, err)
		}
		result[key] = data
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", prefix, err)
	}
	return result, nil
}

// Ping sends a PING to Redis and returns any error.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the underlying Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
