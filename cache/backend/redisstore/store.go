// Package redisstore provides a cache.MetadataStore implementation backed
// by Redis via github.com/redis/go-redis/v9.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sandrolain/nfhttp/cache"
)

// Config holds the configuration for creating a Redis-backed store.
type Config struct {
	// Address is the Redis server address (e.g., "localhost:6379").
	Address string

	// Password authenticates against the Redis server. Optional.
	Password string

	// DB selects the Redis logical database. Optional, defaults to 0.
	DB int

	// PoolSize bounds the number of connections kept open. Optional.
	PoolSize int

	// MaxRetries bounds command retry attempts on network errors. Optional.
	MaxRetries int

	// DialTimeout, ReadTimeout, WriteTimeout bound the respective operations.
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PoolSize:     10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		DB:           0,
	}
}

// store is a cache.MetadataStore that stores responses in Redis.
type store struct {
	client *redis.Client
}

// cacheKey namespaces a fingerprint to avoid collisions with unrelated data
// that shares the same Redis instance.
func cacheKey(key string) string {
	return "nfhttp:cache:" + key
}

func (s *store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis cache get failed for key %q: %w", key, err)
	}
	return val, true, nil
}

func (s *store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, cacheKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis cache set failed for key %q: %w", key, err)
	}
	return nil
}

func (s *store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, cacheKey(key)).Err(); err != nil {
		return fmt.Errorf("redis cache delete failed for key %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying client.
func (s *store) Close() error {
	return s.client.Close()
}

// New creates a new store, dialing and pinging the configured address.
func New(config Config) (cache.MetadataStore, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	def := DefaultConfig()
	if config.PoolSize == 0 {
		config.PoolSize = def.PoolSize
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = def.MaxRetries
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = def.DialTimeout
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = def.ReadTimeout
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = def.WriteTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Address,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &store{client: client}, nil
}

// NewWithClient builds a store around an already-configured client, useful
// when the caller wants to manage the client's lifecycle itself.
func NewWithClient(client *redis.Client) cache.MetadataStore {
	return &store{client: client}
}
