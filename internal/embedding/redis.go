package embedding

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hyperjump/kotae/internal/config"
)

// RedisCache stores embeddings in Redis so several server processes share them.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects and pings the configured server.
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client, prefix: cfg.Prefix}, nil
}

// Get returns the vector stored under key, or ErrCacheMiss.
func (r *RedisCache) Get(ctx context.Context, key string) ([]float32, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return decodeVector(data)
}

// Set stores value under key for ttl.
func (r *RedisCache) Set(ctx context.Context, key string, value []float32, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+key, encodeVector(value), ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close closes the client.
func (r *RedisCache) Close() error {
	return r.client.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("corrupt cached vector of %d bytes", len(data))
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return v, nil
}
