package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mesh-intelligence/cvalchemist/pkg/types"
)

// redisKeyPrefix namespaces result keys in a shared Redis.
const redisKeyPrefix = "cvalchemist:result:"

// Redis stores results as JSON strings with a server-side TTL.
type Redis struct {
	mu     sync.RWMutex
	client *redis.Client
	ttl    time.Duration
	closed bool
}

// OpenRedis connects to the server named by rawURL
// (redis://[:password@]host:port/db) and verifies it with PING.
func OpenRedis(ctx context.Context, rawURL string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Redis{client: client, ttl: ttl}, nil
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

// Put stores a under a new ID with the configured TTL.
func (r *Redis) Put(ctx context.Context, a *types.Analysis) (string, error) {
	if a == nil {
		return "", types.ErrNilAnalysis
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return "", types.ErrStoreClosed
	}

	cp := a.Clone()
	cp.ResultID = ""
	payload, err := json.Marshal(cp)
	if err != nil {
		return "", fmt.Errorf("marshal analysis: %w", err)
	}

	id := generateID()
	if err := r.client.Set(ctx, redisKey(id), payload, r.ttl).Err(); err != nil {
		return "", fmt.Errorf("redis set: %w", err)
	}
	return id, nil
}

// Get loads the analysis stored under id.
func (r *Redis) Get(ctx context.Context, id string) (*types.Analysis, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, types.ErrStoreClosed
	}

	payload, err := r.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var a types.Analysis
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", id, err)
	}
	a.ResultID = id
	return &a, nil
}

// Close closes the client. Idempotent.
func (r *Redis) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.client.Close()
}

var _ types.ResultStore = (*Redis)(nil)
