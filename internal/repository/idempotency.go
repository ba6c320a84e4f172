package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRequestInFlight reports that a request with the same key is still running.
var ErrRequestInFlight = errors.New("request with this idempotency key is in progress")

// StoredResponse is the first response committed for an idempotency key.
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyStore records responses of write requests by key.
type IdempotencyStore interface {
	// Begin claims key. It returns the stored response when the key already
	// completed, ErrRequestInFlight while another request holds it, and
	// (nil, nil) when the caller now owns the key.
	Begin(ctx context.Context, key string, ttl time.Duration) (*StoredResponse, error)
	// Complete stores the response for an owned key.
	Complete(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) error
	// Release drops an owned key so the request can be retried.
	Release(ctx context.Context, key string) error
}

const pendingMarker = "pending"

type redisIdempotencyStore struct {
	client *redis.Client
	prefix string
}

// NewRedisIdempotencyStore stores keys under prefix using SET NX.
func NewRedisIdempotencyStore(client *redis.Client, prefix string) IdempotencyStore {
	if prefix == "" {
		prefix = "idempotency:"
	}
	return &redisIdempotencyStore{client: client, prefix: prefix}
}

func (s *redisIdempotencyStore) Begin(ctx context.Context, key string, ttl time.Duration) (*StoredResponse, error) {
	claimed, err := s.client.SetNX(ctx, s.prefix+key, pendingMarker, ttl).Result()
	if err != nil {
		return nil, err
	}
	if claimed {
		return nil, nil
	}
	raw, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; try once more
		claimed, err = s.client.SetNX(ctx, s.prefix+key, pendingMarker, ttl).Result()
		if err != nil {
			return nil, err
		}
		if claimed {
			return nil, nil
		}
		return nil, ErrRequestInFlight
	}
	if err != nil {
		return nil, err
	}
	if raw == pendingMarker {
		return nil, ErrRequestInFlight
	}
	var resp StoredResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *redisIdempotencyStore) Complete(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+key, raw, ttl).Err()
}

func (s *redisIdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

type memoryEntry struct {
	resp    *StoredResponse
	expires time.Time
}

// MemoryIdempotencyStore is the in-process fallback when Redis is absent.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemoryIdempotencyStore builds an empty store.
func NewMemoryIdempotencyStore(now func() time.Time) *MemoryIdempotencyStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryIdempotencyStore{now: now, entries: make(map[string]memoryEntry)}
}

func (s *MemoryIdempotencyStore) Begin(_ context.Context, key string, ttl time.Duration) (*StoredResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if entry, ok := s.entries[key]; ok && now.Before(entry.expires) {
		if entry.resp == nil {
			return nil, ErrRequestInFlight
		}
		resp := *entry.resp
		return &resp, nil
	}
	s.entries[key] = memoryEntry{expires: now.Add(ttl)}
	return nil, nil
}

func (s *MemoryIdempotencyStore) Complete(_ context.Context, key string, resp StoredResponse, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{resp: &resp, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
