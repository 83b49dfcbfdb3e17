package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

const cacheLogPrefix = "session:cache"

// DefaultCacheTTL bounds how long a cached session is served without reloading.
const DefaultCacheTTL = 10 * time.Minute

// CachedStore fronts another Store with an in-process ristretto cache of encoded
// sessions. Writes go through to the backing store first.
type CachedStore struct {
	next  Store
	cache *ristretto.Cache[string, []byte]
	ttl   time.Duration
}

// NewCachedStore creates a CachedStore. maxCostBytes bounds the total size of cached
// sessions; ttl <= 0 uses DefaultCacheTTL.
func NewCachedStore(next Store, maxCostBytes int64, ttl time.Duration) (*CachedStore, error) {
	if maxCostBytes <= 0 {
		return nil, fmt.Errorf("%s - max cost must be positive, got %d", cacheLogPrefix, maxCostBytes)
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: max(maxCostBytes/100, 1000),
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create cache: %w", cacheLogPrefix, err)
	}
	return &CachedStore{next: next, cache: c, ttl: ttl}, nil
}

func (c *CachedStore) Get(ctx context.Context, id string) (*Session, error) {
	if data, ok := c.cache.Get(id); ok {
		var s Session
		if err := json.Unmarshal(data, &s); err == nil {
			return &s, nil
		}
		c.cache.Del(id)
	}
	s, err := c.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.put(s)
	return s, nil
}

func (c *CachedStore) Save(ctx context.Context, s *Session) error {
	if err := c.next.Save(ctx, s); err != nil {
		c.cache.Del(s.ID)
		return err
	}
	c.put(s)
	return nil
}

func (c *CachedStore) Delete(ctx context.Context, id string) error {
	c.cache.Del(id)
	return c.next.Delete(ctx, id)
}

// RecordTurn forwards to the backing store when it keeps an audit trail.
func (c *CachedStore) RecordTurn(ctx context.Context, sessionID, fromStage, toStage, intent string) error {
	if rec, ok := c.next.(TurnRecorder); ok {
		return rec.RecordTurn(ctx, sessionID, fromStage, toStage, intent)
	}
	return nil
}

// Wait blocks until buffered cache writes are applied.
func (c *CachedStore) Wait() {
	c.cache.Wait()
}

// Close releases the cache.
func (c *CachedStore) Close() {
	c.cache.Close()
}

func (c *CachedStore) put(s *Session) {
	data, err := json.Marshal(s)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to encode session %s: %v", cacheLogPrefix, s.ID, err))
		return
	}
	c.cache.SetWithTTL(s.ID, data, int64(len(data)), c.ttl)
}
