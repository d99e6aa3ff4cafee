// Package cache provides LRU caching of entity flag documents for quick reads.
// The cache is not the source of truth; every write goes to the wrapped store.
package cache

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tidwall/gjson"

	"github.com/MRamiBalles/tokenprofile/internal/infra/storage"
)

// DefaultSize is the number of entity documents kept when no size is given.
const DefaultSize = 512

// FlagCache is a read-through storage.FlagStore keyed by entity id.
// Every write bumps the entity's generation; a load that raced a write is
// returned to its caller but never cached.
type FlagCache struct {
	next storage.FlagStore
	docs *lru.Cache[string, []byte]

	mu   sync.Mutex
	gens map[string]uint64
}

var _ storage.FlagStore = (*FlagCache)(nil)

// NewFlagCache wraps next with an LRU of size documents.
func NewFlagCache(next storage.FlagStore, size int) (*FlagCache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	docs, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create flag cache: %w", err)
	}
	return &FlagCache{next: next, docs: docs, gens: make(map[string]uint64)}, nil
}

// Document returns the cached document, loading it on a miss.
func (c *FlagCache) Document(ctx context.Context, entityID string) ([]byte, error) {
	if doc, ok := c.docs.Get(entityID); ok {
		return append([]byte(nil), doc...), nil
	}
	c.mu.Lock()
	gen := c.gens[entityID]
	c.mu.Unlock()

	doc, err := c.next.Document(ctx, entityID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.gens[entityID] == gen {
		c.docs.Add(entityID, append([]byte(nil), doc...))
	}
	c.mu.Unlock()
	return doc, nil
}

// Get reads key from the cached document.
func (c *FlagCache) Get(ctx context.Context, entityID, key string) ([]byte, error) {
	doc, err := c.Document(ctx, entityID)
	if err != nil {
		return nil, err
	}
	res := gjson.GetBytes(doc, key)
	if !res.Exists() {
		return nil, nil
	}
	return []byte(res.Raw), nil
}

// Set writes through and invalidates the entity's document.
func (c *FlagCache) Set(ctx context.Context, entityID, key string, value any) error {
	defer c.invalidate(entityID)
	return c.next.Set(ctx, entityID, key, value)
}

// Unset writes through and invalidates the entity's document.
func (c *FlagCache) Unset(ctx context.Context, entityID, key string) error {
	defer c.invalidate(entityID)
	return c.next.Unset(ctx, entityID, key)
}

func (c *FlagCache) invalidate(entityID string) {
	c.mu.Lock()
	c.gens[entityID]++
	c.docs.Remove(entityID)
	c.mu.Unlock()
}

// Len reports the number of cached documents.
func (c *FlagCache) Len() int {
	return c.docs.Len()
}
