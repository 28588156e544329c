package dictionary

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/contentbuddy/contentbuddy/internal/pronunciation"
)

const allKey = "all"

// Cached memoizes All for a TTL and drops the cached copy on every write.
type Cached struct {
	Store
	lru *expirable.LRU[string, []pronunciation.Item]
}

func NewCached(store Store, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = 1
	}
	return &Cached{Store: store, lru: expirable.NewLRU[string, []pronunciation.Item](size, nil, ttl)}
}

func (c *Cached) All(ctx context.Context) ([]pronunciation.Item, error) {
	if items, ok := c.lru.Get(allKey); ok {
		return pronunciation.Clone(items), nil
	}
	items, err := c.Store.All(ctx)
	if err != nil {
		return nil, err
	}
	c.lru.Add(allKey, pronunciation.Clone(items))
	return items, nil
}

func (c *Cached) Save(ctx context.Context, entry Entry) error {
	defer c.lru.Purge()
	return c.Store.Save(ctx, entry)
}

func (c *Cached) SaveBatch(ctx context.Context, entries []Entry) error {
	defer c.lru.Purge()
	return c.Store.SaveBatch(ctx, entries)
}
