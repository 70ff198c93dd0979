package services

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"ecomeda/pkg/contracts/domain"
)

// resultCache is a bounded LRU of finished reports. Cached reports keep
// their cleaned dataset; reports reloaded from disk do not.
type resultCache struct {
	lru *lru.Cache[string, *domain.Report]
}

// newResultCache creates a cache of capacity entries. onEvict runs for each
// report that leaves the cache, evicted or removed.
func newResultCache(capacity int, onEvict func(id string)) (*resultCache, error) {
	if capacity < 1 {
		capacity = 1
	}
	c, err := lru.NewWithEvict[string, *domain.Report](capacity, func(id string, _ *domain.Report) {
		if onEvict != nil {
			onEvict(id)
		}
	})
	if err != nil {
		return nil, err
	}
	return &resultCache{lru: c}, nil
}

func (c *resultCache) put(rep *domain.Report) {
	c.lru.Add(rep.ID, rep)
}

func (c *resultCache) get(id string) (*domain.Report, bool) {
	return c.lru.Get(id)
}

func (c *resultCache) remove(id string) bool {
	return c.lru.Remove(id)
}

// list returns cached reports, most recently used first
func (c *resultCache) list() []*domain.Report {
	values := c.lru.Values()
	out := make([]*domain.Report, 0, len(values))
	for i := len(values) - 1; i >= 0; i-- {
		out = append(out, values[i])
	}
	return out
}

func (c *resultCache) len() int {
	return c.lru.Len()
}
