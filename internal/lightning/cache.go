package lightning

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

const nodeInfoKey = "node_info"

// InfoCache memoizes GetInfo. The node URI rarely changes and every channel
// offer needs it.
type InfoCache struct {
	client Client
	cache  *cache.Cache
}

func NewInfoCache(client Client, ttl time.Duration) *InfoCache {
	return &InfoCache{
		client: client,
		cache:  cache.New(ttl, 2*ttl),
	}
}

func (c *InfoCache) GetInfo(ctx context.Context) (*NodeInfo, error) {
	if v, ok := c.cache.Get(nodeInfoKey); ok {
		if info, ok := v.(*NodeInfo); ok {
			return info, nil
		}
	}

	info, err := c.client.GetInfo(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(nodeInfoKey, info, cache.DefaultExpiration)
	return info, nil
}

func (c *InfoCache) Invalidate() {
	c.cache.Delete(nodeInfoKey)
}
