package purchase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// QuoteCache keeps recent quotes in Redis so repeated pre-purchase checks do
// not hammer the ledger. A nil cache is valid and disables caching.
type QuoteCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewQuoteCache(client *redis.Client, ttl time.Duration) *QuoteCache {
	if client == nil {
		return nil
	}
	return &QuoteCache{client: client, ttl: ttl}
}

func quoteKey(datasetID int64, buyer string) string {
	return fmt.Sprintf("quote:%d:%s", datasetID, buyer)
}

func (c *QuoteCache) Get(ctx context.Context, datasetID int64, buyer string) (Quote, bool) {
	if c == nil {
		return Quote{}, false
	}
	raw, err := c.client.Get(ctx, quoteKey(datasetID, buyer)).Bytes()
	if err != nil {
		return Quote{}, false
	}
	var q Quote
	if err := json.Unmarshal(raw, &q); err != nil {
		return Quote{}, false
	}
	return q, true
}

func (c *QuoteCache) Set(ctx context.Context, q Quote) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(q)
	if err != nil {
		return
	}
	// Cache writes are best effort; a miss only costs ledger reads.
	c.client.Set(ctx, quoteKey(q.DatasetID, q.Buyer), raw, c.ttl)
}

func (c *QuoteCache) Invalidate(ctx context.Context, datasetID int64, buyer string) {
	if c == nil {
		return
	}
	c.client.Del(ctx, quoteKey(datasetID, buyer))
}
