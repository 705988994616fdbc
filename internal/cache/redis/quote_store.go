package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/orderpool/internal/domain"
)

// QuoteStore implements domain.QuoteMetadataRepository using Redis string
// values. Each quote is stored as JSON at key "quote:{quoteID}" with a TTL,
// since quote metadata is only useful between quoting and order submission.
type QuoteStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuoteStore creates a QuoteStore backed by the given Client. Entries
// expire after ttl; a zero ttl means entries never expire.
func NewQuoteStore(c *Client, ttl time.Duration) *QuoteStore {
	return &QuoteStore{rdb: c.Underlying(), ttl: ttl}
}

func quoteKey(quoteID string) string {
	return "quote:" + quoteID
}

// Put stores the quote metadata under its quote ID.
func (qs *QuoteStore) Put(ctx context.Context, q domain.QuoteMetadata) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("redis: marshal quote %s: %w", q.QuoteID, err)
	}
	if err := qs.rdb.Set(ctx, quoteKey(q.QuoteID), data, qs.ttl).Err(); err != nil {
		return fmt.Errorf("redis: put quote %s: %w", q.QuoteID, err)
	}
	return nil
}

// GetByQuoteID retrieves quote metadata by its quote ID.
// It returns domain.ErrNotFound when the key does not exist or has expired.
func (qs *QuoteStore) GetByQuoteID(ctx context.Context, quoteID string) (domain.QuoteMetadata, error) {
	data, err := qs.rdb.Get(ctx, quoteKey(quoteID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.QuoteMetadata{}, domain.ErrNotFound
		}
		return domain.QuoteMetadata{}, fmt.Errorf("redis: get quote %s: %w", quoteID, err)
	}

	var q domain.QuoteMetadata
	if err := json.Unmarshal(data, &q); err != nil {
		return domain.QuoteMetadata{}, fmt.Errorf("redis: unmarshal quote %s: %w", quoteID, err)
	}
	return q, nil
}

// Compile-time interface check.
var _ domain.QuoteMetadataRepository = (*QuoteStore)(nil)
