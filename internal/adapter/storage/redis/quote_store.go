package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"courier-dispatch/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// QuoteStore implements ports.QuoteStore using keys that expire with the quote.
type QuoteStore struct {
	client *goredis.Client
	prefix string
}

// NewQuoteStore creates a Redis-backed quote store.
func NewQuoteStore(client *goredis.Client) *QuoteStore {
	return &QuoteStore{
		client: client,
		prefix: keyPrefix + "quote:",
	}
}

// Save stores a quote for ttl.
func (s *QuoteStore) Save(ctx context.Context, q *domain.Quote, ttl time.Duration) error {
	payload, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode quote %s: %w", q.ID, err)
	}
	if err := s.client.Set(ctx, s.prefix+q.ID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis quote set: %w", err)
	}
	return nil
}

// Get returns nil, nil if the quote is unknown, expired or unreadable.
func (s *QuoteStore) Get(ctx context.Context, id string) (*domain.Quote, error) {
	raw, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis quote get: %w", err)
	}
	var q domain.Quote
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, nil
	}
	return &q, nil
}

// Delete removes a quote once it has been booked.
func (s *QuoteStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.prefix+id).Err(); err != nil {
		return fmt.Errorf("redis quote del: %w", err)
	}
	return nil
}
