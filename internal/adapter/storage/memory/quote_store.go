package memory

import (
	"context"
	"sync"
	"time"

	"courier-dispatch/internal/core/domain"
)

type quoteEntry struct {
	quote     domain.Quote
	expiresAt time.Time
}

// QuoteStore implements ports.QuoteStore in memory with lazy expiry.
type QuoteStore struct {
	mu     sync.Mutex
	quotes map[string]quoteEntry
	now    func() time.Time
}

// NewQuoteStore creates an empty quote store.
func NewQuoteStore() *QuoteStore {
	return &QuoteStore{quotes: make(map[string]quoteEntry), now: time.Now}
}

func (s *QuoteStore) Save(ctx context.Context, q *domain.Quote, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := quoteEntry{quote: *q, expiresAt: s.now().Add(ttl)}
	entry.quote.Items = append([]string(nil), q.Items...)
	s.quotes[q.ID] = entry
	return nil
}

func (s *QuoteStore) Get(ctx context.Context, id string) (*domain.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.quotes[id]
	if !ok {
		return nil, nil
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.quotes, id)
		return nil, nil
	}
	q := entry.quote
	q.Items = append([]string(nil), entry.quote.Items...)
	return &q, nil
}

func (s *QuoteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.quotes, id)
	return nil
}
