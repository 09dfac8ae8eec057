package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"courier-dispatch/internal/core/domain"
	"courier-dispatch/internal/core/ports"
	"courier-dispatch/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// QuoteServiceImpl implements ports.QuoteService.
type QuoteServiceImpl struct {
	provider ports.QuoteProvider
	store    ports.QuoteStore
	ttl      time.Duration
	loc      *time.Location
	now      func() time.Time
	log      zerolog.Logger
}

// NewQuoteService creates a new QuoteServiceImpl. Surge hours are read in loc.
func NewQuoteService(provider ports.QuoteProvider, store ports.QuoteStore, ttl time.Duration, loc *time.Location, log zerolog.Logger) *QuoteServiceImpl {
	if loc == nil {
		loc = time.UTC
	}
	return &QuoteServiceImpl{
		provider: provider,
		store:    store,
		ttl:      ttl,
		loc:      loc,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log,
	}
}

// RequestQuote estimates and prices a trip. A failing provider never fails
// the quote: the default estimate is priced instead.
func (s *QuoteServiceImpl) RequestQuote(ctx context.Context, senderID string, req domain.QuoteRequest) (*domain.Quote, error) {
	req.Pickup = strings.TrimSpace(req.Pickup)
	req.Dropoff = strings.TrimSpace(req.Dropoff)
	if req.Pickup == "" || req.Dropoff == "" {
		return nil, apperror.ErrInvalidInput("pickup and dropoff addresses are required")
	}

	est, err := s.provider.Estimate(ctx, req)
	if err != nil || !est.Usable() {
		s.log.Warn().Err(err).Str("pickup", req.Pickup).Str("dropoff", req.Dropoff).
			Msg("quote provider failed, using default estimate")
		est = domain.DefaultEstimate
	}

	now := s.now()
	breakdown, err := domain.ComputeFare(est.DistanceKm, est.DurationMin, now.In(s.loc).Hour())
	if err != nil {
		return nil, apperror.ErrInvalidInput(err.Error())
	}

	q := &domain.Quote{
		ID:          uuid.NewString(),
		SenderID:    senderID,
		Pickup:      req.Pickup,
		Dropoff:     req.Dropoff,
		Items:       append([]string{}, req.Items...),
		DistanceKm:  est.DistanceKm,
		DurationMin: est.DurationMin,
		Distance:    domain.FormatDistance(est.DistanceKm),
		Duration:    domain.FormatDuration(est.DurationMin),
		Reasoning:   est.Reasoning,
		Source:      est.Source,
		Breakdown:   breakdown,
		Price:       breakdown.Total,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}

	if err := s.store.Save(ctx, q, s.ttl); err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("save quote: %w", err))
	}

	s.log.Debug().Str("quote_id", q.ID).Str("source", q.Source).Int64("price", q.Price).
		Float64("multiplier", breakdown.Multiplier).Msg("quote issued")
	return q, nil
}

// GetQuote returns a live quote.
func (s *QuoteServiceImpl) GetQuote(ctx context.Context, id string) (*domain.Quote, error) {
	q, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("get quote: %w", err))
	}
	if q == nil {
		return nil, apperror.ErrQuoteExpired()
	}
	return q, nil
}
