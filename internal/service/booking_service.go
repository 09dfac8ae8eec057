package service

import (
	"context"
	"fmt"
	"time"

	"courier-dispatch/internal/core/domain"
	"courier-dispatch/internal/core/ports"
	"courier-dispatch/pkg/apperror"

	"github.com/rs/zerolog"
)

// BookingServiceImpl implements ports.BookingService: quote, rider, charge,
// delivery, in that order.
type BookingServiceImpl struct {
	quotes     ports.QuoteService
	store      ports.QuoteStore
	matcher    ports.RiderMatcher
	wallet     ports.WalletService
	deliveries ports.DeliveryService
	locker     ports.Locker
	now        func() time.Time
	log        zerolog.Logger
}

// NewBookingService creates a new BookingServiceImpl. matcher may be nil, in
// which case bookings without a rider stay unassigned.
func NewBookingService(
	quotes ports.QuoteService,
	store ports.QuoteStore,
	matcher ports.RiderMatcher,
	wallet ports.WalletService,
	deliveries ports.DeliveryService,
	locker ports.Locker,
	log zerolog.Logger,
) *BookingServiceImpl {
	return &BookingServiceImpl{
		quotes:     quotes,
		store:      store,
		matcher:    matcher,
		wallet:     wallet,
		deliveries: deliveries,
		locker:     locker,
		now:        time.Now,
		log:        log,
	}
}

// Confirm charges the sender for a quote and creates the delivery. A quote
// can be confirmed once. When funds are insufficient nothing is created and
// the quote stays confirmable.
func (s *BookingServiceImpl) Confirm(ctx context.Context, req ports.ConfirmBookingRequest) (*domain.Delivery, error) {
	if req.Sender == nil || req.Sender.Role != domain.RoleSender {
		return nil, apperror.ErrForbidden()
	}
	priority, err := domain.ParsePriority(string(req.Priority))
	if err != nil {
		return nil, apperror.ErrInvalidInput(err.Error())
	}

	// Matching may take matching.delay, so it runs before the quote lock is held.
	q, err := s.ownedQuote(ctx, req)
	if err != nil {
		return nil, err
	}
	rider := req.Rider
	if rider == nil && s.matcher != nil {
		matched, err := s.matcher.Match(ctx, q.Pickup)
		if err != nil {
			s.log.Warn().Err(err).Str("quote_id", q.ID).Msg("rider matching failed, booking unassigned")
		} else {
			rider = matched.Stamp()
		}
	}

	unlock, err := acquire(ctx, s.locker, "quote:"+req.QuoteID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Another confirm may have consumed the quote while we were matching.
	q, err = s.ownedQuote(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, q.ID); err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("consume quote: %w", err))
	}

	deliveryID := domain.NewDeliveryID()
	charged, err := s.wallet.Charge(ctx, req.Sender.ID, q.Price, deliveryID)
	if err != nil {
		s.restoreQuote(ctx, q)
		return nil, err
	}
	if !charged {
		s.restoreQuote(ctx, q)
		return nil, apperror.ErrInsufficientFunds()
	}

	breakdown := q.Breakdown
	d, err := s.deliveries.Create(ctx, ports.CreateDeliveryRequest{
		ID:             deliveryID,
		SenderID:       req.Sender.ID,
		CustomerName:   req.CustomerName,
		PickupAddress:  q.Pickup,
		DropoffAddress: q.Dropoff,
		Items:          q.Items,
		Priority:       priority,
		DistanceKm:     q.DistanceKm,
		DurationMin:    q.DurationMin,
		Price:          q.Price,
		FareBreakdown:  &breakdown,
		Rider:          rider,
	})
	if err != nil {
		if _, rerr := s.wallet.Refund(ctx, req.Sender.ID, q.Price, deliveryID); rerr != nil {
			s.log.Error().Err(rerr).Str("delivery_id", deliveryID).Int64("amount", q.Price).
				Msg("refund after failed booking did not complete")
		} else {
			s.restoreQuote(ctx, q)
		}
		return nil, fmt.Errorf("create delivery: %w", err)
	}

	s.log.Info().Str("delivery_id", d.ID).Str("quote_id", q.ID).Bool("rider_assigned", d.Rider != nil).
		Msg("booking confirmed")
	return d, nil
}

// ownedQuote loads a live quote issued to the requesting sender. Someone
// else's quote is reported as expired.
func (s *BookingServiceImpl) ownedQuote(ctx context.Context, req ports.ConfirmBookingRequest) (*domain.Quote, error) {
	q, err := s.quotes.GetQuote(ctx, req.QuoteID)
	if err != nil {
		return nil, err
	}
	if q.SenderID != req.Sender.ID {
		return nil, apperror.ErrQuoteExpired()
	}
	return q, nil
}

// restoreQuote puts a consumed quote back for the rest of its lifetime.
func (s *BookingServiceImpl) restoreQuote(ctx context.Context, q *domain.Quote) {
	ttl := q.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return
	}
	if err := s.store.Save(ctx, q, ttl); err != nil {
		s.log.Warn().Err(err).Str("quote_id", q.ID).Msg("could not restore unconfirmed quote")
	}
}
