package ports

//go:generate mockgen -source=collaborators.go -destination=mocks/collaborators_mock.go -package=mocks

import (
	"context"

	"courier-dispatch/internal/core/domain"
)

// Locker provides single-writer critical sections keyed by name.
type Locker interface {
	// Lock blocks until key is held or ctx is done. The returned func releases it.
	Lock(ctx context.Context, key string) (func(), error)
}

// QuoteProvider estimates distance and duration for a trip.
type QuoteProvider interface {
	Estimate(ctx context.Context, req domain.QuoteRequest) (domain.Estimate, error)
}

// InsightProvider produces dashboard tips for a rider.
type InsightProvider interface {
	Insights(ctx context.Context, deliveries []*domain.Delivery) ([]domain.Insight, error)
}

// RiderMatcher picks a rider for a pickup point.
type RiderMatcher interface {
	Match(ctx context.Context, pickup string) (*domain.UserAccount, error)
}

// EventPublisher receives delivery events after each persisted mutation.
// Publish must not block the caller on slow consumers.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.DeliveryEvent)
}
