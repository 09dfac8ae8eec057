package ports

//go:generate mockgen -source=repositories.go -destination=mocks/repositories_mock.go -package=mocks

import (
	"context"
	"time"

	"courier-dispatch/internal/core/domain"
)

// DeliveryRepository persists delivery records. Implementations return deep
// copies; mutating a returned value never changes stored state.
type DeliveryRepository interface {
	// Create stores a new delivery; it becomes the newest entry of List.
	Create(ctx context.Context, d *domain.Delivery) error
	// GetByID returns nil, nil when the delivery does not exist.
	GetByID(ctx context.Context, id string) (*domain.Delivery, error)
	Update(ctx context.Context, d *domain.Delivery) error
	// List returns all deliveries, newest first.
	List(ctx context.Context) ([]*domain.Delivery, error)
	ListBySender(ctx context.Context, senderID string) ([]*domain.Delivery, error)
}

// WalletRepository persists wallet accounts.
type WalletRepository interface {
	// Get returns nil, nil when the account has never been opened.
	Get(ctx context.Context, accountID string) (*domain.WalletAccount, error)
	Save(ctx context.Context, w *domain.WalletAccount) error
}

// UserRepository is the user directory.
type UserRepository interface {
	// Create fails with ErrDuplicateEmail when the email is taken.
	Create(ctx context.Context, u *domain.UserAccount) error
	GetByID(ctx context.Context, id string) (*domain.UserAccount, error)
	GetByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
	// Update rewrites the profile and availability of an existing account.
	// Email, role and password hash are fixed at signup.
	Update(ctx context.Context, u *domain.UserAccount) error
	ListRiders(ctx context.Context) ([]*domain.UserAccount, error)
}

// QuoteStore keeps priced quotes until they are confirmed or expire.
type QuoteStore interface {
	Save(ctx context.Context, q *domain.Quote, ttl time.Duration) error
	// Get returns nil, nil for unknown or expired quotes.
	Get(ctx context.Context, id string) (*domain.Quote, error)
	Delete(ctx context.Context, id string) error
}

// RateLimitStore counts requests in fixed windows.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}
