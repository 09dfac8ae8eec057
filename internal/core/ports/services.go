package ports

//go:generate mockgen -source=services.go -destination=mocks/services_mock.go -package=mocks

import (
	"context"
	"time"

	"courier-dispatch/internal/core/domain"
)

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID string, role domain.Role) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID string
	Role   domain.Role
}

// --- Service Ports (Business Logic) ---

// WalletService is the sender's prepaid ledger.
type WalletService interface {
	GetWallet(ctx context.Context, accountID string) (*domain.WalletAccount, error)
	Fund(ctx context.Context, accountID string, amount int64) (*domain.WalletAccount, error)
	// Charge debits amount atomically; false means insufficient funds and no mutation.
	Charge(ctx context.Context, accountID string, amount int64, reference string) (bool, error)
	Refund(ctx context.Context, accountID string, amount int64, reference string) (*domain.WalletAccount, error)
	CurrentBalance(ctx context.Context, accountID string) (int64, error)
	HasSufficientFunds(ctx context.Context, accountID string, amount int64) (bool, error)
}

// DeliveryService owns the delivery collection and its state machine.
type DeliveryService interface {
	Create(ctx context.Context, req CreateDeliveryRequest) (*domain.Delivery, error)
	Get(ctx context.Context, id string) (*domain.Delivery, error)
	List(ctx context.Context) ([]*domain.Delivery, error)
	ListBySender(ctx context.Context, senderID string) ([]*domain.Delivery, error)
	ActiveJobs(ctx context.Context) ([]*domain.Delivery, error)
	Advance(ctx context.Context, id string, target domain.DeliveryStatus, rider *domain.RiderStamp) (*domain.Delivery, error)
	Cancel(ctx context.Context, id string, reason string) (*domain.Delivery, error)
	RiderSummary(ctx context.Context, rider *domain.UserAccount) (*RiderSummary, error)
}

// CreateDeliveryRequest holds validated input for a new delivery.
type CreateDeliveryRequest struct {
	ID             string
	SenderID       string
	CustomerName   string
	PickupAddress  string
	DropoffAddress string
	Items          []string
	Priority       domain.Priority
	DistanceKm     float64
	DurationMin    float64
	Price          int64
	FareBreakdown  *domain.FareBreakdown
	Rider          *domain.RiderStamp
}

// RiderSummary aggregates the rider dashboard.
type RiderSummary struct {
	RiderID    string           `json:"rider_id"`
	ActiveJobs int              `json:"active_jobs"`
	Completed  int              `json:"completed"`
	Earnings   int64            `json:"earnings"`
	CurrentJob *domain.Delivery `json:"current_job,omitempty"`
}

// QuoteService prices trips.
type QuoteService interface {
	RequestQuote(ctx context.Context, senderID string, req domain.QuoteRequest) (*domain.Quote, error)
	GetQuote(ctx context.Context, id string) (*domain.Quote, error)
}

// BookingService turns a quote into a paid delivery.
type BookingService interface {
	Confirm(ctx context.Context, req ConfirmBookingRequest) (*domain.Delivery, error)
}

// ConfirmBookingRequest holds validated input for a booking.
type ConfirmBookingRequest struct {
	Sender       *domain.UserAccount
	QuoteID      string
	CustomerName string
	Priority     domain.Priority
	// Rider is optional; when nil a rider is matched.
	Rider *domain.RiderStamp
}

// InsightService serves rider dashboard tips.
type InsightService interface {
	Insights(ctx context.Context, rider *domain.UserAccount) ([]domain.Insight, error)
}

// AuthService manages the user directory identities.
type AuthService interface {
	Signup(ctx context.Context, req SignupRequest) (*domain.UserAccount, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	// Authenticate resolves a bearer token to its account.
	Authenticate(ctx context.Context, token string) (*domain.UserAccount, error)
	// UpdateProfile applies the set fields of req to the caller's account.
	UpdateProfile(ctx context.Context, user *domain.UserAccount, req ProfileUpdate) (*domain.UserAccount, error)
	// SetAvailability takes a rider on or off duty for matching.
	SetAvailability(ctx context.Context, user *domain.UserAccount, available bool) (*domain.UserAccount, error)
}

// ProfileUpdate holds optional profile edits; nil fields are left unchanged.
// VehicleType and PlateNumber apply to riders only.
type ProfileUpdate struct {
	Name        *string
	Phone       *string
	VehicleType *string
	PlateNumber *string
}

// SignupRequest holds input for account creation.
type SignupRequest struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
	Phone    string
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.UserAccount
}
