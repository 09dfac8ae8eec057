package dto

import (
	"time"

	"courier-dispatch/internal/core/domain"
)

// SignupRequest is the request body for account creation.
type SignupRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=80"`
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=6,max=128" sanitize:"-"`
	Role     string `json:"role" binding:"omitempty,oneof=sender rider"`
	Phone    string `json:"phone" binding:"omitempty,max=20"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required" sanitize:"-"`
}

// LoginResponse is the response body for a successful login.
type LoginResponse struct {
	Token  string       `json:"token"`
	Expiry int64        `json:"expiry"` // Unix timestamp
	User   UserResponse `json:"user"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	Avatar      string    `json:"avatar"`
	Phone       string    `json:"phone,omitempty"`
	VehicleType string    `json:"vehicle_type,omitempty"`
	PlateNumber string    `json:"plate_number,omitempty"`
	IsAvailable bool      `json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewUserResponse drops the credential fields of u.
func NewUserResponse(u *domain.UserAccount) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        string(u.Role),
		Avatar:      u.Avatar,
		Phone:       u.Phone,
		VehicleType: u.VehicleType,
		PlateNumber: u.PlateNumber,
		IsAvailable: u.IsAvailable,
		CreatedAt:   u.CreatedAt,
	}
}

// UpdateProfileRequest edits the caller's profile; absent fields are kept.
type UpdateProfileRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=2,max=80"`
	Phone       *string `json:"phone" binding:"omitempty,max=20"`
	VehicleType *string `json:"vehicle_type" binding:"omitempty,min=2,max=40"`
	PlateNumber *string `json:"plate_number" binding:"omitempty,min=2,max=20"`
}

// AvailabilityRequest takes a rider on or off duty.
type AvailabilityRequest struct {
	Available *bool `json:"available" binding:"required"`
}

// FundRequest is the request body for a wallet top-up.
type FundRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0,max=100000000"`
}

// QuoteRequest is the request body for a price quote.
type QuoteRequest struct {
	Pickup  string   `json:"pickup" binding:"required,address"`
	Dropoff string   `json:"dropoff" binding:"required,address"`
	Items   []string `json:"items" binding:"omitempty,max=20,dive,min=1,max=100"`
}

// BookDeliveryRequest confirms a quote into a delivery.
type BookDeliveryRequest struct {
	QuoteID      string `json:"quote_id" binding:"required,uuid"`
	CustomerName string `json:"customer_name" binding:"omitempty,max=80"`
	Priority     string `json:"priority" binding:"omitempty,oneof=LOW MEDIUM HIGH low medium high"`
}

// AdvanceRequest moves a job to its next status.
type AdvanceRequest struct {
	Status string `json:"status" binding:"required,oneof=ACCEPTED PICKED_UP IN_TRANSIT DELIVERED"`
}

// CancelRequest cancels a delivery.
type CancelRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=280"`
}

// StreamMessage is one frame on a delivery stream.
type StreamMessage struct {
	Type     string                `json:"type"` // snapshot or an event type
	Delivery *domain.Delivery      `json:"delivery,omitempty"`
	Event    *domain.DeliveryEvent `json:"event,omitempty"`
}
