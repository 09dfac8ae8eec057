package ports

import "errors"

// Errors shared by storage adapters.
var (
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrDuplicateDelivery = errors.New("delivery already exists")
	ErrDeliveryNotFound  = errors.New("delivery not found")
	ErrUserNotFound      = errors.New("user not found")
)
