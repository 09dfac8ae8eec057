package domain

import "errors"

// Sentinel errors raised by domain rules. Services translate them to
// apperror values before they reach a transport.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownStatus     = errors.New("unknown delivery status")
)
