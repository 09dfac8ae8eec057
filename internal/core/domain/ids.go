package domain

import (
	"strings"

	"github.com/google/uuid"
)

// shortID returns n uppercase hex characters taken from a random uuid.
func shortID(n int) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:n])
}

// NewDeliveryID returns a tracking id such as "BR-3F9A02C1D4".
func NewDeliveryID() string {
	return "BR-" + shortID(10)
}

// NewFundTransactionID returns an id for a wallet credit.
func NewFundTransactionID() string {
	return "TX-FUND-" + shortID(12)
}

// NewPaymentTransactionID returns an id for a wallet debit.
func NewPaymentTransactionID() string {
	return "TX-PAY-" + shortID(12)
}
