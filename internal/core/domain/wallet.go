package domain

import (
	"fmt"
	"time"
)

// TransactionKind distinguishes credits from debits.
type TransactionKind string

const (
	KindFund    TransactionKind = "fund"
	KindPayment TransactionKind = "payment"
)

const (
	openingTransactionID  = "TX-INIT"
	openingDescription    = "Account Opening Bonus"
	fundDescription       = "Wallet Top-up"
	paymentDescriptionFmt = "Delivery Payment: %s"
)

// WalletTransaction is an immutable ledger entry. Amount is always positive;
// Kind carries the sign.
type WalletTransaction struct {
	ID          string          `json:"id"`
	Kind        TransactionKind `json:"kind"`
	Amount      int64           `json:"amount"`
	Description string          `json:"description"`
	Reference   string          `json:"reference,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Signed returns the amount with its ledger sign.
func (t WalletTransaction) Signed() int64 {
	if t.Kind == KindPayment {
		return -t.Amount
	}
	return t.Amount
}

// WalletAccount is a sender's prepaid balance and its ledger, newest first.
type WalletAccount struct {
	AccountID    string              `json:"account_id"`
	Balance      int64               `json:"balance"`
	Transactions []WalletTransaction `json:"transactions"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// NewWalletAccount opens an account. A positive opening balance is booked as
// a fund transaction so the ledger always sums to the balance.
func NewWalletAccount(accountID string, openingBalance int64, now time.Time) *WalletAccount {
	w := &WalletAccount{
		AccountID:    accountID,
		Transactions: []WalletTransaction{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if openingBalance > 0 {
		w.record(WalletTransaction{
			ID:          openingTransactionID,
			Kind:        KindFund,
			Amount:      openingBalance,
			Description: openingDescription,
			CreatedAt:   now,
		})
	}
	return w
}

// Fund credits the account with a top-up.
func (w *WalletAccount) Fund(amount int64, at time.Time) (WalletTransaction, error) {
	return w.Credit(amount, fundDescription, "", at)
}

// Credit books a fund transaction with a custom description.
func (w *WalletAccount) Credit(amount int64, description, reference string, at time.Time) (WalletTransaction, error) {
	if amount <= 0 {
		return WalletTransaction{}, ErrInvalidAmount
	}
	tx := WalletTransaction{
		ID:          NewFundTransactionID(),
		Kind:        KindFund,
		Amount:      amount,
		Description: description,
		Reference:   reference,
		CreatedAt:   at,
	}
	w.record(tx)
	return tx, nil
}

// Debit books a payment if the balance covers it. It returns false, and
// leaves the account untouched, when funds are insufficient.
func (w *WalletAccount) Debit(amount int64, reference string, at time.Time) (WalletTransaction, bool, error) {
	if amount <= 0 {
		return WalletTransaction{}, false, ErrInvalidAmount
	}
	if w.Balance < amount {
		return WalletTransaction{}, false, nil
	}
	tx := WalletTransaction{
		ID:          NewPaymentTransactionID(),
		Kind:        KindPayment,
		Amount:      amount,
		Description: fmt.Sprintf(paymentDescriptionFmt, reference),
		Reference:   reference,
		CreatedAt:   at,
	}
	w.record(tx)
	return tx, true, nil
}

func (w *WalletAccount) record(tx WalletTransaction) {
	w.Transactions = append([]WalletTransaction{tx}, w.Transactions...)
	w.Balance += tx.Signed()
	w.UpdatedAt = tx.CreatedAt
}

// LedgerBalance sums the signed transactions.
func (w *WalletAccount) LedgerBalance() int64 {
	var sum int64
	for _, tx := range w.Transactions {
		sum += tx.Signed()
	}
	return sum
}

// Clone returns a deep copy.
func (w *WalletAccount) Clone() *WalletAccount {
	if w == nil {
		return nil
	}
	c := *w
	c.Transactions = append([]WalletTransaction{}, w.Transactions...)
	return &c
}
