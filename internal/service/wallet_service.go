package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"courier-dispatch/internal/core/domain"
	"courier-dispatch/internal/core/ports"
	"courier-dispatch/pkg/apperror"

	"github.com/rs/zerolog"
)

// WalletServiceImpl implements ports.WalletService. Every read-modify-write
// of an account runs under the "wallet:<id>" lock, so the balance check and
// the debit of Charge are a single decision.
type WalletServiceImpl struct {
	repo    ports.WalletRepository
	locker  ports.Locker
	opening int64
	now     func() time.Time
	log     zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl. Accounts open with
// openingBalance on first access.
func NewWalletService(repo ports.WalletRepository, locker ports.Locker, openingBalance int64, log zerolog.Logger) *WalletServiceImpl {
	return &WalletServiceImpl{
		repo:    repo,
		locker:  locker,
		opening: openingBalance,
		now:     func() time.Time { return time.Now().UTC() },
		log:     log,
	}
}

// GetWallet returns the account, opening it if needed.
func (s *WalletServiceImpl) GetWallet(ctx context.Context, accountID string) (*domain.WalletAccount, error) {
	var out *domain.WalletAccount
	err := s.withAccount(ctx, accountID, func(w *domain.WalletAccount) (bool, error) {
		out = w.Clone()
		return false, nil
	})
	return out, err
}

// Fund credits amount as a top-up.
func (s *WalletServiceImpl) Fund(ctx context.Context, accountID string, amount int64) (*domain.WalletAccount, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	var out *domain.WalletAccount
	err := s.withAccount(ctx, accountID, func(w *domain.WalletAccount) (bool, error) {
		tx, err := w.Fund(amount, s.now())
		if err != nil {
			return false, apperror.ErrInvalidAmount()
		}
		s.log.Info().Str("account_id", accountID).Str("tx_id", tx.ID).Int64("amount", amount).
			Int64("balance", w.Balance).Msg("wallet funded")
		out = w.Clone()
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Charge debits amount if the balance covers it. It returns false without
// touching the ledger when funds are insufficient.
func (s *WalletServiceImpl) Charge(ctx context.Context, accountID string, amount int64, reference string) (bool, error) {
	if amount <= 0 {
		return false, apperror.ErrInvalidAmount()
	}

	var charged bool
	err := s.withAccount(ctx, accountID, func(w *domain.WalletAccount) (bool, error) {
		tx, ok, err := w.Debit(amount, reference, s.now())
		if err != nil {
			return false, apperror.ErrInvalidAmount()
		}
		if !ok {
			s.log.Info().Str("account_id", accountID).Int64("amount", amount).
				Int64("balance", w.Balance).Msg("charge declined: insufficient funds")
			return false, nil
		}
		charged = true
		s.log.Info().Str("account_id", accountID).Str("tx_id", tx.ID).Str("reference", reference).
			Int64("amount", amount).Int64("balance", w.Balance).Msg("wallet charged")
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return charged, nil
}

// Refund credits amount back against reference.
func (s *WalletServiceImpl) Refund(ctx context.Context, accountID string, amount int64, reference string) (*domain.WalletAccount, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	var out *domain.WalletAccount
	err := s.withAccount(ctx, accountID, func(w *domain.WalletAccount) (bool, error) {
		tx, err := w.Credit(amount, "Refund: "+reference, reference, s.now())
		if err != nil {
			return false, apperror.ErrInvalidAmount()
		}
		s.log.Warn().Str("account_id", accountID).Str("tx_id", tx.ID).Str("reference", reference).
			Int64("amount", amount).Msg("wallet refunded")
		out = w.Clone()
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *WalletServiceImpl) CurrentBalance(ctx context.Context, accountID string) (int64, error) {
	w, err := s.GetWallet(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return w.Balance, nil
}

// HasSufficientFunds is advisory; a concurrent charge may spend the balance
// right after it answers.
func (s *WalletServiceImpl) HasSufficientFunds(ctx context.Context, accountID string, amount int64) (bool, error) {
	if amount <= 0 {
		return false, apperror.ErrInvalidAmount()
	}
	balance, err := s.CurrentBalance(ctx, accountID)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

// withAccount runs fn on the locked account and saves it when fn reports a
// change or the account was opened by this call.
func (s *WalletServiceImpl) withAccount(ctx context.Context, accountID string, fn func(w *domain.WalletAccount) (bool, error)) error {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return apperror.ErrInvalidInput("account id is required")
	}

	unlock, err := acquire(ctx, s.locker, walletLockKey(accountID))
	if err != nil {
		return err
	}
	defer unlock()

	w, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return apperror.ErrStorage(fmt.Errorf("load wallet %s: %w", accountID, err))
	}
	opened := false
	if w == nil {
		w = domain.NewWalletAccount(accountID, s.opening, s.now())
		opened = true
		s.log.Info().Str("account_id", accountID).Int64("opening_balance", s.opening).Msg("wallet opened")
	}

	changed, err := fn(w)
	if err != nil {
		return err
	}
	if !changed && !opened {
		return nil
	}
	if err := s.repo.Save(ctx, w); err != nil {
		return apperror.ErrStorage(fmt.Errorf("save wallet %s: %w", accountID, err))
	}
	return nil
}
