package memory

import (
	"context"
	"sync"

	"courier-dispatch/internal/core/domain"
)

// WalletRepo implements ports.WalletRepository in memory.
type WalletRepo struct {
	mu      sync.RWMutex
	wallets map[string]*domain.WalletAccount
}

// NewWalletRepo creates an empty wallet repository.
func NewWalletRepo() *WalletRepo {
	return &WalletRepo{wallets: make(map[string]*domain.WalletAccount)}
}

func (r *WalletRepo) Get(ctx context.Context, accountID string) (*domain.WalletAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.wallets[accountID].Clone(), nil
}

func (r *WalletRepo) Save(ctx context.Context, w *domain.WalletAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wallets[w.AccountID] = w.Clone()
	return nil
}
