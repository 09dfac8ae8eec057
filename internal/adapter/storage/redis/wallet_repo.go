package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"courier-dispatch/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// WalletRepo implements ports.WalletRepository with one JSON document per account.
type WalletRepo struct {
	client *goredis.Client
	prefix string
	log    zerolog.Logger
}

// NewWalletRepo creates a Redis-backed wallet repository.
func NewWalletRepo(client *goredis.Client, log zerolog.Logger) *WalletRepo {
	return &WalletRepo{
		client: client,
		prefix: keyPrefix + "wallet:",
		log:    log,
	}
}

// Get returns nil for missing or corrupt accounts; a corrupt account is
// reopened by the wallet service.
func (r *WalletRepo) Get(ctx context.Context, accountID string) (*domain.WalletAccount, error) {
	raw, err := r.client.Get(ctx, r.prefix+accountID).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis wallet get: %w", err)
	}

	var w domain.WalletAccount
	if err := json.Unmarshal(raw, &w); err != nil {
		r.log.Warn().Err(err).Str("account_id", accountID).Msg("discarding corrupt wallet record")
		return nil, nil
	}
	return &w, nil
}

func (r *WalletRepo) Save(ctx context.Context, w *domain.WalletAccount) error {
	payload, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode wallet %s: %w", w.AccountID, err)
	}
	if err := r.client.Set(ctx, r.prefix+w.AccountID, payload, 0).Err(); err != nil {
		return fmt.Errorf("redis wallet set: %w", err)
	}
	return nil
}
