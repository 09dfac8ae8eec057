package postgres

import (
	"context"
	"errors"
	"fmt"

	"courier-dispatch/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository. The ledger lives in
// wallet_transactions and is only ever appended to.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Get loads an account with its transactions, newest first.
func (r *WalletRepo) Get(ctx context.Context, accountID string) (*domain.WalletAccount, error) {
	query := `SELECT account_id, balance, created_at, updated_at FROM wallets WHERE account_id = $1`

	w := &domain.WalletAccount{}
	err := r.pool.QueryRow(ctx, query, accountID).Scan(&w.AccountID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, kind, amount, description, reference, created_at
		FROM wallet_transactions WHERE account_id = $1 ORDER BY seq DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list wallet transactions: %w", err)
	}
	defer rows.Close()

	w.Transactions = []domain.WalletTransaction{}
	for rows.Next() {
		var tx domain.WalletTransaction
		var kind string
		if err := rows.Scan(&tx.ID, &kind, &tx.Amount, &tx.Description, &tx.Reference, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan wallet transaction: %w", err)
		}
		tx.Kind = domain.TransactionKind(kind)
		w.Transactions = append(w.Transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet transactions: %w", err)
	}
	return w, nil
}

// Save upserts the balance and appends transactions not yet stored.
func (r *WalletRepo) Save(ctx context.Context, w *domain.WalletAccount) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO wallets (account_id, balance, created_at, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (account_id) DO UPDATE SET balance = EXCLUDED.balance, updated_at = EXCLUDED.updated_at`,
			w.AccountID, w.Balance, w.CreatedAt, w.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert wallet: %w", err)
		}

		// Oldest first so seq follows ledger order.
		for i := len(w.Transactions) - 1; i >= 0; i-- {
			t := w.Transactions[i]
			_, err := tx.Exec(ctx,
				`INSERT INTO wallet_transactions (account_id, id, kind, amount, description, reference, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (account_id, id) DO NOTHING`,
				w.AccountID, t.ID, string(t.Kind), t.Amount, t.Description, t.Reference, t.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("insert wallet transaction %s: %w", t.ID, err)
			}
		}
		return nil
	})
}
