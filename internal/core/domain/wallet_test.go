package domain

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWalletAccount_OpeningBonus(t *testing.T) {
	w := NewWalletAccount("sender-1", 5000, t0)

	assert.Equal(t, int64(5000), w.Balance)
	require.Len(t, w.Transactions, 1)
	assert.Equal(t, "TX-INIT", w.Transactions[0].ID)
	assert.Equal(t, KindFund, w.Transactions[0].Kind)
	assert.Equal(t, "Account Opening Bonus", w.Transactions[0].Description)
	assert.Equal(t, w.Balance, w.LedgerBalance())

	empty := NewWalletAccount("sender-2", 0, t0)
	assert.Zero(t, empty.Balance)
	assert.Empty(t, empty.Transactions)
}

func TestWalletAccount_Fund(t *testing.T) {
	w := NewWalletAccount("sender-1", 5000, t0)

	tx, err := w.Fund(1000, t0.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, int64(6000), w.Balance)
	require.Len(t, w.Transactions, 2)
	assert.Equal(t, tx, w.Transactions[0], "newest first")
	assert.Equal(t, KindFund, tx.Kind)
	assert.Equal(t, int64(1000), tx.Amount)

	for _, amount := range []int64{0, -5} {
		_, err := w.Fund(amount, t0)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}
	assert.Equal(t, int64(6000), w.Balance)
}

func TestWalletAccount_DebitInsufficient(t *testing.T) {
	w := NewWalletAccount("sender-1", 100, t0)

	_, ok, err := w.Debit(200, "BR-1", t0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(100), w.Balance)
	assert.Len(t, w.Transactions, 1, "no partial log entry")
}

func TestWalletAccount_Debit(t *testing.T) {
	w := NewWalletAccount("sender-1", 5000, t0)

	tx, ok, err := w.Debit(2030, "BR-77", t0)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, int64(2970), w.Balance)
	assert.Equal(t, KindPayment, tx.Kind)
	assert.Equal(t, "Delivery Payment: BR-77", tx.Description)
	assert.Equal(t, "BR-77", tx.Reference)
	assert.Equal(t, int64(-2030), tx.Signed())

	_, _, err = w.Debit(0, "BR-78", t0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestWalletAccount_BalanceEqualsLedger(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	w := NewWalletAccount("sender-1", 5000, t0)
	funded, charged := int64(5000), int64(0)

	for i := 0; i < 500; i++ {
		amount := rng.Int63n(3000) + 1
		if rng.Intn(2) == 0 {
			_, err := w.Fund(amount, t0)
			require.NoError(t, err)
			funded += amount
			continue
		}
		_, ok, err := w.Debit(amount, "BR-X", t0)
		require.NoError(t, err)
		if ok {
			charged += amount
		}
		require.GreaterOrEqual(t, w.Balance, int64(0))
	}

	assert.Equal(t, funded-charged, w.Balance)
	assert.Equal(t, w.Balance, w.LedgerBalance())
}

func TestWalletAccount_CloneAndRoundTrip(t *testing.T) {
	w := NewWalletAccount("sender-1", 5000, t0)
	_, err := w.Fund(250, t0.Add(time.Second))
	require.NoError(t, err)

	c := w.Clone()
	c.Transactions[0].Amount = 1
	assert.Equal(t, int64(250), w.Transactions[0].Amount)

	raw, err := json.Marshal(w)
	require.NoError(t, err)
	var loaded WalletAccount
	require.NoError(t, json.Unmarshal(raw, &loaded))
	assert.Equal(t, w, &loaded)
}
