package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwojci/budget-agent/pkg/api"
)

// memStore is an in-memory TransactionStore for exercising AppendNew.
type memStore struct {
	txs     []api.Transaction
	appends int
}

func (m *memStore) Transactions(context.Context) ([]api.Transaction, error) {
	return m.txs, nil
}

func (m *memStore) Identities(context.Context) (map[string]bool, error) {
	ids := make(map[string]bool, len(m.txs))
	for _, tx := range m.txs {
		ids[tx.Identity()] = true
	}
	return ids, nil
}

func (m *memStore) Append(_ context.Context, txs []api.Transaction) error {
	m.txs = append(m.txs, txs...)
	m.appends++
	return nil
}

func (m *memStore) Recategorize(context.Context, string, string, string) (int, error) {
	return 0, nil
}

func tx(tm, desc, expense string) api.Transaction {
	return api.Transaction{
		Time:        tm,
		Description: desc,
		Expense:     decimal.RequireFromString(expense),
		Date:        "2024-01-15",
	}
}

func TestAppendNewIsIdempotent(t *testing.T) {
	store := &memStore{}
	batch := []api.Transaction{
		tx("12:30", "BIEDRONKA", "45.99"),
		tx("15:45", "ZABKA", "12.50"),
	}

	saved, err := AppendNew(context.Background(), store, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, saved)
	assert.Len(t, store.txs, 2)

	// Same statement fetched again the next day.
	saved, err = AppendNew(context.Background(), store, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, saved)
	assert.Len(t, store.txs, 2)
	assert.Equal(t, 1, store.appends, "empty batches must not hit the store")
}

func TestAppendNewMixedBatch(t *testing.T) {
	store := &memStore{}
	_, err := AppendNew(context.Background(), store, []api.Transaction{
		tx("12:30", "BIEDRONKA", "45.99"),
	})
	require.NoError(t, err)

	saved, err := AppendNew(context.Background(), store, []api.Transaction{
		tx("12:30", "BIEDRONKA", "45.99"), // already stored
		tx("18:00", "ROSSMANN", "30.00"),  // new
	})
	require.NoError(t, err)
	assert.Equal(t, 1, saved)
	require.Len(t, store.txs, 2)
	assert.Equal(t, "ROSSMANN", store.txs[1].Description)
}

func TestAppendNewCollapsesInBatchDuplicates(t *testing.T) {
	store := &memStore{}
	dup := tx("12:30", "BIEDRONKA", "45.99")

	saved, err := AppendNew(context.Background(), store, []api.Transaction{dup, dup})
	require.NoError(t, err)
	assert.Equal(t, 1, saved)
	assert.Len(t, store.txs, 1)
}

func TestIdentityNormalizesAmountScale(t *testing.T) {
	a := tx("12:30", "BIEDRONKA", "1200")
	b := tx("12:30", "BIEDRONKA", "1200.00")
	assert.Equal(t, a.Identity(), b.Identity())
}

func TestAppendNewEmptyBatch(t *testing.T) {
	store := &memStore{}
	saved, err := AppendNew(context.Background(), store, nil)
	require.NoError(t, err)
	assert.Zero(t, saved)
	assert.Zero(t, store.appends)
}
