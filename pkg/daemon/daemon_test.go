package daemon

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwojci/budget-agent/pkg/api"
)

type fakeStores struct {
	txs      []api.Transaction
	income   decimal.Decimal
	archived []string
	appended []api.MonthSummary
}

func (f *fakeStores) Transactions(context.Context) ([]api.Transaction, error) { return f.txs, nil }
func (f *fakeStores) Identities(context.Context) (map[string]bool, error) {
	ids := make(map[string]bool, len(f.txs))
	for _, tx := range f.txs {
		ids[tx.Identity()] = true
	}
	return ids, nil
}
func (f *fakeStores) Append(_ context.Context, txs []api.Transaction) error {
	f.txs = append(f.txs, txs...)
	return nil
}
func (f *fakeStores) Recategorize(context.Context, string, string, string) (int, error) {
	return 0, nil
}

func (f *fakeStores) MonthlyIncome(context.Context) (decimal.Decimal, error) { return f.income, nil }

func (f *fakeStores) ArchivedMonths(context.Context) ([]string, error) { return f.archived, nil }
func (f *fakeStores) AppendSummary(_ context.Context, s api.MonthSummary) error {
	f.appended = append(f.appended, s)
	f.archived = append(f.archived, s.Month)
	return nil
}

type fakeNotifier struct {
	sent []string
}

func (f *fakeNotifier) Send(text string) { f.sent = append(f.sent, text) }

// brokenSchemaStore fails the pre-run schema check.
type brokenSchemaStore struct {
	fakeStores
}

func (*brokenSchemaStore) EnsureExpenseHeader(context.Context) error {
	return errors.New("header mismatch")
}

func newRunner(stores *fakeStores) *Runner {
	return &Runner{
		Transactions: stores,
		Budget:       stores,
		History:      stores,
		Logger:       slog.Default(),
	}
}

func TestArchiveRunsEarlyInMonth(t *testing.T) {
	stores := &fakeStores{
		income: decimal.RequireFromString("2500"),
		txs: []api.Transaction{
			{Description: "RENT", Expense: decimal.RequireFromString("1500"),
				Date: "2023-12-05", Category: "Housing", Type: api.TypeNeed},
		},
	}
	r := newRunner(stores)

	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, r.archivePreviousMonth(context.Background(), slog.Default(), now))

	require.Len(t, stores.appended, 1)
	sum := stores.appended[0]
	assert.Equal(t, "2023-12", sum.Month)
	assert.Equal(t, "1500.00", sum.TotalSpent.StringFixed(2))
	assert.Equal(t, "1000.00", sum.BonusSavings.StringFixed(2))
}

func TestArchiveIsIdempotent(t *testing.T) {
	stores := &fakeStores{income: decimal.RequireFromString("2500")}
	r := newRunner(stores)
	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, r.archivePreviousMonth(context.Background(), slog.Default(), now))
	require.NoError(t, r.archivePreviousMonth(context.Background(), slog.Default(), now))

	assert.Len(t, stores.appended, 1, "a month is archived exactly once")
}

func TestArchiveSkippedOutsideGraceWindow(t *testing.T) {
	stores := &fakeStores{income: decimal.RequireFromString("2500")}
	r := newRunner(stores)

	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	require.NoError(t, r.archivePreviousMonth(context.Background(), slog.Default(), now))
	assert.Empty(t, stores.appended)
}

func TestRunOnceNotifiesOnSchemaFailure(t *testing.T) {
	notifier := &fakeNotifier{}
	r := &Runner{
		Transactions: &brokenSchemaStore{},
		Notifier:     notifier,
		Logger:       slog.Default(),
	}

	err := r.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checking ledger schema")

	require.Len(t, notifier.sent, 1, "an aborted run still reaches the chat")
	assert.Contains(t, notifier.sent[0], "schema check failed")
}

func TestNextRunTime(t *testing.T) {
	loc := time.UTC

	// Before today's slot: run today.
	now := time.Date(2024, 1, 15, 8, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 0, 0, 0, loc), nextRunTime(now, 10))

	// At or after today's slot: run tomorrow.
	now = time.Date(2024, 1, 15, 10, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 1, 16, 10, 0, 0, 0, loc), nextRunTime(now, 10))

	now = time.Date(2024, 1, 15, 23, 30, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 1, 16, 10, 0, 0, 0, loc), nextRunTime(now, 10))
}
