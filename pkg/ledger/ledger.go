// Package ledger defines the repository interfaces over the budget tables.
// The Google Sheets adapter is the primary implementation; a PostgreSQL
// adapter can back the transaction table instead without touching business
// logic.
package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jwojci/budget-agent/pkg/api"
)

// TransactionStore is the append-only transaction table.
type TransactionStore interface {
	// Transactions returns all stored transactions in insertion order.
	Transactions(ctx context.Context) ([]api.Transaction, error)
	// Identities returns the identity tuples of all stored transactions.
	Identities(ctx context.Context) (map[string]bool, error)
	// Append stores the given transactions, preserving order. The whole
	// batch either commits or the error is surfaced for retry on the next
	// run.
	Append(ctx context.Context, txs []api.Transaction) error
	// Recategorize sets category and type on stored uncategorized
	// transactions matching the keyword, returning how many rows changed.
	Recategorize(ctx context.Context, keyword, category, txType string) (int, error)
}

// KeywordStore is the keyword dictionary table.
type KeywordStore interface {
	// Keywords returns the full dictionary, including entries still
	// awaiting categorization.
	Keywords(ctx context.Context) ([]api.KeywordEntry, error)
	// AppendPending adds unresolved keywords with empty category and type.
	AppendPending(ctx context.Context, keywords []string) error
	// UpdateKeyword resolves (or re-resolves) a keyword entry,
	// last-write-wins.
	UpdateKeyword(ctx context.Context, entry api.KeywordEntry) error
}

// BudgetStore reads the user-edited budget configuration.
type BudgetStore interface {
	// MonthlyIncome returns the configured monthly disposable income.
	MonthlyIncome(ctx context.Context) (decimal.Decimal, error)
}

// HistoryStore is the append-only monthly history table.
type HistoryStore interface {
	// ArchivedMonths returns the YYYY-MM keys already archived.
	ArchivedMonths(ctx context.Context) ([]string, error)
	// AppendSummary archives one month's summary row.
	AppendSummary(ctx context.Context, summary api.MonthSummary) error
}

// Dashboard is the set of row blocks written back to the budget sheet. The
// first block keeps the monthly income in its second row so the BudgetStore
// contract (income in B2) survives a rewrite.
type Dashboard struct {
	Summary        [][]any
	DailyBreakdown [][]any
	Categories     [][]any
	NeedsWants     [][]any
	TopMerchants   [][]any
	Signature      string
}

// DashboardStore rewrites the dashboard area of the budget sheet.
type DashboardStore interface {
	WriteDashboard(ctx context.Context, d Dashboard) error
}

// AppendNew appends only the transactions whose identity is not already
// stored and returns the count appended. Order is preserved. Re-running the
// same batch is a no-op, which makes at-least-once ingestion safe.
func AppendNew(ctx context.Context, store TransactionStore, txs []api.Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	existing, err := store.Identities(ctx)
	if err != nil {
		return 0, err
	}

	fresh := make([]api.Transaction, 0, len(txs))
	for _, tx := range txs {
		id := tx.Identity()
		if existing[id] {
			continue
		}
		// Identical rows inside one batch collapse to the first occurrence.
		existing[id] = true
		fresh = append(fresh, tx)
	}

	if len(fresh) == 0 {
		return 0, nil
	}
	if err := store.Append(ctx, fresh); err != nil {
		return 0, err
	}
	return len(fresh), nil
}
