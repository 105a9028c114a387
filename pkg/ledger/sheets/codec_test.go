package sheets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwojci/budget-agent/pkg/api"
)

func TestTransactionFromRow(t *testing.T) {
	// Values.Get returns numbers as float64 and leaves short rows short.
	row := []any{"12:30", "BIEDRONKA 123", 45.99, "", 1234.56, "2024-01-15", "Groceries", "Need"}

	tx, err := transactionFromRow(row)
	require.NoError(t, err)
	assert.Equal(t, "12:30", tx.Time)
	assert.Equal(t, "BIEDRONKA 123", tx.Description)
	assert.Equal(t, "45.99", tx.Expense.StringFixed(2))
	assert.True(t, tx.Income.IsZero())
	assert.Equal(t, "1234.56", tx.Balance.StringFixed(2))
	assert.Equal(t, "Groceries", tx.Category)
	assert.Equal(t, api.TypeNeed, tx.Type)
}

func TestTransactionFromRowShortRow(t *testing.T) {
	tx, err := transactionFromRow([]any{"12:30", "ZABKA", "12,50"})
	require.NoError(t, err)
	assert.Equal(t, "12.50", tx.Expense.StringFixed(2))
	assert.Empty(t, tx.Category)
	assert.Empty(t, tx.Type)
}

func TestTransactionFromRowBadAmount(t *testing.T) {
	_, err := transactionFromRow([]any{"12:30", "ZABKA", "not a number"})
	assert.Error(t, err)
}

func TestCellDecimalFormats(t *testing.T) {
	tests := []struct {
		name string
		cell any
		want string
	}{
		{name: "float", cell: 45.99, want: "45.99"},
		{name: "comma decimal", cell: "45,99", want: "45.99"},
		{name: "thousands with dot", cell: "1,234.56", want: "1234.56"},
		{name: "spaced", cell: "1 234,56", want: "1234.56"},
		{name: "empty", cell: "", want: "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cellDecimal([]any{tt.cell}, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestRowFromTransactionRoundTrip(t *testing.T) {
	orig, err := transactionFromRow([]any{"12:30", "BIEDRONKA", 45.99, "", 100.0, "2024-01-15", "Groceries", "Need"})
	require.NoError(t, err)

	back, err := transactionFromRow(rowFromTransaction(orig))
	require.NoError(t, err)
	assert.Equal(t, orig.Identity(), back.Identity())
}

func TestHeaderMatches(t *testing.T) {
	header := []any{"Time", "Description", "Expense", "Income", "Balance", "Date", "Category", "Type"}
	assert.True(t, headerMatches(header, api.ExpenseHeader))

	// Case differences are tolerated, column swaps are not.
	lower := []any{"time", "description", "expense", "income", "balance", "date", "category", "type"}
	assert.True(t, headerMatches(lower, api.ExpenseHeader))

	swapped := []any{"Description", "Time", "Expense", "Income", "Balance", "Date", "Category", "Type"}
	assert.False(t, headerMatches(swapped, api.ExpenseHeader))

	assert.False(t, headerMatches([]any{"Time"}, api.ExpenseHeader))
}
