package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwojci/budget-agent/pkg/api"
)

func sample() []api.Transaction {
	return []api.Transaction{
		{
			Time:        "12:30",
			Description: "BIEDRONKA 123",
			Expense:     decimal.RequireFromString("45.99"),
			Balance:     decimal.RequireFromString("1234.56"),
			Date:        "2024-01-15",
			Category:    "Groceries",
			Type:        api.TypeNeed,
		},
		{
			Time:        "15:45",
			Description: "Income: JAN KOWALSKI",
			Income:      decimal.RequireFromString("1200"),
			Date:        "2024-01-15",
		},
	}
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, sample()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, api.ExpenseHeader, rows[0])
	assert.Equal(t, []string{"12:30", "BIEDRONKA 123", "45.99", "", "1234.56", "2024-01-15", "Groceries", "Need"}, rows[1])
	assert.Equal(t, "1200.00", rows[2][3])
	assert.Empty(t, rows[2][2], "income rows leave the expense column blank")
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, sample()))

	var out []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 2)

	assert.Equal(t, "45.99", out[0]["expense"])
	assert.NotContains(t, out[0], "income", "zero amounts are omitted")
	assert.Equal(t, "1200.00", out[1]["income"])
}
