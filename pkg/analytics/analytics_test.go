package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwojci/budget-agent/pkg/api"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func expense(date, desc, amount, category, txType string) api.Transaction {
	return api.Transaction{
		Description: desc,
		Expense:     dec(amount),
		Date:        date,
		Category:    category,
		Type:        txType,
	}
}

// Wednesday 2024-01-17; the week runs Mon 2024-01-15 through Sun 2024-01-21.
var wednesday = time.Date(2024, 1, 17, 10, 0, 0, 0, time.UTC)

func TestComputeBudgetPosition(t *testing.T) {
	txs := []api.Transaction{
		expense("2024-01-05", "RENT", "1500.00", "Housing", api.TypeNeed),
		expense("2024-01-16", "BIEDRONKA", "200.00", "Groceries", api.TypeNeed),
		expense("2024-01-17", "CINEMA", "100.00", "Entertainment", api.TypeWant),
		// Previous month; must not count.
		expense("2023-12-28", "BIEDRONKA", "999.00", "Groceries", api.TypeNeed),
		// Income never counts as spending.
		{Description: "Income: EMPLOYER", Income: dec("2500.00"), Date: "2024-01-10"},
	}

	m := Compute(txs, dec("2500.00"), wednesday)

	assert.Equal(t, "1800.00", m.TotalSpent.StringFixed(2))
	assert.Equal(t, "700.00", m.Remaining.StringFixed(2))
	assert.Equal(t, 31, m.DaysInMonth)
	// 2500 / 31 * 7, rounded to cents.
	assert.Equal(t, "564.52", m.WeeklyTarget.StringFixed(2))
	assert.Equal(t, "300.00", m.SpentThisWeek.StringFixed(2))
	assert.Equal(t, "264.52", m.SafeToSpend.StringFixed(2))
	// Mon-Wed is three days elapsed.
	assert.Equal(t, "100.00", m.AvgDailyThisWeek.StringFixed(2))
	assert.Equal(t, "200.00", m.SpentYesterday.StringFixed(2))
	// 700 left over the 15 days from the 17th through the 31st.
	assert.Equal(t, "46.67", m.DailySafeToSpend.StringFixed(2))
}

func TestDailySafeToSpendNeverNegative(t *testing.T) {
	txs := []api.Transaction{
		expense("2024-01-10", "EVERYTHING", "3000.00", "Shopping", api.TypeWant),
	}
	m := Compute(txs, dec("2500.00"), wednesday)
	assert.True(t, m.DailySafeToSpend.IsZero())
}

func TestSafeToSpendNeverNegative(t *testing.T) {
	txs := []api.Transaction{
		expense("2024-01-15", "SHOPPING SPREE", "2000.00", "Shopping", api.TypeWant),
	}
	m := Compute(txs, dec("2500.00"), wednesday)
	assert.True(t, m.SafeToSpend.IsZero())
}

func TestNeedsWants(t *testing.T) {
	txs := []api.Transaction{
		expense("2024-01-10", "RENT", "1000.00", "Housing", api.TypeNeed),
		expense("2024-01-11", "BIEDRONKA", "200.00", "Groceries", api.TypeNeed),
		expense("2024-01-12", "CINEMA", "600.00", "Entertainment", api.TypeWant),
		// Uncategorized spending is excluded from the split.
		expense("2024-01-13", "MYSTERY", "500.00", "", ""),
	}

	needs, wants := NeedsWants(txs)
	assert.InDelta(t, 66.7, needs, 0.001)
	assert.InDelta(t, 33.3, wants, 0.001)
}

func TestNeedsWantsNoCategorizedSpending(t *testing.T) {
	needs, wants := NeedsWants(nil)
	assert.Zero(t, needs)
	assert.Zero(t, wants)
}

func TestCategoryTotalsOrdering(t *testing.T) {
	txs := []api.Transaction{
		expense("2024-01-10", "A", "100.00", "Groceries", api.TypeNeed),
		expense("2024-01-11", "B", "300.00", "Housing", api.TypeNeed),
		expense("2024-01-12", "C", "100.00", "Entertainment", api.TypeWant),
		expense("2024-01-13", "D", "50.00", "", ""),
	}

	totals := CategoryTotals(txs)
	require.Len(t, totals, 4)
	assert.Equal(t, "Housing", totals[0].Category)
	// Equal totals fall back to alphabetical order.
	assert.Equal(t, "Entertainment", totals[1].Category)
	assert.Equal(t, "Groceries", totals[2].Category)
	assert.Equal(t, "Uncategorized", totals[3].Category)
}

func TestTopMerchants(t *testing.T) {
	txs := []api.Transaction{
		expense("2024-01-10", "BIEDRONKA", "50.00", "Groceries", api.TypeNeed),
		expense("2024-01-11", "BIEDRONKA", "70.00", "Groceries", api.TypeNeed),
		expense("2024-01-12", "ZABKA", "120.00", "Groceries", api.TypeNeed),
		expense("2024-01-13", "ALPHA", "10.00", "Misc", api.TypeWant),
		expense("2024-01-14", "BETA", "10.00", "Misc", api.TypeWant),
	}

	top := TopMerchants(txs, 3)
	require.Len(t, top, 3)

	assert.Equal(t, "BIEDRONKA", top[0].Description)
	assert.Equal(t, "120.00", top[0].Total.StringFixed(2))
	assert.Equal(t, 2, top[0].Visits)

	assert.Equal(t, "ZABKA", top[1].Description)
	// ALPHA beats BETA alphabetically on the tied total.
	assert.Equal(t, "ALPHA", top[2].Description)
}

func TestBetweenWindowBounds(t *testing.T) {
	txs := []api.Transaction{
		expense("2024-01-14", "BEFORE", "1.00", "", ""),
		expense("2024-01-15", "START", "1.00", "", ""),
		expense("2024-01-21", "LAST", "1.00", "", ""),
		expense("2024-01-22", "AFTER", "1.00", "", ""),
		{Description: "BADDATE", Expense: dec("1.00"), Date: "15.01.2024"},
	}

	from := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC)
	got := Between(txs, from, to)
	require.Len(t, got, 2)
	assert.Equal(t, "START", got[0].Description)
	assert.Equal(t, "LAST", got[1].Description)
}

func TestSummarize(t *testing.T) {
	txs := []api.Transaction{
		expense("2023-12-05", "RENT", "1500.00", "Housing", api.TypeNeed),
		expense("2023-12-20", "CINEMA", "500.00", "Entertainment", api.TypeWant),
		expense("2024-01-02", "BIEDRONKA", "100.00", "Groceries", api.TypeNeed),
	}

	sum := Summarize(txs, dec("2500.00"), time.Date(2023, 12, 15, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2023-12", sum.Month)
	assert.Equal(t, "2000.00", sum.TotalSpent.StringFixed(2))
	assert.Equal(t, "500.00", sum.BonusSavings.StringFixed(2))
	assert.InDelta(t, 75.0, sum.NeedsPercent, 0.001)
	assert.InDelta(t, 25.0, sum.WantsPercent, 0.001)
}

func TestSummarizeOverspentMonthHasNoBonus(t *testing.T) {
	txs := []api.Transaction{
		expense("2023-12-05", "RENT", "3000.00", "Housing", api.TypeNeed),
	}
	sum := Summarize(txs, dec("2500.00"), time.Date(2023, 12, 15, 0, 0, 0, 0, time.UTC))
	assert.True(t, sum.BonusSavings.IsZero())
}

func TestWeekStart(t *testing.T) {
	// Sunday belongs to the week starting the previous Monday.
	sunday := time.Date(2024, 1, 21, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), WeekStart(sunday))

	monday := time.Date(2024, 1, 15, 0, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), WeekStart(monday))
}

func TestBuildDashboardKeepsIncomeInSecondRow(t *testing.T) {
	d := BuildDashboard(nil, dec("2500.00"), wednesday)

	require.GreaterOrEqual(t, len(d.Summary), 2)
	require.Len(t, d.Summary[1], 2)
	assert.Equal(t, "Monthly Disposable Income", d.Summary[1][0])
	assert.Equal(t, 2500.0, d.Summary[1][1])
}
