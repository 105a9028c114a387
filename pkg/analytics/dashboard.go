package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jwojci/budget-agent/pkg/api"
	"github.com/jwojci/budget-agent/pkg/ledger"
)

// topMerchantCount is how many merchants the dashboard shows.
const topMerchantCount = 5

// BuildDashboard lays the metrics out as the row blocks the dashboard sheet
// expects. The income cell stays in the second summary row so the sheet
// remains the source of truth for the monthly budget.
func BuildDashboard(txs []api.Transaction, income decimal.Decimal, now time.Time) ledger.Dashboard {
	m := Compute(txs, income, now)
	monthTxs := Between(txs, MonthStart(now), now.AddDate(0, 0, 1))

	summary := [][]any{
		{"Monthly Budget Summary", ""},
		{"Monthly Disposable Income", m.MonthlyIncome.InexactFloat64()},
		{"Total Spent This Month", m.TotalSpent.InexactFloat64()},
		{"Remaining", m.Remaining.InexactFloat64()},
		{"Daily Safe To Spend", m.DailySafeToSpend.InexactFloat64()},
	}

	weekly := [][]any{
		{"", ""},
		{"This Week", ""},
		{"Weekly Target", m.WeeklyTarget.InexactFloat64()},
		{"Spent This Week", m.SpentThisWeek.InexactFloat64()},
		{"Safe To Spend", m.SafeToSpend.InexactFloat64()},
		{"Avg Daily This Week", m.AvgDailyThisWeek.InexactFloat64()},
		{"Spent Yesterday", m.SpentYesterday.InexactFloat64()},
	}

	cats := [][]any{{"Category", "Total"}}
	for _, c := range CategoryTotals(monthTxs) {
		cats = append(cats, []any{c.Category, c.Total.InexactFloat64()})
	}

	needsWants := [][]any{
		{"Needs vs Wants", ""},
		{"Needs %", m.NeedsPercent},
		{"Wants %", m.WantsPercent},
	}

	top := [][]any{{"Top Merchants", "Total", "Visits"}}
	for _, mer := range TopMerchants(monthTxs, topMerchantCount) {
		top = append(top, []any{mer.Description, mer.Total.InexactFloat64(), mer.Visits})
	}

	return ledger.Dashboard{
		Summary:        summary,
		DailyBreakdown: weekly,
		Categories:     cats,
		NeedsWants:     needsWants,
		TopMerchants:   top,
		Signature:      "Last updated: " + now.Format("2006-01-02 15:04"),
	}
}
