// Package analytics computes budget metrics from the transaction ledger.
// All functions are pure over the transaction slice and the clock they are
// given, so daily-run output is reproducible.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jwojci/budget-agent/pkg/api"
)

var seven = decimal.NewFromInt(7)

// Metrics is the month-to-date budget position at a point in time.
type Metrics struct {
	Now           time.Time
	MonthlyIncome decimal.Decimal
	TotalSpent    decimal.Decimal
	Remaining     decimal.Decimal
	DaysInMonth   int

	// WeeklyTarget is the even-burn spending allowance for a 7-day week.
	WeeklyTarget     decimal.Decimal
	SpentThisWeek    decimal.Decimal
	SafeToSpend      decimal.Decimal
	AvgDailyThisWeek decimal.Decimal
	SpentYesterday   decimal.Decimal

	// DailySafeToSpend spreads what is left of the month's income over its
	// remaining days, today included. Floored at zero.
	DailySafeToSpend decimal.Decimal

	NeedsPercent float64
	WantsPercent float64
}

// CategoryTotal is month-to-date spending in one category.
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
}

// Merchant is an aggregated spending line for one transaction description.
type Merchant struct {
	Description string
	Total       decimal.Decimal
	Visits      int
}

// Compute derives the budget metrics for the month containing now.
func Compute(txs []api.Transaction, income decimal.Decimal, now time.Time) Metrics {
	monthTxs := Between(txs, MonthStart(now), now.AddDate(0, 0, 1))
	totalSpent := SpentIn(monthTxs)

	daysInMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()
	weeklyTarget := decimal.Zero
	if income.IsPositive() {
		weeklyTarget = income.Div(decimal.NewFromInt(int64(daysInMonth))).Mul(seven).Round(2)
	}

	weekStart := WeekStart(now)
	today := midnight(now)
	spentThisWeek := SpentIn(Between(txs, weekStart, today.AddDate(0, 0, 1)))

	safe := weeklyTarget.Sub(spentThisWeek)
	if safe.IsNegative() {
		safe = decimal.Zero
	}

	daysElapsed := int64(today.Sub(weekStart).Hours()/24) + 1
	avgDaily := spentThisWeek.Div(decimal.NewFromInt(daysElapsed)).Round(2)

	yesterday := today.AddDate(0, 0, -1)
	spentYesterday := SpentIn(Between(txs, yesterday, today))

	remaining := income.Sub(totalSpent)
	daysLeft := int64(daysInMonth - now.Day() + 1)
	dailySafe := decimal.Zero
	if remaining.IsPositive() {
		dailySafe = remaining.Div(decimal.NewFromInt(daysLeft)).Round(2)
	}

	needs, wants := NeedsWants(monthTxs)

	return Metrics{
		Now:              now,
		MonthlyIncome:    income,
		TotalSpent:       totalSpent,
		Remaining:        remaining,
		DaysInMonth:      daysInMonth,
		WeeklyTarget:     weeklyTarget,
		SpentThisWeek:    spentThisWeek,
		SafeToSpend:      safe,
		AvgDailyThisWeek: avgDaily,
		SpentYesterday:   spentYesterday,
		DailySafeToSpend: dailySafe,
		NeedsPercent:     needs,
		WantsPercent:     wants,
	}
}

// Between returns the transactions dated in [from, to). Transactions with
// unparsable dates are ignored.
func Between(txs []api.Transaction, from, to time.Time) []api.Transaction {
	var out []api.Transaction
	for _, tx := range txs {
		d, err := time.ParseInLocation(api.DateLayout, tx.Date, from.Location())
		if err != nil {
			continue
		}
		if !d.Before(from) && d.Before(to) {
			out = append(out, tx)
		}
	}
	return out
}

// SpentIn sums the expense amounts of the slice.
func SpentIn(txs []api.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		if tx.IsExpense() {
			total = total.Add(tx.Expense)
		}
	}
	return total
}

// NeedsWants splits categorized expenses into Need/Want percentages,
// rounded to one decimal place. With no categorized spending both are zero.
func NeedsWants(txs []api.Transaction) (needsPct, wantsPct float64) {
	needs, wants := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		if !tx.IsExpense() {
			continue
		}
		switch tx.Type {
		case api.TypeNeed:
			needs = needs.Add(tx.Expense)
		case api.TypeWant:
			wants = wants.Add(tx.Expense)
		}
	}
	total := needs.Add(wants)
	if total.IsZero() {
		return 0, 0
	}
	needsPct = round1(needs.Div(total).InexactFloat64() * 100)
	wantsPct = round1(wants.Div(total).InexactFloat64() * 100)
	return needsPct, wantsPct
}

// CategoryTotals aggregates expenses per category, largest first, ties
// broken alphabetically. Uncategorized spending appears under "Uncategorized".
func CategoryTotals(txs []api.Transaction) []CategoryTotal {
	byCat := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		if !tx.IsExpense() {
			continue
		}
		cat := tx.Category
		if cat == "" {
			cat = "Uncategorized"
		}
		byCat[cat] = byCat[cat].Add(tx.Expense)
	}

	out := make([]CategoryTotal, 0, len(byCat))
	for cat, total := range byCat {
		out = append(out, CategoryTotal{Category: cat, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Total.Equal(out[j].Total) {
			return out[i].Total.GreaterThan(out[j].Total)
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// TopMerchants aggregates expenses per description and returns the n
// largest, ties broken alphabetically.
func TopMerchants(txs []api.Transaction, n int) []Merchant {
	byDesc := make(map[string]*Merchant)
	for _, tx := range txs {
		if !tx.IsExpense() {
			continue
		}
		m, ok := byDesc[tx.Description]
		if !ok {
			m = &Merchant{Description: tx.Description}
			byDesc[tx.Description] = m
		}
		m.Total = m.Total.Add(tx.Expense)
		m.Visits++
	}

	out := make([]Merchant, 0, len(byDesc))
	for _, m := range byDesc {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Total.Equal(out[j].Total) {
			return out[i].Total.GreaterThan(out[j].Total)
		}
		return out[i].Description < out[j].Description
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Summarize builds the archive row for the month containing ref.
// Bonus savings is the unspent income, floored at zero.
func Summarize(txs []api.Transaction, income decimal.Decimal, ref time.Time) api.MonthSummary {
	start := MonthStart(ref)
	end := start.AddDate(0, 1, 0)
	monthTxs := Between(txs, start, end)

	totalSpent := SpentIn(monthTxs)
	bonus := income.Sub(totalSpent)
	if bonus.IsNegative() {
		bonus = decimal.Zero
	}
	needs, wants := NeedsWants(monthTxs)

	return api.MonthSummary{
		Month:        start.Format(api.MonthLayout),
		TotalSpent:   totalSpent,
		BonusSavings: bonus,
		NeedsPercent: needs,
		WantsPercent: wants,
	}
}

// MonthStart returns midnight on the first day of t's month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// WeekStart returns midnight on the Monday of t's week.
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return midnight(t).AddDate(0, 0, -offset)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
