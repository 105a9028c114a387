package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/genai"

	"github.com/jwojci/budget-agent/pkg/analytics"
	"github.com/jwojci/budget-agent/pkg/api"
	"github.com/jwojci/budget-agent/pkg/ledger"
)

// Tool names exposed to the model.
const (
	toolBudgetSummary      = "get_budget_summary"
	toolTopMerchants       = "get_top_merchants"
	toolQueryExpenses      = "query_expenses"
	toolWeeklySpending     = "get_weekly_spending"
	toolCategorizeMerchant = "categorize_merchant"
)

// Toolbox executes model tool calls against the ledger.
type Toolbox struct {
	Transactions ledger.TransactionStore
	Keywords     ledger.KeywordStore
	Budget       ledger.BudgetStore
	Now          func() time.Time
}

// declarations describes the toolbox to the model.
func declarations() []*genai.FunctionDeclaration {
	return []*genai.FunctionDeclaration{
		{
			Name:        toolBudgetSummary,
			Description: "Get the month-to-date budget summary: income, total spent, remaining, weekly target and safe-to-spend.",
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: map[string]*genai.Schema{},
			},
		},
		{
			Name:        toolTopMerchants,
			Description: "Get the merchants with the highest spending this month, with totals and visit counts.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"limit": {
						Type:        genai.TypeInteger,
						Description: "How many merchants to return, 1-20. Defaults to 5.",
					},
				},
			},
		},
		{
			Name:        toolQueryExpenses,
			Description: "List expense transactions in a date range, optionally filtered by category.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"start_date": {
						Type:        genai.TypeString,
						Description: "Inclusive start date, YYYY-MM-DD.",
					},
					"end_date": {
						Type:        genai.TypeString,
						Description: "Inclusive end date, YYYY-MM-DD.",
					},
					"category": {
						Type:        genai.TypeString,
						Description: "Optional category name to filter by.",
					},
					"aggregate": {
						Type:        genai.TypeBoolean,
						Description: "When true, return only per-category totals instead of individual transactions.",
					},
				},
				Required: []string{"start_date", "end_date"},
			},
		},
		{
			Name:        toolWeeklySpending,
			Description: "Get this week's spending: total, daily average and per-category breakdown.",
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: map[string]*genai.Schema{},
			},
		},
		{
			Name:        toolCategorizeMerchant,
			Description: "Assign a category and a Need/Want type to a merchant keyword. Applies to past and future transactions.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"keyword": {
						Type:        genai.TypeString,
						Description: "The merchant keyword, as listed in the categories sheet.",
					},
					"category": {
						Type:        genai.TypeString,
						Description: "Category name, e.g. Groceries.",
					},
					"type": {
						Type:        genai.TypeString,
						Description: "Either Need or Want.",
						Enum:        []string{api.TypeNeed, api.TypeWant},
					},
				},
				Required: []string{"keyword", "category", "type"},
			},
		},
	}
}

// dispatch validates and executes one tool call. Failures come back as a
// textual error result so the model can recover instead of the chat dying.
func (t *Toolbox) dispatch(ctx context.Context, call *genai.FunctionCall) map[string]any {
	result, err := t.run(ctx, call)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return result
}

func (t *Toolbox) run(ctx context.Context, call *genai.FunctionCall) (map[string]any, error) {
	switch call.Name {
	case toolBudgetSummary:
		return t.budgetSummary(ctx)
	case toolTopMerchants:
		return t.topMerchants(ctx, call.Args)
	case toolQueryExpenses:
		return t.queryExpenses(ctx, call.Args)
	case toolWeeklySpending:
		return t.weeklySpending(ctx)
	case toolCategorizeMerchant:
		return t.categorizeMerchant(ctx, call.Args)
	default:
		return nil, fmt.Errorf("unknown tool %q", call.Name)
	}
}

func (t *Toolbox) budgetSummary(ctx context.Context) (map[string]any, error) {
	txs, err := t.Transactions.Transactions(ctx)
	if err != nil {
		return nil, err
	}
	income, err := t.Budget.MonthlyIncome(ctx)
	if err != nil {
		return nil, err
	}
	m := analytics.Compute(txs, income, t.Now())
	return map[string]any{
		"month":               t.Now().Format(api.MonthLayout),
		"monthly_income":      m.MonthlyIncome.InexactFloat64(),
		"total_spent":         m.TotalSpent.InexactFloat64(),
		"remaining":           m.Remaining.InexactFloat64(),
		"weekly_target":       m.WeeklyTarget.InexactFloat64(),
		"spent_this_week":     m.SpentThisWeek.InexactFloat64(),
		"safe_to_spend":       m.SafeToSpend.InexactFloat64(),
		"needs_percent":       m.NeedsPercent,
		"wants_percent":       m.WantsPercent,
	}, nil
}

func (t *Toolbox) topMerchants(ctx context.Context, args map[string]any) (map[string]any, error) {
	limit, err := intArg(args, "limit", 5)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > 20 {
		return nil, fmt.Errorf("limit must be between 1 and 20, got %d", limit)
	}

	txs, err := t.Transactions.Transactions(ctx)
	if err != nil {
		return nil, err
	}
	now := t.Now()
	monthTxs := analytics.Between(txs, analytics.MonthStart(now), now.AddDate(0, 0, 1))

	merchants := make([]map[string]any, 0, limit)
	for _, m := range analytics.TopMerchants(monthTxs, limit) {
		merchants = append(merchants, map[string]any{
			"merchant": m.Description,
			"total":    m.Total.InexactFloat64(),
			"visits":   m.Visits,
		})
	}
	return map[string]any{"merchants": merchants}, nil
}

func (t *Toolbox) queryExpenses(ctx context.Context, args map[string]any) (map[string]any, error) {
	start, err := dateArg(args, "start_date")
	if err != nil {
		return nil, err
	}
	end, err := dateArg(args, "end_date")
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end_date is before start_date")
	}
	category, err := stringArg(args, "category", false)
	if err != nil {
		return nil, err
	}
	aggregate, err := boolArg(args, "aggregate")
	if err != nil {
		return nil, err
	}

	txs, err := t.Transactions.Transactions(ctx)
	if err != nil {
		return nil, err
	}

	var matched []api.Transaction
	total := decimal.Zero
	for _, tx := range analytics.Between(txs, start, end.AddDate(0, 0, 1)) {
		if !tx.IsExpense() {
			continue
		}
		if category != "" && !strings.EqualFold(tx.Category, category) {
			continue
		}
		matched = append(matched, tx)
		total = total.Add(tx.Expense)
	}

	result := map[string]any{
		"count": len(matched),
		"total": total.InexactFloat64(),
	}
	if aggregate {
		cats := make([]map[string]any, 0, 8)
		for _, c := range analytics.CategoryTotals(matched) {
			cats = append(cats, map[string]any{
				"category": c.Category,
				"total":    c.Total.InexactFloat64(),
			})
		}
		result["categories"] = cats
		return result, nil
	}

	rows := make([]map[string]any, 0, len(matched))
	for _, tx := range matched {
		rows = append(rows, map[string]any{
			"date":        tx.Date,
			"description": tx.Description,
			"amount":      tx.Expense.InexactFloat64(),
			"category":    tx.Category,
			"type":        tx.Type,
		})
	}
	result["transactions"] = rows
	return result, nil
}

func boolArg(args map[string]any, key string) (bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("argument %q must be a boolean", key)
	}
	return b, nil
}

func (t *Toolbox) weeklySpending(ctx context.Context) (map[string]any, error) {
	txs, err := t.Transactions.Transactions(ctx)
	if err != nil {
		return nil, err
	}
	now := t.Now()
	weekTxs := analytics.Between(txs, analytics.WeekStart(now), now.AddDate(0, 0, 1))

	categories := make([]map[string]any, 0, 8)
	for _, c := range analytics.CategoryTotals(weekTxs) {
		categories = append(categories, map[string]any{
			"category": c.Category,
			"total":    c.Total.InexactFloat64(),
		})
	}

	income, err := t.Budget.MonthlyIncome(ctx)
	if err != nil {
		return nil, err
	}
	m := analytics.Compute(txs, income, now)
	return map[string]any{
		"week_start":      analytics.WeekStart(now).Format(api.DateLayout),
		"total":           m.SpentThisWeek.InexactFloat64(),
		"daily_average":   m.AvgDailyThisWeek.InexactFloat64(),
		"spent_yesterday": m.SpentYesterday.InexactFloat64(),
		"categories":      categories,
	}, nil
}

func (t *Toolbox) categorizeMerchant(ctx context.Context, args map[string]any) (map[string]any, error) {
	keyword, err := stringArg(args, "keyword", true)
	if err != nil {
		return nil, err
	}
	category, err := stringArg(args, "category", true)
	if err != nil {
		return nil, err
	}
	txType, err := stringArg(args, "type", true)
	if err != nil {
		return nil, err
	}
	if txType != api.TypeNeed && txType != api.TypeWant {
		return nil, fmt.Errorf("type must be %q or %q, got %q", api.TypeNeed, api.TypeWant, txType)
	}

	entry := api.KeywordEntry{Keyword: keyword, Category: category, Type: txType}
	if err := t.Keywords.UpdateKeyword(ctx, entry); err != nil {
		return nil, err
	}
	updated, err := t.Transactions.Recategorize(ctx, keyword, category, txType)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"keyword":              keyword,
		"category":             category,
		"type":                 txType,
		"transactions_updated": updated,
	}, nil
}

func stringArg(args map[string]any, key string, required bool) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required argument %q", key)
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return strings.TrimSpace(s), nil
}

func intArg(args map[string]any, key string, def int) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	// JSON numbers arrive as float64.
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, fmt.Errorf("argument %q must be a number", key)
	}
}

func dateArg(args map[string]any, key string) (time.Time, error) {
	s, err := stringArg(args, key, true)
	if err != nil {
		return time.Time{}, err
	}
	d, err := time.Parse(api.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("argument %q must be a YYYY-MM-DD date: %v", key, err)
	}
	return d, nil
}
