package sheets

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jwojci/budget-agent/pkg/api"
)

// Column indexes of the expenses sheet.
const (
	colTime = iota
	colDescription
	colExpense
	colIncome
	colBalance
	colDate
	colCategory
	colType
)

// cellString reads a cell as text, tolerating short rows and the float64
// values the API returns for numeric cells.
func cellString(row []any, col int) string {
	if col >= len(row) {
		return ""
	}
	switch v := row[col].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// cellDecimal reads a cell as a decimal amount. Empty cells are zero.
// User-entered amounts may carry a comma decimal separator.
func cellDecimal(row []any, col int) (decimal.Decimal, error) {
	if col >= len(row) {
		return decimal.Zero, nil
	}
	if f, ok := row[col].(float64); ok {
		return decimal.NewFromFloat(f), nil
	}
	s := cellString(row, col)
	if s == "" {
		return decimal.Zero, nil
	}
	s = strings.ReplaceAll(s, " ", "")
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	return decimal.NewFromString(s)
}

func transactionFromRow(row []any) (api.Transaction, error) {
	expense, err := cellDecimal(row, colExpense)
	if err != nil {
		return api.Transaction{}, fmt.Errorf("expense: %w", err)
	}
	income, err := cellDecimal(row, colIncome)
	if err != nil {
		return api.Transaction{}, fmt.Errorf("income: %w", err)
	}
	balance, err := cellDecimal(row, colBalance)
	if err != nil {
		return api.Transaction{}, fmt.Errorf("balance: %w", err)
	}

	return api.Transaction{
		Time:        cellString(row, colTime),
		Description: cellString(row, colDescription),
		Expense:     expense,
		Income:      income,
		Balance:     balance,
		Date:        cellString(row, colDate),
		Category:    cellString(row, colCategory),
		Type:        cellString(row, colType),
	}, nil
}

func rowFromTransaction(tx api.Transaction) []any {
	expense := any("")
	if !tx.Expense.IsZero() {
		expense = tx.Expense.InexactFloat64()
	}
	income := any("")
	if !tx.Income.IsZero() {
		income = tx.Income.InexactFloat64()
	}
	balance := any("")
	if !tx.Balance.IsZero() {
		balance = tx.Balance.InexactFloat64()
	}
	return []any{tx.Time, tx.Description, expense, income, balance, tx.Date, tx.Category, tx.Type}
}

func headerMatches(row []any, want []string) bool {
	if len(row) < len(want) {
		return false
	}
	for i, w := range want {
		if !strings.EqualFold(cellString(row, i), w) {
			return false
		}
	}
	return true
}

func rowStrings(row []any) []string {
	out := make([]string, len(row))
	for i := range row {
		out[i] = cellString(row, i)
	}
	return out
}
