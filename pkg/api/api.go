// Package api defines the core data structures shared across budget-agent.
package api

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Transaction types. A transaction is tagged as a Need or a Want once its
// category has been resolved; until then Type is empty.
const (
	TypeNeed = "Need"
	TypeWant = "Want"
)

// Date layouts used throughout the ledger.
const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// ExpenseHeader is the expenses sheet header row. The column names and their
// order are part of the spreadsheet contract; a mismatch aborts the affected
// operation.
var ExpenseHeader = []string{"Time", "Description", "Expense", "Income", "Balance", "Date", "Category", "Type"}

// KeywordHeader is the categories sheet header row.
var KeywordHeader = []string{"Keyword", "Category", "Type"}

// HistoryHeader is the monthly history sheet header row.
var HistoryHeader = []string{"Month", "Total Spent", "Bonus Savings", "Needs %", "Wants %"}

// Transaction is one parsed bank transaction. Exactly one of Expense/Income
// is non-zero.
type Transaction struct {
	// Time is the time-of-day string as it appears in the bank notification.
	Time string
	// Description is the display description (merchant text or transfer title).
	Description string
	Expense     decimal.Decimal
	Income      decimal.Decimal
	// Balance is the running account balance after the transaction, zero if
	// the notification did not carry one.
	Balance decimal.Decimal
	// Date is the statement date in YYYY-MM-DD form.
	Date string
	// Category and Type stay empty until the transaction is categorized.
	Category string
	Type     string
}

// Identity returns the deduplication key for the transaction. Two records
// with the same identity are considered the same transaction; there is no
// surrogate key.
func (t Transaction) Identity() string {
	// Fixed-scale amounts so "1200" and "1200.00" produce the same tuple
	// regardless of where the value was read from.
	return fmt.Sprintf("%s|%s|%s|%s",
		t.Time, t.Description, t.Expense.StringFixed(2), t.Income.StringFixed(2))
}

// IsExpense reports whether the transaction is an outgoing payment.
func (t Transaction) IsExpense() bool {
	return t.Expense.IsPositive()
}

// KeywordEntry maps a merchant keyword to a category and a Need/Want type.
// Keywords match case-insensitively as substrings of transaction descriptions.
type KeywordEntry struct {
	Keyword  string
	Category string
	Type     string
}

// Uncategorized reports whether the entry is still waiting for user input.
func (k KeywordEntry) Uncategorized() bool {
	return k.Keyword != "" && k.Category == ""
}

// MonthSummary is one archived row of the monthly history table.
type MonthSummary struct {
	// Month in YYYY-MM form.
	Month        string
	TotalSpent   decimal.Decimal
	BonusSavings decimal.Decimal
	NeedsPercent float64
	WantsPercent float64
}

// ValidationError reports malformed data received from a collaborator, such
// as a sheet whose header row does not match the contract.
type ValidationError struct {
	Sheet string
	Want  []string
	Got   []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("sheet %q: header mismatch: want [%s], got [%s]",
		e.Sheet, strings.Join(e.Want, ", "), strings.Join(e.Got, ", "))
}

// ParseError reports a payload that could not be parsed into transactions.
// It is caught per payload; a single bad email never aborts a batch.
type ParseError struct {
	Payload string
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %s", e.Payload, e.Reason)
}

// ConfigurationError reports a missing secret or credential. It is fatal at
// startup; no partial run is attempted.
type ConfigurationError struct {
	Key string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", e.Key)
}
