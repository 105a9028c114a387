// Package sheets implements the ledger repositories on top of the Google
// Sheets API.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/shopspring/decimal"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"

	"github.com/jwojci/budget-agent/pkg/api"
	"github.com/jwojci/budget-agent/pkg/ledger"
)

// Worksheet names inside the budget spreadsheet.
const (
	expensesSheet   = "Sheet1"
	categoriesSheet = "Categories"
	budgetSheet     = "Budget"
	historySheet    = "History"
)

// incomeCell is where the user-edited monthly disposable income lives.
const incomeCell = budgetSheet + "!B2"

// retryAttempts bounds transient-error retries per API call.
const retryAttempts = 3

// Store implements the ledger repositories over one spreadsheet.
type Store struct {
	svc           *sheetsv4.Service
	spreadsheetID string
	logger        *slog.Logger
}

// New creates a sheets-backed ledger store.
func New(httpClient *http.Client, spreadsheetID string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	svc, err := sheetsv4.NewService(context.Background(), option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	return &Store{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		logger:        logger,
	}, nil
}

// withRetry runs op, retrying rate-limit and server errors with a delay.
// Authentication and validation errors are not retried.
func (s *Store) withRetry(op func() error) error {
	return retry.Do(
		op,
		retry.RetryIf(func(err error) bool {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) {
				if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500 {
					s.logger.Warn("transient sheets error, will retry", "code", apiErr.Code)
					return true
				}
			}
			return false
		}),
		retry.Attempts(retryAttempts),
		retry.Delay(30*time.Second),
		retry.LastErrorOnly(true),
	)
}

// values reads a range, retrying transient failures.
func (s *Store) values(ctx context.Context, rng string) ([][]any, error) {
	var resp *sheetsv4.ValueRange
	err := s.withRetry(func() error {
		var err error
		resp, err = s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rng, err)
	}
	return resp.Values, nil
}

// appendRows appends rows after the existing data of a sheet in one call.
func (s *Store) appendRows(ctx context.Context, rng string, rows [][]any) error {
	req := sheetsv4.ValueRange{Values: rows}
	return s.withRetry(func() error {
		_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, rng, &req).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		return err
	})
}

// updateRange overwrites a range in place.
func (s *Store) updateRange(ctx context.Context, rng string, rows [][]any) error {
	req := sheetsv4.ValueRange{Values: rows}
	return s.withRetry(func() error {
		_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, &req).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		return err
	})
}

// EnsureExpenseHeader verifies the expenses sheet header row and recreates it
// on an empty or corrupted sheet.
func (s *Store) EnsureExpenseHeader(ctx context.Context) error {
	rows, err := s.values(ctx, expensesSheet+"!1:1")
	if err != nil {
		return err
	}

	if len(rows) > 0 && headerMatches(rows[0], api.ExpenseHeader) {
		return nil
	}

	if len(rows) > 0 {
		s.logger.Warn("expenses sheet header is incorrect, rewriting",
			"got", fmt.Sprint(rows[0]))
	}
	header := make([]any, len(api.ExpenseHeader))
	for i, h := range api.ExpenseHeader {
		header[i] = h
	}
	return s.updateRange(ctx, expensesSheet+"!A1", [][]any{header})
}

// Transactions returns all stored transactions in sheet order.
func (s *Store) Transactions(ctx context.Context) ([]api.Transaction, error) {
	rows, err := s.values(ctx, expensesSheet+"!A:H")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if !headerMatches(rows[0], api.ExpenseHeader) {
		return nil, &api.ValidationError{Sheet: expensesSheet, Want: api.ExpenseHeader, Got: rowStrings(rows[0])}
	}

	txs := make([]api.Transaction, 0, len(rows)-1)
	for i, row := range rows[1:] {
		tx, err := transactionFromRow(row)
		if err != nil {
			s.logger.Warn("skipping malformed ledger row", "row", i+2, "error", err)
			continue
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// Identities returns the identity tuples of all stored transactions.
func (s *Store) Identities(ctx context.Context) (map[string]bool, error) {
	txs, err := s.Transactions(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(txs))
	for _, tx := range txs {
		ids[tx.Identity()] = true
	}
	return ids, nil
}

// Append stores the batch in one API call so it either commits whole or
// surfaces the error for the next run.
func (s *Store) Append(ctx context.Context, txs []api.Transaction) error {
	rows := make([][]any, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, rowFromTransaction(tx))
	}
	if err := s.appendRows(ctx, expensesSheet+"!A:H", rows); err != nil {
		return fmt.Errorf("appending %d transactions: %w", len(txs), err)
	}
	s.logger.Info("appended transactions", "count", len(txs))
	return nil
}

// Recategorize fills category and type on stored uncategorized transactions
// whose description contains the keyword, case-insensitively.
func (s *Store) Recategorize(ctx context.Context, keyword, category, txType string) (int, error) {
	rows, err := s.values(ctx, expensesSheet+"!A:H")
	if err != nil {
		return 0, err
	}
	if len(rows) < 2 {
		return 0, nil
	}

	kwLower := strings.ToLower(keyword)
	data := make([]*sheetsv4.ValueRange, 0, 4)
	for i, row := range rows[1:] {
		if cellString(row, colCategory) != "" {
			continue
		}
		if !strings.Contains(strings.ToLower(cellString(row, colDescription)), kwLower) {
			continue
		}
		// Row 1 is the header, slice index 0 is row 2.
		rowNum := i + 2
		data = append(data, &sheetsv4.ValueRange{
			Range:  fmt.Sprintf("%s!G%d:H%d", expensesSheet, rowNum, rowNum),
			Values: [][]any{{category, txType}},
		})
	}
	if len(data) == 0 {
		return 0, nil
	}

	req := &sheetsv4.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             data,
	}
	err = s.withRetry(func() error {
		_, err := s.svc.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("recategorizing %q: %w", keyword, err)
	}
	return len(data), nil
}

// Keywords returns the keyword dictionary in sheet order.
func (s *Store) Keywords(ctx context.Context) ([]api.KeywordEntry, error) {
	rows, err := s.values(ctx, categoriesSheet+"!A:C")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if !headerMatches(rows[0], api.KeywordHeader) {
		return nil, &api.ValidationError{Sheet: categoriesSheet, Want: api.KeywordHeader, Got: rowStrings(rows[0])}
	}

	entries := make([]api.KeywordEntry, 0, len(rows)-1)
	for _, row := range rows[1:] {
		e := api.KeywordEntry{
			Keyword:  cellString(row, 0),
			Category: cellString(row, 1),
			Type:     cellString(row, 2),
		}
		if e.Keyword == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// AppendPending adds unresolved keywords awaiting user categorization.
func (s *Store) AppendPending(ctx context.Context, keywords []string) error {
	if len(keywords) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(keywords))
	for _, kw := range keywords {
		rows = append(rows, []any{kw, "", ""})
	}
	if err := s.appendRows(ctx, categoriesSheet+"!A:C", rows); err != nil {
		return fmt.Errorf("appending %d pending keywords: %w", len(keywords), err)
	}
	return nil
}

// UpdateKeyword resolves a keyword entry in place, or appends it when the
// keyword is not in the dictionary yet. Last write wins.
func (s *Store) UpdateKeyword(ctx context.Context, entry api.KeywordEntry) error {
	rows, err := s.values(ctx, categoriesSheet+"!A:A")
	if err != nil {
		return err
	}

	kwLower := strings.ToLower(entry.Keyword)
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if strings.ToLower(cellString(row, 0)) != kwLower {
			continue
		}
		rowNum := i + 1
		rng := fmt.Sprintf("%s!A%d:C%d", categoriesSheet, rowNum, rowNum)
		return s.updateRange(ctx, rng, [][]any{{entry.Keyword, entry.Category, entry.Type}})
	}

	return s.appendRows(ctx, categoriesSheet+"!A:C", [][]any{{entry.Keyword, entry.Category, entry.Type}})
}

// MonthlyIncome reads the configured monthly disposable income.
func (s *Store) MonthlyIncome(ctx context.Context) (decimal.Decimal, error) {
	rows, err := s.values(ctx, incomeCell)
	if err != nil {
		return decimal.Zero, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return decimal.Zero, fmt.Errorf("monthly income cell %s is empty", incomeCell)
	}

	income, err := cellDecimal(rows[0], 0)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing monthly income: %w", err)
	}
	return income, nil
}

// ArchivedMonths returns the month keys already present in the history sheet.
func (s *Store) ArchivedMonths(ctx context.Context) ([]string, error) {
	rows, err := s.values(ctx, historySheet+"!A:A")
	if err != nil {
		return nil, err
	}
	months := make([]string, 0, len(rows))
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if m := cellString(row, 0); m != "" {
			months = append(months, m)
		}
	}
	return months, nil
}

// AppendSummary archives one month's summary row.
func (s *Store) AppendSummary(ctx context.Context, sum api.MonthSummary) error {
	row := []any{
		sum.Month,
		sum.TotalSpent.InexactFloat64(),
		sum.BonusSavings.InexactFloat64(),
		sum.NeedsPercent,
		sum.WantsPercent,
	}
	if err := s.appendRows(ctx, historySheet+"!A:E", [][]any{row}); err != nil {
		return fmt.Errorf("archiving summary for %s: %w", sum.Month, err)
	}
	return nil
}

// WriteDashboard rewrites the dashboard area of the budget sheet. The
// summary block keeps the monthly income in B2, so clearing and rewriting
// the sheet does not break the BudgetStore contract.
func (s *Store) WriteDashboard(ctx context.Context, d ledger.Dashboard) error {
	err := s.withRetry(func() error {
		_, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, budgetSheet, &sheetsv4.ClearValuesRequest{}).
			Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("clearing dashboard: %w", err)
	}

	main := append(append([][]any{}, d.Summary...), d.DailyBreakdown...)
	if err := s.updateRange(ctx, budgetSheet+"!A1", main); err != nil {
		return fmt.Errorf("writing dashboard summary: %w", err)
	}

	if err := s.updateRange(ctx, budgetSheet+"!E1", d.Categories); err != nil {
		return fmt.Errorf("writing category breakdown: %w", err)
	}

	needsWantsRow := len(d.Categories) + 2
	rng := fmt.Sprintf("%s!E%d", budgetSheet, needsWantsRow)
	if err := s.updateRange(ctx, rng, d.NeedsWants); err != nil {
		return fmt.Errorf("writing needs/wants split: %w", err)
	}

	topRow := needsWantsRow + len(d.NeedsWants) + 2
	rng = fmt.Sprintf("%s!E%d", budgetSheet, topRow)
	if err := s.updateRange(ctx, rng, d.TopMerchants); err != nil {
		return fmt.Errorf("writing top merchants: %w", err)
	}

	if d.Signature != "" {
		if err := s.updateRange(ctx, budgetSheet+"!A20", [][]any{{d.Signature}}); err != nil {
			return fmt.Errorf("writing dashboard signature: %w", err)
		}
	}

	s.logger.Info("dashboard updated")
	return nil
}
