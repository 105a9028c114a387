// Package export writes ledger snapshots to local files for backups and
// offline analysis.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"

	"github.com/jwojci/budget-agent/pkg/api"
)

// CSV writes the transactions as a CSV document with the ledger's column
// layout, header row included.
func CSV(w io.Writer, txs []api.Transaction) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(api.ExpenseHeader))
	copy(header, api.ExpenseHeader)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, tx := range txs {
		row := []string{
			tx.Time,
			tx.Description,
			amount(tx.Expense),
			amount(tx.Income),
			amount(tx.Balance),
			tx.Date,
			tx.Category,
			tx.Type,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// jsonTransaction is the export wire form. Amounts become JSON strings so no
// reader can mangle them through float parsing.
type jsonTransaction struct {
	Time        string `json:"time"`
	Description string `json:"description"`
	Expense     string `json:"expense,omitempty"`
	Income      string `json:"income,omitempty"`
	Balance     string `json:"balance,omitempty"`
	Date        string `json:"date"`
	Category    string `json:"category,omitempty"`
	Type        string `json:"type,omitempty"`
}

// JSON writes the transactions as an indented JSON array.
func JSON(w io.Writer, txs []api.Transaction) error {
	out := make([]jsonTransaction, 0, len(txs))
	for _, tx := range txs {
		out = append(out, jsonTransaction{
			Time:        tx.Time,
			Description: tx.Description,
			Expense:     amount(tx.Expense),
			Income:      amount(tx.Income),
			Balance:     amount(tx.Balance),
			Date:        tx.Date,
			Category:    tx.Category,
			Type:        tx.Type,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// ToFile writes the transactions to path in the given format ("csv" or
// "json").
func ToFile(path, format string, txs []api.Transaction, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	defer f.Close()

	switch format {
	case "csv":
		err = CSV(f, txs)
	case "json":
		err = JSON(f, txs)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		return err
	}

	logger.Info("exported ledger", "path", path, "format", format, "count", len(txs))
	return nil
}

// amount renders a fixed-scale amount, with zero as the empty string to
// match the spreadsheet's blank cells.
func amount(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.StringFixed(2)
}
