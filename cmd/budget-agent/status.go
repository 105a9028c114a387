package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwojci/budget-agent/pkg/analytics"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check configuration and ledger connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Println("Configuration: OK")
		fmt.Println("Ledger backend:", cfg.LedgerBackend)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		app, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer app.close()

		txs, err := app.txStore.Transactions(ctx)
		if err != nil {
			return fmt.Errorf("reading ledger: %w", err)
		}
		income, err := app.store.MonthlyIncome(ctx)
		if err != nil {
			return fmt.Errorf("reading budget: %w", err)
		}

		m := analytics.Compute(txs, income, time.Now())
		fmt.Printf("Transactions on record: %d\n", len(txs))
		fmt.Printf("Month to date: spent %s of %s (remaining %s)\n",
			m.TotalSpent.StringFixed(2), m.MonthlyIncome.StringFixed(2), m.Remaining.StringFixed(2))

		entries, err := app.store.Keywords(ctx)
		if err != nil {
			return fmt.Errorf("reading categories: %w", err)
		}
		pending := 0
		for _, e := range entries {
			if e.Uncategorized() {
				pending++
			}
		}
		fmt.Printf("Keywords: %d (%d pending categorization)\n", len(entries), pending)
		return nil
	},
}
