package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwojci/budget-agent/pkg/export"
)

var (
	exportOut    string
	exportFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the transaction ledger to a local file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		app, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer app.close()

		txs, err := app.txStore.Transactions(ctx)
		if err != nil {
			return err
		}
		return export.ToFile(exportOut, exportFormat, txs, slog.Default())
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "transactions.csv", "output file path")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "output format: csv or json")
	rootCmd.AddCommand(exportCmd)
}
