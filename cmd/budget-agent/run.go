package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one daily run and exit",
	Long: `Fetches this month's bank notification emails, appends new transactions
to the ledger, archives completed months, sends spending alerts and refreshes
the budget dashboard. Designed for cron or a container scheduler.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer app.close()

		return app.runner.RunOnce(ctx)
	},
}
