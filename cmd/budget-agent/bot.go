package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot and the daily scheduler",
	Long: `Starts long polling for Telegram updates and schedules the daily run
at DAILY_RUN_HOUR. Runs until interrupted.`,
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

		schedulerDone := make(chan error, 1)
		go func() {
			schedulerDone <- app.runner.RunDaily(ctx, cfg.DailyRunHour)
		}()

		err = app.bot.Run(ctx)
		if schedErr := <-schedulerDone; schedErr != nil && !errors.Is(schedErr, context.Canceled) {
			return schedErr
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}
