package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	gmailv1 "google.golang.org/api/gmail/v1"
	sheetsv4 "google.golang.org/api/sheets/v4"

	"github.com/jwojci/budget-agent/pkg/agent"
	"github.com/jwojci/budget-agent/pkg/anomaly"
	"github.com/jwojci/budget-agent/pkg/bot"
	"github.com/jwojci/budget-agent/pkg/client"
	"github.com/jwojci/budget-agent/pkg/config"
	"github.com/jwojci/budget-agent/pkg/daemon"
	"github.com/jwojci/budget-agent/pkg/ledger"
	"github.com/jwojci/budget-agent/pkg/ledger/postgres"
	"github.com/jwojci/budget-agent/pkg/ledger/sheets"
	"github.com/jwojci/budget-agent/pkg/logging"
	"github.com/jwojci/budget-agent/pkg/mail"
	"github.com/jwojci/budget-agent/pkg/parser"
)

// scopes is the full Google API access the tool needs: read-only mail plus a
// writable spreadsheet.
var scopes = []string{gmailv1.GmailReadonlyScope, sheetsv4.SpreadsheetsScope}

var rootCmd = &cobra.Command{
	Use:           "budget-agent",
	Short:         "Personal budget automation from bank notification emails",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(logging.DefaultConfig())
	},
}

func init() {
	rootCmd.AddCommand(runCmd, botCmd, setupCmd, statusCmd)
}

// loadConfig loads and validates the environment configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// googleClient returns an authorized HTTP client using the cached token.
// Interactive re-authorization is only done by the setup command.
func googleClient(cfg *config.Config) (*http.Client, error) {
	return client.New(cfg.CredentialsFile, config.TokenFile, false, scopes...)
}

// app is the fully wired application.
type app struct {
	cfg      *config.Config
	store    *sheets.Store
	txStore  ledger.TransactionStore
	pgClose  func()
	runner   *daemon.Runner
	bot      *bot.Bot
	notifier *bot.Notifier
}

// buildApp wires the stores, the model agent, the notifier and the runner.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := slog.Default()

	httpClient, err := googleClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("authorizing with Google: %w (run `budget-agent setup` first)", err)
	}

	store, err := sheets.New(httpClient, cfg.SpreadsheetID, logger.With("component", "sheets"))
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, store: store, txStore: store, pgClose: func() {}}
	if cfg.LedgerBackend == "postgres" {
		pg, err := postgres.New(ctx, cfg.PostgresDSN, logger.With("component", "postgres"))
		if err != nil {
			return nil, err
		}
		a.txStore = pg
		a.pgClose = pg.Close
	}

	fetcher, err := mail.New(httpClient, cfg.EmailSender, logger.With("component", "mail"))
	if err != nil {
		return nil, err
	}

	toolbox := &agent.Toolbox{
		Transactions: a.txStore,
		Keywords:     store,
		Budget:       store,
		Now:          time.Now,
	}
	assistant, err := agent.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, toolbox,
		logger.With("component", "agent"))
	if err != nil {
		return nil, err
	}

	a.notifier, err = bot.NewNotifier(cfg.TelegramBotToken, cfg.TelegramChatID,
		logger.With("component", "notifier"))
	if err != nil {
		return nil, err
	}

	a.runner = &daemon.Runner{
		Fetcher:      fetcher,
		Parser:       parser.NewMBank(logger.With("component", "parser")),
		Transactions: a.txStore,
		Keywords:     store,
		Budget:       store,
		History:      store,
		Dashboards:   store,
		Assistant:    assistant,
		Notifier:     a.notifier,
		Anomaly:      anomaly.DefaultConfig(),
		Now:          time.Now,
		Logger:       logger.With("component", "daemon"),
	}

	a.bot, err = bot.New(bot.Config{
		Token:        cfg.TelegramBotToken,
		ChatID:       cfg.TelegramChatID,
		Assistant:    assistant,
		Transactions: a.txStore,
		Keywords:     store,
		Budget:       store,
	}, logger.With("component", "bot"))
	if err != nil {
		return nil, err
	}

	return a, nil
}

func (a *app) close() {
	a.pgClose()
}
