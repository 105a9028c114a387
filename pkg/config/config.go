// Package config holds the application configuration, loaded once at startup
// and passed by reference to every component that needs it.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/jwojci/budget-agent/pkg/api"
)

// ClientSecretFile is the default path to the Google OAuth credentials JSON file.
const ClientSecretFile = "credentials.json"

// TokenFile is the default path to the cached OAuth token.
const TokenFile = "token.json"

// Config is the full application configuration. All values come from the
// environment (a local .env file is loaded first when present).
type Config struct {
	// TelegramBotToken authenticates the chat bot.
	// Environment variable: TELEGRAM_BOT_TOKEN
	TelegramBotToken string `koanf:"TELEGRAM_BOT_TOKEN"`

	// TelegramChatID is the chat that receives scheduled-run notifications.
	// Environment variable: TELEGRAM_CHAT_ID
	TelegramChatID int64 `koanf:"TELEGRAM_CHAT_ID"`

	// GeminiAPIKey authenticates the generative AI calls.
	// Environment variable: GEMINI_API_KEY
	GeminiAPIKey string `koanf:"GEMINI_API_KEY"`

	// SpreadsheetID is the ID of the budget spreadsheet.
	// Environment variable: SPREADSHEET_ID
	SpreadsheetID string `koanf:"SPREADSHEET_ID"`

	// EmailSender is the bank sender the mailbox is filtered by.
	// Environment variable: EMAIL_SENDER. Defaults to "mBank".
	EmailSender string `koanf:"EMAIL_SENDER"`

	// CredentialsFile overrides the Google OAuth client secret path.
	// Environment variable: GOOGLE_CREDENTIALS_FILE
	CredentialsFile string `koanf:"GOOGLE_CREDENTIALS_FILE"`

	// LedgerBackend selects the transaction store implementation:
	// "sheets" (default) or "postgres".
	// Environment variable: LEDGER_BACKEND
	LedgerBackend string `koanf:"LEDGER_BACKEND"`

	// PostgresDSN configures the postgres ledger backend.
	// Environment variable: POSTGRES_DSN
	PostgresDSN string `koanf:"POSTGRES_DSN"`

	// DailyRunHour is the local hour (0-23) at which bot mode triggers the
	// scheduled run. Environment variable: DAILY_RUN_HOUR. Defaults to 10.
	DailyRunHour int `koanf:"DAILY_RUN_HOUR"`

	// GeminiModel names the model used by the conversational agent.
	// Environment variable: GEMINI_MODEL. Defaults to "gemini-2.5-flash".
	GeminiModel string `koanf:"GEMINI_MODEL"`
}

// Load builds the configuration from a .env file (if present) and the
// process environment.
func Load() (*Config, error) {
	// Missing .env is fine; the environment may be populated directly.
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	cfg := Config{
		EmailSender:   "mBank",
		LedgerBackend: "sheets",
		DailyRunHour:  10,
		GeminiModel:   "gemini-2.5-flash",
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.CredentialsFile == "" {
		cfg.CredentialsFile = ClientSecretFile
	}

	return &cfg, nil
}

// Validate checks that every required secret is present. Absence of any is a
// startup-fatal configuration error.
func (c *Config) Validate() error {
	if c.TelegramBotToken == "" {
		return &api.ConfigurationError{Key: "TELEGRAM_BOT_TOKEN"}
	}
	if c.TelegramChatID == 0 {
		return &api.ConfigurationError{Key: "TELEGRAM_CHAT_ID"}
	}
	if c.GeminiAPIKey == "" {
		return &api.ConfigurationError{Key: "GEMINI_API_KEY"}
	}
	if c.SpreadsheetID == "" {
		return &api.ConfigurationError{Key: "SPREADSHEET_ID"}
	}
	if _, err := os.Stat(c.CredentialsFile); os.IsNotExist(err) {
		return &api.ConfigurationError{Key: c.CredentialsFile}
	}
	if c.LedgerBackend == "postgres" && c.PostgresDSN == "" {
		return &api.ConfigurationError{Key: "POSTGRES_DSN"}
	}
	return nil
}
