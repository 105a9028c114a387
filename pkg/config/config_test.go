package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwojci/budget-agent/pkg/api"
)

func writeCredentials(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"installed":{}}`), 0o600))
	return path
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("SPREADSHEET_ID", "sheet-id")
	t.Setenv("GOOGLE_CREDENTIALS_FILE", writeCredentials(t))
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "mBank", cfg.EmailSender)
	assert.Equal(t, "sheets", cfg.LedgerBackend)
	assert.Equal(t, 10, cfg.DailyRunHour)
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
	assert.Equal(t, int64(42), cfg.TelegramChatID)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("EMAIL_SENDER", "otherbank")
	t.Setenv("DAILY_RUN_HOUR", "6")
	t.Setenv("GEMINI_MODEL", "gemini-2.5-pro")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "otherbank", cfg.EmailSender)
	assert.Equal(t, 6, cfg.DailyRunHour)
	assert.Equal(t, "gemini-2.5-pro", cfg.GeminiModel)
}

func TestValidateMissingSecret(t *testing.T) {
	setRequired(t)
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate()
	var cfgErr *api.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "GEMINI_API_KEY", cfgErr.Key)
}

func TestValidatePostgresNeedsDSN(t *testing.T) {
	setRequired(t)
	t.Setenv("LEDGER_BACKEND", "postgres")

	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate()
	var cfgErr *api.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "POSTGRES_DSN", cfgErr.Key)

	t.Setenv("POSTGRES_DSN", "postgres://localhost/budget")
	cfg, err = Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}
