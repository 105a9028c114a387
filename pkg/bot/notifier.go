// Package bot is the Telegram surface: push notifications from the daily
// run and an interactive command/chat interface.
package bot

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier pushes messages to the owner's chat.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

// NewNotifier creates a notifier bound to one chat.
func NewNotifier(token string, chatID int64, logger *slog.Logger) (*Notifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	return &Notifier{api: api, chatID: chatID, logger: logger}, nil
}

// Send delivers a Markdown message, retrying as plain text when Telegram
// rejects the formatting. Notification failures never abort a run.
func (n *Notifier) Send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := n.api.Send(msg)
	if err == nil {
		return
	}
	n.logger.Debug("markdown send failed, retrying as plain text", "error", err)

	plain := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.api.Send(plain); err != nil {
		n.logger.Error("failed to send notification", "error", err)
	}
}

// Sendf formats and delivers a message.
func (n *Notifier) Sendf(format string, args ...any) {
	n.Send(fmt.Sprintf(format, args...))
}
