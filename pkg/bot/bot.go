package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/jwojci/budget-agent/pkg/agent"
	"github.com/jwojci/budget-agent/pkg/analytics"
	"github.com/jwojci/budget-agent/pkg/api"
	"github.com/jwojci/budget-agent/pkg/ledger"
)

const helpText = `I track your spending and budget.

Commands:
/summary - month-to-date budget position
/top5 - top merchants this month
/categorize - resolve uncategorized merchants
/newchat - start a fresh conversation
/help - this message

Anything else you type goes to the assistant, e.g.
"how much did I spend on groceries last week?"`

// categorizeState is one chat's position in the keyword resolution flow.
type categorizeState struct {
	pending    []string
	keyword    string
	categories []string
	category   string
}

// telegramClient is the slice of the Telegram API the handlers use.
// Satisfied by tgbotapi.BotAPI.
type telegramClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot is the interactive Telegram frontend.
type Bot struct {
	api          *tgbotapi.BotAPI
	tg           telegramClient
	chatID       int64
	assistant    *agent.Agent
	transactions ledger.TransactionStore
	keywords     ledger.KeywordStore
	budget       ledger.BudgetStore
	logger       *slog.Logger
	now          func() time.Time

	// categorize flow state, keyed by chat. The bot serves one owner, but
	// keying by chat keeps callback handling honest.
	flows map[int64]*categorizeState
}

// Config wires the bot's collaborators.
type Config struct {
	Token        string
	ChatID       int64
	Assistant    *agent.Agent
	Transactions ledger.TransactionStore
	Keywords     ledger.KeywordStore
	Budget       ledger.BudgetStore
	Now          func() time.Time
}

// New creates the bot.
func New(cfg Config, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	logger.Info("telegram bot authorized", "username", botAPI.Self.UserName)

	return &Bot{
		api:          botAPI,
		tg:           botAPI,
		chatID:       cfg.ChatID,
		assistant:    cfg.Assistant,
		transactions: cfg.Transactions,
		keywords:     cfg.Keywords,
		budget:       cfg.Budget,
		logger:       logger,
		now:          cfg.Now,
		flows:        make(map[int64]*categorizeState),
	}, nil
}

// Run polls for updates until the context is canceled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("telegram bot stopping", "reason", ctx.Err())
			return ctx.Err()
		case update := <-updates:
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat.ID != b.chatID {
		b.logger.Warn("ignoring message from unknown chat", "chat_id", msg.Chat.ID)
		return
	}

	switch msg.Command() {
	case "start":
		b.reply(msg.Chat.ID, "Hi! I'm your budget assistant.\n\n"+helpText)
	case "help":
		b.reply(msg.Chat.ID, helpText)
	case "summary":
		b.sendSummary(ctx, msg.Chat.ID)
	case "top5":
		b.sendTopMerchants(ctx, msg.Chat.ID)
	case "categorize":
		b.startCategorize(ctx, msg.Chat.ID)
	case "newchat":
		b.assistant.Reset(msg.Chat.ID)
		b.reply(msg.Chat.ID, "Started a fresh conversation.")
	case "":
		b.handleFreeText(ctx, msg)
	default:
		b.reply(msg.Chat.ID, "Unknown command. Try /help.")
	}
}

func (b *Bot) handleFreeText(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	// Typing indicator while the model thinks.
	if _, err := b.tg.Request(tgbotapi.NewChatAction(msg.Chat.ID, tgbotapi.ChatTyping)); err != nil {
		b.logger.Debug("failed to send chat action", "error", err)
	}

	reply, err := b.assistant.Chat(ctx, msg.Chat.ID, text)
	if err != nil {
		b.logger.Error("assistant chat failed", "error", err)
		b.reply(msg.Chat.ID, "Sorry, I couldn't process that. Try /newchat if this keeps happening.")
		return
	}
	b.reply(msg.Chat.ID, reply)
}

func (b *Bot) sendSummary(ctx context.Context, chatID int64) {
	txs, err := b.transactions.Transactions(ctx)
	if err != nil {
		b.replyError(chatID, "reading the ledger", err)
		return
	}
	income, err := b.budget.MonthlyIncome(ctx)
	if err != nil {
		b.replyError(chatID, "reading the budget", err)
		return
	}

	m := analytics.Compute(txs, income, b.now())
	var sb strings.Builder
	fmt.Fprintf(&sb, "*Budget for %s*\n\n", m.Now.Format("January 2006"))
	fmt.Fprintf(&sb, "Income: %s\n", m.MonthlyIncome.StringFixed(2))
	fmt.Fprintf(&sb, "Spent: %s\n", m.TotalSpent.StringFixed(2))
	fmt.Fprintf(&sb, "Remaining: %s\n\n", m.Remaining.StringFixed(2))
	fmt.Fprintf(&sb, "This week: %s of %s target\n", m.SpentThisWeek.StringFixed(2), m.WeeklyTarget.StringFixed(2))
	fmt.Fprintf(&sb, "Safe to spend: %s this week, %s/day for the rest of the month\n",
		m.SafeToSpend.StringFixed(2), m.DailySafeToSpend.StringFixed(2))
	if m.NeedsPercent > 0 || m.WantsPercent > 0 {
		fmt.Fprintf(&sb, "Needs/Wants: %.1f%% / %.1f%%\n", m.NeedsPercent, m.WantsPercent)
	}
	b.replyMarkdown(chatID, sb.String())
}

func (b *Bot) sendTopMerchants(ctx context.Context, chatID int64) {
	txs, err := b.transactions.Transactions(ctx)
	if err != nil {
		b.replyError(chatID, "reading the ledger", err)
		return
	}

	now := b.now()
	monthTxs := analytics.Between(txs, analytics.MonthStart(now), now.AddDate(0, 0, 1))
	top := analytics.TopMerchants(monthTxs, 5)
	if len(top) == 0 {
		b.reply(chatID, "No spending recorded this month yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("*Top merchants this month*\n\n")
	for i, m := range top {
		fmt.Fprintf(&sb, "%d. %s — %s (%dx)\n", i+1, m.Description, m.Total.StringFixed(2), m.Visits)
	}
	b.replyMarkdown(chatID, sb.String())
}

// startCategorize begins the two-step resolution flow for pending keywords.
func (b *Bot) startCategorize(ctx context.Context, chatID int64) {
	entries, err := b.keywords.Keywords(ctx)
	if err != nil {
		b.replyError(chatID, "reading categories", err)
		return
	}

	var pending []string
	catSet := make(map[string]bool)
	for _, e := range entries {
		if e.Uncategorized() {
			pending = append(pending, e.Keyword)
		} else if e.Category != "" {
			catSet[e.Category] = true
		}
	}
	if len(pending) == 0 {
		b.reply(chatID, "Nothing to categorize — all merchants are resolved.")
		return
	}

	categories := make([]string, 0, len(catSet))
	for c := range catSet {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	if len(categories) == 0 {
		b.reply(chatID, "No categories exist yet. Add at least one categorized keyword to the sheet first.")
		return
	}

	b.flows[chatID] = &categorizeState{pending: pending, categories: categories}
	b.askCategory(chatID)
}

// askCategory pops the next pending keyword and offers the category keyboard.
func (b *Bot) askCategory(chatID int64) {
	state := b.flows[chatID]
	if state == nil || len(state.pending) == 0 {
		delete(b.flows, chatID)
		b.reply(chatID, "All done.")
		return
	}
	state.keyword = state.pending[0]
	state.pending = state.pending[1:]
	state.category = ""

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(state.categories)+1)
	for i, cat := range state.categories {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(cat, "cat:"+strconv.Itoa(i)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Skip", "skip"),
	))

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Which category is %q?", state.keyword))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.tg.Send(msg); err != nil {
		b.logger.Error("failed to send category keyboard", "error", err)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	// Acknowledge immediately so the client stops its spinner.
	if _, err := b.tg.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Debug("failed to ack callback", "error", err)
	}

	// Telegram omits the message on callbacks for messages too old to edit.
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	if chatID != b.chatID {
		b.logger.Warn("ignoring callback from unknown chat", "chat_id", chatID)
		return
	}
	state := b.flows[chatID]
	if state == nil {
		b.edit(chatID, cb.Message.MessageID, "This conversation expired. Run /categorize again.")
		return
	}

	data := cb.Data
	switch {
	case data == "skip":
		b.edit(chatID, cb.Message.MessageID, fmt.Sprintf("Skipped %q.", state.keyword))
		b.askCategory(chatID)

	case strings.HasPrefix(data, "cat:"):
		idx, err := strconv.Atoi(strings.TrimPrefix(data, "cat:"))
		if err != nil || idx < 0 || idx >= len(state.categories) {
			b.logger.Warn("bad callback data", "data", data)
			return
		}
		state.category = state.categories[idx]

		keyboard := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Need", "type:"+api.TypeNeed),
				tgbotapi.NewInlineKeyboardButtonData("Want", "type:"+api.TypeWant),
			),
		)
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, cb.Message.MessageID,
			fmt.Sprintf("%q → %s. Is it a Need or a Want?", state.keyword, state.category),
			keyboard)
		if _, err := b.tg.Send(edit); err != nil {
			b.logger.Error("failed to edit message", "error", err)
		}

	case strings.HasPrefix(data, "type:"):
		txType := strings.TrimPrefix(data, "type:")
		if txType != api.TypeNeed && txType != api.TypeWant {
			b.logger.Warn("bad callback data", "data", data)
			return
		}
		if state.category == "" {
			b.edit(chatID, cb.Message.MessageID, "Pick a category first.")
			return
		}
		b.resolveKeyword(ctx, chatID, cb.Message.MessageID, state, txType)

	default:
		b.logger.Warn("unknown callback data", "data", data)
	}
}

func (b *Bot) resolveKeyword(ctx context.Context, chatID int64, messageID int, state *categorizeState, txType string) {
	entry := api.KeywordEntry{Keyword: state.keyword, Category: state.category, Type: txType}
	if err := b.keywords.UpdateKeyword(ctx, entry); err != nil {
		b.edit(chatID, messageID, "Saving failed: "+err.Error())
		return
	}
	updated, err := b.transactions.Recategorize(ctx, state.keyword, state.category, txType)
	if err != nil {
		b.edit(chatID, messageID, "Keyword saved, but updating past transactions failed: "+err.Error())
		return
	}

	b.edit(chatID, messageID, fmt.Sprintf("%q → %s (%s), %d transaction(s) updated.",
		state.keyword, state.category, txType, updated))
	b.askCategory(chatID)
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.tg.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error("failed to send message", "error", err)
	}
}

func (b *Bot) replyMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := b.tg.Send(msg)
	if err == nil {
		return
	}
	b.logger.Debug("markdown send failed, retrying as plain text", "error", err)
	b.reply(chatID, text)
}

func (b *Bot) replyError(chatID int64, doing string, err error) {
	b.logger.Error("command failed", "doing", doing, "error", err)
	b.reply(chatID, "Something went wrong while "+doing+". Check the logs.")
}

func (b *Bot) edit(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := b.tg.Send(edit); err != nil {
		b.logger.Debug("failed to edit message", "error", err)
	}
}
