// Package daemon orchestrates the daily budget run: statement ingestion,
// categorization, archiving, anomaly alerts and the dashboard refresh.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwojci/budget-agent/pkg/agent"
	"github.com/jwojci/budget-agent/pkg/analytics"
	"github.com/jwojci/budget-agent/pkg/anomaly"
	"github.com/jwojci/budget-agent/pkg/api"
	"github.com/jwojci/budget-agent/pkg/categorize"
	"github.com/jwojci/budget-agent/pkg/ledger"
	"github.com/jwojci/budget-agent/pkg/mail"
	"github.com/jwojci/budget-agent/pkg/parser"
)

// archiveGraceDays is how many days into a new month the previous month may
// still be archived. Late runs inside the window stay idempotent via the
// history sheet.
const archiveGraceDays = 4

// HeaderChecker is implemented by stores that can verify and repair their
// schema before a run.
type HeaderChecker interface {
	EnsureExpenseHeader(ctx context.Context) error
}

// Notifier pushes run updates and failures to the owner's chat. Satisfied by
// bot.Notifier.
type Notifier interface {
	Send(text string)
}

// Runner executes the daily budget pipeline.
type Runner struct {
	Fetcher      *mail.Fetcher
	Parser       *parser.MBank
	Transactions ledger.TransactionStore
	Keywords     ledger.KeywordStore
	Budget       ledger.BudgetStore
	History      ledger.HistoryStore
	Dashboards   ledger.DashboardStore
	Assistant    *agent.Agent
	Notifier     Notifier
	Anomaly      anomaly.Config
	Now          func() time.Time
	Logger       *slog.Logger
}

// RunOnce executes one full daily run. Stage failures are logged and, where
// safe, later stages still execute; ingestion errors abort the run so no
// partial state masquerades as a complete day.
func (r *Runner) RunOnce(ctx context.Context) error {
	if r.Now == nil {
		r.Now = time.Now
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("run_id", uuid.NewString())

	now := r.Now()
	logger.Info("daily run starting", "date", now.Format(api.DateLayout))

	if checker, ok := r.Transactions.(HeaderChecker); ok {
		if err := checker.EnsureExpenseHeader(ctx); err != nil {
			r.notify("❌ Ledger schema check failed: " + err.Error())
			return fmt.Errorf("checking ledger schema: %w", err)
		}
	}

	if err := r.archivePreviousMonth(ctx, logger, now); err != nil {
		logger.Error("archiving previous month failed", "error", err)
		r.notify("⚠️ Archiving last month failed: " + err.Error())
	}

	if now.Weekday() == time.Monday && r.Assistant != nil {
		r.sendWeeklyDigest(ctx, logger)
	}

	saved, pending, err := r.ingest(ctx, logger, now)
	if err != nil {
		r.notify("❌ Statement ingestion failed: " + err.Error())
		return fmt.Errorf("ingesting statements: %w", err)
	}

	r.alertAnomalies(ctx, logger, now)

	if err := r.refreshDashboard(ctx, now); err != nil {
		logger.Error("dashboard refresh failed", "error", err)
		r.notify("⚠️ Dashboard refresh failed: " + err.Error())
	}

	r.sendRunSummary(saved, pending)
	logger.Info("daily run complete", "saved", saved, "pending_keywords", len(pending))
	return nil
}

// RunDaily blocks, executing RunOnce every day at the given hour until the
// context is canceled.
func (r *Runner) RunDaily(ctx context.Context, hour int) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if r.Now == nil {
		r.Now = time.Now
	}

	for {
		next := nextRunTime(r.Now(), hour)
		logger.Info("next daily run scheduled", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		// RunOnce reports its own failures to the chat.
		if err := r.RunOnce(ctx); err != nil {
			logger.Error("daily run failed", "error", err)
		}
	}
}

// nextRunTime returns the next occurrence of hour o'clock strictly after now.
func nextRunTime(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// ingest fetches this month's statements, parses and categorizes them, and
// appends the transactions the ledger has not seen.
func (r *Runner) ingest(ctx context.Context, logger *slog.Logger, now time.Time) (int, []string, error) {
	statements, err := r.Fetcher.FetchSince(ctx, analytics.MonthStart(now))
	if err != nil {
		return 0, nil, err
	}

	entries, err := r.Keywords.Keywords(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("loading keyword dictionary: %w", err)
	}
	cat := categorize.New(entries, logger)

	var txs []api.Transaction
	for _, st := range statements {
		parsed, err := r.Parser.Parse(st.HTML, st.Date)
		if err != nil {
			logger.Warn("skipping unparsable statement", "message_id", st.MessageID, "error", err)
			continue
		}
		for _, p := range parsed {
			tx := p.Transaction
			if tx.IsExpense() {
				tx.Category, tx.Type = cat.Match(p.Keyword, tx.Description)
			}
			txs = append(txs, tx)
		}
	}

	saved, err := ledger.AppendNew(ctx, r.Transactions, txs)
	if err != nil {
		return 0, nil, err
	}

	pending := cat.PendingKeywords()
	if len(pending) > 0 {
		if err := r.Keywords.AppendPending(ctx, pending); err != nil {
			logger.Error("recording pending keywords failed", "error", err)
		}
	}
	return saved, pending, nil
}

// archivePreviousMonth writes last month's summary row early in a new month,
// once.
func (r *Runner) archivePreviousMonth(ctx context.Context, logger *slog.Logger, now time.Time) error {
	if now.Day() > archiveGraceDays {
		return nil
	}

	prev := analytics.MonthStart(now).AddDate(0, -1, 0)
	month := prev.Format(api.MonthLayout)

	archived, err := r.History.ArchivedMonths(ctx)
	if err != nil {
		return err
	}
	for _, m := range archived {
		if m == month {
			logger.Debug("month already archived", "month", month)
			return nil
		}
	}

	txs, err := r.Transactions.Transactions(ctx)
	if err != nil {
		return err
	}
	income, err := r.Budget.MonthlyIncome(ctx)
	if err != nil {
		return err
	}

	sum := analytics.Summarize(txs, income, prev)
	if err := r.History.AppendSummary(ctx, sum); err != nil {
		return err
	}

	logger.Info("archived month", "month", month, "total_spent", sum.TotalSpent.StringFixed(2))
	r.notify(fmt.Sprintf("📊 Archived %s: spent %s, saved %s (Needs %.1f%% / Wants %.1f%%)",
		month, sum.TotalSpent.StringFixed(2), sum.BonusSavings.StringFixed(2),
		sum.NeedsPercent, sum.WantsPercent))
	return nil
}

func (r *Runner) sendWeeklyDigest(ctx context.Context, logger *slog.Logger) {
	digest, err := r.Assistant.WeeklyDigest(ctx)
	if err != nil {
		logger.Error("weekly digest failed", "error", err)
		return
	}
	r.notify("🗞 *Weekly digest*\n\n" + digest)
}

func (r *Runner) alertAnomalies(ctx context.Context, logger *slog.Logger, now time.Time) {
	txs, err := r.Transactions.Transactions(ctx)
	if err != nil {
		logger.Error("anomaly detection failed", "error", err)
		return
	}

	alerts := anomaly.Detect(txs, now, r.Anomaly)
	if len(alerts) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString("🔔 *Unusual spending this week*\n")
	for _, a := range alerts {
		fmt.Fprintf(&sb, "\n%s: %s (typical week ≈ %.2f)",
			a.Category, a.Current.StringFixed(2), a.Mean)
	}
	r.notify(sb.String())
	logger.Info("anomaly alerts sent", "count", len(alerts))
}

func (r *Runner) refreshDashboard(ctx context.Context, now time.Time) error {
	txs, err := r.Transactions.Transactions(ctx)
	if err != nil {
		return err
	}
	income, err := r.Budget.MonthlyIncome(ctx)
	if err != nil {
		return err
	}
	return r.Dashboards.WriteDashboard(ctx, analytics.BuildDashboard(txs, income, now))
}

func (r *Runner) sendRunSummary(saved int, pending []string) {
	var sb strings.Builder
	if saved == 0 {
		sb.WriteString("✅ Daily run done. No new transactions.")
	} else {
		fmt.Fprintf(&sb, "✅ Daily run done. Saved %d new transaction(s).", saved)
	}
	if len(pending) > 0 {
		fmt.Fprintf(&sb, "\n\n%d merchant(s) need categorizing: %s\nUse /categorize.",
			len(pending), strings.Join(pending, ", "))
	}
	r.notify(sb.String())
}

func (r *Runner) notify(text string) {
	if r.Notifier != nil {
		r.Notifier.Send(text)
	}
}
