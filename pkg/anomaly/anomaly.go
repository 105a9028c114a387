// Package anomaly flags categories whose current-week spending is far above
// their historical weekly pattern.
package anomaly

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jwojci/budget-agent/pkg/api"
)

// Config tunes the detector. Zero values are replaced with the defaults.
type Config struct {
	// Threshold is the number of standard deviations above the historical
	// mean before a category is flagged.
	Threshold float64
	// MinObservations is the minimum number of past weeks with spending in a
	// category before its statistics are trusted.
	MinObservations int
	// MinSpend suppresses alerts for weeks below this absolute amount, so
	// small categories with near-zero variance do not spam alerts.
	MinSpend decimal.Decimal
}

// DefaultConfig returns the standard detector settings.
func DefaultConfig() Config {
	return Config{
		Threshold:       2.0,
		MinObservations: 4,
		MinSpend:        decimal.NewFromInt(50),
	}
}

// Alert is one flagged category, with the statistics that triggered it.
type Alert struct {
	Category string
	Current  decimal.Decimal
	Mean     float64
	StdDev   float64
	// Severity is how many standard deviations the current week sits above
	// the mean.
	Severity float64
}

type weekKey struct {
	year int
	week int
}

// Detect compares each category's current-week spending against its past
// weekly totals. The current week is excluded from the history it is judged
// against. Alerts are ordered by severity, highest first.
func Detect(txs []api.Transaction, now time.Time, cfg Config) []Alert {
	if cfg.Threshold == 0 {
		cfg.Threshold = 2.0
	}
	if cfg.MinObservations == 0 {
		cfg.MinObservations = 4
	}
	if cfg.MinSpend.IsZero() {
		cfg.MinSpend = decimal.NewFromInt(50)
	}

	curYear, curWeek := now.ISOWeek()
	current := weekKey{curYear, curWeek}

	// Per-category totals keyed by ISO week.
	weekly := make(map[string]map[weekKey]decimal.Decimal)
	for _, tx := range txs {
		if !tx.IsExpense() || tx.Category == "" {
			continue
		}
		d, err := time.ParseInLocation(api.DateLayout, tx.Date, now.Location())
		if err != nil {
			continue
		}
		y, w := d.ISOWeek()
		key := weekKey{y, w}
		if weekly[tx.Category] == nil {
			weekly[tx.Category] = make(map[weekKey]decimal.Decimal)
		}
		weekly[tx.Category][key] = weekly[tx.Category][key].Add(tx.Expense)
	}

	var alerts []Alert
	for category, weeks := range weekly {
		currentSpend, ok := weeks[current]
		if !ok || currentSpend.LessThan(cfg.MinSpend) {
			continue
		}

		var history []float64
		for key, total := range weeks {
			if key == current {
				continue
			}
			history = append(history, total.InexactFloat64())
		}
		if len(history) < cfg.MinObservations {
			continue
		}

		mean, stddev := stats(history)
		if stddev == 0 {
			continue
		}
		severity := (currentSpend.InexactFloat64() - mean) / stddev
		if severity < cfg.Threshold {
			continue
		}
		alerts = append(alerts, Alert{
			Category: category,
			Current:  currentSpend,
			Mean:     mean,
			StdDev:   stddev,
			Severity: severity,
		})
	}

	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].Severity != alerts[j].Severity {
			return alerts[i].Severity > alerts[j].Severity
		}
		return alerts[i].Category < alerts[j].Category
	})
	return alerts
}

// stats returns the mean and sample standard deviation of vals.
func stats(vals []float64) (mean, stddev float64) {
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	if len(vals) < 2 {
		return mean, 0
	}
	var variance float64
	for _, v := range vals {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(vals) - 1)
	return mean, math.Sqrt(variance)
}
