// Package categorize maps transaction descriptions to categories using a
// user-maintained keyword dictionary.
package categorize

import (
	"log/slog"
	"strings"

	"github.com/jwojci/budget-agent/pkg/api"
)

// Categorizer matches transactions against a keyword dictionary and collects
// the keywords it could not match. It never mutates the dictionary itself;
// learning happens only through the interactive resolution flow.
type Categorizer struct {
	entries []api.KeywordEntry
	// known holds lowercased dictionary keywords, including ones still
	// awaiting categorization, so they are not enqueued twice.
	known   map[string]bool
	pending map[string]bool
	queue   []string
	logger  *slog.Logger
}

// New creates a Categorizer over a snapshot of the keyword dictionary.
func New(entries []api.KeywordEntry, logger *slog.Logger) *Categorizer {
	if logger == nil {
		logger = slog.Default()
	}

	known := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Keyword != "" {
			known[strings.ToLower(e.Keyword)] = true
		}
	}

	return &Categorizer{
		entries: entries,
		known:   known,
		pending: make(map[string]bool),
		logger:  logger,
	}
}

// Match returns the category and type for a transaction, matching dictionary
// keywords case-insensitively as substrings of the extracted keyword and the
// full description. When several keywords match, the longest keyword wins;
// ties are broken by dictionary order. No match returns empty strings and
// enqueues the extracted keyword for interactive categorization, once per
// batch.
func (c *Categorizer) Match(keyword, description string) (category, txType string) {
	kwLower := strings.ToLower(keyword)
	descLower := strings.ToLower(description)

	var best *api.KeywordEntry
	for i := range c.entries {
		e := &c.entries[i]
		if e.Keyword == "" || e.Category == "" {
			continue
		}
		entryKw := strings.ToLower(e.Keyword)
		if !strings.Contains(kwLower, entryKw) && !strings.Contains(descLower, entryKw) {
			continue
		}
		if best == nil || len(e.Keyword) > len(best.Keyword) {
			best = e
		}
	}

	if best != nil {
		c.logger.Debug("categorized transaction",
			"keyword", keyword, "matched", best.Keyword, "category", best.Category)
		return best.Category, best.Type
	}

	c.enqueue(keyword)
	return "", ""
}

// enqueue records an unmatched keyword, deduplicated case-insensitively
// against both this batch and the existing dictionary.
func (c *Categorizer) enqueue(keyword string) {
	if keyword == "" {
		return
	}
	lower := strings.ToLower(keyword)
	if c.known[lower] || c.pending[lower] {
		return
	}
	c.pending[lower] = true
	c.queue = append(c.queue, keyword)
	c.logger.Debug("queued uncategorized keyword", "keyword", keyword)
}

// PendingKeywords returns the uncategorized keywords collected so far, in
// first-seen order.
func (c *Categorizer) PendingKeywords() []string {
	return c.queue
}
