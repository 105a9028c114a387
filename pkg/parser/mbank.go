// Package parser converts bank notification HTML payloads into structured
// transaction records.
package parser

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/net/html"
	"golang.org/x/text/encoding/charmap"

	"github.com/jwojci/budget-agent/pkg/api"
)

// Parsed is one transaction together with the merchant keyword extracted
// from the raw description. The keyword is what the categorizer matches the
// dictionary against.
type Parsed struct {
	Transaction api.Transaction
	Keyword     string
}

// MBank parses mBank daily notification emails. The notifications are
// ISO-8859-2 encoded HTML documents whose first <table border="1"> holds one
// row per account event: a time cell and a free-text description cell.
type MBank struct {
	logger *slog.Logger
}

// NewMBank creates an mBank notification parser.
func NewMBank(logger *slog.Logger) *MBank {
	if logger == nil {
		logger = slog.Default()
	}
	return &MBank{logger: logger}
}

// SenderName returns the mailbox sender this parser handles.
func (p *MBank) SenderName() string { return "mBank" }

var (
	cardKeywordRe     = regexp.MustCompile(`Autoryzacja karty.*?:(.*?)\.\s*Kwota:`)
	transferKeywordRe = regexp.MustCompile(`tytulem:(.*?);`)
	keywordNoiseRe    = regexp.MustCompile(`\s*(?:/.*|K\.\d.*|-\s*)`)

	incomeRe       = regexp.MustCompile(`Przelew przych.*?kwota ([\d ,.]+) PLN`)
	incomeSenderRe = regexp.MustCompile(`od (.*?);`)
	expenseRe      = regexp.MustCompile(`Kwota: ([\d ,.]+) PLN|Przelew wych.*?kwota ([\d ,.]+) PLN|na kwote ([\d ,.]+) PLN`)
	balanceRe      = regexp.MustCompile(`Dostepne: ([\d ,.]+) PLN|Dost\. ([\d ,.]+)`)
)

// rawEntry is one row of the notification table before amount extraction.
type rawEntry struct {
	time        string
	description string
}

// Parse converts one HTML payload into transaction records for the given
// statement date (YYYY-MM-DD). A payload without the expected table yields
// zero records and no error; rows whose amounts cannot be parsed are counted
// as parse errors but do not abort the remaining rows.
func (p *MBank) Parse(payload []byte, date string) ([]Parsed, error) {
	entries, err := p.parseTable(payload)
	if err != nil {
		return nil, &api.ParseError{Payload: date, Reason: err.Error()}
	}

	out := make([]Parsed, 0, len(entries))
	var badRows int
	for _, e := range entries {
		parsed, ok, err := p.parseEntry(e, date)
		if err != nil {
			badRows++
			p.logger.Warn("skipping unparsable row", "date", date, "error", err)
			continue
		}
		if !ok {
			continue
		}
		out = append(out, parsed)
	}

	if badRows > 0 {
		p.logger.Warn("payload had unparsable rows", "date", date, "bad_rows", badRows, "parsed", len(out))
	}
	return out, nil
}

// parseTable decodes the payload and extracts (time, description) pairs from
// the first bordered table, skipping the header row.
func (p *MBank) parseTable(payload []byte) ([]rawEntry, error) {
	decoded, err := io.ReadAll(charmap.ISO8859_2.NewDecoder().Reader(bytes.NewReader(payload)))
	if err != nil {
		return nil, fmt.Errorf("decoding ISO-8859-2: %w", err)
	}

	doc, err := html.Parse(bytes.NewReader(decoded))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	table := findBorderedTable(doc)
	if table == nil {
		return nil, fmt.Errorf("no transaction table found")
	}

	var entries []rawEntry
	rows := findAll(table, "tr")
	for i, row := range rows {
		if i == 0 {
			continue // header row
		}
		cells := findAll(row, "td")
		if len(cells) != 2 {
			continue
		}
		entries = append(entries, rawEntry{
			time:        strings.TrimSpace(nodeText(cells[0])),
			description: strings.TrimSpace(nodeText(cells[1])),
		})
	}
	return entries, nil
}

// parseEntry extracts keyword, amounts and balance from one table row.
// ok is false for rows that are deliberately skipped (own-account debits,
// rows without an amount).
func (p *MBank) parseEntry(e rawEntry, date string) (Parsed, bool, error) {
	desc := e.description

	// Own-account debit mirror rows duplicate the card authorization rows.
	if strings.Contains(desc, "Obciazenie rach.") {
		return Parsed{}, false, nil
	}

	keyword := extractKeyword(desc)
	displayDesc := desc

	var expense, income, balance decimal.Decimal
	var err error

	if m := incomeRe.FindStringSubmatch(desc); m != nil {
		income, err = parseAmount(m[1])
		if err != nil {
			return Parsed{}, false, err
		}
		sender := "Unknown"
		if sm := incomeSenderRe.FindStringSubmatch(desc); sm != nil {
			sender = strings.TrimSpace(sm[1])
		}
		displayDesc = "Income: " + sender
	} else if m := expenseRe.FindStringSubmatch(desc); m != nil {
		expense, err = parseAmount(firstGroup(m))
		if err != nil {
			return Parsed{}, false, err
		}
		displayDesc = expenseDisplay(desc)
	} else {
		// Not a monetary event (login notices and the like).
		return Parsed{}, false, nil
	}

	if m := balanceRe.FindStringSubmatch(desc); m != nil {
		// A bad balance only loses the running balance, not the transaction.
		if b, berr := parseAmount(firstGroup(m)); berr == nil {
			balance = b
		}
	}

	return Parsed{
		Transaction: api.Transaction{
			Time:        e.time,
			Description: displayDesc,
			Expense:     expense,
			Income:      income,
			Balance:     balance,
			Date:        date,
		},
		Keyword: keyword,
	}, true, nil
}

// extractKeyword pulls the merchant keyword out of a raw description: the
// card authorization merchant, the transfer title, or the whole description,
// stripped of location suffixes and card numbers.
func extractKeyword(desc string) string {
	keyword := desc
	if m := cardKeywordRe.FindStringSubmatch(desc); m != nil {
		keyword = strings.TrimSpace(m[1])
	} else if m := transferKeywordRe.FindStringSubmatch(desc); m != nil {
		keyword = strings.TrimSpace(m[1])
	}

	keyword = strings.ReplaceAll(keyword, "...", "")
	keyword = keywordNoiseRe.ReplaceAllString(keyword, "")
	return strings.TrimSpace(keyword)
}

// expenseDisplay trims an expense description down to the merchant part:
// everything before "Kwota:", past the first label colon.
func expenseDisplay(desc string) string {
	head, _, _ := strings.Cut(desc, "Kwota:")
	if _, after, found := strings.Cut(head, ":"); found {
		return strings.TrimSpace(after)
	}
	return strings.TrimSpace(head)
}

// parseAmount parses a locale-formatted amount. mBank uses the comma as the
// decimal separator; when both separators appear the comma is a thousands
// separator instead.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "+")
	s = strings.TrimPrefix(s, "-")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")

	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return d, nil
}

// firstGroup returns the first non-empty capture group of a multi-branch
// regexp match.
func firstGroup(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

// findBorderedTable returns the first <table border="1"> in the document.
func findBorderedTable(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "table" {
		for _, attr := range n.Attr {
			if attr.Key == "border" && attr.Val == "1" {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findBorderedTable(c); t != nil {
			return t
		}
	}
	return nil
}

// findAll returns all descendant elements with the given tag name.
func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			out = append(out, c)
		}
		out = append(out, findAll(c, tag)...)
	}
	return out
}

// nodeText concatenates all text nodes under n.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
