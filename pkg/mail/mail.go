// Package mail fetches bank notification emails from Gmail.
package mail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/jwojci/budget-agent/pkg/api"
)

// attachmentPrefix marks the daily statement attachment among a message's
// parts. The bank sends one .htm file per day, named after this prefix.
const attachmentPrefix = "Powiadomienie e-mail z "

var attachmentDateRe = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)

// Statement is one fetched daily statement, still as raw HTML.
type Statement struct {
	MessageID string
	// Date is the statement date in YYYY-MM-DD form, taken from the
	// attachment filename, or the message date when the filename has none.
	Date string
	HTML []byte
}

// Fetcher lists bank notification messages and downloads their statement
// attachments.
type Fetcher struct {
	svc    *gmail.Service
	sender string
	logger *slog.Logger
}

// New creates a Gmail statement fetcher for messages from sender.
func New(httpClient *http.Client, sender string, logger *slog.Logger) (*Fetcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	svc, err := gmail.NewService(context.Background(), option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}

	return &Fetcher{svc: svc, sender: sender, logger: logger}, nil
}

// withRetry retries rate-limit and server errors; everything else fails
// straight through.
func (f *Fetcher) withRetry(op func() error) error {
	return retry.Do(
		op,
		retry.RetryIf(func(err error) bool {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) {
				if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500 {
					f.logger.Warn("transient gmail error, will retry", "code", apiErr.Code)
					return true
				}
			}
			return false
		}),
		retry.Attempts(3),
		retry.Delay(10*time.Second),
		retry.LastErrorOnly(true),
	)
}

// FetchSince returns all statements received on or after the given day,
// oldest first, so ledger appends preserve chronological order. A message
// that fails to download is logged and skipped, never fatal for the batch.
func (f *Fetcher) FetchSince(ctx context.Context, since time.Time) ([]Statement, error) {
	// Gmail's after: matches strictly later timestamps, so back off one day.
	query := fmt.Sprintf("from:%s after:%s", f.sender, since.AddDate(0, 0, -1).Format("2006/01/02"))

	var ids []string
	pageToken := ""
	for {
		call := f.svc.Users.Messages.List("me").Q(query).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		var resp *gmail.ListMessagesResponse
		err := f.withRetry(func() error {
			var err error
			resp, err = call.Do()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("listing messages: %w", err)
		}
		for _, msg := range resp.Messages {
			ids = append(ids, msg.Id)
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	f.logger.Info("found bank messages", "count", len(ids), "query", query)

	// List returns newest first.
	statements := make([]Statement, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		st, err := f.fetchStatement(ctx, ids[i])
		if err != nil {
			f.logger.Warn("skipping message", "message_id", ids[i], "error", err)
			continue
		}
		if st != nil {
			statements = append(statements, *st)
		}
	}
	return statements, nil
}

// fetchStatement downloads the statement attachment of one message. Messages
// without one return (nil, nil).
func (f *Fetcher) fetchStatement(ctx context.Context, msgID string) (*Statement, error) {
	var msg *gmail.Message
	err := f.withRetry(func() error {
		var err error
		msg, err = f.svc.Users.Messages.Get("me", msgID).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("getting message: %w", err)
	}

	part := findAttachment(msg.Payload)
	if part == nil {
		f.logger.Debug("message has no statement attachment", "message_id", msgID)
		return nil, nil
	}

	date := statementDate(part.Filename)
	if date == "" {
		date = time.Unix(msg.InternalDate/1000, 0).Format(api.DateLayout)
	}

	data := part.Body.Data
	if data == "" && part.Body.AttachmentId != "" {
		var att *gmail.MessagePartBody
		err := f.withRetry(func() error {
			var err error
			att, err = f.svc.Users.Messages.Attachments.Get("me", msgID, part.Body.AttachmentId).
				Context(ctx).Do()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("getting attachment: %w", err)
		}
		data = att.Data
	}
	if data == "" {
		return nil, fmt.Errorf("statement attachment %q is empty", part.Filename)
	}

	html, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decoding attachment: %w", err)
	}

	return &Statement{MessageID: msgID, Date: date, HTML: html}, nil
}

// findAttachment walks the MIME tree for the bank statement part.
func findAttachment(part *gmail.MessagePart) *gmail.MessagePart {
	if part == nil {
		return nil
	}
	if strings.HasPrefix(part.Filename, attachmentPrefix) ||
		(part.Filename != "" && strings.HasSuffix(strings.ToLower(part.Filename), ".htm")) {
		return part
	}
	for _, p := range part.Parts {
		if found := findAttachment(p); found != nil {
			return found
		}
	}
	return nil
}

// statementDate extracts the YYYY-MM-DD date embedded in the attachment
// filename, or "" when absent.
func statementDate(filename string) string {
	m := attachmentDateRe.FindStringSubmatch(filename)
	if m == nil {
		return ""
	}
	return fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3])
}
