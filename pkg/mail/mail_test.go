package mail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
)

func TestStatementDate(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{filename: "Powiadomienie e-mail z 2024-01-15.htm", want: "2024-01-15"},
		{filename: "Powiadomienie e-mail z mBanku 2024-01-15 (1).htm", want: "2024-01-15"},
		{filename: "statement.htm", want: ""},
		{filename: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, statementDate(tt.filename))
		})
	}
}

func TestFindAttachment(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gmail.MessagePart{
			{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: "aGk"}},
			{
				MimeType: "multipart/alternative",
				Parts: []*gmail.MessagePart{
					{
						Filename: "Powiadomienie e-mail z 2024-01-15.htm",
						MimeType: "text/html",
						Body:     &gmail.MessagePartBody{AttachmentId: "att-1"},
					},
				},
			},
		},
	}

	part := findAttachment(payload)
	require.NotNil(t, part)
	assert.Equal(t, "att-1", part.Body.AttachmentId)
}

func TestFindAttachmentFallsBackToHtmExtension(t *testing.T) {
	payload := &gmail.MessagePart{
		Parts: []*gmail.MessagePart{
			{Filename: "daily_2024-01-15.HTM", Body: &gmail.MessagePartBody{AttachmentId: "att-2"}},
		},
	}

	part := findAttachment(payload)
	require.NotNil(t, part)
	assert.Equal(t, "att-2", part.Body.AttachmentId)
}

func TestFindAttachmentNone(t *testing.T) {
	payload := &gmail.MessagePart{
		Parts: []*gmail.MessagePart{
			{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: "aGk"}},
		},
	}
	assert.Nil(t, findAttachment(payload))
}
