package email

import (
	"bytes"
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrdesk/internal/platform/config"
)

func TestNewReturnsNoopWhenDisabled(t *testing.T) {
	m := New(config.Config{EmailEnabled: false, SMTPHost: "smtp.example.com"})
	assert.False(t, m.Enabled())
	assert.NoError(t, m.Send(context.Background(), Message{To: "a@example.com"}))
}

func TestBuildMessagePlain(t *testing.T) {
	raw, err := buildMessage(Message{From: "hr@example.com", To: "a@example.com", Subject: "Hello", Body: "body text"})
	require.NoError(t, err)
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", msg.Header.Get("To"))
	body, err := io.ReadAll(msg.Body)
	require.NoError(t, err)
	assert.Equal(t, "body text", string(body))
}

func TestBuildMessageWithAttachment(t *testing.T) {
	pdf := bytes.Repeat([]byte("%PDF-1.3 data "), 20)
	raw, err := buildMessage(Message{
		From:        "hr@example.com",
		To:          "a@example.com",
		Subject:     "Your payslip",
		Body:        "Attached.",
		Attachments: []Attachment{{Filename: "PS-001.pdf", ContentType: "application/pdf", Data: pdf}},
	})
	require.NoError(t, err)

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/mixed", mediaType)

	reader := multipart.NewReader(msg.Body, params["boundary"])
	first, err := reader.NextPart()
	require.NoError(t, err)
	text, _ := io.ReadAll(first)
	assert.Equal(t, "Attached.", string(text))

	second, err := reader.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "PS-001.pdf", second.FileName())
	encoded, _ := io.ReadAll(second)
	for _, line := range strings.Split(strings.TrimSpace(string(encoded)), "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}
}
