package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMIMEMessagePlainText(t *testing.T) {
	msg, err := buildMIMEMessage(Email{
		From:     "noreply@shop.example",
		To:       []string{"a@example.com", "b@example.com"},
		Subject:  "Order update",
		TextBody: "line one\nline two\n",
	})
	require.NoError(t, err)

	s := string(msg)
	assert.Contains(t, s, "From: noreply@shop.example\r\n")
	assert.Contains(t, s, "To: a@example.com, b@example.com\r\n")
	assert.Contains(t, s, "Subject: Order update\r\n")
	assert.Contains(t, s, "Content-Type: text/plain; charset=utf-8\r\n")
	assert.Contains(t, s, "line one\r\nline two\r\n")
	assert.NotContains(t, s, "multipart")
}

func TestBuildMIMEMessageMultipart(t *testing.T) {
	msg, err := buildMIMEMessage(Email{
		FromName: "Shop Payments",
		From:     "noreply@shop.example",
		To:       []string{"ops@shop.example"},
		Subject:  "Alert",
		TextBody: "plain",
		HTMLBody: "<p>rich</p>",
	})
	require.NoError(t, err)

	s := string(msg)
	assert.Contains(t, s, "From: Shop Payments <noreply@shop.example>\r\n")
	assert.Contains(t, s, "Content-Type: multipart/alternative; boundary=")
	assert.Contains(t, s, "text/plain; charset=utf-8")
	assert.Contains(t, s, "text/html; charset=utf-8")
	assert.Contains(t, s, "plain")
	assert.Contains(t, s, "<p>rich</p>")
	assert.Contains(t, s, "@shop.example>")
}

func TestNormalizeCRLF(t *testing.T) {
	assert.Equal(t, "a\r\nb\r\n", normalizeCRLF("a\nb\n"))
	assert.Equal(t, "a\r\nb", normalizeCRLF("a\r\nb"))
}
