package mailer

import "context"

// Email is a single outbound message. TextBody is required, HTMLBody is
// optional and sent as a multipart/alternative part when present.
type Email struct {
	FromName string
	From     string
	To       []string
	Subject  string
	TextBody string
	HTMLBody string
}

// Service sends notification emails.
type Service interface {
	Send(ctx context.Context, email Email) error
}

// Config holds SMTP connection settings.
type Config struct {
	Host          string
	Port          int
	Username      string
	Password      string
	TLSMode       string // "starttls", "tls" or "none"
	SkipVerifyTLS bool
}
