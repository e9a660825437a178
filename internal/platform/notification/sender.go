package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/resend/resend-go/v3"
	"github.com/rs/zerolog"
)

// ResendSender delivers plain text e-mail through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
	logger zerolog.Logger
}

func NewResendSender(apiKey, from string, logger zerolog.Logger) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey), from: from, logger: logger}
}

func (s *ResendSender) SendEmail(ctx context.Context, to, subject, body string) error {
	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	s.logger.Info().Str("to", to).Str("resend_id", sent.Id).Msg("email sent via resend")
	return nil
}

// LogSender writes e-mails to the log instead of delivering them. Used when
// no Resend API key is configured.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.logger.Info().
		Str("to", to).
		Str("subject", subject).
		Str("body", body).
		Msg("email not delivered (no RESEND_API_KEY), logged instead")
	return nil
}

// NewEmailSender returns a ResendSender, or a LogSender when apiKey is empty.
func NewEmailSender(apiKey, from string, logger zerolog.Logger) EmailSender {
	if apiKey == "" {
		logger.Warn().Msg("RESEND_API_KEY is not set, e-mails will only be logged")
		return NewLogSender(logger)
	}
	return NewResendSender(apiKey, from, logger)
}

// EmailCall records a single call to SendEmail.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender is a test double for EmailSender.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
	FailError  string
}

// SendEmail records the call and optionally returns an error.
func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded email calls.
func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Reset forgets recorded calls.
func (m *MockEmailSender) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
