// Package email delivers account notices to employees. Local runs log
// instead of sending, so dev machines never need API credentials.
package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

const subjectPrefix = "[Rosterly] "

type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// logSender writes the notice to the log — used in ENV=local.
type logSender struct {
	logger *slog.Logger
}

func (s *logSender) Send(_ context.Context, to, subject, body string) error {
	s.logger.Info("notice email (local dev)", "to", to, "subject", subjectPrefix+subject, "body", body)
	return nil
}

// resendSender delivers through the Resend API — used in staging/production.
type resendSender struct {
	client *resend.Client
	from   string
}

func (s *resendSender) Send(ctx context.Context, to, subject, body string) error {
	_, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subjectPrefix + subject,
		Text:    body,
	})
	if err != nil {
		return fmt.Errorf("send notice to %s: %w", to, err)
	}
	return nil
}

// NewSender picks the delivery backend by environment.
func NewSender(env, apiKey, from string, logger *slog.Logger) Sender {
	if env == "local" {
		return &logSender{logger: logger.With("component", "email")}
	}
	return &resendSender{client: resend.NewClient(apiKey), from: from}
}
