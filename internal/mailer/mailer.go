// Package mailer provides the single-recipient send capability the
// dispatcher depends on, with an SES-backed production implementation and
// an optional Redis-backed rate limiter for pacing.
package mailer

import (
	"context"
	"log"

	"github.com/eventpulse/engage/internal/pkg/logger"
)

// Sender delivers one email. Ordinary delivery failures are reported as
// ok=false with a nil error; callers treat a returned error the same as a
// false result plus a logged error.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) (bool, error)
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, to, subject, htmlBody string) (bool, error)

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, to, subject, htmlBody string) (bool, error) {
	return f(ctx, to, subject, htmlBody)
}

// LogSender returns a Sender that only logs. Used in local development
// when no delivery credentials are configured.
func LogSender() Sender {
	return SenderFunc(func(ctx context.Context, to, subject, htmlBody string) (bool, error) {
		log.Printf("[Mailer] (dry run) to=%s subject=%q", logger.RedactEmail(to), subject)
		return true, nil
	})
}
