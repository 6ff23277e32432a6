// Package di provides dependency injection factories for creating application components.
package di

import (
	"log/slog"

	"social_backend/internal/feature/auth/usecase"
	"social_backend/internal/platform/mailer"
)

// NewEmailSender returns an SMTP sender when SMTP_HOST is set.
// Otherwise, it falls back to a sender that only logs the message.
func NewEmailSender(cfg mailer.Config) usecase.EmailSender {
	if cfg.Enabled() {
		return mailer.NewSMTPSender(cfg)
	}
	slog.Warn("SMTP_HOST is not set. Emails will be logged instead of sent.")
	return mailer.LogSender{}
}
