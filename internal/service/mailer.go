package service

import (
	"context"

	"github.com/rs/zerolog"
)

// Mailer delivers password-reset codes. Actual email delivery is an external
// collaborator; deployments plug in their own implementation.
type Mailer interface {
	SendResetOTP(ctx context.Context, email, otp string) error
}

// LogMailer is the development Mailer: it logs instead of sending.
type LogMailer struct {
	log zerolog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(log zerolog.Logger) *LogMailer {
	return &LogMailer{log: log.With().Str("component", "mailer").Logger()}
}

func (m *LogMailer) SendResetOTP(ctx context.Context, email, otp string) error {
	m.log.Info().Str("email", email).Str("otp", otp).Msg("Password reset OTP (dev delivery)")
	return nil
}
