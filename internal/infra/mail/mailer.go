package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/davinaleong/project-pulse-auth/internal/core/port"
	"github.com/davinaleong/project-pulse-auth/internal/infra/logger"
)

// LoggingMailer records outbound recovery mail as structured log entries
// instead of contacting an SMTP relay. Delivery integration lives outside
// this service; the notification consumer reads the published events.
type LoggingMailer struct {
	logger *zap.Logger
}

// NewLoggingMailer constructs a log-only mailer.
func NewLoggingMailer(log *zap.Logger) *LoggingMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoggingMailer{logger: log}
}

// SendPasswordReset logs a password reset delivery. The token itself is
// masked; the holder receives it out of band.
func (m *LoggingMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.logger.Info("Password reset mail queued",
		zap.String("email", logger.MaskEmail(email)),
		zap.String("token", logger.MaskToken(token)),
	)
	return nil
}

// SendEmailVerification logs a verification mail delivery.
func (m *LoggingMailer) SendEmailVerification(_ context.Context, email, token string) error {
	m.logger.Info("Email verification mail queued",
		zap.String("email", logger.MaskEmail(email)),
		zap.String("token", logger.MaskToken(token)),
	)
	return nil
}

var _ port.Mailer = (*LoggingMailer)(nil)
