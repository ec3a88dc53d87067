package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/davinaleong/project-pulse-auth/internal/core/domain"
	"github.com/davinaleong/project-pulse-auth/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for
// development environments where no broker is running.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, accountID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("account_id", accountID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishAccountRegistered logs auth.account.registered events.
func (p *StubPublisher) PublishAccountRegistered(_ context.Context, event domain.AccountRegisteredEvent) error {
	payload := map[string]any{
		"account_id":    event.AccountID,
		"email":         event.Email,
		"status":        event.Status,
		"registered_at": event.RegisteredAt,
	}
	p.logEvent("auth.account.registered", event.AccountID, event.RegisteredAt, payload)
	return nil
}

// PublishPasswordResetRequested logs auth.password.reset_requested events.
func (p *StubPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := map[string]any{
		"account_id":         event.AccountID,
		"requested_at":       event.RequestedAt,
		"masked_destination": event.MaskedDestination,
		"expires_at":         event.ExpiresAt,
		"ip_address":         event.IPAddress,
	}
	p.logEvent("auth.password.reset_requested", event.AccountID, event.RequestedAt, payload)
	return nil
}

// PublishPasswordChanged logs auth.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	payload := map[string]any{
		"account_id":       event.AccountID,
		"changed_at":       event.ChangedAt,
		"sessions_revoked": event.SessionsRevoked,
	}
	p.logEvent("auth.password.changed", event.AccountID, event.ChangedAt, payload)
	return nil
}

// PublishEmailVerified logs auth.email.verified events.
func (p *StubPublisher) PublishEmailVerified(_ context.Context, event domain.EmailVerifiedEvent) error {
	payload := map[string]any{
		"account_id":  event.AccountID,
		"email":       event.Email,
		"verified_at": event.VerifiedAt,
	}
	p.logEvent("auth.email.verified", event.AccountID, event.VerifiedAt, payload)
	return nil
}

// PublishSessionRevoked logs auth.session.revoked events.
func (p *StubPublisher) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	payload := map[string]any{
		"session_id": event.SessionID,
		"account_id": event.AccountID,
		"revoked_at": event.RevokedAt,
		"reason":     event.Reason,
	}
	p.logEvent("auth.session.revoked", event.AccountID, event.RevokedAt, payload)
	return nil
}

// PublishAccountStatusChanged logs auth.account.status_changed events.
func (p *StubPublisher) PublishAccountStatusChanged(_ context.Context, event domain.AccountStatusChangedEvent) error {
	payload := map[string]any{
		"account_id":       event.AccountID,
		"changed_by":       event.ChangedBy,
		"old_status":       event.OldStatus,
		"new_status":       event.NewStatus,
		"changed_at":       event.ChangedAt,
		"sessions_revoked": event.SessionsRevoked,
	}
	p.logEvent("auth.account.status_changed", event.AccountID, event.ChangedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
