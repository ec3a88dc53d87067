package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/davinaleong/project-pulse-auth/internal/infra/config"
)

// Provider holds the service-level Prometheus metrics.
type Provider struct {
	loginAttempts   *prometheus.CounterVec
	tokenRotations  *prometheus.CounterVec
	recoveryIssued  *prometheus.CounterVec
	publishFailures prometheus.Counter
}

// Attach registers the auth metrics and returns a provider handle.
func Attach(_ context.Context, cfg *config.AppConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	return &Provider{
		loginAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome",
		}, []string{"outcome"}),
		tokenRotations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "token_rotations_total",
			Help:      "Refresh token rotations by outcome",
		}, []string{"outcome"}),
		recoveryIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "recovery_requests_total",
			Help:      "Accepted recovery token requests by purpose",
		}, []string{"purpose"}),
		publishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "event_publish_failures_total",
			Help:      "Domain events the broker failed to accept",
		}),
	}, nil
}

// RecordLogin increments the login attempt counter for an outcome label such
// as "success", "invalid_credentials", or "locked".
func (p *Provider) RecordLogin(outcome string) {
	if p == nil {
		return
	}
	p.loginAttempts.WithLabelValues(outcome).Inc()
}

// RecordRotation increments the refresh rotation counter.
func (p *Provider) RecordRotation(outcome string) {
	if p == nil {
		return
	}
	p.tokenRotations.WithLabelValues(outcome).Inc()
}

// RecordRecoveryRequest increments the accepted recovery request counter for
// a purpose.
func (p *Provider) RecordRecoveryRequest(purpose string) {
	if p == nil {
		return
	}
	p.recoveryIssued.WithLabelValues(purpose).Inc()
}

// RecordPublishFailure increments the event delivery failure counter.
func (p *Provider) RecordPublishFailure() {
	if p == nil {
		return
	}
	p.publishFailures.Inc()
}
