package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ordexa/catalog-iam/internal/infra/config"
)

// Provider represents a telemetry provider handle.
type Provider struct {
	loginOutcomes *prometheus.CounterVec
	lockouts      prometheus.Counter
}

// Attach configures telemetry exporters and returns a provider handle.
// HTTP request metrics are owned by the transport middleware; this provider
// covers the authentication counters the usecases record directly.
func Attach(_ context.Context, cfg *config.AppConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	loginOutcomes := promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog_iam",
		Name:      "login_outcomes_total",
		Help:      "Login attempts partitioned by outcome",
	}, []string{"outcome"})

	lockouts := promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "catalog_iam",
		Name:      "account_lockouts_total",
		Help:      "Number of accounts locked after repeated failures",
	})

	return &Provider{
		loginOutcomes: loginOutcomes,
		lockouts:      lockouts,
	}, nil
}

// RecordLoginOutcome increments the login outcome counter.
func (p *Provider) RecordLoginOutcome(outcome string) {
	if p == nil || p.loginOutcomes == nil {
		return
	}
	p.loginOutcomes.WithLabelValues(outcome).Inc()
}

// RecordLockout increments the lockout counter.
func (p *Provider) RecordLockout() {
	if p == nil || p.lockouts == nil {
		return
	}
	p.lockouts.Inc()
}
