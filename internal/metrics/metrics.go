package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTP
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"method", "path"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests in flight",
		},
	)

	// Provisioning panel
	ProvisioningRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provisioning_requests_total",
			Help: "Total number of provisioning panel requests",
		},
		[]string{"operation", "status"},
	)
	ProvisioningRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "provisioning_request_duration_seconds",
			Help: "Duration of provisioning panel requests in seconds",
		},
		[]string{"operation"},
	)
	ProvisioningBreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "provisioning_breaker_state",
			Help: "Provisioning circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
	)

	// Entitlement lifecycle
	EntitlementTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_transitions_total",
			Help: "Entitlement state machine transitions by operation and result",
		},
		[]string{"operation", "result"},
	)
	SweepAffectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_sweep_affected_total",
			Help: "Entitlements moved by the expiry sweeper",
		},
		[]string{"phase"},
	)
	AutoRenewAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auto_renew_attempts_total",
			Help: "Recorded auto-renewal attempts by result",
		},
		[]string{"result"},
	)
	OverrideRestoresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "limit_override_restores_total",
			Help: "Device limit override restorations by result",
		},
		[]string{"result"},
	)

	// Promo codes
	PromoRedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promo_redemptions_total",
			Help: "Promo code redemption attempts by result",
		},
		[]string{"result"},
	)
)

var initOnce sync.Once

func InitMetrics() {
	initOnce.Do(func() {
		// HTTP
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
		prometheus.MustRegister(HTTPRequestsInFlight)

		// Provisioning
		prometheus.MustRegister(ProvisioningRequestsTotal)
		prometheus.MustRegister(ProvisioningRequestDuration)
		prometheus.MustRegister(ProvisioningBreakerState)

		// Domain
		prometheus.MustRegister(EntitlementTransitionsTotal)
		prometheus.MustRegister(SweepAffectedTotal)
		prometheus.MustRegister(AutoRenewAttemptsTotal)
		prometheus.MustRegister(OverrideRestoresTotal)
		prometheus.MustRegister(PromoRedemptionsTotal)
	})
}

// Result turns an error into the label used by the result dimensions.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
