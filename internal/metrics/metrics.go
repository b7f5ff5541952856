// Package metrics collects and exposes Prometheus metrics for the
// authentication core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records authentication outcomes. It satisfies
// auth.MetricsRecorder.
type Collector struct {
	logins     *prometheus.CounterVec
	lockouts   prometheus.Counter
	suspicious prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worknest_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "worknest_lockouts_total",
			Help: "Accounts locked after repeated failures.",
		}),
		suspicious: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "worknest_suspicious_logins_total",
			Help: "Logins flagged suspicious by the risk scorer.",
		}),
	}

	reg.MustRegister(c.logins, c.lockouts, c.suspicious)
	return c
}

// RecordLogin counts a login attempt by outcome.
func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

// RecordLockout counts a tripped account lock.
func (c *Collector) RecordLockout() {
	c.lockouts.Inc()
}

// RecordSuspicious counts a suspicious login flag.
func (c *Collector) RecordSuspicious() {
	c.suspicious.Inc()
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
