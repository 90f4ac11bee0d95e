/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics defines the Prometheus instrumentation surface for the
// JIT access engine (spec's ambient-stack expansion, C7): counters and
// histograms for activations, token issuance/verification, provisioning
// conflicts, and notification delivery.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the engine registers. A Metrics built by
// NewMetrics is safe to use even if the caller never exposes a /metrics
// endpoint; the Observe methods are no-ops on a nil *Metrics.
type Metrics struct {
	ActivationsTotal   *prometheus.CounterVec
	ActivationDuration *prometheus.HistogramVec

	TokensIssuedTotal   prometheus.Counter
	TokenVerifyTotal    *prometheus.CounterVec
	ProvisioningConflictsTotal prometheus.Counter

	NotificationsTotal *prometheus.CounterVec
}

// NewMetrics constructs and registers every collector against registerer.
// Pass prometheus.NewRegistry() in tests to avoid colliding with the
// default global registry across parallel test binaries.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActivationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jitaccess",
			Name:      "activations_total",
			Help:      "Total number of completed activations, by activation type and outcome.",
		}, []string{"type", "outcome"}),
		ActivationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "jitaccess",
			Name:      "activation_duration_seconds",
			Help:      "Time to process an activation or approval call, by activation type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		TokensIssuedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jitaccess",
			Name:      "tokens_issued_total",
			Help:      "Total number of MPA activation tokens signed.",
		}),
		TokenVerifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jitaccess",
			Name:      "token_verify_total",
			Help:      "Total number of token verification attempts, by outcome.",
		}, []string{"outcome"}),
		ProvisioningConflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jitaccess",
			Name:      "provisioning_conflicts_total",
			Help:      "Total number of IAM policy writes that exhausted their etag-retry budget.",
		}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jitaccess",
			Name:      "notifications_total",
			Help:      "Total number of notification delivery attempts, by transport and outcome.",
		}, []string{"transport", "outcome"}),
	}

	registerer.MustRegister(
		m.ActivationsTotal,
		m.ActivationDuration,
		m.TokensIssuedTotal,
		m.TokenVerifyTotal,
		m.ProvisioningConflictsTotal,
		m.NotificationsTotal,
	)
	return m
}

// ObserveActivation records the outcome of an activate/approve call.
func (m *Metrics) ObserveActivation(activationType, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ActivationsTotal.WithLabelValues(activationType, outcome).Inc()
	m.ActivationDuration.WithLabelValues(activationType).Observe(elapsed.Seconds())
}

// ObserveTokenIssued records a successful signToken call.
func (m *Metrics) ObserveTokenIssued() {
	if m == nil {
		return
	}
	m.TokensIssuedTotal.Inc()
}

// ObserveTokenVerify records a verifyToken call's outcome ("ok" or an
// accessmodel.ErrorKind string such as "token_invalid").
func (m *Metrics) ObserveTokenVerify(outcome string) {
	if m == nil {
		return
	}
	m.TokenVerifyTotal.WithLabelValues(outcome).Inc()
}

// ObserveProvisioningConflict records an exhausted etag-retry budget.
func (m *Metrics) ObserveProvisioningConflict() {
	if m == nil {
		return
	}
	m.ProvisioningConflictsTotal.Inc()
}

// ObserveNotification records a single transport's delivery attempt.
func (m *Metrics) ObserveNotification(transport, outcome string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(transport, outcome).Inc()
}
