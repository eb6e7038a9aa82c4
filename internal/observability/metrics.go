// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/keywarden/keywarden/internal/auth"
)

// Metrics contains the keywarden Prometheus metrics. It implements
// auth.MetricsRecorder.
type Metrics struct {
	RegistrationsTotal   *prometheus.CounterVec
	AuthAttemptsTotal    *prometheus.CounterVec
	UnregistrationsTotal *prometheus.CounterVec
	EnrollmentsTotal     *prometheus.CounterVec
	ConnectionsTotal     prometheus.Counter
}

// NewMetrics creates and registers the keywarden metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RegistrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keywarden_registrations_total",
				Help: "Total register operations by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		AuthAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keywarden_auth_attempts_total",
				Help: "Total authenticate operations by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		UnregistrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keywarden_unregistrations_total",
				Help: "Total unregister operations by outcome",
			},
			[]string{"outcome"},
		),
		EnrollmentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keywarden_enrollments_total",
				Help: "Total asynchronous enrollment completions by outcome",
			},
			[]string{"outcome"},
		),
		ConnectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "keywarden_connections_total",
				Help: "Total gate connections accepted",
			},
		),
	}

	reg.MustRegister(
		m.RegistrationsTotal,
		m.AuthAttemptsTotal,
		m.UnregistrationsTotal,
		m.EnrollmentsTotal,
		m.ConnectionsTotal,
	)
	return m
}

// ObserveRegister implements auth.MetricsRecorder.
func (m *Metrics) ObserveRegister(method string, outcome auth.Outcome) {
	m.RegistrationsTotal.WithLabelValues(method, outcome.String()).Inc()
}

// ObserveAuthenticate implements auth.MetricsRecorder.
func (m *Metrics) ObserveAuthenticate(method string, outcome auth.Outcome) {
	m.AuthAttemptsTotal.WithLabelValues(method, outcome.String()).Inc()
}

// ObserveUnregister implements auth.MetricsRecorder.
func (m *Metrics) ObserveUnregister(outcome auth.Outcome) {
	m.UnregistrationsTotal.WithLabelValues(outcome.String()).Inc()
}

// ObserveEnrollment implements auth.MetricsRecorder.
func (m *Metrics) ObserveEnrollment(outcome auth.Outcome) {
	m.EnrollmentsTotal.WithLabelValues(outcome.String()).Inc()
}
