// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

package auth

// MetricsRecorder receives engine operation outcomes for observability.
// The prometheus-backed implementation lives in internal/observability.
type MetricsRecorder interface {
	ObserveRegister(method string, outcome Outcome)
	ObserveAuthenticate(method string, outcome Outcome)
	ObserveUnregister(outcome Outcome)
	ObserveEnrollment(outcome Outcome)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

// ObserveRegister implements MetricsRecorder.
func (NopMetrics) ObserveRegister(string, Outcome) {}

// ObserveAuthenticate implements MetricsRecorder.
func (NopMetrics) ObserveAuthenticate(string, Outcome) {}

// ObserveUnregister implements MetricsRecorder.
func (NopMetrics) ObserveUnregister(Outcome) {}

// ObserveEnrollment implements MetricsRecorder.
func (NopMetrics) ObserveEnrollment(Outcome) {}
