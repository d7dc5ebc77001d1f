/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package healthcheck

import "github.com/prometheus/client_golang/prometheus"

// metricsSink decouples the driver/transition logic from any particular
// instrumentation backend; PrometheusMetrics is the concrete implementation
// an embedder registers, noopMetrics the default when none is supplied.
type metricsSink interface {
	observeAttempt(s *Server)
	observeResult(s *Server, ok bool)
	observeTransition(s *Server, up bool)
}

type noopMetrics struct{}

func (noopMetrics) observeAttempt(*Server)          {}
func (noopMetrics) observeResult(*Server, bool)     {}
func (noopMetrics) observeTransition(*Server, bool) {}

// PrometheusMetrics registers the counters/gauges a load balancer's
// /metrics endpoint exposes for this package, in the same
// collector-per-concern shape the rest of this repository's prometheus
// integration uses.
type PrometheusMetrics struct {
	attempts     *prometheus.CounterVec
	failed       *prometheus.CounterVec
	upTrans      *prometheus.CounterVec
	downTrans    *prometheus.CounterVec
	health       *prometheus.GaugeVec
	stateRunning *prometheus.GaugeVec
}

// NewPrometheusMetrics builds and registers the collectors against reg. Pass
// prometheus.DefaultRegisterer to use the global registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "healthcheck",
			Name:      "attempts_total",
			Help:      "Number of probes initiated, by server.",
		}, []string{"server"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "healthcheck",
			Name:      "failed_checks_total",
			Help:      "Number of probes that resolved as a failure, by server.",
		}, []string{"server"}),
		upTrans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "healthcheck",
			Name:      "up_transitions_total",
			Help:      "Number of DOWN-to-UP transitions, by server.",
		}, []string{"server"}),
		downTrans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "healthcheck",
			Name:      "down_transitions_total",
			Help:      "Number of UP-to-DOWN transitions, by server.",
		}, []string{"server"}),
		health: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "healthcheck",
			Name:      "health",
			Help:      "Current hysteresis counter, by server.",
		}, []string{"server"}),
		stateRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "healthcheck",
			Name:      "up",
			Help:      "1 if the server is currently UP, 0 otherwise.",
		}, []string{"server"}),
	}

	reg.MustRegister(m.attempts, m.failed, m.upTrans, m.downTrans, m.health, m.stateRunning)
	return m
}

func (m *PrometheusMetrics) observeAttempt(s *Server) {
	m.attempts.WithLabelValues(s.ID).Inc()
}

func (m *PrometheusMetrics) observeResult(s *Server, ok bool) {
	m.health.WithLabelValues(s.ID).Set(float64(s.Health()))
	if !ok {
		m.failed.WithLabelValues(s.ID).Inc()
	}
}

func (m *PrometheusMetrics) observeTransition(s *Server, up bool) {
	running := 0.0
	if up {
		m.upTrans.WithLabelValues(s.ID).Inc()
		running = 1.0
	} else {
		m.downTrans.WithLabelValues(s.ID).Inc()
	}
	m.stateRunning.WithLabelValues(s.ID).Set(running)
}
