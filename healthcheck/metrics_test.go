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

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func gaugeOrCounterValue(c prometheus.Collector, server string) (float64, bool) {
	ch := make(chan prometheus.Metric, 8)
	c.Collect(ch)
	close(ch)
	for m := range ch {
		var pb dto.Metric
		Expect(m.Write(&pb)).To(Succeed())
		for _, l := range pb.GetLabel() {
			if l.GetName() != "server" || l.GetValue() != server {
				continue
			}
			if pb.Counter != nil {
				return pb.Counter.GetValue(), true
			}
			if pb.Gauge != nil {
				return pb.Gauge.GetValue(), true
			}
		}
	}
	return 0, false
}

var _ = Describe("noopMetrics", func() {
	It("implements metricsSink as a pure no-op", func() {
		var m noopMetrics
		s := newTestServer(NewProxy("px", 0), 2, 3)
		Expect(func() {
			m.observeAttempt(s)
			m.observeResult(s, true)
			m.observeTransition(s, false)
		}).ToNot(Panic())
	})
})

var _ = Describe("PrometheusMetrics", func() {
	It("registers every collector against a fresh registry without panicking", func() {
		reg := prometheus.NewRegistry()
		Expect(func() { NewPrometheusMetrics(reg) }).ToNot(Panic())
	})

	It("tracks attempts, failures, and transitions per server", func() {
		reg := prometheus.NewRegistry()
		m := NewPrometheusMetrics(reg)
		s := newTestServer(NewProxy("px", 0), 2, 3)

		m.observeAttempt(s)
		m.observeAttempt(s)
		v, ok := gaugeOrCounterValue(m.attempts, s.ID)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(2.0))

		s.setHealthRaw(1)
		m.observeResult(s, false)
		fv, ok := gaugeOrCounterValue(m.failed, s.ID)
		Expect(ok).To(BeTrue())
		Expect(fv).To(Equal(1.0))
		hv, ok := gaugeOrCounterValue(m.health, s.ID)
		Expect(ok).To(BeTrue())
		Expect(hv).To(Equal(1.0))

		m.observeTransition(s, true)
		uv, ok := gaugeOrCounterValue(m.upTrans, s.ID)
		Expect(ok).To(BeTrue())
		Expect(uv).To(Equal(1.0))
		running, ok := gaugeOrCounterValue(m.stateRunning, s.ID)
		Expect(ok).To(BeTrue())
		Expect(running).To(Equal(1.0))

		m.observeTransition(s, false)
		dv, ok := gaugeOrCounterValue(m.downTrans, s.ID)
		Expect(ok).To(BeTrue())
		Expect(dv).To(Equal(1.0))
		running, ok = gaugeOrCounterValue(m.stateRunning, s.ID)
		Expect(ok).To(BeTrue())
		Expect(running).To(Equal(0.0))
	})
})
