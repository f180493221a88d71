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

package prometheus

import (
	"time"

	cqlhst "github.com/nabbar/cqldriver/hostinfo"
	cqltrk "github.com/nabbar/cqldriver/tracker"
	prmsdk "github.com/prometheus/client_golang/prometheus"
)

// New returns a tracker exposing request metrics through the given
// prometheus registerer.
func New(reg prmsdk.Registerer) cqltrk.Tracker {
	t := &tracker{
		latency: prmsdk.NewHistogramVec(prmsdk.HistogramOpts{
			Namespace: "cql",
			Subsystem: "driver",
			Name:      "request_duration_seconds",
			Help:      "Latency of terminal request outcomes per coordinator.",
			Buckets:   prmsdk.DefBuckets,
		}, []string{"endpoint", "outcome"}),

		bytes: prmsdk.NewCounterVec(prmsdk.CounterOpts{
			Namespace: "cql",
			Subsystem: "driver",
			Name:      "request_bytes_total",
			Help:      "Bytes written and read per coordinator.",
		}, []string{"endpoint", "direction"}),

		errors: prmsdk.NewCounterVec(prmsdk.CounterOpts{
			Namespace: "cql",
			Subsystem: "driver",
			Name:      "request_errors_total",
			Help:      "Terminal request errors per coordinator.",
		}, []string{"endpoint"}),
	}

	if reg != nil {
		reg.MustRegister(t.latency, t.bytes, t.errors)
	}

	return t
}

type tracker struct {
	latency *prmsdk.HistogramVec
	bytes   *prmsdk.CounterVec
	errors  *prmsdk.CounterVec
}

func (o *tracker) OnSuccess(h cqlhst.Host, _ string, requestLen, responseLen int, latency time.Duration) {
	ep := h.Endpoint()

	o.latency.WithLabelValues(ep, "success").Observe(latency.Seconds())
	o.bytes.WithLabelValues(ep, "write").Add(float64(requestLen))
	o.bytes.WithLabelValues(ep, "read").Add(float64(responseLen))
}

func (o *tracker) OnError(h cqlhst.Host, _ string, requestLen int, _ error, latency time.Duration) {
	ep := h.Endpoint()

	o.latency.WithLabelValues(ep, "error").Observe(latency.Seconds())
	o.bytes.WithLabelValues(ep, "write").Add(float64(requestLen))
	o.errors.WithLabelValues(ep).Inc()
}

func (o *tracker) Shutdown() {}
