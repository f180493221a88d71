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

package balance

import (
	"sync"
	"sync/atomic"
	"time"

	cqlhst "github.com/nabbar/cqldriver/hostinfo"
	cqltkn "github.com/nabbar/cqldriver/token"
	liberr "github.com/nabbar/golib/errors"
)

// LoadProbe reports the current in-flight request count of a host.
type LoadProbe func(h cqlhst.Host) int

// DefaultConfig tunes the default balancer.
type DefaultConfig struct {
	// LocalDc is required; Init fails with the detected datacenters
	// when empty or unknown.
	LocalDc string

	// LatencyThreshold penalizes hosts whose last recorded response
	// latency exceeds it. Zero disables the penalty.
	LatencyThreshold time.Duration

	// Probe supplies per-host load for the two-choice selection.
	// A nil probe degrades to plain rotation.
	Probe LoadProbe
}

// NewDefault combines local-datacenter filtering, token awareness and a
// power-of-two-choices least-busy pick among the local replicas,
// penalizing hosts above the latency threshold.
func NewDefault(cfg DefaultConfig) Balancer {
	return &defaultLbp{
		cfg:   cfg,
		inner: NewDCAware(cfg.LocalDc, 0),
	}
}

type defaultLbp struct {
	m sync.RWMutex
	c uint64

	cfg    DefaultConfig
	inner  Balancer
	oracle cqltkn.ReplicaOracle

	latency sync.Map // endpoint -> int64 nanoseconds
}

func (o *defaultLbp) Init(hosts []cqlhst.Host, oracle cqltkn.ReplicaOracle) liberr.Error {
	o.m.Lock()
	o.oracle = oracle
	o.m.Unlock()

	return o.inner.Init(hosts, oracle)
}

func (o *defaultLbp) Distance(h cqlhst.Host) cqlhst.Distance {
	return o.inner.Distance(h)
}

// ReportLatency records a response latency used by the penalty rule.
func (o *defaultLbp) ReportLatency(h cqlhst.Host, d time.Duration) {
	o.latency.Store(h.Endpoint(), int64(d))
}

func (o *defaultLbp) penalized(h cqlhst.Host) bool {
	if o.cfg.LatencyThreshold <= 0 {
		return false
	}

	v, ok := o.latency.Load(h.Endpoint())
	return ok && time.Duration(v.(int64)) > o.cfg.LatencyThreshold
}

func (o *defaultLbp) load(h cqlhst.Host) int {
	if o.cfg.Probe == nil {
		return 0
	}

	return o.cfg.Probe(h)
}

func (o *defaultLbp) NewQueryPlan(ri RoutingInfo) Plan {
	o.m.RLock()
	oracle := o.oracle
	o.m.RUnlock()

	if !ri.HasToken || oracle == nil {
		return o.inner.NewQueryPlan(ri)
	}

	replicas := oracle.Replicas(ri.Keyspace, ri.Token)

	usable := make([]cqlhst.Host, 0, len(replicas))
	for _, h := range replicas {
		if h.IsUp() && o.inner.Distance(h) == cqlhst.DistanceLocal {
			usable = append(usable, h)
		}
	}

	if len(usable) == 0 {
		return o.inner.NewQueryPlan(ri)
	}

	start := int(atomic.AddUint64(&o.c, 1) % uint64(len(usable)))

	ordered := make([]cqlhst.Host, 0, len(usable))
	for i := 0; i < len(usable); i++ {
		ordered = append(ordered, usable[(start+i)%len(usable)])
	}

	// two-choice pick: among the first two candidates, lead with the
	// least busy non-penalized one
	if len(ordered) >= 2 {
		a, b := ordered[0], ordered[1]

		swap := false
		switch {
		case o.penalized(a) && !o.penalized(b):
			swap = true
		case o.penalized(b) && !o.penalized(a):
			swap = false
		default:
			swap = o.load(b) < o.load(a)
		}

		if swap {
			ordered[0], ordered[1] = b, a
		}
	}

	return newChain(newSlicePlan(ordered), o.inner.NewQueryPlan(ri))
}

func (o *defaultLbp) OnHostEvent(ev cqlhst.Event) {
	o.inner.OnHostEvent(ev)

	if ev.Kind == cqlhst.EventHostRemove {
		o.latency.Delete(ev.Host.Endpoint())
	}
}
