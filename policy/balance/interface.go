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
	cqlhst "github.com/nabbar/cqldriver/hostinfo"
	cqltkn "github.com/nabbar/cqldriver/token"
	liberr "github.com/nabbar/golib/errors"
)

// RoutingInfo is the routing input extracted from one request.
type RoutingInfo struct {
	Keyspace string
	Token    cqltkn.Token
	HasToken bool
}

// Plan is a lazy, one-shot iterator of candidate coordinators.
// Iteration is single-threaded per request; replaying a request
// requires a fresh plan.
type Plan interface {
	Next() (cqlhst.Host, bool)
}

// Balancer orders candidate coordinators per request and classifies
// host distances for the pools.
type Balancer interface {
	// Init validates the configuration against the discovered hosts.
	// A policy requiring a local datacenter fails with the list of
	// detected datacenters when none or an unknown one is configured.
	Init(hosts []cqlhst.Host, oracle cqltkn.ReplicaOracle) liberr.Error

	// Distance classifies a host for the pool sizing policy.
	Distance(h cqlhst.Host) cqlhst.Distance

	// NewQueryPlan returns a fresh candidate iterator for one request.
	NewQueryPlan(ri RoutingInfo) Plan

	// OnHostEvent keeps the internal host view current.
	OnHostEvent(ev cqlhst.Event)
}

type sliceplan struct {
	hosts []cqlhst.Host
	pos   int
}

func newSlicePlan(hosts []cqlhst.Host) Plan {
	return &sliceplan{hosts: hosts}
}

func (o *sliceplan) Next() (cqlhst.Host, bool) {
	for o.pos < len(o.hosts) {
		h := o.hosts[o.pos]
		o.pos++

		if h != nil {
			return h, true
		}
	}

	return nil, false
}

// chain concatenates plans, deduplicating already-yielded endpoints.
type chain struct {
	plans []Plan
	seen  map[string]bool
}

func newChain(plans ...Plan) Plan {
	return &chain{plans: plans, seen: make(map[string]bool)}
}

func (o *chain) Next() (cqlhst.Host, bool) {
	for len(o.plans) > 0 {
		h, ok := o.plans[0].Next()
		if !ok {
			o.plans = o.plans[1:]
			continue
		}

		if o.seen[h.Endpoint()] {
			continue
		}

		o.seen[h.Endpoint()] = true
		return h, true
	}

	return nil, false
}

func datacenters(hosts []cqlhst.Host) []string {
	seen := make(map[string]bool)
	l := make([]string, 0, 4)

	for _, h := range hosts {
		if dc := h.Datacenter(); dc != "" && !seen[dc] {
			seen[dc] = true
			l = append(l, dc)
		}
	}

	return l
}
