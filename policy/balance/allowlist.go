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

// NewAllowList wraps a child balancer and filters every plan and
// distance decision by an explicit endpoint allow list.
func NewAllowList(child Balancer, endpoints []string) Balancer {
	allowed := make(map[string]bool, len(endpoints))
	for _, ep := range endpoints {
		allowed[ep] = true
	}

	return &allowList{child: child, allowed: allowed}
}

type allowList struct {
	child   Balancer
	allowed map[string]bool
}

func (o *allowList) Init(hosts []cqlhst.Host, oracle cqltkn.ReplicaOracle) liberr.Error {
	if o.child == nil {
		return ErrorParamEmpty.Error(nil)
	}

	kept := make([]cqlhst.Host, 0, len(hosts))
	for _, h := range hosts {
		if o.allowed[h.Endpoint()] {
			kept = append(kept, h)
		}
	}

	return o.child.Init(kept, oracle)
}

func (o *allowList) Distance(h cqlhst.Host) cqlhst.Distance {
	if !o.allowed[h.Endpoint()] {
		return cqlhst.DistanceIgnored
	}

	return o.child.Distance(h)
}

func (o *allowList) NewQueryPlan(ri RoutingInfo) Plan {
	return &filterPlan{child: o.child.NewQueryPlan(ri), allowed: o.allowed}
}

func (o *allowList) OnHostEvent(ev cqlhst.Event) {
	if o.allowed[ev.Host.Endpoint()] {
		o.child.OnHostEvent(ev)
	}
}

type filterPlan struct {
	child   Plan
	allowed map[string]bool
}

func (o *filterPlan) Next() (cqlhst.Host, bool) {
	for {
		h, ok := o.child.Next()
		if !ok {
			return nil, false
		}

		if o.allowed[h.Endpoint()] {
			return h, true
		}
	}
}
