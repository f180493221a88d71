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

	cqlhst "github.com/nabbar/cqldriver/hostinfo"
	cqltkn "github.com/nabbar/cqldriver/token"
	liberr "github.com/nabbar/golib/errors"
)

// NewTokenAware wraps a child balancer. When a request carries a
// routing token, the replica oracle's local replicas are emitted first
// in a rotated, fairness-preserving order, then the child plan follows
// as fallback; otherwise the child plan is used alone.
func NewTokenAware(child Balancer) Balancer {
	return &tokenAware{child: child}
}

type tokenAware struct {
	m sync.RWMutex
	c uint64

	child  Balancer
	oracle cqltkn.ReplicaOracle
}

func (o *tokenAware) Init(hosts []cqlhst.Host, oracle cqltkn.ReplicaOracle) liberr.Error {
	if o.child == nil {
		return ErrorParamEmpty.Error(nil)
	}

	o.m.Lock()
	o.oracle = oracle
	o.m.Unlock()

	return o.child.Init(hosts, oracle)
}

func (o *tokenAware) Distance(h cqlhst.Host) cqlhst.Distance {
	return o.child.Distance(h)
}

func (o *tokenAware) NewQueryPlan(ri RoutingInfo) Plan {
	o.m.RLock()
	oracle := o.oracle
	o.m.RUnlock()

	if !ri.HasToken || oracle == nil {
		return o.child.NewQueryPlan(ri)
	}

	replicas := oracle.Replicas(ri.Keyspace, ri.Token)

	usable := make([]cqlhst.Host, 0, len(replicas))
	for _, h := range replicas {
		if h.IsUp() && o.child.Distance(h) == cqlhst.DistanceLocal {
			usable = append(usable, h)
		}
	}

	if len(usable) == 0 {
		return o.child.NewQueryPlan(ri)
	}

	// rotate the replica order so the load spreads evenly while the
	// replica set itself is preserved
	start := int(atomic.AddUint64(&o.c, 1) % uint64(len(usable)))

	ordered := make([]cqlhst.Host, 0, len(usable))
	for i := 0; i < len(usable); i++ {
		ordered = append(ordered, usable[(start+i)%len(usable)])
	}

	return newChain(newSlicePlan(ordered), o.child.NewQueryPlan(ri))
}

func (o *tokenAware) OnHostEvent(ev cqlhst.Event) {
	o.child.OnHostEvent(ev)
}
