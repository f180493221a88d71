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

// NewRoundRobin returns a balancer cycling over all up, non-ignored
// hosts, every host at local distance.
func NewRoundRobin() Balancer {
	return &roundRobin{}
}

type roundRobin struct {
	m sync.RWMutex
	c uint64

	hosts []cqlhst.Host
}

func (o *roundRobin) Init(hosts []cqlhst.Host, _ cqltkn.ReplicaOracle) liberr.Error {
	o.m.Lock()
	defer o.m.Unlock()

	o.hosts = append([]cqlhst.Host(nil), hosts...)
	return nil
}

func (o *roundRobin) Distance(_ cqlhst.Host) cqlhst.Distance {
	return cqlhst.DistanceLocal
}

func (o *roundRobin) NewQueryPlan(_ RoutingInfo) Plan {
	o.m.RLock()
	hosts := o.hosts
	o.m.RUnlock()

	up := make([]cqlhst.Host, 0, len(hosts))
	for _, h := range hosts {
		if h.IsUp() {
			up = append(up, h)
		}
	}

	if len(up) == 0 {
		return newSlicePlan(nil)
	}

	start := int(atomic.AddUint64(&o.c, 1) % uint64(len(up)))

	ordered := make([]cqlhst.Host, 0, len(up))
	for i := 0; i < len(up); i++ {
		ordered = append(ordered, up[(start+i)%len(up)])
	}

	return newSlicePlan(ordered)
}

func (o *roundRobin) OnHostEvent(ev cqlhst.Event) {
	o.m.Lock()
	defer o.m.Unlock()

	switch ev.Kind {
	case cqlhst.EventHostAdd:
		for _, h := range o.hosts {
			if h.Endpoint() == ev.Host.Endpoint() {
				return
			}
		}
		o.hosts = append(o.hosts, ev.Host)

	case cqlhst.EventHostRemove:
		keep := o.hosts[:0]
		for _, h := range o.hosts {
			if h.Endpoint() != ev.Host.Endpoint() {
				keep = append(keep, h)
			}
		}
		o.hosts = keep
	}
}
