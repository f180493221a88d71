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
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	cqlhst "github.com/nabbar/cqldriver/hostinfo"
	cqltkn "github.com/nabbar/cqldriver/token"
	liberr "github.com/nabbar/golib/errors"
)

// NewDCAware returns a balancer preferring localDc hosts, then up to
// usedHostsPerRemoteDc hosts of each remote datacenter at remote
// distance.
func NewDCAware(localDc string, usedHostsPerRemoteDc int) Balancer {
	return &dcAware{
		local:     localDc,
		perRemote: usedHostsPerRemoteDc,
	}
}

type dcAware struct {
	m sync.RWMutex
	c uint64

	local     string
	perRemote int
	hosts     []cqlhst.Host
}

func (o *dcAware) Init(hosts []cqlhst.Host, _ cqltkn.ReplicaOracle) liberr.Error {
	if o.local == "" {
		return ErrorMissingDataCenter.Error(fmt.Errorf("detected datacenters: %s", strings.Join(datacenters(hosts), ", ")))
	}

	known := false
	for _, dc := range datacenters(hosts) {
		if dc == o.local {
			known = true
			break
		}
	}

	if !known && len(hosts) > 0 {
		return ErrorUnknownDataCenter.Error(fmt.Errorf("detected datacenters: %s", strings.Join(datacenters(hosts), ", ")))
	}

	o.m.Lock()
	defer o.m.Unlock()

	o.hosts = append([]cqlhst.Host(nil), hosts...)
	return nil
}

func (o *dcAware) Distance(h cqlhst.Host) cqlhst.Distance {
	if h.Datacenter() == o.local {
		return cqlhst.DistanceLocal
	}

	if o.perRemote > 0 {
		return cqlhst.DistanceRemote
	}

	return cqlhst.DistanceIgnored
}

func (o *dcAware) NewQueryPlan(_ RoutingInfo) Plan {
	o.m.RLock()
	hosts := o.hosts
	o.m.RUnlock()

	var (
		local  []cqlhst.Host
		remote []cqlhst.Host
	)

	perDc := make(map[string]int)

	for _, h := range hosts {
		if !h.IsUp() {
			continue
		}

		if h.Datacenter() == o.local {
			local = append(local, h)
			continue
		}

		if perDc[h.Datacenter()] < o.perRemote {
			perDc[h.Datacenter()]++
			remote = append(remote, h)
		}
	}

	if len(local) > 0 {
		start := int(atomic.AddUint64(&o.c, 1) % uint64(len(local)))

		ordered := make([]cqlhst.Host, 0, len(local))
		for i := 0; i < len(local); i++ {
			ordered = append(ordered, local[(start+i)%len(local)])
		}
		local = ordered
	}

	return newChain(newSlicePlan(local), newSlicePlan(remote))
}

func (o *dcAware) OnHostEvent(ev cqlhst.Event) {
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
