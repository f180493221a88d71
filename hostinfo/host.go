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

package hostinfo

import (
	"sync"

	cqlptc "github.com/nabbar/cqldriver/protocol"
	libatm "github.com/nabbar/golib/atomic"
)

// State is the lifecycle state of a host as seen by the driver.
type State uint8

const (
	StateAdded State = iota
	StateUp
	StateDown
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateAdded:
		return "added"
	case StateUp:
		return "up"
	case StateDown:
		return "down"
	case StateRemoved:
		return "removed"
	}
	return "unknown"
}

// Distance is the load balancer's classification of a host.
type Distance uint8

const (
	DistanceLocal Distance = iota
	DistanceRemote
	DistanceIgnored
)

func (d Distance) String() string {
	switch d {
	case DistanceLocal:
		return "local"
	case DistanceRemote:
		return "remote"
	case DistanceIgnored:
		return "ignored"
	}
	return "unknown"
}

// Peer is the discovery tuple supplied by the topology reader.
// Tokens are consumed as opaque strings.
type Peer struct {
	Address          string
	Port             int
	Datacenter       string
	Rack             string
	Tokens           []string
	CassandraVersion string
}

// Host is one node of the cluster. State transitions are serialized by
// the owning registry so up and down fire at most once per change.
type Host interface {
	// Endpoint returns the translated "host:port" address.
	Endpoint() string

	// Datacenter returns the datacenter reported by the peers catalogue.
	Datacenter() string

	// Rack returns the rack reported by the peers catalogue.
	Rack() string

	// Tokens returns the opaque token strings owned by this host.
	Tokens() []string

	// CassandraVersion returns the server version string.
	CassandraVersion() string

	// State returns the current lifecycle state.
	State() State

	// IsUp reports whether the host currently accepts requests.
	IsUp() bool

	// ProtocolVersion returns the negotiated protocol version, zero
	// until a connection succeeded.
	ProtocolVersion() cqlptc.Version
}

type host struct {
	m sync.RWMutex

	endpoint string
	dc       string
	rack     string
	tokens   []string
	version  string
	state    libatm.Value[State]
	proto    libatm.Value[cqlptc.Version]
}

func newHost(endpoint string, p Peer) *host {
	h := &host{
		endpoint: endpoint,
		dc:       p.Datacenter,
		rack:     p.Rack,
		tokens:   p.Tokens,
		version:  p.CassandraVersion,
		state:    libatm.NewValue[State](),
		proto:    libatm.NewValue[cqlptc.Version](),
	}

	h.state.Store(StateAdded)
	return h
}

func (o *host) Endpoint() string {
	return o.endpoint
}

func (o *host) Datacenter() string {
	o.m.RLock()
	defer o.m.RUnlock()
	return o.dc
}

func (o *host) Rack() string {
	o.m.RLock()
	defer o.m.RUnlock()
	return o.rack
}

func (o *host) Tokens() []string {
	o.m.RLock()
	defer o.m.RUnlock()
	return o.tokens
}

func (o *host) CassandraVersion() string {
	o.m.RLock()
	defer o.m.RUnlock()
	return o.version
}

func (o *host) State() State {
	return o.state.Load()
}

func (o *host) IsUp() bool {
	return o.State() == StateUp
}

func (o *host) ProtocolVersion() cqlptc.Version {
	return o.proto.Load()
}

// setState transitions the host, reporting whether the state changed.
// The swap loop keeps up and down firing at most once per change and
// Removed terminal.
func (o *host) setState(s State) bool {
	for {
		cur := o.state.Load()

		if cur == s || cur == StateRemoved {
			return false
		}

		if o.state.CompareAndSwap(cur, s) {
			return true
		}
	}
}

func (o *host) setProtocol(pv cqlptc.Version) {
	o.proto.Store(pv)
}

func (o *host) update(p Peer) {
	o.m.Lock()
	defer o.m.Unlock()

	o.dc = p.Datacenter
	o.rack = p.Rack
	o.tokens = p.Tokens
	o.version = p.CassandraVersion
}
