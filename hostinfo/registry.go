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
	"net"
	"strconv"
	"sync"

	cqlptc "github.com/nabbar/cqldriver/protocol"
	liberr "github.com/nabbar/golib/errors"
)

// EventKind discriminates registry notifications.
type EventKind uint8

const (
	EventHostAdd EventKind = iota
	EventHostRemove
	EventHostUp
	EventHostDown
)

func (k EventKind) String() string {
	switch k {
	case EventHostAdd:
		return "hostAdd"
	case EventHostRemove:
		return "hostRemove"
	case EventHostUp:
		return "hostUp"
	case EventHostDown:
		return "hostDown"
	}
	return "unknown"
}

// Event is one host lifecycle notification.
type Event struct {
	Kind EventKind
	Host Host
}

// Listener receives registry events, serialized in arrival order.
type Listener func(ev Event)

// Registry is the process-wide map of endpoint to Host. Mutations are
// serialized; readers observe consistent copy-on-write snapshots.
type Registry interface {
	// Add registers a discovered peer, returning the existing Host when
	// the endpoint is already known (its catalogue data is refreshed).
	Add(p Peer) Host

	// Remove marks the host Removed and drops it from the snapshot.
	Remove(endpoint string) liberr.Error

	// Host returns the host registered for the given endpoint.
	Host(endpoint string) (Host, bool)

	// Hosts returns a snapshot of all registered hosts.
	Hosts() []Host

	// UpHosts returns a snapshot of hosts currently Up.
	UpHosts() []Host

	// MarkUp transitions the host to Up, emitting hostUp at most once
	// per change.
	MarkUp(endpoint string) liberr.Error

	// MarkDown transitions the host to Down, emitting hostDown at most
	// once per change.
	MarkDown(endpoint string) liberr.Error

	// SetProtocol records the protocol version agreed with the host.
	SetProtocol(endpoint string, pv cqlptc.Version)

	// RegisterListener subscribes to lifecycle events.
	RegisterListener(l Listener)

	// Close tears the registry down; no further events are emitted.
	Close()
}

// Endpoint normalizes an (address, port) pair to "host:port".
func Endpoint(address string, port int) string {
	if _, _, e := net.SplitHostPort(address); e == nil {
		return address
	}
	return net.JoinHostPort(address, strconv.Itoa(port))
}

// NewRegistry returns an empty host registry.
func NewRegistry() Registry {
	return &registry{
		hosts: make(map[string]*host),
	}
}

type registry struct {
	m sync.Mutex

	hosts     map[string]*host
	snapshot  []Host
	listeners []Listener
	closed    bool
}

// rebuild refreshes the read snapshot. Caller holds the lock.
func (o *registry) rebuild() {
	s := make([]Host, 0, len(o.hosts))
	for _, h := range o.hosts {
		s = append(s, h)
	}
	o.snapshot = s
}

// emit notifies listeners outside the critical section, keeping the
// per-event ordering of the caller.
func (o *registry) emit(ev Event, listeners []Listener) {
	for _, l := range listeners {
		l(ev)
	}
}

func (o *registry) Add(p Peer) Host {
	o.m.Lock()

	ep := Endpoint(p.Address, p.Port)

	if h, ok := o.hosts[ep]; ok {
		h.update(p)
		o.m.Unlock()
		return h
	}

	h := newHost(ep, p)
	o.hosts[ep] = h
	o.rebuild()

	listeners := o.listeners
	closed := o.closed
	o.m.Unlock()

	if !closed {
		o.emit(Event{Kind: EventHostAdd, Host: h}, listeners)
	}

	return h
}

func (o *registry) Remove(endpoint string) liberr.Error {
	o.m.Lock()

	h, ok := o.hosts[endpoint]
	if !ok {
		o.m.Unlock()
		return ErrorHostUnknown.Error(nil)
	}

	h.setState(StateRemoved)
	delete(o.hosts, endpoint)
	o.rebuild()

	listeners := o.listeners
	closed := o.closed
	o.m.Unlock()

	if !closed {
		o.emit(Event{Kind: EventHostRemove, Host: h}, listeners)
	}

	return nil
}

func (o *registry) Host(endpoint string) (Host, bool) {
	o.m.Lock()
	defer o.m.Unlock()

	h, ok := o.hosts[endpoint]
	return h, ok
}

func (o *registry) Hosts() []Host {
	o.m.Lock()
	defer o.m.Unlock()

	return o.snapshot
}

func (o *registry) UpHosts() []Host {
	o.m.Lock()
	defer o.m.Unlock()

	up := make([]Host, 0, len(o.snapshot))
	for _, h := range o.snapshot {
		if h.IsUp() {
			up = append(up, h)
		}
	}

	return up
}

func (o *registry) mark(endpoint string, s State, k EventKind) liberr.Error {
	o.m.Lock()

	h, ok := o.hosts[endpoint]
	if !ok {
		o.m.Unlock()
		return ErrorHostUnknown.Error(nil)
	}

	changed := h.setState(s)
	listeners := o.listeners
	closed := o.closed
	o.m.Unlock()

	if changed && !closed {
		o.emit(Event{Kind: k, Host: h}, listeners)
	}

	return nil
}

func (o *registry) MarkUp(endpoint string) liberr.Error {
	return o.mark(endpoint, StateUp, EventHostUp)
}

func (o *registry) MarkDown(endpoint string) liberr.Error {
	return o.mark(endpoint, StateDown, EventHostDown)
}

func (o *registry) SetProtocol(endpoint string, pv cqlptc.Version) {
	o.m.Lock()
	defer o.m.Unlock()

	if h, ok := o.hosts[endpoint]; ok {
		h.setProtocol(pv)
	}
}

func (o *registry) RegisterListener(l Listener) {
	o.m.Lock()
	defer o.m.Unlock()

	o.listeners = append(o.listeners, l)
}

func (o *registry) Close() {
	o.m.Lock()
	defer o.m.Unlock()

	o.closed = true
	o.listeners = nil
}
