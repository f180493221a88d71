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

package request_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	cqlhst "github.com/nabbar/cqldriver/hostinfo"
	cqlmsg "github.com/nabbar/cqldriver/message"
	cqlbal "github.com/nabbar/cqldriver/policy/balance"
	cqlptc "github.com/nabbar/cqldriver/protocol"
	cqltrp "github.com/nabbar/cqldriver/transport"
	liberr "github.com/nabbar/golib/errors"

	. "github.com/onsi/gomega"
)

// node couples a registry host with its scriptable connection.
type node struct {
	host cqlhst.Host
	conn *fakeConn
}

// fakeConn is a scriptable in-memory connection honoring the request
// context, so per-attempt deadlines behave like a slow socket.
type fakeConn struct {
	host   cqlhst.Host
	delay  time.Duration
	answer func(req cqlmsg.Request) (cqlmsg.Response, liberr.Error)

	requests atomic.Int32
	active   atomic.Int32
}

func (o *fakeConn) Endpoint() string {
	return o.host.Endpoint()
}

func (o *fakeConn) Host() cqlhst.Host {
	return o.host
}

func (o *fakeConn) Version() cqlptc.Version {
	return cqlptc.Version4
}

func (o *fakeConn) Keyspace() string {
	return ""
}

func (o *fakeConn) SetKeyspace(_ context.Context, _ string) liberr.Error {
	return nil
}

func (o *fakeConn) Send(req cqlmsg.Request, _ time.Duration, cb cqltrp.Callback) (cqltrp.CancelFunc, liberr.Error) {
	go func() {
		in, e := o.Request(context.Background(), req)
		cb(in, e)
	}()

	return func() {}, nil
}

func (o *fakeConn) Request(ctx context.Context, req cqlmsg.Request) (*cqlmsg.Inbound, liberr.Error) {
	o.requests.Add(1)
	o.active.Add(1)
	defer o.active.Add(-1)

	if o.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, cqltrp.ErrorTimeout.Error(ctx.Err())
		case <-time.After(o.delay):
		}
	}

	msg, e := o.answer(req)
	if e != nil {
		return nil, e
	}

	return &cqlmsg.Inbound{Message: msg}, nil
}

func (o *fakeConn) InFlight() int {
	return 0
}

func (o *fakeConn) TimedOut() int {
	return 0
}

func (o *fakeConn) IsReady() bool {
	return true
}

func (o *fakeConn) IsDefunct() bool {
	return false
}

func (o *fakeConn) OnClose(_ func(c cqltrp.Connection, err error)) {}

func (o *fakeConn) Close() error {
	return nil
}

// cluster builds n up nodes with the given default answer.
func cluster(n int, answer func(req cqlmsg.Request) (cqlmsg.Response, liberr.Error)) []*node {
	reg := cqlhst.NewRegistry()

	nodes := make([]*node, 0, n)

	for i := 0; i < n; i++ {
		h := reg.Add(cqlhst.Peer{Address: fmt.Sprintf("10.2.0.%d", i+1), Port: 9042, Datacenter: "dc1"})
		Expect(reg.MarkUp(h.Endpoint())).ToNot(HaveOccurred())

		nodes = append(nodes, &node{
			host: h,
			conn: &fakeConn{host: h, answer: answer},
		})
	}

	return nodes
}

func hostsOf(nodes []*node) []cqlhst.Host {
	out := make([]cqlhst.Host, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.host)
	}
	return out
}

// planFrom yields the nodes in a fixed order, one fresh iterator per
// call.
func planFrom(nodes []*node) func(ri cqlbal.RoutingInfo) cqlbal.Plan {
	return func(_ cqlbal.RoutingInfo) cqlbal.Plan {
		return &listPlan{hosts: hostsOf(nodes)}
	}
}

type listPlan struct {
	hosts []cqlhst.Host
	pos   int
}

func (o *listPlan) Next() (cqlhst.Host, bool) {
	if o.pos >= len(o.hosts) {
		return nil, false
	}

	h := o.hosts[o.pos]
	o.pos++
	return h, true
}

func borrowFrom(nodes []*node) func(h cqlhst.Host) (cqltrp.Connection, liberr.Error) {
	byEp := make(map[string]*fakeConn, len(nodes))
	for _, n := range nodes {
		byEp[n.host.Endpoint()] = n.conn
	}

	return func(h cqlhst.Host) (cqltrp.Connection, liberr.Error) {
		c, ok := byEp[h.Endpoint()]
		if !ok {
			return nil, cqltrp.ErrorClosed.Error(nil)
		}
		return c, nil
	}
}

func voidAnswer(_ cqlmsg.Request) (cqlmsg.Response, liberr.Error) {
	return &cqlmsg.VoidResult{}, nil
}
