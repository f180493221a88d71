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

package control

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	cqlhst "github.com/nabbar/cqldriver/hostinfo"
	cqlmsg "github.com/nabbar/cqldriver/message"
	cqlptc "github.com/nabbar/cqldriver/protocol"
	cqltrp "github.com/nabbar/cqldriver/transport"
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
)

type control struct {
	m sync.Mutex

	reg cqlhst.Registry
	cfg Config
	log liblog.FuncLog

	ctx     context.Context
	cancel  context.CancelFunc
	conn    cqltrp.Connection
	version cqlptc.Version

	listeners []func(ev *cqlmsg.Event)
	events    chan *cqlmsg.Event
	stopped   bool
}

func (o *control) logger() liblog.Logger {
	if o.log != nil {
		if l := o.log(); l != nil {
			return l
		}
	}

	return liblog.GetDefault()
}

func (o *control) Version() cqlptc.Version {
	o.m.Lock()
	defer o.m.Unlock()

	return o.version
}

func (o *control) OnEvent(fn func(ev *cqlmsg.Event)) {
	o.m.Lock()
	defer o.m.Unlock()

	o.listeners = append(o.listeners, fn)
}

// Start resolves the contact points, negotiates the protocol version
// and runs the initial discovery.
func (o *control) Start(ctx context.Context) liberr.Error {
	o.m.Lock()
	if o.stopped {
		o.m.Unlock()
		return ErrorClosed.Error(nil)
	}

	o.ctx, o.cancel = context.WithCancel(ctx)
	o.events = make(chan *cqlmsg.Event, 64)
	o.m.Unlock()

	go o.eventLoop()

	seeds := make([]cqlhst.Peer, 0, len(o.cfg.ContactPoints))
	for _, cp := range o.cfg.ContactPoints {
		addr, port := splitContactPoint(cp, o.cfg.Port)
		addr, port = o.cfg.Translator.Translate(addr, port)
		seeds = append(seeds, cqlhst.Peer{Address: addr, Port: port})
	}

	var last liberr.Error

	for _, seed := range seeds {
		h := o.reg.Add(seed)

		conn, v, e := o.negotiate(o.ctx, h)
		if e != nil {
			last = e
			continue
		}

		if e = o.install(conn, v); e != nil {
			last = e
			_ = conn.Close()
			continue
		}

		go o.refreshLoop()
		return nil
	}

	if last != nil {
		return ErrorNoContactPoint.Error(last)
	}

	return ErrorNoContactPoint.Error(nil)
}

func splitContactPoint(cp string, defPort int) (string, int) {
	if host, p, e := net.SplitHostPort(cp); e == nil {
		if n, err := strconv.Atoi(p); err == nil {
			return host, n
		}
		return host, defPort
	}

	return cp, defPort
}

// negotiate walks the protocol versions down until one is accepted.
func (o *control) negotiate(ctx context.Context, h cqlhst.Host) (cqltrp.Connection, cqlptc.Version, liberr.Error) {
	var last liberr.Error

	for v := o.cfg.MaxVersion; v >= cqlptc.VersionMin; v-- {
		cfg := o.cfg.Conn
		cfg.Version = v
		cfg.EventHandler = o.pushEvent

		conn, e := cqltrp.Dial(ctx, h, cfg, o.log)
		if e == nil {
			return conn, v, nil
		}

		last = e

		if e.HasCode(cqltrp.ErrorDial) {
			// the node is unreachable, a lower version will not help
			break
		}
	}

	return nil, 0, ErrorNegotiation.Error(last)
}

// install promotes a negotiated connection to control duty: register
// for events, run the initial discovery, arm the failover hook.
func (o *control) install(conn cqltrp.Connection, v cqlptc.Version) liberr.Error {
	ctx, cancel := context.WithTimeout(o.ctx, o.cfg.Conn.ConnectTimeout+cqltrp.DefaultConnectTimeout)
	defer cancel()

	in, e := conn.Request(ctx, &cqlmsg.Register{
		Events: []cqlptc.EventType{
			cqlptc.EventTopologyChange,
			cqlptc.EventStatusChange,
			cqlptc.EventSchemaChange,
		},
	})
	if e != nil {
		return e
	}

	if m, isErr := in.Message.(*cqlmsg.Error); isErr {
		return ErrorNegotiation.Error(m)
	}

	o.m.Lock()
	o.conn = conn
	o.version = v
	o.m.Unlock()

	o.reg.SetProtocol(conn.Endpoint(), v)
	_ = o.reg.MarkUp(conn.Endpoint())

	if e = o.reconcile(ctx, conn); e != nil {
		return e
	}

	conn.OnClose(func(_ cqltrp.Connection, err error) {
		o.failover(err)
	})

	o.logger().Entry(loglvl.InfoLevel, "control connection established").
		FieldAdd("endpoint", conn.Endpoint()).
		FieldAdd("version", v.String()).Log()

	return nil
}

// reconcile merges the peers catalogue into the registry: missing
// peers are added and marked up, vanished hosts are removed.
func (o *control) reconcile(ctx context.Context, conn cqltrp.Connection) liberr.Error {
	local, e := o.cfg.Reader.Local(ctx, conn)
	if e != nil {
		return e
	}

	peers, e := o.cfg.Reader.Peers(ctx, conn)
	if e != nil {
		return e
	}

	seen := make(map[string]bool, len(peers)+1)

	all := append([]cqlhst.Peer{local}, peers...)

	for _, p := range all {
		addr, port := o.cfg.Translator.Translate(p.Address, p.Port)
		p.Address, p.Port = addr, port

		h := o.reg.Add(p)
		seen[h.Endpoint()] = true

		if !h.IsUp() {
			_ = o.reg.MarkUp(h.Endpoint())
		}
	}

	for _, h := range o.reg.Hosts() {
		if !seen[h.Endpoint()] {
			_ = o.reg.Remove(h.Endpoint())
		}
	}

	return nil
}

// RefreshPeers reconciles the registry against the current catalogue.
func (o *control) RefreshPeers(ctx context.Context) liberr.Error {
	o.m.Lock()
	conn := o.conn
	o.m.Unlock()

	if conn == nil || !conn.IsReady() {
		return ErrorClosed.Error(nil)
	}

	return o.reconcile(ctx, conn)
}

// refreshLoop paces the periodic peers reconciliation.
func (o *control) refreshLoop() {
	tick := time.NewTicker(o.cfg.RefreshInterval)
	defer tick.Stop()

	for {
		select {
		case <-o.ctx.Done():
			return

		case <-tick.C:
			if e := o.RefreshPeers(o.ctx); e != nil && !e.HasCode(ErrorClosed) {
				o.logger().Entry(loglvl.WarnLevel, "peers refresh failed").
					ErrorAdd(true, e).Log()
			}
		}
	}
}

// pushEvent funnels server events into the serialized event loop.
func (o *control) pushEvent(ev *cqlmsg.Event) {
	o.m.Lock()
	ch := o.events
	stopped := o.stopped
	o.m.Unlock()

	if stopped || ch == nil {
		return
	}

	select {
	case ch <- ev:
	default:
		o.logger().Entry(loglvl.WarnLevel, "event queue full, dropping server event").
			FieldAdd("event", string(ev.Kind)).Log()
	}
}

// eventLoop serializes event handling in arrival order.
func (o *control) eventLoop() {
	for {
		select {
		case <-o.ctx.Done():
			return

		case ev := <-o.events:
			o.handleEvent(ev)
		}
	}
}

func (o *control) handleEvent(ev *cqlmsg.Event) {
	switch ev.Kind {
	case cqlptc.EventStatusChange:
		switch ev.Change {
		case "UP":
			_ = o.reg.MarkUp(ev.Address)
		case "DOWN":
			_ = o.reg.MarkDown(ev.Address)
		}

	case cqlptc.EventTopologyChange:
		switch ev.Change {
		case "REMOVED_NODE":
			_ = o.reg.Remove(ev.Address)
		default:
			// NEW_NODE and MOVED_NODE resolve through the catalogue
			ctx, cancel := context.WithTimeout(o.ctx, o.cfg.Conn.ReadTimeout)
			_ = o.RefreshPeers(ctx)
			cancel()
		}
	}

	o.m.Lock()
	listeners := append([]func(ev *cqlmsg.Event){}, o.listeners...)
	o.m.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// failover replaces a dead control connection with one to another up
// host, pacing the attempts with the reconnection schedule.
func (o *control) failover(err error) {
	o.m.Lock()
	stopped := o.stopped
	o.conn = nil
	o.m.Unlock()

	if stopped || o.ctx.Err() != nil {
		return
	}

	o.logger().Entry(loglvl.WarnLevel, "control connection lost, electing a new one").
		ErrorAdd(true, err).Log()

	schedule := o.cfg.Reconnect.NewSchedule()

	go func() {
		for {
			if o.ctx.Err() != nil {
				return
			}

			for _, h := range o.reg.UpHosts() {
				conn, v, e := o.negotiate(o.ctx, h)
				if e != nil {
					continue
				}

				if e = o.install(conn, v); e != nil {
					_ = conn.Close()
					continue
				}

				return
			}

			select {
			case <-o.ctx.Done():
				return
			case <-time.After(schedule.Next()):
			}
		}
	}()
}

// AwaitSchemaAgreement polls the schema versions until they converge.
func (o *control) AwaitSchemaAgreement(ctx context.Context) liberr.Error {
	for {
		o.m.Lock()
		conn := o.conn
		o.m.Unlock()

		if conn == nil {
			return ErrorClosed.Error(nil)
		}

		ok, e := o.cfg.Reader.SchemaAgreement(ctx, conn)
		if e != nil {
			return e
		}

		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ErrorSchemaAgreement.Error(ctx.Err())
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func (o *control) Stop() {
	o.m.Lock()

	if o.stopped {
		o.m.Unlock()
		return
	}

	o.stopped = true
	conn := o.conn
	o.conn = nil
	cancel := o.cancel
	o.m.Unlock()

	if cancel != nil {
		cancel()
	}

	if conn != nil {
		_ = conn.Close()
	}
}
