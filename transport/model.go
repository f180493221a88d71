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

package transport

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	cqlhst "github.com/nabbar/cqldriver/hostinfo"
	cqlmsg "github.com/nabbar/cqldriver/message"
	cqlptc "github.com/nabbar/cqldriver/protocol"
	cqlstm "github.com/nabbar/cqldriver/stream"
	libatm "github.com/nabbar/golib/atomic"
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
)

type connState int32

const (
	stateOpening connState = iota
	stateReady
	stateDefunct
	stateClosing
	stateClosed
)

type pending struct {
	cb    Callback
	timer *time.Timer
}

type conn struct {
	cfg  Config
	host cqlhst.Host
	sock net.Conn
	log  liblog.FuncLog

	state    libatm.Value[connState]
	alloc    cqlstm.Allocator
	keyspace libatm.Value[string]

	pm      sync.Mutex
	pend    map[int16]*pending
	writeq  chan []byte
	wclosed bool

	timedOut     atomic.Int32
	lastActivity atomic.Int64 // unix nanoseconds
	hbPending    atomic.Bool

	closeOnce sync.Once
	closeHook []func(c Connection, err error)
	hookMux   sync.Mutex

	done chan struct{}
}

func (o *conn) logger() liblog.Logger {
	if o.log != nil {
		if l := o.log(); l != nil {
			return l
		}
	}

	return liblog.GetDefault()
}

func (o *conn) Endpoint() string {
	return o.host.Endpoint()
}

func (o *conn) Host() cqlhst.Host {
	return o.host
}

func (o *conn) Version() cqlptc.Version {
	return o.cfg.Version
}

func (o *conn) Keyspace() string {
	return o.keyspace.Load()
}

func (o *conn) IsReady() bool {
	return o.state.Load() == stateReady
}

func (o *conn) IsDefunct() bool {
	return o.state.Load() == stateDefunct
}

func (o *conn) InFlight() int {
	o.pm.Lock()
	defer o.pm.Unlock()

	return len(o.pend)
}

func (o *conn) TimedOut() int {
	return int(o.timedOut.Load())
}

func (o *conn) OnClose(fn func(c Connection, err error)) {
	o.hookMux.Lock()
	defer o.hookMux.Unlock()

	o.closeHook = append(o.closeHook, fn)
}

func (o *conn) touch() {
	o.lastActivity.Store(time.Now().UnixNano())
}

// Send allocates a stream id, registers the in-flight entry with its
// deadline and places the encoded frame on the coalescing write queue.
func (o *conn) Send(req cqlmsg.Request, deadline time.Duration, cb Callback) (CancelFunc, liberr.Error) {
	if !o.IsReady() {
		if o.IsDefunct() {
			return nil, ErrorDefunct.Error(nil)
		}
		return nil, ErrorClosed.Error(nil)
	}

	id, e := o.alloc.Pop()
	if e != nil {
		return nil, ErrorSaturated.Error(e)
	}

	buf, e := cqlmsg.EncodeFrame(req, o.cfg.Version, id, o.cfg.Compressor, nil)
	if e != nil {
		_ = o.alloc.Push(id)
		return nil, e
	}

	if deadline <= 0 {
		deadline = o.cfg.ReadTimeout
	}

	p := &pending{cb: cb}

	o.pm.Lock()

	if o.wclosed {
		o.pm.Unlock()
		_ = o.alloc.Push(id)
		return nil, ErrorClosed.Error(nil)
	}

	o.pend[id] = p
	p.timer = time.AfterFunc(deadline, func() {
		o.expire(id)
	})
	o.pm.Unlock()

	select {
	case o.writeq <- buf:
	default:
		// queue full: write inline back-pressure by blocking until the
		// writer drains or the connection dies
		select {
		case o.writeq <- buf:
		case <-o.done:
			o.remove(id)
			return nil, ErrorDefunct.Error(nil)
		}
	}

	return func() { o.remove(id) }, nil
}

// remove drops an in-flight entry and releases its stream id without
// invoking the callback.
func (o *conn) remove(id int16) {
	o.pm.Lock()
	p, ok := o.pend[id]
	if ok {
		delete(o.pend, id)
	}
	o.pm.Unlock()

	if !ok {
		return
	}

	if p.timer != nil {
		p.timer.Stop()
	}

	_ = o.alloc.Push(id)
}

// expire completes one in-flight entry with a timeout and applies the
// defunct threshold.
func (o *conn) expire(id int16) {
	o.pm.Lock()
	p, ok := o.pend[id]
	if ok {
		delete(o.pend, id)
	}
	o.pm.Unlock()

	if !ok {
		return
	}

	_ = o.alloc.Push(id)

	n := o.timedOut.Add(1)

	if p.cb != nil {
		p.cb(nil, ErrorTimeout.Error(nil))
	}

	if o.cfg.DefunctThreshold > 0 && int(n) >= o.cfg.DefunctThreshold {
		o.defunct(ErrorTimeout.Error(nil))
	}
}

// dispatch routes one decoded frame to its in-flight entry.
func (o *conn) dispatch(in *cqlmsg.Inbound) {
	o.touch()

	if in.Header.Stream < 0 {
		if ev, ok := in.Message.(*cqlmsg.Event); ok && o.cfg.EventHandler != nil {
			o.cfg.EventHandler(ev)
			return
		}

		o.logger().Entry(loglvl.DebugLevel, "dropping unsolicited server frame").
			FieldAdd("endpoint", o.Endpoint()).
			FieldAdd("opcode", in.Header.OpCode.String()).Log()
		return
	}

	o.pm.Lock()
	p, ok := o.pend[in.Header.Stream]
	if ok {
		delete(o.pend, in.Header.Stream)
	}
	o.pm.Unlock()

	if !ok {
		// a response for an id we never issued or already expired:
		// expired ids were pushed back and may be in flight again, so
		// only an out-of-range id proves corruption
		if int(in.Header.Stream) > o.cfg.Version.MaxStreamID() {
			o.defunct(ErrorProtocol.Error(nil))
		}
		return
	}

	if p.timer != nil {
		p.timer.Stop()
	}

	_ = o.alloc.Push(in.Header.Stream)

	if p.cb != nil {
		p.cb(in, nil)
	}
}

// defunct is the terminal failure path: every in-flight callback is
// completed with a socket error exactly once, the socket is closed and
// the close hooks run.
func (o *conn) defunct(cause liberr.Error) {
	o.terminate(stateDefunct, cause)
}

func (o *conn) terminate(final connState, cause liberr.Error) {
	o.closeOnce.Do(func() {
		o.state.Store(final)

		o.pm.Lock()
		o.wclosed = true
		pend := o.pend
		o.pend = make(map[int16]*pending)
		o.pm.Unlock()

		close(o.done)

		_ = o.sock.Close()
		o.alloc.Close()

		for id, p := range pend {
			if p.timer != nil {
				p.timer.Stop()
			}

			_ = o.alloc.Push(id)

			if p.cb != nil {
				if cause != nil {
					p.cb(nil, cause)
				} else {
					p.cb(nil, ErrorClosed.Error(nil))
				}
			}
		}

		o.hookMux.Lock()
		hooks := o.closeHook
		o.closeHook = nil
		o.hookMux.Unlock()

		var err error
		if cause != nil {
			err = cause
		}

		for _, fn := range hooks {
			fn(o, err)
		}
	})
}

func (o *conn) Close() error {
	o.terminate(stateClosed, nil)
	return nil
}

// Request performs a synchronous exchange bounded by the context.
func (o *conn) Request(ctx context.Context, req cqlmsg.Request) (*cqlmsg.Inbound, liberr.Error) {
	type outcome struct {
		in  *cqlmsg.Inbound
		err liberr.Error
	}

	ch := make(chan outcome, 1)

	deadline := o.cfg.ReadTimeout
	if d, ok := ctx.Deadline(); ok {
		if r := time.Until(d); r < deadline {
			deadline = r
		}
	}

	cancel, e := o.Send(req, deadline, func(in *cqlmsg.Inbound, err liberr.Error) {
		ch <- outcome{in: in, err: err}
	})
	if e != nil {
		return nil, e
	}

	select {
	case out := <-ch:
		return out.in, out.err

	case <-ctx.Done():
		cancel()
		return nil, ErrorTimeout.Error(ctx.Err())
	}
}

// SetKeyspace pins the connection on a keyspace with a USE request.
func (o *conn) SetKeyspace(ctx context.Context, ks string) liberr.Error {
	if ks == "" {
		return ErrorParamEmpty.Error(nil)
	}

	if o.Keyspace() == ks {
		return nil
	}

	in, e := o.Request(ctx, &cqlmsg.Query{
		Query:  "USE " + quoteIdentifier(ks),
		Params: cqlmsg.QueryParameters{Consistency: cqlptc.One},
	})
	if e != nil {
		return ErrorKeyspace.Error(e)
	}

	switch m := in.Message.(type) {
	case *cqlmsg.SetKeyspaceResult:
		o.keyspace.Store(m.Keyspace)
		return nil

	case *cqlmsg.Error:
		return ErrorKeyspace.Error(m)
	}

	return ErrorKeyspace.Error(nil)
}

func quoteIdentifier(s string) string {
	for _, c := range s {
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_') {
			return `"` + s + `"`
		}
	}
	return s
}
