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

package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	cqlhst "github.com/nabbar/cqldriver/hostinfo"
	cqltrp "github.com/nabbar/cqldriver/transport"
	libatm "github.com/nabbar/golib/atomic"
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
	"golang.org/x/sync/errgroup"
)

type pool struct {
	m sync.Mutex

	ctx  context.Context
	host cqlhst.Host
	cfg  Config
	log  liblog.FuncLog

	conns    []cqltrp.Connection
	opening  int
	distance cqlhst.Distance
	keyspace libatm.Value[string]
	rr       uint64
	closed   bool

	reconnecting   bool
	reconnectTimer *time.Timer

	downHooks []func(h cqlhst.Host)
	upHooks   []func(h cqlhst.Host)
}

func (o *pool) logger() liblog.Logger {
	if o.log != nil {
		if l := o.log(); l != nil {
			return l
		}
	}

	return liblog.GetDefault()
}

func (o *pool) Host() cqlhst.Host {
	return o.host
}

func (o *pool) Distance() cqlhst.Distance {
	o.m.Lock()
	defer o.m.Unlock()

	return o.distance
}

func (o *pool) SetDistance(d cqlhst.Distance) {
	o.m.Lock()

	if o.distance == d {
		o.m.Unlock()
		return
	}

	o.distance = d
	drain := d == cqlhst.DistanceIgnored
	conns := append([]cqltrp.Connection(nil), o.conns...)
	o.m.Unlock()

	if drain {
		for _, c := range conns {
			_ = c.Close()
		}
		return
	}

	go o.fill()
}

func (o *pool) SetKeyspace(ks string) {
	o.keyspace.Store(ks)
}

func (o *pool) ks() string {
	return o.keyspace.Load()
}

func (o *pool) Size() int {
	o.m.Lock()
	defer o.m.Unlock()

	return len(o.conns)
}

func (o *pool) InFlight() int {
	o.m.Lock()
	conns := append([]cqltrp.Connection(nil), o.conns...)
	o.m.Unlock()

	n := 0
	for _, c := range conns {
		n += c.InFlight()
	}

	return n
}

func (o *pool) OnDown(fn func(h cqlhst.Host)) {
	o.m.Lock()
	defer o.m.Unlock()

	o.downHooks = append(o.downHooks, fn)
}

func (o *pool) OnUp(fn func(h cqlhst.Host)) {
	o.m.Lock()
	defer o.m.Unlock()

	o.upHooks = append(o.upHooks, fn)
}

func (o *pool) core() int {
	return o.cfg.CoreConnections[o.distance]
}

func (o *pool) max() int {
	return o.cfg.MaxConnections[o.distance]
}

// Borrow selects the least-loaded ready connection, triggering growth
// when everything is at the request ceiling.
func (o *pool) Borrow() (cqltrp.Connection, liberr.Error) {
	o.m.Lock()

	if o.closed {
		o.m.Unlock()
		return nil, ErrorPoolClosed.Error(nil)
	}

	if o.distance == cqlhst.DistanceIgnored {
		o.m.Unlock()
		return nil, ErrorPoolIgnored.Error(nil)
	}

	var (
		best     cqltrp.Connection
		bestLoad int
	)

	start := int(atomic.AddUint64(&o.rr, 1))

	for i := 0; i < len(o.conns); i++ {
		c := o.conns[(start+i)%len(o.conns)]
		if !c.IsReady() {
			continue
		}

		load := c.InFlight()
		if best == nil || load < bestLoad {
			best, bestLoad = c, load
		}
	}

	size := len(o.conns) + o.opening
	o.m.Unlock()

	if best == nil {
		go o.fill()
		return nil, ErrorPoolDown.Error(nil)
	}

	if bestLoad >= o.cfg.MaxRequestsPerConnection {
		if size < o.max() {
			go o.grow(1)
		}
		return nil, ErrorPoolSaturated.Error(nil)
	}

	if ks := o.ks(); ks != "" && best.Keyspace() != ks {
		ctx, cancel := context.WithTimeout(o.ctx, o.cfg.Conn.ReadTimeout)
		defer cancel()

		if e := best.SetKeyspace(ctx, ks); e != nil {
			return nil, e
		}
	}

	return best, nil
}

// Warmup opens connections up to the core size, fanning dials out.
func (o *pool) Warmup(ctx context.Context) liberr.Error {
	o.m.Lock()
	if o.closed || o.distance == cqlhst.DistanceIgnored {
		o.m.Unlock()
		return nil
	}

	missing := o.core() - len(o.conns) - o.opening
	o.opening += max(missing, 0)
	o.m.Unlock()

	if missing <= 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < missing; i++ {
		g.Go(func() error {
			c, e := o.open(gctx)
			if e != nil {
				return e
			}

			o.adopt(c)
			return nil
		})
	}

	err := g.Wait()

	o.m.Lock()
	o.opening -= missing
	if o.opening < 0 {
		o.opening = 0
	}
	o.m.Unlock()

	if err != nil {
		if e, ok := err.(liberr.Error); ok {
			return e
		}
		return ErrorPoolDown.Error(err)
	}

	return nil
}

// grow opens n extra connections asynchronously, bounded by max.
func (o *pool) grow(n int) {
	o.m.Lock()
	if o.closed || o.distance == cqlhst.DistanceIgnored {
		o.m.Unlock()
		return
	}

	room := o.max() - len(o.conns) - o.opening
	if n > room {
		n = room
	}

	o.opening += max(n, 0)
	o.m.Unlock()

	for i := 0; i < n; i++ {
		go func() {
			c, e := o.open(o.ctx)

			o.m.Lock()
			o.opening--
			o.m.Unlock()

			if e != nil {
				o.logger().Entry(loglvl.DebugLevel, "pool expansion failed").
					FieldAdd("endpoint", o.host.Endpoint()).
					ErrorAdd(true, e).Log()
				return
			}

			o.adopt(c)
		}()
	}
}

// fill restores the pool to core size, scheduling a reconnection cycle
// when every dial fails.
func (o *pool) fill() {
	o.m.Lock()
	if o.closed || o.reconnecting || o.distance == cqlhst.DistanceIgnored {
		o.m.Unlock()
		return
	}

	missing := o.core() - len(o.conns) - o.opening
	if missing <= 0 {
		o.m.Unlock()
		return
	}

	o.reconnecting = true
	o.m.Unlock()

	schedule := o.cfg.Reconnect.NewSchedule()

	var attempt func()

	attempt = func() {
		o.m.Lock()
		if o.closed || o.distance == cqlhst.DistanceIgnored {
			o.reconnecting = false
			o.m.Unlock()
			return
		}
		need := o.core() - len(o.conns) - o.opening
		o.m.Unlock()

		if need <= 0 {
			o.m.Lock()
			o.reconnecting = false
			o.m.Unlock()
			return
		}

		c, e := o.open(o.ctx)
		if e == nil {
			wasEmpty := o.Size() == 0
			o.adopt(c)

			o.m.Lock()
			o.reconnecting = false
			o.m.Unlock()

			if wasEmpty {
				o.notifyUp()
			}

			// top the rest up outside the reconnection cycle
			go o.grow(need - 1)
			return
		}

		if o.Size() == 0 {
			o.notifyDown()
		}

		delay := schedule.Next()

		o.m.Lock()
		if o.closed {
			o.reconnecting = false
			o.m.Unlock()
			return
		}
		o.reconnectTimer = time.AfterFunc(delay, attempt)
		o.m.Unlock()
	}

	attempt()
}

func (o *pool) open(ctx context.Context) (cqltrp.Connection, liberr.Error) {
	cfg := o.cfg.Conn
	cfg.Keyspace = o.ks()

	return cqltrp.Dial(ctx, o.host, cfg, o.log)
}

// adopt wires a fresh connection into the pool, or closes it when the
// pool shut down meanwhile.
func (o *pool) adopt(c cqltrp.Connection) {
	o.m.Lock()

	if o.closed || o.distance == cqlhst.DistanceIgnored {
		o.m.Unlock()
		_ = c.Close()
		return
	}

	o.conns = append(o.conns, c)
	o.m.Unlock()

	c.OnClose(func(cc cqltrp.Connection, err error) {
		o.evict(cc, err)
	})
}

// evict removes a terminated connection and starts the reconnection
// cycle.
func (o *pool) evict(c cqltrp.Connection, err error) {
	o.m.Lock()

	keep := o.conns[:0]
	for _, cc := range o.conns {
		if cc != c {
			keep = append(keep, cc)
		}
	}
	o.conns = keep

	closed := o.closed
	o.m.Unlock()

	if closed {
		return
	}

	if err != nil {
		o.logger().Entry(loglvl.InfoLevel, "pool connection terminated").
			FieldAdd("endpoint", o.host.Endpoint()).
			ErrorAdd(true, err).Log()
	}

	go o.fill()
}

func (o *pool) notifyDown() {
	o.m.Lock()
	hooks := make([]func(cqlhst.Host), len(o.downHooks))
	copy(hooks, o.downHooks)
	o.m.Unlock()

	for _, fn := range hooks {
		fn(o.host)
	}
}

func (o *pool) notifyUp() {
	o.m.Lock()
	hooks := make([]func(cqlhst.Host), len(o.upHooks))
	copy(hooks, o.upHooks)
	o.m.Unlock()

	for _, fn := range hooks {
		fn(o.host)
	}
}

// Shutdown drains every connection cooperatively and cancels pending
// reconnections.
func (o *pool) Shutdown(_ context.Context) error {
	o.m.Lock()

	if o.closed {
		o.m.Unlock()
		return nil
	}

	o.closed = true

	if o.reconnectTimer != nil {
		o.reconnectTimer.Stop()
		o.reconnectTimer = nil
	}

	conns := o.conns
	o.conns = nil
	o.m.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}

	return nil
}
