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

package prepared

import (
	"context"
	"time"

	cqlmsg "github.com/nabbar/cqldriver/message"
	cqlbal "github.com/nabbar/cqldriver/policy/balance"
	cqltrp "github.com/nabbar/cqldriver/transport"
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
)

// prepareAllTimeout bounds the whole eager prepare-on-all pass.
const prepareAllTimeout = 30 * time.Second

func (o *cache) logger() liblog.Logger {
	if o.log != nil {
		if l := o.log(); l != nil {
			return l
		}
	}

	return liblog.GetDefault()
}

func (o *cache) lookup(key string) (*Entry, bool) {
	o.m.RLock()
	defer o.m.RUnlock()

	e, ok := o.entries[key]
	return e, ok
}

func (o *cache) store(key string, e *Entry) {
	o.m.Lock()
	defer o.m.Unlock()

	if o.closed {
		return
	}

	o.entries[key] = e
	o.byID[idKey(e.ID)] = e
}

func (o *cache) Get(ctx context.Context, keyspace, query string) (*Entry, liberr.Error) {
	if query == "" {
		return nil, ErrorParamEmpty.Error(nil)
	}

	o.m.RLock()
	closed := o.closed
	o.m.RUnlock()

	if closed {
		return nil, ErrorClosed.Error(nil)
	}

	key := cacheKey(keyspace, query)

	if e, ok := o.lookup(key); ok {
		return e, nil
	}

	v, err, _ := o.g.Do(key, func() (interface{}, error) {
		// a racing call may have completed while we queued
		if e, ok := o.lookup(key); ok {
			return e, nil
		}

		e, er := o.prepare(ctx, keyspace, query)
		if er != nil {
			return nil, er
		}

		o.store(key, e)
		return e, nil
	})

	if err != nil {
		if e, ok := err.(liberr.Error); ok {
			return nil, e
		}
		return nil, ErrorPrepareFailed.Error(err)
	}

	return v.(*Entry), nil
}

// prepare walks the query plan: socket errors and timeouts move to the
// next candidate, any other response error is terminal since syntax
// errors must not be retried.
func (o *cache) prepare(ctx context.Context, keyspace, query string) (*Entry, liberr.Error) {
	if o.deps.NewPlan == nil || o.deps.Borrow == nil {
		return nil, ErrorParamEmpty.Error(nil)
	}

	plan := o.deps.NewPlan(keyspace)

	var last liberr.Error

	for {
		h, ok := plan.Next()
		if !ok {
			break
		}

		c, e := o.deps.Borrow(h)
		if e != nil {
			last = e
			continue
		}

		entry, e := o.prepareOn(ctx, c, keyspace, query)
		if e == nil {
			if o.deps.PrepareOnAllHosts {
				go o.prepareRemaining(keyspace, query, plan, h.Endpoint())
			}
			return entry, nil
		}

		if e.HasCode(ErrorPrepareFailed) {
			return nil, e
		}

		last = e
	}

	if last != nil {
		return nil, ErrorNoHost.Error(last)
	}

	return nil, ErrorNoHost.Error(nil)
}

func (o *cache) prepareOn(ctx context.Context, c cqltrp.Connection, keyspace, query string) (*Entry, liberr.Error) {
	in, e := c.Request(ctx, &cqlmsg.Prepare{Query: query})
	if e != nil {
		return nil, e
	}

	switch m := in.Message.(type) {
	case *cqlmsg.PreparedResult:
		return &Entry{
			Keyspace:      keyspace,
			Query:         query,
			ID:            m.ID,
			Variables:     m.Variables,
			ResultColumns: m.ResultColumns,
		}, nil

	case *cqlmsg.Error:
		return nil, ErrorPrepareFailed.Error(m)
	}

	return nil, ErrorPrepareFailed.Error(nil)
}

// prepareRemaining runs the best-effort prepare-on-all pass after the
// primary prepare completed; failures are only logged and the user
// call is never blocked.
func (o *cache) prepareRemaining(keyspace, query string, plan cqlbal.Plan, done string) {
	ctx, cancel := context.WithTimeout(context.Background(), prepareAllTimeout)
	defer cancel()

	for {
		h, ok := plan.Next()
		if !ok {
			return
		}

		if h.Endpoint() == done {
			continue
		}

		c, e := o.deps.Borrow(h)
		if e == nil {
			_, e = o.prepareOn(ctx, c, keyspace, query)
		}

		if e != nil {
			o.logger().Entry(loglvl.InfoLevel, "eager prepare on host failed").
				FieldAdd("endpoint", h.Endpoint()).
				ErrorAdd(true, e).Log()
		}
	}
}

// PrepareOn re-prepares in place on one connection and refreshes the
// cache, for the unprepared re-preparation flow.
func (o *cache) PrepareOn(ctx context.Context, c cqltrp.Connection, keyspace, query string) (*Entry, liberr.Error) {
	e, er := o.prepareOn(ctx, c, keyspace, query)
	if er != nil {
		return nil, er
	}

	o.store(cacheKey(keyspace, query), e)
	return e, nil
}

func (o *cache) ByID(id []byte) (*Entry, bool) {
	o.m.RLock()
	defer o.m.RUnlock()

	e, ok := o.byID[idKey(id)]
	return e, ok
}

func (o *cache) Invalidate(keyspace, query string) {
	o.m.Lock()
	defer o.m.Unlock()

	key := cacheKey(keyspace, query)

	if e, ok := o.entries[key]; ok {
		delete(o.byID, idKey(e.ID))
		delete(o.entries, key)
	}
}

func (o *cache) Entries() []*Entry {
	o.m.RLock()
	defer o.m.RUnlock()

	out := make([]*Entry, 0, len(o.entries))
	for _, e := range o.entries {
		out = append(out, e)
	}

	return out
}

func (o *cache) Len() int {
	o.m.RLock()
	defer o.m.RUnlock()

	return len(o.entries)
}

func (o *cache) Close() {
	o.m.Lock()
	defer o.m.Unlock()

	o.closed = true
	o.entries = make(map[string]*Entry)
	o.byID = make(map[string]*Entry)
}
