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

package request

import (
	"context"
	"sync"
	"time"

	cqlcdc "github.com/nabbar/cqldriver/codec"
	cqlhst "github.com/nabbar/cqldriver/hostinfo"
	cqlmsg "github.com/nabbar/cqldriver/message"
	cqlbal "github.com/nabbar/cqldriver/policy/balance"
	cqlrty "github.com/nabbar/cqldriver/policy/retry"
	cqlspc "github.com/nabbar/cqldriver/policy/speculate"
	cqltsg "github.com/nabbar/cqldriver/policy/timestamp"
	cqlprp "github.com/nabbar/cqldriver/prepared"
	cqlptc "github.com/nabbar/cqldriver/protocol"
	cqltkn "github.com/nabbar/cqldriver/token"
	cqltrk "github.com/nabbar/cqldriver/tracker"
	cqltrp "github.com/nabbar/cqldriver/transport"
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
)

// Deps are the collaborator seams of the executor.
type Deps struct {
	Version            cqlptc.Version
	DefaultConsistency cqlptc.Consistency
	ReadTimeout        time.Duration

	// Keyspace resolves the session's active keyspace.
	Keyspace func() string

	// Plan yields a fresh candidate iterator; every execution chain
	// obtains its own independent plan snapshot.
	Plan func(ri cqlbal.RoutingInfo) cqlbal.Plan

	// Borrow returns a pooled connection of the given host.
	Borrow func(h cqlhst.Host) (cqltrp.Connection, liberr.Error)

	Prepared  cqlprp.Cache
	Retry     cqlrty.Policy
	Speculate cqlspc.Policy
	Timestamp cqltsg.Generator
	Tracker   cqltrk.Tracker
	Profiles  map[string]*Profile

	Log liblog.FuncLog
}

// BatchEntry is one statement of a user batch call.
type BatchEntry struct {
	Query  string
	Params []interface{}
}

// Executor runs the single-request state machine: routing, host
// iteration, retry, speculation and timeout.
type Executor interface {
	Execute(ctx context.Context, query string, params []interface{}, opts *Options) (*Result, liberr.Error)
	Batch(ctx context.Context, entries []BatchEntry, opts *Options) (*Result, liberr.Error)
}

// New returns an executor over the given seams.
func New(deps Deps) Executor {
	return &executor{deps: deps}
}

type executor struct {
	deps Deps
}

// encodeValues serializes the user parameters, using the prepared
// variable metadata as type hints when available and deterministic
// guessing otherwise. The raw cells are kept for routing.
func (o *executor) encodeValues(params []interface{}, named map[string]interface{}, entry *cqlprp.Entry) ([]cqlmsg.Value, [][]byte, liberr.Error) {
	var hints []cqlcdc.ColumnInfo

	if entry != nil && entry.Variables != nil {
		hints = entry.Variables.Columns

		if named != nil {
			ordered, e := cqlcdc.ResolveNamed(entry.Variables, named, o.deps.Version)
			if e != nil {
				return nil, nil, e
			}
			params = ordered
		}
	}

	values := make([]cqlmsg.Value, 0, len(params))
	raw := make([][]byte, 0, len(params))

	for i, p := range params {
		if cqlcdc.IsUnset(p) {
			values = append(values, cqlmsg.UnsetValue())
			raw = append(raw, nil)
			continue
		}

		var t *cqlcdc.DataType
		if i < len(hints) {
			t = hints[i].Type
		} else {
			t = cqlcdc.GuessType(p)
		}

		if t == nil {
			return nil, nil, cqlcdc.ErrorTypeMismatch.Error(nil)
		}

		b, e := cqlcdc.Encode(p, t, o.deps.Version)
		if e != nil {
			return nil, nil, e
		}

		values = append(values, cqlmsg.BytesValue(b))
		raw = append(raw, b)
	}

	return values, raw, nil
}

// routing resolves the routing token: explicit token, explicit key,
// then the partition-key parameters of a prepared statement. An
// unprepared request only uses explicit routing metadata.
func (o *executor) routing(res *resolved, opts *Options, entry *cqlprp.Entry, raw [][]byte) (cqlbal.RoutingInfo, liberr.Error) {
	ri := cqlbal.RoutingInfo{Keyspace: res.keyspace}

	if opts == nil {
		return ri, nil
	}

	if opts.RoutingToken != nil {
		ri.Token, ri.HasToken = *opts.RoutingToken, true
		return ri, nil
	}

	if len(opts.RoutingKey) > 0 {
		ri.Token, ri.HasToken = cqltkn.Murmur3Token(opts.RoutingKey), true
		return ri, nil
	}

	indexes := opts.RoutingIndexes

	if len(indexes) == 0 && entry != nil && entry.Variables != nil {
		for _, idx := range entry.Variables.PKIndexes {
			indexes = append(indexes, int(idx))
		}
	}

	if len(indexes) == 0 {
		return ri, nil
	}

	components := make([][]byte, 0, len(indexes))
	for _, idx := range indexes {
		if idx < 0 || idx >= len(raw) || raw[idx] == nil {
			return ri, ErrorRoutingKey.Error(nil)
		}
		components = append(components, raw[idx])
	}

	ri.Token, ri.HasToken = cqltkn.Murmur3Token(cqltkn.ComposeRoutingKey(components)), true
	return ri, nil
}

// Execute runs one query or prepared execution to a terminal outcome.
func (o *executor) Execute(ctx context.Context, query string, params []interface{}, opts *Options) (*Result, liberr.Error) {
	if query == "" {
		return nil, ErrorParamEmpty.Error(nil)
	}

	res, e := o.resolve(opts)
	if e != nil {
		return nil, e
	}

	var entry *cqlprp.Entry

	if opts != nil && opts.Prepare && o.deps.Prepared != nil {
		if entry, e = o.deps.Prepared.Get(ctx, res.keyspace, query); e != nil {
			return nil, e
		}
	}

	var named map[string]interface{}
	if opts != nil {
		named = opts.NamedParams
	}

	values, raw, e := o.encodeValues(params, named, entry)
	if e != nil {
		return nil, e
	}

	ri, e := o.routing(res, opts, entry, raw)
	if e != nil {
		return nil, e
	}

	build := func(cons cqlptc.Consistency) cqlmsg.Request {
		p := cqlmsg.QueryParameters{
			Consistency:       cons,
			Values:            values,
			PageSize:          res.fetchSize,
			PagingState:       res.pageState,
			SerialConsistency: res.serial,
			HasSerial:         res.hasSerial,
			Timestamp:         res.timestamp,
		}

		if entry != nil {
			p.SkipMetadata = entry.ResultColumns != nil && len(entry.ResultColumns.Columns) > 0
			return &cqlmsg.Execute{ID: entry.ID, Params: p}
		}

		return &cqlmsg.Query{Query: query, Params: p}
	}

	r := o.newRunner(ctx, res, ri, entry, query, build)
	return r.run()
}

// Batch runs a batch of statements through the same state machine.
// The routing token of a logged batch comes from the first statement
// carrying one.
func (o *executor) Batch(ctx context.Context, entries []BatchEntry, opts *Options) (*Result, liberr.Error) {
	if len(entries) == 0 {
		return nil, ErrorParamEmpty.Error(nil)
	}

	res, e := o.resolve(opts)
	if e != nil {
		return nil, e
	}

	items := make([]cqlmsg.BatchItem, 0, len(entries))

	ri := cqlbal.RoutingInfo{Keyspace: res.keyspace}

	for _, be := range entries {
		var entry *cqlprp.Entry

		if opts != nil && opts.Prepare && o.deps.Prepared != nil {
			if entry, e = o.deps.Prepared.Get(ctx, res.keyspace, be.Query); e != nil {
				return nil, e
			}
		}

		values, raw, er := o.encodeValues(be.Params, nil, entry)
		if er != nil {
			return nil, er
		}

		if !ri.HasToken {
			bri, er := o.routing(res, opts, entry, raw)
			if er == nil && bri.HasToken {
				ri = bri
			}
		}

		it := cqlmsg.BatchItem{Values: values}
		if entry != nil {
			it.ID = entry.ID
		} else {
			it.Query = be.Query
		}

		items = append(items, it)
	}

	kind := cqlptc.BatchLogged
	if !res.logged {
		kind = cqlptc.BatchUnlogged
	}

	build := func(cons cqlptc.Consistency) cqlmsg.Request {
		return &cqlmsg.Batch{
			Type:              kind,
			Items:             items,
			Consistency:       cons,
			SerialConsistency: res.serial,
			HasSerial:         res.hasSerial,
			Timestamp:         res.timestamp,
		}
	}

	r := o.newRunner(ctx, res, ri, nil, "batch", build)
	return r.run()
}

// runner is the mutable state of one request run shared by its
// execution chains. runCtx is cancelled on the terminal outcome so the
// losing chains abort their in-flight sends and release their stream
// ids promptly.
type runner struct {
	o      *executor
	ctx    context.Context
	runCtx context.Context
	abort  context.CancelFunc
	res    *resolved
	ri     cqlbal.RoutingInfo
	entry  *cqlprp.Entry
	query  string
	build  func(cons cqlptc.Consistency) cqlmsg.Request

	m        sync.Mutex
	tried    map[string]error
	attempts int
	specs    int
	chains   int
	finished bool

	outcome chan outcome
	stop    chan struct{}
}

type outcome struct {
	res *Result
	err liberr.Error
}

func (o *executor) newRunner(ctx context.Context, res *resolved, ri cqlbal.RoutingInfo, entry *cqlprp.Entry, query string, build func(cqlptc.Consistency) cqlmsg.Request) *runner {
	runCtx, abort := context.WithCancel(ctx)

	return &runner{
		o:       o,
		ctx:     ctx,
		runCtx:  runCtx,
		abort:   abort,
		res:     res,
		ri:      ri,
		entry:   entry,
		query:   query,
		build:   build,
		tried:   make(map[string]error),
		outcome: make(chan outcome, 1),
		stop:    make(chan struct{}),
	}
}

func (r *runner) run() (*Result, liberr.Error) {
	defer r.abort()

	r.launchChain()

	if r.res.idempotent {
		go r.speculate()
	}

	select {
	case out := <-r.outcome:
		return out.res, out.err

	case <-r.ctx.Done():
		r.finish(nil, ErrorNoHostAvailable.Error(r.ctx.Err()))
		out := <-r.outcome
		return out.res, out.err
	}
}

// speculate schedules additional chains from independent plan
// snapshots according to the policy.
func (r *runner) speculate() {
	plan := r.res.speculative.NewPlan(r.ri.Keyspace, r.query)

	for {
		d := plan.NextExecution()
		if d <= 0 {
			return
		}

		select {
		case <-r.stop:
			return

		case <-time.After(d):
			if r.isDone() {
				return
			}

			r.m.Lock()
			r.specs++
			r.m.Unlock()

			r.launchChain()
		}
	}
}

func (r *runner) launchChain() {
	r.m.Lock()
	r.chains++
	r.m.Unlock()

	go r.chain()
}

func (r *runner) isDone() bool {
	r.m.Lock()
	defer r.m.Unlock()

	return r.finished
}

// finish delivers the terminal outcome exactly once and cancels the
// remaining chains.
func (r *runner) finish(res *Result, err liberr.Error) {
	r.m.Lock()
	if r.finished {
		r.m.Unlock()
		return
	}
	r.finished = true
	r.m.Unlock()

	close(r.stop)
	r.abort()
	r.outcome <- outcome{res: res, err: err}
}

func (r *runner) record(h cqlhst.Host, err error) {
	r.m.Lock()
	defer r.m.Unlock()

	r.tried[h.Endpoint()] = err
}

func (r *runner) info(queried string) ExecutionInfo {
	r.m.Lock()
	defer r.m.Unlock()

	tried := make(map[string]error, len(r.tried))
	for k, v := range r.tried {
		tried[k] = v
	}

	return ExecutionInfo{
		QueriedHost:           queried,
		TriedHosts:            tried,
		Attempts:              r.attempts,
		SpeculativeExecutions: r.specs,
	}
}

// chain drains one query plan: down hosts are skipped and recorded,
// borrow or socket failures advance to the next candidate, and the
// last active chain exhausting its plan surfaces NoHostAvailable with
// the per-host error map.
func (r *runner) chain() {
	plan := r.o.deps.Plan(r.ri)

	for !r.isDone() {
		h, ok := plan.Next()
		if !ok {
			break
		}

		if !h.IsUp() {
			r.record(h, ErrorNoHostAvailable.Error(nil))
			continue
		}

		c, e := r.o.deps.Borrow(h)
		if e != nil {
			r.record(h, e)
			continue
		}

		if r.sendOn(c, h) {
			return
		}
	}

	r.m.Lock()
	r.chains--
	last := r.chains == 0 && !r.finished
	r.m.Unlock()

	if last {
		inner := &NoHostAvailable{Inner: r.info("").TriedHosts}
		r.finish(nil, ErrorNoHostAvailable.Error(inner))
	}
}

// sendOn runs the attempt loop against one host: unprepared responses
// re-prepare in place and retry the same host once, retryable errors
// consult the policy, everything else is terminal. It reports whether
// the run reached a terminal outcome.
func (r *runner) sendOn(c cqltrp.Connection, h cqlhst.Host) bool {
	var (
		reprepared bool
		hostRetry  int
	)

	cons := r.res.consistency

	for !r.isDone() {
		r.m.Lock()
		r.attempts++
		r.m.Unlock()

		start := time.Now()

		actx, cancel := context.WithTimeout(r.runCtx, r.res.readTimeout)
		in, err := c.Request(actx, r.build(cons))
		cancel()

		latency := time.Since(start)

		if err != nil {
			// per-attempt timeout or socket error: next host
			r.track(h, err, latency)
			r.record(h, err)
			return false
		}

		m, isErr := in.Message.(*cqlmsg.Error)
		if !isErr {
			r.track(h, nil, latency)
			r.finish(newResult(in, r.info(h.Endpoint()), r.resultColumns(), r.o.deps.Version), nil)
			return true
		}

		r.track(h, m, latency)

		switch {
		case m.Code == cqlptc.ErrUnprepared && r.entry != nil && !reprepared:
			if r.o.deps.Prepared == nil {
				r.finish(nil, ErrorResponse.Error(m))
				return true
			}

			if _, e := r.o.deps.Prepared.PrepareOn(r.runCtx, c, r.entry.Keyspace, r.entry.Query); e != nil {
				r.record(h, e)
				return false
			}

			// same host, attempt counter grows, tried list does not
			reprepared = true
			continue

		case m.Code.IsNextHost():
			r.record(h, m)
			return false

		case m.Code.IsRetryDelegated():
			v := r.consult(m, hostRetry)
			hostRetry++

			switch v.Decision {
			case cqlrty.Retry:
				if v.Consistency != nil {
					cons = *v.Consistency
				}

				if v.SameHost {
					continue
				}

				r.record(h, m)
				return false

			case cqlrty.Ignore:
				r.finish(&Result{Info: r.info(h.Endpoint()), version: r.o.deps.Version}, nil)
				return true

			default:
				r.finish(nil, ErrorResponse.Error(m))
				return true
			}

		default:
			// syntax, invalid, unauthorized, config, already exists,
			// function failure, protocol: surfaced immediately
			r.finish(nil, ErrorResponse.Error(m))
			return true
		}
	}

	return true
}

func (r *runner) resultColumns() *cqlcdc.ResultMetadata {
	if r.entry == nil {
		return nil
	}
	return r.entry.ResultColumns
}

// consult maps the server error to the matching policy hook.
func (r *runner) consult(m *cqlmsg.Error, attempt int) cqlrty.Verdict {
	info := cqlrty.Info{
		Code:        m.Code,
		Err:         m,
		Consistency: m.Consistency,
		Received:    m.Received,
		BlockFor:    m.BlockFor,
		DataPresent: m.DataPresent,
		WriteType:   m.WriteType,
		Idempotent:  r.res.idempotent,
		Attempt:     attempt,
	}

	switch m.Code {
	case cqlptc.ErrReadTimeout, cqlptc.ErrReadFailure:
		return r.res.retry.OnReadTimeout(info)

	case cqlptc.ErrWriteTimeout, cqlptc.ErrWriteFailure:
		return r.res.retry.OnWriteTimeout(info)

	case cqlptc.ErrUnavailable:
		return r.res.retry.OnUnavailable(info)
	}

	return r.res.retry.OnRequestError(info)
}

func (r *runner) track(h cqlhst.Host, err error, latency time.Duration) {
	t := r.o.deps.Tracker
	if t == nil {
		return
	}

	if err != nil {
		t.OnError(h, r.query, len(r.query), err, latency)
		return
	}

	t.OnSuccess(h, r.query, len(r.query), 0, latency)
}
