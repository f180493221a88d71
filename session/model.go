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

package session

import (
	"context"
	"sync"
	"time"

	cqlctl "github.com/nabbar/cqldriver/control"
	cqlcmp "github.com/nabbar/cqldriver/frame/compress"
	cqlhst "github.com/nabbar/cqldriver/hostinfo"
	cqlbal "github.com/nabbar/cqldriver/policy/balance"
	cqlrcn "github.com/nabbar/cqldriver/policy/reconnect"
	cqlrty "github.com/nabbar/cqldriver/policy/retry"
	cqlspc "github.com/nabbar/cqldriver/policy/speculate"
	cqltsg "github.com/nabbar/cqldriver/policy/timestamp"
	cqlpol "github.com/nabbar/cqldriver/pool"
	cqlprp "github.com/nabbar/cqldriver/prepared"
	cqlptc "github.com/nabbar/cqldriver/protocol"
	cqlrqt "github.com/nabbar/cqldriver/request"
	cqltkn "github.com/nabbar/cqldriver/token"
	cqltrp "github.com/nabbar/cqldriver/transport"
	libatm "github.com/nabbar/golib/atomic"
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
)

type session struct {
	m sync.Mutex

	cfg ClusterConfig
	log liblog.FuncLog
	reg cqlhst.Registry

	ctx    context.Context
	cancel context.CancelFunc

	ctl      cqlctl.Control
	balancer cqlbal.Balancer
	oracle   cqltkn.ReplicaOracle
	cache    cqlprp.Cache
	exec     cqlrqt.Executor
	pools    map[string]cqlpol.Pool
	ks       libatm.Value[string]

	connected bool
	closed    bool
	closeOnce sync.Once
}

func (o *session) logger() liblog.Logger {
	if o.log != nil {
		if l := o.log(); l != nil {
			return l
		}
	}

	return liblog.GetDefault()
}

func (o *session) Keyspace() string {
	return o.ks.Load()
}

func (o *session) Registry() cqlhst.Registry {
	return o.reg
}

// transportConfig derives the per-connection settings from the
// validated cluster config and the negotiated protocol version.
func (o *session) transportConfig(version cqlptc.Version) cqltrp.Config {
	cfg := cqltrp.Config{
		Version:           version,
		AuthProvider:      o.cfg.AuthProvider,
		TLS:               o.cfg.SSL,
		Keyspace:          o.Keyspace(),
		ConnectTimeout:    o.cfg.SocketOptions.ConnectTimeout.Time(),
		ReadTimeout:       o.cfg.SocketOptions.ReadTimeout.Time(),
		HeartbeatInterval: o.cfg.Pooling.HeartBeatInterval.Time(),
		DefunctThreshold:  o.cfg.SocketOptions.DefunctReadTimeoutThreshold,
	}

	if o.cfg.Compression == "lz4" {
		cfg.Compressor = cqlcmp.LZ4()
	}

	return cfg
}

func (o *session) poolConfig(version cqlptc.Version) cqlpol.Config {
	core := map[cqlhst.Distance]int{}
	max := map[cqlhst.Distance]int{}

	for k, v := range o.cfg.Pooling.CoreConnectionsPerHost {
		switch k {
		case "local":
			core[cqlhst.DistanceLocal] = v
		case "remote":
			core[cqlhst.DistanceRemote] = v
		}
	}

	for k, v := range o.cfg.Pooling.MaxConnectionsPerHost {
		switch k {
		case "local":
			max[cqlhst.DistanceLocal] = v
		case "remote":
			max[cqlhst.DistanceRemote] = v
		}
	}

	cfg := cqlpol.Config{
		MaxRequestsPerConnection: o.cfg.Pooling.MaxRequestsPerConnection,
		Warmup:                   false,
		Conn:                     o.transportConfig(version),
		Reconnect:                o.reconnection(),
	}

	if len(core) > 0 {
		cfg.CoreConnections = core
	}

	if len(max) > 0 {
		cfg.MaxConnections = max
	}

	return cfg
}

func (o *session) reconnection() cqlrcn.Policy {
	if o.cfg.Policies.Reconnection != nil {
		return o.cfg.Policies.Reconnection
	}

	return cqlrcn.NewExponential(time.Second, time.Minute, false)
}

func (o *session) balancerOrDefault() cqlbal.Balancer {
	if o.cfg.Policies.LoadBalancing != nil {
		return o.cfg.Policies.LoadBalancing
	}

	if o.cfg.LocalDataCenter != "" {
		return cqlbal.NewTokenAware(cqlbal.NewDCAware(o.cfg.LocalDataCenter, 0))
	}

	return cqlbal.NewTokenAware(cqlbal.NewRoundRobin())
}

// Connect starts the control connection, reconciles the topology,
// initializes the balancer and opens the per-host pools.
func (o *session) Connect(ctx context.Context) liberr.Error {
	o.m.Lock()

	if o.closed {
		o.m.Unlock()
		return ErrorShutdown.Error(nil)
	}

	if o.connected {
		o.m.Unlock()
		return nil
	}

	o.ctx, o.cancel = context.WithCancel(ctx)
	o.pools = make(map[string]cqlpol.Pool)
	o.m.Unlock()

	ctl, e := cqlctl.New(o.reg, cqlctl.Config{
		ContactPoints: o.cfg.ContactPoints,
		Port:          o.cfg.Port,
		MaxVersion:    o.cfg.version(),
		Translator:    o.cfg.Policies.AddressTranslator,
		Conn:          o.transportConfig(o.cfg.version()),
		Reconnect:     o.reconnection(),
	}, o.log)
	if e != nil {
		return e
	}

	if e = ctl.Start(o.ctx); e != nil {
		return ErrorConnect.Error(e)
	}

	version := ctl.Version()

	o.m.Lock()
	o.ctl = ctl
	o.m.Unlock()

	hosts := o.reg.Hosts()

	oracle := o.cfg.Oracle
	if oracle == nil {
		rf := o.cfg.ReplicationFactor
		if rf <= 0 {
			rf = 1
		}
		oracle = cqltkn.RingFromHosts(hosts, rf)
	}

	balancer := o.balancerOrDefault()
	if e = balancer.Init(hosts, oracle); e != nil {
		ctl.Stop()
		return e
	}

	o.m.Lock()
	o.balancer = balancer
	o.oracle = oracle
	o.m.Unlock()

	o.reg.RegisterListener(o.onHostEvent)

	for _, h := range hosts {
		o.ensurePool(h, version)
	}

	if o.cfg.Pooling.Warmup {
		o.warmupPools(o.ctx)
	}

	cache := cqlprp.New(cqlprp.Deps{
		NewPlan: func(keyspace string) cqlbal.Plan {
			return balancer.NewQueryPlan(cqlbal.RoutingInfo{Keyspace: keyspace})
		},
		Borrow:            o.borrow,
		PrepareOnAllHosts: o.cfg.PrepareOnAllHosts,
	}, o.log)

	exec := cqlrqt.New(cqlrqt.Deps{
		Version:            version,
		DefaultConsistency: o.cfg.consistency(),
		ReadTimeout:        o.cfg.SocketOptions.ReadTimeout.Time(),
		Keyspace:           o.Keyspace,
		Plan:               balancer.NewQueryPlan,
		Borrow:             o.borrow,
		Prepared:           cache,
		Retry:              o.retryPolicy(),
		Speculate:          o.speculative(),
		Timestamp:          o.timestamps(),
		Tracker:            o.cfg.RequestTracker,
		Profiles:           o.cfg.Profiles,
		Log:                o.log,
	})

	o.m.Lock()
	o.cache = cache
	o.exec = exec
	o.connected = true
	o.m.Unlock()

	o.logger().Entry(loglvl.InfoLevel, "session connected").
		FieldAdd("hosts", len(hosts)).
		FieldAdd("version", version.String()).Log()

	return nil
}

func (o *session) retryPolicy() cqlrty.Policy {
	if o.cfg.Policies.Retry != nil {
		return o.cfg.Policies.Retry
	}

	return cqlrty.NewDefault()
}

func (o *session) speculative() cqlspc.Policy {
	if o.cfg.Policies.SpeculativeExecution != nil {
		return o.cfg.Policies.SpeculativeExecution
	}

	return cqlspc.NewNone()
}

func (o *session) timestamps() cqltsg.Generator {
	if o.cfg.Policies.TimestampGeneration != nil {
		return o.cfg.Policies.TimestampGeneration
	}

	return cqltsg.NewMonotonic(cqltsg.MonotonicConfig{WarningThreshold: time.Second}, o.log)
}

// ensurePool creates the pool of a host on first sight, classified by
// the balancer's distance.
func (o *session) ensurePool(h cqlhst.Host, version cqlptc.Version) cqlpol.Pool {
	o.m.Lock()

	if p, ok := o.pools[h.Endpoint()]; ok {
		o.m.Unlock()
		return p
	}

	if o.closed {
		o.m.Unlock()
		return nil
	}

	balancer := o.balancer
	o.m.Unlock()

	d := cqlhst.DistanceLocal
	if balancer != nil {
		d = balancer.Distance(h)
	}

	p, e := cqlpol.New(o.ctx, h, o.poolConfig(version), o.log)
	if e != nil {
		o.logger().Entry(loglvl.WarnLevel, "unable to create host pool").
			FieldAdd("endpoint", h.Endpoint()).
			ErrorAdd(true, e).Log()
		return nil
	}

	p.SetDistance(d)
	p.SetKeyspace(o.Keyspace())

	p.OnDown(func(hh cqlhst.Host) {
		_ = o.reg.MarkDown(hh.Endpoint())
	})

	p.OnUp(func(hh cqlhst.Host) {
		_ = o.reg.MarkUp(hh.Endpoint())

		if o.cfg.RePrepareOnUp {
			go o.rePrepare(hh)
		}
	})

	o.m.Lock()
	if o.closed {
		o.m.Unlock()
		_ = p.Shutdown(o.ctx)
		return nil
	}
	o.pools[h.Endpoint()] = p
	o.m.Unlock()

	return p
}

func (o *session) warmupPools(ctx context.Context) {
	o.m.Lock()
	pools := make([]cqlpol.Pool, 0, len(o.pools))
	for _, p := range o.pools {
		pools = append(pools, p)
	}
	o.m.Unlock()

	for _, p := range pools {
		if e := p.Warmup(ctx); e != nil {
			o.logger().Entry(loglvl.WarnLevel, "pool warmup failed").
				FieldAdd("endpoint", p.Host().Endpoint()).
				ErrorAdd(true, e).Log()
		} else {
			_ = o.reg.MarkUp(p.Host().Endpoint())
		}
	}
}

// borrow resolves the pool of a host and borrows one connection.
func (o *session) borrow(h cqlhst.Host) (cqltrp.Connection, liberr.Error) {
	o.m.Lock()
	p, ok := o.pools[h.Endpoint()]
	version := cqlptc.VersionMax
	if o.ctl != nil {
		version = o.ctl.Version()
	}
	closed := o.closed
	o.m.Unlock()

	if closed {
		return nil, ErrorShutdown.Error(nil)
	}

	if !ok {
		if p = o.ensurePool(h, version); p == nil {
			return nil, ErrorNotConnected.Error(nil)
		}
	}

	return p.Borrow()
}

// onHostEvent reacts to registry notifications: pools follow the host
// set, the balancer keeps its view current.
func (o *session) onHostEvent(ev cqlhst.Event) {
	o.m.Lock()
	balancer := o.balancer
	closed := o.closed
	version := cqlptc.VersionMax
	if o.ctl != nil {
		version = o.ctl.Version()
	}
	o.m.Unlock()

	if closed {
		return
	}

	if balancer != nil {
		balancer.OnHostEvent(ev)
	}

	switch ev.Kind {
	case cqlhst.EventHostAdd:
		o.ensurePool(ev.Host, version)

	case cqlhst.EventHostRemove:
		o.m.Lock()
		p, ok := o.pools[ev.Host.Endpoint()]
		if ok {
			delete(o.pools, ev.Host.Endpoint())
		}
		o.m.Unlock()

		if ok {
			_ = p.Shutdown(o.ctx)
		}
	}
}

// rePrepare pushes the cached statements onto a host that came back.
func (o *session) rePrepare(h cqlhst.Host) {
	o.m.Lock()
	cache := o.cache
	p := o.pools[h.Endpoint()]
	o.m.Unlock()

	if cache == nil || p == nil {
		return
	}

	c, e := p.Borrow()
	if e != nil {
		return
	}

	ctx, cancel := context.WithTimeout(o.ctx, 30*time.Second)
	defer cancel()

	for _, en := range cache.Entries() {
		_, _ = cache.PrepareOn(ctx, c, en.Keyspace, en.Query)
	}
}

func (o *session) gate() (cqlrqt.Executor, liberr.Error) {
	o.m.Lock()
	defer o.m.Unlock()

	if o.closed {
		return nil, ErrorShutdown.Error(nil)
	}

	if !o.connected || o.exec == nil {
		return nil, ErrorNotConnected.Error(nil)
	}

	return o.exec, nil
}

// mergeDefaults folds the session-wide query options into the
// per-request options.
func (o *session) mergeDefaults(opts *cqlrqt.Options) *cqlrqt.Options {
	merged := cqlrqt.Options{}
	if opts != nil {
		merged = *opts
	}

	if !merged.Prepare && o.cfg.QueryOptions.Prepare {
		merged.Prepare = true
	}

	if !merged.Idempotent && o.cfg.QueryOptions.IsIdempotent {
		merged.Idempotent = true
	}

	if merged.FetchSize == 0 {
		merged.FetchSize = o.cfg.QueryOptions.FetchSize
	}

	return &merged
}

func (o *session) Execute(ctx context.Context, query string, params []interface{}, opts *cqlrqt.Options) (*cqlrqt.Result, liberr.Error) {
	exec, e := o.gate()
	if e != nil {
		return nil, e
	}

	res, e := exec.Execute(ctx, query, params, o.mergeDefaults(opts))
	if e != nil {
		return nil, e
	}

	if res.Keyspace != "" {
		o.setKeyspace(res.Keyspace)
	}

	return res, nil
}

func (o *session) Batch(ctx context.Context, entries []cqlrqt.BatchEntry, opts *cqlrqt.Options) (*cqlrqt.Result, liberr.Error) {
	exec, e := o.gate()
	if e != nil {
		return nil, e
	}

	return exec.Batch(ctx, entries, o.mergeDefaults(opts))
}

func (o *session) EachRow(ctx context.Context, query string, params []interface{}, opts *cqlrqt.Options, fn RowFunc) liberr.Error {
	if fn == nil {
		return ErrorParamEmpty.Error(nil)
	}

	merged := o.mergeDefaults(opts)

	for {
		res, e := o.Execute(ctx, query, params, merged)
		if e != nil {
			return e
		}

		rows, e := res.Rows()
		if e != nil {
			return e
		}

		for _, row := range rows {
			if !fn(row) {
				return nil
			}
		}

		state := res.PageState()
		if len(state) == 0 {
			return nil
		}

		next := *merged
		next.PageState = state
		merged = &next
	}
}

func (o *session) Prepare(ctx context.Context, query string) (*cqlprp.Entry, liberr.Error) {
	o.m.Lock()
	cache := o.cache
	closed := o.closed
	o.m.Unlock()

	if closed {
		return nil, ErrorShutdown.Error(nil)
	}

	if cache == nil {
		return nil, ErrorNotConnected.Error(nil)
	}

	return cache.Get(ctx, o.Keyspace(), query)
}

// setKeyspace propagates a successful USE to the pools so subsequent
// borrows pin their connection.
func (o *session) setKeyspace(ks string) {
	o.ks.Store(ks)

	o.m.Lock()
	pools := make([]cqlpol.Pool, 0, len(o.pools))
	for _, p := range o.pools {
		pools = append(pools, p)
	}
	o.m.Unlock()

	for _, p := range pools {
		p.SetKeyspace(ks)
	}
}

func (o *session) AwaitSchemaAgreement(ctx context.Context) liberr.Error {
	o.m.Lock()
	ctl := o.ctl
	o.m.Unlock()

	if ctl == nil {
		return ErrorNotConnected.Error(nil)
	}

	return ctl.AwaitSchemaAgreement(ctx)
}

// Shutdown disables new requests, cancels running attempts through the
// session context, drains the pools and stops every timer.
func (o *session) Shutdown(ctx context.Context) error {
	o.closeOnce.Do(func() {
		o.m.Lock()
		o.closed = true
		ctl := o.ctl
		cache := o.cache
		cancel := o.cancel
		pools := o.pools
		o.pools = make(map[string]cqlpol.Pool)
		o.m.Unlock()

		if ctl != nil {
			ctl.Stop()
		}

		for _, p := range pools {
			_ = p.Shutdown(ctx)
		}

		if cache != nil {
			cache.Close()
		}

		if cancel != nil {
			cancel()
		}

		o.reg.Close()

		if o.cfg.RequestTracker != nil {
			o.cfg.RequestTracker.Shutdown()
		}

		o.logger().Entry(loglvl.InfoLevel, "session shut down").Log()
	})

	return nil
}
