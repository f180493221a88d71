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
	"time"

	cqlhst "github.com/nabbar/cqldriver/hostinfo"
	cqlrcn "github.com/nabbar/cqldriver/policy/reconnect"
	cqltrp "github.com/nabbar/cqldriver/transport"
	libatm "github.com/nabbar/golib/atomic"
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
)

// Config sizes one host pool.
type Config struct {
	// CoreConnections is the target size per distance.
	CoreConnections map[cqlhst.Distance]int

	// MaxConnections caps growth per distance.
	MaxConnections map[cqlhst.Distance]int

	// MaxRequestsPerConnection triggers expansion when every current
	// connection reports at least this load.
	MaxRequestsPerConnection int

	// Warmup opens core connections eagerly at pool creation.
	Warmup bool

	// Conn is the socket configuration of every pool connection.
	Conn cqltrp.Config

	// Reconnect schedules the attempts after a connection dies.
	Reconnect cqlrcn.Policy
}

func (c Config) withDefaults() Config {
	if c.CoreConnections == nil {
		c.CoreConnections = map[cqlhst.Distance]int{
			cqlhst.DistanceLocal:  2,
			cqlhst.DistanceRemote: 1,
		}
	}

	if c.MaxConnections == nil {
		c.MaxConnections = map[cqlhst.Distance]int{
			cqlhst.DistanceLocal:  8,
			cqlhst.DistanceRemote: 2,
		}
	}

	if c.MaxRequestsPerConnection <= 0 {
		c.MaxRequestsPerConnection = 1024
	}

	if c.Reconnect == nil {
		c.Reconnect = cqlrcn.NewExponential(time.Second, time.Minute, false)
	}

	return c
}

// Pool is the per-host set of connections. Connections never outlive
// the pool; shutdown drains them cooperatively.
type Pool interface {
	// Host returns the owning host.
	Host() cqlhst.Host

	// Distance returns the current load-balancer classification.
	Distance() cqlhst.Distance

	// SetDistance reclassifies the host: an ignored pool drains its
	// connections, a promoted one refills to core size.
	SetDistance(d cqlhst.Distance)

	// Borrow returns the ready connection with the least in-flight
	// requests, ties broken round-robin. Saturation triggers an
	// asynchronous expansion and reports ErrorPoolSaturated.
	Borrow() (cqltrp.Connection, liberr.Error)

	// Warmup opens connections up to the core size.
	Warmup(ctx context.Context) liberr.Error

	// SetKeyspace records the keyspace pinned on borrowed connections.
	SetKeyspace(ks string)

	// Size returns the number of live connections.
	Size() int

	// InFlight sums the in-flight requests of all connections.
	InFlight() int

	// OnDown registers the hook fired when the pool loses its last
	// connection and the scheduled reconnection attempt fails too.
	OnDown(fn func(h cqlhst.Host))

	// OnUp registers the hook fired when an empty pool regains a
	// connection.
	OnUp(fn func(h cqlhst.Host))

	// Shutdown closes every connection and cancels reconnections.
	Shutdown(ctx context.Context) error
}

// New returns a pool for the given host. With cfg.Warmup the core
// connections are opened before returning.
func New(ctx context.Context, h cqlhst.Host, cfg Config, log liblog.FuncLog) (Pool, liberr.Error) {
	if h == nil {
		return nil, ErrorParamEmpty.Error(nil)
	}

	p := &pool{
		ctx:      ctx,
		host:     h,
		cfg:      cfg.withDefaults(),
		log:      log,
		distance: cqlhst.DistanceLocal,
		keyspace: libatm.NewValue[string](),
	}

	p.keyspace.Store(cfg.Conn.Keyspace)

	if p.cfg.Warmup {
		if e := p.Warmup(ctx); e != nil {
			return nil, e
		}
	}

	return p, nil
}
