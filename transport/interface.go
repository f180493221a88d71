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
	"crypto/tls"
	"time"

	cqlaut "github.com/nabbar/cqldriver/auth"
	cqlcmp "github.com/nabbar/cqldriver/frame/compress"
	cqlhst "github.com/nabbar/cqldriver/hostinfo"
	cqlmsg "github.com/nabbar/cqldriver/message"
	cqlptc "github.com/nabbar/cqldriver/protocol"
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	libsiz "github.com/nabbar/golib/size"
)

const (
	// DefaultConnectTimeout bounds the dial and startup negotiation.
	DefaultConnectTimeout = 5 * time.Second
	// DefaultReadTimeout is the per-attempt deadline when none is set.
	DefaultReadTimeout = 12 * time.Second
	// DefaultHeartbeatInterval is the idle delay before a probe is sent.
	DefaultHeartbeatInterval = 30 * time.Second
	// DefaultCoalesceDelay is how long small frames may wait for company.
	DefaultCoalesceDelay = 200 * time.Microsecond
)

// DefaultCoalesceSize flushes the write queue once reached.
var DefaultCoalesceSize = 64 * libsiz.SizeKilo

// Config carries the socket-level options of one connection.
type Config struct {
	Version           cqlptc.Version
	Compressor        cqlcmp.Compressor
	AuthProvider      cqlaut.Provider
	TLS               *tls.Config
	Keyspace          string
	ConnectTimeout    time.Duration
	ReadTimeout       time.Duration
	HeartbeatInterval time.Duration

	// DefunctThreshold is the cumulative count of timed-out requests
	// after which the connection is declared defunct. Zero disables
	// the rule.
	DefunctThreshold int

	CoalesceDelay time.Duration
	CoalesceSize  libsiz.Size

	// EventHandler receives server push events on a registered
	// connection.
	EventHandler func(ev *cqlmsg.Event)
}

func (c Config) withDefaults() Config {
	if c.Version == 0 {
		c.Version = cqlptc.VersionMax
	}
	if c.Compressor == nil {
		c.Compressor = cqlcmp.None()
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.CoalesceDelay <= 0 {
		c.CoalesceDelay = DefaultCoalesceDelay
	}
	if c.CoalesceSize <= 0 {
		c.CoalesceSize = DefaultCoalesceSize
	}

	return c
}

// Callback receives the terminal outcome of one in-flight request,
// invoked exactly once.
type Callback func(in *cqlmsg.Inbound, err liberr.Error)

// CancelFunc releases the stream id and in-flight entry of a pending
// request without waiting for its response.
type CancelFunc func()

// Connection is one multiplexed transport to one node. It writes
// frames through a coalescing queue, demuxes responses by stream id,
// probes idle sockets and completes every in-flight callback exactly
// once on any terminal path.
type Connection interface {
	// Endpoint returns the remote "host:port".
	Endpoint() string

	// Host returns the owning host.
	Host() cqlhst.Host

	// Version returns the negotiated protocol version.
	Version() cqlptc.Version

	// Keyspace returns the keyspace currently pinned, if any.
	Keyspace() string

	// SetKeyspace pins the connection on the given keyspace.
	SetKeyspace(ctx context.Context, ks string) liberr.Error

	// Send enqueues a request. The callback fires with the response,
	// a timeout after the given deadline, or a socket error. The
	// returned cancel releases the stream id early; the callback is
	// then never invoked.
	Send(req cqlmsg.Request, deadline time.Duration, cb Callback) (CancelFunc, liberr.Error)

	// Request performs a synchronous exchange bounded by the context.
	Request(ctx context.Context, req cqlmsg.Request) (*cqlmsg.Inbound, liberr.Error)

	// InFlight returns the number of requests awaiting a response.
	InFlight() int

	// TimedOut returns the cumulative count of per-attempt timeouts.
	TimedOut() int

	// IsReady reports whether the connection accepts new requests.
	IsReady() bool

	// IsDefunct reports whether the connection hit a terminal error.
	IsDefunct() bool

	// OnClose registers a hook invoked once when the connection
	// terminates for any reason.
	OnClose(fn func(c Connection, err error))

	// Close performs an orderly shutdown.
	Close() error
}

// Dial opens, negotiates and authenticates a connection to the host,
// then starts its read and write loops.
func Dial(ctx context.Context, h cqlhst.Host, cfg Config, log liblog.FuncLog) (Connection, liberr.Error) {
	if h == nil {
		return nil, ErrorParamEmpty.Error(nil)
	}

	return dial(ctx, h, cfg.withDefaults(), log)
}
