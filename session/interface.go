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

	cqlhst "github.com/nabbar/cqldriver/hostinfo"
	cqlprp "github.com/nabbar/cqldriver/prepared"
	cqlrqt "github.com/nabbar/cqldriver/request"
	libatm "github.com/nabbar/golib/atomic"
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
)

// RowFunc consumes one decoded row; returning false stops iteration.
type RowFunc func(row []interface{}) bool

// Session glues the host registry, control connection, pools, prepared
// cache and executor behind the user-facing call surface.
type Session interface {
	// Connect discovers the cluster and creates the host pools; their
	// connections are opened up front only when Pooling.Warmup is set.
	Connect(ctx context.Context) liberr.Error

	// Execute runs one query to a terminal outcome. A successful USE
	// mutates the session's active keyspace.
	Execute(ctx context.Context, query string, params []interface{}, opts *cqlrqt.Options) (*cqlrqt.Result, liberr.Error)

	// Batch runs several statements as one batch request.
	Batch(ctx context.Context, entries []cqlrqt.BatchEntry, opts *cqlrqt.Options) (*cqlrqt.Result, liberr.Error)

	// EachRow pages through the full result set, invoking fn per row.
	EachRow(ctx context.Context, query string, params []interface{}, opts *cqlrqt.Options, fn RowFunc) liberr.Error

	// Prepare resolves a statement through the prepared cache.
	Prepare(ctx context.Context, query string) (*cqlprp.Entry, liberr.Error)

	// Keyspace returns the session's active keyspace.
	Keyspace() string

	// Registry exposes the host registry for observers.
	Registry() cqlhst.Registry

	// AwaitSchemaAgreement blocks until the cluster converged on one
	// schema version.
	AwaitSchemaAgreement(ctx context.Context) liberr.Error

	// Shutdown is idempotent: it rejects new requests, cancels every
	// running attempt, drains the pools and stops all timers.
	Shutdown(ctx context.Context) error
}

// New validates the config and builds a disconnected session.
func New(cfg ClusterConfig, log liblog.FuncLog) (Session, liberr.Error) {
	if e := cfg.Validate(); e != nil {
		return nil, e
	}

	s := &session{
		cfg: cfg,
		log: log,
		reg: cqlhst.NewRegistry(),
		ks:  libatm.NewValue[string](),
	}

	s.ks.Store(cfg.QueryOptions.Keyspace)

	return s, nil
}
