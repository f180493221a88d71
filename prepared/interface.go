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
	"encoding/hex"
	"sync"

	cqlcdc "github.com/nabbar/cqldriver/codec"
	cqlhst "github.com/nabbar/cqldriver/hostinfo"
	cqlbal "github.com/nabbar/cqldriver/policy/balance"
	cqltrp "github.com/nabbar/cqldriver/transport"
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	"golang.org/x/sync/singleflight"
)

// Entry is one prepared statement known to the cache.
type Entry struct {
	Keyspace      string
	Query         string
	ID            []byte
	Variables     *cqlcdc.ResultMetadata
	ResultColumns *cqlcdc.ResultMetadata
}

// Deps are the seams the cache drives preparation through.
type Deps struct {
	// NewPlan yields the candidate hosts a prepare may run on.
	NewPlan func(keyspace string) cqlbal.Plan

	// Borrow returns a connection of the given host's pool.
	Borrow func(h cqlhst.Host) (cqltrp.Connection, liberr.Error)

	// PrepareOnAllHosts eagerly prepares on the remaining plan hosts
	// after the primary prepare succeeds, best effort.
	PrepareOnAllHosts bool

	Log liblog.FuncLog
}

// Cache is the query-id registry with at-most-once concurrent
// preparation per (keyspace, query).
type Cache interface {
	// Get resolves the prepared entry, preparing it first when needed.
	// Concurrent callers of the same key share a single PREPARE and
	// receive the same outcome.
	Get(ctx context.Context, keyspace, query string) (*Entry, liberr.Error)

	// ByID returns the entry indexed by query id, used when a server
	// answers "unprepared" for an executed id.
	ByID(id []byte) (*Entry, bool)

	// PrepareOn re-prepares a known query in place on one connection,
	// for the unprepared re-preparation flow.
	PrepareOn(ctx context.Context, c cqltrp.Connection, keyspace, query string) (*Entry, liberr.Error)

	// Invalidate drops one entry.
	Invalidate(keyspace, query string)

	// Entries snapshots the cached entries, for the re-prepare on up
	// flow.
	Entries() []*Entry

	// Len returns the number of cached entries.
	Len() int

	// Close empties the cache and rejects further gets.
	Close()
}

// New returns an empty prepared-statement cache.
func New(deps Deps, log liblog.FuncLog) Cache {
	if deps.Log == nil {
		deps.Log = log
	}

	return &cache{
		deps:    deps,
		log:     log,
		entries: make(map[string]*Entry),
		byID:    make(map[string]*Entry),
	}
}

type cache struct {
	m sync.RWMutex
	g singleflight.Group

	deps Deps
	log  liblog.FuncLog

	entries map[string]*Entry
	byID    map[string]*Entry
	closed  bool
}

func cacheKey(keyspace, query string) string {
	return keyspace + "\x00" + query
}

func idKey(id []byte) string {
	return hex.EncodeToString(id)
}
