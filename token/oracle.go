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

package token

import (
	"sort"

	cqlhst "github.com/nabbar/cqldriver/hostinfo"
)

// ReplicaOracle answers, per keyspace and token, the replica set
// computed by an external schema reader. The core treats keyspace
// replication strategies as opaque inputs.
type ReplicaOracle interface {
	// Replicas returns the replica hosts for the given keyspace and
	// token, primary first. An empty result means placement is unknown
	// and routing falls back to the child plan.
	Replicas(keyspace string, t Token) []cqlhst.Host
}

// RingEntry associates one ring position with its replica set.
type RingEntry struct {
	Token    Token
	Replicas []cqlhst.Host
}

// NewStaticRing builds an oracle over a fixed ring: a token is owned by
// the first entry with a position >= the token, wrapping around.
// Keyspace-specific placement is ignored, which fits single-strategy
// clusters and test fixtures.
func NewStaticRing(entries []RingEntry) ReplicaOracle {
	r := &staticRing{entries: make([]RingEntry, len(entries))}
	copy(r.entries, entries)

	sort.Slice(r.entries, func(i, j int) bool {
		return r.entries[i].Token < r.entries[j].Token
	})

	return r
}

type staticRing struct {
	entries []RingEntry
}

func (o *staticRing) Replicas(_ string, t Token) []cqlhst.Host {
	if len(o.entries) == 0 {
		return nil
	}

	i := sort.Search(len(o.entries), func(i int) bool {
		return o.entries[i].Token >= t
	})

	if i == len(o.entries) {
		i = 0
	}

	return o.entries[i].Replicas
}

// RingFromHosts builds a static ring from the opaque token strings of
// the registry snapshot, assigning each position the owning host and
// the following rf-1 distinct hosts as replicas.
func RingFromHosts(hosts []cqlhst.Host, rf int) ReplicaOracle {
	type pos struct {
		t Token
		h cqlhst.Host
	}

	var ring []pos

	for _, h := range hosts {
		for _, ts := range h.Tokens() {
			if t, ok := ParseToken(ts); ok {
				ring = append(ring, pos{t: t, h: h})
			}
		}
	}

	sort.Slice(ring, func(i, j int) bool {
		return ring[i].t < ring[j].t
	})

	if rf < 1 {
		rf = 1
	}

	entries := make([]RingEntry, 0, len(ring))

	for i, p := range ring {
		replicas := make([]cqlhst.Host, 0, rf)
		seen := make(map[string]bool, rf)

		for j := 0; j < len(ring) && len(replicas) < rf; j++ {
			h := ring[(i+j)%len(ring)].h
			if !seen[h.Endpoint()] {
				seen[h.Endpoint()] = true
				replicas = append(replicas, h)
			}
		}

		entries = append(entries, RingEntry{Token: p.t, Replicas: replicas})
	}

	return NewStaticRing(entries)
}
