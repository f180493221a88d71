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

package stream

import (
	"sync"
	"time"

	"github.com/bits-and-blooms/bitset"
	liberr "github.com/nabbar/golib/errors"
)

type alloc struct {
	m sync.Mutex

	maxGroups int
	groups    [][]int16
	active    int
	inUse     bitset.BitSet
	nUsed     int

	shrinkAt *time.Timer
	closed   bool
}

// newGroup returns the id range of group g pre-populated in descending
// order so pops hand out the lowest ids first.
func newGroup(g int) []int16 {
	ids := make([]int16, GroupSize)
	base := int16(g * GroupSize)

	for i := 0; i < GroupSize; i++ {
		ids[i] = base + int16(GroupSize-1-i)
	}

	return ids
}

func (o *alloc) Pop() (int16, liberr.Error) {
	o.m.Lock()
	defer o.m.Unlock()

	for o.active < len(o.groups) {
		g := o.groups[o.active]

		if len(g) > 0 {
			id := g[len(g)-1]
			o.groups[o.active] = g[:len(g)-1]
			o.inUse.Set(uint(id))
			o.nUsed++
			return id, nil
		}

		o.active++
	}

	if len(o.groups) < o.maxGroups {
		g := newGroup(len(o.groups))
		o.groups = append(o.groups, g)
		o.active = len(o.groups) - 1

		id := g[len(g)-1]
		o.groups[o.active] = g[:len(g)-1]
		o.inUse.Set(uint(id))
		o.nUsed++
		return id, nil
	}

	return 0, ErrorSaturated.Error(nil)
}

func (o *alloc) Push(id int16) liberr.Error {
	o.m.Lock()
	defer o.m.Unlock()

	g := int(id) >> 7

	if id < 0 || g >= len(o.groups) || !o.inUse.Test(uint(id)) {
		return ErrorInvalidID.Error(nil)
	}

	o.inUse.Clear(uint(id))
	o.nUsed--
	o.groups[g] = append(o.groups[g], id)

	// restore the lowest-indexed group holding free ids
	if g < o.active {
		o.active = g
	}

	if len(o.groups) > MinGroups {
		o.scheduleShrink()
	}

	return nil
}

// scheduleShrink debounces the release of trailing free groups.
// Caller holds the lock.
func (o *alloc) scheduleShrink() {
	if o.closed || o.shrinkAt != nil {
		return
	}

	o.shrinkAt = time.AfterFunc(ShrinkDelay, o.shrink)
}

func (o *alloc) shrink() {
	o.m.Lock()
	defer o.m.Unlock()

	o.shrinkAt = nil

	for len(o.groups) > MinGroups && len(o.groups)-1 > o.active {
		tail := o.groups[len(o.groups)-1]
		if len(tail) != GroupSize {
			break
		}

		o.groups = o.groups[:len(o.groups)-1]
	}
}

func (o *alloc) InUse() int {
	o.m.Lock()
	defer o.m.Unlock()

	return o.nUsed
}

func (o *alloc) Free() int {
	o.m.Lock()
	defer o.m.Unlock()

	n := 0
	for _, g := range o.groups {
		n += len(g)
	}

	return n
}

func (o *alloc) Groups() int {
	o.m.Lock()
	defer o.m.Unlock()

	return len(o.groups)
}

func (o *alloc) Close() {
	o.m.Lock()
	defer o.m.Unlock()

	o.closed = true

	if o.shrinkAt != nil {
		o.shrinkAt.Stop()
		o.shrinkAt = nil
	}
}
