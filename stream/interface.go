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
	"time"

	cqlptc "github.com/nabbar/cqldriver/protocol"
	liberr "github.com/nabbar/golib/errors"
)

const (
	// GroupSize is the number of ids per allocation group.
	GroupSize = 128
	// MinGroups is the floor kept by the shrinker.
	MinGroups = 4
)

// ShrinkDelay is the debounce interval before trailing free groups
// are released.
var ShrinkDelay = 5 * time.Second

// Allocator hands out the bounded set of protocol stream ids of one
// connection. Ids are grouped in fixed-size slots of 128 created lazily
// up to the protocol maximum; fully free trailing groups are released
// after a debounce interval once more than MinGroups exist.
type Allocator interface {
	// Pop returns a free stream id, or ErrorSaturated when every id of
	// the protocol range is in use. A popped id is never re-issued
	// until pushed back.
	Pop() (int16, liberr.Error)

	// Push returns a stream id to the free set. Pushing an id that is
	// not in use is an invariant violation reported as ErrorInvalidID.
	Push(id int16) liberr.Error

	// InUse returns the number of ids currently popped.
	InUse() int

	// Free returns the number of ids immediately available without
	// creating a new group.
	Free() int

	// Groups returns the number of allocated groups.
	Groups() int

	// Close releases the shrink timer. The allocator stays usable for
	// pushes so late completions can still release their ids.
	Close()
}

// New returns an allocator sized for the given protocol version:
// 128 ids for protocol v1-2, 32768 for v3 and above.
func New(pv cqlptc.Version) Allocator {
	return &alloc{
		maxGroups: (pv.MaxStreamID() + 1) / GroupSize,
		groups:    nil,
		active:    0,
	}
}
