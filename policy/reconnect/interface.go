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

package reconnect

import (
	"math/rand"
	"sync"
	"time"
)

// Schedule is a lazy infinite sequence of reconnection delays.
type Schedule interface {
	// Next returns the next delay to wait before a reconnection attempt.
	Next() time.Duration
}

// Policy produces one fresh schedule per reconnection cycle.
type Policy interface {
	NewSchedule() Schedule
}

// NewConstant returns a policy whose schedules always yield the same delay.
func NewConstant(delay time.Duration) Policy {
	return &constant{delay: delay}
}

// NewExponential returns a policy with exponentially growing, jittered
// delays: base*2^i capped at max. With startWithNoDelay the first
// element is zero. Jitter keeps the first delay in [100%, 115%] of the
// base, capped delays in [85%, 100%] of the max and all others in
// [85%, 115%], floored to an integer millisecond.
func NewExponential(base, max time.Duration, startWithNoDelay bool) Policy {
	return &exponential{
		base:    base,
		max:     max,
		noDelay: startWithNoDelay,
	}
}

type constant struct {
	delay time.Duration
}

func (o *constant) NewSchedule() Schedule {
	return &constantSchedule{delay: o.delay}
}

type constantSchedule struct {
	delay time.Duration
}

func (o *constantSchedule) Next() time.Duration {
	return o.delay
}

type exponential struct {
	base    time.Duration
	max     time.Duration
	noDelay bool
}

func (o *exponential) NewSchedule() Schedule {
	idx := int64(0)
	if o.noDelay {
		idx = -1
	}

	return &exponentialSchedule{
		base:    o.base,
		max:     o.max,
		noDelay: o.noDelay,
		index:   idx,
	}
}

type exponentialSchedule struct {
	m sync.Mutex

	base    time.Duration
	max     time.Duration
	noDelay bool
	index   int64
}

func (o *exponentialSchedule) Next() time.Duration {
	o.m.Lock()
	i := o.index
	o.index++
	o.m.Unlock()

	if i < 0 {
		return 0
	}

	d := o.max
	if i < 64 {
		d = o.base << uint(i)
		if d <= 0 || d > o.max {
			d = o.max
		}
	}

	return o.jitter(d)
}

func (o *exponentialSchedule) jitter(d time.Duration) time.Duration {
	ms := d.Milliseconds()
	if ms == 0 {
		return 0
	}

	var lo, hi int64

	switch {
	case d == o.base && !o.noDelay:
		lo, hi = ms, ms*115/100
	case d >= o.max:
		lo, hi = ms*85/100, ms
	default:
		lo, hi = ms*85/100, ms*115/100
	}

	if hi <= lo {
		return time.Duration(lo) * time.Millisecond
	}

	return time.Duration(lo+rand.Int63n(hi-lo+1)) * time.Millisecond
}
