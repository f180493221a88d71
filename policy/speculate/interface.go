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

package speculate

import (
	"sync"
	"time"
)

// Plan schedules the additional parallel executions of one request.
type Plan interface {
	// NextExecution returns a positive delay to schedule another
	// speculative execution, or a non-positive value to stop.
	NextExecution() time.Duration
}

// Policy produces one plan per request. Only idempotent requests are
// speculated.
type Policy interface {
	NewPlan(keyspace, query string) Plan
}

// NewNone returns a policy that never speculates.
func NewNone() Policy {
	return &none{}
}

// NewConstant returns a policy scheduling up to maxExecutions extra
// attempts with a fixed delay between them.
func NewConstant(delay time.Duration, maxExecutions int) Policy {
	return &constant{delay: delay, max: maxExecutions}
}

type none struct{}

func (o *none) NewPlan(_, _ string) Plan {
	return &nonePlan{}
}

type nonePlan struct{}

func (o *nonePlan) NextExecution() time.Duration {
	return -1
}

type constant struct {
	delay time.Duration
	max   int
}

func (o *constant) NewPlan(_, _ string) Plan {
	return &constantPlan{delay: o.delay, left: o.max}
}

type constantPlan struct {
	m sync.Mutex

	delay time.Duration
	left  int
}

func (o *constantPlan) NextExecution() time.Duration {
	o.m.Lock()
	defer o.m.Unlock()

	if o.left <= 0 {
		return -1
	}

	o.left--
	return o.delay
}
