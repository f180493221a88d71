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

package timestamp_test

import (
	"time"

	. "github.com/nabbar/cqldriver/policy/timestamp"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Server side generator", func() {
	It("should always defer to the server", func() {
		g := NewServerSide()

		_, ok := g.Next()
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Monotonic generator", func() {
	It("should fill a stalled clock with the microsecond counter", func() {
		clock := time.UnixMilli(1)
		g := NewMonotonic(MonotonicConfig{Clock: func() time.Time { return clock }}, nil)

		for i := 0; i < 1000; i++ {
			ts, ok := g.Next()
			Expect(ok).To(BeTrue())
			Expect(ts).To(Equal(int64(1000 + i)))
		}

		ts, ok := g.Next()
		Expect(ok).To(BeTrue())
		Expect(ts).To(Equal(int64(2000)))

		d, has := g.(interface{ Drift() int64 })
		Expect(has).To(BeTrue())
		Expect(d.Drift()).To(Equal(int64(1)))
	})

	It("should reset the counter when the clock moves forward", func() {
		now := time.UnixMilli(10)
		g := NewMonotonic(MonotonicConfig{Clock: func() time.Time { return now }}, nil)

		ts, _ := g.Next()
		Expect(ts).To(Equal(int64(10_000)))

		ts, _ = g.Next()
		Expect(ts).To(Equal(int64(10_001)))

		now = time.UnixMilli(11)

		ts, _ = g.Next()
		Expect(ts).To(Equal(int64(11_000)))
	})

	It("should produce strictly increasing values under a racing clock", func() {
		g := NewMonotonic(MonotonicConfig{}, nil)

		prev, _ := g.Next()

		for i := 0; i < 10_000; i++ {
			ts, ok := g.Next()
			Expect(ok).To(BeTrue())
			Expect(ts).To(BeNumerically(">", prev))
			prev = ts
		}
	})
})
