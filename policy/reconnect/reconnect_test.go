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

package reconnect_test

import (
	"time"

	. "github.com/nabbar/cqldriver/policy/reconnect"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Constant policy", func() {
	It("should always yield the same delay", func() {
		s := NewConstant(250 * time.Millisecond).NewSchedule()

		for i := 0; i < 10; i++ {
			Expect(s.Next()).To(Equal(250 * time.Millisecond))
		}
	})
})

var _ = Describe("Exponential policy", func() {
	const (
		base = time.Second
		max  = time.Minute
	)

	It("should jitter the first delay within [1000, 1150] ms", func() {
		for i := 0; i < 50; i++ {
			s := NewExponential(base, max, false).NewSchedule()

			d := s.Next().Milliseconds()
			Expect(d).To(BeNumerically(">=", 1000))
			Expect(d).To(BeNumerically("<=", 1150))
		}
	})

	It("should grow without overlap until the cap", func() {
		s := NewExponential(base, max, false).NewSchedule()

		prev := s.Next()

		for i := 0; i < 6; i++ {
			d := s.Next()
			Expect(d).To(BeNumerically(">", prev))
			prev = d
		}
	})

	It("should keep capped delays within [51000, 60000] ms", func() {
		s := NewExponential(base, max, false).NewSchedule()

		// burn the growth phase
		for i := 0; i < 10; i++ {
			_ = s.Next()
		}

		for i := 0; i < 50; i++ {
			d := s.Next().Milliseconds()
			Expect(d).To(BeNumerically(">=", 51000))
			Expect(d).To(BeNumerically("<=", 60000))
		}
	})

	It("should start with a zero delay when asked to", func() {
		s := NewExponential(base, max, true).NewSchedule()

		Expect(s.Next()).To(Equal(time.Duration(0)))
		Expect(s.Next()).To(BeNumerically(">", time.Duration(0)))
	})

	It("should stay capped far past the shift overflow boundary", func() {
		s := NewExponential(base, max, false).NewSchedule()

		var d time.Duration
		for i := 0; i < 80; i++ {
			d = s.Next()
		}

		Expect(d.Milliseconds()).To(BeNumerically(">=", 51000))
		Expect(d.Milliseconds()).To(BeNumerically("<=", 60000))
	})
})
