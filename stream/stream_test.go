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

package stream_test

import (
	"time"

	cqlptc "github.com/nabbar/cqldriver/protocol"
	. "github.com/nabbar/cqldriver/stream"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Stream id allocator", func() {
	It("should hand ids out lowest first in LIFO order", func() {
		a := New(cqlptc.Version4)
		DeferCleanup(a.Close)

		id, e := a.Pop()
		Expect(e).ToNot(HaveOccurred())
		Expect(id).To(Equal(int16(0)))

		id, e = a.Pop()
		Expect(e).ToNot(HaveOccurred())
		Expect(id).To(Equal(int16(1)))

		Expect(a.Push(int16(0))).ToNot(HaveOccurred())

		id, e = a.Pop()
		Expect(e).ToNot(HaveOccurred())
		Expect(id).To(Equal(int16(0)))
	})

	It("should keep the accounting invariant over mixed pop and push", func() {
		a := New(cqlptc.Version4)
		DeferCleanup(a.Close)

		popped := make([]int16, 0, 1000)

		for i := 0; i < 1000; i++ {
			id, e := a.Pop()
			Expect(e).ToNot(HaveOccurred())
			popped = append(popped, id)
		}

		Expect(a.InUse()).To(Equal(1000))
		Expect(a.InUse() + a.Free()).To(Equal(a.Groups() * GroupSize))

		for _, id := range popped[:500] {
			Expect(a.Push(id)).ToNot(HaveOccurred())
		}

		Expect(a.InUse()).To(Equal(500))
		Expect(a.InUse() + a.Free()).To(Equal(a.Groups() * GroupSize))
	})

	It("should never re-issue an id until it is pushed back", func() {
		a := New(cqlptc.Version4)
		DeferCleanup(a.Close)

		seen := make(map[int16]bool)

		for i := 0; i < 2048; i++ {
			id, e := a.Pop()
			Expect(e).ToNot(HaveOccurred())
			Expect(seen[id]).To(BeFalse())
			seen[id] = true
		}
	})

	It("should reject a double push", func() {
		a := New(cqlptc.Version4)
		DeferCleanup(a.Close)

		id, _ := a.Pop()
		Expect(a.Push(id)).ToNot(HaveOccurred())

		e := a.Push(id)
		Expect(e).To(HaveOccurred())
		Expect(e.HasCode(ErrorInvalidID)).To(BeTrue())
	})

	It("should saturate at the protocol ceiling on v2", func() {
		a := New(cqlptc.Version2)
		DeferCleanup(a.Close)

		for i := 0; i <= cqlptc.Version2.MaxStreamID(); i++ {
			_, e := a.Pop()
			Expect(e).ToNot(HaveOccurred())
		}

		_, e := a.Pop()
		Expect(e).To(HaveOccurred())
		Expect(e.HasCode(ErrorSaturated)).To(BeTrue())
	})

	It("should shrink back to the floor after a burst", func() {
		old := ShrinkDelay
		ShrinkDelay = 50 * time.Millisecond
		DeferCleanup(func() { ShrinkDelay = old })

		a := New(cqlptc.Version4)
		DeferCleanup(a.Close)

		n := 8 * GroupSize
		popped := make([]int16, 0, n)

		for i := 0; i < n; i++ {
			id, e := a.Pop()
			Expect(e).ToNot(HaveOccurred())
			popped = append(popped, id)
		}

		Expect(a.Groups()).To(Equal(8))

		for _, id := range popped {
			Expect(a.Push(id)).ToNot(HaveOccurred())
		}

		Eventually(a.Groups, time.Second, 10*time.Millisecond).Should(BeNumerically("<=", MinGroups))
		Expect(a.InUse() + a.Free()).To(Equal(a.Groups() * GroupSize))
	})
})
