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

package retry_test

import (
	. "github.com/nabbar/cqldriver/policy/retry"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Default policy", func() {
	p := NewDefault()

	It("should re-read on the same host when replicas answered without data", func() {
		v := p.OnReadTimeout(Info{Received: 2, BlockFor: 2, DataPresent: false})
		Expect(v.Decision).To(Equal(Retry))
		Expect(v.SameHost).To(BeTrue())
	})

	It("should rethrow a read timeout when the data was present", func() {
		v := p.OnReadTimeout(Info{Received: 2, BlockFor: 2, DataPresent: true})
		Expect(v.Decision).To(Equal(Rethrow))
	})

	It("should rethrow after the first retry", func() {
		v := p.OnReadTimeout(Info{Received: 2, BlockFor: 2, Attempt: 1})
		Expect(v.Decision).To(Equal(Rethrow))
	})

	It("should only retry idempotent batch log writes", func() {
		v := p.OnWriteTimeout(Info{WriteType: "BATCH_LOG", Idempotent: true})
		Expect(v.Decision).To(Equal(Retry))
		Expect(v.SameHost).To(BeTrue())

		v = p.OnWriteTimeout(Info{WriteType: "SIMPLE", Idempotent: true})
		Expect(v.Decision).To(Equal(Rethrow))

		v = p.OnWriteTimeout(Info{WriteType: "BATCH_LOG", Idempotent: false})
		Expect(v.Decision).To(Equal(Rethrow))
	})

	It("should try the next host once on unavailable", func() {
		v := p.OnUnavailable(Info{})
		Expect(v.Decision).To(Equal(Retry))
		Expect(v.SameHost).To(BeFalse())

		v = p.OnUnavailable(Info{Attempt: 1})
		Expect(v.Decision).To(Equal(Rethrow))
	})

	It("should never retry non idempotent requests on request errors", func() {
		v := p.OnRequestError(Info{Idempotent: false})
		Expect(v.Decision).To(Equal(Rethrow))

		v = p.OnRequestError(Info{Idempotent: true})
		Expect(v.Decision).To(Equal(Retry))
	})
})

var _ = Describe("Fallthrough policy", func() {
	p := NewFallthrough()

	It("should rethrow everything", func() {
		Expect(p.OnReadTimeout(Info{}).Decision).To(Equal(Rethrow))
		Expect(p.OnWriteTimeout(Info{}).Decision).To(Equal(Rethrow))
		Expect(p.OnUnavailable(Info{}).Decision).To(Equal(Rethrow))
		Expect(p.OnRequestError(Info{}).Decision).To(Equal(Rethrow))
	})
})

var _ = Describe("Idempotence aware wrapper", func() {
	p := NewIdempotenceAware(NewDefault())

	It("should gate write retries on the idempotent flag", func() {
		v := p.OnWriteTimeout(Info{WriteType: "BATCH_LOG", Idempotent: false})
		Expect(v.Decision).To(Equal(Rethrow))

		v = p.OnWriteTimeout(Info{WriteType: "BATCH_LOG", Idempotent: true})
		Expect(v.Decision).To(Equal(Retry))
	})

	It("should delegate read decisions untouched", func() {
		v := p.OnReadTimeout(Info{Received: 1, BlockFor: 1})
		Expect(v.Decision).To(Equal(Retry))
	})
})
