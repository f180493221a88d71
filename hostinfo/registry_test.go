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

package hostinfo_test

import (
	"sync"

	. "github.com/nabbar/cqldriver/hostinfo"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Host registry", func() {
	It("should keep exactly one host per endpoint", func() {
		reg := NewRegistry()
		DeferCleanup(reg.Close)

		a := reg.Add(Peer{Address: "10.0.0.1", Port: 9042, Datacenter: "dc1"})
		b := reg.Add(Peer{Address: "10.0.0.1", Port: 9042, Datacenter: "dc2"})

		Expect(a).To(BeIdenticalTo(b))
		Expect(reg.Hosts()).To(HaveLen(1))

		// the catalogue data of the second sighting won
		Expect(a.Datacenter()).To(Equal("dc2"))
	})

	It("should fire up and down at most once per transition", func() {
		reg := NewRegistry()
		DeferCleanup(reg.Close)

		var (
			mu     sync.Mutex
			events []EventKind
		)

		reg.RegisterListener(func(ev Event) {
			mu.Lock()
			events = append(events, ev.Kind)
			mu.Unlock()
		})

		h := reg.Add(Peer{Address: "10.0.0.2", Port: 9042})

		Expect(reg.MarkUp(h.Endpoint())).ToNot(HaveOccurred())
		Expect(reg.MarkUp(h.Endpoint())).ToNot(HaveOccurred())
		Expect(reg.MarkDown(h.Endpoint())).ToNot(HaveOccurred())
		Expect(reg.MarkDown(h.Endpoint())).ToNot(HaveOccurred())

		mu.Lock()
		defer mu.Unlock()

		Expect(events).To(Equal([]EventKind{EventHostAdd, EventHostUp, EventHostDown}))
	})

	It("should drop removed hosts from the snapshot", func() {
		reg := NewRegistry()
		DeferCleanup(reg.Close)

		h := reg.Add(Peer{Address: "10.0.0.3", Port: 9042})
		Expect(reg.MarkUp(h.Endpoint())).ToNot(HaveOccurred())
		Expect(reg.UpHosts()).To(HaveLen(1))

		Expect(reg.Remove(h.Endpoint())).ToNot(HaveOccurred())
		Expect(reg.Hosts()).To(BeEmpty())
		Expect(h.State()).To(Equal(StateRemoved))

		// a removed host stays removed
		Expect(reg.MarkUp(h.Endpoint())).To(HaveOccurred())
	})

	It("should report unknown endpoints", func() {
		reg := NewRegistry()
		DeferCleanup(reg.Close)

		e := reg.MarkDown("10.9.9.9:9042")
		Expect(e).To(HaveOccurred())
		Expect(e.HasCode(ErrorHostUnknown)).To(BeTrue())
	})
})
