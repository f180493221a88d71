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

package transport_test

import (
	"context"
	"sync"
	"time"

	cqlmsg "github.com/nabbar/cqldriver/message"
	cqlptc "github.com/nabbar/cqldriver/protocol"
	. "github.com/nabbar/cqldriver/transport"
	liberr "github.com/nabbar/golib/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Connection", func() {
	var node *fakeNode

	BeforeEach(func() {
		node = newFakeNode()
		DeferCleanup(node.close)
	})

	dialNode := func(cfg Config) Connection {
		cfg.Version = cqlptc.Version4

		c, e := Dial(context.Background(), node.host(), cfg, nil)
		Expect(e).ToNot(HaveOccurred())
		DeferCleanup(func() { _ = c.Close() })

		return c
	}

	It("should negotiate startup and reach the ready state", func() {
		node.void(0)

		c := dialNode(Config{})
		Expect(c.IsReady()).To(BeTrue())
		Expect(c.IsDefunct()).To(BeFalse())
		Expect(c.Endpoint()).To(Equal(node.endpoint()))
	})

	It("should multiplex concurrent requests over one socket", func() {
		node.void(5 * time.Millisecond)

		c := dialNode(Config{})

		var wg sync.WaitGroup

		for i := 0; i < 64; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				in, e := c.Request(context.Background(), &cqlmsg.Query{
					Query:  "SELECT 1",
					Params: cqlmsg.QueryParameters{Consistency: cqlptc.One},
				})
				Expect(e).ToNot(HaveOccurred())
				Expect(in.Message).To(BeAssignableToTypeOf(&cqlmsg.VoidResult{}))
			}()
		}

		wg.Wait()

		Expect(c.InFlight()).To(Equal(0))
	})

	It("should complete the callback with a timeout on a silent peer", func() {
		node.silence()

		c := dialNode(Config{})

		done := make(chan liberr.Error, 1)

		_, e := c.Send(&cqlmsg.Query{Query: "SELECT 1"}, 50*time.Millisecond, func(_ *cqlmsg.Inbound, err liberr.Error) {
			done <- err
		})
		Expect(e).ToNot(HaveOccurred())

		var err liberr.Error
		Eventually(done, time.Second).Should(Receive(&err))
		Expect(err).To(HaveOccurred())
		Expect(err.HasCode(ErrorTimeout)).To(BeTrue())

		Expect(c.InFlight()).To(Equal(0))
		Expect(c.TimedOut()).To(Equal(1))
	})

	It("should defunct after the cumulative timeout threshold", func() {
		node.silence()

		c := dialNode(Config{DefunctThreshold: 2})

		closed := make(chan error, 1)
		c.OnClose(func(_ Connection, err error) {
			closed <- err
		})

		for i := 0; i < 2; i++ {
			_, e := c.Send(&cqlmsg.Query{Query: "SELECT 1"}, 30*time.Millisecond, func(_ *cqlmsg.Inbound, _ liberr.Error) {})
			Expect(e).ToNot(HaveOccurred())
		}

		Eventually(c.IsDefunct, time.Second).Should(BeTrue())
		Eventually(closed, time.Second).Should(Receive())

		_, e := c.Send(&cqlmsg.Query{Query: "SELECT 1"}, time.Second, nil)
		Expect(e).To(HaveOccurred())
		Expect(e.HasCode(ErrorDefunct)).To(BeTrue())
	})

	It("should complete every in-flight request on a socket failure", func() {
		node.silence()

		c := dialNode(Config{})

		var (
			mu   sync.Mutex
			errs []liberr.Error
		)

		for i := 0; i < 8; i++ {
			_, e := c.Send(&cqlmsg.Query{Query: "SELECT 1"}, 5*time.Second, func(_ *cqlmsg.Inbound, err liberr.Error) {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			})
			Expect(e).ToNot(HaveOccurred())
		}

		node.close()

		Eventually(func() int {
			mu.Lock()
			defer mu.Unlock()
			return len(errs)
		}, time.Second).Should(Equal(8))

		for _, err := range errs {
			Expect(err).To(HaveOccurred())
		}

		Expect(c.InFlight()).To(Equal(0))
	})

	It("should reject new requests after an orderly close", func() {
		node.void(0)

		c := dialNode(Config{})
		Expect(c.Close()).ToNot(HaveOccurred())

		_, e := c.Send(&cqlmsg.Query{Query: "SELECT 1"}, time.Second, nil)
		Expect(e).To(HaveOccurred())
		Expect(c.InFlight()).To(Equal(0))
	})

	It("should release a cancelled request before completion", func() {
		node.silence()

		c := dialNode(Config{})

		fired := make(chan struct{}, 1)

		cancel, e := c.Send(&cqlmsg.Query{Query: "SELECT 1"}, time.Second, func(_ *cqlmsg.Inbound, _ liberr.Error) {
			fired <- struct{}{}
		})
		Expect(e).ToNot(HaveOccurred())
		Expect(c.InFlight()).To(Equal(1))

		cancel()
		Expect(c.InFlight()).To(Equal(0))
		Consistently(fired, 150*time.Millisecond).ShouldNot(Receive())
	})

	It("should defunct on a missed heartbeat", func() {
		node.silence()

		c := dialNode(Config{HeartbeatInterval: 80 * time.Millisecond})

		Eventually(c.IsDefunct, 3*time.Second, 20*time.Millisecond).Should(BeTrue())
	})
})
