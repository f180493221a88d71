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

package prepared_test

import (
	"context"
	"fmt"
	"sync"

	cqlhst "github.com/nabbar/cqldriver/hostinfo"
	cqlmsg "github.com/nabbar/cqldriver/message"
	cqlbal "github.com/nabbar/cqldriver/policy/balance"
	. "github.com/nabbar/cqldriver/prepared"
	cqlptc "github.com/nabbar/cqldriver/protocol"
	cqltrp "github.com/nabbar/cqldriver/transport"
	liberr "github.com/nabbar/golib/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func upHosts(n int) []cqlhst.Host {
	reg := cqlhst.NewRegistry()

	hosts := make([]cqlhst.Host, 0, n)
	for i := 0; i < n; i++ {
		h := reg.Add(cqlhst.Peer{Address: fmt.Sprintf("10.1.0.%d", i+1), Port: 9042, Datacenter: "dc1"})
		Expect(reg.MarkUp(h.Endpoint())).ToNot(HaveOccurred())
		hosts = append(hosts, h)
	}

	return hosts
}

func planOf(hosts []cqlhst.Host) func(string) cqlbal.Plan {
	return func(_ string) cqlbal.Plan {
		lb := NewFixturePlan(hosts)
		return lb
	}
}

// NewFixturePlan iterates a fixed host list once.
type fixturePlan struct {
	hosts []cqlhst.Host
	pos   int
}

func NewFixturePlan(hosts []cqlhst.Host) cqlbal.Plan {
	return &fixturePlan{hosts: hosts}
}

func (o *fixturePlan) Next() (cqlhst.Host, bool) {
	if o.pos >= len(o.hosts) {
		return nil, false
	}

	h := o.hosts[o.pos]
	o.pos++
	return h, true
}

var _ = Describe("Prepared cache", func() {
	It("should prepare exactly once under concurrent demand", func() {
		hosts := upHosts(1)
		conn := &fakeConn{host: hosts[0], answer: preparedAnswer([]byte{0xaa, 0xbb})}

		cache := New(Deps{
			NewPlan: planOf(hosts),
			Borrow: func(_ cqlhst.Host) (cqltrp.Connection, liberr.Error) {
				return conn, nil
			},
		}, nil)

		var wg sync.WaitGroup

		ids := make([][]byte, 100)
		errs := make([]liberr.Error, 100)

		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()

				e, er := cache.Get(context.Background(), "ks", "SELECT * FROM t WHERE id = ?")
				if er != nil {
					errs[n] = er
					return
				}
				ids[n] = e.ID
			}(i)
		}

		wg.Wait()

		Expect(conn.queries.Load()).To(Equal(int32(1)))

		for i := 0; i < 100; i++ {
			Expect(errs[i]).ToNot(HaveOccurred())
			Expect(ids[i]).To(Equal([]byte{0xaa, 0xbb}))
		}

		Expect(cache.Len()).To(Equal(1))
	})

	It("should index entries by query id", func() {
		hosts := upHosts(1)
		conn := &fakeConn{host: hosts[0], answer: preparedAnswer([]byte{0x01})}

		cache := New(Deps{
			NewPlan: planOf(hosts),
			Borrow: func(_ cqlhst.Host) (cqltrp.Connection, liberr.Error) {
				return conn, nil
			},
		}, nil)

		e, er := cache.Get(context.Background(), "ks", "SELECT 1")
		Expect(er).ToNot(HaveOccurred())

		got, ok := cache.ByID(e.ID)
		Expect(ok).To(BeTrue())
		Expect(got.Query).To(Equal("SELECT 1"))

		cache.Invalidate("ks", "SELECT 1")

		_, ok = cache.ByID(e.ID)
		Expect(ok).To(BeFalse())
	})

	It("should move to the next host on socket errors only", func() {
		hosts := upHosts(3)

		dead := &fakeConn{host: hosts[0], answer: func(_ cqlmsg.Request) (cqlmsg.Response, liberr.Error) {
			return nil, cqltrp.ErrorDefunct.Error(nil)
		}}
		alive := &fakeConn{host: hosts[1], answer: preparedAnswer([]byte{0x7f})}

		conns := map[string]cqltrp.Connection{
			hosts[0].Endpoint(): dead,
			hosts[1].Endpoint(): alive,
			hosts[2].Endpoint(): alive,
		}

		cache := New(Deps{
			NewPlan: planOf(hosts),
			Borrow: func(h cqlhst.Host) (cqltrp.Connection, liberr.Error) {
				return conns[h.Endpoint()], nil
			},
		}, nil)

		e, er := cache.Get(context.Background(), "ks", "SELECT 2")
		Expect(er).ToNot(HaveOccurred())
		Expect(e.ID).To(Equal([]byte{0x7f}))
	})

	It("should surface server rejections without retrying", func() {
		hosts := upHosts(2)

		bad := &fakeConn{host: hosts[0], answer: func(_ cqlmsg.Request) (cqlmsg.Response, liberr.Error) {
			return &cqlmsg.Error{Code: cqlptc.ErrSyntax, Message: "boom"}, nil
		}}

		called := 0

		cache := New(Deps{
			NewPlan: planOf(hosts),
			Borrow: func(h cqlhst.Host) (cqltrp.Connection, liberr.Error) {
				called++
				return bad, nil
			},
		}, nil)

		_, er := cache.Get(context.Background(), "ks", "SELEC oops")
		Expect(er).To(HaveOccurred())
		Expect(er.HasCode(ErrorPrepareFailed)).To(BeTrue())
		Expect(called).To(Equal(1))
	})

	It("should re-prepare in place and refresh the registry", func() {
		hosts := upHosts(1)
		conn := &fakeConn{host: hosts[0], answer: preparedAnswer([]byte{0x11})}

		cache := New(Deps{
			NewPlan: planOf(hosts),
			Borrow: func(_ cqlhst.Host) (cqltrp.Connection, liberr.Error) {
				return conn, nil
			},
		}, nil)

		e, er := cache.PrepareOn(context.Background(), conn, "ks", "SELECT 3")
		Expect(er).ToNot(HaveOccurred())

		got, ok := cache.ByID(e.ID)
		Expect(ok).To(BeTrue())
		Expect(got.Query).To(Equal("SELECT 3"))
	})
})
