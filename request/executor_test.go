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

package request_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	cqlcdc "github.com/nabbar/cqldriver/codec"
	cqlhst "github.com/nabbar/cqldriver/hostinfo"
	cqlmsg "github.com/nabbar/cqldriver/message"
	cqlbal "github.com/nabbar/cqldriver/policy/balance"
	cqlrty "github.com/nabbar/cqldriver/policy/retry"
	cqlspc "github.com/nabbar/cqldriver/policy/speculate"
	cqlprp "github.com/nabbar/cqldriver/prepared"
	cqlptc "github.com/nabbar/cqldriver/protocol"
	. "github.com/nabbar/cqldriver/request"
	cqltrp "github.com/nabbar/cqldriver/transport"
	liberr "github.com/nabbar/golib/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func newExecutor(nodes []*node, tune func(d *Deps)) Executor {
	deps := Deps{
		Version:            cqlptc.Version4,
		DefaultConsistency: cqlptc.LocalOne,
		ReadTimeout:        2 * time.Second,
		Plan:               planFrom(nodes),
		Borrow:             borrowFrom(nodes),
	}

	if tune != nil {
		tune(&deps)
	}

	return New(deps)
}

var _ = Describe("Request executor", func() {
	It("should deliver the coordinator's result", func() {
		nodes := cluster(3, voidAnswer)
		exec := newExecutor(nodes, nil)

		res, e := exec.Execute(context.Background(), "SELECT * FROM system.local", nil, nil)
		Expect(e).ToNot(HaveOccurred())
		Expect(res.Info.QueriedHost).To(Equal(nodes[0].host.Endpoint()))
		Expect(res.Info.Attempts).To(Equal(1))
	})

	It("should surface NoHostAvailable with one inner error per tried host", func() {
		nodes := cluster(3, func(_ cqlmsg.Request) (cqlmsg.Response, liberr.Error) {
			return &cqlmsg.Error{Code: cqlptc.ErrIsBootstrapping, Message: "starting"}, nil
		})
		exec := newExecutor(nodes, nil)

		_, e := exec.Execute(context.Background(), "SELECT 1", nil, nil)
		Expect(e).To(HaveOccurred())
		Expect(e.HasCode(ErrorNoHostAvailable)).To(BeTrue())

		var nha *NoHostAvailable
		Expect(errors.As(e, &nha)).To(BeTrue())
		Expect(nha.Inner).To(HaveLen(3))
	})

	It("should skip to the next host on per-attempt timeout", func() {
		nodes := cluster(2, voidAnswer)
		nodes[0].conn.delay = time.Second

		exec := newExecutor(nodes, func(d *Deps) {
			d.ReadTimeout = 50 * time.Millisecond
		})

		res, e := exec.Execute(context.Background(), "SELECT 1", nil, nil)
		Expect(e).ToNot(HaveOccurred())
		Expect(res.Info.QueriedHost).To(Equal(nodes[1].host.Endpoint()))
		Expect(res.Info.TriedHosts).To(HaveKey(nodes[0].host.Endpoint()))
	})

	It("should complete with an empty result on an ignore verdict", func() {
		nodes := cluster(1, func(_ cqlmsg.Request) (cqlmsg.Response, liberr.Error) {
			return &cqlmsg.Error{
				Code:        cqlptc.ErrWriteTimeout,
				Message:     "wt",
				Consistency: cqlptc.Quorum,
				WriteType:   "SIMPLE",
			}, nil
		})

		exec := newExecutor(nodes, func(d *Deps) {
			d.Retry = ignorePolicy{}
		})

		res, e := exec.Execute(context.Background(), "INSERT 1", nil, nil)
		Expect(e).ToNot(HaveOccurred())
		Expect(res.Len()).To(Equal(0))
	})

	It("should surface syntax errors immediately", func() {
		nodes := cluster(3, func(_ cqlmsg.Request) (cqlmsg.Response, liberr.Error) {
			return &cqlmsg.Error{Code: cqlptc.ErrSyntax, Message: "oops"}, nil
		})
		exec := newExecutor(nodes, nil)

		_, e := exec.Execute(context.Background(), "SELEC", nil, nil)
		Expect(e).To(HaveOccurred())
		Expect(e.HasCode(ErrorResponse)).To(BeTrue())

		// only the first host was consulted
		Expect(nodes[0].conn.requests.Load()).To(Equal(int32(1)))
		Expect(nodes[1].conn.requests.Load()).To(Equal(int32(0)))
	})
})

// ignorePolicy turns every retryable error into an empty result.
type ignorePolicy struct{}

func (ignorePolicy) OnReadTimeout(_ cqlrty.Info) cqlrty.Verdict {
	return cqlrty.Verdict{Decision: cqlrty.Ignore}
}

func (ignorePolicy) OnWriteTimeout(_ cqlrty.Info) cqlrty.Verdict {
	return cqlrty.Verdict{Decision: cqlrty.Ignore}
}

func (ignorePolicy) OnUnavailable(_ cqlrty.Info) cqlrty.Verdict {
	return cqlrty.Verdict{Decision: cqlrty.Ignore}
}

func (ignorePolicy) OnRequestError(_ cqlrty.Info) cqlrty.Verdict {
	return cqlrty.Verdict{Decision: cqlrty.Ignore}
}

var _ = Describe("Unprepared handling", func() {
	It("should re-prepare on the same host and retry it once", func() {
		var unprepared atomic.Bool
		unprepared.Store(true)

		id := []byte{0x42}

		answer := func(req cqlmsg.Request) (cqlmsg.Response, liberr.Error) {
			switch req.(type) {
			case *cqlmsg.Prepare:
				return &cqlmsg.PreparedResult{
					ID:            id,
					Variables:     &cqlcdc.ResultMetadata{},
					ResultColumns: &cqlcdc.ResultMetadata{},
				}, nil

			case *cqlmsg.Execute:
				if unprepared.CompareAndSwap(true, false) {
					return &cqlmsg.Error{Code: cqlptc.ErrUnprepared, Message: "gone", UnpreparedID: id}, nil
				}
				return &cqlmsg.VoidResult{}, nil
			}

			return &cqlmsg.VoidResult{}, nil
		}

		nodes := cluster(2, answer)

		cache := cqlprp.New(cqlprp.Deps{
			NewPlan: func(_ string) cqlbal.Plan {
				return &listPlan{hosts: hostsOf(nodes)}
			},
			Borrow: borrowFrom(nodes),
		}, nil)

		exec := newExecutor(nodes, func(d *Deps) {
			d.Prepared = cache
		})

		res, e := exec.Execute(context.Background(), "SELECT * FROM t WHERE id = ?", []interface{}{int32(1)}, &Options{Prepare: true})
		Expect(e).ToNot(HaveOccurred())

		// the second attempt ran on the same host
		Expect(res.Info.QueriedHost).To(Equal(nodes[0].host.Endpoint()))
		Expect(res.Info.Attempts).To(Equal(2))
		Expect(res.Info.TriedHosts).To(BeEmpty())
		Expect(nodes[1].conn.requests.Load()).To(Equal(int32(0)))
	})
})

var _ = Describe("Batches", func() {
	It("should run simple batches through the state machine", func() {
		var sawBatch atomic.Bool

		nodes := cluster(2, func(req cqlmsg.Request) (cqlmsg.Response, liberr.Error) {
			if _, ok := req.(*cqlmsg.Batch); ok {
				sawBatch.Store(true)
			}
			return &cqlmsg.VoidResult{}, nil
		})
		exec := newExecutor(nodes, nil)

		res, e := exec.Batch(context.Background(), []BatchEntry{
			{Query: "INSERT INTO t1(a) VALUES (?)", Params: []interface{}{"one"}},
			{Query: "INSERT INTO t2(a) VALUES (?)", Params: []interface{}{"two"}},
		}, nil)

		Expect(e).ToNot(HaveOccurred())
		Expect(sawBatch.Load()).To(BeTrue())
		Expect(res.Info.QueriedHost).To(Equal(nodes[0].host.Endpoint()))
	})
})

var _ = Describe("Execution profiles", func() {
	It("should reject an unknown profile name", func() {
		nodes := cluster(1, voidAnswer)
		exec := newExecutor(nodes, nil)

		_, e := exec.Execute(context.Background(), "SELECT 1", nil, &Options{ExecutionProfile: "nope"})
		Expect(e).To(HaveOccurred())
		Expect(e.HasCode(ErrorProfileUnknown)).To(BeTrue())
	})

	It("should apply the profile's consistency", func() {
		var seen atomic.Int32

		nodes := cluster(1, func(req cqlmsg.Request) (cqlmsg.Response, liberr.Error) {
			if q, ok := req.(*cqlmsg.Query); ok {
				seen.Store(int32(q.Params.Consistency))
			}
			return &cqlmsg.VoidResult{}, nil
		})

		exec := newExecutor(nodes, func(d *Deps) {
			d.Profiles = map[string]*Profile{
				"strong": {Consistency: cqlptc.Quorum},
			}
		})

		_, e := exec.Execute(context.Background(), "SELECT 1", nil, &Options{ExecutionProfile: "strong"})
		Expect(e).ToNot(HaveOccurred())
		Expect(cqlptc.Consistency(seen.Load())).To(Equal(cqlptc.Quorum))
	})
})

var _ = Describe("Speculative execution", func() {
	It("should report the fast host as coordinator", func() {
		nodes := cluster(2, voidAnswer)
		nodes[0].conn.delay = 800 * time.Millisecond

		exec := newExecutor(nodes, func(d *Deps) {
			d.Speculate = cqlspc.NewConstant(30*time.Millisecond, 1)
			d.ReadTimeout = 2 * time.Second

			// the speculative chain starts on its own plan snapshot;
			// skip the busy primary so it reaches the second node
			var calls atomic.Int32
			inner := planFrom(nodes)
			d.Plan = func(ri cqlbal.RoutingInfo) cqlbal.Plan {
				if calls.Add(1) == 1 {
					return inner(ri)
				}
				return &listPlan{hosts: []cqlhst.Host{nodes[1].host}}
			}
		})

		res, e := exec.Execute(context.Background(), "SELECT 1", nil, &Options{Idempotent: true})
		Expect(e).ToNot(HaveOccurred())
		Expect(res.Info.QueriedHost).To(Equal(nodes[1].host.Endpoint()))
		Expect(res.Info.SpeculativeExecutions).To(Equal(1))

		// the losing chain must abort its in-flight send well before
		// the slow host's own delay elapses
		Eventually(func() int32 {
			return nodes[0].conn.active.Load()
		}, 200*time.Millisecond, 10*time.Millisecond).Should(BeZero())
	})
})

var _ = Describe("Connection seam", func() {
	It("should satisfy the transport connection contract", func() {
		var c cqltrp.Connection = &fakeConn{}
		Expect(c).ToNot(BeNil())
	})
})
