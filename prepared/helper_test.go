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
	"sync/atomic"
	"time"

	cqlcdc "github.com/nabbar/cqldriver/codec"
	cqlhst "github.com/nabbar/cqldriver/hostinfo"
	cqlmsg "github.com/nabbar/cqldriver/message"
	cqlptc "github.com/nabbar/cqldriver/protocol"
	cqltrp "github.com/nabbar/cqldriver/transport"
	liberr "github.com/nabbar/golib/errors"
)

// fakeConn is a scriptable in-memory connection.
type fakeConn struct {
	host    cqlhst.Host
	answer  func(req cqlmsg.Request) (cqlmsg.Response, liberr.Error)
	queries atomic.Int32
}

func (o *fakeConn) Endpoint() string {
	return o.host.Endpoint()
}

func (o *fakeConn) Host() cqlhst.Host {
	return o.host
}

func (o *fakeConn) Version() cqlptc.Version {
	return cqlptc.Version4
}

func (o *fakeConn) Keyspace() string {
	return ""
}

func (o *fakeConn) SetKeyspace(_ context.Context, _ string) liberr.Error {
	return nil
}

func (o *fakeConn) Send(req cqlmsg.Request, _ time.Duration, cb cqltrp.Callback) (cqltrp.CancelFunc, liberr.Error) {
	o.queries.Add(1)

	msg, e := o.answer(req)
	if e != nil {
		go cb(nil, e)
		return func() {}, nil
	}

	go cb(&cqlmsg.Inbound{Message: msg}, nil)
	return func() {}, nil
}

func (o *fakeConn) Request(_ context.Context, req cqlmsg.Request) (*cqlmsg.Inbound, liberr.Error) {
	o.queries.Add(1)

	msg, e := o.answer(req)
	if e != nil {
		return nil, e
	}

	return &cqlmsg.Inbound{Message: msg}, nil
}

func (o *fakeConn) InFlight() int {
	return 0
}

func (o *fakeConn) TimedOut() int {
	return 0
}

func (o *fakeConn) IsReady() bool {
	return true
}

func (o *fakeConn) IsDefunct() bool {
	return false
}

func (o *fakeConn) OnClose(_ func(c cqltrp.Connection, err error)) {}

func (o *fakeConn) Close() error {
	return nil
}

func preparedAnswer(id []byte) func(req cqlmsg.Request) (cqlmsg.Response, liberr.Error) {
	return func(req cqlmsg.Request) (cqlmsg.Response, liberr.Error) {
		return &cqlmsg.PreparedResult{
			ID: id,
			Variables: &cqlcdc.ResultMetadata{
				ColumnCount: 1,
				Columns: []cqlcdc.ColumnInfo{
					{Keyspace: "ks", Table: "t", Name: "id", Type: cqlcdc.Int()},
				},
				PKIndexes: []uint16{0},
			},
			ResultColumns: &cqlcdc.ResultMetadata{},
		}, nil
	}
}
