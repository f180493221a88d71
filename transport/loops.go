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

package transport

import (
	"time"

	cqlmsg "github.com/nabbar/cqldriver/message"
	liberr "github.com/nabbar/golib/errors"
	loglvl "github.com/nabbar/golib/logger/level"
	libsiz "github.com/nabbar/golib/size"
)

// readLoop is the single reader of the socket: it decodes complete
// frames and dispatches them by stream id. It is never re-entered
// concurrently.
func (o *conn) readLoop() {
	for {
		in, e := o.readRaw()
		if e != nil {
			select {
			case <-o.done:
				// orderly close already ran
			default:
				o.defunct(ErrorDefunct.Error(e))
			}
			return
		}

		o.dispatch(in)
	}
}

// writeLoop is the single writer of the socket. Small frames are
// coalesced up to the configured size, waiting at most the coalesce
// delay for company, then flushed in one write.
func (o *conn) writeLoop() {
	var batch []byte

	for {
		select {
		case <-o.done:
			return

		case buf := <-o.writeq:
			batch = append(batch[:0], buf...)

			// gather whatever is immediately queued, then linger once
			timer := time.NewTimer(o.cfg.CoalesceDelay)

		gather:
			for libsiz.Size(len(batch)) < o.cfg.CoalesceSize {
				select {
				case more := <-o.writeq:
					batch = append(batch, more...)
				case <-timer.C:
					break gather
				case <-o.done:
					timer.Stop()
					return
				}
			}

			timer.Stop()

			if _, err := o.sock.Write(batch); err != nil {
				select {
				case <-o.done:
				default:
					o.defunct(ErrorDefunct.Error(err))
				}
				return
			}

			o.touch()
		}
	}
}

// heartbeatLoop probes the socket with a lightweight OPTIONS request
// when the connection has been idle for the heartbeat interval. A
// missed probe defunctions the connection.
func (o *conn) heartbeatLoop() {
	interval := o.cfg.HeartbeatInterval

	tick := time.NewTicker(interval / 2)
	defer tick.Stop()

	for {
		select {
		case <-o.done:
			return

		case <-tick.C:
			idle := time.Since(time.Unix(0, o.lastActivity.Load()))
			if idle < interval || !o.IsReady() {
				continue
			}

			if !o.hbPending.CompareAndSwap(false, true) {
				continue
			}

			_, e := o.Send(&cqlmsg.Options{}, interval, func(in *cqlmsg.Inbound, err liberr.Error) {
				o.hbPending.Store(false)

				if err != nil {
					o.logger().Entry(loglvl.WarnLevel, "heartbeat missed, connection is defunct").
						FieldAdd("endpoint", o.Endpoint()).Log()
					o.defunct(ErrorDefunct.Error(err))
				}
			})
			if e != nil {
				o.hbPending.Store(false)
			}
		}
	}
}
