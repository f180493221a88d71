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

package tracker

import (
	"sync"
	"time"

	cqlhst "github.com/nabbar/cqldriver/hostinfo"
	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
	libsiz "github.com/nabbar/golib/size"
)

// Tracker observes every terminal request outcome.
type Tracker interface {
	OnSuccess(h cqlhst.Host, query string, requestLen, responseLen int, latency time.Duration)
	OnError(h cqlhst.Host, query string, requestLen int, err error, latency time.Duration)
	Shutdown()
}

// Event is one notification of the slow/large tracker.
type Event struct {
	Endpoint    string
	Query       string
	RequestLen  int
	ResponseLen int
	Latency     time.Duration
	Err         error
}

// EventFunc consumes tracker events from a channel subscription.
type EventFunc func(ev Event)

const (
	// ChannelSlow receives requests slower than the threshold.
	ChannelSlow = "slow"
	// ChannelLarge receives requests bigger than the threshold.
	ChannelLarge = "large"
)

// SlowLargeConfig tunes the standard logging tracker.
type SlowLargeConfig struct {
	// SlowThreshold marks a request slow. Zero selects one second.
	SlowThreshold time.Duration

	// LargeThreshold marks a request large. Zero selects 128 KiB.
	LargeThreshold libsiz.Size
}

// NewSlowLarge returns the standard tracker: slow and large requests
// are logged and published on their channels.
func NewSlowLarge(cfg SlowLargeConfig, log liblog.FuncLog) *SlowLarge {
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = time.Second
	}

	if cfg.LargeThreshold <= 0 {
		cfg.LargeThreshold = 128 * libsiz.SizeKilo
	}

	return &SlowLarge{cfg: cfg, log: log, subs: make(map[string][]EventFunc)}
}

// SlowLarge is the standard slow/large request tracker.
type SlowLarge struct {
	m sync.RWMutex

	cfg  SlowLargeConfig
	log  liblog.FuncLog
	subs map[string][]EventFunc
	done bool
}

// On subscribes a consumer to one of the tracker channels.
func (o *SlowLarge) On(channel string, fn EventFunc) {
	o.m.Lock()
	defer o.m.Unlock()

	o.subs[channel] = append(o.subs[channel], fn)
}

func (o *SlowLarge) logger() liblog.Logger {
	if o.log != nil {
		if l := o.log(); l != nil {
			return l
		}
	}

	return liblog.GetDefault()
}

func (o *SlowLarge) publish(channel string, ev Event) {
	o.m.RLock()
	if o.done {
		o.m.RUnlock()
		return
	}
	subs := o.subs[channel]
	o.m.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}

func (o *SlowLarge) observe(ev Event) {
	if ev.Latency >= o.cfg.SlowThreshold {
		o.logger().Entry(loglvl.WarnLevel, "slow request").
			FieldAdd("endpoint", ev.Endpoint).
			FieldAdd("query", ev.Query).
			FieldAdd("latency", ev.Latency.String()).Log()
		o.publish(ChannelSlow, ev)
	}

	size := ev.RequestLen
	if ev.ResponseLen > size {
		size = ev.ResponseLen
	}

	if libsiz.Size(size) >= o.cfg.LargeThreshold {
		o.logger().Entry(loglvl.WarnLevel, "large request").
			FieldAdd("endpoint", ev.Endpoint).
			FieldAdd("query", ev.Query).
			FieldAdd("bytes", size).Log()
		o.publish(ChannelLarge, ev)
	}
}

func (o *SlowLarge) OnSuccess(h cqlhst.Host, query string, requestLen, responseLen int, latency time.Duration) {
	o.observe(Event{
		Endpoint:    h.Endpoint(),
		Query:       query,
		RequestLen:  requestLen,
		ResponseLen: responseLen,
		Latency:     latency,
	})
}

func (o *SlowLarge) OnError(h cqlhst.Host, query string, requestLen int, err error, latency time.Duration) {
	o.observe(Event{
		Endpoint:   h.Endpoint(),
		Query:      query,
		RequestLen: requestLen,
		Latency:    latency,
		Err:        err,
	})
}

func (o *SlowLarge) Shutdown() {
	o.m.Lock()
	defer o.m.Unlock()

	o.done = true
	o.subs = make(map[string][]EventFunc)
}
