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

package timestamp

import (
	"sync"
	"time"

	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
)

// Generator produces client-side query timestamps in microseconds since
// the Unix epoch. A false flag defers the timestamp to the server.
type Generator interface {
	Next() (int64, bool)
}

// NewServerSide returns a generator that always defers to the server.
func NewServerSide() Generator {
	return &serverSide{}
}

type serverSide struct{}

func (o *serverSide) Next() (int64, bool) {
	return 0, false
}

// MonotonicConfig tunes the monotonic generator.
type MonotonicConfig struct {
	// WarningThreshold is the drift above which a warning is logged.
	// Zero warns on any drift; a negative value selects the one second
	// default.
	WarningThreshold time.Duration

	// MinLogInterval bounds warning emission to at most one per
	// interval. Zero selects the one second default.
	MinLogInterval time.Duration

	// Clock overrides the wall clock, for tests.
	Clock func() time.Time
}

// NewMonotonic returns a generator producing strictly increasing
// timestamps within the process. When the wall clock stalls, the
// microsecond counter fills the gap; once it rolls over, the
// millisecond part is artificially advanced and the drift is
// accounted; past the warning threshold a bounded log is emitted.
func NewMonotonic(cfg MonotonicConfig, log liblog.FuncLog) Generator {
	if cfg.WarningThreshold < 0 {
		cfg.WarningThreshold = time.Second
	}

	if cfg.MinLogInterval <= 0 {
		cfg.MinLogInterval = time.Second
	}

	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &monotonic{cfg: cfg, log: log}
}

type monotonic struct {
	m sync.Mutex

	cfg MonotonicConfig
	log liblog.FuncLog

	lastMs  int64
	micros  int64
	drift   int64
	lastLog time.Time
}

func (o *monotonic) logger() liblog.Logger {
	if o.log != nil {
		if l := o.log(); l != nil {
			return l
		}
	}

	return liblog.GetDefault()
}

func (o *monotonic) Next() (int64, bool) {
	o.m.Lock()
	defer o.m.Unlock()

	now := o.cfg.Clock().UnixMilli()

	switch {
	case now > o.lastMs:
		o.lastMs = now
		o.micros = 0

	default:
		o.micros++
		if o.micros > 999 {
			o.micros = 0
			o.lastMs++
			o.drift++
			o.warn()
		}
	}

	return o.lastMs*1000 + o.micros, true
}

// Drift returns the artificial milliseconds accumulated ahead of the
// wall clock.
func (o *monotonic) Drift() int64 {
	o.m.Lock()
	defer o.m.Unlock()

	return o.drift
}

// warn emits the drift warning at most once per MinLogInterval.
// Caller holds the lock.
func (o *monotonic) warn() {
	if time.Duration(o.drift)*time.Millisecond <= o.cfg.WarningThreshold {
		return
	}

	now := o.cfg.Clock()
	if !o.lastLog.IsZero() && now.Sub(o.lastLog) < o.cfg.MinLogInterval {
		return
	}

	o.lastLog = now

	if l := o.logger(); l != nil {
		ent := l.Entry(loglvl.WarnLevel, "clock is stalling, timestamps drift ahead of wall time")
		ent.FieldAdd("driftMs", o.drift).Log()
	}
}
