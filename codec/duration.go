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

package codec

import (
	"strconv"
	"strings"
	"time"

	liberr "github.com/nabbar/golib/errors"
)

// Duration is the CQL duration type: a (months, days, nanoseconds)
// triple. The three components carry independent signs on the wire but a
// valid duration is either all-positive or all-negative.
type Duration struct {
	Months int32
	Days   int32
	Nanos  int64
}

// IsZero reports whether all components are zero.
func (d Duration) IsZero() bool {
	return d.Months == 0 && d.Days == 0 && d.Nanos == 0
}

// Add returns the component-wise sum of both durations.
func (d Duration) Add(o Duration) Duration {
	return Duration{
		Months: d.Months + o.Months,
		Days:   d.Days + o.Days,
		Nanos:  d.Nanos + o.Nanos,
	}
}

func (d Duration) String() string {
	if d.IsZero() {
		return "0s"
	}

	var b strings.Builder

	if d.Months < 0 || d.Days < 0 || d.Nanos < 0 {
		b.WriteString("-")
	}

	app := func(v int64, unit string) {
		if v != 0 {
			b.WriteString(strconv.FormatInt(v, 10))
			b.WriteString(unit)
		}
	}

	mo := int64(d.Months)
	dy := int64(d.Days)
	ns := d.Nanos

	if mo < 0 {
		mo = -mo
	}
	if dy < 0 {
		dy = -dy
	}
	if ns < 0 {
		ns = -ns
	}

	app(mo/12, "y")
	app(mo%12, "mo")
	app(dy, "d")
	app(ns/int64(time.Hour), "h")
	app(ns%int64(time.Hour)/int64(time.Minute), "m")
	app(ns%int64(time.Minute)/int64(time.Second), "s")
	app(ns%int64(time.Second)/int64(time.Millisecond), "ms")
	app(ns%int64(time.Millisecond)/int64(time.Microsecond), "us")
	app(ns%int64(time.Microsecond), "ns")

	return b.String()
}

// ParseCqlDuration parses either the ISO 8601 form (P1Y3MT2H10M, with an
// optional leading sign) or a bare nanosecond count suffixed "ns".
func ParseCqlDuration(s string) (Duration, liberr.Error) {
	var (
		d   Duration
		neg bool
	)

	s = strings.TrimSpace(s)
	if s == "" {
		return d, ErrorDurationFormat.Error(nil)
	}

	if s[0] == '-' {
		neg = true
		s = s[1:]
	} else if s[0] == '+' {
		s = s[1:]
	}

	if strings.HasSuffix(s, "ns") && !strings.HasPrefix(s, "P") {
		n, e := strconv.ParseInt(strings.TrimSuffix(s, "ns"), 10, 64)
		if e != nil {
			return d, ErrorDurationFormat.Error(e)
		}

		d.Nanos = n
		if neg {
			d.Nanos = -d.Nanos
		}
		return d, nil
	}

	if !strings.HasPrefix(s, "P") {
		return d, ErrorDurationFormat.Error(nil)
	}

	var (
		inTime bool
		num    strings.Builder
	)

	for _, c := range s[1:] {
		switch {
		case c >= '0' && c <= '9':
			num.WriteRune(c)

		case c == 'T':
			inTime = true

		default:
			if num.Len() == 0 {
				return d, ErrorDurationFormat.Error(nil)
			}

			v, e := strconv.ParseInt(num.String(), 10, 64)
			if e != nil {
				return d, ErrorDurationFormat.Error(e)
			}
			num.Reset()

			switch {
			case c == 'Y' && !inTime:
				d.Months += int32(v * 12)
			case c == 'M' && !inTime:
				d.Months += int32(v)
			case c == 'W' && !inTime:
				d.Days += int32(v * 7)
			case c == 'D' && !inTime:
				d.Days += int32(v)
			case c == 'H' && inTime:
				d.Nanos += v * int64(time.Hour)
			case c == 'M' && inTime:
				d.Nanos += v * int64(time.Minute)
			case c == 'S' && inTime:
				d.Nanos += v * int64(time.Second)
			default:
				return d, ErrorDurationFormat.Error(nil)
			}
		}
	}

	if num.Len() > 0 {
		return d, ErrorDurationFormat.Error(nil)
	}

	if neg {
		d.Months = -d.Months
		d.Days = -d.Days
		d.Nanos = -d.Nanos
	}

	return d, nil
}

// appendVint appends a signed variable-length integer with zigzag encoding.
func appendVint(dst []byte, v int64) []byte {
	return appendUVint(dst, uint64(v>>63)^uint64(v<<1))
}

// appendUVint appends an unsigned variable-length integer. The number of
// leading one bits of the first byte gives the count of extra bytes.
func appendUVint(dst []byte, v uint64) []byte {
	if v < 0x80 {
		return append(dst, uint8(v))
	}

	var tmp [9]byte

	extra := 0
	for extra < 8 && v >= uint64(1)<<uint(7*extra+7) {
		extra++
	}

	pos := len(tmp)
	work := v
	for i := 0; i < extra; i++ {
		pos--
		tmp[pos] = uint8(work)
		work >>= 8
	}

	pos--
	mask := uint8(0xff << uint(8-extra))
	tmp[pos] = mask | uint8(work)

	return append(dst, tmp[pos:]...)
}

// readVint consumes a signed variable-length integer.
func readVint(b []byte) (int64, int, liberr.Error) {
	u, n, e := readUVint(b)
	if e != nil {
		return 0, 0, e
	}
	return int64(u>>1) ^ -int64(u&1), n, nil
}

func readUVint(b []byte) (uint64, int, liberr.Error) {
	if len(b) == 0 {
		return 0, 0, ErrorValueShort.Error(nil)
	}

	first := b[0]
	extra := 0
	for mask := uint8(0x80); mask > 0 && first&mask != 0; mask >>= 1 {
		extra++
	}

	if len(b) < 1+extra {
		return 0, 0, ErrorValueShort.Error(nil)
	}

	v := uint64(first & (0xff >> uint(extra)))
	for i := 1; i <= extra; i++ {
		v = v<<8 | uint64(b[i])
	}

	return v, 1 + extra, nil
}

func encodeDuration(d Duration) []byte {
	b := make([]byte, 0, 12)
	b = appendVint(b, int64(d.Months))
	b = appendVint(b, int64(d.Days))
	b = appendVint(b, d.Nanos)
	return b
}

func decodeDuration(b []byte) (Duration, liberr.Error) {
	var d Duration

	mo, n, e := readVint(b)
	if e != nil {
		return d, e
	}
	b = b[n:]

	dy, n, e := readVint(b)
	if e != nil {
		return d, e
	}
	b = b[n:]

	ns, n, e := readVint(b)
	if e != nil {
		return d, e
	}

	if len(b) != n {
		return d, ErrorValueOverflow.Error(nil)
	}

	d.Months = int32(mo)
	d.Days = int32(dy)
	d.Nanos = ns
	return d, nil
}
