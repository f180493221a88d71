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
	"encoding/binary"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	hshuid "github.com/hashicorp/go-uuid"
	liberr "github.com/nabbar/golib/errors"
)

// UUID is a 16-byte universally unique identifier.
type UUID [16]byte

// gregorianOffset is the number of 100ns intervals between the Gregorian
// epoch (1582-10-15T00:00:00Z) and the Unix epoch.
const gregorianOffset int64 = 122192928000000000

var (
	uuidOnce  sync.Once
	uuidNode  [6]byte
	uuidClock uint16
	uuidMux   sync.Mutex
	uuidLast  int64
)

func uuidInit() {
	b, e := hshuid.GenerateRandomBytes(8)
	if e != nil {
		// fallback on a fixed node, still multicast-flagged
		b = []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	}

	copy(uuidNode[:], b[:6])
	// multicast bit marks a non-hardware node id
	uuidNode[0] |= 0x01
	uuidClock = binary.BigEndian.Uint16(b[6:8]) & 0x3fff
}

// NewRandomUUID returns a version 4 uuid built from a secure random source.
func NewRandomUUID() (UUID, liberr.Error) {
	var u UUID

	b, e := hshuid.GenerateRandomBytes(16)
	if e != nil {
		return u, ErrorUUIDFormat.Error(e)
	}

	copy(u[:], b)
	u[6] = (u[6] & 0x0f) | 0x40
	u[8] = (u[8] & 0x3f) | 0x80
	return u, nil
}

// NewTimeUUID returns a version 1 uuid for the current wall clock.
func NewTimeUUID() (UUID, liberr.Error) {
	return TimeUUIDFrom(time.Now())
}

// TimeUUIDFrom returns a version 1 uuid whose timestamp portion encodes
// the given instant with the Gregorian epoch offset of RFC 4122.
func TimeUUIDFrom(t time.Time) (UUID, liberr.Error) {
	uuidOnce.Do(uuidInit)

	ts := t.UnixNano()/100 + gregorianOffset

	uuidMux.Lock()
	if ts <= uuidLast {
		uuidClock = (uuidClock + 1) & 0x3fff
	}
	uuidLast = ts
	clock := uuidClock
	uuidMux.Unlock()

	return buildTimeUUID(ts, clock, uuidNode), nil
}

// MinTimeUUID returns the smallest possible version 1 uuid for the given
// instant, usable as a range bound.
func MinTimeUUID(t time.Time) UUID {
	return buildTimeUUID(t.UnixNano()/100+gregorianOffset, 0x8000&0x3fff, [6]byte{})
}

func buildTimeUUID(ts int64, clock uint16, node [6]byte) UUID {
	var u UUID

	binary.BigEndian.PutUint32(u[0:4], uint32(ts))
	binary.BigEndian.PutUint16(u[4:6], uint16(ts>>32))
	binary.BigEndian.PutUint16(u[6:8], uint16(ts>>48)&0x0fff|0x1000)
	binary.BigEndian.PutUint16(u[8:10], clock&0x3fff|0x8000)
	copy(u[10:], node[:])

	return u
}

// ParseUUID parses the canonical hyphenated representation.
func ParseUUID(s string) (UUID, liberr.Error) {
	var u UUID

	s = strings.ReplaceAll(strings.TrimSpace(s), "-", "")
	if len(s) != 32 {
		return u, ErrorUUIDFormat.Error(nil)
	}

	b, e := hex.DecodeString(s)
	if e != nil {
		return u, ErrorUUIDFormat.Error(e)
	}

	copy(u[:], b)
	return u, nil
}

// Version returns the uuid version nibble.
func (u UUID) Version() int {
	return int(u[6] >> 4)
}

// Time returns the instant encoded in a version 1 uuid.
// The result is meaningless for other versions.
func (u UUID) Time() time.Time {
	ts := int64(binary.BigEndian.Uint32(u[0:4]))
	ts |= int64(binary.BigEndian.Uint16(u[4:6])) << 32
	ts |= int64(binary.BigEndian.Uint16(u[6:8])&0x0fff) << 48

	ns := (ts - gregorianOffset) * 100
	return time.Unix(ns/int64(time.Second), ns%int64(time.Second)).UTC()
}

// Bytes returns the uuid as a fresh 16-byte slice.
func (u UUID) Bytes() []byte {
	b := make([]byte, 16)
	copy(b, u[:])
	return b
}

func (u UUID) String() string {
	var b [36]byte

	hex.Encode(b[0:8], u[0:4])
	b[8] = '-'
	hex.Encode(b[9:13], u[4:6])
	b[13] = '-'
	hex.Encode(b[14:18], u[6:8])
	b[18] = '-'
	hex.Encode(b[19:23], u[8:10])
	b[23] = '-'
	hex.Encode(b[24:36], u[10:16])

	return string(b[:])
}
