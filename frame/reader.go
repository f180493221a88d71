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

package frame

import (
	"encoding/binary"
	"net"

	cqlptc "github.com/nabbar/cqldriver/protocol"
	liberr "github.com/nabbar/golib/errors"
)

// Reader consumes a frame body using the protocol notations.
// It operates on an already-sliced byte range and reports incomplete
// input explicitly, never buffering.
type Reader struct {
	buf []byte
	pos int
}

// NewReader returns a reader over the given body.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

func (r *Reader) take(n int) ([]byte, liberr.Error) {
	if n < 0 || r.Remaining() < n {
		return nil, ErrorBodyOverflow.Error(nil)
	}

	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) ReadUint8() (uint8, liberr.Error) {
	b, e := r.take(1)
	if e != nil {
		return 0, e
	}
	return b[0], nil
}

func (r *Reader) ReadShort() (uint16, liberr.Error) {
	b, e := r.take(2)
	if e != nil {
		return 0, e
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) ReadInt() (int32, liberr.Error) {
	b, e := r.take(4)
	if e != nil {
		return 0, e
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (r *Reader) ReadLong() (int64, liberr.Error) {
	b, e := r.take(8)
	if e != nil {
		return 0, e
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// ReadBytes reads the [bytes] notation. A null marker yields a nil slice.
func (r *Reader) ReadBytes() ([]byte, liberr.Error) {
	n, e := r.ReadInt()
	if e != nil {
		return nil, e
	}

	if n < 0 {
		return nil, nil
	}

	return r.take(int(n))
}

// ReadShortBytes reads the [short bytes] notation.
func (r *Reader) ReadShortBytes() ([]byte, liberr.Error) {
	n, e := r.ReadShort()
	if e != nil {
		return nil, e
	}
	return r.take(int(n))
}

// ReadString reads the [string] notation.
func (r *Reader) ReadString() (string, liberr.Error) {
	b, e := r.ReadShortBytes()
	if e != nil {
		return "", e
	}
	return string(b), nil
}

// ReadLongString reads the [long string] notation.
func (r *Reader) ReadLongString() (string, liberr.Error) {
	n, e := r.ReadInt()
	if e != nil {
		return "", e
	}

	b, e := r.take(int(n))
	if e != nil {
		return "", e
	}

	return string(b), nil
}

// ReadStringList reads the [string list] notation.
func (r *Reader) ReadStringList() ([]string, liberr.Error) {
	n, e := r.ReadShort()
	if e != nil {
		return nil, e
	}

	l := make([]string, 0, n)
	for i := 0; i < int(n); i++ {
		s, er := r.ReadString()
		if er != nil {
			return nil, er
		}
		l = append(l, s)
	}

	return l, nil
}

// ReadStringMap reads the [string map] notation.
func (r *Reader) ReadStringMap() (map[string]string, liberr.Error) {
	n, e := r.ReadShort()
	if e != nil {
		return nil, e
	}

	m := make(map[string]string, n)
	for i := 0; i < int(n); i++ {
		k, er := r.ReadString()
		if er != nil {
			return nil, er
		}

		v, er := r.ReadString()
		if er != nil {
			return nil, er
		}

		m[k] = v
	}

	return m, nil
}

// ReadStringMultiMap reads the [string multimap] notation.
func (r *Reader) ReadStringMultiMap() (map[string][]string, liberr.Error) {
	n, e := r.ReadShort()
	if e != nil {
		return nil, e
	}

	m := make(map[string][]string, n)
	for i := 0; i < int(n); i++ {
		k, er := r.ReadString()
		if er != nil {
			return nil, er
		}

		v, er := r.ReadStringList()
		if er != nil {
			return nil, er
		}

		m[k] = v
	}

	return m, nil
}

// ReadConsistency reads a consistency level.
func (r *Reader) ReadConsistency() (cqlptc.Consistency, liberr.Error) {
	v, e := r.ReadShort()
	if e != nil {
		return cqlptc.Any, e
	}
	return cqlptc.Consistency(v), nil
}

// ReadInet reads the [inet] notation.
func (r *Reader) ReadInet() (net.IP, int32, liberr.Error) {
	n, e := r.ReadUint8()
	if e != nil {
		return nil, 0, e
	}

	b, e := r.take(int(n))
	if e != nil {
		return nil, 0, e
	}

	p, e := r.ReadInt()
	if e != nil {
		return nil, 0, e
	}

	ip := make(net.IP, len(b))
	copy(ip, b)
	return ip, p, nil
}

// ReadInetAddr reads the [inetaddr] notation (no port).
func (r *Reader) ReadInetAddr() (net.IP, liberr.Error) {
	n, e := r.ReadUint8()
	if e != nil {
		return nil, e
	}

	b, e := r.take(int(n))
	if e != nil {
		return nil, e
	}

	ip := make(net.IP, len(b))
	copy(ip, b)
	return ip, nil
}

// ReadRaw consumes exactly n bytes.
func (r *Reader) ReadRaw(n int) ([]byte, liberr.Error) {
	return r.take(n)
}
