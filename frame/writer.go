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
)

const (
	// LenNull is the [bytes] length marker for a null value.
	LenNull int32 = -1
	// LenUnset is the [bytes] length marker for an unset value (protocol v4+).
	LenUnset int32 = -2
)

// Writer accumulates a frame body using the protocol notations.
// The zero value is ready to use.
type Writer struct {
	buf []byte
}

// NewWriter returns a writer with the given initial capacity.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Bytes returns the accumulated body.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the accumulated body length.
func (w *Writer) Len() int {
	return len(w.buf)
}

func (w *Writer) WriteUint8(b uint8) {
	w.buf = append(w.buf, b)
}

func (w *Writer) WriteShort(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *Writer) WriteInt(v int32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
}

func (w *Writer) WriteLong(v int64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v))
}

func (w *Writer) WriteRaw(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteBytes writes the [bytes] notation: a signed int length then the body.
// A nil slice is written as a null marker.
func (w *Writer) WriteBytes(b []byte) {
	if b == nil {
		w.WriteInt(LenNull)
		return
	}

	w.WriteInt(int32(len(b)))
	w.WriteRaw(b)
}

// WriteUnset writes the unset marker (protocol v4+ only).
func (w *Writer) WriteUnset() {
	w.WriteInt(LenUnset)
}

// WriteShortBytes writes the [short bytes] notation.
func (w *Writer) WriteShortBytes(b []byte) {
	w.WriteShort(uint16(len(b)))
	w.WriteRaw(b)
}

// WriteString writes the [string] notation.
func (w *Writer) WriteString(s string) {
	w.WriteShort(uint16(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteLongString writes the [long string] notation.
func (w *Writer) WriteLongString(s string) {
	w.WriteInt(int32(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteStringList writes the [string list] notation.
func (w *Writer) WriteStringList(l []string) {
	w.WriteShort(uint16(len(l)))
	for _, s := range l {
		w.WriteString(s)
	}
}

// WriteStringMap writes the [string map] notation.
func (w *Writer) WriteStringMap(m map[string]string) {
	w.WriteShort(uint16(len(m)))
	for k, v := range m {
		w.WriteString(k)
		w.WriteString(v)
	}
}

// WriteBytesMap writes the [bytes map] notation.
func (w *Writer) WriteBytesMap(m map[string][]byte) {
	w.WriteShort(uint16(len(m)))
	for k, v := range m {
		w.WriteString(k)
		w.WriteBytes(v)
	}
}

// WriteConsistency writes a consistency level as an unsigned short.
func (w *Writer) WriteConsistency(c cqlptc.Consistency) {
	w.WriteShort(uint16(c))
}

// WriteInet writes the [inet] notation: address size, address bytes, port.
func (w *Writer) WriteInet(ip net.IP, port int32) {
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}

	w.WriteUint8(uint8(len(ip)))
	w.WriteRaw(ip)
	w.WriteInt(port)
}
