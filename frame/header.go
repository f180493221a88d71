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

	cqlptc "github.com/nabbar/cqldriver/protocol"
	liberr "github.com/nabbar/golib/errors"
)

// Header is the fixed-size leading part of every frame.
type Header struct {
	Version  cqlptc.Version
	Flags    cqlptc.Flag
	Stream   int16
	OpCode   cqlptc.OpCode
	Length   uint32
	Response bool
}

// AppendHeader encodes the header at the end of dst and returns the
// extended slice. The stream id is written on 1 byte for protocol v1-2
// and on a signed big-endian short for v3 and above.
func AppendHeader(dst []byte, h Header) []byte {
	b := uint8(h.Version)
	if h.Response {
		b |= 0x80
	}

	dst = append(dst, b, uint8(h.Flags))

	if h.Version.HeaderLength() == 8 {
		dst = append(dst, uint8(h.Stream))
	} else {
		dst = binary.BigEndian.AppendUint16(dst, uint16(h.Stream))
	}

	dst = append(dst, uint8(h.OpCode))
	return binary.BigEndian.AppendUint32(dst, h.Length)
}

// EncodeHeader encodes the header into a new slice.
func EncodeHeader(h Header) []byte {
	return AppendHeader(make([]byte, 0, h.Version.HeaderLength()), h)
}

// DecodeHeader decodes a header from an already-sliced byte range.
// It performs no buffering: a short input is reported explicitly so the
// caller can read more bytes and retry.
func DecodeHeader(buf []byte) (Header, liberr.Error) {
	var h Header

	if len(buf) < 1 {
		return h, ErrorHeaderShort.Error(nil)
	}

	v, ok := cqlptc.ParseVersion(buf[0])
	if !ok {
		return h, ErrorHeaderVersion.Error(nil)
	}

	h.Version = v
	h.Response = buf[0]&0x80 != 0

	if len(buf) < v.HeaderLength() {
		return h, ErrorHeaderShort.Error(nil)
	}

	h.Flags = cqlptc.Flag(buf[1])

	if v.HeaderLength() == 8 {
		h.Stream = int16(int8(buf[2]))
		h.OpCode = cqlptc.OpCode(buf[3])
		h.Length = binary.BigEndian.Uint32(buf[4:8])
	} else {
		h.Stream = int16(binary.BigEndian.Uint16(buf[2:4]))
		h.OpCode = cqlptc.OpCode(buf[4])
		h.Length = binary.BigEndian.Uint32(buf[5:9])
	}

	return h, nil
}
