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

package token

import (
	"encoding/binary"
	"strconv"
)

// Token is a position on the murmur3 partitioner ring.
type Token int64

func (t Token) String() string {
	return strconv.FormatInt(int64(t), 10)
}

// ParseToken parses the decimal token representation used by the peers
// catalogue.
func ParseToken(s string) (Token, bool) {
	v, e := strconv.ParseInt(s, 10, 64)
	if e != nil {
		return 0, false
	}
	return Token(v), true
}

// Murmur3Token hashes a routing key to its ring position. This is the
// Cassandra flavour of murmur3 x64/128: signed 64-bit arithmetic, first
// half of the digest, with math.MinInt64 normalized to math.MaxInt64.
func Murmur3Token(key []byte) Token {
	h1 := murmur3H1(key)
	if h1 == -9223372036854775808 {
		return Token(9223372036854775807)
	}
	return Token(h1)
}

func rotl(v int64, r uint8) int64 {
	return (v << r) | int64(uint64(v)>>(64-r))
}

func fmix(v int64) int64 {
	v ^= int64(uint64(v) >> 33)
	v *= -49064778989728563
	v ^= int64(uint64(v) >> 33)
	v *= -4265267296055464877
	v ^= int64(uint64(v) >> 33)
	return v
}

func murmur3H1(data []byte) int64 {
	length := len(data)
	nblocks := length / 16

	var h1, h2 int64

	const (
		c1 int64 = -8663945395140668459
		c2 int64 = 5545529020109919103
	)

	for i := 0; i < nblocks; i++ {
		k1 := int64(binary.LittleEndian.Uint64(data[i*16:]))
		k2 := int64(binary.LittleEndian.Uint64(data[i*16+8:]))

		k1 *= c1
		k1 = rotl(k1, 31)
		k1 *= c2
		h1 ^= k1

		h1 = rotl(h1, 27)
		h1 += h2
		h1 = h1*5 + 0x52dce729

		k2 *= c2
		k2 = rotl(k2, 33)
		k2 *= c1
		h2 ^= k2

		h2 = rotl(h2, 31)
		h2 += h1
		h2 = h2*5 + 0x38495ab5
	}

	var k1, k2 int64

	tail := data[nblocks*16:]

	switch len(tail) {
	case 15:
		k2 ^= int64(tail[14]) << 48
		fallthrough
	case 14:
		k2 ^= int64(tail[13]) << 40
		fallthrough
	case 13:
		k2 ^= int64(tail[12]) << 32
		fallthrough
	case 12:
		k2 ^= int64(tail[11]) << 24
		fallthrough
	case 11:
		k2 ^= int64(tail[10]) << 16
		fallthrough
	case 10:
		k2 ^= int64(tail[9]) << 8
		fallthrough
	case 9:
		k2 ^= int64(tail[8])

		k2 *= c2
		k2 = rotl(k2, 33)
		k2 *= c1
		h2 ^= k2

		fallthrough
	case 8:
		k1 ^= int64(tail[7]) << 56
		fallthrough
	case 7:
		k1 ^= int64(tail[6]) << 48
		fallthrough
	case 6:
		k1 ^= int64(tail[5]) << 40
		fallthrough
	case 5:
		k1 ^= int64(tail[4]) << 32
		fallthrough
	case 4:
		k1 ^= int64(tail[3]) << 24
		fallthrough
	case 3:
		k1 ^= int64(tail[2]) << 16
		fallthrough
	case 2:
		k1 ^= int64(tail[1]) << 8
		fallthrough
	case 1:
		k1 ^= int64(tail[0])

		k1 *= c1
		k1 = rotl(k1, 31)
		k1 *= c2
		h1 ^= k1
	}

	h1 ^= int64(length)
	h2 ^= int64(length)

	h1 += h2
	h2 += h1

	h1 = fmix(h1)
	h2 = fmix(h2)

	h1 += h2

	return h1
}

// ComposeRoutingKey builds the routing key of a composite partition key:
// each component is framed with a 2-byte length and a trailing zero.
// A single component is used verbatim.
func ComposeRoutingKey(components [][]byte) []byte {
	if len(components) == 1 {
		return components[0]
	}

	size := 0
	for _, c := range components {
		size += 3 + len(c)
	}

	out := make([]byte, 0, size)
	for _, c := range components {
		var l [2]byte
		binary.BigEndian.PutUint16(l[:], uint16(len(c)))
		out = append(out, l[:]...)
		out = append(out, c...)
		out = append(out, 0)
	}

	return out
}
