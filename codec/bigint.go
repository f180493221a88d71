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
	"math/big"
	"time"
)

// epochDateCenter is the wire value of the date 1970-01-01: dates are
// serialized as an unsigned day count offset by 2^31.
const epochDateCenter uint32 = 1 << 31

// NanosPerDay bounds the valid range of the time type.
const NanosPerDay int64 = 86_400_000_000_000

// bigIntToBytes serializes an arbitrary-precision integer as minimal
// two's complement big-endian.
func bigIntToBytes(v *big.Int) []byte {
	switch v.Sign() {
	case 0:
		return []byte{0x00}

	case 1:
		b := v.Bytes()
		if b[0]&0x80 != 0 {
			return append([]byte{0x00}, b...)
		}
		return b
	}

	n := (v.BitLen() + 8) / 8

	shift := new(big.Int).Lsh(big.NewInt(1), uint(n*8))
	shift.Add(shift, v)

	b := shift.Bytes()
	for len(b) < n {
		b = append([]byte{0x00}, b...)
	}

	for len(b) > 1 && b[0] == 0xff && b[1]&0x80 != 0 {
		b = b[1:]
	}

	return b
}

// bytesToBigInt deserializes a two's complement big-endian integer.
func bytesToBigInt(b []byte) *big.Int {
	v := new(big.Int).SetBytes(b)

	if len(b) > 0 && b[0]&0x80 != 0 {
		shift := new(big.Int).Lsh(big.NewInt(1), uint(len(b)*8))
		v.Sub(v, shift)
	}

	return v
}

// DateFromTime converts an instant to its signed epoch-day count.
func DateFromTime(t time.Time) int32 {
	y, m, d := t.UTC().Date()
	u := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int32(u.Unix() / 86400)
}

// DateToTime converts a signed epoch-day count to a UTC midnight instant.
func DateToTime(days int32) time.Time {
	return time.Unix(int64(days)*86400, 0).UTC()
}
