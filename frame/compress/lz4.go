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

package compress

import (
	"encoding/binary"

	liberr "github.com/nabbar/golib/errors"
	"github.com/pierrec/lz4/v4"
)

type flz struct{}

func (o *flz) Name() string {
	return "lz4"
}

func (o *flz) Compress(src []byte) ([]byte, liberr.Error) {
	dst := make([]byte, 4+lz4.CompressBlockBound(len(src)))
	binary.BigEndian.PutUint32(dst[:4], uint32(len(src)))

	var c lz4.Compressor

	n, e := c.CompressBlock(src, dst[4:])
	if e != nil {
		return nil, ErrorCompressLZ4.Error(e)
	}

	return dst[:4+n], nil
}

func (o *flz) Decompress(src []byte) ([]byte, liberr.Error) {
	if len(src) < 4 {
		return nil, ErrorDecompressLZ4.Error(nil)
	}

	size := binary.BigEndian.Uint32(src[:4])
	if size == 0 {
		return []byte{}, nil
	}

	dst := make([]byte, size)

	n, e := lz4.UncompressBlock(src[4:], dst)
	if e != nil {
		return nil, ErrorDecompressLZ4.Error(e)
	}

	return dst[:n], nil
}
