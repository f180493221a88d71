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

import liberr "github.com/nabbar/golib/errors"

// Compressor is the pluggable frame-body compression codec negotiated
// during STARTUP. Implementations operate on whole bodies.
type Compressor interface {
	// Name returns the algorithm name as announced in the STARTUP options.
	Name() string
	// Compress returns the compressed form of the given body.
	Compress(src []byte) ([]byte, liberr.Error)
	// Decompress returns the original body from its compressed form.
	Decompress(src []byte) ([]byte, liberr.Error)
}

// None returns a pass-through codec used when no compression is negotiated.
func None() Compressor {
	return &non{}
}

// LZ4 returns the lz4 block codec. The compressed body is prefixed with
// the uncompressed length on 4 bytes big-endian, as the server expects.
func LZ4() Compressor {
	return &flz{}
}

type non struct{}

func (o *non) Name() string {
	return ""
}

func (o *non) Compress(src []byte) ([]byte, liberr.Error) {
	return src, nil
}

func (o *non) Decompress(src []byte) ([]byte, liberr.Error) {
	return src, nil
}
