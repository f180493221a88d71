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

package frame_test

import (
	"bytes"
	"math/rand"

	. "github.com/nabbar/cqldriver/frame"
	cqlcmp "github.com/nabbar/cqldriver/frame/compress"
	cqlptc "github.com/nabbar/cqldriver/protocol"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var opcodes = []cqlptc.OpCode{
	cqlptc.OpError, cqlptc.OpStartup, cqlptc.OpReady, cqlptc.OpAuthenticate,
	cqlptc.OpCredentials, cqlptc.OpOptions, cqlptc.OpSupported, cqlptc.OpQuery,
	cqlptc.OpResult, cqlptc.OpPrepare, cqlptc.OpExecute, cqlptc.OpRegister,
	cqlptc.OpEvent, cqlptc.OpBatch, cqlptc.OpAuthChallenge, cqlptc.OpAuthResponse,
	cqlptc.OpAuthSuccess,
}

var _ = Describe("Frame header", func() {
	It("should round-trip every opcode on every supported version", func() {
		for _, v := range []cqlptc.Version{cqlptc.Version3, cqlptc.Version4, cqlptc.Version5} {
			for _, op := range opcodes {
				h := Header{
					Version: v,
					Flags:   cqlptc.FlagCompressed | cqlptc.FlagWarning,
					Stream:  1027,
					OpCode:  op,
					Length:  123456,
				}

				out, e := DecodeHeader(EncodeHeader(h))
				Expect(e).ToNot(HaveOccurred())
				Expect(out).To(Equal(h))
			}
		}
	})

	It("should carry one byte stream ids on protocol v2", func() {
		h := Header{Version: cqlptc.Version2, Stream: 113, OpCode: cqlptc.OpQuery, Length: 9}

		b := EncodeHeader(h)
		Expect(b).To(HaveLen(8))

		out, e := DecodeHeader(b)
		Expect(e).ToNot(HaveOccurred())
		Expect(out.Stream).To(Equal(int16(113)))
	})

	It("should keep the direction bit apart from the version", func() {
		h := Header{Version: cqlptc.Version4, Stream: 1, OpCode: cqlptc.OpResult, Length: 0, Response: true}

		b := EncodeHeader(h)
		Expect(b[0] & 0x80).To(Equal(uint8(0x80)))

		out, e := DecodeHeader(b)
		Expect(e).ToNot(HaveOccurred())
		Expect(out.Response).To(BeTrue())
		Expect(out.Version).To(Equal(cqlptc.Version4))
	})

	It("should report short input explicitly", func() {
		h := Header{Version: cqlptc.Version4, Stream: 1, OpCode: cqlptc.OpQuery, Length: 1}

		b := EncodeHeader(h)

		_, e := DecodeHeader(b[:4])
		Expect(e).To(HaveOccurred())
		Expect(e.HasCode(ErrorHeaderShort)).To(BeTrue())
	})
})

var _ = Describe("Body notations", func() {
	It("should round-trip the wire notations", func() {
		w := NewWriter(64)
		w.WriteString("ks")
		w.WriteLongString("SELECT * FROM t")
		w.WriteStringList([]string{"a", "b"})
		w.WriteBytes([]byte{1, 2, 3})
		w.WriteBytes(nil)
		w.WriteShortBytes([]byte{9})
		w.WriteConsistency(cqlptc.Quorum)

		r := NewReader(w.Bytes())

		s, e := r.ReadString()
		Expect(e).ToNot(HaveOccurred())
		Expect(s).To(Equal("ks"))

		ls, e := r.ReadLongString()
		Expect(e).ToNot(HaveOccurred())
		Expect(ls).To(Equal("SELECT * FROM t"))

		l, e := r.ReadStringList()
		Expect(e).ToNot(HaveOccurred())
		Expect(l).To(Equal([]string{"a", "b"}))

		b, e := r.ReadBytes()
		Expect(e).ToNot(HaveOccurred())
		Expect(b).To(Equal([]byte{1, 2, 3}))

		b, e = r.ReadBytes()
		Expect(e).ToNot(HaveOccurred())
		Expect(b).To(BeNil())

		b, e = r.ReadShortBytes()
		Expect(e).ToNot(HaveOccurred())
		Expect(b).To(Equal([]byte{9}))

		c, e := r.ReadConsistency()
		Expect(e).ToNot(HaveOccurred())
		Expect(c).To(Equal(cqlptc.Quorum))

		Expect(r.Remaining()).To(Equal(0))
	})

	It("should report truncated notations instead of panicking", func() {
		r := NewReader([]byte{0x00, 0x05, 'a'})

		_, e := r.ReadString()
		Expect(e).To(HaveOccurred())
		Expect(e.HasCode(ErrorBodyOverflow)).To(BeTrue())
	})

	It("should round-trip random bodies above one mebibyte verbatim", func() {
		body := make([]byte, 1<<20+8192)
		_, _ = rand.New(rand.NewSource(42)).Read(body)

		w := NewWriter(len(body) + 4)
		w.WriteBytes(body)

		r := NewReader(w.Bytes())
		out, e := r.ReadBytes()
		Expect(e).ToNot(HaveOccurred())
		Expect(bytes.Equal(out, body)).To(BeTrue())
	})
})

var _ = Describe("Compression codec", func() {
	It("should round-trip large bodies through lz4", func() {
		body := make([]byte, 1<<20)
		for i := range body {
			body[i] = byte(i % 251)
		}

		c := cqlcmp.LZ4()

		packed, e := c.Compress(body)
		Expect(e).ToNot(HaveOccurred())
		Expect(len(packed)).To(BeNumerically("<", len(body)))

		out, e := c.Decompress(packed)
		Expect(e).ToNot(HaveOccurred())
		Expect(bytes.Equal(out, body)).To(BeTrue())
	})

	It("should pass bodies through the none codec unchanged", func() {
		c := cqlcmp.None()

		out, e := c.Compress([]byte{1, 2})
		Expect(e).ToNot(HaveOccurred())
		Expect(out).To(Equal([]byte{1, 2}))
	})
})
