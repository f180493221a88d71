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

package message_test

import (
	"net"

	cqlfrm "github.com/nabbar/cqldriver/frame"
	cqlcmp "github.com/nabbar/cqldriver/frame/compress"
	. "github.com/nabbar/cqldriver/message"
	cqlptc "github.com/nabbar/cqldriver/protocol"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const pv = cqlptc.Version4

func decodeOwn(buf []byte, cmp cqlcmp.Compressor) *Inbound {
	h, e := cqlfrm.DecodeHeader(buf)
	Expect(e).ToNot(HaveOccurred())

	in, e := DecodeFrame(h, buf[h.Version.HeaderLength():], cmp)
	Expect(e).ToNot(HaveOccurred())

	return in
}

var _ = Describe("Request encoding", func() {
	It("should frame a startup body as a string map", func() {
		buf, e := EncodeFrame(&Startup{Compression: "lz4"}, pv, 0, nil, nil)
		Expect(e).ToNot(HaveOccurred())

		h, er := cqlfrm.DecodeHeader(buf)
		Expect(er).ToNot(HaveOccurred())
		Expect(h.OpCode).To(Equal(cqlptc.OpStartup))
		Expect(h.Length).To(Equal(uint32(len(buf) - pv.HeaderLength())))

		r := cqlfrm.NewReader(buf[pv.HeaderLength():])
		m, er := r.ReadStringMap()
		Expect(er).ToNot(HaveOccurred())
		Expect(m).To(HaveKeyWithValue("COMPRESSION", "lz4"))
		Expect(m).To(HaveKeyWithValue("CQL_VERSION", "3.0.0"))
	})

	It("should never compress the startup frame itself", func() {
		buf, e := EncodeFrame(&Startup{Compression: "lz4"}, pv, 0, cqlcmp.LZ4(), nil)
		Expect(e).ToNot(HaveOccurred())

		h, er := cqlfrm.DecodeHeader(buf)
		Expect(er).ToNot(HaveOccurred())
		Expect(h.Flags.Has(cqlptc.FlagCompressed)).To(BeFalse())
	})

	It("should compress and decode query bodies transparently", func() {
		q := &Query{
			Query:  "SELECT * FROM a.b WHERE id = ?",
			Params: QueryParameters{Consistency: cqlptc.Quorum, Values: []Value{BytesValue([]byte{0, 0, 0, 1})}},
		}

		buf, e := EncodeFrame(q, pv, 7, cqlcmp.LZ4(), nil)
		Expect(e).ToNot(HaveOccurred())

		h, er := cqlfrm.DecodeHeader(buf)
		Expect(er).ToNot(HaveOccurred())
		Expect(h.Flags.Has(cqlptc.FlagCompressed)).To(BeTrue())
		Expect(h.Stream).To(Equal(int16(7)))
	})

	It("should mark null and unset values distinctly", func() {
		q := &Query{
			Query: "INSERT INTO t(a, b) VALUES (?, ?)",
			Params: QueryParameters{
				Consistency: cqlptc.One,
				Values:      []Value{BytesValue(nil), UnsetValue()},
			},
		}

		buf, e := EncodeFrame(q, pv, 1, nil, nil)
		Expect(e).ToNot(HaveOccurred())

		r := cqlfrm.NewReader(buf[pv.HeaderLength():])

		_, er := r.ReadLongString()
		Expect(er).ToNot(HaveOccurred())

		_, er = r.ReadConsistency()
		Expect(er).ToNot(HaveOccurred())

		flags, er := r.ReadUint8()
		Expect(er).ToNot(HaveOccurred())
		Expect(flags & cqlptc.QryFlagValues).ToNot(BeZero())

		n, er := r.ReadShort()
		Expect(er).ToNot(HaveOccurred())
		Expect(n).To(Equal(uint16(2)))

		null, er := r.ReadInt()
		Expect(er).ToNot(HaveOccurred())
		Expect(null).To(Equal(cqlfrm.LenNull))

		unset, er := r.ReadInt()
		Expect(er).ToNot(HaveOccurred())
		Expect(unset).To(Equal(cqlfrm.LenUnset))
	})
})

var _ = Describe("Response decoding", func() {
	buildError := func(code cqlptc.ErrorCode, extra func(w *cqlfrm.Writer)) []byte {
		w := cqlfrm.NewWriter(64)
		w.WriteInt(int32(code))
		w.WriteString("details")
		if extra != nil {
			extra(w)
		}

		h := cqlfrm.Header{Version: pv, Stream: 3, OpCode: cqlptc.OpError, Length: uint32(w.Len()), Response: true}
		return append(cqlfrm.EncodeHeader(h), w.Bytes()...)
	}

	It("should decode an unavailable error with its details", func() {
		buf := buildError(cqlptc.ErrUnavailable, func(w *cqlfrm.Writer) {
			w.WriteConsistency(cqlptc.Quorum)
			w.WriteInt(3)
			w.WriteInt(1)
		})

		in := decodeOwn(buf, nil)

		m, ok := in.Message.(*Error)
		Expect(ok).To(BeTrue())
		Expect(m.Code).To(Equal(cqlptc.ErrUnavailable))
		Expect(m.Consistency).To(Equal(cqlptc.Quorum))
		Expect(m.BlockFor).To(Equal(int32(3)))
		Expect(m.Alive).To(Equal(int32(1)))
	})

	It("should decode an unprepared error with its query id", func() {
		buf := buildError(cqlptc.ErrUnprepared, func(w *cqlfrm.Writer) {
			w.WriteShortBytes([]byte{0xca, 0xfe})
		})

		in := decodeOwn(buf, nil)

		m := in.Message.(*Error)
		Expect(m.Code).To(Equal(cqlptc.ErrUnprepared))
		Expect(m.UnpreparedID).To(Equal([]byte{0xca, 0xfe}))
	})

	It("should surface warning frames on the envelope", func() {
		w := cqlfrm.NewWriter(64)
		w.WriteStringList([]string{"Aggregation query used without partition key"})
		w.WriteInt(int32(cqlptc.ResultVoid))

		h := cqlfrm.Header{
			Version:  pv,
			Flags:    cqlptc.FlagWarning,
			Stream:   2,
			OpCode:   cqlptc.OpResult,
			Length:   uint32(w.Len()),
			Response: true,
		}

		in := decodeOwn(append(cqlfrm.EncodeHeader(h), w.Bytes()...), nil)

		Expect(in.Warnings).To(HaveLen(1))
		Expect(in.Message).To(BeAssignableToTypeOf(&VoidResult{}))
	})

	It("should decode status change events", func() {
		w := cqlfrm.NewWriter(64)
		w.WriteString("STATUS_CHANGE")
		w.WriteString("DOWN")
		w.WriteInet(net.IP{10, 0, 0, 7}, 9042)

		h := cqlfrm.Header{Version: pv, Stream: -1, OpCode: cqlptc.OpEvent, Length: uint32(w.Len()), Response: true}

		in := decodeOwn(append(cqlfrm.EncodeHeader(h), w.Bytes()...), nil)

		m := in.Message.(*Event)
		Expect(m.Kind).To(Equal(cqlptc.EventStatusChange))
		Expect(m.Change).To(Equal("DOWN"))
		Expect(m.Address).To(Equal("10.0.0.7:9042"))
	})

	It("should decode a rows result with its metadata", func() {
		w := cqlfrm.NewWriter(128)
		w.WriteInt(int32(cqlptc.ResultRows))
		w.WriteInt(cqlptc.RowsFlagGlobalTableSpec)
		w.WriteInt(1) // column count
		w.WriteString("ks")
		w.WriteString("t")
		w.WriteString("name")
		w.WriteShort(uint16(cqlptc.TypeVarchar))
		w.WriteInt(2) // row count
		w.WriteBytes([]byte("alpha"))
		w.WriteBytes([]byte("beta"))

		h := cqlfrm.Header{Version: pv, Stream: 5, OpCode: cqlptc.OpResult, Length: uint32(w.Len()), Response: true}

		in := decodeOwn(append(cqlfrm.EncodeHeader(h), w.Bytes()...), nil)

		m := in.Message.(*RowsResult)
		Expect(m.Metadata.Columns).To(HaveLen(1))
		Expect(m.Metadata.Columns[0].Name).To(Equal("name"))
		Expect(m.Rows).To(HaveLen(2))
		Expect(string(m.Rows[0][0])).To(Equal("alpha"))
	})
})
