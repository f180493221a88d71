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

package codec_test

import (
	"encoding/hex"
	"math"
	"math/big"
	"net"
	"time"

	. "github.com/nabbar/cqldriver/codec"
	cqlptc "github.com/nabbar/cqldriver/protocol"
	"github.com/shopspring/decimal"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const pv = cqlptc.Version4

func roundTrip(v interface{}, t *DataType) interface{} {
	b, e := Encode(v, t, pv)
	Expect(e).ToNot(HaveOccurred())

	out, e := Decode(b, t, pv)
	Expect(e).ToNot(HaveOccurred())

	return out
}

var _ = Describe("Value codec", func() {
	Context("integers", func() {
		It("should round-trip bigint over the full signed 64 bit range", func() {
			for _, v := range []int64{math.MinInt64, -1, 0, 1, math.MaxInt64, 4611686018427387904} {
				Expect(roundTrip(v, Bigint())).To(Equal(v))
			}
		})

		It("should round-trip int, smallint and tinyint", func() {
			Expect(roundTrip(int32(-42), Int())).To(Equal(int32(-42)))
			Expect(roundTrip(int16(1234), Smallint())).To(Equal(int16(1234)))
			Expect(roundTrip(int8(-5), Tinyint())).To(Equal(int8(-5)))
		})

		It("should fail when a hinted narrow type cannot hold the value", func() {
			_, e := Encode(int64(70000), Smallint(), pv)
			Expect(e).To(HaveOccurred())
			Expect(e.HasCode(ErrorValueRange)).To(BeTrue())
		})

		It("should fail with a type mismatch for unrelated values", func() {
			_, e := Encode("text", Bigint(), pv)
			Expect(e).To(HaveOccurred())
			Expect(e.HasCode(ErrorTypeMismatch)).To(BeTrue())
		})
	})

	Context("varint", func() {
		It("should match the reference vector", func() {
			v, ok := new(big.Int).SetString("-988229782938247303441911118", 10)
			Expect(ok).To(BeTrue())

			b, e := Encode(v, Varint(), pv)
			Expect(e).ToNot(HaveOccurred())
			Expect(hex.EncodeToString(b)).To(Equal("fcce8e341f053d299a4872b2"))

			out, e := Decode(b, Varint(), pv)
			Expect(e).ToNot(HaveOccurred())
			Expect(out.(*big.Int).String()).To(Equal("-988229782938247303441911118"))
		})

		It("should round-trip small and boundary values", func() {
			for _, s := range []string{"0", "-1", "127", "128", "-128", "-129", "255", "256", "9223372036854775808"} {
				v, _ := new(big.Int).SetString(s, 10)
				out := roundTrip(v, Varint())
				Expect(out.(*big.Int).String()).To(Equal(s))
			}
		})
	})

	Context("decimal", func() {
		It("should round-trip scale and unscaled value", func() {
			d := decimal.RequireFromString("-123.456")
			out := roundTrip(d, Decimal())
			Expect(out.(decimal.Decimal).Equal(d)).To(BeTrue())
		})
	})

	Context("date", func() {
		It("should encode 1970-01-01 as epoch day zero", func() {
			t := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
			Expect(DateFromTime(t)).To(Equal(int32(0)))

			out := roundTrip(t, Date())
			Expect(out).To(Equal(int32(0)))
		})

		It("should encode 0001-01-01 as day -719162", func() {
			t := time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
			Expect(DateFromTime(t)).To(Equal(int32(-719162)))
		})

		It("should round-trip day counts", func() {
			Expect(roundTrip(int32(18262), Date())).To(Equal(int32(18262)))
			Expect(DateToTime(0).Year()).To(Equal(1970))
		})
	})

	Context("time", func() {
		It("should parse 14:29:31.8 to its nanosecond of day", func() {
			ns, e := ParseTimeOfDay("14:29:31.8")
			Expect(e).ToNot(HaveOccurred())
			Expect(ns).To(Equal(int64(52_171_800_000_000)))
		})

		It("should reject values beyond one day", func() {
			_, e := Encode(NanosPerDay, Time(), pv)
			Expect(e).To(HaveOccurred())
		})

		It("should round-trip a nanosecond of day", func() {
			Expect(roundTrip(int64(1234567), Time())).To(Equal(int64(1234567)))
		})
	})

	Context("timestamp", func() {
		It("should round-trip with millisecond precision", func() {
			t := time.Date(2024, 5, 17, 10, 30, 0, 250_000_000, time.UTC)
			out := roundTrip(t, Timestamp())
			Expect(out.(time.Time).Equal(t)).To(BeTrue())
		})
	})

	Context("uuid", func() {
		It("should build the epoch timeuuid", func() {
			u := MinTimeUUID(time.Unix(0, 0))
			Expect(u.String()).To(Equal("13814000-1dd2-11b2-8000-000000000000"))
		})

		It("should round-trip the text form", func() {
			u, e := ParseUUID("13814000-1dd2-11b2-8000-000000000000")
			Expect(e).ToNot(HaveOccurred())
			Expect(u.String()).To(Equal("13814000-1dd2-11b2-8000-000000000000"))
			Expect(u.Version()).To(Equal(1))
			Expect(u.Time().Unix()).To(Equal(int64(0)))
		})

		It("should generate distinct version 1 time uuids", func() {
			a, e := NewTimeUUID()
			Expect(e).ToNot(HaveOccurred())

			b, e := NewTimeUUID()
			Expect(e).ToNot(HaveOccurred())

			Expect(a).ToNot(Equal(b))
			Expect(a.Version()).To(Equal(1))
		})

		It("should round-trip on the wire", func() {
			u, _ := NewRandomUUID()
			Expect(roundTrip(u, Uuid())).To(Equal(u))
		})
	})

	Context("inet", func() {
		It("should round-trip v4 and v6 addresses", func() {
			v4 := net.ParseIP("10.0.0.1")
			out := roundTrip(v4, Inet())
			Expect(out.(net.IP).Equal(v4)).To(BeTrue())

			v6 := net.ParseIP("2001:db8::68")
			out = roundTrip(v6, Inet())
			Expect(out.(net.IP).Equal(v6)).To(BeTrue())
		})
	})

	Context("duration", func() {
		It("should parse the ISO form", func() {
			d, e := ParseCqlDuration("P1Y3MT2H10M")
			Expect(e).ToNot(HaveOccurred())
			Expect(d.Months).To(Equal(int32(15)))
			Expect(d.Days).To(Equal(int32(0)))
			Expect(d.Nanos).To(Equal(2*int64(time.Hour) + 10*int64(time.Minute)))
		})

		It("should round-trip the parsed value on the wire", func() {
			d, _ := ParseCqlDuration("P1Y3MT2H10M")
			out := roundTrip(d, DurationType())
			Expect(out).To(Equal(d))
		})

		It("should round-trip -1950000ns exactly", func() {
			d, e := ParseCqlDuration("-1950000ns")
			Expect(e).ToNot(HaveOccurred())
			Expect(d.Nanos).To(Equal(int64(-1950000)))

			out := roundTrip(d, DurationType())
			Expect(out).To(Equal(d))
		})

		It("should print compound durations", func() {
			d := Duration{Months: 15, Nanos: 2*int64(time.Hour) + 10*int64(time.Minute)}
			Expect(d.String()).To(Equal("1y3mo2h10m"))
		})
	})

	Context("collections", func() {
		It("should round-trip lists and sets", func() {
			out := roundTrip([]interface{}{"a", "b", "c"}, List(Text()))
			Expect(out).To(Equal([]interface{}{"a", "b", "c"}))

			out = roundTrip([]int32{1, 2, 3}, Set(Int()))
			Expect(out).To(Equal([]interface{}{int32(1), int32(2), int32(3)}))
		})

		It("should round-trip maps with their key and value types", func() {
			in := map[string]int64{"x": 1, "y": 2}
			out := roundTrip(in, Map(Text(), Bigint()))

			m := out.(map[interface{}]interface{})
			Expect(m).To(HaveLen(2))
			Expect(m["x"]).To(Equal(int64(1)))
			Expect(m["y"]).To(Equal(int64(2)))
		})

		It("should round-trip tuples with ordered component types", func() {
			t := TupleOf(Int(), Text(), Boolean())
			out := roundTrip([]interface{}{int32(7), "seven", true}, t)
			Expect(out).To(Equal([]interface{}{int32(7), "seven", true}))
		})

		It("should round-trip udt values field by field", func() {
			t := Udt("ks", "address",
				UdtField{Name: "street", Type: Text()},
				UdtField{Name: "number", Type: Int()},
			)

			out := roundTrip(map[string]interface{}{"street": "main", "number": int32(4)}, t)
			m := out.(map[string]interface{})
			Expect(m["street"]).To(Equal("main"))
			Expect(m["number"]).To(Equal(int32(4)))
		})

		It("should keep null elements distinct from empty", func() {
			out := roundTrip([]interface{}{"a", nil}, List(Text()))
			Expect(out).To(Equal([]interface{}{"a", nil}))
		})
	})

	Context("null and unset", func() {
		It("should serialize nil as a null marker", func() {
			b, e := Encode(nil, Text(), pv)
			Expect(e).ToNot(HaveOccurred())
			Expect(b).To(BeNil())

			v, e := Decode(nil, Text(), pv)
			Expect(e).ToNot(HaveOccurred())
			Expect(v).To(BeNil())
		})

		It("should detect the unset sentinel", func() {
			Expect(IsUnset(Unset)).To(BeTrue())
			Expect(IsUnset("x")).To(BeFalse())
		})
	})

	Context("type guessing", func() {
		It("should map native values deterministically", func() {
			Expect(GuessType("s").Code).To(Equal(cqlptc.TypeText))
			Expect(GuessType([]byte{1}).Code).To(Equal(cqlptc.TypeBlob))
			Expect(GuessType(3.14).Code).To(Equal(cqlptc.TypeDouble))
			Expect(GuessType(time.Now()).Code).To(Equal(cqlptc.TypeTimestamp))
			Expect(GuessType(int64(1)).Code).To(Equal(cqlptc.TypeInt))
			Expect(GuessType(int64(math.MaxInt32) + 1).Code).To(Equal(cqlptc.TypeBigint))
		})
	})
})
