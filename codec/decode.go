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
	"encoding/binary"
	"math"
	"net"
	"time"

	cqlfrm "github.com/nabbar/cqldriver/frame"
	cqlptc "github.com/nabbar/cqldriver/protocol"
	liberr "github.com/nabbar/golib/errors"
	"github.com/shopspring/decimal"
)

// Decode deserializes a wire value into its native representation.
// A nil input (null marker) yields a nil value.
func Decode(b []byte, t *DataType, pv cqlptc.Version) (interface{}, liberr.Error) {
	if t == nil {
		return nil, ErrorParamEmpty.Error(nil)
	}

	if b == nil {
		return nil, nil
	}

	switch t.Code {
	case cqlptc.TypeAscii, cqlptc.TypeText, cqlptc.TypeVarchar:
		return string(b), nil

	case cqlptc.TypeBlob, cqlptc.TypeCustom:
		return b, nil

	case cqlptc.TypeBoolean:
		if len(b) != 1 {
			return nil, ErrorValueShort.Error(nil)
		}
		return b[0] != 0, nil

	case cqlptc.TypeTinyint:
		if len(b) != 1 {
			return nil, ErrorValueShort.Error(nil)
		}
		return int8(b[0]), nil

	case cqlptc.TypeSmallint:
		if len(b) != 2 {
			return nil, ErrorValueShort.Error(nil)
		}
		return int16(binary.BigEndian.Uint16(b)), nil

	case cqlptc.TypeInt:
		if len(b) != 4 {
			return nil, ErrorValueShort.Error(nil)
		}
		return int32(binary.BigEndian.Uint32(b)), nil

	case cqlptc.TypeBigint, cqlptc.TypeCounter:
		if len(b) != 8 {
			return nil, ErrorValueShort.Error(nil)
		}
		return int64(binary.BigEndian.Uint64(b)), nil

	case cqlptc.TypeFloat:
		if len(b) != 4 {
			return nil, ErrorValueShort.Error(nil)
		}
		return math.Float32frombits(binary.BigEndian.Uint32(b)), nil

	case cqlptc.TypeDouble:
		if len(b) != 8 {
			return nil, ErrorValueShort.Error(nil)
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b)), nil

	case cqlptc.TypeVarint:
		return bytesToBigInt(b), nil

	case cqlptc.TypeDecimal:
		if len(b) < 4 {
			return nil, ErrorValueShort.Error(nil)
		}

		scale := int32(binary.BigEndian.Uint32(b[:4]))
		return decimal.NewFromBigInt(bytesToBigInt(b[4:]), -scale), nil

	case cqlptc.TypeTimestamp:
		if len(b) != 8 {
			return nil, ErrorValueShort.Error(nil)
		}
		return time.UnixMilli(int64(binary.BigEndian.Uint64(b))).UTC(), nil

	case cqlptc.TypeDate:
		if len(b) != 4 {
			return nil, ErrorValueShort.Error(nil)
		}
		return int32(binary.BigEndian.Uint32(b) - epochDateCenter), nil

	case cqlptc.TypeTime:
		if len(b) != 8 {
			return nil, ErrorValueShort.Error(nil)
		}

		ns := int64(binary.BigEndian.Uint64(b))
		if ns < 0 || ns >= NanosPerDay {
			return nil, ErrorValueRange.Error(nil)
		}
		return ns, nil

	case cqlptc.TypeUuid, cqlptc.TypeTimeuuid:
		if len(b) != 16 {
			return nil, ErrorValueShort.Error(nil)
		}

		var u UUID
		copy(u[:], b)
		return u, nil

	case cqlptc.TypeInet:
		if len(b) != 4 && len(b) != 16 {
			return nil, ErrorValueShort.Error(nil)
		}

		ip := make(net.IP, len(b))
		copy(ip, b)
		return ip, nil

	case cqlptc.TypeDuration:
		d, e := decodeDuration(b)
		if e != nil {
			return nil, e
		}
		return d, nil

	case cqlptc.TypeList, cqlptc.TypeSet:
		return decodeList(b, t, pv)

	case cqlptc.TypeMap:
		return decodeMap(b, t, pv)

	case cqlptc.TypeTuple:
		return decodeTuple(b, t, pv)

	case cqlptc.TypeUdt:
		return decodeUdt(b, t, pv)
	}

	return nil, ErrorTypeUnknown.Error(nil)
}

func decodeList(b []byte, t *DataType, pv cqlptc.Version) (interface{}, liberr.Error) {
	r := cqlfrm.NewReader(b)

	n, e := r.ReadInt()
	if e != nil {
		return nil, e
	}

	l := make([]interface{}, 0, n)
	for i := 0; i < int(n); i++ {
		eb, er := r.ReadBytes()
		if er != nil {
			return nil, er
		}

		ev, er := Decode(eb, t.Value, pv)
		if er != nil {
			return nil, er
		}

		l = append(l, ev)
	}

	return l, nil
}

func decodeMap(b []byte, t *DataType, pv cqlptc.Version) (interface{}, liberr.Error) {
	r := cqlfrm.NewReader(b)

	n, e := r.ReadInt()
	if e != nil {
		return nil, e
	}

	m := make(map[interface{}]interface{}, n)
	for i := 0; i < int(n); i++ {
		kb, er := r.ReadBytes()
		if er != nil {
			return nil, er
		}

		kv, er := Decode(kb, t.Key, pv)
		if er != nil {
			return nil, er
		}

		vb, er := r.ReadBytes()
		if er != nil {
			return nil, er
		}

		vv, er := Decode(vb, t.Value, pv)
		if er != nil {
			return nil, er
		}

		m[kv] = vv
	}

	return m, nil
}

func decodeTuple(b []byte, t *DataType, pv cqlptc.Version) (interface{}, liberr.Error) {
	r := cqlfrm.NewReader(b)

	l := make([]interface{}, 0, len(t.Tuple))
	for _, ct := range t.Tuple {
		eb, er := r.ReadBytes()
		if er != nil {
			return nil, er
		}

		ev, er := Decode(eb, ct, pv)
		if er != nil {
			return nil, er
		}

		l = append(l, ev)
	}

	return l, nil
}

func decodeUdt(b []byte, t *DataType, pv cqlptc.Version) (interface{}, liberr.Error) {
	r := cqlfrm.NewReader(b)

	m := make(map[string]interface{}, len(t.Udt.Fields))
	for _, f := range t.Udt.Fields {
		if r.Remaining() == 0 {
			// trailing fields added after the value was written are absent
			m[f.Name] = nil
			continue
		}

		fb, er := r.ReadBytes()
		if er != nil {
			return nil, er
		}

		fv, er := Decode(fb, f.Type, pv)
		if er != nil {
			return nil, er
		}

		m[f.Name] = fv
	}

	return m, nil
}
