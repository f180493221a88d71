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
	"math/big"
	"net"
	"reflect"
	"time"

	cqlfrm "github.com/nabbar/cqldriver/frame"
	cqlptc "github.com/nabbar/cqldriver/protocol"
	liberr "github.com/nabbar/golib/errors"
	"github.com/shopspring/decimal"
)

type unsetValue struct{}

// Unset is the sentinel marking a bound parameter as not set.
// It is only allowed on protocol v4 and above.
var Unset = unsetValue{}

// IsUnset reports whether the given value is the unset sentinel.
func IsUnset(v interface{}) bool {
	_, ok := v.(unsetValue)
	return ok
}

// Encode serializes a native value to the wire representation of the
// given type. A nil value yields a nil slice, serialized as a null
// marker by the parameter writer.
func Encode(v interface{}, t *DataType, pv cqlptc.Version) ([]byte, liberr.Error) {
	if t == nil {
		return nil, ErrorParamEmpty.Error(nil)
	}

	if v == nil {
		return nil, nil
	}

	switch t.Code {
	case cqlptc.TypeAscii, cqlptc.TypeText, cqlptc.TypeVarchar:
		return encodeString(v)

	case cqlptc.TypeBlob, cqlptc.TypeCustom:
		return encodeBlob(v)

	case cqlptc.TypeBoolean:
		return encodeBool(v)

	case cqlptc.TypeTinyint:
		return encodeIntWidth(v, 1)

	case cqlptc.TypeSmallint:
		return encodeIntWidth(v, 2)

	case cqlptc.TypeInt:
		return encodeIntWidth(v, 4)

	case cqlptc.TypeBigint, cqlptc.TypeCounter:
		return encodeIntWidth(v, 8)

	case cqlptc.TypeFloat:
		return encodeFloat(v)

	case cqlptc.TypeDouble:
		return encodeDouble(v)

	case cqlptc.TypeVarint:
		return encodeVarint(v)

	case cqlptc.TypeDecimal:
		return encodeDecimal(v)

	case cqlptc.TypeTimestamp:
		return encodeTimestamp(v)

	case cqlptc.TypeDate:
		return encodeDate(v)

	case cqlptc.TypeTime:
		return encodeTime(v)

	case cqlptc.TypeUuid, cqlptc.TypeTimeuuid:
		return encodeUUID(v)

	case cqlptc.TypeInet:
		return encodeInet(v)

	case cqlptc.TypeDuration:
		return encodeDurationValue(v)

	case cqlptc.TypeList, cqlptc.TypeSet:
		return encodeList(v, t, pv)

	case cqlptc.TypeMap:
		return encodeMap(v, t, pv)

	case cqlptc.TypeTuple:
		return encodeTuple(v, t, pv)

	case cqlptc.TypeUdt:
		return encodeUdt(v, t, pv)
	}

	return nil, ErrorTypeUnknown.Error(nil)
}

func encodeString(v interface{}) ([]byte, liberr.Error) {
	switch x := v.(type) {
	case string:
		return []byte(x), nil
	case []byte:
		return x, nil
	}
	return nil, ErrorTypeMismatch.Error(nil)
}

func encodeBlob(v interface{}) ([]byte, liberr.Error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	}
	return nil, ErrorTypeMismatch.Error(nil)
}

func encodeBool(v interface{}) ([]byte, liberr.Error) {
	x, ok := v.(bool)
	if !ok {
		return nil, ErrorTypeMismatch.Error(nil)
	}

	if x {
		return []byte{0x01}, nil
	}
	return []byte{0x00}, nil
}

func asInt64(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	}
	return 0, false
}

func encodeIntWidth(v interface{}, width int) ([]byte, liberr.Error) {
	x, ok := asInt64(v)
	if !ok {
		return nil, ErrorTypeMismatch.Error(nil)
	}

	bits := uint(width * 8)
	if width < 8 {
		min := int64(-1) << (bits - 1)
		max := int64(1)<<(bits-1) - 1
		if x < min || x > max {
			return nil, ErrorValueRange.Error(nil)
		}
	}

	b := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		b[i] = uint8(x)
		x >>= 8
	}

	return b, nil
}

func encodeFloat(v interface{}) ([]byte, liberr.Error) {
	x, ok := v.(float32)
	if !ok {
		return nil, ErrorTypeMismatch.Error(nil)
	}

	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, math.Float32bits(x))
	return b, nil
}

func encodeDouble(v interface{}) ([]byte, liberr.Error) {
	var x float64

	switch f := v.(type) {
	case float64:
		x = f
	case float32:
		x = float64(f)
	default:
		return nil, ErrorTypeMismatch.Error(nil)
	}

	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(x))
	return b, nil
}

func encodeVarint(v interface{}) ([]byte, liberr.Error) {
	switch x := v.(type) {
	case *big.Int:
		return bigIntToBytes(x), nil
	}

	if x, ok := asInt64(v); ok {
		return bigIntToBytes(big.NewInt(x)), nil
	}

	return nil, ErrorTypeMismatch.Error(nil)
}

func encodeDecimal(v interface{}) ([]byte, liberr.Error) {
	x, ok := v.(decimal.Decimal)
	if !ok {
		return nil, ErrorTypeMismatch.Error(nil)
	}

	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(-x.Exponent()))
	return append(b, bigIntToBytes(x.Coefficient())...), nil
}

func encodeTimestamp(v interface{}) ([]byte, liberr.Error) {
	var ms int64

	switch x := v.(type) {
	case time.Time:
		ms = x.UnixMilli()
	case int64:
		ms = x
	case int:
		ms = int64(x)
	default:
		return nil, ErrorTypeMismatch.Error(nil)
	}

	return encodeIntWidth(ms, 8)
}

func encodeDate(v interface{}) ([]byte, liberr.Error) {
	var days int32

	switch x := v.(type) {
	case time.Time:
		days = DateFromTime(x)
	case int32:
		days = x
	case int:
		days = int32(x)
	default:
		return nil, ErrorTypeMismatch.Error(nil)
	}

	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(days)+epochDateCenter)
	return b, nil
}

func encodeTime(v interface{}) ([]byte, liberr.Error) {
	var ns int64

	switch x := v.(type) {
	case time.Duration:
		ns = int64(x)
	case int64:
		ns = x
	default:
		return nil, ErrorTypeMismatch.Error(nil)
	}

	if ns < 0 || ns >= NanosPerDay {
		return nil, ErrorValueRange.Error(nil)
	}

	return encodeIntWidth(ns, 8)
}

func encodeUUID(v interface{}) ([]byte, liberr.Error) {
	switch x := v.(type) {
	case UUID:
		return x.Bytes(), nil
	case [16]byte:
		return UUID(x).Bytes(), nil
	case []byte:
		if len(x) != 16 {
			return nil, ErrorValueRange.Error(nil)
		}
		return x, nil
	case string:
		u, e := ParseUUID(x)
		if e != nil {
			return nil, e
		}
		return u.Bytes(), nil
	}
	return nil, ErrorTypeMismatch.Error(nil)
}

func encodeInet(v interface{}) ([]byte, liberr.Error) {
	var ip net.IP

	switch x := v.(type) {
	case net.IP:
		ip = x
	case string:
		ip = net.ParseIP(x)
	default:
		return nil, ErrorTypeMismatch.Error(nil)
	}

	if ip == nil {
		return nil, ErrorValueRange.Error(nil)
	}

	if v4 := ip.To4(); v4 != nil {
		return v4, nil
	}

	return ip.To16(), nil
}

func encodeDurationValue(v interface{}) ([]byte, liberr.Error) {
	switch x := v.(type) {
	case Duration:
		return encodeDuration(x), nil
	case time.Duration:
		return encodeDuration(Duration{Nanos: int64(x)}), nil
	case string:
		d, e := ParseCqlDuration(x)
		if e != nil {
			return nil, e
		}
		return encodeDuration(d), nil
	}
	return nil, ErrorTypeMismatch.Error(nil)
}

func reflectItems(v interface{}) ([]interface{}, bool) {
	if l, ok := v.([]interface{}); ok {
		return l, true
	}

	r := reflect.ValueOf(v)
	if r.Kind() != reflect.Slice && r.Kind() != reflect.Array {
		return nil, false
	}

	l := make([]interface{}, 0, r.Len())
	for i := 0; i < r.Len(); i++ {
		l = append(l, r.Index(i).Interface())
	}

	return l, true
}

func encodeList(v interface{}, t *DataType, pv cqlptc.Version) ([]byte, liberr.Error) {
	items, ok := reflectItems(v)
	if !ok {
		return nil, ErrorTypeMismatch.Error(nil)
	}

	w := cqlfrm.NewWriter(4 + len(items)*8)
	w.WriteInt(int32(len(items)))

	for _, it := range items {
		b, e := Encode(it, t.Value, pv)
		if e != nil {
			return nil, e
		}
		w.WriteBytes(b)
	}

	return w.Bytes(), nil
}

func encodeMap(v interface{}, t *DataType, pv cqlptc.Version) ([]byte, liberr.Error) {
	r := reflect.ValueOf(v)
	if r.Kind() != reflect.Map {
		return nil, ErrorTypeMismatch.Error(nil)
	}

	w := cqlfrm.NewWriter(4 + r.Len()*16)
	w.WriteInt(int32(r.Len()))

	iter := r.MapRange()
	for iter.Next() {
		kb, e := Encode(iter.Key().Interface(), t.Key, pv)
		if e != nil {
			return nil, e
		}
		w.WriteBytes(kb)

		vb, e := Encode(iter.Value().Interface(), t.Value, pv)
		if e != nil {
			return nil, e
		}
		w.WriteBytes(vb)
	}

	return w.Bytes(), nil
}

func encodeTuple(v interface{}, t *DataType, pv cqlptc.Version) ([]byte, liberr.Error) {
	items, ok := reflectItems(v)
	if !ok || len(items) != len(t.Tuple) {
		return nil, ErrorTypeMismatch.Error(nil)
	}

	w := cqlfrm.NewWriter(len(items) * 8)
	for i, it := range items {
		b, e := Encode(it, t.Tuple[i], pv)
		if e != nil {
			return nil, e
		}
		w.WriteBytes(b)
	}

	return w.Bytes(), nil
}

func encodeUdt(v interface{}, t *DataType, pv cqlptc.Version) ([]byte, liberr.Error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, ErrorTypeMismatch.Error(nil)
	}

	w := cqlfrm.NewWriter(len(t.Udt.Fields) * 8)
	for _, f := range t.Udt.Fields {
		fv, has := m[f.Name]
		if !has {
			w.WriteBytes(nil)
			continue
		}

		b, e := Encode(fv, f.Type, pv)
		if e != nil {
			return nil, e
		}
		w.WriteBytes(b)
	}

	return w.Bytes(), nil
}

// GuessType maps a native value to a CQL type when no hint is given.
// The mapping is deterministic: integers become int or bigint depending
// on range, float64 becomes double and float32 becomes float, byte
// slices become blob, instants become timestamp, strings become text.
func GuessType(v interface{}) *DataType {
	switch x := v.(type) {
	case string:
		return Text()
	case []byte:
		return Blob()
	case bool:
		return Boolean()
	case float64:
		return Double()
	case float32:
		return Float()
	case time.Time:
		return Timestamp()
	case time.Duration:
		return Time()
	case UUID:
		return Uuid()
	case net.IP:
		return Inet()
	case *big.Int:
		return Varint()
	case decimal.Decimal:
		return Decimal()
	case Duration:
		return DurationType()
	case int8, int16, int32:
		return Int()
	case int:
		if x >= math.MinInt32 && x <= math.MaxInt32 {
			return Int()
		}
		return Bigint()
	case int64:
		if x >= math.MinInt32 && x <= math.MaxInt32 {
			return Int()
		}
		return Bigint()
	}

	if items, ok := reflectItems(v); ok {
		if len(items) > 0 {
			return List(GuessType(items[0]))
		}
		return List(Text())
	}

	if r := reflect.ValueOf(v); r.Kind() == reflect.Map {
		iter := r.MapRange()
		if iter.Next() {
			return Map(GuessType(iter.Key().Interface()), GuessType(iter.Value().Interface()))
		}
		return Map(Text(), Text())
	}

	return nil
}
