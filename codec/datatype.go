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
	"strings"

	cqlfrm "github.com/nabbar/cqldriver/frame"
	cqlptc "github.com/nabbar/cqldriver/protocol"
	liberr "github.com/nabbar/golib/errors"
)

// DataType describes one node of the CQL type tree.
// Collections carry their element types, maps carry key then value,
// udt carries its ordered field descriptors, tuple its component types.
type DataType struct {
	Code   cqlptc.TypeCode
	Custom string
	Key    *DataType
	Value  *DataType
	Tuple  []*DataType
	Udt    *UdtDefinition
}

// UdtDefinition is the wire description of a user-defined type.
type UdtDefinition struct {
	Keyspace string
	Name     string
	Fields   []UdtField
}

// UdtField is one ordered field of a user-defined type.
type UdtField struct {
	Name string
	Type *DataType
}

func simple(c cqlptc.TypeCode) *DataType {
	return &DataType{Code: c}
}

// Native type singleton constructors.
func Ascii() *DataType     { return simple(cqlptc.TypeAscii) }
func Bigint() *DataType    { return simple(cqlptc.TypeBigint) }
func Blob() *DataType      { return simple(cqlptc.TypeBlob) }
func Boolean() *DataType   { return simple(cqlptc.TypeBoolean) }
func Counter() *DataType   { return simple(cqlptc.TypeCounter) }
func Decimal() *DataType   { return simple(cqlptc.TypeDecimal) }
func Double() *DataType    { return simple(cqlptc.TypeDouble) }
func Float() *DataType     { return simple(cqlptc.TypeFloat) }
func Int() *DataType       { return simple(cqlptc.TypeInt) }
func Text() *DataType      { return simple(cqlptc.TypeText) }
func Timestamp() *DataType { return simple(cqlptc.TypeTimestamp) }
func Uuid() *DataType      { return simple(cqlptc.TypeUuid) }
func Varchar() *DataType   { return simple(cqlptc.TypeVarchar) }
func Varint() *DataType    { return simple(cqlptc.TypeVarint) }
func Timeuuid() *DataType  { return simple(cqlptc.TypeTimeuuid) }
func Inet() *DataType      { return simple(cqlptc.TypeInet) }
func Date() *DataType      { return simple(cqlptc.TypeDate) }
func Time() *DataType      { return simple(cqlptc.TypeTime) }
func Smallint() *DataType  { return simple(cqlptc.TypeSmallint) }
func Tinyint() *DataType   { return simple(cqlptc.TypeTinyint) }
func DurationType() *DataType {
	return simple(cqlptc.TypeDuration)
}

// List returns a list type of the given element type.
func List(elem *DataType) *DataType {
	return &DataType{Code: cqlptc.TypeList, Value: elem}
}

// Set returns a set type of the given element type.
func Set(elem *DataType) *DataType {
	return &DataType{Code: cqlptc.TypeSet, Value: elem}
}

// Map returns a map type with the given key and value types.
func Map(key, value *DataType) *DataType {
	return &DataType{Code: cqlptc.TypeMap, Key: key, Value: value}
}

// TupleOf returns a tuple type with the given ordered component types.
func TupleOf(components ...*DataType) *DataType {
	return &DataType{Code: cqlptc.TypeTuple, Tuple: components}
}

// Udt returns a user-defined type with the given ordered fields.
func Udt(keyspace, name string, fields ...UdtField) *DataType {
	return &DataType{
		Code: cqlptc.TypeUdt,
		Udt: &UdtDefinition{
			Keyspace: keyspace,
			Name:     name,
			Fields:   fields,
		},
	}
}

// CustomType returns a custom type referencing the given server class.
func CustomType(class string) *DataType {
	return &DataType{Code: cqlptc.TypeCustom, Custom: class}
}

func (t *DataType) String() string {
	if t == nil {
		return "<nil>"
	}

	switch t.Code {
	case cqlptc.TypeCustom:
		return "custom<" + t.Custom + ">"
	case cqlptc.TypeList:
		return "list<" + t.Value.String() + ">"
	case cqlptc.TypeSet:
		return "set<" + t.Value.String() + ">"
	case cqlptc.TypeMap:
		return "map<" + t.Key.String() + "," + t.Value.String() + ">"
	case cqlptc.TypeTuple:
		var b strings.Builder
		b.WriteString("tuple<")
		for i, c := range t.Tuple {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(c.String())
		}
		b.WriteString(">")
		return b.String()
	case cqlptc.TypeUdt:
		return "udt<" + t.Udt.Keyspace + "." + t.Udt.Name + ">"
	}

	return typeCodeName(t.Code)
}

func typeCodeName(c cqlptc.TypeCode) string {
	switch c {
	case cqlptc.TypeAscii:
		return "ascii"
	case cqlptc.TypeBigint:
		return "bigint"
	case cqlptc.TypeBlob:
		return "blob"
	case cqlptc.TypeBoolean:
		return "boolean"
	case cqlptc.TypeCounter:
		return "counter"
	case cqlptc.TypeDecimal:
		return "decimal"
	case cqlptc.TypeDouble:
		return "double"
	case cqlptc.TypeFloat:
		return "float"
	case cqlptc.TypeInt:
		return "int"
	case cqlptc.TypeText:
		return "text"
	case cqlptc.TypeTimestamp:
		return "timestamp"
	case cqlptc.TypeUuid:
		return "uuid"
	case cqlptc.TypeVarchar:
		return "varchar"
	case cqlptc.TypeVarint:
		return "varint"
	case cqlptc.TypeTimeuuid:
		return "timeuuid"
	case cqlptc.TypeInet:
		return "inet"
	case cqlptc.TypeDate:
		return "date"
	case cqlptc.TypeTime:
		return "time"
	case cqlptc.TypeSmallint:
		return "smallint"
	case cqlptc.TypeTinyint:
		return "tinyint"
	case cqlptc.TypeDuration:
		return "duration"
	}
	return "unknown"
}

// ReadDataType parses a type tree from a RESULT metadata body.
func ReadDataType(r *cqlfrm.Reader) (*DataType, liberr.Error) {
	c, e := r.ReadShort()
	if e != nil {
		return nil, e
	}

	t := &DataType{Code: cqlptc.TypeCode(c)}

	switch t.Code {
	case cqlptc.TypeCustom:
		if t.Custom, e = r.ReadString(); e != nil {
			return nil, e
		}

	case cqlptc.TypeList, cqlptc.TypeSet:
		if t.Value, e = ReadDataType(r); e != nil {
			return nil, e
		}

	case cqlptc.TypeMap:
		if t.Key, e = ReadDataType(r); e != nil {
			return nil, e
		}
		if t.Value, e = ReadDataType(r); e != nil {
			return nil, e
		}

	case cqlptc.TypeUdt:
		u := &UdtDefinition{}

		if u.Keyspace, e = r.ReadString(); e != nil {
			return nil, e
		}
		if u.Name, e = r.ReadString(); e != nil {
			return nil, e
		}

		n, er := r.ReadShort()
		if er != nil {
			return nil, er
		}

		u.Fields = make([]UdtField, 0, n)
		for i := 0; i < int(n); i++ {
			var f UdtField

			if f.Name, e = r.ReadString(); e != nil {
				return nil, e
			}
			if f.Type, e = ReadDataType(r); e != nil {
				return nil, e
			}

			u.Fields = append(u.Fields, f)
		}

		t.Udt = u

	case cqlptc.TypeTuple:
		n, er := r.ReadShort()
		if er != nil {
			return nil, er
		}

		t.Tuple = make([]*DataType, 0, n)
		for i := 0; i < int(n); i++ {
			c, err := ReadDataType(r)
			if err != nil {
				return nil, err
			}
			t.Tuple = append(t.Tuple, c)
		}
	}

	return t, nil
}

// WriteDataType serializes a type tree with the RESULT metadata notation.
func WriteDataType(w *cqlfrm.Writer, t *DataType) {
	w.WriteShort(uint16(t.Code))

	switch t.Code {
	case cqlptc.TypeCustom:
		w.WriteString(t.Custom)

	case cqlptc.TypeList, cqlptc.TypeSet:
		WriteDataType(w, t.Value)

	case cqlptc.TypeMap:
		WriteDataType(w, t.Key)
		WriteDataType(w, t.Value)

	case cqlptc.TypeUdt:
		w.WriteString(t.Udt.Keyspace)
		w.WriteString(t.Udt.Name)
		w.WriteShort(uint16(len(t.Udt.Fields)))
		for _, f := range t.Udt.Fields {
			w.WriteString(f.Name)
			WriteDataType(w, f.Type)
		}

	case cqlptc.TypeTuple:
		w.WriteShort(uint16(len(t.Tuple)))
		for _, c := range t.Tuple {
			WriteDataType(w, c)
		}
	}
}
