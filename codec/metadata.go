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
	"strconv"
	"strings"

	cqlfrm "github.com/nabbar/cqldriver/frame"
	cqlptc "github.com/nabbar/cqldriver/protocol"
	liberr "github.com/nabbar/golib/errors"
)

// ColumnInfo describes one column of a result set or prepared variable.
type ColumnInfo struct {
	Keyspace string
	Table    string
	Name     string
	Type     *DataType
}

// ResultMetadata is the column layout shared by RESULT(rows) and
// RESULT(prepared) bodies.
type ResultMetadata struct {
	Flags       int32
	ColumnCount int32
	PagingState []byte
	Columns     []ColumnInfo
	PKIndexes   []uint16
}

// ReadResultMetadata parses the metadata section of a RESULT body.
// withPK selects the RESULT(prepared) variant carrying partition key
// indexes (protocol v4+).
func ReadResultMetadata(r *cqlfrm.Reader, withPK bool, pv cqlptc.Version) (*ResultMetadata, liberr.Error) {
	m := &ResultMetadata{}

	var e liberr.Error

	if m.Flags, e = r.ReadInt(); e != nil {
		return nil, e
	}

	if m.ColumnCount, e = r.ReadInt(); e != nil {
		return nil, e
	}

	if withPK && pv >= cqlptc.Version4 {
		n, er := r.ReadInt()
		if er != nil {
			return nil, er
		}

		m.PKIndexes = make([]uint16, 0, n)
		for i := 0; i < int(n); i++ {
			idx, err := r.ReadShort()
			if err != nil {
				return nil, err
			}
			m.PKIndexes = append(m.PKIndexes, idx)
		}
	}

	if m.Flags&cqlptc.RowsFlagHasMorePages != 0 {
		if m.PagingState, e = r.ReadBytes(); e != nil {
			return nil, e
		}
	}

	if m.Flags&cqlptc.RowsFlagNoMetadata != 0 {
		return m, nil
	}

	var gKeyspace, gTable string

	if m.Flags&cqlptc.RowsFlagGlobalTableSpec != 0 {
		if gKeyspace, e = r.ReadString(); e != nil {
			return nil, e
		}
		if gTable, e = r.ReadString(); e != nil {
			return nil, e
		}
	}

	m.Columns = make([]ColumnInfo, 0, m.ColumnCount)

	for i := 0; i < int(m.ColumnCount); i++ {
		var c ColumnInfo

		if m.Flags&cqlptc.RowsFlagGlobalTableSpec != 0 {
			c.Keyspace, c.Table = gKeyspace, gTable
		} else {
			if c.Keyspace, e = r.ReadString(); e != nil {
				return nil, e
			}
			if c.Table, e = r.ReadString(); e != nil {
				return nil, e
			}
		}

		if c.Name, e = r.ReadString(); e != nil {
			return nil, e
		}

		if c.Type, e = ReadDataType(r); e != nil {
			return nil, e
		}

		m.Columns = append(m.Columns, c)
	}

	return m, nil
}

// ResolveNamed orders a named-parameter container against the prepared
// variable metadata. Missing names fail unless the protocol supports
// the unset marker, in which case they are bound unset.
func ResolveNamed(md *ResultMetadata, named map[string]interface{}, pv cqlptc.Version) ([]interface{}, liberr.Error) {
	if md == nil {
		return nil, ErrorParamEmpty.Error(nil)
	}

	out := make([]interface{}, 0, len(md.Columns))

	for _, c := range md.Columns {
		v, ok := named[c.Name]
		if !ok {
			v, ok = named[strings.ToLower(c.Name)]
		}

		if !ok {
			if !pv.SupportsUnset() {
				return nil, ErrorParamMissing.Error(nil)
			}
			v = Unset
		}

		out = append(out, v)
	}

	return out, nil
}

// ParseTimeOfDay parses a "HH:MM:SS[.fraction]" literal into the
// nanosecond-of-day representation of the time type.
func ParseTimeOfDay(s string) (int64, liberr.Error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, ErrorValueRange.Error(nil)
	}

	h, e1 := strconv.ParseInt(parts[0], 10, 64)
	m, e2 := strconv.ParseInt(parts[1], 10, 64)

	sec := parts[2]
	frac := ""

	if i := strings.IndexByte(sec, '.'); i >= 0 {
		frac = sec[i+1:]
		sec = sec[:i]
	}

	sv, e3 := strconv.ParseInt(sec, 10, 64)
	if e1 != nil || e2 != nil || e3 != nil {
		return 0, ErrorValueRange.Error(nil)
	}

	var ns int64

	if frac != "" {
		if len(frac) > 9 {
			frac = frac[:9]
		}
		for len(frac) < 9 {
			frac += "0"
		}

		fv, e := strconv.ParseInt(frac, 10, 64)
		if e != nil {
			return 0, ErrorValueRange.Error(nil)
		}
		ns = fv
	}

	t := h*3600000000000 + m*60000000000 + sv*1000000000 + ns
	if t < 0 || t >= NanosPerDay {
		return 0, ErrorValueRange.Error(nil)
	}

	return t, nil
}
