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

package message

import (
	cqlcdc "github.com/nabbar/cqldriver/codec"
	cqlfrm "github.com/nabbar/cqldriver/frame"
	cqlptc "github.com/nabbar/cqldriver/protocol"
	liberr "github.com/nabbar/golib/errors"
)

// VoidResult is a RESULT carrying no data.
type VoidResult struct{}

func (m *VoidResult) OpCode() cqlptc.OpCode {
	return cqlptc.OpResult
}

// RowsResult is a RESULT carrying a page of rows. Cells are kept in
// their wire form; decoding is driven by the column metadata.
type RowsResult struct {
	Metadata *cqlcdc.ResultMetadata
	Rows     [][][]byte
}

func (m *RowsResult) OpCode() cqlptc.OpCode {
	return cqlptc.OpResult
}

// SetKeyspaceResult acknowledges a USE statement.
type SetKeyspaceResult struct {
	Keyspace string
}

func (m *SetKeyspaceResult) OpCode() cqlptc.OpCode {
	return cqlptc.OpResult
}

// PreparedResult carries a freshly prepared statement: its query id,
// variable metadata (with partition key indexes on v4+) and result
// metadata.
type PreparedResult struct {
	ID            []byte
	Variables     *cqlcdc.ResultMetadata
	ResultColumns *cqlcdc.ResultMetadata
}

func (m *PreparedResult) OpCode() cqlptc.OpCode {
	return cqlptc.OpResult
}

// SchemaChangeResult notifies a DDL outcome.
type SchemaChangeResult struct {
	Change    string
	Target    string
	Keyspace  string
	Object    string
	Arguments []string
}

func (m *SchemaChangeResult) OpCode() cqlptc.OpCode {
	return cqlptc.OpResult
}

func decodeResult(h cqlfrm.Header, r *cqlfrm.Reader) (Response, liberr.Error) {
	k, e := r.ReadInt()
	if e != nil {
		return nil, e
	}

	switch cqlptc.ResultKind(k) {
	case cqlptc.ResultVoid:
		return &VoidResult{}, nil

	case cqlptc.ResultRows:
		md, er := cqlcdc.ReadResultMetadata(r, false, h.Version)
		if er != nil {
			return nil, er
		}

		count, er := r.ReadInt()
		if er != nil {
			return nil, er
		}

		rows := make([][][]byte, 0, count)
		for i := 0; i < int(count); i++ {
			row := make([][]byte, 0, md.ColumnCount)
			for j := 0; j < int(md.ColumnCount); j++ {
				cell, err := r.ReadBytes()
				if err != nil {
					return nil, err
				}
				row = append(row, cell)
			}
			rows = append(rows, row)
		}

		return &RowsResult{Metadata: md, Rows: rows}, nil

	case cqlptc.ResultSetKeyspace:
		ks, er := r.ReadString()
		if er != nil {
			return nil, er
		}
		return &SetKeyspaceResult{Keyspace: ks}, nil

	case cqlptc.ResultPrepared:
		id, er := r.ReadShortBytes()
		if er != nil {
			return nil, er
		}

		vars, er := cqlcdc.ReadResultMetadata(r, true, h.Version)
		if er != nil {
			return nil, er
		}

		cols, er := cqlcdc.ReadResultMetadata(r, false, h.Version)
		if er != nil {
			return nil, er
		}

		return &PreparedResult{ID: id, Variables: vars, ResultColumns: cols}, nil

	case cqlptc.ResultSchemaChange:
		m := &SchemaChangeResult{}

		if m.Change, e = r.ReadString(); e != nil {
			return nil, e
		}
		if m.Target, e = r.ReadString(); e != nil {
			return nil, e
		}
		if m.Keyspace, e = r.ReadString(); e != nil {
			return nil, e
		}

		switch m.Target {
		case "TABLE", "TYPE":
			if m.Object, e = r.ReadString(); e != nil {
				return nil, e
			}
		case "FUNCTION", "AGGREGATE":
			if m.Object, e = r.ReadString(); e != nil {
				return nil, e
			}
			if m.Arguments, e = r.ReadStringList(); e != nil {
				return nil, e
			}
		}

		return m, nil
	}

	return nil, ErrorResultKind.Error(nil)
}
