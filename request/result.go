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

package request

import (
	cqlcdc "github.com/nabbar/cqldriver/codec"
	cqlmsg "github.com/nabbar/cqldriver/message"
	cqlptc "github.com/nabbar/cqldriver/protocol"
	liberr "github.com/nabbar/golib/errors"
)

// ExecutionInfo describes how a request was finally served.
type ExecutionInfo struct {
	// QueriedHost is the coordinator that produced the result.
	QueriedHost string

	// TriedHosts maps every candidate that failed before the final
	// outcome to its last error.
	TriedHosts map[string]error

	// Attempts counts sends, including retries on the same host.
	Attempts int

	// SpeculativeExecutions counts the extra parallel chains started.
	SpeculativeExecutions int

	// Warnings are the structured warnings carried by the response.
	Warnings []string

	// TracingID is set when tracing was requested.
	TracingID *cqlcdc.UUID
}

// Result is the terminal outcome of one execute or batch call.
type Result struct {
	Info     ExecutionInfo
	Columns  []cqlcdc.ColumnInfo
	Keyspace string

	rows    [][][]byte
	meta    *cqlcdc.ResultMetadata
	version cqlptc.Version
}

// Len returns the number of rows of this page.
func (r *Result) Len() int {
	return len(r.rows)
}

// PageState returns the paging cursor of the next page, nil on the
// last page.
func (r *Result) PageState() []byte {
	if r.meta == nil {
		return nil
	}
	return r.meta.PagingState
}

// Rows decodes every cell of the page through the column metadata.
func (r *Result) Rows() ([][]interface{}, liberr.Error) {
	out := make([][]interface{}, 0, len(r.rows))

	for _, raw := range r.rows {
		row := make([]interface{}, 0, len(raw))

		for i, cell := range raw {
			if r.meta == nil || i >= len(r.meta.Columns) {
				row = append(row, cell)
				continue
			}

			v, e := cqlcdc.Decode(cell, r.meta.Columns[i].Type, r.version)
			if e != nil {
				return nil, e
			}

			row = append(row, v)
		}

		out = append(out, row)
	}

	return out, nil
}

// newResult shapes the terminal response into a user result.
func newResult(in *cqlmsg.Inbound, info ExecutionInfo, fallback *cqlcdc.ResultMetadata, pv cqlptc.Version) *Result {
	res := &Result{Info: info, version: pv}

	res.Info.Warnings = in.Warnings
	res.Info.TracingID = in.TracingID

	switch m := in.Message.(type) {
	case *cqlmsg.RowsResult:
		res.meta = m.Metadata
		res.rows = m.Rows

		// prepared executions skip metadata; restore the column layout
		// from the prepared entry
		if res.meta != nil && res.meta.Flags&cqlptc.RowsFlagNoMetadata != 0 && fallback != nil {
			cols := fallback.Columns
			res.meta = &cqlcdc.ResultMetadata{
				Flags:       res.meta.Flags,
				ColumnCount: res.meta.ColumnCount,
				PagingState: res.meta.PagingState,
				Columns:     cols,
			}
		}

		if res.meta != nil {
			res.Columns = res.meta.Columns
		}

	case *cqlmsg.SetKeyspaceResult:
		res.Keyspace = m.Keyspace
	}

	return res
}
