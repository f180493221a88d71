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
	cqlfrm "github.com/nabbar/cqldriver/frame"
	cqlcmp "github.com/nabbar/cqldriver/frame/compress"
	cqlptc "github.com/nabbar/cqldriver/protocol"
	liberr "github.com/nabbar/golib/errors"
)

// Request is a client-to-server message body.
type Request interface {
	OpCode() cqlptc.OpCode
	WriteBody(pv cqlptc.Version, w *cqlfrm.Writer) liberr.Error
}

// Startup negotiates the connection options.
type Startup struct {
	CQLVersion  string
	Compression string
}

func (m *Startup) OpCode() cqlptc.OpCode {
	return cqlptc.OpStartup
}

func (m *Startup) WriteBody(pv cqlptc.Version, w *cqlfrm.Writer) liberr.Error {
	v := m.CQLVersion
	if v == "" {
		v = "3.0.0"
	}

	opts := map[string]string{"CQL_VERSION": v}
	if m.Compression != "" {
		opts["COMPRESSION"] = m.Compression
	}

	w.WriteStringMap(opts)
	return nil
}

// Options requests the supported startup options.
type Options struct{}

func (m *Options) OpCode() cqlptc.OpCode {
	return cqlptc.OpOptions
}

func (m *Options) WriteBody(_ cqlptc.Version, _ *cqlfrm.Writer) liberr.Error {
	return nil
}

// Register subscribes the connection to server push events.
type Register struct {
	Events []cqlptc.EventType
}

func (m *Register) OpCode() cqlptc.OpCode {
	return cqlptc.OpRegister
}

func (m *Register) WriteBody(_ cqlptc.Version, w *cqlfrm.Writer) liberr.Error {
	l := make([]string, 0, len(m.Events))
	for _, ev := range m.Events {
		l = append(l, string(ev))
	}

	w.WriteStringList(l)
	return nil
}

// AuthResponse carries one step of the authentication exchange.
type AuthResponse struct {
	Token []byte
}

func (m *AuthResponse) OpCode() cqlptc.OpCode {
	return cqlptc.OpAuthResponse
}

func (m *AuthResponse) WriteBody(_ cqlptc.Version, w *cqlfrm.Writer) liberr.Error {
	w.WriteBytes(m.Token)
	return nil
}

// Prepare compiles a query server-side and returns its query id.
type Prepare struct {
	Query string
}

func (m *Prepare) OpCode() cqlptc.OpCode {
	return cqlptc.OpPrepare
}

func (m *Prepare) WriteBody(_ cqlptc.Version, w *cqlfrm.Writer) liberr.Error {
	w.WriteLongString(m.Query)
	return nil
}

// EncodeFrame serializes a request into a complete outgoing frame,
// compressing the body when a codec is negotiated and the body is not
// empty.
func EncodeFrame(req Request, pv cqlptc.Version, stream int16, cmp cqlcmp.Compressor, payload map[string][]byte) ([]byte, liberr.Error) {
	if req == nil {
		return nil, ErrorParamEmpty.Error(nil)
	}

	w := cqlfrm.NewWriter(256)

	var flags cqlptc.Flag

	if len(payload) > 0 && pv.SupportsCustomPayload() {
		flags |= cqlptc.FlagCustomPayload
		w.WriteBytesMap(payload)
	}

	if e := req.WriteBody(pv, w); e != nil {
		return nil, e
	}

	body := w.Bytes()

	if cmp != nil && cmp.Name() != "" && req.OpCode() != cqlptc.OpStartup && len(body) > 0 {
		c, e := cmp.Compress(body)
		if e != nil {
			return nil, e
		}

		body = c
		flags |= cqlptc.FlagCompressed
	}

	h := Header(pv, flags, stream, req.OpCode(), uint32(len(body)))
	return append(cqlfrm.EncodeHeader(h), body...), nil
}

// Header builds an outgoing request header.
func Header(pv cqlptc.Version, flags cqlptc.Flag, stream int16, op cqlptc.OpCode, length uint32) cqlfrm.Header {
	return cqlfrm.Header{
		Version: pv,
		Flags:   flags,
		Stream:  stream,
		OpCode:  op,
		Length:  length,
	}
}

// Value is one bound parameter of a QUERY, EXECUTE or BATCH body.
type Value struct {
	Bytes []byte
	Unset bool
	Null  bool
}

// BytesValue wraps an encoded parameter, distinguishing null from empty.
func BytesValue(b []byte) Value {
	if b == nil {
		return Value{Null: true}
	}
	return Value{Bytes: b}
}

// UnsetValue returns the unset parameter marker.
func UnsetValue() Value {
	return Value{Unset: true}
}

func writeValue(w *cqlfrm.Writer, v Value) {
	switch {
	case v.Unset:
		w.WriteUnset()
	case v.Null:
		w.WriteInt(cqlfrm.LenNull)
	default:
		w.WriteBytes(v.Bytes)
	}
}

// QueryParameters is the shared option block of QUERY and EXECUTE bodies.
type QueryParameters struct {
	Consistency       cqlptc.Consistency
	Values            []Value
	SkipMetadata      bool
	PageSize          int32
	PagingState       []byte
	SerialConsistency cqlptc.Consistency
	HasSerial         bool
	Timestamp         *int64
}

func (p *QueryParameters) flags(pv cqlptc.Version) uint8 {
	var f uint8

	if len(p.Values) > 0 {
		f |= cqlptc.QryFlagValues
	}
	if p.SkipMetadata {
		f |= cqlptc.QryFlagSkipMetadata
	}
	if p.PageSize > 0 {
		f |= cqlptc.QryFlagPageSize
	}
	if len(p.PagingState) > 0 {
		f |= cqlptc.QryFlagPagingState
	}
	if p.HasSerial {
		f |= cqlptc.QryFlagSerialConsistency
	}
	if p.Timestamp != nil && pv.SupportsTimestamp() {
		f |= cqlptc.QryFlagTimestamp
	}

	return f
}

func (p *QueryParameters) write(pv cqlptc.Version, w *cqlfrm.Writer) {
	w.WriteConsistency(p.Consistency)

	f := p.flags(pv)
	w.WriteUint8(f)

	if f&cqlptc.QryFlagValues != 0 {
		w.WriteShort(uint16(len(p.Values)))
		for _, v := range p.Values {
			writeValue(w, v)
		}
	}

	if f&cqlptc.QryFlagPageSize != 0 {
		w.WriteInt(p.PageSize)
	}

	if f&cqlptc.QryFlagPagingState != 0 {
		w.WriteBytes(p.PagingState)
	}

	if f&cqlptc.QryFlagSerialConsistency != 0 {
		w.WriteConsistency(p.SerialConsistency)
	}

	if f&cqlptc.QryFlagTimestamp != 0 {
		w.WriteLong(*p.Timestamp)
	}
}

// Query executes a raw query string.
type Query struct {
	Query  string
	Params QueryParameters
}

func (m *Query) OpCode() cqlptc.OpCode {
	return cqlptc.OpQuery
}

func (m *Query) WriteBody(pv cqlptc.Version, w *cqlfrm.Writer) liberr.Error {
	w.WriteLongString(m.Query)
	m.Params.write(pv, w)
	return nil
}

// Execute runs a prepared statement by query id.
type Execute struct {
	ID     []byte
	Params QueryParameters
}

func (m *Execute) OpCode() cqlptc.OpCode {
	return cqlptc.OpExecute
}

func (m *Execute) WriteBody(pv cqlptc.Version, w *cqlfrm.Writer) liberr.Error {
	w.WriteShortBytes(m.ID)
	m.Params.write(pv, w)
	return nil
}

// BatchItem is one statement of a BATCH body: either a raw query string
// or a prepared query id, with its encoded values.
type BatchItem struct {
	Query  string
	ID     []byte
	Values []Value
}

// Batch groups several statements in one atomic or non-atomic request.
type Batch struct {
	Type              cqlptc.BatchType
	Items             []BatchItem
	Consistency       cqlptc.Consistency
	SerialConsistency cqlptc.Consistency
	HasSerial         bool
	Timestamp         *int64
}

func (m *Batch) OpCode() cqlptc.OpCode {
	return cqlptc.OpBatch
}

func (m *Batch) WriteBody(pv cqlptc.Version, w *cqlfrm.Writer) liberr.Error {
	w.WriteUint8(uint8(m.Type))
	w.WriteShort(uint16(len(m.Items)))

	for _, it := range m.Items {
		if len(it.ID) > 0 {
			w.WriteUint8(1)
			w.WriteShortBytes(it.ID)
		} else {
			w.WriteUint8(0)
			w.WriteLongString(it.Query)
		}

		w.WriteShort(uint16(len(it.Values)))
		for _, v := range it.Values {
			writeValue(w, v)
		}
	}

	w.WriteConsistency(m.Consistency)

	var f uint8
	if m.HasSerial {
		f |= cqlptc.QryFlagSerialConsistency
	}
	if m.Timestamp != nil && pv.SupportsTimestamp() {
		f |= cqlptc.QryFlagTimestamp
	}

	w.WriteUint8(f)

	if f&cqlptc.QryFlagSerialConsistency != 0 {
		w.WriteConsistency(m.SerialConsistency)
	}

	if f&cqlptc.QryFlagTimestamp != 0 {
		w.WriteLong(*m.Timestamp)
	}

	return nil
}
