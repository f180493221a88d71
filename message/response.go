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
	"net"
	"strconv"

	cqlcdc "github.com/nabbar/cqldriver/codec"
	cqlfrm "github.com/nabbar/cqldriver/frame"
	cqlcmp "github.com/nabbar/cqldriver/frame/compress"
	cqlptc "github.com/nabbar/cqldriver/protocol"
	liberr "github.com/nabbar/golib/errors"
)

// Response is a server-to-client message body.
type Response interface {
	OpCode() cqlptc.OpCode
}

// Inbound wraps a decoded response with the envelope data shared by all
// opcodes: tracing id, warnings and custom payload.
type Inbound struct {
	Header    cqlfrm.Header
	Message   Response
	TracingID *cqlcdc.UUID
	Warnings  []string
	Payload   map[string][]byte
}

// Ready acknowledges a STARTUP without authentication.
type Ready struct{}

func (m *Ready) OpCode() cqlptc.OpCode {
	return cqlptc.OpReady
}

// Authenticate asks the client to run the named authenticator.
type Authenticate struct {
	Class string
}

func (m *Authenticate) OpCode() cqlptc.OpCode {
	return cqlptc.OpAuthenticate
}

// AuthChallenge carries a server authentication challenge.
type AuthChallenge struct {
	Token []byte
}

func (m *AuthChallenge) OpCode() cqlptc.OpCode {
	return cqlptc.OpAuthChallenge
}

// AuthSuccess concludes a successful authentication exchange.
type AuthSuccess struct {
	Token []byte
}

func (m *AuthSuccess) OpCode() cqlptc.OpCode {
	return cqlptc.OpAuthSuccess
}

// Supported lists the startup options accepted by the server.
type Supported struct {
	Options map[string][]string
}

func (m *Supported) OpCode() cqlptc.OpCode {
	return cqlptc.OpSupported
}

// Event is a server push notification on a registered connection.
type Event struct {
	Kind    cqlptc.EventType
	Change  string
	Address string

	// schema change details
	Target    string
	Keyspace  string
	Object    string
	Arguments []string
}

func (m *Event) OpCode() cqlptc.OpCode {
	return cqlptc.OpEvent
}

// Error is a typed server-side error response.
type Error struct {
	Code    cqlptc.ErrorCode
	Message string

	Consistency cqlptc.Consistency
	Received    int32
	BlockFor    int32
	NumFailures int32
	DataPresent bool
	WriteType   string
	Alive       int32

	Keyspace     string
	Table        string
	FunctionName string
	ArgTypes     []string

	UnpreparedID []byte
}

func (m *Error) OpCode() cqlptc.OpCode {
	return cqlptc.OpError
}

func (m *Error) Error() string {
	return m.Code.String() + ": " + m.Message
}

// DecodeFrame parses a complete inbound frame: header, envelope flags
// and the opcode-specific body. The raw body is decompressed first when
// the compression flag is set.
func DecodeFrame(h cqlfrm.Header, body []byte, cmp cqlcmp.Compressor) (*Inbound, liberr.Error) {
	if h.Flags.Has(cqlptc.FlagCompressed) {
		if cmp == nil || cmp.Name() == "" {
			return nil, ErrorBodyDecode.Error(nil)
		}

		var e liberr.Error
		if body, e = cmp.Decompress(body); e != nil {
			return nil, e
		}
	}

	in := &Inbound{Header: h}
	r := cqlfrm.NewReader(body)

	if h.Flags.Has(cqlptc.FlagTracing) {
		b, e := r.ReadRaw(16)
		if e != nil {
			return nil, e
		}

		var u cqlcdc.UUID
		copy(u[:], b)
		in.TracingID = &u
	}

	if h.Flags.Has(cqlptc.FlagWarning) {
		w, e := r.ReadStringList()
		if e != nil {
			return nil, e
		}
		in.Warnings = w
	}

	if h.Flags.Has(cqlptc.FlagCustomPayload) {
		n, e := r.ReadShort()
		if e != nil {
			return nil, e
		}

		in.Payload = make(map[string][]byte, n)
		for i := 0; i < int(n); i++ {
			k, er := r.ReadString()
			if er != nil {
				return nil, er
			}

			v, er := r.ReadBytes()
			if er != nil {
				return nil, er
			}

			in.Payload[k] = v
		}
	}

	msg, e := decodeBody(h, r)
	if e != nil {
		return nil, e
	}

	in.Message = msg
	return in, nil
}

func decodeBody(h cqlfrm.Header, r *cqlfrm.Reader) (Response, liberr.Error) {
	switch h.OpCode {
	case cqlptc.OpReady:
		return &Ready{}, nil

	case cqlptc.OpAuthenticate:
		c, e := r.ReadString()
		if e != nil {
			return nil, e
		}
		return &Authenticate{Class: c}, nil

	case cqlptc.OpAuthChallenge:
		t, e := r.ReadBytes()
		if e != nil {
			return nil, e
		}
		return &AuthChallenge{Token: t}, nil

	case cqlptc.OpAuthSuccess:
		t, e := r.ReadBytes()
		if e != nil {
			return nil, e
		}
		return &AuthSuccess{Token: t}, nil

	case cqlptc.OpSupported:
		o, e := r.ReadStringMultiMap()
		if e != nil {
			return nil, e
		}
		return &Supported{Options: o}, nil

	case cqlptc.OpError:
		return decodeError(r)

	case cqlptc.OpEvent:
		return decodeEvent(r)

	case cqlptc.OpResult:
		return decodeResult(h, r)
	}

	return nil, ErrorOpCodeUnknown.Error(nil)
}

func decodeError(r *cqlfrm.Reader) (Response, liberr.Error) {
	c, e := r.ReadInt()
	if e != nil {
		return nil, e
	}

	msg, e := r.ReadString()
	if e != nil {
		return nil, e
	}

	m := &Error{Code: cqlptc.ErrorCode(c), Message: msg}

	switch m.Code {
	case cqlptc.ErrUnavailable:
		if m.Consistency, e = r.ReadConsistency(); e != nil {
			return nil, e
		}
		if m.BlockFor, e = r.ReadInt(); e != nil {
			return nil, e
		}
		if m.Alive, e = r.ReadInt(); e != nil {
			return nil, e
		}

	case cqlptc.ErrWriteTimeout:
		if m.Consistency, e = r.ReadConsistency(); e != nil {
			return nil, e
		}
		if m.Received, e = r.ReadInt(); e != nil {
			return nil, e
		}
		if m.BlockFor, e = r.ReadInt(); e != nil {
			return nil, e
		}
		if m.WriteType, e = r.ReadString(); e != nil {
			return nil, e
		}

	case cqlptc.ErrReadTimeout:
		if m.Consistency, e = r.ReadConsistency(); e != nil {
			return nil, e
		}
		if m.Received, e = r.ReadInt(); e != nil {
			return nil, e
		}
		if m.BlockFor, e = r.ReadInt(); e != nil {
			return nil, e
		}

		p, er := r.ReadUint8()
		if er != nil {
			return nil, er
		}
		m.DataPresent = p != 0

	case cqlptc.ErrReadFailure:
		if m.Consistency, e = r.ReadConsistency(); e != nil {
			return nil, e
		}
		if m.Received, e = r.ReadInt(); e != nil {
			return nil, e
		}
		if m.BlockFor, e = r.ReadInt(); e != nil {
			return nil, e
		}
		if m.NumFailures, e = r.ReadInt(); e != nil {
			return nil, e
		}

		p, er := r.ReadUint8()
		if er != nil {
			return nil, er
		}
		m.DataPresent = p != 0

	case cqlptc.ErrWriteFailure:
		if m.Consistency, e = r.ReadConsistency(); e != nil {
			return nil, e
		}
		if m.Received, e = r.ReadInt(); e != nil {
			return nil, e
		}
		if m.BlockFor, e = r.ReadInt(); e != nil {
			return nil, e
		}
		if m.NumFailures, e = r.ReadInt(); e != nil {
			return nil, e
		}
		if m.WriteType, e = r.ReadString(); e != nil {
			return nil, e
		}

	case cqlptc.ErrFunctionFailure:
		if m.Keyspace, e = r.ReadString(); e != nil {
			return nil, e
		}
		if m.FunctionName, e = r.ReadString(); e != nil {
			return nil, e
		}
		if m.ArgTypes, e = r.ReadStringList(); e != nil {
			return nil, e
		}

	case cqlptc.ErrAlreadyExists:
		if m.Keyspace, e = r.ReadString(); e != nil {
			return nil, e
		}
		if m.Table, e = r.ReadString(); e != nil {
			return nil, e
		}

	case cqlptc.ErrUnprepared:
		if m.UnpreparedID, e = r.ReadShortBytes(); e != nil {
			return nil, e
		}
	}

	return m, nil
}

func decodeEvent(r *cqlfrm.Reader) (Response, liberr.Error) {
	k, e := r.ReadString()
	if e != nil {
		return nil, e
	}

	m := &Event{Kind: cqlptc.EventType(k)}

	switch m.Kind {
	case cqlptc.EventTopologyChange, cqlptc.EventStatusChange:
		if m.Change, e = r.ReadString(); e != nil {
			return nil, e
		}

		ip, port, er := r.ReadInet()
		if er != nil {
			return nil, er
		}

		m.Address = net.JoinHostPort(ip.String(), strconv.Itoa(int(port)))

	case cqlptc.EventSchemaChange:
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

	default:
		return nil, ErrorEventKind.Error(nil)
	}

	return m, nil
}
