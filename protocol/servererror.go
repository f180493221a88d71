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

package protocol

// ErrorCode is a server-side error code carried by an ERROR frame.
type ErrorCode int32

const (
	ErrServer          ErrorCode = 0x0000
	ErrProtocol        ErrorCode = 0x000a
	ErrBadCredentials  ErrorCode = 0x0100
	ErrUnavailable     ErrorCode = 0x1000
	ErrOverloaded      ErrorCode = 0x1001
	ErrIsBootstrapping ErrorCode = 0x1002
	ErrTruncate        ErrorCode = 0x1003
	ErrWriteTimeout    ErrorCode = 0x1100
	ErrReadTimeout     ErrorCode = 0x1200
	ErrReadFailure     ErrorCode = 0x1300
	ErrFunctionFailure ErrorCode = 0x1400
	ErrWriteFailure    ErrorCode = 0x1500
	ErrSyntax          ErrorCode = 0x2000
	ErrUnauthorized    ErrorCode = 0x2100
	ErrInvalid         ErrorCode = 0x2200
	ErrConfig          ErrorCode = 0x2300
	ErrAlreadyExists   ErrorCode = 0x2400
	ErrUnprepared      ErrorCode = 0x2500
)

func (e ErrorCode) String() string {
	switch e {
	case ErrServer:
		return "server error"
	case ErrProtocol:
		return "protocol error"
	case ErrBadCredentials:
		return "bad credentials"
	case ErrUnavailable:
		return "unavailable"
	case ErrOverloaded:
		return "overloaded"
	case ErrIsBootstrapping:
		return "is bootstrapping"
	case ErrTruncate:
		return "truncate error"
	case ErrWriteTimeout:
		return "write timeout"
	case ErrReadTimeout:
		return "read timeout"
	case ErrReadFailure:
		return "read failure"
	case ErrFunctionFailure:
		return "function failure"
	case ErrWriteFailure:
		return "write failure"
	case ErrSyntax:
		return "syntax error"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrInvalid:
		return "invalid query"
	case ErrConfig:
		return "config error"
	case ErrAlreadyExists:
		return "already exists"
	case ErrUnprepared:
		return "unprepared"
	}
	return "unknown error"
}

// IsRetryDelegated reports whether the retry policy decides the outcome.
func (e ErrorCode) IsRetryDelegated() bool {
	switch e {
	case ErrUnavailable, ErrReadTimeout, ErrReadFailure, ErrWriteTimeout, ErrWriteFailure:
		return true
	}
	return false
}

// IsNextHost reports whether the executor moves to the next host automatically.
func (e ErrorCode) IsNextHost() bool {
	switch e {
	case ErrIsBootstrapping, ErrOverloaded, ErrTruncate:
		return true
	}
	return false
}

// TypeCode identifies a CQL data type on the wire.
type TypeCode uint16

const (
	TypeCustom    TypeCode = 0x0000
	TypeAscii     TypeCode = 0x0001
	TypeBigint    TypeCode = 0x0002
	TypeBlob      TypeCode = 0x0003
	TypeBoolean   TypeCode = 0x0004
	TypeCounter   TypeCode = 0x0005
	TypeDecimal   TypeCode = 0x0006
	TypeDouble    TypeCode = 0x0007
	TypeFloat     TypeCode = 0x0008
	TypeInt       TypeCode = 0x0009
	TypeText      TypeCode = 0x000a
	TypeTimestamp TypeCode = 0x000b
	TypeUuid      TypeCode = 0x000c
	TypeVarchar   TypeCode = 0x000d
	TypeVarint    TypeCode = 0x000e
	TypeTimeuuid  TypeCode = 0x000f
	TypeInet      TypeCode = 0x0010
	TypeDate      TypeCode = 0x0011
	TypeTime      TypeCode = 0x0012
	TypeSmallint  TypeCode = 0x0013
	TypeTinyint   TypeCode = 0x0014
	TypeDuration  TypeCode = 0x0015
	TypeList      TypeCode = 0x0020
	TypeMap       TypeCode = 0x0021
	TypeSet       TypeCode = 0x0022
	TypeUdt       TypeCode = 0x0030
	TypeTuple     TypeCode = 0x0031
)
