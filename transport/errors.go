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

package transport

import liberr "github.com/nabbar/golib/errors"

const (
	ErrorParamEmpty liberr.CodeError = iota + liberr.MinAvailable + 200
	ErrorDial
	ErrorStartup
	ErrorAuthentication
	ErrorAuthMissingProvider
	ErrorDefunct
	ErrorClosed
	ErrorSaturated
	ErrorTimeout
	ErrorProtocol
	ErrorKeyspace
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = liberr.ExistInMapMessage(ErrorParamEmpty)
	liberr.RegisterIdFctMessage(ErrorParamEmpty, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case liberr.UNK_ERROR:
		return ""
	case ErrorParamEmpty:
		return "at least one given parameter is empty"
	case ErrorDial:
		return "unable to open the transport socket"
	case ErrorStartup:
		return "startup negotiation failed"
	case ErrorAuthentication:
		return "server rejected the authentication exchange"
	case ErrorAuthMissingProvider:
		return "server requires authentication but no provider is configured"
	case ErrorDefunct:
		return "connection is defunct, in-flight requests completed with socket error"
	case ErrorClosed:
		return "connection is closed"
	case ErrorSaturated:
		return "all stream ids of the connection are in use"
	case ErrorTimeout:
		return "per-attempt deadline expired before the response arrived"
	case ErrorProtocol:
		return "protocol corruption detected on the connection"
	case ErrorKeyspace:
		return "unable to pin the keyspace on the connection"
	}

	return ""
}
