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
	"sort"
	"strings"

	liberr "github.com/nabbar/golib/errors"
)

const (
	ErrorParamEmpty liberr.CodeError = iota + liberr.MinAvailable + 290
	ErrorNoHostAvailable
	ErrorResponse
	ErrorShutdown
	ErrorProfileUnknown
	ErrorRoutingKey
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
	case ErrorNoHostAvailable:
		return "every candidate host was tried and failed"
	case ErrorResponse:
		return "server answered with a terminal error"
	case ErrorShutdown:
		return "session is shut down"
	case ErrorProfileUnknown:
		return "execution profile is not configured"
	case ErrorRoutingKey:
		return "unable to compute the routing key from the partition key parameters"
	}

	return ""
}

// NoHostAvailable is the terminal error of an exhausted query plan,
// carrying the last error observed per candidate host.
type NoHostAvailable struct {
	Inner map[string]error
}

func (e *NoHostAvailable) Error() string {
	if len(e.Inner) == 0 {
		return "no host available to execute the request"
	}

	eps := make([]string, 0, len(e.Inner))
	for ep := range e.Inner {
		eps = append(eps, ep)
	}
	sort.Strings(eps)

	var b strings.Builder
	b.WriteString("no host available to execute the request, tried: ")

	for i, ep := range eps {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(ep)
		b.WriteString(": ")
		b.WriteString(e.Inner[ep].Error())
	}

	return b.String()
}
