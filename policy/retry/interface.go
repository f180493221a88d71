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

package retry

import (
	cqlptc "github.com/nabbar/cqldriver/protocol"
)

// Decision is the outcome of a retry policy consultation.
type Decision uint8

const (
	// Rethrow surfaces the error to the caller.
	Rethrow Decision = iota
	// Retry resubmits the request, on the same host or the next one.
	Retry
	// Ignore completes the request with an empty result.
	Ignore
)

// Verdict carries a decision and its parameters.
type Verdict struct {
	Decision    Decision
	Consistency *cqlptc.Consistency
	SameHost    bool
}

// Info describes the failed attempt submitted to the policy.
type Info struct {
	Code        cqlptc.ErrorCode
	Err         error
	Consistency cqlptc.Consistency
	Received    int32
	BlockFor    int32
	DataPresent bool
	WriteType   string
	Idempotent  bool
	Attempt     int
}

// Policy decides the fate of retryable server errors.
type Policy interface {
	OnReadTimeout(i Info) Verdict
	OnWriteTimeout(i Info) Verdict
	OnUnavailable(i Info) Verdict
	OnRequestError(i Info) Verdict
}

func rethrow() Verdict {
	return Verdict{Decision: Rethrow}
}

func retrySame() Verdict {
	return Verdict{Decision: Retry, SameHost: true}
}

func retryNext() Verdict {
	return Verdict{Decision: Retry}
}

// NewDefault returns the stock policy: re-read on the same host when
// enough replicas answered but the data was missing, retry idempotent
// writes only for the BATCH_LOG and BATCH write types, try the next
// host once on unavailable, and
// never retry non-idempotent requests on request errors.
func NewDefault() Policy {
	return &def{}
}

type def struct{}

func (o *def) OnReadTimeout(i Info) Verdict {
	if i.Attempt > 0 {
		return rethrow()
	}

	if i.Received >= i.BlockFor && !i.DataPresent {
		return retrySame()
	}

	return rethrow()
}

func (o *def) OnWriteTimeout(i Info) Verdict {
	if i.Attempt > 0 || !i.Idempotent {
		return rethrow()
	}

	if i.WriteType == "BATCH_LOG" || i.WriteType == "BATCH" {
		return retrySame()
	}

	return rethrow()
}

func (o *def) OnUnavailable(i Info) Verdict {
	if i.Attempt > 0 {
		return rethrow()
	}

	return retryNext()
}

func (o *def) OnRequestError(i Info) Verdict {
	if !i.Idempotent {
		return rethrow()
	}

	return retryNext()
}

// NewFallthrough returns a policy that always rethrows.
func NewFallthrough() Policy {
	return &fall{}
}

type fall struct{}

func (o *fall) OnReadTimeout(_ Info) Verdict {
	return rethrow()
}

func (o *fall) OnWriteTimeout(_ Info) Verdict {
	return rethrow()
}

func (o *fall) OnUnavailable(_ Info) Verdict {
	return rethrow()
}

func (o *fall) OnRequestError(_ Info) Verdict {
	return rethrow()
}

// NewIdempotenceAware wraps another policy and enforces the request's
// idempotent flag before delegating write or request error decisions.
func NewIdempotenceAware(child Policy) Policy {
	if child == nil {
		child = NewDefault()
	}

	return &idem{child: child}
}

type idem struct {
	child Policy
}

func (o *idem) OnReadTimeout(i Info) Verdict {
	return o.child.OnReadTimeout(i)
}

func (o *idem) OnWriteTimeout(i Info) Verdict {
	if !i.Idempotent {
		return rethrow()
	}

	return o.child.OnWriteTimeout(i)
}

func (o *idem) OnUnavailable(i Info) Verdict {
	return o.child.OnUnavailable(i)
}

func (o *idem) OnRequestError(i Info) Verdict {
	if !i.Idempotent {
		return rethrow()
	}

	return o.child.OnRequestError(i)
}
