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
	"time"

	cqlrty "github.com/nabbar/cqldriver/policy/retry"
	cqlspc "github.com/nabbar/cqldriver/policy/speculate"
	cqltsg "github.com/nabbar/cqldriver/policy/timestamp"
	cqlptc "github.com/nabbar/cqldriver/protocol"
	cqltkn "github.com/nabbar/cqldriver/token"
	liberr "github.com/nabbar/golib/errors"
)

// Options are the per-request execution options. Nil pointers fall
// back to the execution profile, then to the session defaults.
type Options struct {
	Consistency       *cqlptc.Consistency
	SerialConsistency *cqlptc.Consistency
	FetchSize         int32
	PageState         []byte

	// Prepare resolves the query through the prepared cache first.
	Prepare bool

	// Idempotent allows speculative execution and write retries.
	Idempotent bool

	// Keyspace overrides the session's active keyspace for routing.
	Keyspace string

	// Routing inputs, strongest first: an explicit token, an explicit
	// key, or the indexes of the partition-key parameters.
	RoutingToken   *cqltkn.Token
	RoutingKey     []byte
	RoutingIndexes []int

	// Logged selects the batch atomicity (defaults to true).
	Logged *bool

	// Timestamp forces the client timestamp in microseconds.
	Timestamp *int64

	// ReadTimeout overrides the per-attempt deadline.
	ReadTimeout time.Duration

	// RetryPolicy overrides the profile and session retry policy.
	RetryPolicy cqlrty.Policy

	// ExecutionProfile names the profile resolved for this request.
	ExecutionProfile string

	// NamedParams resolves parameters by name against the prepared
	// variable metadata instead of positionally.
	NamedParams map[string]interface{}
}

// Profile is a named bundle of execution options.
type Profile struct {
	Consistency       cqlptc.Consistency
	SerialConsistency cqlptc.Consistency
	ReadTimeout       time.Duration
	Retry             cqlrty.Policy
	Speculative       cqlspc.Policy
	Timestamp         cqltsg.Generator
}

// resolved is the flattened option set of one request run.
type resolved struct {
	consistency cqlptc.Consistency
	serial      cqlptc.Consistency
	hasSerial   bool
	fetchSize   int32
	pageState   []byte
	idempotent  bool
	keyspace    string
	readTimeout time.Duration
	retry       cqlrty.Policy
	speculative cqlspc.Policy
	timestamp   *int64
	logged      bool
}

func (o *executor) resolve(opts *Options) (*resolved, liberr.Error) {
	if opts == nil {
		opts = &Options{}
	}

	r := &resolved{
		consistency: o.deps.DefaultConsistency,
		fetchSize:   opts.FetchSize,
		pageState:   opts.PageState,
		idempotent:  opts.Idempotent,
		keyspace:    opts.Keyspace,
		readTimeout: o.deps.ReadTimeout,
		retry:       o.deps.Retry,
		speculative: o.deps.Speculate,
		logged:      true,
	}

	gen := o.deps.Timestamp

	if opts.ExecutionProfile != "" {
		p, ok := o.deps.Profiles[opts.ExecutionProfile]
		if !ok {
			return nil, ErrorProfileUnknown.Error(nil)
		}

		r.consistency = p.Consistency

		if p.SerialConsistency.IsSerial() {
			r.serial, r.hasSerial = p.SerialConsistency, true
		}

		if p.ReadTimeout > 0 {
			r.readTimeout = p.ReadTimeout
		}

		if p.Retry != nil {
			r.retry = p.Retry
		}

		if p.Speculative != nil {
			r.speculative = p.Speculative
		}

		if p.Timestamp != nil {
			gen = p.Timestamp
		}
	}

	if opts.Consistency != nil {
		r.consistency = *opts.Consistency
	}

	if opts.SerialConsistency != nil {
		r.serial, r.hasSerial = *opts.SerialConsistency, true
	}

	if opts.ReadTimeout > 0 {
		r.readTimeout = opts.ReadTimeout
	}

	if opts.RetryPolicy != nil {
		r.retry = opts.RetryPolicy
	}

	if opts.Logged != nil {
		r.logged = *opts.Logged
	}

	if r.keyspace == "" && o.deps.Keyspace != nil {
		r.keyspace = o.deps.Keyspace()
	}

	// the timestamp is generated once per request so retries and
	// speculative executions stay idempotent server-side
	switch {
	case opts.Timestamp != nil:
		r.timestamp = opts.Timestamp

	case gen != nil && o.deps.Version.SupportsTimestamp():
		if ts, ok := gen.Next(); ok {
			r.timestamp = &ts
		}
	}

	if r.retry == nil {
		r.retry = cqlrty.NewDefault()
	}

	if r.speculative == nil {
		r.speculative = cqlspc.NewNone()
	}

	return r, nil
}
