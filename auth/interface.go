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

package auth

import liberr "github.com/nabbar/golib/errors"

// Authenticator drives one authentication exchange on one connection.
type Authenticator interface {
	// InitialResponse returns the first token sent after AUTHENTICATE.
	InitialResponse() ([]byte, liberr.Error)

	// EvaluateChallenge answers a server AUTH_CHALLENGE token.
	EvaluateChallenge(challenge []byte) ([]byte, liberr.Error)

	// OnSuccess receives the final AUTH_SUCCESS token.
	OnSuccess(token []byte)
}

// Provider creates one authenticator per connection attempt.
type Provider interface {
	// NewAuthenticator returns an authenticator for the given endpoint
	// and the server-announced authenticator class name.
	NewAuthenticator(endpoint string, class string) (Authenticator, liberr.Error)
}

// NewPlainText returns a provider implementing the SASL PLAIN exchange
// used by the password authenticator.
func NewPlainText(username, password string) Provider {
	return &plainProvider{user: username, pass: password}
}

type plainProvider struct {
	user string
	pass string
}

func (o *plainProvider) NewAuthenticator(_ string, _ string) (Authenticator, liberr.Error) {
	return &plain{user: o.user, pass: o.pass}, nil
}

type plain struct {
	user string
	pass string
}

func (o *plain) token() []byte {
	b := make([]byte, 0, len(o.user)+len(o.pass)+2)
	b = append(b, 0)
	b = append(b, o.user...)
	b = append(b, 0)
	b = append(b, o.pass...)
	return b
}

func (o *plain) InitialResponse() ([]byte, liberr.Error) {
	return o.token(), nil
}

func (o *plain) EvaluateChallenge(_ []byte) ([]byte, liberr.Error) {
	return o.token(), nil
}

func (o *plain) OnSuccess(_ []byte) {}
