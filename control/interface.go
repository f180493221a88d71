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

package control

import (
	"context"
	"time"

	cqlhst "github.com/nabbar/cqldriver/hostinfo"
	cqlmsg "github.com/nabbar/cqldriver/message"
	cqlrcn "github.com/nabbar/cqldriver/policy/reconnect"
	cqltrl "github.com/nabbar/cqldriver/policy/translate"
	cqlptc "github.com/nabbar/cqldriver/protocol"
	cqltrp "github.com/nabbar/cqldriver/transport"
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
)

// Config tunes the control connection.
type Config struct {
	// ContactPoints are the seed endpoints, "host" or "host:port".
	ContactPoints []string

	// Port completes contact points given without one.
	Port int

	// MaxVersion starts the protocol negotiation; it is downgraded on
	// protocol errors until accepted or VersionMin is hit.
	MaxVersion cqlptc.Version

	// Translator rewrites discovered addresses before dialing.
	Translator cqltrl.Translator

	// Reader supplies the peers catalogue.
	Reader TopologyReader

	// Conn is the socket configuration of the privileged connection.
	Conn cqltrp.Config

	// RefreshInterval paces the periodic peers reconciliation.
	RefreshInterval time.Duration

	// Reconnect schedules the replacement attempts after a failure.
	Reconnect cqlrcn.Policy
}

func (c Config) withDefaults() Config {
	if c.Port <= 0 {
		c.Port = 9042
	}

	if c.MaxVersion == 0 {
		c.MaxVersion = cqlptc.VersionMax
	}

	if c.Translator == nil {
		c.Translator = cqltrl.NewIdentity()
	}

	if c.Reader == nil {
		c.Reader = NewSystemReader(c.Port)
	}

	if c.RefreshInterval <= 0 {
		c.RefreshInterval = time.Minute
	}

	if c.Reconnect == nil {
		c.Reconnect = cqlrcn.NewExponential(time.Second, time.Minute, true)
	}

	return c
}

// Control owns the privileged connection used to discover peers,
// subscribe to cluster events and reconcile the host registry. When
// its connection fails it moves to another up host.
type Control interface {
	// Start negotiates a connection against the contact points,
	// subscribes to events and runs the initial discovery.
	Start(ctx context.Context) liberr.Error

	// Stop tears the control connection down.
	Stop()

	// Version returns the negotiated protocol version.
	Version() cqlptc.Version

	// OnEvent subscribes to the serialized server event stream.
	OnEvent(fn func(ev *cqlmsg.Event))

	// RefreshPeers reconciles the registry with the peers catalogue:
	// missing peers are added, vanished ones removed.
	RefreshPeers(ctx context.Context) liberr.Error

	// AwaitSchemaAgreement polls until all nodes share one schema
	// version or the context expires.
	AwaitSchemaAgreement(ctx context.Context) liberr.Error
}

// New returns a control connection over the given registry.
func New(reg cqlhst.Registry, cfg Config, log liblog.FuncLog) (Control, liberr.Error) {
	if reg == nil {
		return nil, ErrorParamEmpty.Error(nil)
	}

	c := cfg.withDefaults()

	if len(c.ContactPoints) == 0 {
		return nil, ErrorNoContactPoint.Error(nil)
	}

	return &control{
		reg: reg,
		cfg: c,
		log: log,
	}, nil
}
