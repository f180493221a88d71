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

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	cqlaut "github.com/nabbar/cqldriver/auth"
	cqlfrm "github.com/nabbar/cqldriver/frame"
	cqlhst "github.com/nabbar/cqldriver/hostinfo"
	cqlmsg "github.com/nabbar/cqldriver/message"
	cqlptc "github.com/nabbar/cqldriver/protocol"
	cqlstm "github.com/nabbar/cqldriver/stream"
	libatm "github.com/nabbar/golib/atomic"
	liberr "github.com/nabbar/golib/errors"
	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
)

func dial(ctx context.Context, h cqlhst.Host, cfg Config, log liblog.FuncLog) (Connection, liberr.Error) {
	d := net.Dialer{Timeout: cfg.ConnectTimeout}

	sock, err := d.DialContext(ctx, "tcp", h.Endpoint())
	if err != nil {
		return nil, ErrorDial.Error(err)
	}

	if cfg.TLS != nil {
		sock = tls.Client(sock, cfg.TLS)
	}

	o := &conn{
		cfg:      cfg,
		host:     h,
		sock:     sock,
		log:      log,
		alloc:    cqlstm.New(cfg.Version),
		state:    libatm.NewValue[connState](),
		keyspace: libatm.NewValue[string](),
		pend:     make(map[int16]*pending),
		writeq:   make(chan []byte, 256),
		done:     make(chan struct{}),
	}

	o.touch()

	if e := o.startup(ctx); e != nil {
		_ = sock.Close()
		o.alloc.Close()
		return nil, e
	}

	o.state.Store(stateReady)
	o.logStartup("connection ready")

	go o.readLoop()
	go o.writeLoop()
	go o.heartbeatLoop()

	if cfg.Keyspace != "" {
		if e := o.SetKeyspace(ctx, cfg.Keyspace); e != nil {
			_ = o.Close()
			return nil, e
		}
	}

	return o, nil
}

var noDeadline time.Time

// startup drives the STARTUP / AUTHENTICATE sub-protocol synchronously
// on the raw socket, before the demux loops exist.
func (o *conn) startup(ctx context.Context) liberr.Error {
	if d, ok := ctx.Deadline(); ok {
		_ = o.sock.SetDeadline(d)
		defer func() { _ = o.sock.SetDeadline(noDeadline) }()
	}

	e := o.writeRaw(&cqlmsg.Startup{Compression: o.cfg.Compressor.Name()})
	if e != nil {
		return ErrorStartup.Error(e)
	}

	var authenticator cqlaut.Authenticator

	for {
		in, er := o.readRaw()
		if er != nil {
			return ErrorStartup.Error(er)
		}

		switch m := in.Message.(type) {
		case *cqlmsg.Ready:
			return nil

		case *cqlmsg.AuthSuccess:
			if authenticator != nil {
				authenticator.OnSuccess(m.Token)
			}
			return nil

		case *cqlmsg.Authenticate:
			if o.cfg.AuthProvider == nil {
				return ErrorAuthMissingProvider.Error(nil)
			}

			a, err := o.cfg.AuthProvider.NewAuthenticator(o.Endpoint(), m.Class)
			if err != nil {
				return ErrorAuthentication.Error(err)
			}

			authenticator = a

			tok, err := a.InitialResponse()
			if err != nil {
				return ErrorAuthentication.Error(err)
			}

			if e = o.writeRaw(&cqlmsg.AuthResponse{Token: tok}); e != nil {
				return ErrorStartup.Error(e)
			}

		case *cqlmsg.AuthChallenge:
			if authenticator == nil {
				return ErrorProtocol.Error(nil)
			}

			tok, err := authenticator.EvaluateChallenge(m.Token)
			if err != nil {
				return ErrorAuthentication.Error(err)
			}

			if e = o.writeRaw(&cqlmsg.AuthResponse{Token: tok}); e != nil {
				return ErrorStartup.Error(e)
			}

		case *cqlmsg.Error:
			if m.Code == cqlptc.ErrBadCredentials {
				return ErrorAuthentication.Error(m)
			}
			return ErrorStartup.Error(m)

		default:
			return ErrorProtocol.Error(nil)
		}
	}
}

func (o *conn) writeRaw(req cqlmsg.Request) liberr.Error {
	buf, e := cqlmsg.EncodeFrame(req, o.cfg.Version, 0, nil, nil)
	if e != nil {
		return e
	}

	if _, err := o.sock.Write(buf); err != nil {
		return ErrorDial.Error(err)
	}

	return nil
}

func (o *conn) readRaw() (*cqlmsg.Inbound, liberr.Error) {
	hb := make([]byte, o.cfg.Version.HeaderLength())
	if e := o.readFull(hb); e != nil {
		return nil, e
	}

	h, e := cqlfrm.DecodeHeader(hb)
	if e != nil {
		return nil, e
	}

	body := make([]byte, h.Length)
	if er := o.readFull(body); er != nil {
		return nil, er
	}

	return cqlmsg.DecodeFrame(h, body, o.cfg.Compressor)
}

func (o *conn) readFull(b []byte) liberr.Error {
	read := 0
	for read < len(b) {
		n, err := o.sock.Read(b[read:])
		if err != nil {
			return ErrorDial.Error(err)
		}
		read += n
	}
	return nil
}

func (o *conn) logStartup(msg string) {
	o.logger().Entry(loglvl.DebugLevel, msg).
		FieldAdd("endpoint", o.Endpoint()).
		FieldAdd("version", o.cfg.Version.String()).Log()
}
