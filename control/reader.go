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
	"net"

	cqlcdc "github.com/nabbar/cqldriver/codec"
	cqlhst "github.com/nabbar/cqldriver/hostinfo"
	cqlmsg "github.com/nabbar/cqldriver/message"
	cqlptc "github.com/nabbar/cqldriver/protocol"
	cqltrp "github.com/nabbar/cqldriver/transport"
	liberr "github.com/nabbar/golib/errors"
)

// TopologyReader supplies the discovery tuples and schema agreement
// state the control connection consumes as opaque inputs.
type TopologyReader interface {
	// Local describes the connected node itself.
	Local(ctx context.Context, c cqltrp.Connection) (cqlhst.Peer, liberr.Error)

	// Peers lists the other cluster members known to the node.
	Peers(ctx context.Context, c cqltrp.Connection) ([]cqlhst.Peer, liberr.Error)

	// SchemaAgreement reports whether all nodes share one schema
	// version.
	SchemaAgreement(ctx context.Context, c cqltrp.Connection) (bool, liberr.Error)
}

// NewSystemReader returns a reader over the system.local and
// system.peers catalogue tables, the standard discovery source.
func NewSystemReader(port int) TopologyReader {
	if port <= 0 {
		port = 9042
	}

	return &sysReader{port: port}
}

type sysReader struct {
	port int
}

func (o *sysReader) query(ctx context.Context, c cqltrp.Connection, cql string) (*cqlmsg.RowsResult, liberr.Error) {
	in, e := c.Request(ctx, &cqlmsg.Query{
		Query:  cql,
		Params: cqlmsg.QueryParameters{Consistency: cqlptc.One},
	})
	if e != nil {
		return nil, e
	}

	switch m := in.Message.(type) {
	case *cqlmsg.RowsResult:
		return m, nil

	case *cqlmsg.Error:
		return nil, ErrorPeersQuery.Error(m)
	}

	return nil, ErrorPeersQuery.Error(nil)
}

// rowMap decodes one row into a column-name keyed map.
func rowMap(m *cqlmsg.RowsResult, row [][]byte, pv cqlptc.Version) map[string]interface{} {
	out := make(map[string]interface{}, len(row))

	if m.Metadata == nil {
		return out
	}

	for i, col := range m.Metadata.Columns {
		if i >= len(row) {
			break
		}

		v, e := cqlcdc.Decode(row[i], col.Type, pv)
		if e != nil {
			continue
		}

		out[col.Name] = v
	}

	return out
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asStrings(v interface{}) []string {
	l, ok := v.([]interface{})
	if !ok {
		return nil
	}

	out := make([]string, 0, len(l))
	for _, it := range l {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}

	return out
}

func asAddress(v interface{}) string {
	if ip, ok := v.(net.IP); ok {
		return ip.String()
	}
	return asString(v)
}

func (o *sysReader) peerFromRow(row map[string]interface{}) cqlhst.Peer {
	addr := asAddress(row["rpc_address"])
	if addr == "" || addr == "0.0.0.0" {
		addr = asAddress(row["peer"])
	}
	if addr == "" {
		addr = asAddress(row["broadcast_address"])
	}

	return cqlhst.Peer{
		Address:          addr,
		Port:             o.port,
		Datacenter:       asString(row["data_center"]),
		Rack:             asString(row["rack"]),
		Tokens:           asStrings(row["tokens"]),
		CassandraVersion: asString(row["release_version"]),
	}
}

func (o *sysReader) Local(ctx context.Context, c cqltrp.Connection) (cqlhst.Peer, liberr.Error) {
	m, e := o.query(ctx, c, "SELECT * FROM system.local")
	if e != nil {
		return cqlhst.Peer{}, e
	}

	if len(m.Rows) == 0 {
		return cqlhst.Peer{}, ErrorPeersQuery.Error(nil)
	}

	p := o.peerFromRow(rowMap(m, m.Rows[0], c.Version()))

	if p.Address == "" || p.Address == "0.0.0.0" {
		// fall back on the endpoint we actually dialed
		host, _, _ := net.SplitHostPort(c.Endpoint())
		p.Address = host
	}

	return p, nil
}

func (o *sysReader) Peers(ctx context.Context, c cqltrp.Connection) ([]cqlhst.Peer, liberr.Error) {
	m, e := o.query(ctx, c, "SELECT * FROM system.peers")
	if e != nil {
		return nil, e
	}

	peers := make([]cqlhst.Peer, 0, len(m.Rows))
	for _, row := range m.Rows {
		p := o.peerFromRow(rowMap(m, row, c.Version()))
		if p.Address != "" {
			peers = append(peers, p)
		}
	}

	return peers, nil
}

func (o *sysReader) SchemaAgreement(ctx context.Context, c cqltrp.Connection) (bool, liberr.Error) {
	local, e := o.query(ctx, c, "SELECT schema_version FROM system.local")
	if e != nil {
		return false, e
	}

	versions := make(map[string]bool)

	for _, row := range local.Rows {
		m := rowMap(local, row, c.Version())
		if u, ok := m["schema_version"].(interface{ String() string }); ok {
			versions[u.String()] = true
		}
	}

	peers, e := o.query(ctx, c, "SELECT schema_version FROM system.peers")
	if e != nil {
		return false, e
	}

	for _, row := range peers.Rows {
		m := rowMap(peers, row, c.Version())
		if u, ok := m["schema_version"].(interface{ String() string }); ok {
			versions[u.String()] = true
		}
	}

	return len(versions) <= 1, nil
}
