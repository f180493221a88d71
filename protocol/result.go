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

// ResultKind discriminates the body of a RESULT frame.
type ResultKind int32

const (
	ResultVoid         ResultKind = 0x0001
	ResultRows         ResultKind = 0x0002
	ResultSetKeyspace  ResultKind = 0x0003
	ResultPrepared     ResultKind = 0x0004
	ResultSchemaChange ResultKind = 0x0005
)

func (r ResultKind) String() string {
	switch r {
	case ResultVoid:
		return "VOID"
	case ResultRows:
		return "ROWS"
	case ResultSetKeyspace:
		return "SET_KEYSPACE"
	case ResultPrepared:
		return "PREPARED"
	case ResultSchemaChange:
		return "SCHEMA_CHANGE"
	}
	return "UNKNOWN"
}

// BatchType selects the atomicity mode of a BATCH request.
type BatchType uint8

const (
	BatchLogged   BatchType = 0x00
	BatchUnlogged BatchType = 0x01
	BatchCounter  BatchType = 0x02
)

// EventType is a server push event category subscribed via REGISTER.
type EventType string

const (
	EventTopologyChange EventType = "TOPOLOGY_CHANGE"
	EventStatusChange   EventType = "STATUS_CHANGE"
	EventSchemaChange   EventType = "SCHEMA_CHANGE"
)

// Query parameter flags of QUERY / EXECUTE / BATCH bodies.
const (
	QryFlagValues            uint8 = 0x01
	QryFlagSkipMetadata      uint8 = 0x02
	QryFlagPageSize          uint8 = 0x04
	QryFlagPagingState       uint8 = 0x08
	QryFlagSerialConsistency uint8 = 0x10
	QryFlagTimestamp         uint8 = 0x20
	QryFlagNamedValues       uint8 = 0x40
)

// Rows metadata flags of a RESULT(rows) or RESULT(prepared) body.
const (
	RowsFlagGlobalTableSpec int32 = 0x01
	RowsFlagHasMorePages    int32 = 0x02
	RowsFlagNoMetadata      int32 = 0x04
)
