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

import "fmt"

// Version is a native protocol version as negotiated during STARTUP.
type Version uint8

const (
	Version1 Version = 0x01
	Version2 Version = 0x02
	Version3 Version = 0x03
	Version4 Version = 0x04
	Version5 Version = 0x05
)

const (
	// VersionMin is the lowest version the negotiation will downgrade to.
	VersionMin = Version3
	// VersionMax is the highest version the negotiation will start from.
	VersionMax = Version4

	directionMask = 0x80
	versionMask   = 0x7f
)

// ParseVersion validates a raw version byte, masking out the direction bit.
func ParseVersion(b uint8) (Version, bool) {
	v := Version(b & versionMask)
	return v, v >= Version1 && v <= Version5
}

// HeaderLength returns the frame header size in bytes for this version.
// Versions 1 and 2 carry a single byte stream id, version 3 and above
// carry a signed big-endian short.
func (v Version) HeaderLength() int {
	if v < Version3 {
		return 8
	}
	return 9
}

// MaxStreamID returns the highest usable stream id for this version.
func (v Version) MaxStreamID() int {
	if v < Version3 {
		return 0x7f
	}
	return 0x7fff
}

// SupportsUnset reports whether the "unset" parameter marker (length -2)
// is allowed on the wire for this version.
func (v Version) SupportsUnset() bool {
	return v >= Version4
}

// SupportsTimestamp reports whether per-query client timestamps are allowed.
func (v Version) SupportsTimestamp() bool {
	return v >= Version3
}

// SupportsCustomPayload reports whether outgoing custom payloads are allowed.
func (v Version) SupportsCustomPayload() bool {
	return v >= Version4
}

func (v Version) String() string {
	return fmt.Sprintf("v%d", uint8(v))
}
