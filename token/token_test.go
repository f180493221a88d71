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

package token_test

import (
	"fmt"

	cqlhst "github.com/nabbar/cqldriver/hostinfo"
	. "github.com/nabbar/cqldriver/token"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Murmur3 partitioner", func() {
	It("should be deterministic", func() {
		k := []byte("partition-key")
		Expect(Murmur3Token(k)).To(Equal(Murmur3Token(k)))
	})

	It("should spread close keys across the ring", func() {
		seen := make(map[Token]bool)

		for i := 0; i < 64; i++ {
			seen[Murmur3Token([]byte(fmt.Sprintf("key-%d", i)))] = true
		}

		Expect(seen).To(HaveLen(64))
	})

	It("should hash the empty key and long keys without panicking", func() {
		_ = Murmur3Token(nil)
		_ = Murmur3Token(make([]byte, 1024))
	})

	It("should frame composite routing keys", func() {
		one := ComposeRoutingKey([][]byte{{0xaa, 0xbb}})
		Expect(one).To(Equal([]byte{0xaa, 0xbb}))

		two := ComposeRoutingKey([][]byte{{0xaa}, {0xbb, 0xcc}})
		Expect(two).To(Equal([]byte{
			0x00, 0x01, 0xaa, 0x00,
			0x00, 0x02, 0xbb, 0xcc, 0x00,
		}))
	})

	It("should parse catalogue token strings", func() {
		t, ok := ParseToken("-9223372036854775808")
		Expect(ok).To(BeTrue())
		Expect(t).To(Equal(Token(-9223372036854775808)))

		_, ok = ParseToken("not-a-token")
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Static ring oracle", func() {
	hosts := func(n int) []cqlhst.Host {
		reg := cqlhst.NewRegistry()

		out := make([]cqlhst.Host, 0, n)
		for i := 0; i < n; i++ {
			h := reg.Add(cqlhst.Peer{
				Address: fmt.Sprintf("10.3.0.%d", i+1),
				Port:    9042,
				Tokens:  []string{fmt.Sprintf("%d", i*100)},
			})
			out = append(out, h)
		}

		return out
	}

	It("should assign a token to the first position at or after it", func() {
		hs := hosts(3) // positions 0, 100, 200

		oracle := RingFromHosts(hs, 1)

		Expect(oracle.Replicas("ks", 0)[0].Endpoint()).To(Equal(hs[0].Endpoint()))
		Expect(oracle.Replicas("ks", 1)[0].Endpoint()).To(Equal(hs[1].Endpoint()))
		Expect(oracle.Replicas("ks", 150)[0].Endpoint()).To(Equal(hs[2].Endpoint()))

		// past the last position the ring wraps
		Expect(oracle.Replicas("ks", 500)[0].Endpoint()).To(Equal(hs[0].Endpoint()))
	})

	It("should emit rf distinct replicas primary first", func() {
		hs := hosts(3)

		oracle := RingFromHosts(hs, 2)

		reps := oracle.Replicas("ks", 50)
		Expect(reps).To(HaveLen(2))
		Expect(reps[0].Endpoint()).To(Equal(hs[1].Endpoint()))
		Expect(reps[1].Endpoint()).To(Equal(hs[2].Endpoint()))
	})

	It("should answer nothing on an empty ring", func() {
		oracle := NewStaticRing(nil)
		Expect(oracle.Replicas("ks", 1)).To(BeEmpty())
	})
})
