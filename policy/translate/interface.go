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

package translate

// Translator rewrites a node address before the driver connects to it,
// typically to cross NAT or multi-region boundaries.
type Translator interface {
	Translate(address string, port int) (string, int)
}

// NewIdentity returns the default pass-through translator.
func NewIdentity() Translator {
	return &identity{}
}

// NewFixedMap returns a table-driven translator: addresses present in
// the table are rewritten, others pass through unchanged.
func NewFixedMap(table map[string]string) Translator {
	t := make(map[string]string, len(table))
	for k, v := range table {
		t[k] = v
	}

	return &fixed{table: t}
}

type identity struct{}

func (o *identity) Translate(address string, port int) (string, int) {
	return address, port
}

type fixed struct {
	table map[string]string
}

func (o *fixed) Translate(address string, port int) (string, int) {
	if v, ok := o.table[address]; ok {
		return v, port
	}
	return address, port
}
