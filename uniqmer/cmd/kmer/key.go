// Copyright © 2023-2024 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package kmer

import (
	"bytes"

	"github.com/shenwei356/kmers"
)

// Key is the canonical encoding of a k-mer.
// Only one of the two fields is used, decided by the Format of the Coder:
// Words for FormatWords, Fixed for FormatFixed64 (Fixed[1] only for k > 31).
// Comparing two keys of the same Coder gives the lexicographic order
// of their k-mer texts.
type Key struct {
	Fixed [2]uint64
	Words []uint16
}

// Compare returns -1, 0 or 1 if a < b, a == b, or a > b.
func Compare(a, b Key) int {
	if a.Words != nil {
		for i, w := range a.Words {
			if w < b.Words[i] {
				return -1
			}
			if w > b.Words[i] {
				return 1
			}
		}
		return 0
	}

	if a.Fixed[0] != b.Fixed[0] {
		if a.Fixed[0] < b.Fixed[0] {
			return -1
		}
		return 1
	}
	if a.Fixed[1] != b.Fixed[1] {
		if a.Fixed[1] < b.Fixed[1] {
			return -1
		}
		return 1
	}
	return 0
}

// Equal tells if the two keys are the same.
func Equal(a, b Key) bool {
	if a.Words != nil {
		for i, w := range a.Words {
			if w != b.Words[i] {
				return false
			}
		}
		return true
	}
	return a.Fixed == b.Fixed
}

// CopyTo copies the key into dst, whose Words, if any, must have been allocated.
func (k Key) CopyTo(dst *Key) {
	if k.Words != nil {
		copy(dst.Words, k.Words)
		return
	}
	dst.Fixed = k.Fixed
}

// NewKey returns a zero key with its storage allocated.
func (c *Coder) NewKey() Key {
	if c.Format == FormatWords {
		return Key{Words: make([]uint16, c.nWords)}
	}
	return Key{}
}

// base2bit marks A/C/G/T (both cases) with their 2-bit codes, others with 4.
var base2bit [256]uint8

// complement of bases, only for A/C/G/T.
var complement [256]byte

func init() {
	for i := range base2bit {
		base2bit[i] = 4
	}
	base2bit['A'], base2bit['a'] = 0, 0
	base2bit['C'], base2bit['c'] = 1, 1
	base2bit['G'], base2bit['g'] = 2, 2
	base2bit['T'], base2bit['t'] = 3, 3

	complement['A'], complement['a'] = 'T', 'T'
	complement['C'], complement['c'] = 'G', 'G'
	complement['G'], complement['g'] = 'C', 'C'
	complement['T'], complement['t'] = 'A', 'A'
}

// IsACGT tells if all bases of s are A, C, G or T (case-insensitive).
func IsACGT(s []byte) bool {
	for _, b := range s {
		if base2bit[b] > 3 {
			return false
		}
	}
	return true
}

// RevComp computes the reverse complement of an ACGT sequence into dst,
// which is returned after being grown if necessary.
func RevComp(dst, s []byte) []byte {
	n := len(s)
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	for i, b := range s {
		dst[n-1-i] = complement[b]
	}
	return dst
}

// Encoder computes canonical keys of k-mers.
// An Encoder reuses its buffers, so it is not safe for concurrent use,
// and a returned Key is only valid until the next call of Encode.
type Encoder struct {
	c   *Coder
	rc  []byte
	key Key
}

// NewEncoder creates an Encoder.
func (c *Coder) NewEncoder() *Encoder {
	return &Encoder{
		c:   c,
		rc:  make([]byte, c.K),
		key: c.NewKey(),
	}
}

// Encode packs the smaller one of the k-mer and its reverse complement.
// reversed tells if the key comes from the reverse complement strand.
// ok is false if the k-mer has a base other than A/C/G/T, or it is not k bases long;
// such k-mers should be handled as raw texts.
func (e *Encoder) Encode(kmer []byte) (key Key, reversed bool, ok bool) {
	if len(kmer) != e.c.K || !IsACGT(kmer) {
		return key, false, false
	}

	e.rc = RevComp(e.rc, kmer)
	s := kmer
	// the lexicographic order of texts equals the order of packed codes.
	if bytesCompareFold(e.rc, kmer) < 0 {
		s = e.rc
		reversed = true
	}

	e.c.pack(s, &e.key)
	return e.key, reversed, true
}

// EncodeForward packs the k-mer as it is, without canonicalization.
func (e *Encoder) EncodeForward(kmer []byte) (key Key, ok bool) {
	if len(kmer) != e.c.K || !IsACGT(kmer) {
		return key, false
	}
	e.c.pack(kmer, &e.key)
	return e.key, true
}

// pack packs an ACGT k-mer into key.
func (c *Coder) pack(s []byte, key *Key) {
	if c.Format == FormatFixed64 {
		if c.K > basesPerFixed {
			key.Fixed[0], _ = kmers.Encode(s[:basesPerFixed])
			key.Fixed[1], _ = kmers.Encode(s[basesPerFixed:])
		} else {
			key.Fixed[0], _ = kmers.Encode(s)
			key.Fixed[1] = 0
		}
		return
	}

	var code uint64
	code, _ = kmers.Encode(s[:c.head])
	key.Words[0] = uint16(code)
	j := c.head
	for i := 1; i < c.nWords; i++ {
		code, _ = kmers.Encode(s[j : j+basesPerWord])
		key.Words[i] = uint16(code)
		j += basesPerWord
	}
}

// Decode returns the k-mer text of a key.
func (c *Coder) Decode(key Key) []byte {
	buf := make([]byte, 0, c.K)
	if c.Format == FormatFixed64 {
		if c.K > basesPerFixed {
			buf = append(buf, kmers.MustDecode(key.Fixed[0], basesPerFixed)...)
			return append(buf, kmers.MustDecode(key.Fixed[1], c.K-basesPerFixed)...)
		}
		return append(buf, kmers.MustDecode(key.Fixed[0], c.K)...)
	}

	n := c.head
	for _, w := range key.Words {
		buf = append(buf, kmers.MustDecode(uint64(w), n)...)
		n = basesPerWord
	}
	return buf
}

// DecodeStrand returns the k-mer text on the strand it was extracted from.
func (c *Coder) DecodeStrand(key Key, reversed bool) []byte {
	s := c.Decode(key)
	if !reversed {
		return s
	}
	return RevComp(nil, s)
}

// Canonical returns the lexicographically smaller one of an ACGT k-mer
// and its reverse complement, in upper case.
func Canonical(s []byte) []byte {
	fw := bytes.ToUpper(s)
	rc := RevComp(nil, fw)
	if bytes.Compare(rc, fw) < 0 {
		return rc
	}
	return fw
}

// bytesCompareFold compares two ACGT sequences ignoring the case.
// a is always upper case.
func bytesCompareFold(a, b []byte) int {
	var x, y uint8
	for i := range a {
		x, y = base2bit[a[i]], base2bit[b[i]]
		if x < y {
			return -1
		}
		if x > y {
			return 1
		}
	}
	return 0
}
