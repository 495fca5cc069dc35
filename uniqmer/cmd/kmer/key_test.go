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
	"math/rand"
	"testing"
)

func randomKmer(r *rand.Rand, k int) []byte {
	s := make([]byte, k)
	for i := range s {
		s[i] = "ACGT"[r.Intn(4)]
	}
	return s
}

func TestNewCoder(t *testing.T) {
	tests := []struct {
		k          int
		old        bool
		ok         bool
		words      int
		recordSize int
	}{
		{0, false, false, 0, 0},
		{1, false, true, 1, 6},
		{8, false, true, 1, 6},
		{9, false, true, 2, 8},
		{24, false, true, 3, 10},
		{100, false, true, 13, 30},
		{31, true, true, 0, 12},
		{32, true, true, 0, 20},
		{62, true, true, 0, 20},
		{63, true, false, 0, 0},
	}
	for _, test := range tests {
		c, err := NewCoder(test.k, test.old)
		if !test.ok {
			if err != ErrInvalidK {
				t.Errorf("k=%d, old=%v: expected error %s, returned %v", test.k, test.old, ErrInvalidK, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("k=%d, old=%v: %s", test.k, test.old, err)
			continue
		}
		if c.Words() != test.words || c.RecordSize() != test.recordSize {
			t.Errorf("k=%d, old=%v: expected %d words and %d bytes, returned %d and %d",
				test.k, test.old, test.words, test.recordSize, c.Words(), c.RecordSize())
		}
	}
}

func TestCanonicalRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, old := range []bool{false, true} {
		for _, k := range []int{1, 2, 4, 7, 8, 9, 15, 16, 17, 21, 31, 32, 33, 40, 62} {
			c, err := NewCoder(k, old)
			if err != nil {
				t.Error(err)
				return
			}
			enc := c.NewEncoder()
			for i := 0; i < 200; i++ {
				s := randomKmer(r, k)
				key, reversed, ok := enc.Encode(s)
				if !ok {
					t.Errorf("k=%d, old=%v: failed to encode %s", k, old, s)
					return
				}

				canonical := Canonical(s)
				if d := c.Decode(key); !bytes.Equal(d, canonical) {
					t.Errorf("k=%d, old=%v: %s, expected %s, returned %s", k, old, s, canonical, d)
					return
				}
				if d := c.DecodeStrand(key, reversed); !bytes.Equal(d, s) {
					t.Errorf("k=%d, old=%v: strand decoding of %s returned %s", k, old, s, d)
					return
				}
			}
		}
	}
}

func TestKeyOrder(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for _, old := range []bool{false, true} {
		for _, k := range []int{3, 8, 13, 31, 45} {
			c, _ := NewCoder(k, old)
			enc := c.NewEncoder()
			a, b := c.NewKey(), c.NewKey()
			for i := 0; i < 500; i++ {
				s1, s2 := randomKmer(r, k), randomKmer(r, k)
				if i%50 == 0 {
					s2 = s1
				}
				key, _, _ := enc.Encode(s1)
				key.CopyTo(&a)
				key, _, _ = enc.Encode(s2)
				key.CopyTo(&b)

				expected := bytes.Compare(Canonical(s1), Canonical(s2))
				if v := Compare(a, b); v != expected {
					t.Errorf("k=%d, old=%v: compare %s and %s, expected %d, returned %d",
						k, old, s1, s2, expected, v)
					return
				}
				if Equal(a, b) != (expected == 0) {
					t.Errorf("k=%d, old=%v: equality of %s and %s", k, old, s1, s2)
					return
				}
			}
		}
	}
}

func TestCanonicalTable(t *testing.T) {
	genome := []byte("AACCGGTT")
	expected := []struct {
		canonical string
		reversed  bool
	}{
		{"AACC", false}, // AACC vs GGTT
		{"ACCG", false}, // ACCG vs CGGT
		{"CCGG", false}, // palindrome
		{"ACCG", true},  // CGGT vs ACCG
		{"AACC", true},  // GGTT vs AACC
	}

	c, _ := NewCoder(4, false)
	enc := c.NewEncoder()
	for i, e := range expected {
		key, reversed, ok := enc.Encode(genome[i : i+4])
		if !ok {
			t.Errorf("failed to encode %s", genome[i:i+4])
			return
		}
		if s := string(c.Decode(key)); s != e.canonical || reversed != e.reversed {
			t.Errorf("position %d: expected %s (%v), returned %s (%v)", i, e.canonical, e.reversed, s, reversed)
		}
	}
}

func TestEncodeIllegalBases(t *testing.T) {
	c, _ := NewCoder(4, false)
	enc := c.NewEncoder()
	for _, s := range []string{"ACNT", "ACRT", "AC-T", "ACG", "ACGTA"} {
		if _, _, ok := enc.Encode([]byte(s)); ok {
			t.Errorf("%s should not be encoded", s)
		}
	}
	if _, _, ok := enc.Encode([]byte("acgt")); !ok {
		t.Errorf("lower case bases should be encoded")
	}
}

func TestPosition(t *testing.T) {
	p := Unique(0)
	if p.IsDuplicate() || p.Pos() != 0 {
		t.Errorf("unexpected state of Unique(0): %s", p)
	}
	if !Duplicate.IsDuplicate() {
		t.Errorf("Duplicate is not duplicated")
	}
	if positionFromRaw(Unique(12).raw()) != Unique(12) {
		t.Errorf("unexpected raw value of Unique(12)")
	}
	if positionFromRaw(DuplicateMarker) != Duplicate {
		t.Errorf("unexpected raw value of Duplicate")
	}
	if !Unique(5).Less(Unique(6)) || !Unique(6).Less(Duplicate) || Duplicate.Less(Unique(0)) {
		t.Errorf("unexpected order of positions")
	}
}
