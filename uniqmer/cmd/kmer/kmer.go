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
	"errors"
	"fmt"
)

// Format is the layout of k-mer keys, both in memory and in binary files.
type Format uint8

const (
	// FormatWords packs a k-mer into ceil(k/8) 16-bit words.
	// If k%8 != 0, the first word holds the leading k%8 bases,
	// and every following word holds 8 bases.
	FormatWords Format = iota

	// FormatFixed64 is the old layout: one 64-bit word for k <= 31,
	// or two words (the first 31 bases and the rest) for k <= 62.
	FormatFixed64
)

func (f Format) String() string {
	switch f {
	case FormatWords:
		return "words"
	case FormatFixed64:
		return "fixed64"
	}
	return fmt.Sprintf("unknown(%d)", uint8(f))
}

// MaxKFixed64 is the largest k supported by FormatFixed64.
const MaxKFixed64 = 62

const basesPerWord = 8
const basesPerFixed = 31

// ErrInvalidK means k < 1, or k > 62 for the old format.
var ErrInvalidK = errors.New("k-mer: invalid k-mer size")

// Coder holds the immutable k-mer settings shared by all components of a run:
// k-mer size and key format. It is safe for concurrent use.
type Coder struct {
	K      int
	Format Format

	nWords     int // the number of uint16 words, FormatWords only
	head       int // the number of bases in the first word
	recordSize int // bytes of a binary record
}

// NewCoder checks k and returns a Coder.
func NewCoder(k int, oldFormat bool) (*Coder, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	c := &Coder{K: k}
	if oldFormat {
		if k > MaxKFixed64 {
			return nil, ErrInvalidK
		}
		c.Format = FormatFixed64
		if k > basesPerFixed {
			c.recordSize = 20
		} else {
			c.recordSize = 12
		}
		return c, nil
	}

	c.Format = FormatWords
	c.nWords = (k + basesPerWord - 1) / basesPerWord
	c.head = k % basesPerWord
	if c.head == 0 {
		c.head = basesPerWord
	}
	c.recordSize = 4 + c.nWords<<1
	return c, nil
}

// RecordSize returns the number of bytes of a binary k-mer record.
func (c *Coder) RecordSize() int { return c.recordSize }

// Words returns the number of 16-bit words of a key, 0 for FormatFixed64.
func (c *Coder) Words() int { return c.nWords }

func (c *Coder) String() string {
	return fmt.Sprintf("k=%d, format=%s", c.K, c.Format)
}
