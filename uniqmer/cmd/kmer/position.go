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
	"fmt"
	"math"
)

// DuplicateMarker is the value of the position field of a duplicated k-mer
// in binary files. Global positions never reach it, as the total number of
// bases is limited to math.MaxUint32.
const DuplicateMarker uint32 = math.MaxUint32

// Position is the state of a k-mer: either unique at a global position,
// or duplicated, i.e., the k-mer has been seen at least twice.
type Position struct {
	pos uint32
	dup bool
}

// Unique returns a Position of a k-mer seen once at a global position.
func Unique(pos uint32) Position { return Position{pos: pos} }

// Duplicate is the Position of a k-mer seen more than once.
var Duplicate = Position{pos: DuplicateMarker, dup: true}

// IsDuplicate tells if the k-mer has been seen more than once.
func (p Position) IsDuplicate() bool { return p.dup }

// Pos returns the global position, only meaningful for a unique k-mer.
func (p Position) Pos() uint32 { return p.pos }

// raw returns the value stored in binary files.
func (p Position) raw() uint32 {
	if p.dup {
		return DuplicateMarker
	}
	return p.pos
}

func positionFromRaw(v uint32) Position {
	if v == DuplicateMarker {
		return Duplicate
	}
	return Position{pos: v}
}

func (p Position) String() string {
	if p.dup {
		return "duplicate"
	}
	return fmt.Sprintf("%d", p.pos)
}

// Less orders unique positions before duplicates, then by position.
func (p Position) Less(q Position) bool {
	if p.dup != q.dup {
		return !p.dup
	}
	return p.pos < q.pos
}

// Record is a canonical k-mer and its state.
type Record struct {
	Key Key
	Pos Position
}

// ExceptionRecord is a k-mer having bases other than A/C/G/T,
// it is kept as the raw text, and never reverse complemented.
type ExceptionRecord struct {
	Text string
	Pos  Position
}
