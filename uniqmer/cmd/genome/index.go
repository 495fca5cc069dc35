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

package genome

import (
	"errors"
	"fmt"

	"github.com/rdleal/intervalst/interval"
)

// ErrUnorderedStart means sequences are not added in order of start offsets.
var ErrUnorderedStart = errors.New("sequence index: start offsets not in increasing order")

// ErrPositionNotFound means no sequence contains the position.
var ErrPositionNotFound = errors.New("sequence index: position not found")

// ErrIllegalCoordinate means the computed coordinate is not positive.
var ErrIllegalCoordinate = errors.New("sequence index: illegal coordinate")

// ErrIndexNotFinished means Owner is called before Finish.
var ErrIndexNotFinished = errors.New("sequence index: not finished")

// SequenceIndex maps global positions to sequences.
// The owner of a position is the sequence with the greatest start offset
// not exceeding the position.
type SequenceIndex struct {
	names  []string
	starts []uint64
	total  uint64

	tree *interval.SearchTree[int, uint64]
}

// NewSequenceIndex creates an empty SequenceIndex.
func NewSequenceIndex() *SequenceIndex {
	return &SequenceIndex{
		names:  make([]string, 0, 1024),
		starts: make([]uint64, 0, 1024),
	}
}

// Add records a sequence starting at a global position.
func (idx *SequenceIndex) Add(name string, start uint64) error {
	if n := len(idx.starts); n > 0 && start < idx.starts[n-1] {
		return fmt.Errorf("%w: %s at %d", ErrUnorderedStart, name, start)
	}
	idx.names = append(idx.names, name)
	idx.starts = append(idx.starts, start)
	return nil
}

// Finish builds the search tree, total is the number of bases of all sequences.
func (idx *SequenceIndex) Finish(total uint64) error {
	if n := len(idx.starts); n > 0 && total < idx.starts[n-1] {
		return fmt.Errorf("%w: total %d", ErrUnorderedStart, total)
	}
	idx.total = total

	cmpFn := func(x, y uint64) int {
		if x < y {
			return -1
		}
		if x > y {
			return 1
		}
		return 0
	}
	idx.tree = interval.NewSearchTree[int, uint64](cmpFn)

	// sequence i covers [s_i, e_i) of the genome, it's stored as [2*s_i, 2*e_i-1],
	// and a position p is queried with [2p, 2p+1], so adjacent sequences never
	// intersect the same query, whether intervals are closed or half-open.
	var end uint64
	for i, start := range idx.starts {
		if i+1 < len(idx.starts) {
			end = idx.starts[i+1]
		} else {
			end = total
		}
		if end == start { // empty sequence
			continue
		}
		if err := idx.tree.Insert(start<<1, end<<1-1, i); err != nil {
			return err
		}
	}
	return nil
}

// Owner returns the name of the sequence containing a global position,
// and the 1-based coordinate in the sequence.
func (idx *SequenceIndex) Owner(pos uint32) (string, uint32, error) {
	if idx.tree == nil {
		return "", 0, ErrIndexNotFinished
	}
	p := uint64(pos)
	i, ok := idx.tree.AnyIntersection(p<<1, p<<1+1)
	if !ok {
		return "", 0, fmt.Errorf("%w: %d", ErrPositionNotFound, pos)
	}
	start := idx.starts[i]
	if p < start || p-start+1 > MaxBases {
		return "", 0, fmt.Errorf("%w: position %d, sequence start %d", ErrIllegalCoordinate, pos, start)
	}
	return idx.names[i], uint32(p - start + 1), nil
}

// Len returns the number of sequences.
func (idx *SequenceIndex) Len() int { return len(idx.names) }

// Name returns the name of the i-th sequence.
func (idx *SequenceIndex) Name(i int) string { return idx.names[i] }

// Start returns the global position of the first base of the i-th sequence.
func (idx *SequenceIndex) Start(i int) uint64 { return idx.starts[i] }

// Total returns the number of bases of all sequences.
func (idx *SequenceIndex) Total() uint64 { return idx.total }
