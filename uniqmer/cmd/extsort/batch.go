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

package extsort

import (
	"io"

	"github.com/broadgsa/uniqmer/uniqmer/cmd/kmer"
	"github.com/twotwotwo/sorts"
)

// Batch is a fixed-capacity in-memory list of k-mer records.
// Keys of FormatWords are stored in one preallocated arena,
// so adding records does not allocate.
type Batch struct {
	c     *kmer.Coder
	arena []uint16
	recs  []kmer.Record
	n     int
}

// NewBatch creates a Batch holding at most size records.
func NewBatch(c *kmer.Coder, size int) *Batch {
	b := &Batch{
		c:    c,
		recs: make([]kmer.Record, size),
	}
	if nw := c.Words(); nw > 0 {
		b.arena = make([]uint16, size*nw)
		for i := range b.recs {
			b.recs[i].Key.Words = b.arena[i*nw : (i+1)*nw : (i+1)*nw]
		}
	}
	return b
}

// Add appends a record. The key is copied.
// It panics if the batch is full.
func (b *Batch) Add(key kmer.Key, pos kmer.Position) {
	r := &b.recs[b.n]
	key.CopyTo(&r.Key)
	r.Pos = pos
	b.n++
}

// Len returns the number of records.
func (b *Batch) Len() int { return b.n }

// Cap returns the capacity.
func (b *Batch) Cap() int { return len(b.recs) }

// Full tells if there's no room for more records.
func (b *Batch) Full() bool { return b.n == len(b.recs) }

// Reset empties the batch, the storage is kept.
func (b *Batch) Reset() { b.n = 0 }

// Records returns the records of the batch.
// The slice is only valid until the next Add, Compact or Reset.
func (b *Batch) Records() []kmer.Record { return b.recs[:b.n] }

// Compact sorts the records by key and position, and then keeps
// one record for each key. The kept record is the first one of the key,
// and it is marked as Duplicate if the key appears more than once.
// It returns the number of records left.
func (b *Batch) Compact() int {
	if b.n < 2 {
		return b.n
	}
	recs := b.recs[:b.n]
	sorts.Quicksort(records(recs))

	cur := 0
	for i := 1; i < len(recs); i++ {
		if kmer.Equal(recs[i].Key, recs[cur].Key) {
			recs[cur].Pos = kmer.Duplicate
			continue
		}
		cur++
		if cur != i {
			// swap rather than copy, so every record still owns its own arena slot.
			recs[cur], recs[i] = recs[i], recs[cur]
		}
	}
	b.n = cur + 1
	return b.n
}

type records []kmer.Record

func (s records) Len() int { return len(s) }
func (s records) Less(i, j int) bool {
	v := kmer.Compare(s[i].Key, s[j].Key)
	if v == 0 {
		return s[i].Pos.Less(s[j].Pos)
	}
	return v < 0
}
func (s records) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

// BatchSource iterates over the records of a compacted batch.
type BatchSource struct {
	recs []kmer.Record
	i    int
}

// NewBatchSource creates a Source from a compacted batch.
func NewBatchSource(b *Batch) *BatchSource {
	return &BatchSource{recs: b.Records()}
}

// Read returns the next record, or io.EOF.
func (s *BatchSource) Read() (*kmer.Record, error) {
	if s.i >= len(s.recs) {
		return nil, io.EOF
	}
	s.i++
	return &s.recs[s.i-1], nil
}
