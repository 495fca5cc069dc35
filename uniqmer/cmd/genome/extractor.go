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

// Extractor produces k-mers of a genome sequence by sequence,
// along with their global positions, i.e., 0-based offsets in the
// concatenation of all sequences.
//
// A k-mer never spans a sequence boundary or an N.
// Other letters are kept in k-mers, and it's the caller's job to handle them.
type Extractor struct {
	k   int
	idx *SequenceIndex

	total uint64 // bases of all sequences added

	seq    []byte
	offset uint64 // global position of seq[0]
	j      int    // next base to read
	run    int    // the length of the N-free run ending before j
}

// NewExtractor creates an Extractor. Sequences are recorded in idx if it's not nil.
func NewExtractor(k int, idx *SequenceIndex) *Extractor {
	return &Extractor{k: k, idx: idx}
}

// NewSequence starts extracting k-mers from a new sequence.
// The slice is used until Next returns false.
func (e *Extractor) NewSequence(name string, seq []byte) error {
	n := uint64(len(seq))
	if e.total+n > MaxBases {
		return ErrPositionOverflow
	}
	if e.idx != nil {
		if err := e.idx.Add(name, e.total); err != nil {
			return err
		}
	}

	e.seq = seq
	e.offset = e.total
	e.total += n
	e.j = 0
	e.run = 0
	return nil
}

// Next returns the next k-mer and its global position.
func (e *Extractor) Next() (kmer []byte, pos uint32, ok bool) {
	var b byte
	for e.j < len(e.seq) {
		b = e.seq[e.j]
		e.j++
		if b == 'N' || b == 'n' {
			e.run = 0
			continue
		}
		e.run++
		if e.run >= e.k {
			start := e.j - e.k
			return e.seq[start:e.j], uint32(e.offset + uint64(start)), true
		}
	}
	return nil, 0, false
}

// Bases returns the number of bases of all sequences added.
func (e *Extractor) Bases() uint64 { return e.total }
