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
	"container/heap"
	"io"

	"github.com/broadgsa/uniqmer/uniqmer/cmd/kmer"
)

// Source is a stream of sorted and compacted k-mer records.
// A returned record is only valid until the next call of Read.
// io.EOF is returned at the end.
type Source interface {
	Read() (*kmer.Record, error)
}

type item struct {
	rec *kmer.Record
	src int
}

type itemHeap []item

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	v := kmer.Compare(h[i].rec.Key, h[j].rec.Key)
	if v == 0 {
		return h[i].src < h[j].src
	}
	return v < 0
}
func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x interface{}) { *h = append(*h, x.(item)) }

func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// Merge merges sorted and compacted sources in key order.
//
// For each key, m is the number of sources having it.
// In the final mode, a record is emitted only if m == 1 and it is not Duplicate,
// i.e., the k-mer appears exactly once in all the data.
// Otherwise, every key is emitted once, as Duplicate if m > 1,
// so the output is still a compacted source for a later merge.
//
// The record passed to emit is only valid during the call.
// It returns the number of emitted records.
func Merge(sources []Source, final bool, emit func(*kmer.Record) error) (int64, error) {
	h := make(itemHeap, 0, len(sources))
	var rec *kmer.Record
	var err error
	for i, src := range sources {
		rec, err = src.Read()
		if err != nil {
			if err == io.EOF {
				continue
			}
			return 0, err
		}
		h = append(h, item{rec: rec, src: i})
	}
	heap.Init(&h)

	var n int64
	var out kmer.Record
	matched := make([]int, 0, len(sources))
	var top item
	for len(h) > 0 {
		top = h[0]
		matched = matched[:0]
		for len(h) > 0 && kmer.Equal(h[0].rec.Key, top.rec.Key) {
			matched = append(matched, heap.Pop(&h).(item).src)
		}

		// emit before advancing, the record belongs to the source.
		if final {
			if len(matched) == 1 && !top.rec.Pos.IsDuplicate() {
				if err = emit(top.rec); err != nil {
					return n, err
				}
				n++
			}
		} else {
			out.Key = top.rec.Key
			if len(matched) > 1 {
				out.Pos = kmer.Duplicate
			} else {
				out.Pos = top.rec.Pos
			}
			if err = emit(&out); err != nil {
				return n, err
			}
			n++
		}

		for _, i := range matched {
			rec, err = sources[i].Read()
			if err != nil {
				if err == io.EOF {
					continue
				}
				return n, err
			}
			heap.Push(&h, item{rec: rec, src: i})
		}
	}
	return n, nil
}
