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
	"strings"

	"github.com/broadgsa/uniqmer/uniqmer/cmd/kmer"
	"github.com/twotwotwo/sorts"
)

// Exceptions holds k-mers with bases other than A/C/G/T, as raw texts.
// They are rare, so all of them stay in memory.
// The texts are not reverse complemented, a k-mer and its reverse complement
// are counted as two different k-mers.
type Exceptions struct {
	recs []kmer.ExceptionRecord
	next int // compact when the list reaches this size
	min  int
}

// NewExceptions creates an Exceptions, the list is compacted
// everytime its size doubles after reaching compactAt.
func NewExceptions(compactAt int) *Exceptions {
	if compactAt < 1 {
		compactAt = 1 << 16
	}
	return &Exceptions{
		recs: make([]kmer.ExceptionRecord, 0, 64),
		next: compactAt,
		min:  compactAt,
	}
}

// Add adds a k-mer seen at a global position.
func (e *Exceptions) Add(text []byte, pos uint32) {
	e.recs = append(e.recs, kmer.ExceptionRecord{Text: string(text), Pos: kmer.Unique(pos)})
	if len(e.recs) >= e.next {
		n := e.Compact()
		e.next = n << 1
		if e.next < e.min {
			e.next = e.min
		}
	}
}

// Len returns the number of records.
func (e *Exceptions) Len() int { return len(e.recs) }

// Compact sorts the records by text and position, and keeps one record
// for each text, marked as Duplicate if the text appears more than once.
// It returns the number of records left.
func (e *Exceptions) Compact() int {
	recs := e.recs
	if len(recs) < 2 {
		return len(recs)
	}
	sorts.Quicksort(exceptionRecords(recs))

	cur := 0
	for i := 1; i < len(recs); i++ {
		if recs[i].Text == recs[cur].Text {
			recs[cur].Pos = kmer.Duplicate
			continue
		}
		cur++
		recs[cur] = recs[i]
	}
	for i := cur + 1; i < len(recs); i++ {
		recs[i] = kmer.ExceptionRecord{}
	}
	e.recs = recs[:cur+1]
	return len(e.recs)
}

// Records returns the records, sorted by text after Compact.
func (e *Exceptions) Records() []kmer.ExceptionRecord { return e.recs }

// Unique returns the number of records not marked as Duplicate.
// It should be called after Compact.
func (e *Exceptions) Unique() int {
	var n int
	for i := range e.recs {
		if !e.recs[i].Pos.IsDuplicate() {
			n++
		}
	}
	return n
}

type exceptionRecords []kmer.ExceptionRecord

func (s exceptionRecords) Len() int { return len(s) }
func (s exceptionRecords) Less(i, j int) bool {
	v := strings.Compare(s[i].Text, s[j].Text)
	if v == 0 {
		return s[i].Pos.Less(s[j].Pos)
	}
	return v < 0
}
func (s exceptionRecords) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
