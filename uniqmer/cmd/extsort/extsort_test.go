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
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/broadgsa/uniqmer/uniqmer/cmd/kmer"
)

func newBatch(t *testing.T, c *kmer.Coder, kmers []string, positions []kmer.Position) *Batch {
	enc := c.NewEncoder()
	b := NewBatch(c, len(kmers))
	for i, s := range kmers {
		key, _, ok := enc.Encode([]byte(s))
		if !ok {
			t.Fatalf("failed to encode %s", s)
		}
		b.Add(key, positions[i])
	}
	return b
}

type result struct {
	kmer string
	pos  kmer.Position
}

func collect(c *kmer.Coder, list *[]result) func(*kmer.Record) error {
	return func(r *kmer.Record) error {
		*list = append(*list, result{string(c.Decode(r.Key)), r.Pos})
		return nil
	}
}

func TestBatchCompact(t *testing.T) {
	c, _ := kmer.NewCoder(4, false)
	b := newBatch(t, c,
		[]string{"GGTT", "ACCG", "AACC", "CCGG", "TTTT", "AACC"},
		[]kmer.Position{kmer.Unique(4), kmer.Unique(1), kmer.Unique(0), kmer.Unique(2), kmer.Unique(9), kmer.Unique(7)},
	)
	if !b.Full() {
		t.Errorf("batch should be full")
	}

	n := b.Compact()
	expected := []result{
		{"AAAA", kmer.Unique(9)}, // TTTT
		{"AACC", kmer.Duplicate}, // AACC, GGTT, AACC
		{"ACCG", kmer.Unique(1)},
		{"CCGG", kmer.Unique(2)},
	}
	if n != len(expected) {
		t.Errorf("expected %d records, returned %d", len(expected), n)
		return
	}
	for i, r := range b.Records() {
		if s := string(c.Decode(r.Key)); s != expected[i].kmer || r.Pos != expected[i].pos {
			t.Errorf("#%d: expected %s %s, returned %s %s", i, expected[i].kmer, expected[i].pos, s, r.Pos)
		}
	}

	// keys should still own different slots after compaction
	enc := c.NewEncoder()
	key, _, _ := enc.Encode([]byte("GGGG"))
	b.Add(key, kmer.Unique(20))
	if s := string(c.Decode(b.Records()[0].Key)); s != "AAAA" {
		t.Errorf("arena slot shared after compaction: %s", s)
	}
}

func TestMerge(t *testing.T) {
	c, _ := kmer.NewCoder(5, false)
	u := kmer.Unique
	b1 := newBatch(t, c, []string{"AAAAC", "AAAAG", "CCCCA"}, []kmer.Position{u(1), u(2), u(3)})
	b2 := newBatch(t, c, []string{"AAAAG", "ACACA"}, []kmer.Position{u(10), u(11)})
	b3 := newBatch(t, c, []string{"ACACG", "AAAAT"}, []kmer.Position{kmer.Duplicate, u(21)})
	for _, b := range []*Batch{b1, b2, b3} {
		b.Compact()
	}

	var list []result
	n, err := Merge([]Source{NewBatchSource(b1), NewBatchSource(b2), NewBatchSource(b3)}, true, collect(c, &list))
	if err != nil {
		t.Error(err)
		return
	}
	expected := []result{
		{"AAAAC", u(1)},  // unique in one source
		{"AAAAT", u(21)}, // AAAAG: unique in two sources
		{"ACACA", u(11)}, // ACACG: duplicated in its own source
		{"CCCCA", u(3)},
	}
	if int(n) != len(expected) || len(list) != len(expected) {
		t.Errorf("expected %d records, returned %d", len(expected), len(list))
		return
	}
	for i, r := range list {
		if r != expected[i] {
			t.Errorf("#%d: expected %v, returned %v", i, expected[i], r)
		}
	}

	// intermediate merge
	list = list[:0]
	_, err = Merge([]Source{NewBatchSource(b1), NewBatchSource(b2), NewBatchSource(b3)}, false, collect(c, &list))
	if err != nil {
		t.Error(err)
		return
	}
	expected = []result{
		{"AAAAC", u(1)},
		{"AAAAG", kmer.Duplicate},
		{"AAAAT", u(21)},
		{"ACACA", u(11)},
		{"ACACG", kmer.Duplicate},
		{"CCCCA", u(3)},
	}
	if len(list) != len(expected) {
		t.Errorf("expected %d records, returned %d", len(expected), len(list))
		return
	}
	for i, r := range list {
		if r != expected[i] {
			t.Errorf("#%d: expected %v, returned %v", i, expected[i], r)
		}
	}
}

// uniqueKmers computes the unique canonical k-mers with a map.
func uniqueKmers(genome []byte, k int) map[string]uint32 {
	counts := make(map[string]int)
	first := make(map[string]uint32)
	for i := 0; i+k <= len(genome); i++ {
		s := string(kmer.Canonical(genome[i : i+k]))
		if counts[s] == 0 {
			first[s] = uint32(i)
		}
		counts[s]++
	}
	for s, n := range counts {
		if n > 1 {
			delete(first, s)
		}
	}
	return first
}

func TestSorterSpillInvariance(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	genome := make([]byte, 600)
	for i := range genome {
		genome[i] = "ACGT"[r.Intn(4)]
	}
	copy(genome[300:], genome[40:120]) // a repeat

	for _, old := range []bool{false, true} {
		for _, k := range []int{6, 11} {
			c, _ := kmer.NewCoder(k, old)
			expected := uniqueKmers(genome, k)
			n := len(genome) - k + 1

			for _, batchSize := range []int{1, 2, 17, 100, n, n + 10} {
				for _, compress := range []bool{false, true} {
					dir := t.TempDir()
					s, err := NewSorter(c, &Options{
						BatchSize:    batchSize,
						SpillFactor:  DefaultSpillFactor,
						TmpDir:       dir,
						Compress:     compress,
						MaxOpenFiles: 5,
						Threads:      3,
					})
					if err != nil {
						t.Error(err)
						return
					}

					enc := c.NewEncoder()
					for i := 0; i < n; i++ {
						key, _, _ := enc.Encode(genome[i : i+k])
						if err = s.Add(key, uint32(i)); err != nil {
							t.Error(err)
							return
						}
					}

					tag := fmt.Sprintf("k=%d, old=%v, batch=%d, compress=%v", k, old, batchSize, compress)
					var list []result
					m, err := s.Finish(collect(c, &list))
					if err != nil {
						t.Errorf("%s: %s", tag, err)
						return
					}
					if int(m) != len(expected) {
						t.Errorf("%s: expected %d unique k-mers, returned %d", tag, len(expected), m)
						return
					}
					for i, r := range list {
						if i > 0 && list[i-1].kmer >= r.kmer {
							t.Errorf("%s: unsorted output: %s, %s", tag, list[i-1].kmer, r.kmer)
							return
						}
						if pos, ok := expected[r.kmer]; !ok || r.pos != kmer.Unique(pos) {
							t.Errorf("%s: unexpected unique k-mer %s at %s", tag, r.kmer, r.pos)
							return
						}
					}

					files, _ := filepath.Glob(filepath.Join(dir, "spill_*"))
					if len(files) > 0 {
						t.Errorf("%s: spill files left: %v", tag, files)
					}
					if batchSize == 1 && s.Spills() < 2 {
						t.Errorf("%s: expected spills", tag)
					}
					if batchSize > n && s.Spills() != 0 {
						t.Errorf("%s: unexpected spills: %d", tag, s.Spills())
					}
				}
			}
		}
	}
}

func TestSorterKeepSpill(t *testing.T) {
	c, _ := kmer.NewCoder(3, false)
	dir := t.TempDir()
	s, err := NewSorter(c, &Options{BatchSize: 2, SpillFactor: 0.5, TmpDir: dir, KeepSpill: true, MaxOpenFiles: 16})
	if err != nil {
		t.Error(err)
		return
	}
	enc := c.NewEncoder()
	for i, m := range []string{"ACG", "CCA", "GTA", "TTT"} {
		key, _, _ := enc.Encode([]byte(m))
		s.Add(key, uint32(i))
	}
	if _, err = s.Finish(func(*kmer.Record) error { return nil }); err != nil {
		t.Error(err)
		return
	}
	for i := 1; i <= s.Spills(); i++ {
		if _, err = os.Stat(SpillFile(dir, 3, i, false)); err != nil {
			t.Errorf("spill file #%d should be kept: %s", i, err)
		}
	}
}

func TestNewSorterOptions(t *testing.T) {
	c, _ := kmer.NewCoder(3, false)
	for _, opt := range []*Options{
		{BatchSize: 0, SpillFactor: 0.9, MaxOpenFiles: 10},
		{BatchSize: 10, SpillFactor: 0, MaxOpenFiles: 10},
		{BatchSize: 10, SpillFactor: 1.5, MaxOpenFiles: 10},
		{BatchSize: 10, SpillFactor: 0.9, MaxOpenFiles: 1},
	} {
		if _, err := NewSorter(c, opt); err == nil {
			t.Errorf("invalid options should be refused: %+v", opt)
		}
	}
}

func TestExceptions(t *testing.T) {
	e := NewExceptions(3)
	for i, s := range []string{"ACNGT", "ACRGT", "ACNGT", "TTKAA", "ACNGT", "AAAAY"} {
		e.Add([]byte(s), uint32(i))
	}
	e.Compact()

	expected := []kmer.ExceptionRecord{
		{Text: "AAAAY", Pos: kmer.Unique(5)},
		{Text: "ACNGT", Pos: kmer.Duplicate},
		{Text: "ACRGT", Pos: kmer.Unique(1)},
		{Text: "TTKAA", Pos: kmer.Unique(3)},
	}
	recs := e.Records()
	if len(recs) != len(expected) {
		t.Errorf("expected %d records, returned %d", len(expected), len(recs))
		return
	}
	for i, r := range recs {
		if r != expected[i] {
			t.Errorf("#%d: expected %v, returned %v", i, expected[i], r)
		}
	}
	if e.Unique() != 3 {
		t.Errorf("expected 3 unique records, returned %d", e.Unique())
	}
}
