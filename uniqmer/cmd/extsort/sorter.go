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
	"errors"
	"fmt"
	"sync"

	"github.com/broadgsa/uniqmer/uniqmer/cmd/kmer"
)

// Options contains the options of a Sorter.
type Options struct {
	BatchSize    int     // the maximum number of records in memory
	SpillFactor  float64 // spill a compacted batch having more than SpillFactor*BatchSize records
	TmpDir       string  // directory of spill files
	Compress     bool    // compress spill files
	KeepSpill    bool    // do not remove spill files
	MaxOpenFiles int     // the maximum number of spill files merged at once
	Threads      int     // the number of concurrent merges in intermediate rounds

	// Logf is called for logging if it's not nil.
	Logf func(format string, args ...interface{})
}

// DefaultSpillFactor is the default value of Options.SpillFactor.
const DefaultSpillFactor = 0.9

// ErrInvalidOptions means some options are out of range.
var ErrInvalidOptions = errors.New("external sort: invalid options")

// Sorter finds k-mers appearing exactly once in a stream of k-mers,
// with bounded memory. K-mers are collected in a batch,
// which is compacted when it's full and written to a spill file
// when it's still large after compaction. All spill files are
// merged at last.
type Sorter struct {
	c       *kmer.Coder
	opt     *Options
	batch   *Batch
	spiller *Spiller

	limit       int // spill threshold
	compactions int
	added       int64
}

// NewSorter creates a Sorter.
func NewSorter(c *kmer.Coder, opt *Options) (*Sorter, error) {
	if opt.BatchSize < 1 {
		return nil, fmt.Errorf("%w: batch size should be positive: %d", ErrInvalidOptions, opt.BatchSize)
	}
	if opt.SpillFactor <= 0 || opt.SpillFactor > 1 {
		return nil, fmt.Errorf("%w: spill factor should be in (0, 1]: %f", ErrInvalidOptions, opt.SpillFactor)
	}
	if opt.MaxOpenFiles < 3 {
		return nil, fmt.Errorf("%w: max open files should be >= 3: %d", ErrInvalidOptions, opt.MaxOpenFiles)
	}
	if opt.Threads < 1 {
		opt.Threads = 1
	}

	return &Sorter{
		c:       c,
		opt:     opt,
		batch:   NewBatch(c, opt.BatchSize),
		spiller: NewSpiller(c, opt.TmpDir, opt.Compress),
		limit:   int(opt.SpillFactor * float64(opt.BatchSize)),
	}, nil
}

func (s *Sorter) logf(format string, args ...interface{}) {
	if s.opt.Logf != nil {
		s.opt.Logf(format, args...)
	}
}

// Add adds a k-mer seen at a global position.
func (s *Sorter) Add(key kmer.Key, pos uint32) error {
	s.batch.Add(key, kmer.Unique(pos))
	s.added++
	if !s.batch.Full() {
		return nil
	}

	before := s.batch.Len()
	n := s.batch.Compact()
	s.compactions++
	s.logf("  compacted batch #%d: %d -> %d records", s.compactions, before, n)
	if n > s.limit || s.batch.Full() {
		return s.spill()
	}
	return nil
}

func (s *Sorter) spill() error {
	file, err := s.spiller.Spill(s.batch.Records())
	if err != nil {
		return err
	}
	s.logf("  %d records spilled to %s", s.batch.Len(), file)
	s.batch.Reset()
	return nil
}

// Added returns the number of k-mers added.
func (s *Sorter) Added() int64 { return s.added }

// Spills returns the number of spill files created.
func (s *Sorter) Spills() int { return s.spiller.Count() }

// Finish compacts the last batch, merges all the data,
// and calls emit for each k-mer appearing exactly once, in key order.
// The record passed to emit is only valid during the call.
// Spill files are removed unless Options.KeepSpill is true.
func (s *Sorter) Finish(emit func(*kmer.Record) error) (int64, error) {
	n := s.batch.Compact()

	if s.spiller.Count() == 0 {
		s.logf("  no spill files, merging %d records in memory", n)
		return Merge([]Source{NewBatchSource(s.batch)}, true, emit)
	}

	if n > 0 {
		if err := s.spill(); err != nil {
			return 0, err
		}
	}

	total, err := s.mergeFiles(s.spiller.Files(), 1, emit)
	if err != nil {
		return total, err
	}

	if !s.opt.KeepSpill {
		if err = s.spiller.Remove(s.spiller.Files()); err != nil {
			return total, err
		}
	}
	return total, nil
}

// mergeFiles merges spill files. When there are more files than
// Options.MaxOpenFiles, groups of them are merged to new spill files
// concurrently, round by round.
func (s *Sorter) mergeFiles(files []string, round int, emit func(*kmer.Record) error) (int64, error) {
	if len(files) <= s.opt.MaxOpenFiles {
		s.logf("  [round %d] merging %d spill files", round, len(files))
		return s.mergeGroup(files, true, emit)
	}

	// all concurrent merges share the limit of open files
	threads := s.opt.Threads
	chunkSize := s.opt.MaxOpenFiles/threads - 1 // 1 is for the output file
	for chunkSize < 2 && threads > 1 {
		threads--
		chunkSize = s.opt.MaxOpenFiles/threads - 1
	}
	if chunkSize < 2 {
		chunkSize = 2
	}
	batches := (len(files) + chunkSize - 1) / chunkSize
	s.logf("  [round %d] merging %d spill files into %d with %d threads", round, len(files), batches, threads)

	tokens := make(chan int, threads)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	merged := make([]string, batches)
	var begin, end int
	for j := 0; j < batches; j++ {
		begin = j * chunkSize
		end = begin + chunkSize
		if end > len(files) {
			end = len(files)
		}

		tokens <- 1
		wg.Add(1)
		go func(j int, group []string) {
			defer func() {
				wg.Done()
				<-tokens
			}()

			file, w, err := s.spiller.Create()
			if err == nil {
				_, err = s.mergeGroup(group, false, w.Write)
				if e := w.Close(); err == nil {
					err = e
				}
			}
			if err == nil && !s.opt.KeepSpill {
				err = s.spiller.Remove(group)
			}
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			merged[j] = file
		}(j, files[begin:end])
	}
	wg.Wait()

	if firstErr != nil {
		return 0, firstErr
	}
	return s.mergeFiles(merged, round+1, emit)
}

// mergeGroup opens a group of spill files and merges them.
func (s *Sorter) mergeGroup(files []string, final bool, emit func(*kmer.Record) error) (int64, error) {
	sources := make([]Source, 0, len(files))
	readers := make([]*kmer.Reader, 0, len(files))
	defer func() {
		for _, r := range readers {
			r.Close()
		}
	}()

	for _, file := range files {
		r, err := s.spiller.Open(file)
		if err != nil {
			return 0, err
		}
		readers = append(readers, r)
		sources = append(sources, r)
	}
	return Merge(sources, final, emit)
}
