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

package cmd

import (
	"fmt"
	"io"

	"github.com/broadgsa/uniqmer/uniqmer/cmd/genome"
	"github.com/broadgsa/uniqmer/uniqmer/cmd/kmer"
)

// KMerHit is a location of a query k-mer in the genome.
type KMerHit struct {
	Query  string // the query k-mer
	Name   string // sequence name
	Coord  uint32 // 1-based coordinate in the sequence
	Strand byte   // 'F' for the forward strand, 'R' for the reverse complement strand
}

// checkQueries checks that queries are non-empty ACGT k-mers of the same size,
// and returns the k-mer size.
func checkQueries(queries []string) (int, error) {
	if len(queries) == 0 {
		return 0, fmt.Errorf("no k-mers given")
	}
	k := len(queries[0])
	for _, q := range queries {
		if len(q) != k {
			return 0, fmt.Errorf("k-mers should have the same length: %s (%d) != %d", q, len(q), k)
		}
		if !kmer.IsACGT([]byte(q)) {
			return 0, fmt.Errorf("k-mers should only contain A, C, G or T: %s", q)
		}
	}
	return k, nil
}

// LocateKMers finds all occurrences of query k-mers on both strands of
// the genome in files, and calls fn for each hit in the order of positions.
// A palindromic k-mer hits both strands at the same position.
func LocateKMers(files []string, queries []string, fn func(*KMerHit) error) error {
	k, err := checkQueries(queries)
	if err != nil {
		return err
	}

	fwd := make(map[string]struct{}, len(queries))
	rev := make(map[string]string, len(queries))
	for _, q := range queries {
		fwd[q] = struct{}{}
		rev[string(kmer.RevComp(nil, []byte(q)))] = q
	}

	scanner := genome.NewScanner(files)
	defer scanner.Close()
	extractor := genome.NewExtractor(k, nil)

	var name string
	var s, w []byte
	var start uint64
	var pos uint32
	var ok bool
	var q string
	hit := &KMerHit{}
	for {
		name, s, err = scanner.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read %s: %s", scanner.File(), err)
		}

		start = extractor.Bases()
		if err = extractor.NewSequence(name, s); err != nil {
			return err
		}
		hit.Name = name

		for {
			w, pos, ok = extractor.Next()
			if !ok {
				break
			}

			hit.Coord = uint32(uint64(pos) - start + 1)
			if _, ok = fwd[string(w)]; ok {
				hit.Query = string(w)
				hit.Strand = 'F'
				if err = fn(hit); err != nil {
					return err
				}
			}
			if q, ok = rev[string(w)]; ok {
				hit.Query = q
				hit.Strand = 'R'
				if err = fn(hit); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
