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
	"testing"
)

func TestLocateKMers(t *testing.T) {
	dir := t.TempDir()
	file := writeFasta(t, dir, "genome.fa", "AACCGGTT", "NNACCG")

	var hits []string
	err := LocateKMers([]string{file}, []string{"ACCG", "CCGG"}, func(h *KMerHit) error {
		hits = append(hits, fmt.Sprintf("%s %s %d %c", h.Query, h.Name, h.Coord, h.Strand))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	expected := []string{
		"ACCG s1 2 F",
		"CCGG s1 3 F", // palindrome
		"CCGG s1 3 R",
		"ACCG s1 4 R", // CGGT
		"ACCG s2 3 F",
	}
	if len(hits) != len(expected) {
		t.Fatalf("unexpected hits: %v", hits)
	}
	for i, h := range hits {
		if h != expected[i] {
			t.Errorf("#%d: expected %s, returned %s", i, expected[i], h)
		}
	}
}

func TestCheckQueries(t *testing.T) {
	bad := [][]string{
		{},
		{"ACGT", "ACG"},
		{"ACGN"},
		{"ACGR", "ACGT"},
	}
	for i, queries := range bad {
		if _, err := checkQueries(queries); err == nil {
			t.Errorf("#%d: invalid queries should be refused: %v", i, queries)
		}
	}

	k, err := checkQueries([]string{"ACGT", "TTTT"})
	if err != nil || k != 4 {
		t.Errorf("unexpected result: %d, %v", k, err)
	}
}
