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
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/broadgsa/uniqmer/uniqmer/cmd/kmer"
)

func writeFasta(t *testing.T, dir, name string, seqs ...string) string {
	var buf bytes.Buffer
	for i, s := range seqs {
		fmt.Fprintf(&buf, ">s%d\n%s\n", i+1, s)
	}
	file := filepath.Join(dir, name)
	if err := os.WriteFile(file, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	return file
}

func newCountOptions(outDir string, k int) *CountOptions {
	return &CountOptions{
		NumCPUs:      2,
		K:            k,
		BatchSize:    100,
		SpillFactor:  0.9,
		MaxOpenFiles: 512,
		OutDir:       outDir,
	}
}

func readFile(t *testing.T, file string) string {
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func checkNoSpillFiles(t *testing.T, dir string) {
	files, err := filepath.Glob(filepath.Join(dir, "spill_*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) > 0 {
		t.Errorf("spill files left: %v", files)
	}
}

func TestCountKMers(t *testing.T) {
	dir := t.TempDir()
	file := writeFasta(t, dir, "genome.fa", "AACCGGTT")

	for _, oldFormat := range []bool{false, true} {
		for _, compress := range []bool{false, true} {
			for _, batchSize := range []int{1, 2, 3, 100} {
				outDir := filepath.Join(dir, fmt.Sprintf("out_%v_%v_%d", oldFormat, compress, batchSize))
				opt := newCountOptions(outDir, 4)
				opt.OldFormat = oldFormat
				opt.CompressSpill = compress
				opt.BatchSize = batchSize

				info, err := CountKMers([]string{file}, opt)
				if err != nil {
					t.Fatalf("batch size %d: %s", batchSize, err)
				}

				if info.Sequences != 1 || info.Bases != 8 || info.KMers != 5 {
					t.Errorf("batch size %d: unexpected genome stats: %d, %d, %d",
						batchSize, info.Sequences, info.Bases, info.KMers)
				}
				if info.UniqueNew != 1 || info.UniqueCumulative != 1 || info.NonUnique != 4 {
					t.Errorf("batch size %d: unexpected uniqueness stats: %d, %d, %d",
						batchSize, info.UniqueNew, info.UniqueCumulative, info.NonUnique)
				}

				outputs := countOutputs(outDir, 4)

				// AACC and ACCG appear twice, considering both strands
				if s := readFile(t, outputs.Text); s != "CCGG\ts1\t3\n" {
					t.Errorf("batch size %d: unexpected unique k-mers: %q", batchSize, s)
				}
				if s := readFile(t, outputs.Extra); s != "" {
					t.Errorf("batch size %d: unexpected exception k-mers: %q", batchSize, s)
				}

				c, _ := kmer.NewCoder(4, oldFormat)
				if s := readFile(t, outputs.Bin); len(s) != c.RecordSize() {
					t.Errorf("batch size %d: unexpected size of binary file: %d", batchSize, len(s))
				}

				if s := readFile(t, outputs.Map); !bytes.Equal([]byte(s), []byte{0x30, 0x00}) {
					t.Errorf("batch size %d: unexpected map: %08b", batchSize, []byte(s))
				}

				checkNoSpillFiles(t, outDir)
			}
		}
	}
}

func TestCountKMersStats(t *testing.T) {
	dir := t.TempDir()
	file := writeFasta(t, dir, "genome.fa", "AACCGGTT")
	outDir := filepath.Join(dir, "out")

	_, err := CountKMers([]string{file}, newCountOptions(outDir, 4))
	if err != nil {
		t.Fatal(err)
	}

	expected := `K: 4
Sequences: 1
Bases: 8
KMers: 5
Prior map count: 0
Unique prior: 0 (0.0%)
Unique new: 1 (20.0%)
Unique cumulative: 1 (20.0%)
Nonunique: 4 (80.0%)
`
	if s := readFile(t, countOutputs(outDir, 4).Stats); s != expected {
		t.Errorf("unexpected statistics:\n%s", s)
	}

	info, err := readRunInfo(countOutputs(outDir, 4).Info)
	if err != nil {
		t.Fatal(err)
	}
	if info.K != 4 || info.Format != "words" || info.UniqueNew != 1 || info.MainVersion != MainVersion {
		t.Errorf("unexpected run info: %+v", info)
	}
}

func TestCountKMersForce(t *testing.T) {
	dir := t.TempDir()
	file := writeFasta(t, dir, "genome.fa", "AACCGGTT")
	outDir := filepath.Join(dir, "out")
	opt := newCountOptions(outDir, 4)

	_, err := CountKMers([]string{file}, opt)
	if err != nil {
		t.Fatal(err)
	}

	_, err = CountKMers([]string{file}, opt)
	if err == nil || !strings.Contains(err.Error(), "output file exists") {
		t.Errorf("existing outputs should be refused, error: %v", err)
	}

	opt.Force = true
	_, err = CountKMers([]string{file}, opt)
	if err != nil {
		t.Errorf("existing outputs should be overwritten with force: %s", err)
	}
}

func TestCountKMersExceptions(t *testing.T) {
	dir := t.TempDir()
	file := writeFasta(t, dir, "genome.fa", "ACGRTGT")
	outDir := filepath.Join(dir, "out")

	info, err := CountKMers([]string{file}, newCountOptions(outDir, 3))
	if err != nil {
		t.Fatal(err)
	}
	if info.ExceptionKMers != 3 || info.UniqueNew != 5 || info.NonUnique != 0 {
		t.Errorf("unexpected stats: %+v", info)
	}

	outputs := countOutputs(outDir, 3)

	// TGT is saved as ACA, while exception k-mers are kept as they are
	expected := "ACA\ts1\t5\nACG\ts1\t1\nCGR\ts1\t2\nGRT\ts1\t3\nRTG\ts1\t4\n"
	if s := readFile(t, outputs.Text); s != expected {
		t.Errorf("unexpected unique k-mers: %q", s)
	}
	expected = "CGR\ts1\t2\nGRT\ts1\t3\nRTG\ts1\t4\n"
	if s := readFile(t, outputs.Extra); s != expected {
		t.Errorf("unexpected exception k-mers: %q", s)
	}

	c, _ := kmer.NewCoder(3, false)
	if s := readFile(t, outputs.Bin); len(s) != 2*c.RecordSize() {
		t.Errorf("unexpected size of binary file: %d", len(s))
	}

	// positions 0-4 are all unique
	if s := readFile(t, outputs.Map); !bytes.Equal([]byte(s), []byte{0xff, 0x03}) {
		t.Errorf("unexpected map: %08b", []byte(s))
	}
}

func TestCountKMersPriorMap(t *testing.T) {
	dir := t.TempDir()
	file := writeFasta(t, dir, "genome.fa", "AACCGGTT")
	outDir := filepath.Join(dir, "out")

	_, err := CountKMers([]string{file}, newCountOptions(outDir, 4))
	if err != nil {
		t.Fatal(err)
	}

	opt := newCountOptions(outDir, 5)
	opt.PriorMap = defaultPriorMap(outDir, 5)
	info, err := CountKMers([]string{file}, opt)
	if err != nil {
		t.Fatal(err)
	}

	// position 2 is unique at k=4, so CCGGT is skipped,
	// and ACCGG at position 1 becomes unique.
	if info.KMers != 4 || info.UniquePrior != 1 || info.UniqueNew != 1 ||
		info.UniqueCumulative != 2 || info.NonUnique != 2 || info.PriorMapCount != 1 {
		t.Errorf("unexpected stats: %+v", info)
	}

	outputs := countOutputs(outDir, 5)
	if s := readFile(t, outputs.Text); s != "ACCGG\ts1\t2\n" {
		t.Errorf("unexpected unique k-mers: %q", s)
	}

	// position 1: 11, position 2: 10
	data := []byte(readFile(t, outputs.Map))
	if !bytes.Equal(data, []byte{0x2c, 0x00}) {
		t.Errorf("unexpected map: %08b", data)
	}

	// cumulative bits are kept
	prior := []byte(readFile(t, countOutputs(outDir, 4).Map))
	for i, b := range prior {
		if b&0xaa&^data[i] != 0 {
			t.Errorf("cumulative bits lost in byte %d: %08b -> %08b", i, b, data[i])
		}
	}

	// k does not match
	opt = newCountOptions(outDir, 6)
	opt.PriorMap = countOutputs(outDir, 4).Map
	_, err = CountKMers([]string{file}, opt)
	if err == nil {
		t.Errorf("a prior map of k-2 should be refused")
	}

	// genome does not match
	file2 := writeFasta(t, dir, "genome2.fa", "AACCGGTTA")
	opt = newCountOptions(filepath.Join(dir, "out2"), 5)
	opt.PriorMap = countOutputs(outDir, 4).Map
	_, err = CountKMers([]string{file2}, opt)
	if err == nil {
		t.Errorf("a prior map of another genome should be refused")
	}

	infos, err := readRunInfos(outDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 || infos[0].K != 4 || infos[1].K != 5 {
		t.Errorf("unexpected run infos: %d", len(infos))
	}
}

// bruteForce returns unique canonical k-mers in the order of texts,
// as lines of the text output.
func bruteForce(seqs []string, k int) string {
	type loc struct {
		name  string
		coord int
		n     int
	}
	m := make(map[string]*loc)
	for i, s := range seqs {
		name := fmt.Sprintf("s%d", i+1)
		for j := 0; j+k <= len(s); j++ {
			w := s[j : j+k]
			if strings.ContainsRune(w, 'N') {
				continue
			}
			c := string(kmer.Canonical([]byte(w)))
			if l, ok := m[c]; ok {
				l.n++
			} else {
				m[c] = &loc{name: name, coord: j + 1, n: 1}
			}
		}
	}

	list := make([]string, 0, len(m))
	for c, l := range m {
		if l.n == 1 {
			list = append(list, c)
		}
	}
	sort.Strings(list)

	var buf strings.Builder
	for _, c := range list {
		fmt.Fprintf(&buf, "%s\t%s\t%d\n", c, m[c].name, m[c].coord)
	}
	return buf.String()
}

func randomSeq(r *rand.Rand, n int) string {
	bases := []byte("ACGTACGTACGTACGTN")
	s := make([]byte, n)
	for i := range s {
		s[i] = bases[r.Intn(len(bases))]
	}
	return string(s)
}

func TestCountKMersSpillInvariance(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	seqs := []string{randomSeq(r, 300), randomSeq(r, 5), randomSeq(r, 200)}

	dir := t.TempDir()
	file := writeFasta(t, dir, "genome.fa", seqs...)

	for _, k := range []int{3, 5, 9} {
		expected := bruteForce(seqs, k)

		for _, batchSize := range []int{1, 7, 64, 10000} {
			for _, maxOpenFiles := range []int{3, 512} {
				outDir := filepath.Join(dir, fmt.Sprintf("out_%d_%d_%d", k, batchSize, maxOpenFiles))
				opt := newCountOptions(outDir, k)
				opt.BatchSize = batchSize
				opt.MaxOpenFiles = maxOpenFiles

				info, err := CountKMers([]string{file}, opt)
				if err != nil {
					t.Fatalf("k %d, batch size %d: %s", k, batchSize, err)
				}
				if info.Sequences != len(seqs) {
					t.Errorf("k %d: unexpected sequences: %d", k, info.Sequences)
				}

				if s := readFile(t, countOutputs(outDir, k).Text); s != expected {
					t.Errorf("k %d, batch size %d, max open files %d: unexpected unique k-mers", k, batchSize, maxOpenFiles)
				}
				checkNoSpillFiles(t, outDir)
			}
		}
	}
}

func TestCheckCountOptions(t *testing.T) {
	opts := []*CountOptions{
		{K: 0, BatchSize: 10, SpillFactor: 0.9, MaxOpenFiles: 10, OutDir: "out"},
		{K: 63, OldFormat: true, BatchSize: 10, SpillFactor: 0.9, MaxOpenFiles: 10, OutDir: "out"},
		{K: 4, BatchSize: 0, SpillFactor: 0.9, MaxOpenFiles: 10, OutDir: "out"},
		{K: 4, BatchSize: 10, SpillFactor: 1.1, MaxOpenFiles: 10, OutDir: "out"},
		{K: 4, BatchSize: 10, SpillFactor: 0.9, MaxOpenFiles: 2, OutDir: "out"},
		{K: 4, BatchSize: 10, SpillFactor: 0.9, MaxOpenFiles: 10},
	}
	for i, opt := range opts {
		if err := CheckCountOptions(opt); !errors.Is(err, ErrInvalidOptions) {
			t.Errorf("#%d: invalid options should be refused: %+v", i, opt)
		}
	}

	opt := &CountOptions{K: 100, BatchSize: 1, SpillFactor: 1, MaxOpenFiles: 3, OutDir: "out"}
	if err := CheckCountOptions(opt); err != nil {
		t.Errorf("valid options refused: %s", err)
	}
	if opt.NumCPUs != 1 {
		t.Errorf("threads should be reset to 1")
	}
}
