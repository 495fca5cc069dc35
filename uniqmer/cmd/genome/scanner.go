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
	"bytes"
	"errors"
	"io"
	"math"

	"github.com/shenwei356/bio/seqio/fastx"
)

// ErrPositionOverflow means the genome has more bases than 32-bit global positions can address.
var ErrPositionOverflow = errors.New("genome: too many bases for 32-bit global positions")

// MaxBases is the maximum number of bases of a genome.
// Positions are in [0, MaxBases), so no position equals the reserved value math.MaxUint32.
const MaxBases = uint64(math.MaxUint32)

// Scanner reads sequences from a list of FASTA/Q files,
// which could be plain or compressed (gzip, xz, zstd, bzip2).
type Scanner struct {
	files []string
	i     int
	file  string
	r     *fastx.Reader
}

// NewScanner creates a Scanner.
func NewScanner(files []string) *Scanner {
	return &Scanner{files: files}
}

// Next returns the name and the bases of the next sequence.
// The name is the first word of the header, bases are converted to upper case.
// The returned slice is only valid until the next call.
// It returns io.EOF after the last sequence of the last file.
func (s *Scanner) Next() (name string, seq []byte, err error) {
	var record *fastx.Record
	for {
		if s.r == nil {
			if s.i >= len(s.files) {
				return "", nil, io.EOF
			}
			s.file = s.files[s.i]
			s.i++
			s.r, err = fastx.NewReader(nil, s.file, "")
			if err != nil {
				s.r = nil
				return "", nil, err
			}
		}

		record, err = s.r.Read()
		if err != nil {
			s.r.Close()
			s.r = nil
			if err == io.EOF {
				continue
			}
			return "", nil, err
		}

		seq = record.Seq.Seq
		ToUpper(seq)
		return string(record.ID), seq, nil
	}
}

// File returns the file being read.
func (s *Scanner) File() string { return s.file }

// FilesOpened returns the number of files opened so far.
func (s *Scanner) FilesOpened() int { return s.i }

// Close closes the file being read.
func (s *Scanner) Close() {
	if s.r != nil {
		s.r.Close()
		s.r = nil
	}
}

// ToUpper converts ASCII letters to upper case in place.
func ToUpper(s []byte) {
	for i, b := range s {
		if 'a' <= b && b <= 'z' {
			s[i] = b - 32
		}
	}
}

// Gaps returns runs of N as 1-based, closed intervals.
func Gaps(seq []byte) [][2]int {
	gaps := make([][2]int, 0, 8)
	var i, j int
	for i < len(seq) {
		j = bytes.IndexAny(seq[i:], "Nn")
		if j < 0 {
			break
		}
		i += j
		j = i + 1
		for j < len(seq) && (seq[j] == 'N' || seq[j] == 'n') {
			j++
		}
		gaps = append(gaps, [2]int{i + 1, j})
		i = j
	}
	return gaps
}
