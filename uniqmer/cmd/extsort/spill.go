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
	"os"
	"path/filepath"
	"sync"

	"github.com/broadgsa/uniqmer/uniqmer/cmd/kmer"
	"github.com/klauspost/compress/zstd"
)

// SpillFileExt is the file extension of spill files.
const SpillFileExt = ".tmp"

// CompressedFileExt is appended to compressed spill files.
const CompressedFileExt = ".zst"

// Spiller writes sorted and compacted records to temporary files,
// named spill_<k>_<n>.tmp in a directory, and reads them back.
type Spiller struct {
	c        *kmer.Coder
	dir      string
	compress bool

	mu    sync.Mutex
	n     int
	files []string
}

// NewSpiller creates a Spiller writing files in dir.
// Records are zstd-compressed if compress is true.
func NewSpiller(c *kmer.Coder, dir string, compress bool) *Spiller {
	return &Spiller{c: c, dir: dir, compress: compress}
}

// SpillFile returns the name of the n-th spill file of k-mer size k.
func SpillFile(dir string, k int, n int, compress bool) string {
	file := filepath.Join(dir, fmt.Sprintf("spill_%d_%d%s", k, n, SpillFileExt))
	if compress {
		file += CompressedFileExt
	}
	return file
}

func (s *Spiller) nextFile() string {
	s.mu.Lock()
	s.n++
	file := SpillFile(s.dir, s.c.K, s.n, s.compress)
	s.files = append(s.files, file)
	s.mu.Unlock()
	return file
}

// Count returns the number of spill files ever created.
func (s *Spiller) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// Spill writes the records to a new spill file and returns its path.
// The records must be sorted and compacted.
func (s *Spiller) Spill(recs []kmer.Record) (string, error) {
	file, w, err := s.Create()
	if err != nil {
		return "", err
	}
	for i := range recs {
		err = w.Write(&recs[i])
		if err != nil {
			w.Close()
			return "", err
		}
	}
	return file, w.Close()
}

// Create creates a new spill file.
func (s *Spiller) Create() (string, *kmer.Writer, error) {
	file := s.nextFile()
	fh, err := os.Create(file)
	if err != nil {
		return "", nil, err
	}
	if !s.compress {
		return file, kmer.NewWriter(s.c, fh, fh), nil
	}

	enc, err := zstd.NewWriter(fh, zstd.WithEncoderConcurrency(1))
	if err != nil {
		fh.Close()
		return "", nil, err
	}
	// the encoder is closed before the file
	return file, kmer.NewWriter(s.c, enc, enc, fh), nil
}

// Open opens a spill file.
func (s *Spiller) Open(file string) (*kmer.Reader, error) {
	fh, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	if !s.compress {
		return kmer.NewReader(s.c, fh, fh), nil
	}

	dec, err := zstd.NewReader(fh, zstd.WithDecoderConcurrency(1))
	if err != nil {
		fh.Close()
		return nil, err
	}
	rc := dec.IOReadCloser()
	return kmer.NewReader(s.c, rc, rc, fh), nil
}

// Remove deletes the given spill files.
func (s *Spiller) Remove(files []string) error {
	for _, file := range files {
		err := os.Remove(file)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Files returns all spill files created.
func (s *Spiller) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := make([]string, len(s.files))
	copy(files, s.files)
	return files
}
