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

package kmer

import (
	"bytes"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func TestReadWrite(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	dir := t.TempDir()

	for _, old := range []bool{false, true} {
		for _, k := range []int{5, 8, 21, 31, 32, 50} {
			c, _ := NewCoder(k, old)
			enc := c.NewEncoder()

			n := 100
			kmers := make([][]byte, n)
			positions := make([]Position, n)

			file := filepath.Join(dir, "test.bin")
			wtr, err := Create(c, file)
			if err != nil {
				t.Error(err)
				return
			}
			for i := 0; i < n; i++ {
				kmers[i] = randomKmer(r, k)
				if i%7 == 0 {
					positions[i] = Duplicate
				} else {
					positions[i] = Unique(uint32(r.Int31()))
				}
				key, _, _ := enc.Encode(kmers[i])
				err = wtr.Write(&Record{Key: key, Pos: positions[i]})
				if err != nil {
					t.Error(err)
					return
				}
			}
			if wtr.N() != int64(n) {
				t.Errorf("k=%d, old=%v: expected %d records written, returned %d", k, old, n, wtr.N())
			}
			err = wtr.Close()
			if err != nil {
				t.Error(err)
				return
			}

			info, err := os.Stat(file)
			if err != nil {
				t.Error(err)
				return
			}
			if info.Size() != int64(n*c.RecordSize()) {
				t.Errorf("k=%d, old=%v: expected file size %d, returned %d", k, old, n*c.RecordSize(), info.Size())
				return
			}

			rdr, err := Open(c, file)
			if err != nil {
				t.Error(err)
				return
			}
			var rec *Record
			for i := 0; i < n; i++ {
				rec, err = rdr.Read()
				if err != nil {
					t.Errorf("k=%d, old=%v: read #%d: %s", k, old, i, err)
					return
				}
				if s := c.Decode(rec.Key); !bytes.Equal(s, Canonical(kmers[i])) {
					t.Errorf("k=%d, old=%v: #%d expected %s, returned %s", k, old, i, Canonical(kmers[i]), s)
					return
				}
				if rec.Pos != positions[i] {
					t.Errorf("k=%d, old=%v: #%d expected position %s, returned %s", k, old, i, positions[i], rec.Pos)
					return
				}
			}
			if _, err = rdr.Read(); err != io.EOF {
				t.Errorf("k=%d, old=%v: expected io.EOF, returned %v", k, old, err)
			}
			rdr.Close()
		}
	}
}

func TestTruncatedRecord(t *testing.T) {
	c, _ := NewCoder(12, false)
	enc := c.NewEncoder()
	key, _, _ := enc.Encode([]byte("ACGTACGTACGT"))

	var buf bytes.Buffer
	wtr := NewWriter(c, &buf)
	wtr.Write(&Record{Key: key, Pos: Unique(3)})
	wtr.Close()

	data := buf.Bytes()
	rdr := NewReader(c, bytes.NewReader(data[:len(data)-1]))
	if _, err := rdr.Read(); err != ErrBrokenFile {
		t.Errorf("expected %s, returned %v", ErrBrokenFile, err)
	}

	rdr = NewReader(c, bytes.NewReader(nil))
	if _, err := rdr.Read(); err != io.EOF {
		t.Errorf("expected io.EOF for empty data, returned %v", err)
	}
}

func TestRecordLayout(t *testing.T) {
	// k=10: the first word holds 2 bases, the second word 8 bases.
	c, _ := NewCoder(10, false)
	enc := c.NewEncoder()
	key, _ := enc.EncodeForward([]byte("CTAAAAAAAG"))

	buf := make([]byte, c.RecordSize())
	c.PutRecord(buf, &Record{Key: key, Pos: Unique(0x01020304)})

	expected := []byte{
		0x04, 0x03, 0x02, 0x01, // position
		0b0111, 0x00, // CT
		0b10, 0x00, // AAAAAAAG
	}
	if !bytes.Equal(buf, expected) {
		t.Errorf("expected %08b, returned %08b", expected, buf)
	}

	c.PutRecord(buf, &Record{Key: key, Pos: Duplicate})
	if !bytes.Equal(buf[:4], []byte{0xff, 0xff, 0xff, 0xff}) {
		t.Errorf("unexpected duplicate marker: %x", buf[:4])
	}
}
