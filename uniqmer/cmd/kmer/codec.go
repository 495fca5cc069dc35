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
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"os"
)

var le = binary.LittleEndian

// BufferSize is size of reading and writing buffer
var BufferSize = 65536 // os.Getpagesize()

// ErrBrokenFile means the file is not complete.
var ErrBrokenFile = errors.New("k-mer data: broken file")

// Writer writes k-mer records in binary format.
//
// Current format (FormatWords), one record:
//
//	position: uint32, little endian, DuplicateMarker for duplicated k-mers
//	k-mer:    ceil(k/8) uint16 words, little endian
//
// Old format (FormatFixed64), one record:
//
//	k-mer:    uint64, little endian, the first 31 bases for k > 31
//	k-mer:    uint64, little endian, the remaining bases, only for k > 31
//	position: uint32, little endian
type Writer struct {
	c       *Coder
	w       *bufio.Writer
	closers []io.Closer

	buf []byte
	n   int64
}

// NewWriter creates a Writer on a io.Writer.
// closers are closed in order after the data is flushed in Close.
func NewWriter(c *Coder, w io.Writer, closers ...io.Closer) *Writer {
	return &Writer{
		c:       c,
		w:       bufio.NewWriterSize(w, BufferSize),
		closers: closers,
		buf:     make([]byte, c.recordSize),
	}
}

// Create creates a Writer writing to a file.
func Create(c *Coder, file string) (*Writer, error) {
	fh, err := os.Create(file)
	if err != nil {
		return nil, err
	}
	return NewWriter(c, fh, fh), nil
}

// Write writes a record.
func (w *Writer) Write(r *Record) error {
	w.c.PutRecord(w.buf, r)
	_, err := w.w.Write(w.buf)
	if err != nil {
		return err
	}
	w.n++
	return nil
}

// N returns the number of records written.
func (w *Writer) N() int64 { return w.n }

// Close flushes the data and closes the underlying closers.
func (w *Writer) Close() error {
	err := w.w.Flush()
	if err != nil {
		return err
	}
	for _, c := range w.closers {
		err = c.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// PutRecord encodes a record into buf, which should have RecordSize() bytes.
func (c *Coder) PutRecord(buf []byte, r *Record) {
	if c.Format == FormatFixed64 {
		le.PutUint64(buf[:8], r.Key.Fixed[0])
		if c.K > basesPerFixed {
			le.PutUint64(buf[8:16], r.Key.Fixed[1])
			le.PutUint32(buf[16:20], r.Pos.raw())
		} else {
			le.PutUint32(buf[8:12], r.Pos.raw())
		}
		return
	}

	le.PutUint32(buf[:4], r.Pos.raw())
	j := 4
	for _, v := range r.Key.Words {
		le.PutUint16(buf[j:j+2], v)
		j += 2
	}
}

// ParseRecord decodes a record from buf into r.
// For FormatWords, r.Key.Words must have been allocated by NewKey.
func (c *Coder) ParseRecord(buf []byte, r *Record) {
	if c.Format == FormatFixed64 {
		r.Key.Fixed[0] = le.Uint64(buf[:8])
		if c.K > basesPerFixed {
			r.Key.Fixed[1] = le.Uint64(buf[8:16])
			r.Pos = positionFromRaw(le.Uint32(buf[16:20]))
		} else {
			r.Key.Fixed[1] = 0
			r.Pos = positionFromRaw(le.Uint32(buf[8:12]))
		}
		return
	}

	r.Pos = positionFromRaw(le.Uint32(buf[:4]))
	j := 4
	for i := range r.Key.Words {
		r.Key.Words[i] = le.Uint16(buf[j : j+2])
		j += 2
	}
}

// Reader reads k-mer records in binary format.
type Reader struct {
	c       *Coder
	r       *bufio.Reader
	closers []io.Closer

	buf    []byte
	record Record
}

// NewReader creates a Reader on a io.Reader.
func NewReader(c *Coder, r io.Reader, closers ...io.Closer) *Reader {
	return &Reader{
		c:       c,
		r:       bufio.NewReaderSize(r, BufferSize),
		closers: closers,
		buf:     make([]byte, c.recordSize),
		record:  Record{Key: c.NewKey()},
	}
}

// Open opens a binary file.
func Open(c *Coder, file string) (*Reader, error) {
	fh, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	return NewReader(c, fh, fh), nil
}

// Read reads the next record.
// The returned record is overwritten by the next call.
// It returns io.EOF at the end of the data,
// and ErrBrokenFile if the data ends in the middle of a record.
func (r *Reader) Read() (*Record, error) {
	_, err := io.ReadFull(r.r, r.buf)
	if err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, ErrBrokenFile
		}
		return nil, err
	}
	r.c.ParseRecord(r.buf, &r.record)
	return &r.record, nil
}

// Close closes the underlying closers.
func (r *Reader) Close() error {
	var err error
	for _, c := range r.closers {
		if e := c.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
