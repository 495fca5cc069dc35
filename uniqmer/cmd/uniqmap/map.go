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

// Package uniqmap handles uniqueness maps.
//
// A map has 2 bits for each global position of the genome, 4 positions in a byte.
// For position p, the bits are (byte[p/4] >> (2*(p%4))) & 3, where
//
//	bit 0: the k-mer starting at p is unique at the current k, but not at smaller k
//	bit 1: the k-mer starting at p is unique at some k' <= k
//
// So a position proven unique at the current k has the value 11.
package uniqmap

import (
	"bufio"
	"errors"
	"io"
	"os"
)

// BufferSize is size of reading and writing buffer
var BufferSize = 65536 // os.Getpagesize()

const (
	// BitNew is set for positions newly unique at the current k.
	BitNew uint8 = 1
	// BitCumulative is set for positions unique at any k so far.
	BitCumulative uint8 = 2

	maskNew        byte = 0x55
	maskCumulative byte = 0xAA
)

// ErrSeekBackwards means positions are not queried in non-decreasing order.
var ErrSeekBackwards = errors.New("uniqueness map: seek backwards")

// ErrUnexpectedEOF means the map is shorter than the genome.
var ErrUnexpectedEOF = errors.New("uniqueness map: unexpected end of file")

// ErrMapSize means the size of a map file does not match the genome size.
var ErrMapSize = errors.New("uniqueness map: size mismatch")

// ErrPositionSet means a position is set twice.
var ErrPositionSet = errors.New("uniqueness map: position already set")

// ErrPositionOutOfRange means a position is not smaller than the number of bases.
var ErrPositionOutOfRange = errors.New("uniqueness map: position out of range")

// MapSize returns the number of bytes of a map of a genome.
func MapSize(bases uint64) int64 {
	return int64((bases + 3) >> 2)
}

func shift(pos uint32) uint8 { return uint8(pos&3) << 1 }

// PriorReader reads a map in a single pass, positions should be queried
// in non-decreasing order.
type PriorReader struct {
	fh *os.File
	r  *bufio.Reader

	idx     int64 // index of the current byte, -1 for none
	cur     byte
	last    uint32
	started bool
}

// NewPriorReader opens a map file.
func NewPriorReader(file string) (*PriorReader, error) {
	fh, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	return &PriorReader{
		fh:  fh,
		r:   bufio.NewReaderSize(fh, BufferSize),
		idx: -1,
	}, nil
}

// IsUnique tells if the cumulative bit of a position is set,
// i.e., the k-mer at pos is known unique at a smaller k.
func (r *PriorReader) IsUnique(pos uint32) (bool, error) {
	if r.started && pos < r.last {
		return false, ErrSeekBackwards
	}
	r.started = true
	r.last = pos

	idx := int64(pos >> 2)
	if idx != r.idx {
		if skip := idx - r.idx - 1; skip > 0 {
			n, err := r.r.Discard(int(skip))
			if err != nil {
				r.idx += int64(n)
				if err == io.EOF {
					return false, ErrUnexpectedEOF
				}
				return false, err
			}
		}
		b, err := r.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return false, ErrUnexpectedEOF
			}
			return false, err
		}
		r.cur = b
		r.idx = idx
	}

	return (r.cur>>shift(pos))&BitCumulative > 0, nil
}

// Close closes the file.
func (r *PriorReader) Close() error {
	return r.fh.Close()
}
