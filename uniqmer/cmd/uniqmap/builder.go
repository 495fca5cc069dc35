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

package uniqmap

import (
	"bufio"
	"fmt"
	"math/bits"
	"os"
)

// Builder builds the uniqueness map of a genome in memory.
type Builder struct {
	bases uint64
	data  []byte

	priorCount uint64
	newCount   uint64
}

// NewBuilder creates a Builder for a genome of the given number of bases.
// If priorFile is not empty, the cumulative bits of the prior map are kept,
// and the prior map must have exactly the size of the new one.
func NewBuilder(bases uint64, priorFile string) (*Builder, error) {
	size := MapSize(bases)
	b := &Builder{bases: bases}

	if priorFile == "" {
		b.data = make([]byte, size)
		return b, nil
	}

	info, err := os.Stat(priorFile)
	if err != nil {
		return nil, err
	}
	if info.Size() != size {
		return nil, fmt.Errorf("%w: %s has %d bytes, %d expected", ErrMapSize, priorFile, info.Size(), size)
	}
	b.data, err = os.ReadFile(priorFile)
	if err != nil {
		return nil, err
	}
	if int64(len(b.data)) != size {
		return nil, fmt.Errorf("%w: %s", ErrMapSize, priorFile)
	}

	var n int
	for i, v := range b.data {
		v &= maskCumulative
		b.data[i] = v
		n += bits.OnesCount8(v)
	}
	b.priorCount = uint64(n)
	return b, nil
}

// Set marks a position as unique at the current k.
func (b *Builder) Set(pos uint32) error {
	if uint64(pos) >= b.bases {
		return fmt.Errorf("%w: %d >= %d", ErrPositionOutOfRange, pos, b.bases)
	}
	i, s := pos>>2, shift(pos)
	if (b.data[i]>>s)&3 != 0 {
		return fmt.Errorf("%w: %d", ErrPositionSet, pos)
	}
	b.data[i] |= (BitNew | BitCumulative) << s
	b.newCount++
	return nil
}

// Get returns the 2 bits of a position.
func (b *Builder) Get(pos uint32) uint8 {
	return (b.data[pos>>2] >> shift(pos)) & 3
}

// PriorCount returns the number of positions with the cumulative bit set in the prior map.
func (b *Builder) PriorCount() uint64 { return b.priorCount }

// NewCount returns the number of positions set.
func (b *Builder) NewCount() uint64 { return b.newCount }

// Bytes returns the map data.
func (b *Builder) Bytes() []byte { return b.data }

// WriteFile writes the map to a file.
func (b *Builder) WriteFile(file string) error {
	fh, err := os.Create(file)
	if err != nil {
		return err
	}
	w := bufio.NewWriterSize(fh, BufferSize)
	_, err = w.Write(b.data)
	if err != nil {
		fh.Close()
		return err
	}
	err = w.Flush()
	if err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

// Counts returns the numbers of positions with the new bit
// and with the cumulative bit set, in map data.
func Counts(data []byte) (newCount, cumulative uint64) {
	for _, v := range data {
		newCount += uint64(bits.OnesCount8(v & maskNew))
		cumulative += uint64(bits.OnesCount8(v & maskCumulative))
	}
	return
}
