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
	"bufio"
	"fmt"
	"os"

	"github.com/broadgsa/uniqmer/uniqmer/cmd/genome"
	"github.com/broadgsa/uniqmer/uniqmer/cmd/kmer"
	"github.com/broadgsa/uniqmer/uniqmer/cmd/uniqmap"
	"github.com/broadgsa/uniqmer/uniqmer/util"
	"github.com/pkg/errors"
)

// uniqueWriter writes unique k-mers from the merged binary stream and
// the exception list, in the order of k-mer texts, and marks their
// positions in the map.
type uniqueWriter struct {
	c       *kmer.Coder
	idx     *genome.SequenceIndex
	builder *uniqmap.Builder

	exceptions []kmer.ExceptionRecord
	ei         int

	bin     *kmer.Writer
	txt     *bufio.Writer
	fhTxt   *os.File
	extra   *bufio.Writer
	fhExtra *os.File

	nBinary     uint64
	nExceptions uint64
}

func newUniqueWriter(c *kmer.Coder, idx *genome.SequenceIndex, builder *uniqmap.Builder,
	exceptions []kmer.ExceptionRecord, outputs *CountOutputs) (*uniqueWriter, error) {
	w := &uniqueWriter{
		c:          c,
		idx:        idx,
		builder:    builder,
		exceptions: exceptions,
	}

	var err error
	w.bin, err = kmer.Create(c, outputs.Bin)
	if err != nil {
		return nil, err
	}
	w.fhTxt, err = os.Create(outputs.Text)
	if err != nil {
		w.bin.Close()
		return nil, err
	}
	w.txt = bufio.NewWriterSize(w.fhTxt, os.Getpagesize())

	w.fhExtra, err = os.Create(outputs.Extra)
	if err != nil {
		w.bin.Close()
		w.fhTxt.Close()
		return nil, err
	}
	w.extra = bufio.NewWriterSize(w.fhExtra, os.Getpagesize())
	return w, nil
}

// Write writes a record of the final merge.
func (w *uniqueWriter) Write(r *kmer.Record) error {
	text := w.c.Decode(r.Key)
	err := w.writeExceptions(text)
	if err != nil {
		return err
	}
	if r.Pos.IsDuplicate() {
		return nil
	}

	err = w.bin.Write(r)
	if err != nil {
		return err
	}
	err = w.writeLine(w.txt, text, r.Pos.Pos())
	if err != nil {
		return err
	}
	w.nBinary++
	return nil
}

// writeExceptions writes unique exception k-mers smaller than text,
// or all the left ones if text is nil.
func (w *uniqueWriter) writeExceptions(text []byte) error {
	var r *kmer.ExceptionRecord
	var err error
	for w.ei < len(w.exceptions) {
		r = &w.exceptions[w.ei]
		if text != nil && r.Text >= string(text) {
			break
		}
		w.ei++
		if r.Pos.IsDuplicate() {
			continue
		}

		err = w.writeLine(w.txt, []byte(r.Text), r.Pos.Pos())
		if err != nil {
			return err
		}
		name, coord, _ := w.idx.Owner(r.Pos.Pos())
		fmt.Fprintf(w.extra, "%s\t%s\t%d\n", r.Text, name, coord)
		w.nExceptions++
	}
	return nil
}

// writeLine outputs a unique k-mer and marks it in the map.
func (w *uniqueWriter) writeLine(out *bufio.Writer, text []byte, pos uint32) error {
	name, coord, err := w.idx.Owner(pos)
	if err != nil {
		return err
	}
	err = w.builder.Set(pos)
	if err != nil {
		return errors.Wrapf(err, "k-mer %s at %s:%d", text, name, coord)
	}
	_, err = fmt.Fprintf(out, "%s\t%s\t%d\n", text, name, coord)
	return err
}

// Close writes the left exception k-mers and closes all files.
func (w *uniqueWriter) Close() error {
	err := w.writeExceptions(nil)
	if err != nil {
		return err
	}

	err = w.bin.Close()
	if err != nil {
		return err
	}
	err = w.txt.Flush()
	if err != nil {
		return err
	}
	err = w.fhTxt.Close()
	if err != nil {
		return err
	}
	err = w.extra.Flush()
	if err != nil {
		return err
	}
	return w.fhExtra.Close()
}

func writeStats(file string, info *RunInfo) error {
	fh, err := os.Create(file)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(fh)

	fmt.Fprintf(w, "K: %d\n", info.K)
	fmt.Fprintf(w, "Sequences: %d\n", info.Sequences)
	fmt.Fprintf(w, "Bases: %d\n", info.Bases)
	fmt.Fprintf(w, "KMers: %d\n", info.KMers)
	fmt.Fprintf(w, "Prior map count: %d\n", info.PriorMapCount)
	fmt.Fprintf(w, "Unique prior: %d (%1.1f%%)\n", info.UniquePrior, util.Percent(info.UniquePrior, info.KMers))
	fmt.Fprintf(w, "Unique new: %d (%1.1f%%)\n", info.UniqueNew, util.Percent(info.UniqueNew, info.KMers))
	fmt.Fprintf(w, "Unique cumulative: %d (%1.1f%%)\n", info.UniqueCumulative, util.Percent(info.UniqueCumulative, info.KMers))
	fmt.Fprintf(w, "Nonunique: %d (%1.1f%%)\n", info.NonUnique, util.Percent(info.NonUnique, info.KMers))

	err = w.Flush()
	if err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}
