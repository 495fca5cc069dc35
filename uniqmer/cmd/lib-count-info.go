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
	"encoding/binary"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/zeebo/wyhash"
)

// MainVersion is use for checking compatibility of output files
var MainVersion uint8 = 1

// MinorVersion is less important
var MinorVersion uint8 = 0

// RunInfo records the parameters and the statistics of a run.
type RunInfo struct {
	MainVersion  uint8 `toml:"main-version" comment:"Output format version"`
	MinorVersion uint8 `toml:"minor-version"`

	K           int     `toml:"k" comment:"K-mer size"`
	Format      string  `toml:"format" comment:"Binary k-mer format"`
	BatchSize   int     `toml:"batch-size" comment:"Parameters of external sorting"`
	SpillFactor float64 `toml:"spill-factor"`

	Files       []string `toml:"files" comment:"Input"`
	Sequences   int      `toml:"sequences"`
	Bases       uint64   `toml:"bases"`
	Fingerprint string   `toml:"fingerprint" comment:"Hash of sequence names and lengths"`

	PriorMap      string `toml:"prior-map" comment:"Map of k-1"`
	PriorMapCount uint64 `toml:"prior-map-count"`

	KMers            uint64 `toml:"kmers" comment:"Statistics"`
	UniquePrior      uint64 `toml:"unique-prior"`
	UniqueNew        uint64 `toml:"unique-new"`
	UniqueCumulative uint64 `toml:"unique-cumulative"`
	NonUnique        uint64 `toml:"non-unique"`
	ExceptionKMers   uint64 `toml:"exception-kmers"`
	SpillFiles       int    `toml:"spill-files"`
}

func readRunInfo(file string) (*RunInfo, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	info := &RunInfo{}
	err = toml.Unmarshal(data, info)
	if err != nil {
		return nil, fmt.Errorf("failed to parse run info file %s: %s", file, err)
	}
	return info, nil
}

func writeRunInfo(file string, info *RunInfo) error {
	fh, err := os.Create(file)
	if err != nil {
		return err
	}
	enc := toml.NewEncoder(fh)
	err = enc.Encode(info)
	if err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

// checkPriorRunParameters checks if the run of a prior map is compatible
// with the current parameters.
func checkPriorRunParameters(prior *RunInfo, k int, format string) error {
	if prior.MainVersion != MainVersion {
		return fmt.Errorf("version of the prior run does not match: %d != %d", prior.MainVersion, MainVersion)
	}
	if prior.K != k-1 {
		return fmt.Errorf("the prior map is created with k=%d, while k-1=%d is expected", prior.K, k-1)
	}
	if prior.Format != format {
		return fmt.Errorf("the prior run used the %s format, while the current one uses %s", prior.Format, format)
	}
	return nil
}

// checkPriorRunGenome checks if the prior map comes from the same genome.
func checkPriorRunGenome(prior *RunInfo, sequences int, bases uint64, fingerprint string) error {
	if prior.Sequences != sequences || prior.Bases != bases {
		return fmt.Errorf("the prior map is created from a genome with %d sequences and %d bases, while the current one has %d and %d",
			prior.Sequences, prior.Bases, sequences, bases)
	}
	if prior.Fingerprint != fingerprint {
		return fmt.Errorf("the prior map is created from a different genome (fingerprint %s != %s)",
			prior.Fingerprint, fingerprint)
	}
	return nil
}

// genomeFingerprint hashes the names and lengths of sequences in order.
type genomeFingerprint struct {
	h   uint64
	buf bytes.Buffer
	b8  [8]byte
}

func (f *genomeFingerprint) Add(name string, length int) {
	f.buf.Reset()
	f.buf.WriteString(name)
	binary.BigEndian.PutUint64(f.b8[:], uint64(length))
	f.buf.Write(f.b8[:])
	f.h = wyhash.Hash(f.buf.Bytes(), f.h)
}

func (f *genomeFingerprint) String() string {
	return fmt.Sprintf("%016x", f.h)
}
