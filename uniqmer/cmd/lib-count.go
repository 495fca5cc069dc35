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
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/broadgsa/uniqmer/uniqmer/cmd/extsort"
	"github.com/broadgsa/uniqmer/uniqmer/cmd/genome"
	"github.com/broadgsa/uniqmer/uniqmer/cmd/kmer"
	"github.com/broadgsa/uniqmer/uniqmer/cmd/uniqmap"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/shenwei356/util/pathutil"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// output files of k
const (
	fileExtText  = ".txt"
	fileExtBin   = ".bin"
	fileExtExtra = ".extra"
	fileExtMap   = "_map.bin"
	fileExtStats = "_stats.txt"
	fileExtInfo  = "_info.toml"
)

// filePrefix returns the common prefix of output files of k.
func filePrefix(outDir string, k int) string {
	return filepath.Join(outDir, fmt.Sprintf("unique_%d_mers", k))
}

// CountOutputs contains the paths of output files of a run.
type CountOutputs struct {
	Text  string // unique k-mers with coordinates
	Bin   string // unique k-mers in binary format
	Extra string // unique k-mers with bases other than A/C/G/T
	Map   string // uniqueness map
	Stats string // statistics
	Info  string // run information
}

func countOutputs(outDir string, k int) *CountOutputs {
	prefix := filePrefix(outDir, k)
	return &CountOutputs{
		Text:  prefix + fileExtText,
		Bin:   prefix + fileExtBin,
		Extra: prefix + fileExtExtra,
		Map:   prefix + fileExtMap,
		Stats: prefix + fileExtStats,
		Info:  prefix + fileExtInfo,
	}
}

func (o *CountOutputs) files() []string {
	return []string{o.Text, o.Bin, o.Extra, o.Map, o.Stats, o.Info}
}

// defaultPriorMap returns the map file of k-1 in the output directory.
func defaultPriorMap(outDir string, k int) string {
	return filePrefix(outDir, k-1) + fileExtMap
}

// priorInfoFile returns the run info file next to a map file.
func priorInfoFile(mapFile string) string {
	return strings.TrimSuffix(mapFile, fileExtMap) + fileExtInfo
}

// CountOptions contains the options of counting unique k-mers.
type CountOptions struct {
	// general
	NumCPUs  int
	Verbose  bool // show log
	Log2File bool // log file
	Force    bool // overwrite existing output files of the same k

	// k-mers
	K         int  // k-mer size
	OldFormat bool // binary format with fixed 64-bit words, k <= 62

	// external sorting
	BatchSize     int     // the maximum number of k-mers in memory
	SpillFactor   float64 // spill a compacted batch if it has more than SpillFactor*BatchSize k-mers
	MaxOpenFiles  int     // maximum opened files, used in merging spill files
	TmpDir        string  // directory of spill files, the output directory by default
	CompressSpill bool    // compress spill files with zstd
	KeepSpill     bool    // keep spill files

	// input and output
	OutDir   string
	PriorMap string // map of k-1, empty for none
}

// ErrInvalidOptions means some options of counting are invalid.
var ErrInvalidOptions = errors.New("invalid options")

// CheckCountOptions check the options
func CheckCountOptions(opt *CountOptions) error {
	if opt.K < 1 {
		return fmt.Errorf("%w: invalid k value: %d, should be >= 1", ErrInvalidOptions, opt.K)
	}
	if opt.OldFormat && opt.K > kmer.MaxKFixed64 {
		return fmt.Errorf("%w: invalid k value: %d, should be <= %d for the old format", ErrInvalidOptions, opt.K, kmer.MaxKFixed64)
	}
	if opt.BatchSize < 1 {
		return fmt.Errorf("%w: invalid batch size: %d, should be >= 1", ErrInvalidOptions, opt.BatchSize)
	}
	if opt.SpillFactor <= 0 || opt.SpillFactor > 1 {
		return fmt.Errorf("%w: invalid spill factor: %f, valid range: (0, 1]", ErrInvalidOptions, opt.SpillFactor)
	}
	if opt.MaxOpenFiles < 3 {
		return fmt.Errorf("%w: invalid max open files: %d, should be >= 3", ErrInvalidOptions, opt.MaxOpenFiles)
	}
	if opt.OutDir == "" {
		return fmt.Errorf("%w: output directory needed", ErrInvalidOptions)
	}
	if opt.NumCPUs < 1 {
		opt.NumCPUs = 1
	}
	return nil
}

// CountKMers finds unique k-mers of the genome in the files, and writes
// the outputs into the output directory.
func CountKMers(files []string, opt *CountOptions) (*RunInfo, error) {
	err := CheckCountOptions(opt)
	if err != nil {
		return nil, err
	}
	outputLog := opt.Verbose || opt.Log2File

	coder, err := kmer.NewCoder(opt.K, opt.OldFormat)
	if err != nil {
		return nil, err
	}

	// ---------------------------------------------------------------
	// output files

	err = makeOutDir(opt.OutDir)
	if err != nil {
		return nil, err
	}
	outputs := countOutputs(opt.OutDir, opt.K)
	if !opt.Force {
		for _, file := range outputs.files() {
			existed, err := pathutil.Exists(file)
			if err != nil {
				return nil, errors.Wrap(err, file)
			}
			if existed {
				return nil, fmt.Errorf("output file exists: %s, use --force to overwrite", file)
			}
		}
	}

	info := &RunInfo{
		MainVersion:  MainVersion,
		MinorVersion: MinorVersion,
		K:            opt.K,
		Format:       coder.Format.String(),
		BatchSize:    opt.BatchSize,
		SpillFactor:  opt.SpillFactor,
		Files:        files,
		PriorMap:     opt.PriorMap,
	}

	// ---------------------------------------------------------------
	// prior map

	var prior *uniqmap.PriorReader
	var priorInfo *RunInfo
	if opt.PriorMap != "" {
		fileInfo := priorInfoFile(opt.PriorMap)
		existed, err := pathutil.Exists(fileInfo)
		if err != nil {
			return nil, errors.Wrap(err, fileInfo)
		}
		if existed {
			priorInfo, err = readRunInfo(fileInfo)
			if err != nil {
				return nil, err
			}
			err = checkPriorRunParameters(priorInfo, opt.K, info.Format)
			if err != nil {
				return nil, errors.Wrap(err, opt.PriorMap)
			}
		} else if outputLog {
			log.Warningf("run info file of the prior map not found: %s, skip checking", fileInfo)
		}

		prior, err = uniqmap.NewPriorReader(opt.PriorMap)
		if err != nil {
			return nil, errors.Wrap(err, "open prior map")
		}
		defer prior.Close()
	}

	// ---------------------------------------------------------------
	// scanning

	tmpDir := opt.TmpDir
	if tmpDir == "" {
		tmpDir = opt.OutDir
	}
	sorter, err := extsort.NewSorter(coder, &extsort.Options{
		BatchSize:    opt.BatchSize,
		SpillFactor:  opt.SpillFactor,
		TmpDir:       tmpDir,
		Compress:     opt.CompressSpill,
		KeepSpill:    opt.KeepSpill,
		MaxOpenFiles: opt.MaxOpenFiles,
		Threads:      opt.NumCPUs,
		Logf: func(format string, args ...interface{}) {
			if outputLog {
				log.Infof(format, args...)
			}
		},
	})
	if err != nil {
		return nil, err
	}
	exceptions := extsort.NewExceptions(opt.BatchSize)

	idx := genome.NewSequenceIndex()
	extractor := genome.NewExtractor(opt.K, idx)
	enc := coder.NewEncoder()
	var fingerprint genomeFingerprint

	// process bar
	var pbs *mpb.Progress
	var bar *mpb.Bar
	showProgress := opt.Verbose && len(files) > 1
	if showProgress {
		pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
		bar = pbs.AddBar(int64(len(files)),
			mpb.PrependDecorators(
				decor.Name("processed files: ", decor.WC{W: len("processed files: "), C: decor.DindentRight}),
				decor.Name("", decor.WCSyncSpaceR),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
				decor.EwmaETA(decor.ET_STYLE_GO, 10),
				decor.OnComplete(decor.Name(""), ". done"),
			),
		)
	}

	timeStart := time.Now()
	if outputLog {
		log.Infof("scanning k-mers (k=%d) ...", opt.K)
	}
	var startTime time.Time
	for _, file := range files {
		startTime = time.Now()
		err = scanFile(file, extractor, &fingerprint, info, func(w []byte, pos uint32) error {
			info.KMers++
			if prior != nil {
				unique, err := prior.IsUnique(pos)
				if err != nil {
					return errors.Wrapf(err, "read prior map %s", opt.PriorMap)
				}
				if unique {
					info.UniquePrior++
					return nil
				}
			}

			key, _, ok := enc.Encode(w)
			if !ok {
				exceptions.Add(w, pos)
				info.ExceptionKMers++
				return nil
			}
			return sorter.Add(key, pos)
		})
		if err != nil {
			if showProgress {
				bar.Abort(true)
				pbs.Wait()
			}
			return nil, err
		}
		if showProgress {
			bar.EwmaIncrBy(1, time.Since(startTime))
		}
	}
	if showProgress {
		pbs.Wait()
	}

	info.Bases = extractor.Bases()
	info.Fingerprint = fingerprint.String()
	err = idx.Finish(info.Bases)
	if err != nil {
		return nil, err
	}
	if outputLog {
		log.Infof("  %s sequences, %s bases, %s k-mers scanned in %s",
			humanize.Comma(int64(info.Sequences)), humanize.Comma(int64(info.Bases)),
			humanize.Comma(int64(info.KMers)), time.Since(timeStart))
		if prior != nil {
			log.Infof("  %s k-mers known unique from the prior map", humanize.Comma(int64(info.UniquePrior)))
		}
		if info.ExceptionKMers > 0 {
			log.Infof("  %s k-mers with bases other than A/C/G/T", humanize.Comma(int64(info.ExceptionKMers)))
		}
	}

	if priorInfo != nil {
		err = checkPriorRunGenome(priorInfo, info.Sequences, info.Bases, info.Fingerprint)
		if err != nil {
			return nil, errors.Wrap(err, opt.PriorMap)
		}
	}

	// ---------------------------------------------------------------
	// map

	builder, err := uniqmap.NewBuilder(info.Bases, opt.PriorMap)
	if err != nil {
		return nil, err
	}
	info.PriorMapCount = builder.PriorCount()

	// ---------------------------------------------------------------
	// merging and output

	if outputLog {
		log.Infof("merging k-mers ...")
	}
	exceptions.Compact()

	w, err := newUniqueWriter(coder, idx, builder, exceptions.Records(), outputs)
	if err != nil {
		return nil, err
	}
	_, err = sorter.Finish(w.Write)
	if err != nil {
		w.Close()
		return nil, errors.Wrap(err, "merge k-mers")
	}
	err = w.Close()
	if err != nil {
		return nil, err
	}
	info.SpillFiles = sorter.Spills()

	info.UniqueNew = w.nBinary + w.nExceptions
	info.UniqueCumulative = info.UniquePrior + info.UniqueNew
	info.NonUnique = info.KMers - info.UniqueCumulative

	err = builder.WriteFile(outputs.Map)
	if err != nil {
		return nil, errors.Wrap(err, "write map")
	}
	err = writeStats(outputs.Stats, info)
	if err != nil {
		return nil, errors.Wrap(err, "write statistics")
	}
	err = writeRunInfo(outputs.Info, info)
	if err != nil {
		return nil, errors.Wrap(err, "write run info")
	}

	if outputLog {
		log.Infof("  %s spill files used", humanize.Comma(int64(info.SpillFiles)))
		log.Infof("  %s new unique k-mers, %s cumulative unique k-mers",
			humanize.Comma(int64(info.UniqueNew)), humanize.Comma(int64(info.UniqueCumulative)))
	}

	return info, nil
}

// scanFile extracts k-mers from sequences of a file.
func scanFile(file string, extractor *genome.Extractor, fingerprint *genomeFingerprint,
	info *RunInfo, fn func(kmer []byte, pos uint32) error) error {

	scanner := genome.NewScanner([]string{file})
	defer scanner.Close()

	var name string
	var bases, w []byte
	var pos uint32
	var ok bool
	var err error
	for {
		name, bases, err = scanner.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return errors.Wrapf(err, "read sequence file %s", file)
		}

		err = extractor.NewSequence(name, bases)
		if err != nil {
			return errors.Wrapf(err, "sequence %s in %s", name, file)
		}
		fingerprint.Add(name, len(bases))
		info.Sequences++

		for {
			w, pos, ok = extractor.Next()
			if !ok {
				break
			}
			if err = fn(w, pos); err != nil {
				return err
			}
		}
	}
	return nil
}
