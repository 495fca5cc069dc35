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
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/broadgsa/uniqmer/uniqmer/cmd/extsort"
	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Find unique k-mers and build the uniqueness map",
	Long: `Find unique k-mers and build the uniqueness map

A k-mer is unique if it appears exactly once in the genome, counting both
strands, i.e., a k-mer and its reverse complement are the same k-mer.
K-mers are extracted from all sequences of all input files, which are
treated as one genome. K-mers never span sequence boundaries or Ns.
K-mers with other non-ACGT bases are kept as raw texts and they are
not reverse complemented.

Input:
  1. Input plain or gzipped FASTA/Q files can be given via positional
     arguments or the flag -X/--infile-list with the list of input files,
  2. Or a directory containing sequence files via the flag -I/--in-dir,
     with multiple-level sub-directories allowed. A regular expression
     for matching sequencing files is available via the flag -r/--file-regexp.
  Files are read in the given order, and the order decides global positions,
  so runs of successive k must use the same files in the same order.

Output (in the directory -O/--out-dir):
  unique_<k>_mers.txt         unique k-mers: k-mer, sequence, 1-based position
  unique_<k>_mers.bin         unique k-mers in binary format
  unique_<k>_mers.extra       unique k-mers with bases other than A/C/G/T
  unique_<k>_mers_map.bin     uniqueness map, 2 bits for each base:
                                bit 0: the k-mer starting here is newly unique at k
                                bit 1: the k-mer starting here is unique at some k' <= k
  unique_<k>_mers_stats.txt   statistics
  unique_<k>_mers_info.toml   parameters and statistics

Prior map:
  If unique_<k-1>_mers_map.bin exists in the output directory, or a map is
  given via --prior-map, positions already unique at k-1 are skipped, and
  their cumulative bits are carried forward to the new map.

Memory and disk:
  At most -b/--batch-size k-mers are kept in memory. A full batch is sorted
  and deduplicated, and written to a spill file in the output directory
  (or --tmp-dir) if it's still larger than --spill-factor * batch size.
  Spill files are merged at last, and removed unless --keep-spill is given.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		seq.ValidateSeq = false

		var fhLog *os.File
		if opt.Log2File {
			fhLog = addLog(opt.LogFile, opt.Verbose)
		}
		outputLog := opt.Verbose || opt.Log2File
		timeStart := time.Now()
		defer func() {
			if outputLog {
				log.Info()
				log.Infof("elapsed time: %s", time.Since(timeStart))
				log.Info()
			}
			if opt.Log2File {
				fhLog.Close()
			}
		}()

		// ---------------------------------------------------------------
		// basic flags

		k := getFlagNonNegativeInt(cmd, "kmer")
		if k == 0 {
			checkError(fmt.Errorf("flag -k/--kmer needed"))
		}
		batchSize := getFlagNonNegativeInt(cmd, "batch-size")
		if batchSize == 0 {
			checkError(fmt.Errorf("flag -b/--batch-size needed"))
		}
		spillFactor := getFlagFloat64(cmd, "spill-factor")
		maxOpenFiles := getFlagPositiveInt(cmd, "max-open-files")
		oldFormat := getFlagBool(cmd, "old-format")
		keepSpill := getFlagBool(cmd, "keep-spill")
		compressSpill := getFlagBool(cmd, "compress-spill")
		tmpDir := expandPath(getFlagString(cmd, "tmp-dir"))

		outDir := expandPath(getFlagString(cmd, "out-dir"))
		force := getFlagBool(cmd, "force")
		skipFileCheck := getFlagBool(cmd, "skip-file-check")

		if outDir == "" {
			checkError(fmt.Errorf("flag -O/--out-dir is needed"))
		}
		outDir = filepath.Clean(outDir)

		var err error

		// ---------------------------------------------------------------
		// prior map

		priorMap := expandPath(getFlagString(cmd, "prior-map"))
		noPriorMap := getFlagBool(cmd, "no-prior-map")
		if noPriorMap {
			if priorMap != "" {
				checkError(fmt.Errorf("flag --prior-map and --no-prior-map are incompatible"))
			}
		} else if priorMap == "" {
			if k > 1 {
				file := defaultPriorMap(outDir, k)
				existed, err := pathutil.Exists(file)
				checkError(errors.Wrap(err, file))
				if existed {
					priorMap = file
				}
			}
		} else {
			existed, err := pathutil.Exists(priorMap)
			checkError(errors.Wrap(err, priorMap))
			if !existed {
				checkError(fmt.Errorf("prior map not found: %s", priorMap))
			}
		}

		// ---------------------------------------------------------------
		// input files

		inDir := expandPath(getFlagString(cmd, "in-dir"))
		readFromDir := inDir != ""
		if readFromDir {
			var isDir bool
			isDir, err = pathutil.IsDir(inDir)
			if err != nil {
				checkError(errors.Wrapf(err, "checking -I/--in-dir"))
			}
			if !isDir {
				checkError(fmt.Errorf("value of -I/--in-dir should be a directory: %s", inDir))
			}
			if filepath.Clean(inDir) == outDir {
				checkError(fmt.Errorf("intput and output paths should not be the same: %s", outDir))
			}
		}

		reFileStr := getFlagString(cmd, "file-regexp")
		var reFile *regexp.Regexp
		if reFileStr != "" {
			if !reIgnoreCase.MatchString(reFileStr) {
				reFileStr = reIgnoreCaseStr + reFileStr
			}
			reFile, err = regexp.Compile(reFileStr)
			checkError(errors.Wrapf(err, "failed to parse regular expression for matching file: %s", reFileStr))
		}

		if outputLog {
			log.Infof("UniqMer v%s", VERSION)
			log.Info()
			log.Info("checking input files ...")
		}

		var files []string
		if readFromDir {
			files, err = getFileListFromDir(inDir, reFile, opt.NumCPUs)
			if err != nil {
				checkError(errors.Wrapf(err, "walking dir: %s", inDir))
			}
			if len(files) == 0 {
				log.Warningf("  no files matching regular expression: %s", reFileStr)
			}
			sortFiles(files)
		} else {
			files = getFileListFromArgsAndFile(cmd, args, !skipFileCheck, "infile-list", !skipFileCheck)
			if outputLog {
				if len(files) == 1 && isStdin(files[0]) {
					log.Info("  no files given, reading from stdin")
				}
			}
		}
		if len(files) < 1 {
			checkError(fmt.Errorf("FASTA/Q files needed"))
		} else if outputLog {
			log.Infof("  %d input file(s) given", len(files))
		}

		// ---------------------------------------------------------------
		// options

		copt := &CountOptions{
			NumCPUs:  opt.NumCPUs,
			Verbose:  opt.Verbose,
			Log2File: opt.Log2File,
			Force:    force,

			K:         k,
			OldFormat: oldFormat,

			BatchSize:     batchSize,
			SpillFactor:   spillFactor,
			MaxOpenFiles:  maxOpenFiles,
			TmpDir:        tmpDir,
			CompressSpill: compressSpill,
			KeepSpill:     keepSpill,

			OutDir:   outDir,
			PriorMap: priorMap,
		}
		checkError(CheckCountOptions(copt))

		if outputLog {
			log.Info()
			log.Infof("-------------------- [main parameters] --------------------")
			log.Infof("k-mer size: %d", k)
			log.Infof("binary format: %s", map[bool]string{true: "old (fixed 64-bit words)", false: "16-bit words"}[oldFormat])
			log.Infof("batch size: %d, spill factor: %.2f", batchSize, spillFactor)
			log.Infof("output directory: %s", outDir)
			if priorMap != "" {
				log.Infof("prior map: %s", priorMap)
			} else {
				log.Infof("prior map: none")
			}
			log.Infof("-------------------- [main parameters] --------------------")
			log.Info()
		}

		// ---------------------------------------------------------------

		info, err := CountKMers(files, copt)
		if err != nil {
			checkError(fmt.Errorf("failed to count unique k-mers: %s", err))
		}

		if outputLog {
			log.Info()
			log.Infof("finished counting unique %d-mers of %d sequences from %d files", k, info.Sequences, len(files))
			log.Infof("output saved: %s", filePrefix(outDir, k)+".*")
		}
	},
}

func init() {
	RootCmd.AddCommand(countCmd)

	// -----------------------------  input  -----------------------------

	countCmd.Flags().StringP("infile-list", "X", "",
		formatFlagUsage(`File of input file list (one file per line). If given, they are appended to files from CLI arguments.`))

	countCmd.Flags().StringP("in-dir", "I", "",
		formatFlagUsage(`Directory containing FASTA/Q files. Directory symlinks are followed.`))

	countCmd.Flags().StringP("file-regexp", "r", `\.(f[aq](st[aq])?|fna)(.gz)?$`,
		formatFlagUsage(`Regular expression for matching sequence files in -I/--in-dir, case ignored.`))

	countCmd.Flags().BoolP("skip-file-check", "S", false,
		formatFlagUsage(`Skip input file checking when given files or a file list.`))

	// -----------------------------  output  -----------------------------

	countCmd.Flags().StringP("out-dir", "O", "",
		formatFlagUsage(`Output directory, shared by runs of different k.`))

	countCmd.Flags().BoolP("force", "", false,
		formatFlagUsage(`Overwrite existing output files of the same k.`))

	countCmd.Flags().BoolP("old-format", "", false,
		formatFlagUsage(`Write binary k-mers in the old format with fixed 64-bit words (k <= 62).`))

	// -----------------------------  k-mers  -----------------------------

	countCmd.Flags().IntP("kmer", "k", 0,
		formatFlagUsage(`K-mer size.`))

	countCmd.Flags().StringP("prior-map", "", "",
		formatFlagUsage(`Uniqueness map of k-1. By default, unique_<k-1>_mers_map.bin in the output directory is used if it exists.`))

	countCmd.Flags().BoolP("no-prior-map", "", false,
		formatFlagUsage(`Do not use any prior map.`))

	// -----------------------------  external sorting  -----------------------------

	countCmd.Flags().IntP("batch-size", "b", 0,
		formatFlagUsage(`Maximum number of k-mers kept in memory.`))

	countCmd.Flags().Float64P("spill-factor", "", extsort.DefaultSpillFactor,
		formatFlagUsage(`Write a sorted batch to a spill file if it still has more than spill-factor * batch-size k-mers after deduplication.`))

	countCmd.Flags().StringP("tmp-dir", "", "",
		formatFlagUsage(`Directory for spill files. By default, the output directory is used.`))

	countCmd.Flags().BoolP("compress-spill", "", false,
		formatFlagUsage(`Compress spill files with zstd.`))

	countCmd.Flags().BoolP("keep-spill", "", false,
		formatFlagUsage(`Keep spill files.`))

	countCmd.Flags().IntP("max-open-files", "", 512,
		formatFlagUsage(`Maximum opened files, used in merging spill files.`))

	countCmd.SetUsageTemplate(usageTemplate("-k <k> -b <batch size> {[-I <seqs dir>] | <seq files> | -X <file list>} -O <out dir>"))
}
