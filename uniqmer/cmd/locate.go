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
	"strings"
	"time"

	"github.com/broadgsa/uniqmer/uniqmer/util"
	"github.com/shenwei356/bio/seq"
	"github.com/spf13/cobra"
)

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Locate k-mers in a genome",
	Long: `Locate k-mers in a genome

Input:
  A list of k-mers of the same size, given via -k/--kmer-file, one per line,
  only the first column of tab-delimited lines is used.

Output (tab-delimited):
  1. kmer,    the query k-mer
  2. seq,     sequence name
  3. pos,     1-based position of the k-mer on the forward strand
  4. strand,  F for the forward strand, R for the reverse complement strand

Attentions:
  1. K-mers with bases other than A/C/G/T are not supported.
  2. The order of input files should be the same as in 'uniqmer count'.

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

		kmerFile := expandPath(getFlagString(cmd, "kmer-file"))
		if kmerFile == "" {
			checkError(fmt.Errorf("flag -k/--kmer-file needed"))
		}
		outFile := getFlagString(cmd, "out-file")
		noHeader := getFlagBool(cmd, "no-header")

		queries, err := readKmerList(kmerFile)
		checkError(err)
		util.UniqStrings(&queries)
		if outputLog {
			log.Infof("%d unique k-mers loaded from %s", len(queries), kmerFile)
		}

		files := getFileListFromArgsAndFile(cmd, args, true, "infile-list", true)
		if outputLog && len(files) == 1 && isStdin(files[0]) {
			log.Info("no files given, reading from stdin")
		}

		// ---------------------------------------------------------------
		// output file handler

		outfh, gw, w, err := outStream(outFile, strings.HasSuffix(outFile, ".gz"), opt.CompressionLevel)
		checkError(err)
		defer func() {
			outfh.Flush()
			if gw != nil {
				gw.Close()
			}
			w.Close()
		}()

		if !noHeader {
			fmt.Fprintf(outfh, "kmer\tseq\tpos\tstrand\n")
		}

		var nHits int
		found := make(map[string]struct{}, len(queries))
		err = LocateKMers(files, queries, func(h *KMerHit) error {
			nHits++
			found[h.Query] = struct{}{}
			_, err := fmt.Fprintf(outfh, "%s\t%s\t%d\t%c\n", h.Query, h.Name, h.Coord, h.Strand)
			return err
		})
		checkError(err)

		if outputLog {
			log.Infof("%d hits of %d/%d k-mers found", nHits, len(found), len(queries))
		}
	},
}

func init() {
	RootCmd.AddCommand(locateCmd)

	locateCmd.Flags().StringP("kmer-file", "k", "",
		formatFlagUsage(`File of k-mers (one k-mer per line, or the first column of a tab-delimited file).`))

	locateCmd.Flags().StringP("infile-list", "X", "",
		formatFlagUsage(`File of input file list (one file per line). If given, they are appended to files from CLI arguments.`))

	locateCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports and recommends a ".gz" suffix ("-" for stdout).`))

	locateCmd.Flags().BoolP("no-header", "H", false,
		formatFlagUsage(`Do not print the header line.`))

	locateCmd.SetUsageTemplate(usageTemplate("-k <kmer file> {<seq files> | -X <file list>} [-o out.tsv.gz]"))
}
