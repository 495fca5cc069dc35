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
	"strings"
	"time"

	"github.com/broadgsa/uniqmer/uniqmer/cmd/genome"
	"github.com/shenwei356/bio/seq"
	"github.com/spf13/cobra"
)

var gapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "List runs of N in sequences",
	Long: `List runs of N in sequences

Output (tab-delimited):
  1. sequence name
  2. start of the run, 1-based
  3. end of the run, 1-based and inclusive

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

		outFile := getFlagString(cmd, "out-file")

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

		scanner := genome.NewScanner(files)
		defer scanner.Close()

		var name string
		var s []byte
		var nSeqs, nGaps, nBases int
		for {
			name, s, err = scanner.Next()
			if err != nil {
				if err == io.EOF {
					break
				}
				checkError(fmt.Errorf("failed to read %s: %s", scanner.File(), err))
			}
			nSeqs++

			for _, g := range genome.Gaps(s) {
				fmt.Fprintf(outfh, "%s\t%d\t%d\n", name, g[0], g[1])
				nGaps++
				nBases += g[1] - g[0] + 1
			}
		}

		if outputLog {
			log.Infof("%d runs of N (%d bases) found in %d sequences", nGaps, nBases, nSeqs)
		}
	},
}

func init() {
	RootCmd.AddCommand(gapsCmd)

	gapsCmd.Flags().StringP("infile-list", "X", "",
		formatFlagUsage(`File of input file list (one file per line). If given, they are appended to files from CLI arguments.`))

	gapsCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports and recommends a ".gz" suffix ("-" for stdout).`))

	gapsCmd.SetUsageTemplate(usageTemplate("{<seq files> | -X <file list>} [-o out.tsv.gz]"))
}
