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
	"path/filepath"
	"sort"
	"strings"

	"github.com/broadgsa/uniqmer/uniqmer/util"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Summarize runs of different k in an output directory",
	Long: `Summarize runs of different k in an output directory

Run information files (unique_<k>_mers_info.toml) are read and
shown in one table, with a row for each k.

Percentages are relative to the number of k-mers of the same k.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		outDir := expandPath(getFlagString(cmd, "out-dir"))
		if outDir == "" {
			checkError(fmt.Errorf("flag -O/--out-dir needed"))
		}
		outFile := getFlagString(cmd, "out-file")
		humanReadable := getFlagBool(cmd, "human-readable")

		infos, err := readRunInfos(outDir)
		checkError(err)
		if len(infos) == 0 {
			checkError(fmt.Errorf("no run information files found in %s", outDir))
		}

		outfh, gw, w, err := outStream(outFile, strings.HasSuffix(outFile, ".gz"), opt.CompressionLevel)
		checkError(err)
		defer func() {
			outfh.Flush()
			if gw != nil {
				gw.Close()
			}
			w.Close()
		}()

		number := func(n uint64) string {
			if humanReadable {
				return humanize.Comma(int64(n))
			}
			return fmt.Sprintf("%d", n)
		}

		outfh.WriteString("k\tsequences\tbases\tkmers\tunique_prior\tunique_new\tunique_cumulative\tnon_unique\tcumulative_pct\tprior_map\n")
		for _, info := range infos {
			prior := info.PriorMap
			if prior == "" {
				prior = "-"
			}
			fmt.Fprintf(outfh, "%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%.1f\t%s\n",
				info.K, info.Sequences, number(info.Bases), number(info.KMers),
				number(info.UniquePrior), number(info.UniqueNew), number(info.UniqueCumulative),
				number(info.NonUnique), util.Percent(info.UniqueCumulative, info.KMers), prior)
		}
	},
}

// readRunInfos reads all run information files in an output directory,
// sorted by k.
func readRunInfos(outDir string) ([]*RunInfo, error) {
	isDir, err := pathutil.DirExists(outDir)
	if err != nil {
		return nil, errors.Wrap(err, outDir)
	}
	if !isDir {
		return nil, fmt.Errorf("output directory not found: %s", outDir)
	}

	files, err := filepath.Glob(filepath.Join(outDir, "unique_*_mers"+fileExtInfo))
	if err != nil {
		return nil, err
	}

	infos := make([]*RunInfo, 0, len(files))
	var info *RunInfo
	for _, file := range files {
		info, err = readRunInfo(file)
		if err != nil {
			return nil, err
		}
		if filePrefix(outDir, info.K)+fileExtInfo != file {
			log.Warningf("k (%d) does not match the file name: %s", info.K, file)
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].K < infos[j].K })
	return infos, nil
}

func init() {
	RootCmd.AddCommand(infoCmd)

	infoCmd.Flags().StringP("out-dir", "O", "",
		formatFlagUsage(`Output directory of 'uniqmer count'.`))

	infoCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports the ".gz" suffix ("-" for stdout).`))

	infoCmd.Flags().BoolP("human-readable", "H", false,
		formatFlagUsage(`Print numbers with thousands separators.`))

	infoCmd.SetUsageTemplate(usageTemplate("-O <out dir> [-o out.tsv]"))
}
