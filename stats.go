// Copyright (C) The CellCNV Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellcnv

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
)

// statscmd summarizes a result bundle as JSON: axis sizes, per-state
// window fractions, cluster sizes, and the reference noise floor (mean
// absolute centered residual over reference cells, which should sit
// near zero when the reference group is clean).
type statscmd struct{}

func (cmd *statscmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "-", "input result bundle `file`")
	outputFilename := flags.String("o", "-", "output JSON `file`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}

	var input io.Reader = stdin
	if *inputFilename != "-" {
		f, ferr := os.Open(*inputFilename)
		if ferr != nil {
			err = ferr
			return 1
		}
		defer f.Close()
		input = f
	}
	rb, err := ReadResult(input, isGzName(*inputFilename))
	if err != nil {
		return 1
	}

	var output io.WriteCloser
	if *outputFilename == "-" {
		output = nopCloser{stdout}
	} else {
		output, err = os.OpenFile(*outputFilename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
		if err != nil {
			return 1
		}
		defer output.Close()
	}
	bufw := bufio.NewWriter(output)
	err = cmd.doStats(bufw, rb)
	if err != nil {
		return 1
	}
	err = bufw.Flush()
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}

func (cmd *statscmd) doStats(output io.Writer, rb *ResultBundle) error {
	var ret struct {
		Cells             int
		ReferenceCells    int
		ObservationCells  int
		Windows           int
		WindowsPerChrom   map[string]int
		ReferenceResidual float64
		StateFractions    map[string]float64 `json:",omitempty"`
		Clusters          int                `json:",omitempty"`
		ClusterSizes      []int              `json:",omitempty"`
	}
	p := rb.Centered
	nc := len(p.Cells)
	ret.Cells = nc
	ref := referenceCells(p.Cells)
	ret.ReferenceCells = len(ref)
	ret.ObservationCells = nc - len(ref)
	ret.Windows = len(p.Windows)
	ret.WindowsPerChrom = map[string]int{}
	for _, win := range p.Windows {
		ret.WindowsPerChrom[win.Chrom]++
	}

	if len(ref) > 0 && len(p.Windows) > 0 {
		neutral := p.Neutral()
		sum := 0.0
		for w := range p.Windows {
			row := p.Row(w)
			for _, c := range ref {
				sum += math.Abs(row[c] - neutral)
			}
		}
		ret.ReferenceResidual = sum / float64(len(ref)*len(p.Windows))
	}

	if rb.States != nil && len(rb.States.States) > 0 {
		counts := map[string]int{}
		for _, s := range rb.States.States {
			counts[rb.States.Name(s)]++
		}
		ret.StateFractions = map[string]float64{}
		for name, n := range counts {
			ret.StateFractions[name] = float64(n) / float64(len(rb.States.States))
		}
	}

	if rb.Clusters != nil {
		ret.Clusters = rb.Clusters.K
		ret.ClusterSizes = make([]int, rb.Clusters.K)
		for _, id := range rb.Clusters.Cluster {
			ret.ClusterSizes[id]++
		}
	}

	return json.NewEncoder(output).Encode(ret)
}
