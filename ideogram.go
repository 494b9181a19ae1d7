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
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

// ideogramcmd converts a result bundle into Ideogram.js annotation JSON:
// one annotation per genomic window carrying the mean centered value
// over all cells and over each cluster, grouped by chromosome.
//
// Annotation format: https://github.com/eweitz/ideogram/wiki/Annotations
type ideogramcmd struct{}

type ideogramTrack struct {
	Chr    string          `json:"chr"`
	Annots [][]interface{} `json:"annots"`
}

type ideogramAnnots struct {
	Keys   []string        `json:"keys"`
	Annots []ideogramTrack `json:"annots"`
}

func (cmd *ideogramcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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

	annots := cmd.build(rb)

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
	err = json.NewEncoder(bufw).Encode(annots)
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

func (cmd *ideogramcmd) build(rb *ResultBundle) *ideogramAnnots {
	p := rb.Centered
	nc := len(p.Cells)

	// Column index sets: all cells, then one set per cluster id.
	nClusters := 0
	if rb.Clusters != nil {
		nClusters = rb.Clusters.K
	}
	sets := make([][]int, 1+nClusters)
	sets[0] = make([]int, nc)
	for c := range sets[0] {
		sets[0][c] = c
	}
	if rb.Clusters != nil {
		col := map[string]int{}
		for c, cell := range p.Cells {
			col[cell.Name] = c
		}
		for i, cell := range rb.Clusters.Cells {
			id := rb.Clusters.Cluster[i]
			sets[1+id] = append(sets[1+id], col[cell.Name])
		}
	}

	keys := []string{"name", "start", "length", "all"}
	for i := 0; i < nClusters; i++ {
		keys = append(keys, fmt.Sprintf("cluster%d", i))
	}

	out := &ideogramAnnots{Keys: keys}
	trackOf := map[string]int{}
	vals := make([]float64, nc)
	for w, win := range p.Windows {
		row := p.Row(w)
		annot := []interface{}{win.Name(), win.Start, win.End - win.Start}
		for _, set := range sets {
			vals = vals[:0]
			for _, c := range set {
				vals = append(vals, row[c])
			}
			mean := 0.0
			if len(vals) > 0 {
				mean = stat.Mean(vals, nil)
			}
			annot = append(annot, mean)
		}
		chr := strings.TrimPrefix(win.Chrom, "chr")
		ti, ok := trackOf[chr]
		if !ok {
			ti = len(out.Annots)
			trackOf[chr] = ti
			out.Annots = append(out.Annots, ideogramTrack{Chr: chr})
		}
		out.Annots[ti].Annots = append(out.Annots[ti].Annots, annot)
	}
	log.Infof("ideogram: %d annotations across %d chromosomes, %d cluster tracks", len(p.Windows), len(out.Annots), nClusters)
	return out
}
