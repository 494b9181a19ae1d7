// Copyright (C) The CellCNV Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellcnv

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/kshedden/gonpy"
	log "github.com/sirupsen/logrus"
)

// exportNumpy writes a result bundle as numpy arrays for downstream
// plotting: centered.npy (float64, cells × windows), states.npy (int8,
// same shape, if present), plus cells.tsv and windows.bed sidecars
// describing the axes.
type exportNumpy struct{}

func (cmd *exportNumpy) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "-", "input result bundle `file`")
	outputDir := flags.String("output-dir", ".", "output `directory`")
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
	p := rb.Centered
	nc := len(p.Cells)
	nw := len(p.Windows)

	// Transpose to cell-major: row per cell, column per window.
	centered := make([]float64, nc*nw)
	for w := 0; w < nw; w++ {
		row := p.Row(w)
		for c, v := range row {
			centered[c*nw+w] = v
		}
	}
	err = writeNumpy(*outputDir+"/centered.npy", []int{nc, nw}, centered, nil)
	if err != nil {
		return 1
	}

	if rb.States != nil {
		states := make([]int8, nc*nw)
		for w := 0; w < nw; w++ {
			row := rb.States.Row(w)
			for c, s := range row {
				states[c*nw+w] = s
			}
		}
		err = writeNumpy(*outputDir+"/states.npy", []int{nc, nw}, nil, states)
		if err != nil {
			return 1
		}
	}

	err = cmd.writeSidecars(*outputDir, rb)
	if err != nil {
		return 1
	}
	log.Infof("export-numpy: wrote %d cells × %d windows to %s", nc, nw, *outputDir)
	return 0
}

func writeNumpy(fname string, shape []int, floats []float64, ints []int8) error {
	f, err := os.OpenFile(fname, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	defer f.Close()
	bufw := bufio.NewWriter(f)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return err
	}
	npw.Shape = shape
	if floats != nil {
		err = npw.WriteFloat64(floats)
	} else {
		err = npw.WriteInt8(ints)
	}
	if err != nil {
		return err
	}
	if err = bufw.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// writeSidecars writes the axis labels: cells.tsv (cell, group, cluster)
// and windows.bed (chrom, start, end).
func (cmd *exportNumpy) writeSidecars(dir string, rb *ResultBundle) error {
	clusterOf := map[string]int{}
	if rb.Clusters != nil {
		for i, cell := range rb.Clusters.Cells {
			clusterOf[cell.Name] = rb.Clusters.Cluster[i]
		}
	}
	f, err := os.OpenFile(dir+"/cells.tsv", os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	defer f.Close()
	bufw := bufio.NewWriter(f)
	for _, cell := range rb.Centered.Cells {
		if id, ok := clusterOf[cell.Name]; ok {
			fmt.Fprintf(bufw, "%s\t%s\t%d\n", cell.Name, cell.Group, id)
		} else {
			fmt.Fprintf(bufw, "%s\t%s\t.\n", cell.Name, cell.Group)
		}
	}
	if err = bufw.Flush(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}

	f, err = os.OpenFile(dir+"/windows.bed", os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	defer f.Close()
	bufw = bufio.NewWriter(f)
	for _, win := range rb.Centered.Windows {
		fmt.Fprintf(bufw, "%s\t%d\t%d\n", win.Chrom, win.Start, win.End)
	}
	if err = bufw.Flush(); err != nil {
		return err
	}
	return f.Close()
}
