// Copyright (C) The CellCNV Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellcnv

import (
	"flag"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// merger concatenates the cell axes of matrix bundles that share a gene
// set, e.g. bundles imported batch by batch.
type merger struct {
	outputFilename string
}

func (cmd *merger) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&cmd.outputFilename, "o", "-", "output bundle `file` (.gz for compression)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	if flags.NArg() < 2 {
		err = fmt.Errorf("usage: %s [options] input1 input2 ...", prog)
		return 2
	}

	var genes []GeneLocus
	var cells []Cell
	var parts []*ExpressionMatrix
	for _, infile := range flags.Args() {
		f, ferr := os.Open(infile)
		if ferr != nil {
			err = ferr
			return 1
		}
		m, merr := ReadMatrix(f, isGzName(infile))
		f.Close()
		if merr != nil {
			err = fmt.Errorf("%s: %w", infile, merr)
			return 1
		}
		if genes == nil {
			genes = m.Genes
		} else if !sameGenes(genes, m.Genes) {
			err = fmt.Errorf("%s: gene set differs from %s", infile, flags.Arg(0))
			return 1
		}
		cells = append(cells, m.Cells...)
		parts = append(parts, m)
	}

	nc := len(cells)
	data := make([]float64, len(genes)*nc)
	for g := range genes {
		off := 0
		for _, m := range parts {
			copy(data[g*nc+off:], m.Row(g))
			off += len(m.Cells)
		}
	}
	merged, err := NewExpressionMatrix(genes, cells, data)
	if err != nil {
		return 1
	}
	log.Infof("merge: %d bundles into %d genes × %d cells", len(parts), len(genes), nc)

	var output io.WriteCloser
	if cmd.outputFilename == "-" {
		output = nopCloser{stdout}
	} else {
		output, err = os.OpenFile(cmd.outputFilename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
		if err != nil {
			return 1
		}
		defer output.Close()
	}
	err = WriteMatrix(output, merged, isGzName(cmd.outputFilename))
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}
