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
	"strconv"
)

// exporter writes the centered profile (or the state calls) of a result
// bundle as TSV: one row per genomic window, one column per cell.
type exporter struct {
	states bool
}

func (cmd *exporter) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "-", "input result bundle `file`")
	outputFilename := flags.String("o", "-", "output TSV `file`")
	flags.BoolVar(&cmd.states, "states", false, "export state calls instead of centered values")
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
	if cmd.states && rb.States == nil {
		err = fmt.Errorf("result bundle has no state calls")
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
	err = cmd.export(bufw, rb)
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

func (cmd *exporter) export(out io.Writer, rb *ResultBundle) error {
	p := rb.Centered
	fmt.Fprint(out, "CHROM\tSTART\tEND")
	for _, cell := range p.Cells {
		fmt.Fprintf(out, "\t%s", cell.Name)
	}
	fmt.Fprint(out, "\n")
	for w, win := range p.Windows {
		fmt.Fprintf(out, "%s\t%d\t%d", win.Chrom, win.Start, win.End)
		if cmd.states {
			for _, s := range rb.States.Row(w) {
				fmt.Fprintf(out, "\t%s", rb.States.Name(s))
			}
		} else {
			for _, v := range p.Row(w) {
				fmt.Fprintf(out, "\t%s", strconv.FormatFloat(v, 'g', 6, 64))
			}
		}
		if _, err := fmt.Fprint(out, "\n"); err != nil {
			return err
		}
	}
	return nil
}
