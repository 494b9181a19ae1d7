// Copyright (C) The CellCNV Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellcnv

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// importer reads a raw counts table plus gene-position and cell-group
// metadata, and writes a matrix bundle for the run command.
type importer struct {
	matrixFilename  string
	genePosFilename string
	groupsFilename  string
	referenceLabels string
	outputFilename  string
}

func (cmd *importer) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	flags.StringVar(&cmd.matrixFilename, "matrix", "-", "counts `file`: TSV, gene rows × cell columns, header row of cell names")
	flags.StringVar(&cmd.genePosFilename, "gene-pos", "", "genomic position `file`: gene, chromosome, start, stop")
	flags.StringVar(&cmd.groupsFilename, "cell-groups", "", "cell annotation `file`: cell, group label")
	flags.StringVar(&cmd.referenceLabels, "reference", GroupReference, "comma-separated group `labels` to treat as the reference set")
	flags.StringVar(&cmd.outputFilename, "o", "-", "output bundle `file` (.gz for compression)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	if cmd.genePosFilename == "" || cmd.groupsFilename == "" {
		err = fmt.Errorf("-gene-pos and -cell-groups are required")
		return 2
	}

	if *pprof != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprof, nil))
		}()
	}

	loci, err := readGenePositions(cmd.genePosFilename)
	if err != nil {
		return 1
	}
	groups, err := readCellGroups(cmd.groupsFilename)
	if err != nil {
		return 1
	}
	refLabel := map[string]bool{}
	for _, l := range strings.Split(cmd.referenceLabels, ",") {
		refLabel[strings.TrimSpace(l)] = true
	}

	var input io.Reader = stdin
	if cmd.matrixFilename != "-" {
		f, ferr := os.Open(cmd.matrixFilename)
		if ferr != nil {
			err = ferr
			return 1
		}
		defer f.Close()
		input = f
	}
	m, err := cmd.readCounts(input, loci, groups, refLabel)
	if err != nil {
		return 1
	}

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
	err = WriteMatrix(output, m, isGzName(cmd.outputFilename))
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}

// readCounts parses the counts TSV, attaching genomic loci and group
// labels. Genes without a known position are dropped with a warning.
func (cmd *importer) readCounts(input io.Reader, loci map[string]GeneLocus, groups map[string]string, refLabel map[string]bool) (*ExpressionMatrix, error) {
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 1<<20), 1<<28)
	if !scanner.Scan() {
		return nil, fmt.Errorf("%s: empty counts table", cmd.matrixFilename)
	}
	header := strings.Split(strings.TrimRight(scanner.Text(), "\r\n"), "\t")
	if len(header) > 0 && (header[0] == "" || header[0] == "gene" || header[0] == "gene_id") {
		header = header[1:]
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("%s: no cell columns", cmd.matrixFilename)
	}
	cells := make([]Cell, len(header))
	for i, name := range header {
		label, ok := groups[name]
		if !ok {
			return nil, fmt.Errorf("cell %q has no group annotation", name)
		}
		if refLabel[label] {
			label = GroupReference
		}
		cells[i] = Cell{Name: name, Group: label}
	}

	var genes []GeneLocus
	var data []float64
	unplaced := 0
	for lineno := 2; scanner.Scan(); lineno++ {
		fields := strings.Split(strings.TrimRight(scanner.Text(), "\r\n"), "\t")
		if len(fields) == 1 && fields[0] == "" {
			continue
		}
		if len(fields) != len(cells)+1 {
			return nil, fmt.Errorf("%s line %d: %d fields, expected %d", cmd.matrixFilename, lineno, len(fields), len(cells)+1)
		}
		locus, ok := loci[fields[0]]
		if !ok {
			unplaced++
			continue
		}
		genes = append(genes, locus)
		for _, field := range fields[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", cmd.matrixFilename, lineno, err)
			}
			data = append(data, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if unplaced > 0 {
		log.Warnf("import: dropped %d genes with no genomic position", unplaced)
	}
	log.Infof("import: %d genes × %d cells", len(genes), len(cells))
	return NewExpressionMatrix(genes, cells, data)
}

// readGenePositions reads the gene / chromosome / start / stop table
// (the genomic position format used for inferCNV-style inputs).
func readGenePositions(fname string) (map[string]GeneLocus, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	loci := map[string]GeneLocus{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1<<20), 1<<26)
	for lineno := 1; scanner.Scan(); lineno++ {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 4 {
			return nil, fmt.Errorf("%s line %d: expected gene, chromosome, start, stop", fname, lineno)
		}
		start, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", fname, lineno, err)
		}
		stop, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", fname, lineno, err)
		}
		loci[fields[0]] = GeneLocus{Name: fields[0], Chrom: fields[1], Start: start, End: stop}
	}
	return loci, scanner.Err()
}

// readCellGroups reads the cell / group-label table.
func readCellGroups(fname string) (map[string]string, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	groups := map[string]string{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1<<20), 1<<26)
	for lineno := 1; scanner.Scan(); lineno++ {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return nil, fmt.Errorf("%s line %d: expected cell, group", fname, lineno)
		}
		groups[fields[0]] = fields[1]
	}
	return groups, scanner.Err()
}
