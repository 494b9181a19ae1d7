// Copyright (C) The CellCNV Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellcnv

import (
	"flag"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

// filter removes low-signal genes and cells from a raw count matrix and
// applies the log transform. The input matrix is never modified.
type filter struct {
	MinGeneMean  float64 // drop genes whose mean raw count is below this
	MinCellGenes int     // drop cells detecting fewer genes than this
	Pseudocount  float64 // log(x + pseudocount)
	ScaleGenes   bool    // scale each gene to unit variance after log
}

func (f *filter) Flags(flags *flag.FlagSet) {
	flags.Float64Var(&f.MinGeneMean, "min-gene-mean", 0.1, "drop genes with mean raw count below `X`")
	flags.IntVar(&f.MinCellGenes, "min-cell-genes", 1, "drop cells with fewer than `N` detected genes")
	flags.Float64Var(&f.Pseudocount, "pseudocount", 1, "pseudocount `X` added before log transform")
	flags.BoolVar(&f.ScaleGenes, "scale-genes", false, "scale each gene to unit variance after log transform")
}

// Apply returns a new matrix with failing genes/cells removed and values
// log-transformed. window is the smoothing window size; a chromosome left
// with fewer genes than one window is an InsufficientDataError, as is a
// cell group left empty.
func (f *filter) Apply(m *ExpressionMatrix, window int) (*ExpressionMatrix, error) {
	nc := len(m.Cells)

	keepGene := make([]bool, len(m.Genes))
	nGenes := 0
	for g := range m.Genes {
		if stat.Mean(m.Row(g), nil) >= f.MinGeneMean {
			keepGene[g] = true
			nGenes++
		}
	}

	keepCell := make([]bool, nc)
	nCells := 0
	for c := 0; c < nc; c++ {
		detected := 0
		for g := range m.Genes {
			if keepGene[g] && m.Value(g, c) > 0 {
				detected++
			}
		}
		if detected >= f.MinCellGenes {
			keepCell[c] = true
			nCells++
		}
	}

	if nGenes == 0 {
		return nil, &InsufficientDataError{Detail: "no genes pass the mean expression threshold"}
	}
	cells := make([]Cell, 0, nCells)
	for c, keep := range keepCell {
		if keep {
			cells = append(cells, m.Cells[c])
		}
	}
	if len(referenceCells(cells)) == 0 {
		return nil, &InsufficientDataError{Detail: "no reference cells remain"}
	}
	if len(observationCells(cells)) == 0 {
		return nil, &InsufficientDataError{Detail: "no observation cells remain"}
	}

	genes := make([]GeneLocus, 0, nGenes)
	data := make([]float64, 0, nGenes*nCells)
	for g := range m.Genes {
		if !keepGene[g] {
			continue
		}
		genes = append(genes, m.Genes[g])
		row := m.Row(g)
		for c, keep := range keepCell {
			if keep {
				data = append(data, math.Log(row[c]+f.Pseudocount))
			}
		}
	}
	out := &ExpressionMatrix{Genes: genes, Cells: cells, Data: data}

	if f.ScaleGenes {
		for g := range out.Genes {
			row := out.Row(g)
			_, std := stat.MeanStdDev(row, nil)
			if std > 0 {
				for i, v := range row {
					row[i] = v / std
				}
			}
		}
	}

	for _, span := range out.chromosomes() {
		if n := span.End - span.Gene0; n < window {
			return nil, &InsufficientDataError{Detail: fmt.Sprintf("chromosome %s has %d genes, fewer than window size %d", span.Chrom, n, window)}
		}
	}

	log.Infof("filter: kept %d/%d genes, %d/%d cells", nGenes, len(m.Genes), nCells, nc)
	return out, nil
}
