// Copyright (C) The CellCNV Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellcnv

import (
	"fmt"
	"sort"
	"strconv"
)

// Cell group labels. Any label other than GroupReference is treated as
// an observation (sub)group.
const (
	GroupReference   = "reference"
	GroupObservation = "observation"
)

// GeneLocus is one gene's place in the genome.
type GeneLocus struct {
	Name  string
	Chrom string
	Start int
	End   int
}

// Cell is one cell column: identifier plus group label.
type Cell struct {
	Name  string
	Group string
}

// IsReference reports whether the cell belongs to the copy-number-normal
// baseline group.
func (c Cell) IsReference() bool { return c.Group == GroupReference }

// ExpressionMatrix is a genes × cells matrix with genomic gene metadata.
// Rows are sorted by (chromosome, position). It is constructed once and
// not mutated afterward; every downstream stage produces a new artifact.
type ExpressionMatrix struct {
	Genes []GeneLocus
	Cells []Cell
	// Data is gene-major: Data[g*len(Cells)+c] is the value of gene g
	// in cell c.
	Data []float64
}

// NewExpressionMatrix builds a matrix from unordered rows, sorting genes
// by (chromosome, start). data must be gene-major and is reordered along
// with genes.
func NewExpressionMatrix(genes []GeneLocus, cells []Cell, data []float64) (*ExpressionMatrix, error) {
	if len(data) != len(genes)*len(cells) {
		return nil, fmt.Errorf("matrix size mismatch: %d genes × %d cells but %d values", len(genes), len(cells), len(data))
	}
	seen := make(map[string]bool, len(cells))
	for _, cell := range cells {
		if seen[cell.Name] {
			return nil, fmt.Errorf("duplicate cell %q", cell.Name)
		}
		seen[cell.Name] = true
	}
	order := make([]int, len(genes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		gi, gj := genes[order[i]], genes[order[j]]
		if gi.Chrom != gj.Chrom {
			return chromLess(gi.Chrom, gj.Chrom)
		}
		return gi.Start < gj.Start
	})
	nc := len(cells)
	sortedGenes := make([]GeneLocus, len(genes))
	sortedData := make([]float64, len(data))
	for dst, src := range order {
		sortedGenes[dst] = genes[src]
		copy(sortedData[dst*nc:(dst+1)*nc], data[src*nc:(src+1)*nc])
	}
	return &ExpressionMatrix{Genes: sortedGenes, Cells: cells, Data: sortedData}, nil
}

// Value returns the expression of gene g in cell c.
func (m *ExpressionMatrix) Value(g, c int) float64 {
	return m.Data[g*len(m.Cells)+c]
}

// Row returns the per-cell values of gene g as a sub-slice of Data.
func (m *ExpressionMatrix) Row(g int) []float64 {
	return m.Data[g*len(m.Cells) : (g+1)*len(m.Cells)]
}

// chromSpan is a contiguous run of gene rows belonging to one chromosome.
type chromSpan struct {
	Chrom      string
	Gene0, End int // half-open gene index range [Gene0, End)
}

// chromosomes returns the chromosome spans in row order. Rows are
// genomically sorted, so each chromosome occupies one contiguous range.
func (m *ExpressionMatrix) chromosomes() []chromSpan {
	var spans []chromSpan
	for g := 0; g < len(m.Genes); {
		end := g + 1
		for end < len(m.Genes) && m.Genes[end].Chrom == m.Genes[g].Chrom {
			end++
		}
		spans = append(spans, chromSpan{Chrom: m.Genes[g].Chrom, Gene0: g, End: end})
		g = end
	}
	return spans
}

// referenceCells returns the column indexes of reference-group cells.
func referenceCells(cells []Cell) []int {
	var ref []int
	for i, c := range cells {
		if c.IsReference() {
			ref = append(ref, i)
		}
	}
	return ref
}

// observationCells returns the column indexes of non-reference cells.
func observationCells(cells []Cell) []int {
	var obs []int
	for i, c := range cells {
		if !c.IsReference() {
			obs = append(obs, i)
		}
	}
	return obs
}

// chromLess orders chromosome names the way a genome browser does:
// numeric names numerically, then X, Y, M, then anything else
// lexically. A "chr" prefix is ignored.
func chromLess(a, b string) bool {
	ra, rb := chromRank(a), chromRank(b)
	if ra != rb {
		return ra < rb
	}
	return a < b
}

func chromRank(name string) int {
	if len(name) > 3 && (name[:3] == "chr" || name[:3] == "CHR") {
		name = name[3:]
	}
	if n, err := strconv.Atoi(name); err == nil {
		return n
	}
	switch name {
	case "X":
		return 1000
	case "Y":
		return 1001
	case "M", "MT":
		return 1002
	}
	return 1003
}
