// Copyright (C) The CellCNV Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellcnv

import (
	"gopkg.in/check.v1"
)

type matrixSuite struct{}

var _ = check.Suite(&matrixSuite{})

func (s *matrixSuite) TestGenomicOrder(c *check.C) {
	genes := []GeneLocus{
		{Name: "g1", Chrom: "chrX", Start: 100, End: 200},
		{Name: "g2", Chrom: "chr10", Start: 100, End: 200},
		{Name: "g3", Chrom: "chr2", Start: 500, End: 600},
		{Name: "g4", Chrom: "chr2", Start: 100, End: 200},
		{Name: "g5", Chrom: "chrMT", Start: 100, End: 200},
		{Name: "g6", Chrom: "chrY", Start: 100, End: 200},
	}
	cells := []Cell{{Name: "c1", Group: GroupReference}, {Name: "c2", Group: GroupObservation}}
	data := make([]float64, len(genes)*len(cells))
	for g := range genes {
		for i := range cells {
			data[g*len(cells)+i] = float64(g*10 + i)
		}
	}
	m, err := NewExpressionMatrix(genes, cells, data)
	c.Assert(err, check.IsNil)

	var order []string
	for _, g := range m.Genes {
		order = append(order, g.Name)
	}
	c.Check(order, check.DeepEquals, []string{"g4", "g3", "g2", "g1", "g6", "g5"})
	// Values follow their genes through the sort.
	c.Check(m.Row(0), check.DeepEquals, []float64{30, 31}) // g4
	c.Check(m.Row(2), check.DeepEquals, []float64{10, 11}) // g2
}

func (s *matrixSuite) TestChromSpans(c *check.C) {
	m := testMatrix(3, 4, 1, 1, func(chrom, gene, cell int) float64 { return 0 })
	spans := m.chromosomes()
	c.Assert(spans, check.HasLen, 3)
	for i, span := range spans {
		c.Check(span.Gene0, check.Equals, i*4)
		c.Check(span.End, check.Equals, (i+1)*4)
	}
}

func (s *matrixSuite) TestValidation(c *check.C) {
	genes := []GeneLocus{{Name: "g1", Chrom: "chr1", Start: 100, End: 200}}
	cells := []Cell{{Name: "c1", Group: GroupReference}, {Name: "c1", Group: GroupObservation}}
	_, err := NewExpressionMatrix(genes, cells, make([]float64, 2))
	c.Check(err, check.ErrorMatches, `.*duplicate cell.*c1.*`)

	cells[1].Name = "c2"
	_, err = NewExpressionMatrix(genes, cells, make([]float64, 3))
	c.Check(err, check.ErrorMatches, `.*\b3\b.*`)
}

func (s *matrixSuite) TestGroupHelpers(c *check.C) {
	cells := []Cell{
		{Name: "a", Group: GroupObservation},
		{Name: "b", Group: GroupReference},
		{Name: "c", Group: "tumor"},
		{Name: "d", Group: GroupReference},
	}
	c.Check(referenceCells(cells), check.DeepEquals, []int{1, 3})
	c.Check(observationCells(cells), check.DeepEquals, []int{0, 2})
	c.Check(cells[1].IsReference(), check.Equals, true)
	c.Check(cells[2].IsReference(), check.Equals, false)
}
