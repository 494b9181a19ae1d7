// Copyright (C) The CellCNV Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellcnv

import (
	"math"

	"gopkg.in/check.v1"
)

type filterSuite struct{}

var _ = check.Suite(&filterSuite{})

func (s *filterSuite) TestGeneThreshold(c *check.C) {
	// Gene 0 of each chromosome is silent everywhere and must be
	// dropped before the log transform.
	m := testMatrix(1, 6, 2, 2, func(chrom, gene, cell int) float64 {
		if gene == 0 {
			return 0
		}
		return float64(gene)
	})
	f := filter{MinGeneMean: 0.1, MinCellGenes: 1, Pseudocount: 1}
	out, err := f.Apply(m, 3)
	c.Assert(err, check.IsNil)
	c.Assert(out.Genes, check.HasLen, 5)
	c.Check(out.Genes[0].Name, check.Equals, "G1_2")
	c.Check(out.Cells, check.HasLen, 4)
	// log(count + pseudocount)
	c.Check(out.Value(0, 0), check.Equals, math.Log(2))
	c.Check(out.Value(4, 3), check.Equals, math.Log(6))
	// The input matrix is untouched.
	c.Check(m.Value(0, 0), check.Equals, 0.0)
}

func (s *filterSuite) TestCellThreshold(c *check.C) {
	// obs01 detects nothing and is dropped.
	m := testMatrix(1, 6, 2, 2, func(chrom, gene, cell int) float64 {
		if cell == 3 {
			return 0
		}
		return 5
	})
	f := filter{MinGeneMean: 0.1, MinCellGenes: 1, Pseudocount: 1}
	out, err := f.Apply(m, 3)
	c.Assert(err, check.IsNil)
	c.Assert(out.Cells, check.HasLen, 3)
	for _, cell := range out.Cells {
		c.Check(cell.Name, check.Not(check.Equals), "obs01")
	}
}

func (s *filterSuite) TestScaleGenes(c *check.C) {
	m := testMatrix(1, 6, 2, 2, func(chrom, gene, cell int) float64 {
		return float64(gene*7 + cell*3)
	})
	f := filter{MinGeneMean: 0.1, MinCellGenes: 1, Pseudocount: 1, ScaleGenes: true}
	out, err := f.Apply(m, 3)
	c.Assert(err, check.IsNil)
	for g := range out.Genes {
		row := out.Row(g)
		mean := 0.0
		for _, v := range row {
			mean += v
		}
		mean /= float64(len(row))
		ss := 0.0
		for _, v := range row {
			ss += (v - mean) * (v - mean)
		}
		std := math.Sqrt(ss / float64(len(row)-1))
		c.Check(math.Abs(std-1) < 1e-12, check.Equals, true, check.Commentf("gene %d std %g", g, std))
	}
}

func (s *filterSuite) TestInsufficientData(c *check.C) {
	// Every gene below the mean threshold.
	m := testMatrix(1, 6, 2, 2, func(chrom, gene, cell int) float64 { return 0 })
	f := filter{MinGeneMean: 0.1, MinCellGenes: 0, Pseudocount: 1}
	_, err := f.Apply(m, 3)
	c.Check(err, check.FitsTypeOf, &InsufficientDataError{})
	c.Check(err, check.ErrorMatches, `.*mean expression threshold.*`)

	// Chromosome shorter than one window after filtering.
	m = testMatrix(2, 6, 2, 2, func(chrom, gene, cell int) float64 {
		if chrom == 1 && gene > 2 {
			return 0
		}
		return 5
	})
	_, err = f.Apply(m, 5)
	c.Check(err, check.FitsTypeOf, &InsufficientDataError{})
	c.Check(err, check.ErrorMatches, `.*chromosome chr2 has 3 genes, fewer than window size 5.*`)

	// All reference cells filtered out.
	m = testMatrix(1, 6, 1, 2, func(chrom, gene, cell int) float64 {
		if cell == 0 {
			return 0
		}
		return 5
	})
	f.MinCellGenes = 1
	_, err = f.Apply(m, 3)
	c.Check(err, check.FitsTypeOf, &InsufficientDataError{})
	c.Check(err, check.ErrorMatches, `.*no reference cells remain.*`)
}
