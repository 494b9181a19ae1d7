// Copyright (C) The CellCNV Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellcnv

import (
	"gopkg.in/check.v1"
)

type smoothSuite struct{}

var _ = check.Suite(&smoothSuite{})

func (s *smoothSuite) TestWindowCount(c *check.C) {
	// A chromosome with G genes yields floor((G-W)/S)+1 windows; the
	// partial tail is dropped.
	for _, trial := range []struct {
		genes, window, step, want int
	}{
		{10, 3, 2, 4},
		{10, 3, 3, 3},
		{10, 10, 10, 1},
		{10, 10, 1, 1},
		{100, 10, 10, 10},
		{101, 10, 10, 10},
		{7, 3, 1, 5},
	} {
		m := testMatrix(1, trial.genes, 1, 1, func(chrom, gene, cell int) float64 { return 1 })
		sm := smoother{Window: trial.window, Step: trial.step, Stat: StatMean}
		out, err := sm.Smooth(m)
		c.Assert(err, check.IsNil, check.Commentf("%+v", trial))
		c.Check(out.Windows, check.HasLen, trial.want, check.Commentf("%+v", trial))
	}
}

func (s *smoothSuite) TestChromosomeBoundary(c *check.C) {
	m := testMatrix(3, 7, 1, 1, func(chrom, gene, cell int) float64 { return float64(chrom) })
	sm := smoother{Window: 3, Step: 2, Stat: StatMean}
	out, err := sm.Smooth(m)
	c.Assert(err, check.IsNil)
	c.Assert(out.Windows, check.HasLen, 9) // 3 per chromosome
	for _, w := range out.Windows {
		for j := 0; j < w.Genes; j++ {
			c.Check(m.Genes[w.Gene0+j].Chrom, check.Equals, w.Chrom)
		}
		c.Check(w.Start, check.Equals, m.Genes[w.Gene0].Start)
		c.Check(w.End, check.Equals, m.Genes[w.Gene0+w.Genes-1].End)
	}
	// A window's aggregate only sees its own chromosome.
	for w, win := range out.Windows {
		for _, v := range out.Row(w) {
			want := 0.0
			switch win.Chrom {
			case "chr2":
				want = 1
			case "chr3":
				want = 2
			}
			c.Check(v, check.Equals, want)
		}
	}
}

func (s *smoothSuite) TestMeanAndMedian(c *check.C) {
	vals := []float64{1, 2, 10, 3, 4}
	m := testMatrix(1, 5, 1, 1, func(chrom, gene, cell int) float64 { return vals[gene] })
	sm := smoother{Window: 3, Step: 1, Stat: StatMean}
	out, err := sm.Smooth(m)
	c.Assert(err, check.IsNil)
	c.Assert(out.Windows, check.HasLen, 3)
	c.Check(out.Data[0*2], check.Equals, 13.0/3)
	c.Check(out.Data[1*2], check.Equals, 5.0)
	c.Check(out.Data[2*2], check.Equals, 17.0/3)

	sm.Stat = StatMedian
	out, err = sm.Smooth(m)
	c.Assert(err, check.IsNil)
	c.Check(out.Data[0*2], check.Equals, 2.0)
	c.Check(out.Data[1*2], check.Equals, 3.0)
	c.Check(out.Data[2*2], check.Equals, 4.0)
}

func (s *smoothSuite) TestMedianEvenWindow(c *check.C) {
	vals := []float64{4, 1, 3, 2}
	m := testMatrix(1, 4, 1, 1, func(chrom, gene, cell int) float64 { return vals[gene] })
	sm := smoother{Window: 4, Step: 1, Stat: StatMedian}
	out, err := sm.Smooth(m)
	c.Assert(err, check.IsNil)
	c.Assert(out.Windows, check.HasLen, 1)
	c.Check(out.Data[0], check.Equals, 2.5)
}

func (s *smoothSuite) TestWindowConfigErrors(c *check.C) {
	m := testMatrix(1, 10, 1, 1, func(chrom, gene, cell int) float64 { return 1 })

	_, err := (&smoother{Window: 3, Step: 4, Stat: StatMean}).Smooth(m)
	c.Check(err, check.FitsTypeOf, &WindowConfigError{})
	c.Check(err, check.ErrorMatches, `.*step 4 exceeds window size 3.*`)

	_, err = (&smoother{Window: 0, Step: 1, Stat: StatMean}).Smooth(m)
	c.Check(err, check.FitsTypeOf, &WindowConfigError{})

	_, err = (&smoother{Window: 11, Step: 1, Stat: StatMean}).Smooth(m)
	c.Check(err, check.FitsTypeOf, &WindowConfigError{})
	c.Check(err, check.ErrorMatches, `.*chr1.*`)
}

func (s *smoothSuite) TestThreadCountInvariance(c *check.C) {
	m := testMatrix(2, 25, 3, 3, func(chrom, gene, cell int) float64 {
		return float64((chrom*31 + gene*7 + cell*13) % 17)
	})
	one, err := (&smoother{Window: 5, Step: 2, Stat: StatMean, Threads: 1}).Smooth(m)
	c.Assert(err, check.IsNil)
	many, err := (&smoother{Window: 5, Step: 2, Stat: StatMean, Threads: 8}).Smooth(m)
	c.Assert(err, check.IsNil)
	c.Check(many.Data, check.DeepEquals, one.Data)
	c.Check(many.Windows, check.DeepEquals, one.Windows)
}
