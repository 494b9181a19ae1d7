// Copyright (C) The CellCNV Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellcnv

import (
	"gopkg.in/check.v1"
)

type centerSuite struct{}

var _ = check.Suite(&centerSuite{})

// testProfile builds a 3-window profile for 2 reference cells and 1
// observation cell, window-major.
func testProfile() *SmoothedProfile {
	return &SmoothedProfile{
		Windows: []GenomeWindow{
			{Chrom: "chr1", Start: 1000, End: 3500},
			{Chrom: "chr1", Start: 2000, End: 4500},
			{Chrom: "chr2", Start: 1000, End: 3500},
		},
		Cells: []Cell{
			{Name: "ref00", Group: GroupReference},
			{Name: "ref01", Group: GroupReference},
			{Name: "obs00", Group: GroupObservation},
		},
		Data: []float64{
			2, 4, 5, // window 0
			1, 1, 1, // window 1
			0, 0, 7, // window 2
		},
	}
}

func (s *centerSuite) TestDifference(c *check.C) {
	cc := centerer{Mode: CenterDifference, Stat: StatMean}
	out, err := cc.Center(testProfile())
	c.Assert(err, check.IsNil)
	c.Check(out.Baseline, check.DeepEquals, []float64{3, 1, 0})
	c.Check(out.Data, check.DeepEquals, []float64{
		-1, 1, 2,
		0, 0, 0,
		0, 0, 7,
	})
	c.Check(out.Neutral(), check.Equals, 0.0)
}

func (s *centerSuite) TestRatio(c *check.C) {
	cc := centerer{Mode: CenterRatio, Stat: StatMean}
	out, err := cc.Center(testProfile())
	c.Assert(err, check.IsNil)
	c.Check(out.Baseline, check.DeepEquals, []float64{3, 1, 0})
	c.Check(out.Data[0:3], check.DeepEquals, []float64{2.0 / 3, 4.0 / 3, 5.0 / 3})
	c.Check(out.Data[3:6], check.DeepEquals, []float64{1, 1, 1})
	// Zero baseline leaves the window at the neutral ratio.
	c.Check(out.Data[6:9], check.DeepEquals, []float64{1, 1, 1})
	c.Check(out.Neutral(), check.Equals, 1.0)
}

func (s *centerSuite) TestMedianBaseline(c *check.C) {
	p := testProfile()
	p.Cells = []Cell{
		{Name: "ref00", Group: GroupReference},
		{Name: "ref01", Group: GroupReference},
		{Name: "ref02", Group: GroupReference},
		{Name: "obs00", Group: GroupObservation},
	}
	p.Data = []float64{
		2, 4, 9, 5,
		1, 1, 1, 1,
		0, 0, 8, 7,
	}
	cc := centerer{Mode: CenterDifference, Stat: StatMedian}
	out, err := cc.Center(p)
	c.Assert(err, check.IsNil)
	// Median of {2, 4, 9}, {1, 1, 1}, {0, 0, 8}.
	c.Check(out.Baseline, check.DeepEquals, []float64{4, 1, 0})
}

func (s *centerSuite) TestObservationCellsCannotMoveBaseline(c *check.C) {
	cc := centerer{Mode: CenterDifference, Stat: StatMean}
	p1 := testProfile()
	out1, err := cc.Center(p1)
	c.Assert(err, check.IsNil)

	p2 := testProfile()
	for w := range p2.Windows {
		p2.Row(w)[2] += 100
	}
	out2, err := cc.Center(p2)
	c.Assert(err, check.IsNil)
	c.Check(out2.Baseline, check.DeepEquals, out1.Baseline)
}

func (s *centerSuite) TestEmptyReference(c *check.C) {
	p := testProfile()
	for i := range p.Cells {
		p.Cells[i].Group = GroupObservation
	}
	cc := centerer{Mode: CenterDifference, Stat: StatMean}
	_, err := cc.Center(p)
	c.Check(err, check.FitsTypeOf, &EmptyReferenceError{})
}
