// Copyright (C) The CellCNV Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellcnv

import (
	"gopkg.in/check.v1"
)

type clusterSuite struct{}

var _ = check.Suite(&clusterSuite{})

// clusterFixture builds a 4-window difference-mode profile with 2
// reference cells plus one observation cell per given profile.
func clusterFixture(profiles ...[]float64) *CenteredProfile {
	p := &CenteredProfile{
		Windows: []GenomeWindow{
			{Chrom: "chr1", Start: 1000, End: 2000},
			{Chrom: "chr1", Start: 2000, End: 3000},
			{Chrom: "chr2", Start: 1000, End: 2000},
			{Chrom: "chr2", Start: 2000, End: 3000},
		},
		Cells: []Cell{
			{Name: "ref00", Group: GroupReference},
			{Name: "ref01", Group: GroupReference},
		},
		Mode: CenterDifference,
	}
	for i := range profiles {
		p.Cells = append(p.Cells, Cell{Name: "obs0" + string(rune('0'+i)), Group: GroupObservation})
	}
	nc := len(p.Cells)
	p.Data = make([]float64, 4*nc)
	for w := 0; w < 4; w++ {
		for i, prof := range profiles {
			p.Data[w*nc+2+i] = prof[w]
		}
	}
	p.Baseline = make([]float64, 4)
	return p
}

var (
	profileA = []float64{0, 0, 1, 1}
	profileB = []float64{1, 1, 0, 0}
)

func (s *clusterSuite) TestTwoGroups(c *check.C) {
	p := clusterFixture(profileA, profileA, profileB, profileB)
	cl := clusterer{Metric: MetricEuclidean, Linkage: LinkageAverage, K: 2}
	out, err := cl.Cluster(p)
	c.Assert(err, check.IsNil)
	c.Check(out.K, check.Equals, 2)
	c.Assert(out.Cells, check.HasLen, 4)
	for _, cell := range out.Cells {
		c.Check(cell.Group, check.Equals, GroupObservation)
	}
	// Ids are contiguous from 0 in order of first covered cell.
	c.Check(out.Cluster, check.DeepEquals, []int{0, 0, 1, 1})
}

func (s *clusterSuite) TestClusterAll(c *check.C) {
	p := clusterFixture(profileA, profileB)
	cl := clusterer{Metric: MetricEuclidean, Linkage: LinkageComplete, K: 2, All: true}
	out, err := cl.Cluster(p)
	c.Assert(err, check.IsNil)
	c.Assert(out.Cells, check.HasLen, 4)
	c.Check(out.K, check.Equals, 2)
	// The two flat reference cells are identical, so they merge first
	// and always land in the same cluster.
	c.Check(out.Cluster[0], check.Equals, out.Cluster[1])
}

func (s *clusterSuite) TestSingleCell(c *check.C) {
	p := clusterFixture(profileA)
	cl := clusterer{Metric: MetricEuclidean, Linkage: LinkageAverage, K: 2}
	out, err := cl.Cluster(p)
	c.Assert(err, check.IsNil)
	c.Check(out.K, check.Equals, 1)
	c.Check(out.Cluster, check.DeepEquals, []int{0})
}

func (s *clusterSuite) TestTargetAboveCellCount(c *check.C) {
	p := clusterFixture(profileA, profileB, []float64{2, 2, 2, 2})
	cl := clusterer{Metric: MetricEuclidean, Linkage: LinkageAverage, K: 10}
	out, err := cl.Cluster(p)
	c.Assert(err, check.IsNil)
	c.Check(out.K, check.Equals, 3)
	c.Check(out.Cluster, check.DeepEquals, []int{0, 1, 2})
}

func (s *clusterSuite) TestCorrelationMetric(c *check.C) {
	// Scaling a profile leaves its correlation distance at 0, so the
	// scaled pair clusters together even though the Euclidean gap is
	// large.
	doubled := []float64{0, 0, 2, 2}
	p := clusterFixture(profileA, doubled, profileB)
	cl := clusterer{Metric: MetricCorrelation, Linkage: LinkageAverage, K: 2}
	out, err := cl.Cluster(p)
	c.Assert(err, check.IsNil)
	c.Check(out.Cluster, check.DeepEquals, []int{0, 0, 1})
}

func (s *clusterSuite) TestCutHeight(c *check.C) {
	p := clusterFixture(profileA, profileA, profileB, profileB)
	cl := clusterer{Metric: MetricEuclidean, Linkage: LinkageAverage, K: 0, Cut: 0.5}
	out, err := cl.Cluster(p)
	c.Assert(err, check.IsNil)
	// Identical cells merge at distance 0; the cross-group merge at
	// distance 2 is above the cut.
	c.Check(out.K, check.Equals, 2)
	c.Check(out.Cluster, check.DeepEquals, []int{0, 0, 1, 1})
}

func (s *clusterSuite) TestDeterminism(c *check.C) {
	p := clusterFixture(profileA, profileB, profileA, []float64{0.5, 0.5, 0.5, 0.5}, profileB)
	cl := clusterer{Metric: MetricEuclidean, Linkage: LinkageComplete, K: 3}
	first, err := cl.Cluster(p)
	c.Assert(err, check.IsNil)
	for i := 0; i < 5; i++ {
		again, err := cl.Cluster(p)
		c.Assert(err, check.IsNil)
		c.Check(again.Cluster, check.DeepEquals, first.Cluster)
	}
}

func (s *clusterSuite) TestPCAReduction(c *check.C) {
	p := clusterFixture(profileA, profileA, profileB, profileB)
	cl := clusterer{Metric: MetricEuclidean, Linkage: LinkageAverage, K: 2, PCA: 2}
	out, err := cl.Cluster(p)
	c.Assert(err, check.IsNil)
	c.Check(out.K, check.Equals, 2)
	// The projection preserves the separation between the two groups.
	c.Check(out.Cluster[0], check.Equals, out.Cluster[1])
	c.Check(out.Cluster[2], check.Equals, out.Cluster[3])
	c.Check(out.Cluster[0], check.Not(check.Equals), out.Cluster[2])
}
