// Copyright (C) The CellCNV Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellcnv

import (
	"fmt"
	"math"

	"github.com/james-bowman/nlp"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Distance metrics and linkage policies for cell clustering.
const (
	MetricEuclidean   = "euclidean"
	MetricCorrelation = "correlation"

	LinkageComplete = "complete"
	LinkageAverage  = "average"
)

// ClusterAssignment maps covered cells to contiguous cluster ids
// starting at 0, assigned in order of first covered cell.
type ClusterAssignment struct {
	Cells   []Cell
	Cluster []int // parallel to Cells
	K       int
}

// clusterer groups cells by the similarity of their centered profiles
// using deterministic agglomerative hierarchical clustering: no random
// initialization, and distance ties always merge the lowest-indexed
// pair.
type clusterer struct {
	Metric  string // MetricEuclidean or MetricCorrelation
	Linkage string // LinkageComplete or LinkageAverage
	K       int    // target cluster count; 0 means cut at CutHeight
	Cut     float64
	PCA     int  // if > 0, reduce profiles to this many components first
	All     bool // cluster every cell, not just the observation group
}

// Cluster clusters the observation cells of p (or all cells with All).
// Fewer than 2 coverable cells is recovered as a single trivial cluster.
func (cl *clusterer) Cluster(p *CenteredProfile) (*ClusterAssignment, error) {
	subset := observationCells(p.Cells)
	if cl.All {
		subset = make([]int, len(p.Cells))
		for i := range subset {
			subset[i] = i
		}
	}
	cells := make([]Cell, len(subset))
	for i, c := range subset {
		cells[i] = p.Cells[c]
	}
	n := len(cells)
	if n < 2 {
		dErr := &DegenerateClusterError{Cells: n}
		log.Warnf("cluster: %s; emitting a single trivial cluster", dErr)
		out := &ClusterAssignment{Cells: cells, Cluster: make([]int, n)}
		if n > 0 {
			out.K = 1
		}
		return out, nil
	}

	feats, nf, err := cl.features(p, subset)
	if err != nil {
		return nil, err
	}
	dist := cl.distances(feats, n, nf)
	labels := cl.agglomerate(dist, n)

	out := &ClusterAssignment{Cells: cells, Cluster: make([]int, n)}
	relabel := map[int]int{}
	for i, l := range labels {
		id, ok := relabel[l]
		if !ok {
			id = len(relabel)
			relabel[l] = id
		}
		out.Cluster[i] = id
	}
	out.K = len(relabel)
	log.Infof("cluster: %d cells into %d clusters (%s, %s linkage)", n, out.K, cl.Metric, cl.Linkage)
	return out, nil
}

// features extracts the per-cell feature vectors (cell-major), applying
// the optional PCA reduction.
func (cl *clusterer) features(p *CenteredProfile, subset []int) ([]float64, int, error) {
	nw := len(p.Windows)
	nc := len(p.Cells)
	feats := make([]float64, len(subset)*nw)
	for i, c := range subset {
		for w := 0; w < nw; w++ {
			feats[i*nw+w] = p.Data[w*nc+c]
		}
	}
	if cl.PCA <= 0 {
		return feats, nw, nil
	}
	k := cl.PCA
	if k > nw {
		k = nw
	}
	if k > len(subset) {
		k = len(subset)
	}
	// nlp expects samples as columns.
	var mtx mat.Matrix = mat.NewDense(len(subset), nw, feats).T()
	transformer := nlp.NewPCA(k)
	transformer.Fit(mtx)
	reduced, err := transformer.Transform(mtx)
	if err != nil {
		return nil, 0, fmt.Errorf("pca: %w", err)
	}
	rows, cols := reduced.Dims()
	if rows != k || cols != len(subset) {
		return nil, 0, fmt.Errorf("pca: unexpected %d×%d result", rows, cols)
	}
	red := make([]float64, len(subset)*k)
	for i := range subset {
		for j := 0; j < k; j++ {
			red[i*k+j] = reduced.At(j, i)
		}
	}
	return red, k, nil
}

// distances builds the symmetric n×n condensed distance matrix.
func (cl *clusterer) distances(feats []float64, n, nf int) [][]float64 {
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		vi := feats[i*nf : (i+1)*nf]
		for j := i + 1; j < n; j++ {
			vj := feats[j*nf : (j+1)*nf]
			var d float64
			if cl.Metric == MetricCorrelation {
				r := stat.Correlation(vi, vj, nil)
				if math.IsNaN(r) {
					r = 0
				}
				d = 1 - r
			} else {
				d = floats.Distance(vi, vj, 2)
			}
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}

// agglomerate merges clusters bottom-up over a fixed distance matrix,
// using Lance-Williams updates for complete and average linkage, until
// the target count (or the cut height) is reached. Returns one label per
// cell; labels are arbitrary but deterministic.
func (cl *clusterer) agglomerate(dist [][]float64, n int) []int {
	target := cl.K
	if target > n {
		target = n
	}
	labels := make([]int, n)
	size := make([]int, n)
	active := make([]bool, n)
	for i := range labels {
		labels[i] = i
		size[i] = 1
		active[i] = true
	}
	remaining := n
	for remaining > 1 {
		if target > 0 && remaining <= target {
			break
		}
		bi, bj := -1, -1
		best := math.Inf(1)
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if active[j] && dist[i][j] < best {
					best = dist[i][j]
					bi, bj = i, j
				}
			}
		}
		if target <= 0 && best > cl.Cut {
			break
		}
		// Merge bj into bi.
		for k := 0; k < n; k++ {
			if !active[k] || k == bi || k == bj {
				continue
			}
			var d float64
			if cl.Linkage == LinkageAverage {
				d = (float64(size[bi])*dist[bi][k] + float64(size[bj])*dist[bj][k]) / float64(size[bi]+size[bj])
			} else {
				d = math.Max(dist[bi][k], dist[bj][k])
			}
			dist[bi][k] = d
			dist[k][bi] = d
		}
		size[bi] += size[bj]
		active[bj] = false
		for i := range labels {
			if labels[i] == bj {
				labels[i] = bi
			}
		}
		remaining--
	}
	return labels
}
