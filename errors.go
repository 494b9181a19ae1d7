// Copyright (C) The CellCNV Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellcnv

import "fmt"

// InsufficientDataError indicates that filtering left too little data to
// run the pipeline: an empty cell group, or a chromosome with fewer genes
// than the smoothing window.
type InsufficientDataError struct {
	Detail string
}

func (e *InsufficientDataError) Error() string {
	return "insufficient data after filtering: " + e.Detail
}

// WindowConfigError indicates smoothing window parameters that are
// incompatible with the gene content of a chromosome.
type WindowConfigError struct {
	Chrom  string
	Genes  int
	Window int
	Step   int
}

func (e *WindowConfigError) Error() string {
	if e.Step > e.Window {
		return fmt.Sprintf("window config: step %d exceeds window size %d", e.Step, e.Window)
	}
	return fmt.Sprintf("window config: window size %d exceeds %d genes on chromosome %s", e.Window, e.Genes, e.Chrom)
}

// EmptyReferenceError indicates that no reference-group cells are
// available to compute the centering baseline.
type EmptyReferenceError struct{}

func (e *EmptyReferenceError) Error() string {
	return "no reference cells available for centering baseline"
}

// ModelConvergenceError indicates that HMM parameter fitting did not
// converge. It is recovered locally (the caller falls back to fixed
// default parameters) and never aborts a pipeline run.
type ModelConvergenceError struct {
	Cell       string
	Chrom      string
	Iterations int
}

func (e *ModelConvergenceError) Error() string {
	return fmt.Sprintf("state model for cell %s chromosome %s did not converge within %d iterations", e.Cell, e.Chrom, e.Iterations)
}

// DegenerateClusterError indicates that fewer than 2 cells were available
// for clustering. It is recovered locally by emitting a single trivial
// cluster.
type DegenerateClusterError struct {
	Cells int
}

func (e *DegenerateClusterError) Error() string {
	return fmt.Sprintf("cannot cluster %d cell(s); need at least 2", e.Cells)
}
