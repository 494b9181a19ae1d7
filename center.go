// Copyright (C) The CellCNV Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellcnv

import (
	log "github.com/sirupsen/logrus"
)

// Centering modes. Difference mode subtracts the reference baseline
// (neutral = 0); ratio mode divides by it (neutral = 1).
const (
	CenterDifference = "difference"
	CenterRatio      = "ratio"
)

// CenteredProfile expresses each smoothed value relative to the
// reference group's per-window aggregate. Reference cells are centered
// too; their residuals measure the noise floor.
type CenteredProfile struct {
	Windows []GenomeWindow
	Cells   []Cell
	// Data is window-major, same layout as SmoothedProfile.
	Data []float64
	// Baseline is the per-window reference aggregate that was removed.
	Baseline []float64
	Mode     string
}

// Row returns the per-cell values of window w.
func (p *CenteredProfile) Row(w int) []float64 {
	return p.Data[w*len(p.Cells) : (w+1)*len(p.Cells)]
}

// Neutral returns the baseline value a copy-number-normal window is
// expected to center on.
func (p *CenteredProfile) Neutral() float64 {
	if p.Mode == CenterRatio {
		return 1
	}
	return 0
}

// centerer removes the reference group's per-window signal from every
// cell. The baseline aggregation sees only reference-cell values: the
// reference column indexes are resolved once and each window's aggregate
// is computed from that sub-view, so observation cells cannot leak into
// the baseline.
type centerer struct {
	Mode string // CenterDifference or CenterRatio
	Stat string // StatMean or StatMedian
}

func (cc *centerer) Center(p *SmoothedProfile) (*CenteredProfile, error) {
	ref := referenceCells(p.Cells)
	if len(ref) == 0 {
		return nil, &EmptyReferenceError{}
	}
	nc := len(p.Cells)
	out := &CenteredProfile{
		Windows:  p.Windows,
		Cells:    p.Cells,
		Data:     make([]float64, len(p.Data)),
		Baseline: make([]float64, len(p.Windows)),
		Mode:     cc.Mode,
	}
	refVals := make([]float64, len(ref))
	for w := range p.Windows {
		row := p.Row(w)
		for i, c := range ref {
			refVals[i] = row[c]
		}
		baseline := aggregate(refVals, cc.Stat)
		out.Baseline[w] = baseline
		dst := out.Data[w*nc : (w+1)*nc]
		if cc.Mode == CenterRatio {
			for c, v := range row {
				if baseline != 0 {
					dst[c] = v / baseline
				} else {
					dst[c] = 1
				}
			}
		} else {
			for c, v := range row {
				dst[c] = v - baseline
			}
		}
	}
	log.Infof("center: %d windows, %d reference cells, %s/%s", len(p.Windows), len(ref), cc.Mode, cc.Stat)
	return out, nil
}
