// Copyright (C) The CellCNV Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellcnv

import (
	"errors"
	"fmt"
	"runtime"

	log "github.com/sirupsen/logrus"

	"cellcnv/hmm"
)

// StateCalls is a windows × cells matrix of discrete CNV levels. State
// indexes are ordered: values below Neutral are losses, Neutral is
// copy-number normal, values above are gains.
type StateCalls struct {
	Windows []GenomeWindow
	Cells   []Cell
	// States is window-major, same layout as CenteredProfile.Data.
	States  []int8
	Levels  []float64
	Neutral int
}

// Row returns the per-cell states of window w.
func (s *StateCalls) Row(w int) []int8 {
	return s.States[w*len(s.Cells) : (w+1)*len(s.Cells)]
}

// Name returns a label for a state index: "loss", "neutral", "gain",
// "amplification", with deeper losses prefixed "deep-".
func (s *StateCalls) Name(state int8) string {
	switch d := int(state) - s.Neutral; {
	case d < -1:
		return "deep-loss"
	case d == -1:
		return "loss"
	case d == 0:
		return "neutral"
	case d == 1:
		return "gain"
	default:
		return "amplification"
	}
}

// stateCaller discretizes centered profiles into CNV states, decoding
// each (cell, chromosome) window sequence independently on a worker
// pool. Levels must be ascending with Levels[Neutral] at the mode's
// neutral baseline.
type stateCaller struct {
	Levels   []float64
	Neutral  int
	StdDev   float64
	SelfProb float64
	Fit      bool // re-estimate emission spread per sequence
	MaxIter  int
	Threads  int
}

// defaultStateLevels returns k emission levels for a difference-mode
// profile: one loss level below 0, neutral at 0, and gains above,
// spaced by spacing.
func defaultStateLevels(k int, spacing float64) (levels []float64, neutral int) {
	if k < 2 {
		k = 4
	}
	neutral = 1
	if k == 2 {
		neutral = 0
	}
	levels = make([]float64, k)
	for i := range levels {
		levels[i] = float64(i-neutral) * spacing
	}
	return levels, neutral
}

// Call decodes p into per-window state labels. Fitting failures on
// individual sequences fall back to the fixed parameters with a warning;
// they never abort the run.
func (sc *stateCaller) Call(p *CenteredProfile) (*StateCalls, error) {
	model := hmm.Model{
		Levels:   sc.Levels,
		Neutral:  sc.Neutral,
		StdDev:   sc.StdDev,
		SelfProb: sc.SelfProb,
	}
	out := &StateCalls{
		Windows: p.Windows,
		Cells:   p.Cells,
		States:  make([]int8, len(p.Data)),
		Levels:  sc.Levels,
		Neutral: sc.Neutral,
	}
	nc := len(p.Cells)
	spans := chromWindows(p.Windows)
	threads := sc.Threads
	if threads < 1 {
		threads = runtime.GOMAXPROCS(0)
	}
	workers := throttle{Max: threads}
	for i := range spans {
		for c := 0; c < nc; c++ {
			span, c := spans[i], c
			workers.Go(func() error {
				obs := make([]float64, span.End-span.Gene0)
				for w := span.Gene0; w < span.End; w++ {
					obs[w-span.Gene0] = p.Data[w*nc+c]
				}
				seqModel := model
				if sc.Fit {
					fitted, err := model.Fit(obs, sc.MaxIter)
					if errors.Is(err, hmm.ErrNoConvergence) {
						cErr := &ModelConvergenceError{Cell: p.Cells[c].Name, Chrom: span.Chrom, Iterations: sc.MaxIter}
						log.Warnf("%s; using default parameters", cErr)
					} else if err != nil {
						return fmt.Errorf("fit cell %s chromosome %s: %w", p.Cells[c].Name, span.Chrom, err)
					} else {
						seqModel = fitted
					}
				}
				path, err := seqModel.Viterbi(obs)
				if err != nil {
					return fmt.Errorf("decode cell %s chromosome %s: %w", p.Cells[c].Name, span.Chrom, err)
				}
				for w := span.Gene0; w < span.End; w++ {
					out.States[w*nc+c] = int8(path[w-span.Gene0])
				}
				return nil
			})
		}
	}
	if err := workers.Wait(); err != nil {
		return nil, err
	}
	log.Infof("states: decoded %d cells × %d chromosomes into %d levels", nc, len(spans), len(sc.Levels))
	return out, nil
}
