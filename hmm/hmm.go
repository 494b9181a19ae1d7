// Copyright (C) The CellCNV Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

// Package hmm decodes an ordered sequence of continuous values into a
// sequence of discrete ordered states, using a hidden Markov model whose
// transition structure favors persistence. It operates on one sequence
// at a time and keeps no state between calls, so callers can decode many
// sequences concurrently with the same Model.
package hmm

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrNoConvergence is returned by Fit when parameter estimation does not
// converge within the iteration bound.
var ErrNoConvergence = errors.New("hmm: parameter estimation did not converge")

// Model is a Gaussian-emission HMM over ordered states. Levels are the
// state emission means in ascending order; Neutral indexes the state a
// tie should resolve to. All states share StdDev. A transition keeps the
// current state with probability SelfProb and distributes the remainder
// uniformly over the other states.
type Model struct {
	Levels   []float64
	Neutral  int
	StdDev   float64
	SelfProb float64
}

func (m Model) validate() error {
	if len(m.Levels) < 2 {
		return fmt.Errorf("hmm: need at least 2 state levels, have %d", len(m.Levels))
	}
	if m.Neutral < 0 || m.Neutral >= len(m.Levels) {
		return fmt.Errorf("hmm: neutral state %d out of range", m.Neutral)
	}
	if m.StdDev <= 0 {
		return fmt.Errorf("hmm: non-positive emission stddev %g", m.StdDev)
	}
	if m.SelfProb <= 0 || m.SelfProb >= 1 {
		return fmt.Errorf("hmm: self-transition probability %g outside (0,1)", m.SelfProb)
	}
	return nil
}

// Viterbi returns the maximum-likelihood state path for obs. The result
// is deterministic: score ties resolve toward the state nearest Neutral,
// lower state index first.
func (m Model) Viterbi(obs []float64) ([]int, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	if len(obs) == 0 {
		return nil, nil
	}
	k := len(m.Levels)
	emit := make([]distuv.Normal, k)
	for s := range emit {
		emit[s] = distuv.Normal{Mu: m.Levels[s], Sigma: m.StdDev}
	}
	logSelf := math.Log(m.SelfProb)
	logSwitch := math.Log((1 - m.SelfProb) / float64(k-1))

	score := make([]float64, k)
	next := make([]float64, k)
	back := make([][]int, len(obs))
	for s := 0; s < k; s++ {
		score[s] = emit[s].LogProb(obs[0])
	}
	for t := 1; t < len(obs); t++ {
		back[t] = make([]int, k)
		for s := 0; s < k; s++ {
			bestPrev := 0
			bestScore := math.Inf(-1)
			for p := 0; p < k; p++ {
				trans := logSwitch
				if p == s {
					trans = logSelf
				}
				if v := score[p] + trans; m.betterState(v, p, bestScore, bestPrev) {
					bestScore, bestPrev = v, p
				}
			}
			next[s] = bestScore + emit[s].LogProb(obs[t])
			back[t][s] = bestPrev
		}
		score, next = next, score
	}

	last := 0
	lastScore := math.Inf(-1)
	for s := 0; s < k; s++ {
		if m.betterState(score[s], s, lastScore, last) {
			lastScore, last = score[s], s
		}
	}
	path := make([]int, len(obs))
	path[len(obs)-1] = last
	for t := len(obs) - 1; t > 0; t-- {
		path[t-1] = back[t][path[t]]
	}
	return path, nil
}

// betterState reports whether candidate (score a, state sa) beats the
// incumbent (score b, state sb): strictly higher score wins, and an
// exact tie goes to the state nearest Neutral.
func (m Model) betterState(a float64, sa int, b float64, sb int) bool {
	if a != b {
		return a > b
	}
	da, db := sa-m.Neutral, sb-m.Neutral
	if da < 0 {
		da = -da
	}
	if db < 0 {
		db = -db
	}
	return da < db
}

// Fit re-estimates the shared emission StdDev from obs by alternating
// Viterbi assignment and residual re-estimation, keeping Levels fixed.
// It returns the fitted model, or ErrNoConvergence if the estimate does
// not stabilize within maxIter rounds (callers should then fall back to
// the unfitted model).
func (m Model) Fit(obs []float64, maxIter int) (Model, error) {
	const (
		tol      = 1e-4
		minSigma = 1e-3
	)
	if err := m.validate(); err != nil {
		return m, err
	}
	if len(obs) < 2 {
		return m, nil
	}
	fitted := m
	resid := make([]float64, len(obs))
	for iter := 0; iter < maxIter; iter++ {
		path, err := fitted.Viterbi(obs)
		if err != nil {
			return m, err
		}
		for i, s := range path {
			resid[i] = obs[i] - fitted.Levels[s]
		}
		sigma := stat.StdDev(resid, nil)
		if sigma < minSigma {
			sigma = minSigma
		}
		if math.Abs(sigma-fitted.StdDev) <= tol {
			fitted.StdDev = sigma
			return fitted, nil
		}
		fitted.StdDev = sigma
	}
	return m, ErrNoConvergence
}
