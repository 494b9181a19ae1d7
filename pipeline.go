// Copyright (C) The CellCNV Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellcnv

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Config carries every pipeline parameter. It is threaded explicitly
// through each stage; stages never consult global state.
type Config struct {
	filter filter

	Window     int
	Step       int
	SmoothStat string

	CenterMode string
	CenterStat string

	CallStates   bool
	StateLevels  []float64 // nil means defaultStateLevels(States, StateSpacing)
	States       int
	StateSpacing float64
	StateStdDev  float64
	SelfProb     float64
	FitStates    bool
	FitMaxIter   int

	ClusterMetric  string
	ClusterLinkage string
	Clusters       int
	ClusterCut     float64
	PCAComponents  int
	ClusterAll     bool

	Threads int
}

// DefaultConfig returns the parameter set used when no flags are given.
func DefaultConfig() Config {
	return Config{
		filter: filter{
			MinGeneMean:  0.1,
			MinCellGenes: 1,
			Pseudocount:  1,
		},
		Window:       101,
		Step:         1,
		SmoothStat:   StatMean,
		CenterMode:   CenterDifference,
		CenterStat:   StatMean,
		CallStates:   true,
		States:       4,
		StateSpacing: 0.3,
		StateStdDev:  0.15,
		SelfProb:     0.95,
		FitStates:    false,
		FitMaxIter:   50,

		ClusterMetric:  MetricEuclidean,
		ClusterLinkage: LinkageAverage,
		Clusters:       2,
	}
}

// Flags registers every pipeline parameter on flags, in the same way the
// filtering thresholds register theirs.
func (cfg *Config) Flags(flags *flag.FlagSet) {
	cfg.filter.Flags(flags)
	flags.IntVar(&cfg.Window, "window", cfg.Window, "smoothing window of `N` consecutive genes")
	flags.IntVar(&cfg.Step, "step", cfg.Step, "advance the smoothing window by `N` genes")
	flags.StringVar(&cfg.SmoothStat, "smooth-stat", cfg.SmoothStat, "window aggregate: mean or median")
	flags.StringVar(&cfg.CenterMode, "center-mode", cfg.CenterMode, "centering mode: difference or ratio")
	flags.StringVar(&cfg.CenterStat, "center-stat", cfg.CenterStat, "reference aggregate: mean or median")
	flags.BoolVar(&cfg.CallStates, "call-states", cfg.CallStates, "decode discrete CNV states")
	flags.IntVar(&cfg.States, "states", cfg.States, "number of `CNV` levels")
	flags.Float64Var(&cfg.StateSpacing, "state-spacing", cfg.StateSpacing, "emission mean spacing `X` between adjacent levels")
	flags.Float64Var(&cfg.StateStdDev, "state-stddev", cfg.StateStdDev, "emission standard deviation `X`")
	flags.Float64Var(&cfg.SelfProb, "self-prob", cfg.SelfProb, "state self-transition probability `P`")
	flags.BoolVar(&cfg.FitStates, "fit-states", cfg.FitStates, "re-estimate emission spread per cell and chromosome")
	flags.IntVar(&cfg.FitMaxIter, "fit-max-iter", cfg.FitMaxIter, "iteration bound `N` for state parameter fitting")
	flags.StringVar(&cfg.ClusterMetric, "cluster-metric", cfg.ClusterMetric, "cell distance: euclidean or correlation")
	flags.StringVar(&cfg.ClusterLinkage, "cluster-linkage", cfg.ClusterLinkage, "linkage: complete or average")
	flags.IntVar(&cfg.Clusters, "clusters", cfg.Clusters, "target cluster count `K` (0 = cut at -cluster-cut)")
	flags.Float64Var(&cfg.ClusterCut, "cluster-cut", cfg.ClusterCut, "stop merging above distance `X` when -clusters=0")
	flags.IntVar(&cfg.PCAComponents, "pca", cfg.PCAComponents, "reduce profiles to `N` components before clustering (0 = off)")
	flags.BoolVar(&cfg.ClusterAll, "cluster-all", cfg.ClusterAll, "cluster reference cells too, not only observation cells")
	flags.IntVar(&cfg.Threads, "threads", cfg.Threads, "worker `goroutines` for smoothing and state decoding (0 = GOMAXPROCS)")
}

func (cfg *Config) validate() error {
	switch cfg.SmoothStat {
	case StatMean, StatMedian:
	default:
		return fmt.Errorf("unknown smooth-stat %q", cfg.SmoothStat)
	}
	switch cfg.CenterStat {
	case StatMean, StatMedian:
	default:
		return fmt.Errorf("unknown center-stat %q", cfg.CenterStat)
	}
	switch cfg.CenterMode {
	case CenterDifference, CenterRatio:
	default:
		return fmt.Errorf("unknown center-mode %q", cfg.CenterMode)
	}
	switch cfg.ClusterMetric {
	case MetricEuclidean, MetricCorrelation:
	default:
		return fmt.Errorf("unknown cluster-metric %q", cfg.ClusterMetric)
	}
	switch cfg.ClusterLinkage {
	case LinkageComplete, LinkageAverage:
	default:
		return fmt.Errorf("unknown cluster-linkage %q", cfg.ClusterLinkage)
	}
	return nil
}

// stateLevels resolves the configured emission levels and neutral index.
func (cfg *Config) stateLevels() ([]float64, int, error) {
	if cfg.StateLevels == nil {
		levels, neutral := defaultStateLevels(cfg.States, cfg.StateSpacing)
		if cfg.CenterMode == CenterRatio {
			for i := range levels {
				levels[i]++
			}
		}
		return levels, neutral, nil
	}
	neutral := -1
	target := 0.0
	if cfg.CenterMode == CenterRatio {
		target = 1
	}
	for i, l := range cfg.StateLevels {
		if i > 0 && l <= cfg.StateLevels[i-1] {
			return nil, 0, fmt.Errorf("state levels must be ascending")
		}
		if l == target {
			neutral = i
		}
	}
	if neutral < 0 {
		return nil, 0, fmt.Errorf("state levels must include the neutral baseline %g", target)
	}
	return cfg.StateLevels, neutral, nil
}

// parseLevels parses a comma-separated -state-levels flag value.
func parseLevels(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	var levels []float64
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("bad state level %q: %w", part, err)
		}
		levels = append(levels, v)
	}
	return levels, nil
}

// Result bundles every artifact of one pipeline run.
type Result struct {
	Filtered *ExpressionMatrix
	Smoothed *SmoothedProfile
	Centered *CenteredProfile
	States   *StateCalls // nil unless state calling was enabled
	Clusters *ClusterAssignment
}

// Run executes the full transformation chain on an immutable input
// matrix: filter → smooth → center, then state decoding and clustering
// as independent branches over the centered profile. Every artifact in
// the returned Result is complete; no partial output is ever returned
// alongside an error.
func Run(m *ExpressionMatrix, cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	t0 := time.Now()

	filtered, err := cfg.filter.Apply(m, cfg.Window)
	if err != nil {
		return nil, err
	}
	sm := smoother{Window: cfg.Window, Step: cfg.Step, Stat: cfg.SmoothStat, Threads: cfg.Threads}
	smoothed, err := sm.Smooth(filtered)
	if err != nil {
		return nil, err
	}
	cc := centerer{Mode: cfg.CenterMode, Stat: cfg.CenterStat}
	centered, err := cc.Center(smoothed)
	if err != nil {
		return nil, err
	}

	ret := &Result{Filtered: filtered, Smoothed: smoothed, Centered: centered}

	// State decoding and clustering both consume the centered profile
	// and are independent of each other.
	branches := throttle{Max: 2}
	if cfg.CallStates {
		levels, neutral, err := cfg.stateLevels()
		if err != nil {
			return nil, err
		}
		sc := stateCaller{
			Levels:   levels,
			Neutral:  neutral,
			StdDev:   cfg.StateStdDev,
			SelfProb: cfg.SelfProb,
			Fit:      cfg.FitStates,
			MaxIter:  cfg.FitMaxIter,
			Threads:  cfg.Threads,
		}
		branches.Go(func() error {
			states, err := sc.Call(centered)
			if err != nil {
				return err
			}
			ret.States = states
			return nil
		})
	}
	cl := clusterer{
		Metric:  cfg.ClusterMetric,
		Linkage: cfg.ClusterLinkage,
		K:       cfg.Clusters,
		Cut:     cfg.ClusterCut,
		PCA:     cfg.PCAComponents,
		All:     cfg.ClusterAll,
	}
	branches.Go(func() error {
		clusters, err := cl.Cluster(centered)
		if err != nil {
			return err
		}
		ret.Clusters = clusters
		return nil
	})
	if err := branches.Wait(); err != nil {
		return nil, err
	}
	log.Infof("pipeline: done in %v", time.Since(t0))
	return ret, nil
}
