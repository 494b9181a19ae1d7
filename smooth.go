// Copyright (C) The CellCNV Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package cellcnv

import (
	"fmt"
	"runtime"
	"sort"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

// Aggregation statistics accepted by the smoothing and centering stages.
const (
	StatMean   = "mean"
	StatMedian = "median"
)

// GenomeWindow is one sliding window: a run of consecutive genes on one
// chromosome, aggregated into a single value per cell.
type GenomeWindow struct {
	Chrom string
	Start int // genomic start of the first gene in the window
	End   int // genomic end of the last gene in the window
	Gene0 int // index of the first gene in the source matrix
	Genes int // number of genes aggregated
}

// Name returns a coordinate label for the window, e.g. "chr1:10000-90000".
func (w GenomeWindow) Name() string {
	return fmt.Sprintf("%s:%d-%d", w.Chrom, w.Start, w.End)
}

// SmoothedProfile is a windows × cells matrix of per-window aggregate
// expression.
type SmoothedProfile struct {
	Windows []GenomeWindow
	Cells   []Cell
	// Data is window-major: Data[w*len(Cells)+c].
	Data []float64
}

// Row returns the per-cell values of window w.
func (p *SmoothedProfile) Row(w int) []float64 {
	return p.Data[w*len(p.Cells) : (w+1)*len(p.Cells)]
}

// chromWindows returns the half-open window index range of each
// chromosome. Windows are built chromosome by chromosome, so each
// chromosome's windows are contiguous.
func chromWindows(windows []GenomeWindow) []chromSpan {
	var spans []chromSpan
	for w := 0; w < len(windows); {
		end := w + 1
		for end < len(windows) && windows[end].Chrom == windows[w].Chrom {
			end++
		}
		spans = append(spans, chromSpan{Chrom: windows[w].Chrom, Gene0: w, End: end})
		w = end
	}
	return spans
}

// smoother computes the per-chromosome sliding-window aggregate of a
// transformed expression matrix.
//
// The partial window left at the end of a chromosome (fewer than Window
// genes remaining) is dropped, so a chromosome with G genes yields
// floor((G-Window)/Step)+1 windows. Windows never span chromosome
// boundaries.
type smoother struct {
	Window  int
	Step    int
	Stat    string // StatMean or StatMedian
	Threads int
}

// Smooth is deterministic given identical input and parameters. Each
// (chromosome, cell) unit is computed independently on a worker pool,
// writing to a disjoint region of the output.
func (s *smoother) Smooth(m *ExpressionMatrix) (*SmoothedProfile, error) {
	if s.Step > s.Window || s.Step < 1 || s.Window < 1 {
		return nil, &WindowConfigError{Window: s.Window, Step: s.Step}
	}
	spans := m.chromosomes()
	var windows []GenomeWindow
	chromWin := make([][2]int, len(spans)) // window index range per span
	for i, span := range spans {
		n := span.End - span.Gene0
		if n < s.Window {
			return nil, &WindowConfigError{Chrom: span.Chrom, Genes: n, Window: s.Window, Step: s.Step}
		}
		w0 := len(windows)
		for off := 0; off+s.Window <= n; off += s.Step {
			g0 := span.Gene0 + off
			windows = append(windows, GenomeWindow{
				Chrom: span.Chrom,
				Start: m.Genes[g0].Start,
				End:   m.Genes[g0+s.Window-1].End,
				Gene0: g0,
				Genes: s.Window,
			})
		}
		chromWin[i] = [2]int{w0, len(windows)}
	}

	nc := len(m.Cells)
	out := &SmoothedProfile{
		Windows: windows,
		Cells:   m.Cells,
		Data:    make([]float64, len(windows)*nc),
	}

	threads := s.Threads
	if threads < 1 {
		threads = runtime.GOMAXPROCS(0)
	}
	workers := throttle{Max: threads}
	for i := range spans {
		for c := 0; c < nc; c++ {
			i, c := i, c
			workers.Go(func() error {
				vals := make([]float64, s.Window)
				for w := chromWin[i][0]; w < chromWin[i][1]; w++ {
					win := windows[w]
					for j := 0; j < win.Genes; j++ {
						vals[j] = m.Value(win.Gene0+j, c)
					}
					out.Data[w*nc+c] = aggregate(vals[:win.Genes], s.Stat)
				}
				return nil
			})
		}
	}
	if err := workers.Wait(); err != nil {
		return nil, err
	}
	log.Infof("smooth: %d windows over %d chromosomes (window %d, step %d, %s)", len(windows), len(spans), s.Window, s.Step, s.Stat)
	return out, nil
}

// aggregate reduces vals with the requested statistic. vals may be
// reordered in place.
func aggregate(vals []float64, statName string) float64 {
	if statName == StatMedian {
		return median(vals)
	}
	return stat.Mean(vals, nil)
}

// median sorts vals in place. Even-length input gets the mean of the two
// middle values; gonum's Quantile interpolation schemes do not produce
// that conventional median, so it is computed directly.
func median(vals []float64) float64 {
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}
