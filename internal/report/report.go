// Package report summarises rasters produced by the pipeline: descriptive
// statistics for the run ledger and an optional brightness histogram plot.
package report

import (
	"bytes"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Stats describes a set of samples. StdDev is the sample standard deviation
// and is zero for fewer than two samples.
type Stats struct {
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

func (s Stats) String() string {
	return fmt.Sprintf("n=%d min=%.3f max=%.3f mean=%.3f sd=%.3f", s.Count, s.Min, s.Max, s.Mean, s.StdDev)
}

// Describe computes Stats over values, skipping NaN and, when skip is true,
// samples equal to nodata.
func Describe(values []float64, nodata float64, skip bool) Stats {
	kept := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || (skip && v == nodata) {
			continue
		}
		kept = append(kept, v)
	}
	if len(kept) == 0 {
		return Stats{}
	}
	s := Stats{
		Count: len(kept),
		Min:   floats.Min(kept),
		Max:   floats.Max(kept),
	}
	s.Mean, s.StdDev = stat.MeanStdDev(kept, nil)
	if len(kept) < 2 {
		s.StdDev = 0
	}
	return s
}

// DescribeBytes computes Stats over 8-bit samples.
func DescribeBytes(data []uint8) Stats {
	values := make([]float64, len(data))
	for i, v := range data {
		values[i] = float64(v)
	}
	return Describe(values, 0, false)
}

// Histogram counts occurrences of every 8-bit value.
func Histogram(data []uint8) [256]int {
	var h [256]int
	for _, v := range data {
		h[v]++
	}
	return h
}

// HistogramPNG renders the brightness distribution of data as a PNG.
func HistogramPNG(data []uint8, title string) ([]byte, error) {
	counts := Histogram(data)
	values := make(plotter.Values, 0, len(data))
	for _, v := range data {
		values = append(values, float64(v))
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("histogram of %q: no samples", title)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Brightness"
	p.Y.Label.Text = "Pixels"
	p.X.Min, p.X.Max = 0, 255

	hist, err := plotter.NewHist(values, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to build histogram: %w", err)
	}
	p.Add(hist)
	p.Add(plotter.NewGrid())

	mode := 0
	for v, n := range counts {
		if n > counts[mode] {
			mode = v
		}
	}
	p.Legend.Add(fmt.Sprintf("mode %d", mode), hist)

	w, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("failed to render histogram: %w", err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode histogram: %w", err)
	}
	return buf.Bytes(), nil
}
