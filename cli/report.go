package cli

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/fogleman/gg"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"go.viam.com/depthfusion/rimage"
)

const (
	histogramBins     = 50
	textHistogramBins = 10
	overlayDotRadius  = 1.5
)

var (
	floodDotColor = color.RGBA{0, 220, 0, 255}
	spotDotColor  = color.RGBA{230, 30, 30, 255}
)

// printf prints a line to w.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// coverageStats returns the mean and standard deviation of the per frame coverage.
func coverageStats(coverage []float64) (float64, float64) {
	if len(coverage) == 0 {
		return 0, 0
	}
	if len(coverage) == 1 {
		return coverage[0], 0
	}
	return stat.MeanStdDev(coverage, nil)
}

// writeConfidenceHistogram saves a histogram of values to path as a png.
func writeConfidenceHistogram(path string, values []float64) error {
	if len(values) == 0 {
		return errors.New("no confidence values to plot")
	}
	p := plot.New()
	p.Title.Text = "Confidence"
	p.X.Label.Text = "confidence"
	p.Y.Label.Text = "pixels"
	p.X.Min, p.X.Max = 0, 1

	hist, err := plotter.NewHist(plotter.Values(values), histogramBins)
	if err != nil {
		return errors.Wrap(err, "cannot build confidence histogram")
	}
	hist.LineStyle.Width = vg.Points(0.5)
	p.Add(hist)
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "cannot save %q", path)
	}
	return nil
}

// printConfidenceSummary prints the median and 10th percentile confidence followed by a text
// histogram.
func printConfidenceSummary(w io.Writer, values []float64) error {
	if len(values) == 0 {
		return nil
	}
	median, err := stats.Median(values)
	if err != nil {
		return err
	}
	low, err := stats.Percentile(values, 10)
	if err != nil {
		return err
	}
	printf(w, "confidence median %.3f, 10th percentile %.3f", median, low)
	return histogram.Fprint(w, histogram.Hist(textHistogramBins, values), histogram.Linear(40))
}

// writeSampleOverlay draws the pixels the flood and spot samples were written to over the
// guide and saves the result to path. Sparse maps hold 0 where no sample landed.
func writeSampleOverlay(path string, guide image.Image, floodDepth, spotDepth *rimage.FloatImage) error {
	dc := gg.NewContextForImage(guide)
	for _, layer := range []struct {
		depth *rimage.FloatImage
		c     color.Color
	}{{floodDepth, floodDotColor}, {spotDepth, spotDotColor}} {
		dc.SetColor(layer.c)
		for y := 0; y < layer.depth.Height(); y++ {
			for x, z := range layer.depth.Row(y) {
				if z > 0 {
					dc.DrawPoint(float64(x), float64(y), overlayDotRadius)
				}
			}
		}
		dc.Fill()
	}
	if err := dc.SavePNG(path); err != nil {
		return errors.Wrapf(err, "cannot save %q", path)
	}
	return nil
}
