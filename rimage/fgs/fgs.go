// Package fgs implements the Fast Global Smoother, an edge-aware smoothing filter guided by a
// gray image. The global weighted least squares problem is approximated by separable 1D
// solves along rows and then columns, each of which is a tridiagonal system.
package fgs

import (
	"image"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/depthfusion/rimage"
	"go.viam.com/depthfusion/utils"
)

// Smoother is a Fast Global Smoother bound to one guide image.
type Smoother struct {
	guide         *image.Gray
	width, height int
	lambda        float64
	sigmaColor    float64
	attenuation   float64
	iterations    int
}

// New returns a smoother for guide. lambda is the smoothness weight, sigmaColor the guide
// intensity scale, and lambda is multiplied by attenuation after every iteration.
func New(guide *image.Gray, lambda, sigmaColor, attenuation float64, iterations int) (*Smoother, error) {
	if guide == nil || guide.Bounds().Empty() {
		return nil, errors.New("fgs: guide image is empty")
	}
	if lambda <= 0 || sigmaColor <= 0 {
		return nil, errors.Errorf("fgs: lambda (%v) and sigma (%v) must be positive", lambda, sigmaColor)
	}
	if iterations < 1 {
		return nil, errors.Errorf("fgs: need at least one iteration, got %d", iterations)
	}
	b := guide.Bounds()
	if b.Min != (image.Point{}) {
		guide = rimage.SubGray(guide, b)
	}
	return &Smoother{
		guide:       guide,
		width:       b.Dx(),
		height:      b.Dy(),
		lambda:      lambda,
		sigmaColor:  sigmaColor,
		attenuation: attenuation,
		iterations:  iterations,
	}, nil
}

// Filter smooths src, which must have the guide's size, and returns a new image.
func (s *Smoother) Filter(src *rimage.FloatImage) (*rimage.FloatImage, error) {
	if src.Width() != s.width || src.Height() != s.height {
		return nil, errors.Errorf("fgs: source is %dx%d but guide is %dx%d", src.Width(), src.Height(), s.width, s.height)
	}
	out := src.Clone()
	lambda := s.lambda
	for i := 0; i < s.iterations; i++ {
		weights := s.weightTable(lambda)
		s.horizontalPass(out, weights)
		s.verticalPass(out, weights)
		lambda *= s.attenuation
	}
	return out, nil
}

// weightTable maps an absolute guide difference to the coupling weight between two neighbours.
func (s *Smoother) weightTable(lambda float64) *[256]float64 {
	var table [256]float64
	for d := range table {
		table[d] = lambda * math.Exp(-float64(d)/s.sigmaColor)
	}
	return &table
}

func (s *Smoother) horizontalPass(img *rimage.FloatImage, weights *[256]float64) {
	utils.ParallelForEachRow(s.height, func(y int) {
		line := img.Row(y)
		guideRow := s.guide.Pix[y*s.guide.Stride : y*s.guide.Stride+s.width]
		w := make([]float64, s.width)
		for x := 0; x < s.width-1; x++ {
			w[x] = weights[absDiff(guideRow[x], guideRow[x+1])]
		}
		solveTridiagonal(line, w, make([]float64, s.width))
	})
}

func (s *Smoother) verticalPass(img *rimage.FloatImage, weights *[256]float64) {
	utils.ParallelForEachRow(s.width, func(x int) {
		line := make([]float64, s.height)
		w := make([]float64, s.height)
		for y := 0; y < s.height; y++ {
			line[y] = img.Get(x, y)
			if y < s.height-1 {
				w[y] = weights[absDiff(s.guide.Pix[y*s.guide.Stride+x], s.guide.Pix[(y+1)*s.guide.Stride+x])]
			}
		}
		solveTridiagonal(line, w, make([]float64, s.height))
		for y, v := range line {
			img.Set(x, y, v)
		}
	})
}

// solveTridiagonal solves (I + L) u = f in place, where L is the 1D weighted Laplacian whose
// coupling between i and i+1 is w[i]. scratch must have len(f) elements.
func solveTridiagonal(f, w, scratch []float64) {
	n := len(f)
	if n == 0 {
		return
	}
	// forward sweep: scratch holds the modified upper diagonal
	prevW := 0.0
	prevC := 0.0
	for i := 0; i < n; i++ {
		var c float64
		if i < n-1 {
			c = -w[i]
		}
		a := -prevW
		b := 1 + prevW - c
		denom := b - a*prevC
		scratch[i] = c / denom
		if i == 0 {
			f[i] /= denom
		} else {
			f[i] = (f[i] - a*f[i-1]) / denom
		}
		prevC = scratch[i]
		if i < n-1 {
			prevW = w[i]
		}
	}
	for i := n - 2; i >= 0; i-- {
		f[i] -= scratch[i] * f[i+1]
	}
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
