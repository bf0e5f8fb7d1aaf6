// Package rimage holds the image buffers used by the depth fusion engine: float depth and
// confidence images, boolean masks, guide edge detection, and image file IO.
package rimage

import (
	"image"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// FloatImage is a dense row-major float64 image. NaN marks a pixel with no value.
type FloatImage struct {
	width  int
	height int

	data []float64
}

// NewFloatImage returns a zero filled image.
func NewFloatImage(width, height int) *FloatImage {
	if width < 0 || height < 0 {
		width, height = 0, 0
	}
	return &FloatImage{width, height, make([]float64, width*height)}
}

// NewFloatImageFilled returns an image with every pixel set to v.
func NewFloatImageFilled(width, height int, v float64) *FloatImage {
	fi := NewFloatImage(width, height)
	fi.Fill(v)
	return fi
}

// NewFloatImageFromData wraps row-major data. The slice is used directly.
func NewFloatImageFromData(width, height int, data []float64) (*FloatImage, error) {
	if len(data) != width*height {
		return nil, errors.Errorf("data length %d does not match %dx%d", len(data), width, height)
	}
	return &FloatImage{width, height, data}, nil
}

func (fi *FloatImage) Width() int {
	return fi.width
}

func (fi *FloatImage) Height() int {
	return fi.height
}

func (fi *FloatImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, fi.width, fi.height)
}

// In reports whether (x, y) lies inside the image.
func (fi *FloatImage) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < fi.width && y < fi.height
}

func (fi *FloatImage) kxy(x, y int) int {
	return (y * fi.width) + x
}

func (fi *FloatImage) Get(x, y int) float64 {
	return fi.data[fi.kxy(x, y)]
}

func (fi *FloatImage) Set(x, y int, v float64) {
	fi.data[fi.kxy(x, y)] = v
}

// Data returns the backing row-major slice.
func (fi *FloatImage) Data() []float64 {
	return fi.data
}

// Row returns the backing slice of row y.
func (fi *FloatImage) Row(y int) []float64 {
	return fi.data[y*fi.width : (y+1)*fi.width]
}

func (fi *FloatImage) Fill(v float64) {
	for i := range fi.data {
		fi.data[i] = v
	}
}

func (fi *FloatImage) Clone() *FloatImage {
	data := make([]float64, len(fi.data))
	copy(data, fi.data)
	return &FloatImage{fi.width, fi.height, data}
}

// SubImage copies the pixels of r (clipped to the image) into a new image.
func (fi *FloatImage) SubImage(r image.Rectangle) *FloatImage {
	r = r.Intersect(fi.Bounds())
	out := NewFloatImage(r.Dx(), r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		copy(out.Row(y-r.Min.Y), fi.data[fi.kxy(r.Min.X, y):fi.kxy(r.Max.X, y)])
	}
	return out
}

// Paste copies src into fi with src's origin placed at at. Pixels falling outside fi are dropped.
func (fi *FloatImage) Paste(src *FloatImage, at image.Point) {
	dst := src.Bounds().Add(at).Intersect(fi.Bounds())
	for y := dst.Min.Y; y < dst.Max.Y; y++ {
		sy := y - at.Y
		copy(fi.data[fi.kxy(dst.Min.X, y):fi.kxy(dst.Max.X, y)], src.data[src.kxy(dst.Min.X-at.X, sy):src.kxy(dst.Max.X-at.X, sy)])
	}
}

// FillWhereUnset sets every pixel whose mask value is false to v.
func (fi *FloatImage) FillWhereUnset(m *Mask, v float64) {
	for i, set := range m.data {
		if !set {
			fi.data[i] = v
		}
	}
}

// CountFinite returns the number of pixels holding a finite value.
func (fi *FloatImage) CountFinite() int {
	n := 0
	for _, v := range fi.data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			n++
		}
	}
	return n
}

// MeanStdDev returns the mean and standard deviation of the finite pixels.
func (fi *FloatImage) MeanStdDev() (float64, float64) {
	values := make([]float64, 0, len(fi.data))
	for _, v := range fi.data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return math.NaN(), math.NaN()
	}
	return stat.MeanStdDev(values, nil)
}
