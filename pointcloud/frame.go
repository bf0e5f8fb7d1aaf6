// Package pointcloud defines organized point cloud frames and their PCD file format.
package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Sample is one cell of an organized frame. Valid is false for cells with no usable
// measurement, and for samples rejected by a filter.
type Sample struct {
	Point r3.Vector
	Valid bool
}

// Frame is an organized point cloud: a Width x Height grid of samples stored row-major.
type Frame struct {
	width   int
	height  int
	samples []Sample
}

// NewFrame returns a frame whose samples are all invalid.
func NewFrame(width, height int) *Frame {
	if width < 0 || height < 0 {
		width, height = 0, 0
	}
	return &Frame{width, height, make([]Sample, width*height)}
}

// NewFrameFromPoints builds a frame from row-major points. Points with a zero, NaN or
// infinite coordinate are tagged invalid.
func NewFrameFromPoints(width, height int, pts []r3.Vector) (*Frame, error) {
	if len(pts) != width*height {
		return nil, errors.Errorf("got %d points for a %dx%d frame", len(pts), width, height)
	}
	f := NewFrame(width, height)
	for i, pt := range pts {
		f.samples[i] = Sample{pt, IsMeasuredPoint(pt)}
	}
	return f, nil
}

// IsMeasuredPoint reports whether pt carries a usable depth.
func IsMeasuredPoint(pt r3.Vector) bool {
	for _, v := range []float64{pt.X, pt.Y, pt.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return pt.Z != 0
}

func (f *Frame) Width() int {
	return f.width
}

func (f *Frame) Height() int {
	return f.height
}

// Size is the number of cells, valid or not.
func (f *Frame) Size() int {
	return len(f.samples)
}

// Present reports whether f is a non-nil frame with at least one cell. A frame whose
// samples are all invalid is present.
func (f *Frame) Present() bool {
	return f != nil && len(f.samples) > 0
}

func (f *Frame) In(col, row int) bool {
	return col >= 0 && row >= 0 && col < f.width && row < f.height
}

func (f *Frame) At(col, row int) Sample {
	return f.samples[row*f.width+col]
}

// Set stores pt at (col, row), tagging it valid when it carries a usable depth.
func (f *Frame) Set(col, row int, pt r3.Vector) {
	f.samples[row*f.width+col] = Sample{pt, IsMeasuredPoint(pt)}
}

// CountValid returns the number of valid samples.
func (f *Frame) CountValid() int {
	n := 0
	for _, s := range f.samples {
		if s.Valid {
			n++
		}
	}
	return n
}

func (f *Frame) Clone() *Frame {
	samples := make([]Sample, len(f.samples))
	copy(samples, f.samples)
	return &Frame{f.width, f.height, samples}
}

// Iterate calls fn for every cell in row-major order until fn returns false.
func (f *Frame) Iterate(fn func(col, row int, s Sample) bool) {
	for i, s := range f.samples {
		if !fn(i%f.width, i/f.width, s) {
			return
		}
	}
}
