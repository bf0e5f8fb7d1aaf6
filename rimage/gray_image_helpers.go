package rimage

import (
	"image"
	"math"
)

// outOfImageGray is the intensity assumed for guide pixels outside the image.
const outOfImageGray = 255

// RegionAverage returns the mean intensity of the (2*radius+1) sided square centred on (x, y).
// Pixels outside the image count as 255.
func RegionAverage(img *image.Gray, x, y, radius int) float64 {
	b := img.Bounds()
	sum := 0
	n := 0
	for j := y - radius; j <= y+radius; j++ {
		for i := x - radius; i <= x+radius; i++ {
			n++
			if !image.Pt(i, j).In(b) {
				sum += outOfImageGray
				continue
			}
			sum += int(img.Pix[img.PixOffset(i, j)])
		}
	}
	return float64(sum) / float64(n)
}

// SubGray copies r (clipped to the image) into a new gray image whose origin is (0, 0).
func SubGray(img *image.Gray, r image.Rectangle) *image.Gray {
	r = r.Intersect(img.Bounds())
	out := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		start := img.PixOffset(r.Min.X, y)
		copy(out.Pix[(y-r.Min.Y)*out.Stride:], img.Pix[start:start+r.Dx()])
	}
	return out
}

var (
	sobelX = [3][3]int{{-1, 0, 1}, {-2, 0, 2}, {-1, 0, 1}}
	sobelY = [3][3]int{{-1, -2, -1}, {0, 0, 0}, {1, 2, 1}}
)

// SobelMagnitude returns the L2 gradient magnitude of img at (x, y), replicating border pixels.
func SobelMagnitude(img *image.Gray, x, y int) float64 {
	b := img.Bounds()
	gx, gy := 0, 0
	for j := -1; j <= 1; j++ {
		for i := -1; i <= 1; i++ {
			px := clampCoord(x+i, b.Min.X, b.Max.X-1)
			py := clampCoord(y+j, b.Min.Y, b.Max.Y-1)
			v := int(img.Pix[img.PixOffset(px, py)])
			gx += sobelX[j+1][i+1] * v
			gy += sobelY[j+1][i+1] * v
		}
	}
	return math.Hypot(float64(gx), float64(gy))
}

func clampCoord(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DilateSquare returns m dilated with a size x size square structuring element.
func DilateSquare(m *Mask, size int) *Mask {
	r := size / 2
	out := NewMask(m.width, m.height)
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			if m.Get(x, y) {
				out.MarkSquare(x, y, r)
			}
		}
	}
	return out
}
