//go:build !no_cgo

package rimage

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"go.viam.com/depthfusion/utils"
)

// GuideEdgeMask runs Canny(t1, t2) on the guide and dilates the edges with a square kernel
// of dilateSize (bumped to the next odd size). A nil mask is returned when t1 > t2, which
// disables guide edge suppression.
func GuideEdgeMask(guide *image.Gray, t1, t2 float64, dilateSize int) (*Mask, error) {
	if t1 > t2 {
		return nil, nil
	}
	b := guide.Bounds()
	if b.Empty() {
		return nil, errors.New("guide image is empty")
	}
	if b.Min != (image.Point{}) || guide.Stride != b.Dx() {
		guide = SubGray(guide, b)
	}

	src, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC1, guide.Pix)
	if err != nil {
		return nil, errors.Wrap(err, "cannot wrap guide image")
	}
	defer src.Close()

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(src, &edges, float32(t1), float32(t2))

	size := utils.OddAtLeastOne(dilateSize)
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(size, size))
	defer kernel.Close()

	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(edges, &dilated, kernel)

	return NewMaskFromBytes(b.Dx(), b.Dy(), b.Dx(), dilated.ToBytes()), nil
}
