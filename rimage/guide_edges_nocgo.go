//go:build no_cgo

package rimage

import (
	"image"

	"github.com/pkg/errors"

	"go.viam.com/depthfusion/utils"
)

// GuideEdgeMask marks guide pixels whose Sobel magnitude exceeds t2 and dilates them with a
// square kernel of dilateSize (bumped to the next odd size). Without cgo there is no Canny,
// so t1 only serves to disable the stage: a nil mask is returned when t1 > t2.
func GuideEdgeMask(guide *image.Gray, t1, t2 float64, dilateSize int) (*Mask, error) {
	if t1 > t2 {
		return nil, nil
	}
	b := guide.Bounds()
	if b.Empty() {
		return nil, errors.New("guide image is empty")
	}
	edges := NewMask(b.Dx(), b.Dy())
	utils.ParallelForEachRow(b.Dy(), func(y int) {
		for x := 0; x < b.Dx(); x++ {
			if SobelMagnitude(guide, b.Min.X+x, b.Min.Y+y) > t2 {
				edges.Set(x, y, true)
			}
		}
	})
	return DilateSquare(edges, utils.OddAtLeastOne(dilateSize)), nil
}
