package upsampling

import (
	"image"

	"go.viam.com/depthfusion/pointcloud"
	"go.viam.com/depthfusion/rimage/transform"
)

// gridCell is one sample of an organized frame projected onto the guide image.
type gridCell struct {
	uf, vf float64
	u, v   int
	z      float64
	valid  bool
}

// projectedGrid keeps the frame's organization so neighbouring samples can be compared.
type projectedGrid struct {
	width, height int
	cells         []gridCell
}

// projectFrame projects every valid sample of frame. Samples that cannot be projected or that
// land outside the guide are marked invalid.
func projectFrame(frame *pointcloud.Frame, intrinsics *transform.PinholeCameraIntrinsics) *projectedGrid {
	g := &projectedGrid{frame.Width(), frame.Height(), make([]gridCell, frame.Size())}
	frame.Iterate(func(col, row int, s pointcloud.Sample) bool {
		if !s.Valid {
			return true
		}
		uf, vf, ok := intrinsics.ProjectPoint(s.Point)
		if !ok {
			return true
		}
		u, v, ok := intrinsics.PointToPixel(s.Point)
		g.cells[row*g.width+col] = gridCell{uf: uf, vf: vf, u: u, v: v, z: s.Point.Z, valid: ok}
		return true
	})
	return g
}

func (g *projectedGrid) at(col, row int) *gridCell {
	return &g.cells[row*g.width+col]
}

func (g *projectedGrid) in(col, row int) bool {
	return col >= 0 && row >= 0 && col < g.width && row < g.height
}

func (g *projectedGrid) countValid() int {
	n := 0
	for _, c := range g.cells {
		if c.valid {
			n++
		}
	}
	return n
}

// footprint returns the bounding box of every valid cell's (2*radius+1) square, clipped to bounds.
func (g *projectedGrid) footprint(radius int, bounds image.Rectangle) image.Rectangle {
	var r image.Rectangle
	for _, c := range g.cells {
		if !c.valid {
			continue
		}
		r = r.Union(image.Rect(c.u-radius, c.v-radius, c.u+radius+1, c.v+radius+1))
	}
	return r.Intersect(bounds)
}

// cellMask is a boolean flag per grid cell.
type cellMask []bool

func newCellMask(g *projectedGrid) cellMask {
	return make(cellMask, len(g.cells))
}

func (m cellMask) count() int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}
