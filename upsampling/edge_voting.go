package upsampling

import (
	"image"
	"math"

	"go.viam.com/depthfusion/rimage"
)

// guideRegionRadius is the half size of the guide window averaged around a projected sample.
const guideRegionRadius = 1

// edgeVoter finds edge cells whose depth and guide disagree about where the boundary is.
type edgeVoter struct {
	grid        *projectedGrid
	edges       cellMask
	guide       *image.Gray
	depthThresh float64
	guideThresh float64
	// pitch is the guide distance in pixels between two adjacent grid cells. It positions the
	// guide lookup of neighbours that have no projection.
	pitch int
}

// vote runs one pass over the (2*delta+1)^2 neighbourhood of every edge cell. Cells flagged in
// prev are carried into the result and ignored as neighbours. A neighbour votes +1 when exactly
// one of "depth differs" and "guide differs" holds and -1 otherwise; a cell is an error when
// the net vote exceeds threshold.
func (ev *edgeVoter) vote(prev cellMask, delta, threshold int) cellMask {
	g := ev.grid
	out := newCellMask(g)
	for row := 1; row < g.height-1; row++ {
		for col := 1; col < g.width-1; col++ {
			idx := row*g.width + col
			if !ev.edges[idx] {
				continue
			}
			if prev[idx] {
				out[idx] = true
				continue
			}
			if ev.netVote(prev, col, row, delta) > threshold {
				out[idx] = true
			}
		}
	}
	return out
}

func (ev *edgeVoter) netVote(prev cellMask, col, row, delta int) int {
	g := ev.grid
	ref := g.at(col, row)
	refGuide := rimage.RegionAverage(ev.guide, ref.u, ref.v, guideRegionRadius)
	count := 0
	for j := -delta; j <= delta; j++ {
		for i := -delta; i <= delta; i++ {
			if i == 0 && j == 0 {
				continue
			}
			nc, nr := col+i, row+j
			if !g.in(nc, nr) || prev[nr*g.width+nc] {
				continue
			}
			n := g.at(nc, nr)
			u, v := n.u, n.v
			if !n.valid {
				u, v = ref.u+ev.pitch*i, ref.v+ev.pitch*j
			}
			depthDiffers := !n.valid || math.Abs(n.z-ref.z) > ev.depthThresh
			guideDiffers := math.Abs(rimage.RegionAverage(ev.guide, u, v, guideRegionRadius)-refGuide) > ev.guideThresh
			if depthDiffers != guideDiffers {
				count++
			} else {
				count--
			}
		}
	}
	return count
}

// filterEdgeErrors runs edge detection and the two voting passes, invalidates the erroneous
// cells and returns how many were removed.
func filterEdgeErrors(g *projectedGrid, guide *image.Gray, params PreprocessingParams, pitch int) int {
	ev := &edgeVoter{
		grid:        g,
		edges:       detectDepthEdges(g, params.DepthDiffThresh),
		guide:       guide,
		depthThresh: params.DepthDiffThresh,
		guideThresh: params.GuideDiffThresh,
		pitch:       pitch,
	}
	pass1 := ev.vote(newCellMask(g), 1, 0)
	pass2 := ev.vote(pass1, 2, params.MinDiffCount-24)
	for i, bad := range pass2 {
		if bad {
			g.cells[i].valid = false
		}
	}
	return pass2.count()
}
