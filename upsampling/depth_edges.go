package upsampling

import "math"

// detectDepthEdges flags interior valid cells whose opposite neighbours differ by more than
// thresh along at least one of the horizontal, vertical and two diagonal directions. A pair
// with exactly one invalid member counts as a jump; a pair of two invalid cells does not.
func detectDepthEdges(g *projectedGrid, thresh float64) cellMask {
	edges := newCellMask(g)
	for row := 1; row < g.height-1; row++ {
		for col := 1; col < g.width-1; col++ {
			if !g.at(col, row).valid {
				continue
			}
			if depthJump(g.at(col-1, row), g.at(col+1, row), thresh) ||
				depthJump(g.at(col, row-1), g.at(col, row+1), thresh) ||
				depthJump(g.at(col-1, row-1), g.at(col+1, row+1), thresh) ||
				depthJump(g.at(col+1, row-1), g.at(col-1, row+1), thresh) {
				edges[row*g.width+col] = true
			}
		}
	}
	return edges
}

func depthJump(a, b *gridCell, thresh float64) bool {
	if a.valid != b.valid {
		return true
	}
	if !a.valid {
		return false
	}
	return math.Abs(a.z-b.z) > thresh
}
