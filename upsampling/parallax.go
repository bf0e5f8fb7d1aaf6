package upsampling

import "math"

// filterParallax walks each grid row left to right against a reference sample. A sample that
// projects less than occlusionThresh columns right of the reference (or anywhere left of it)
// while its relative depth differs by more than zContinuousThresh is a parallax double
// projection and gets invalidated. A kept sample that lands right of the reference becomes
// the new reference. It returns the number of rejected samples.
func filterParallax(g *projectedGrid, occlusionThresh, zContinuousThresh float64) int {
	rejected := 0
	for row := 0; row < g.height; row++ {
		haveRef := false
		var uLeft, zLeft float64
		for col := 0; col < g.width; col++ {
			c := g.at(col, row)
			if !c.valid {
				continue
			}
			if !haveRef {
				uLeft, zLeft, haveRef = c.uf, c.z, true
				continue
			}
			uDiff := c.uf - uLeft
			zDiffPer := math.Abs(c.z-zLeft) / c.z
			if uDiff < occlusionThresh && zDiffPer > zContinuousThresh {
				c.valid = false
				rejected++
				continue
			}
			if uLeft < c.uf {
				uLeft, zLeft = c.uf, c.z
			}
		}
	}
	return rejected
}
