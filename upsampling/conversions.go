package upsampling

import (
	"math"

	"github.com/pkg/errors"

	"go.viam.com/depthfusion/pointcloud"
	"go.viam.com/depthfusion/rimage"
	"go.viam.com/depthfusion/utils"
)

// DepthToPointCloud back-projects every pixel of depth into an organized frame of the same
// size. Pixels without a finite positive depth become invalid samples.
func (u *Upsampler) DepthToPointCloud(depth *rimage.FloatImage) (*pointcloud.Frame, error) {
	intrinsics := u.CameraParameters()
	if depth.Width() != intrinsics.Width || depth.Height() != intrinsics.Height {
		return nil, errors.Errorf("depth map is %dx%d but the camera is %dx%d",
			depth.Width(), depth.Height(), intrinsics.Width, intrinsics.Height)
	}
	frame := pointcloud.NewFrame(depth.Width(), depth.Height())
	utils.ParallelForEachRow(depth.Height(), func(y int) {
		for x := 0; x < depth.Width(); x++ {
			z := depth.Get(x, y)
			if !utils.IsFinite(z) || z <= 0 {
				continue
			}
			frame.Set(x, y, intrinsics.PixelToPoint(float64(x), float64(y), z))
		}
	})
	return frame, nil
}

// PointCloudToDepthMap projects every valid sample of frame into a guide sized depth map.
// Pixels no sample lands on are NaN; when samples collide the last one in row-major order wins.
func (u *Upsampler) PointCloudToDepthMap(frame *pointcloud.Frame) *rimage.FloatImage {
	intrinsics := u.CameraParameters()
	depth := rimage.NewFloatImageFilled(intrinsics.Width, intrinsics.Height, math.NaN())
	if frame == nil {
		return depth
	}
	frame.Iterate(func(_, _ int, s pointcloud.Sample) bool {
		if !s.Valid {
			return true
		}
		if px, py, ok := intrinsics.PointToPixel(s.Point); ok {
			depth.Set(px, py, s.Point.Z)
		}
		return true
	})
	return depth
}

// FilterByConfidence returns a copy of dense with NaN wherever conf is below threshold or NaN.
func FilterByConfidence(dense, conf *rimage.FloatImage, threshold float64) (*rimage.FloatImage, error) {
	if dense.Bounds() != conf.Bounds() {
		return nil, errors.Errorf("dense %v and confidence %v differ in size", dense.Bounds(), conf.Bounds())
	}
	out := dense.Clone()
	for i, c := range conf.Data() {
		if !(c >= threshold) {
			out.Data()[i] = math.NaN()
		}
	}
	return out, nil
}
