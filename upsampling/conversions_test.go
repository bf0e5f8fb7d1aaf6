package upsampling

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/depthfusion/pointcloud"
	"go.viam.com/depthfusion/rimage"
)

func TestDepthPointCloudRoundTrip(t *testing.T) {
	u := newTestUpsampler(t)
	depth := rimage.NewFloatImageFilled(testWidth, testHeight, math.NaN())
	for y := 10; y < 50; y++ {
		for x := 20; x < 90; x++ {
			depth.Set(x, y, 0.5+0.01*float64(x))
		}
	}

	frame, err := u.DepthToPointCloud(depth)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame.CountValid(), test.ShouldEqual, 40*70)

	back := u.PointCloudToDepthMap(frame)
	test.That(t, back.CountFinite(), test.ShouldEqual, 40*70)
	again, err := u.DepthToPointCloud(back)
	test.That(t, err, test.ShouldBeNil)

	frame.Iterate(func(col, row int, s pointcloud.Sample) bool {
		other := again.At(col, row)
		test.That(t, other.Valid, test.ShouldEqual, s.Valid)
		if s.Valid {
			test.That(t, other.Point.Distance(s.Point), test.ShouldBeLessThan, 1e-9)
		}
		return true
	})

	_, err = u.DepthToPointCloud(rimage.NewFloatImage(10, 10))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPointCloudToDepthMapCollisions(t *testing.T) {
	u := newTestUpsampler(t)
	intrinsics := testIntrinsics()
	frame := pointcloud.NewFrame(3, 1)
	frame.Set(0, 0, intrinsics.PixelToPoint(30, 40, 2))
	frame.Set(1, 0, intrinsics.PixelToPoint(30, 40, 3))
	frame.Set(2, 0, r3.Vector{X: 100, Y: 0, Z: 1})

	depth := u.PointCloudToDepthMap(frame)
	test.That(t, depth.Get(30, 40), test.ShouldAlmostEqual, 3.0, 1e-9)
	test.That(t, depth.CountFinite(), test.ShouldEqual, 1)
	test.That(t, u.PointCloudToDepthMap(nil).CountFinite(), test.ShouldEqual, 0)
}

func TestFilterByConfidence(t *testing.T) {
	dense := rimage.NewFloatImageFilled(2, 2, 4)
	conf, err := rimage.NewFloatImageFromData(2, 2, []float64{0.9, 0.5, math.NaN(), 0.2})
	test.That(t, err, test.ShouldBeNil)

	out, err := FilterByConfidence(dense, conf, 0.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Get(0, 0), test.ShouldEqual, 4.0)
	test.That(t, out.Get(1, 0), test.ShouldEqual, 4.0)
	test.That(t, math.IsNaN(out.Get(0, 1)), test.ShouldBeTrue)
	test.That(t, math.IsNaN(out.Get(1, 1)), test.ShouldBeTrue)
	test.That(t, dense.Get(1, 1), test.ShouldEqual, 4.0)

	_, err = FilterByConfidence(dense, rimage.NewFloatImage(3, 2), 0.5)
	test.That(t, err, test.ShouldNotBeNil)
}
