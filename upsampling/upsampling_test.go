package upsampling

import (
	"context"
	"image"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/depthfusion/logging"
	"go.viam.com/depthfusion/pointcloud"
	"go.viam.com/depthfusion/rimage"
	"go.viam.com/depthfusion/rimage/transform"
)

const (
	testWidth      = 160
	testHeight     = 120
	testGridWidth  = 16
	testGridHeight = 12
	testPitch      = testWidth / testGridWidth
)

func testIntrinsics() *transform.PinholeCameraIntrinsics {
	return &transform.PinholeCameraIntrinsics{Width: testWidth, Height: testHeight, Fx: 100, Fy: 100, Ppx: 80, Ppy: 60}
}

func newTestUpsampler(t *testing.T) *Upsampler {
	t.Helper()
	u, err := NewUpsampler(testIntrinsics(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return u
}

func flatGuide() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, testWidth, testHeight))
	for i := range g.Pix {
		g.Pix[i] = 90
	}
	return g
}

// cellPixel is where grid cell (col, row) of a test frame projects.
func cellPixel(col, row int) (int, int) {
	return testPitch*col + testPitch/2, testPitch*row + testPitch/2
}

// planeFrame returns a flood sized frame whose cells with keep(col, row) lie at depth z.
func planeFrame(z float64, keep func(col, row int) bool) *pointcloud.Frame {
	intrinsics := testIntrinsics()
	f := pointcloud.NewFrame(testGridWidth, testGridHeight)
	for row := 0; row < testGridHeight; row++ {
		for col := 0; col < testGridWidth; col++ {
			if keep != nil && !keep(col, row) {
				f.Set(col, row, r3.Vector{X: math.NaN(), Y: math.NaN(), Z: math.NaN()})
				continue
			}
			u, v := cellPixel(col, row)
			f.Set(col, row, intrinsics.PixelToPoint(float64(u), float64(v), z))
		}
	}
	return f
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func TestRunNoGuide(t *testing.T) {
	u := newTestUpsampler(t)
	res, err := u.Run(context.Background(), nil, planeFrame(1, nil), nil)
	test.That(t, errors.Is(err, ErrNoGuide), test.ShouldBeTrue)
	test.That(t, res, test.ShouldBeNil)

	res, err = u.Run(context.Background(), image.NewGray(image.Rect(0, 0, 0, 0)), planeFrame(1, nil), nil)
	test.That(t, errors.Is(err, ErrNoGuide), test.ShouldBeTrue)
	test.That(t, res, test.ShouldBeNil)

	_, err = u.Run(context.Background(), image.NewGray(image.Rect(0, 0, 10, 10)), planeFrame(1, nil), nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRunNoPointCloud(t *testing.T) {
	u := newTestUpsampler(t)
	res, err := u.Run(context.Background(), flatGuide(), nil, pointcloud.NewFrame(0, 0))
	test.That(t, errors.Is(err, ErrNoPointCloud), test.ShouldBeTrue)
	test.That(t, res.Mode, test.ShouldEqual, ModeNone)
	test.That(t, res.Dense.Width(), test.ShouldEqual, testWidth)
	test.That(t, res.Dense.CountFinite(), test.ShouldEqual, 0)
	test.That(t, res.Conf.CountFinite(), test.ShouldEqual, 0)
}

func TestFloodOnlyCoverage(t *testing.T) {
	u := newTestUpsampler(t)
	flood := planeFrame(1.5, func(col, row int) bool { return col < 6 })
	res, err := u.Run(context.Background(), flatGuide(), flood, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Mode, test.ShouldEqual, ModeFlood)

	floodRange := u.FloodRange()
	test.That(t, floodRange.Count(), test.ShouldBeGreaterThan, 0)
	test.That(t, floodRange.Get(testWidth-1, 0), test.ShouldBeFalse)
	for y := 0; y < testHeight; y++ {
		for x := 0; x < testWidth; x++ {
			d, c := res.Dense.Get(x, y), res.Conf.Get(x, y)
			if !floodRange.Get(x, y) {
				test.That(t, math.IsNaN(d), test.ShouldBeTrue)
				test.That(t, math.IsNaN(c), test.ShouldBeTrue)
				continue
			}
			test.That(t, d, test.ShouldAlmostEqual, 1.5, 1e-6)
			test.That(t, c, test.ShouldBeBetweenOrEqual, 0.0, 1.0)
		}
	}

	sparse := u.FloodDepthMap()
	px, py := cellPixel(2, 3)
	test.That(t, sparse.Get(px, py), test.ShouldAlmostEqual, 1.5, 1e-9)
	test.That(t, sparse.Get(px+1, py), test.ShouldEqual, 0.0)
}

func TestSpotOnly(t *testing.T) {
	u := newTestUpsampler(t)
	spot := pointcloud.NewFrame(2, 1)
	spot.Set(0, 0, testIntrinsics().PixelToPoint(40, 60, 2))
	spot.Set(1, 0, testIntrinsics().PixelToPoint(120, 60, 2))

	res, err := u.Run(context.Background(), flatGuide(), nil, spot)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Mode, test.ShouldEqual, ModeSpot)
	spotRange := u.SpotRange()
	test.That(t, spotRange.Count(), test.ShouldEqual, res.Dense.CountFinite())
	test.That(t, res.Dense.Get(40, 60), test.ShouldAlmostEqual, 2.0, 1e-6)
	test.That(t, res.Conf.Get(40, 60), test.ShouldBeGreaterThan, 0.0)
	test.That(t, res.Conf.Get(40, 60), test.ShouldBeLessThanOrEqualTo, 1.0)
	test.That(t, u.SpotDepthMap().Get(120, 60), test.ShouldEqual, 2.0)
	test.That(t, u.FloodDepthMap().CountFinite(), test.ShouldEqual, testWidth*testHeight)
	test.That(t, u.FloodRange().Count(), test.ShouldEqual, 0)
}

func TestBothPrefersFlood(t *testing.T) {
	u := newTestUpsampler(t)
	flood := planeFrame(1, func(col, row int) bool { return col < 4 })
	spot := pointcloud.NewFrame(3, 1)
	spot.Set(0, 0, testIntrinsics().PixelToPoint(20, 60, 2))
	spot.Set(1, 0, testIntrinsics().PixelToPoint(100, 60, 2))
	spot.Set(2, 0, testIntrinsics().PixelToPoint(140, 30, 2))

	res, err := u.Run(context.Background(), flatGuide(), flood, spot)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Mode, test.ShouldEqual, ModeBoth)

	floodRange, spotRange := u.FloodRange(), u.SpotRange()
	for y := 0; y < testHeight; y++ {
		for x := 0; x < testWidth; x++ {
			covered := floodRange.Get(x, y) || spotRange.Get(x, y)
			test.That(t, finite(res.Dense.Get(x, y)), test.ShouldEqual, covered)
			test.That(t, finite(res.Conf.Get(x, y)), test.ShouldEqual, covered)
		}
	}
	// overlap of both footprints keeps the flood depth
	test.That(t, floodRange.Get(20, 60) && spotRange.Get(20, 60), test.ShouldBeTrue)
	test.That(t, res.Dense.Get(20, 60), test.ShouldAlmostEqual, 1.0, 1e-6)
	test.That(t, res.Dense.Get(100, 60), test.ShouldAlmostEqual, 2.0, 1e-6)
	test.That(t, floodRange.Get(100, 60), test.ShouldBeFalse)
}

func TestOcclusionRejectsFartherSample(t *testing.T) {
	intrinsics := testIntrinsics()
	flood := planeFrame(1, func(int, int) bool { return false })
	// A lands at u=110 with z=1, B one cell to the right lands at u=104 with z=2
	flood.Set(3, 5, intrinsics.PixelToPoint(110, 55, 1))
	flood.Set(4, 5, intrinsics.PixelToPoint(104, 55, 2))

	u := newTestUpsampler(t)
	_, err := u.Run(context.Background(), flatGuide(), flood, nil)
	test.That(t, err, test.ShouldBeNil)
	sparse := u.FloodDepthMap()
	test.That(t, sparse.Get(110, 55), test.ShouldAlmostEqual, 1.0, 1e-9)
	test.That(t, sparse.Get(104, 55), test.ShouldEqual, 0.0)

	// with depth filtering switched off both samples are kept
	u.SetPreprocessingParams(DisabledPreprocessingParams())
	_, err = u.Run(context.Background(), flatGuide(), flood, nil)
	test.That(t, err, test.ShouldBeNil)
	sparse = u.FloodDepthMap()
	test.That(t, sparse.Get(104, 55), test.ShouldAlmostEqual, 2.0, 1e-9)
}

func TestFloodGuideEdgeSuppression(t *testing.T) {
	// the footprint starts at (33, 23) so the edge mask only covers part of the guide
	flood := planeFrame(1, func(col, row int) bool { return col >= 3 && row >= 2 })
	guide := stepGuide(85, 20, 230)
	onEdgeX, onEdgeY := cellPixel(8, 5)
	leftX, leftY := cellPixel(4, 5)
	rightX, rightY := cellPixel(10, 5)

	params := DefaultPreprocessingParams()
	params.RangeFlood = MinRange
	params.DepthDiffThresh = 0

	u := newTestUpsampler(t)
	u.SetPreprocessingParams(params)
	res, err := u.Run(context.Background(), guide, flood, nil)
	test.That(t, err, test.ShouldBeNil)

	sparse, floodRange := u.FloodDepthMap(), u.FloodRange()
	test.That(t, sparse.Get(onEdgeX, onEdgeY), test.ShouldEqual, 0.0)
	test.That(t, floodRange.Get(onEdgeX, onEdgeY), test.ShouldBeFalse)
	test.That(t, math.IsNaN(res.Dense.Get(onEdgeX, onEdgeY)), test.ShouldBeTrue)
	for _, p := range []image.Point{{leftX, leftY}, {rightX, rightY}} {
		test.That(t, sparse.Get(p.X, p.Y), test.ShouldEqual, 1.0)
		test.That(t, floodRange.Get(p.X, p.Y), test.ShouldBeTrue)
	}

	t.Run("disabled preprocessing keeps the sample", func(t *testing.T) {
		disabled := DisabledPreprocessingParams()
		disabled.RangeFlood = MinRange
		u.SetPreprocessingParams(disabled)
		_, err := u.Run(context.Background(), guide, flood, nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, u.FloodDepthMap().Get(onEdgeX, onEdgeY), test.ShouldEqual, 1.0)
		test.That(t, u.FloodRange().Get(onEdgeX, onEdgeY), test.ShouldBeTrue)
	})
}

func TestSelectMode(t *testing.T) {
	full := planeFrame(1, nil)
	allInvalid := pointcloud.NewFrame(testGridWidth, testGridHeight)
	test.That(t, selectMode(nil, nil), test.ShouldEqual, ModeNone)
	test.That(t, selectMode(pointcloud.NewFrame(0, 0), nil), test.ShouldEqual, ModeNone)
	test.That(t, selectMode(full, nil), test.ShouldEqual, ModeFlood)
	test.That(t, selectMode(nil, allInvalid), test.ShouldEqual, ModeSpot)
	test.That(t, selectMode(allInvalid, full), test.ShouldEqual, ModeBoth)
}

func TestIdempotence(t *testing.T) {
	guide := flatGuide()
	for x := 0; x < testWidth; x++ {
		for y := 0; y < testHeight; y++ {
			guide.Pix[guide.PixOffset(x, y)] = uint8((x * 3) % 256)
		}
	}
	flood := planeFrame(1.2, func(col, row int) bool { return (col+row)%5 != 0 })
	spot := pointcloud.NewFrame(1, 1)
	spot.Set(0, 0, testIntrinsics().PixelToPoint(150, 110, 0.8))

	u := newTestUpsampler(t)
	first, err := u.Run(context.Background(), guide, flood, spot)
	test.That(t, err, test.ShouldBeNil)
	second, err := u.Run(context.Background(), guide, flood, spot)
	test.That(t, err, test.ShouldBeNil)

	sameOrBothNaN := func(a, b *rimage.FloatImage) bool {
		for i, v := range a.Data() {
			w := b.Data()[i]
			if v != w && !(math.IsNaN(v) && math.IsNaN(w)) {
				return false
			}
		}
		return true
	}
	test.That(t, sameOrBothNaN(first.Dense, second.Dense), test.ShouldBeTrue)
	test.That(t, sameOrBothNaN(first.Conf, second.Conf), test.ShouldBeTrue)
	test.That(t, first.Dense.CountFinite(), test.ShouldBeGreaterThan, 0)
}

func TestParameterClamping(t *testing.T) {
	u := newTestUpsampler(t)
	test.That(t, u.UpsamplingParams(), test.ShouldResemble, DefaultUpsamplingParams())
	test.That(t, u.PreprocessingParams(), test.ShouldResemble, DefaultPreprocessingParams())

	params := DefaultUpsamplingParams()
	params.IterationsFlood = 0
	params.IterationsSpot = 9
	params.LambdaFlood = 0.2
	params.SigmaColorSpot = math.NaN()
	u.SetUpsamplingParams(params)
	got := u.UpsamplingParams()
	test.That(t, got.IterationsFlood, test.ShouldEqual, 1)
	test.That(t, got.IterationsSpot, test.ShouldEqual, 5)
	test.That(t, got.LambdaFlood, test.ShouldEqual, 1.0)
	test.That(t, got.SigmaColorSpot, test.ShouldEqual, 1.0)

	pre := DefaultPreprocessingParams()
	pre.RangeFlood = 0
	pre.GuideEdgeDilateSize = 4
	pre.CannyThresh2 = 400
	u.SetPreprocessingParams(pre)
	gotPre := u.PreprocessingParams()
	test.That(t, gotPre.RangeFlood, test.ShouldEqual, MinRange)
	test.That(t, gotPre.GuideEdgeDilateSize, test.ShouldEqual, 5)
	test.That(t, gotPre.CannyThresh2, test.ShouldEqual, 255.0)

	disabled := DisabledPreprocessingParams()
	test.That(t, disabled.DepthFilteringEnabled(), test.ShouldBeFalse)
	test.That(t, disabled.EdgeVotingEnabled(), test.ShouldBeFalse)
	test.That(t, disabled.GuideEdgeMaskEnabled(), test.ShouldBeFalse)
	test.That(t, DefaultPreprocessingParams().EdgeVotingEnabled(), test.ShouldBeTrue)
}

type failingSmoother struct{}

func (failingSmoother) Filter(src *rimage.FloatImage) (*rimage.FloatImage, error) {
	return nil, errors.New("solver diverged")
}

func TestSmootherFailure(t *testing.T) {
	u := newTestUpsampler(t)
	u.SetSmootherFactory(func(*image.Gray, float64, float64, float64, int) (Smoother, error) {
		return failingSmoother{}, nil
	})
	_, err := u.Run(context.Background(), flatGuide(), planeFrame(1, nil), nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "solver diverged")

	u.SetSmootherFactory(func(*image.Gray, float64, float64, float64, int) (Smoother, error) {
		return nil, errors.New("no memory")
	})
	_, err = u.Run(context.Background(), flatGuide(), nil, planeFrame(1, nil))
	test.That(t, err, test.ShouldNotBeNil)

	u.SetSmootherFactory(nil)
	_, err = u.Run(context.Background(), flatGuide(), planeFrame(1, nil), nil)
	test.That(t, err, test.ShouldBeNil)
}

func TestRunLogsFrame(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	u, err := NewUpsampler(testIntrinsics(), logger)
	test.That(t, err, test.ShouldBeNil)
	_, err = u.Run(context.Background(), flatGuide(), planeFrame(1, nil), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, logs.FilterMessage("upsampled frame").Len(), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("flood samples").Len(), test.ShouldEqual, 1)
}

func TestNewUpsamplerValidation(t *testing.T) {
	_, err := NewUpsampler(nil, nil)
	test.That(t, errors.Is(err, transform.ErrNoIntrinsics), test.ShouldBeTrue)

	u := newTestUpsampler(t)
	bigger := testIntrinsics()
	bigger.Width, bigger.Height = 320, 240
	test.That(t, u.SetCameraParameters(bigger), test.ShouldBeNil)
	test.That(t, u.CameraParameters().Width, test.ShouldEqual, 320)
	test.That(t, u.FloodDepthMap().Width(), test.ShouldEqual, 320)
}
