// Package upsampling fuses a coarse flood point cloud and a sparse spot point cloud with a high
// resolution guide image into a dense depth map and a per pixel confidence.
//
// Each stream projects its samples onto the guide, drops inconsistent ones, and spreads the
// rest with an edge-aware smoother (normalized convolution of depth and validity). The flood
// result wins wherever flood samples reach; spot fills the remainder.
package upsampling

import (
	"context"
	"image"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"go.viam.com/depthfusion/logging"
	"go.viam.com/depthfusion/pointcloud"
	"go.viam.com/depthfusion/rimage"
	"go.viam.com/depthfusion/rimage/transform"
	"go.viam.com/depthfusion/utils"
)

// Result is the output of one Run. The images are owned by the caller.
type Result struct {
	Dense *rimage.FloatImage
	Conf  *rimage.FloatImage
	Mode  Mode
}

// Upsampler owns the per stream buffers and the parameters. Run calls are serialized.
type Upsampler struct {
	mu         sync.Mutex
	logger     logging.Logger
	intrinsics transform.PinholeCameraIntrinsics
	upParams   UpsamplingParams
	preParams  PreprocessingParams

	newSmoother SmootherFactory

	flood *streamState
	spot  *streamState
}

// NewUpsampler returns an upsampler producing images of the intrinsics' size with the default
// parameters.
func NewUpsampler(intrinsics *transform.PinholeCameraIntrinsics, logger logging.Logger) (*Upsampler, error) {
	if logger == nil {
		logger = logging.NewBlankLogger("upsampling")
	}
	u := &Upsampler{
		logger:      logger,
		upParams:    DefaultUpsamplingParams(),
		preParams:   DefaultPreprocessingParams(),
		newSmoother: NewFastGlobalSmoother,
	}
	if err := u.SetCameraParameters(intrinsics); err != nil {
		return nil, err
	}
	return u, nil
}

// SetCameraParameters validates and stores a copy of the intrinsics and reallocates the
// buffers for the new guide size.
func (u *Upsampler) SetCameraParameters(intrinsics *transform.PinholeCameraIntrinsics) error {
	if err := intrinsics.CheckValid(); err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.intrinsics = *intrinsics
	u.flood = newStreamState(intrinsics.Width, intrinsics.Height)
	u.spot = newStreamState(intrinsics.Width, intrinsics.Height)
	return nil
}

// CameraParameters returns a copy of the current intrinsics.
func (u *Upsampler) CameraParameters() transform.PinholeCameraIntrinsics {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.intrinsics
}

// SetSmootherFactory replaces the interpolation primitive. A nil factory restores the Fast
// Global Smoother.
func (u *Upsampler) SetSmootherFactory(f SmootherFactory) {
	if f == nil {
		f = NewFastGlobalSmoother
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.newSmoother = f
}

// SetUpsamplingParams stores a clamped copy of params.
func (u *Upsampler) SetUpsamplingParams(params UpsamplingParams) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.upParams = params.Clamped()
}

// UpsamplingParams returns the parameters in use.
func (u *Upsampler) UpsamplingParams() UpsamplingParams {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.upParams
}

// SetPreprocessingParams stores a clamped copy of params.
func (u *Upsampler) SetPreprocessingParams(params PreprocessingParams) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.preParams = params.Clamped()
}

// PreprocessingParams returns the parameters in use.
func (u *Upsampler) PreprocessingParams() PreprocessingParams {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.preParams
}

func (u *Upsampler) clear() {
	u.flood.clear()
	u.spot.clear()
}

// Run upsamples one frame. Either cloud may be nil. A missing guide returns ErrNoGuide and no
// result. When both clouds are missing the result is all NaN and ErrNoPointCloud is returned.
func (u *Upsampler) Run(ctx context.Context, guide *image.Gray, flood, spot *pointcloud.Frame) (*Result, error) {
	if guide == nil || guide.Bounds().Empty() {
		return nil, ErrNoGuide
	}
	ctx, span := trace.StartSpan(ctx, "upsampling::Run")
	defer span.End()

	u.mu.Lock()
	defer u.mu.Unlock()

	if guide.Bounds().Size() != u.intrinsics.Size() {
		return nil, errors.Errorf("guide is %v but the camera expects %v", guide.Bounds().Size(), u.intrinsics.Size())
	}
	guide = rimage.ToGray(guide)

	start := time.Now()
	u.clear()
	mode := selectMode(flood, spot)
	res := &Result{Mode: mode}

	var err error
	switch mode {
	case ModeNone:
		res.Dense = rimage.NewFloatImageFilled(u.intrinsics.Width, u.intrinsics.Height, math.NaN())
		res.Conf = rimage.NewFloatImageFilled(u.intrinsics.Width, u.intrinsics.Height, math.NaN())
		return res, ErrNoPointCloud
	case ModeFlood:
		err = u.runFlood(ctx, guide, flood)
		res.Dense, res.Conf = u.flood.dense.Clone(), u.flood.conf.Clone()
	case ModeSpot:
		err = u.runSpot(ctx, guide, spot)
		res.Dense, res.Conf = u.spot.dense.Clone(), u.spot.conf.Clone()
	case ModeBoth:
		_, err = utils.RunInParallel(ctx, []utils.SimpleFunc{
			func(ctx context.Context) error { return u.runFlood(ctx, guide, flood) },
			func(ctx context.Context) error { return u.runSpot(ctx, guide, spot) },
		})
		res.Dense, res.Conf = fuse(u.flood, u.spot)
	}
	if err != nil {
		return nil, err
	}
	u.logger.Debugw("upsampled frame", "mode", mode, "elapsed", time.Since(start), "covered", res.Dense.CountFinite())
	return res, nil
}

func (u *Upsampler) runFlood(ctx context.Context, guide *image.Gray, frame *pointcloud.Frame) error {
	stats, err := u.runStream(ctx, u.flood, streamConfig{
		name:               "flood",
		lambda:             u.upParams.LambdaFlood,
		sigmaColor:         u.upParams.SigmaColorFlood,
		iterations:         u.upParams.IterationsFlood,
		rangeRadius:        u.preParams.RangeFlood,
		filterDepth:        true,
		suppressGuideEdges: true,
	}, guide, frame)
	if err != nil {
		return err
	}
	u.logger.Debugw("flood samples",
		"valid", stats.samples,
		"parallax_rejected", stats.parallaxRejected,
		"edge_rejected", stats.edgeRejected,
		"guide_edge_suppressed", stats.guideSuppressed,
		"written", stats.written)
	return nil
}

func (u *Upsampler) runSpot(ctx context.Context, guide *image.Gray, frame *pointcloud.Frame) error {
	stats, err := u.runStream(ctx, u.spot, streamConfig{
		name:        "spot",
		lambda:      u.upParams.LambdaSpot,
		sigmaColor:  u.upParams.SigmaColorSpot,
		iterations:  u.upParams.IterationsSpot,
		rangeRadius: u.preParams.RangeSpot,
	}, guide, frame)
	if err != nil {
		return err
	}
	u.logger.Debugw("spot samples", "valid", stats.samples, "written", stats.written)
	return nil
}

// FloodDepthMap returns a copy of the sparse flood depth written by the last Run.
func (u *Upsampler) FloodDepthMap() *rimage.FloatImage {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.flood.depth.Clone()
}

// SpotDepthMap returns a copy of the sparse spot depth written by the last Run.
func (u *Upsampler) SpotDepthMap() *rimage.FloatImage {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.spot.depth.Clone()
}

// FloodRange returns a copy of the flood footprint of the last Run.
func (u *Upsampler) FloodRange() *rimage.Mask {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.flood.rangeMask.Clone()
}

// SpotRange returns a copy of the spot footprint of the last Run.
func (u *Upsampler) SpotRange() *rimage.Mask {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.spot.rangeMask.Clone()
}
