package upsampling

import (
	"context"
	"image"
	"math"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"gonum.org/v1/gonum/floats"

	"go.viam.com/depthfusion/pointcloud"
	"go.viam.com/depthfusion/rimage"
	"go.viam.com/depthfusion/utils"
)

// confidenceGain scales the smoothed mask response, together with lambda, into a confidence.
const confidenceGain = 10.0

// streamConfig is what differs between the flood and spot pipelines.
type streamConfig struct {
	name        string
	lambda      float64
	sigmaColor  float64
	iterations  int
	rangeRadius int
	// filterDepth runs the parallax filter and edge voting on the samples.
	filterDepth bool
	// suppressGuideEdges drops samples that land on a guide image edge.
	suppressGuideEdges bool
}

// streamState holds the guide resolution buffers of one stream. They are rebuilt every Run.
type streamState struct {
	depth     *rimage.FloatImage
	mask      *rimage.FloatImage
	rangeMask *rimage.Mask
	roi       image.Rectangle

	dense *rimage.FloatImage
	conf  *rimage.FloatImage
}

func newStreamState(width, height int) *streamState {
	st := &streamState{
		depth:     rimage.NewFloatImage(width, height),
		mask:      rimage.NewFloatImage(width, height),
		rangeMask: rimage.NewMask(width, height),
		dense:     rimage.NewFloatImage(width, height),
		conf:      rimage.NewFloatImage(width, height),
	}
	st.clear()
	return st
}

func (st *streamState) clear() {
	st.depth.Fill(0)
	st.mask.Fill(0)
	st.rangeMask.Clear()
	st.roi = st.depth.Bounds()
	st.dense.Fill(math.NaN())
	st.conf.Fill(math.NaN())
}

// streamStats counts what happened to the samples of one stream.
type streamStats struct {
	samples          int
	parallaxRejected int
	edgeRejected     int
	guideSuppressed  int
	written          int
}

// runStream fills st.dense and st.conf from one point cloud.
func (u *Upsampler) runStream(
	ctx context.Context,
	st *streamState,
	cfg streamConfig,
	guide *image.Gray,
	frame *pointcloud.Frame,
) (streamStats, error) {
	ctx, span := trace.StartSpan(ctx, "upsampling::"+cfg.name+"::run")
	defer span.End()

	grid := projectFrame(frame, &u.intrinsics)
	stats := streamStats{samples: grid.countValid()}
	st.roi = grid.footprint(cfg.rangeRadius, guide.Bounds())
	if st.roi.Empty() {
		return stats, nil
	}
	guideROI := rimage.SubGray(guide, st.roi)

	var smoother Smoother
	var edges *rimage.Mask
	elapsed, err := utils.RunInParallel(ctx, []utils.SimpleFunc{
		func(ctx context.Context) error {
			_, span := trace.StartSpan(ctx, "upsampling::"+cfg.name+"::guide")
			defer span.End()
			var err error
			smoother, err = u.newSmoother(guideROI, cfg.lambda, cfg.sigmaColor, u.upParams.LambdaAttenuation, cfg.iterations)
			if err != nil {
				return errors.Wrapf(err, "cannot create %s smoother", cfg.name)
			}
			if cfg.suppressGuideEdges && u.preParams.GuideEdgeMaskEnabled() {
				edges, err = rimage.GuideEdgeMask(guideROI, u.preParams.CannyThresh1, u.preParams.CannyThresh2, u.preParams.GuideEdgeDilateSize)
				if err != nil {
					return errors.Wrap(err, "cannot build guide edge mask")
				}
			}
			return nil
		},
		func(ctx context.Context) error {
			_, span := trace.StartSpan(ctx, "upsampling::"+cfg.name+"::depth")
			defer span.End()
			if !cfg.filterDepth || !u.preParams.DepthFilteringEnabled() {
				return nil
			}
			stats.parallaxRejected = filterParallax(grid, u.preParams.OcclusionThresh, u.preParams.ZContinuousThresh)
			if u.preParams.EdgeVotingEnabled() {
				stats.edgeRejected = filterEdgeErrors(grid, guide, u.preParams, u.intrinsics.Width/grid.width)
			}
			return nil
		},
	})
	if err != nil {
		return stats, err
	}
	u.logger.Debugw("stream preprocessed", "stream", cfg.name, "elapsed", elapsed, "roi", st.roi)

	stats.guideSuppressed, stats.written = st.writeSamples(grid, edges, cfg.rangeRadius)
	if err := st.interpolate(ctx, smoother, cfg); err != nil {
		return stats, err
	}
	return stats, nil
}

// writeSamples writes every valid cell into the depth, mask and range buffers. edges, when set,
// covers st.roi and suppresses the samples landing on it.
func (st *streamState) writeSamples(g *projectedGrid, edges *rimage.Mask, radius int) (int, int) {
	suppressed, written := 0, 0
	for _, c := range g.cells {
		if !c.valid {
			continue
		}
		if edges != nil {
			ex, ey := c.u-st.roi.Min.X, c.v-st.roi.Min.Y
			if edges.In(ex, ey) && edges.Get(ex, ey) {
				suppressed++
				continue
			}
		}
		st.depth.Set(c.u, c.v, c.z)
		st.mask.Set(c.u, c.v, 1)
		st.rangeMask.MarkSquare(c.u, c.v, radius)
		written++
	}
	return suppressed, written
}

// interpolate smooths the sparse depth and the mask over the ROI and divides them. The
// confidence is the mask response times lambda times confidenceGain, capped at 1. Pixels
// outside the range footprint are NaN in both outputs.
func (st *streamState) interpolate(ctx context.Context, smoother Smoother, cfg streamConfig) error {
	_, span := trace.StartSpan(ctx, "upsampling::"+cfg.name+"::interpolate")
	defer span.End()

	depthResp, err := smoother.Filter(st.depth.SubImage(st.roi))
	if err != nil {
		return errors.Wrapf(err, "cannot smooth %s depth", cfg.name)
	}
	maskResp, err := smoother.Filter(st.mask.SubImage(st.roi))
	if err != nil {
		return errors.Wrapf(err, "cannot smooth %s mask", cfg.name)
	}
	if depthResp.Bounds() != maskResp.Bounds() || depthResp.Bounds().Size() != st.roi.Size() {
		return errors.Errorf("%s smoother returned %v for a %v region", cfg.name, depthResp.Bounds().Size(), st.roi.Size())
	}

	dense := rimage.NewFloatImage(st.roi.Dx(), st.roi.Dy())
	floats.DivTo(dense.Data(), depthResp.Data(), maskResp.Data())
	for i, v := range dense.Data() {
		if !utils.IsFinite(v) {
			dense.Data()[i] = math.NaN()
		}
	}

	conf := rimage.NewFloatImage(st.roi.Dx(), st.roi.Dy())
	floats.ScaleTo(conf.Data(), cfg.lambda*confidenceGain, maskResp.Data())
	for i, v := range conf.Data() {
		if v > 1 {
			conf.Data()[i] = 1
		}
	}

	st.dense.Paste(dense, st.roi.Min)
	st.conf.Paste(conf, st.roi.Min)
	st.dense.FillWhereUnset(st.rangeMask, math.NaN())
	st.conf.FillWhereUnset(st.rangeMask, math.NaN())
	return nil
}

// fuse keeps the flood results wherever the flood footprint reaches and takes the spot
// results everywhere else.
func fuse(flood, spot *streamState) (*rimage.FloatImage, *rimage.FloatImage) {
	dense := flood.dense.Clone()
	conf := flood.conf.Clone()
	for i, covered := range flood.rangeMask.Data() {
		if covered {
			continue
		}
		dense.Data()[i] = spot.dense.Data()[i]
		conf.Data()[i] = spot.conf.Data()[i]
	}
	return dense, conf
}
