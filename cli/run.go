package cli

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/depthfusion/config"
	"go.viam.com/depthfusion/logging"
	"go.viam.com/depthfusion/pointcloud"
	"go.viam.com/depthfusion/rimage"
	"go.viam.com/depthfusion/upsampling"
)

// Recorded frames and the files written for them.
const (
	guideFileFormat = "%08d_rgb_gray_img.png"
	floodFileFormat = "%08d_flood_depth_pc.pcd"
	spotFileFormat  = "%08d_spot_depth_pc.pcd"

	denseFileFormat   = "%08d_dense_depth.tiff"
	confFileFormat    = "%08d_conf.tiff"
	previewFileFormat = "%08d_dense_depth.png"
	densePCDFormat    = "%08d_dense_pc.pcd"
	overlayFileFormat = "%08d_samples.png"

	histogramFile = "confidence_hist.png"
	// confidence is written to 16 bit images scaled to the full range.
	confidenceScale = math.MaxUint16
	// every histogramStride-th pixel of each confidence map goes into the histogram.
	histogramStride = 16
)

// frameRunner upsamples recorded frames one after the other.
type frameRunner struct {
	cfg       *config.Config
	up        *upsampling.Upsampler
	logger    logging.Logger
	inputDir  string
	outputDir string
	writePCD  bool
	overlay   bool
	colorMin  float64
	colorMax  float64

	confidence []float64
	coverage   []float64
}

func newFrameRunner(cfg *config.Config, logger logging.Logger, inputDir, outputDir string) (*frameRunner, error) {
	intrinsics, err := cfg.ReadCameraParams()
	if err != nil {
		return nil, errors.Wrap(err, "cannot read camera parameters")
	}
	up, err := upsampling.NewUpsampler(intrinsics, logger.Sublogger("upsampling"))
	if err != nil {
		return nil, err
	}
	up.SetUpsamplingParams(cfg.Upsampling)
	up.SetPreprocessingParams(cfg.Preprocessing)
	return &frameRunner{
		cfg:       cfg,
		up:        up,
		logger:    logger,
		inputDir:  inputDir,
		outputDir: outputDir,
		colorMin:  0.2,
		colorMax:  4,
	}, nil
}

// processFrame upsamples frame index. It returns false without error when the frame's guide
// image does not exist.
func (r *frameRunner) processFrame(ctx context.Context, index int) (bool, error) {
	guidePath := filepath.Join(r.inputDir, fmt.Sprintf(guideFileFormat, index))
	if _, err := os.Stat(guidePath); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	guide, err := rimage.ReadGuide(guidePath)
	if err != nil {
		return false, err
	}
	intrinsics := r.up.CameraParameters()
	if guide.Bounds().Size() != intrinsics.Size() {
		r.logger.Debugw("resizing guide", "from", guide.Bounds().Size(), "to", intrinsics.Size())
		guide = rimage.ResizeGuide(guide, intrinsics.Width, intrinsics.Height)
	}

	flood, err := readOptionalPCD(filepath.Join(r.inputDir, fmt.Sprintf(floodFileFormat, index)))
	if err != nil {
		return false, err
	}
	spot, err := readOptionalPCD(filepath.Join(r.inputDir, fmt.Sprintf(spotFileFormat, index)))
	if err != nil {
		return false, err
	}

	start := time.Now()
	res, err := r.up.Run(ctx, guide, flood, spot)
	if errors.Is(err, upsampling.ErrNoPointCloud) {
		r.logger.Warnw("frame has no point cloud", "frame", index)
	} else if err != nil {
		return false, errors.Wrapf(err, "frame %d", index)
	}
	dense := res.Dense
	if r.cfg.ConfidenceThreshold > 0 {
		if dense, err = upsampling.FilterByConfidence(res.Dense, res.Conf, r.cfg.ConfidenceThreshold); err != nil {
			return false, err
		}
	}
	if err := r.writeFrame(index, dense, res.Conf); err != nil {
		return false, err
	}
	if r.overlay {
		path := filepath.Join(r.outputDir, fmt.Sprintf(overlayFileFormat, index))
		if err := writeSampleOverlay(path, guide, r.up.FloodDepthMap(), r.up.SpotDepthMap()); err != nil {
			return false, err
		}
	}

	covered := float64(dense.CountFinite()) / float64(dense.Width()*dense.Height())
	r.coverage = append(r.coverage, covered)
	r.collectConfidence(res.Conf)
	r.logger.Infow("frame done", "frame", index, "mode", res.Mode, "coverage", covered, "elapsed", time.Since(start))
	return true, nil
}

func (r *frameRunner) writeFrame(index int, dense, conf *rimage.FloatImage) error {
	out := func(format string) string {
		return filepath.Join(r.outputDir, fmt.Sprintf(format, index))
	}
	if err := rimage.WriteDepthTIFF(out(denseFileFormat), dense, r.cfg.DepthScale); err != nil {
		return err
	}
	if err := rimage.WriteDepthTIFF(out(confFileFormat), conf, confidenceScale); err != nil {
		return err
	}
	if err := rimage.WriteColorizedPNG(out(previewFileFormat), dense, r.colorMin, r.colorMax); err != nil {
		return errors.Wrap(err, "cannot write depth preview")
	}
	if !r.writePCD {
		return nil
	}
	frame, err := r.up.DepthToPointCloud(dense)
	if err != nil {
		return err
	}
	return pointcloud.WritePCDFile(frame, out(densePCDFormat), pointcloud.PCDBinary)
}

func (r *frameRunner) collectConfidence(conf *rimage.FloatImage) {
	data := conf.Data()
	for i := 0; i < len(data); i += histogramStride {
		if !math.IsNaN(data[i]) {
			r.confidence = append(r.confidence, data[i])
		}
	}
}

// readOptionalPCD returns nil when path does not exist.
func readOptionalPCD(path string) (*pointcloud.Frame, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return pointcloud.ReadPCDFile(path)
}

// RunAction is the corresponding action for 'run'.
func RunAction(c *cli.Context, logger logging.Logger) error {
	cfg, err := config.ReadLocalConfig(c.String(generalFlagConfig), logger)
	if err != nil {
		return err
	}
	outputDir := c.Path(runFlagOutputDir)
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return errors.Wrapf(err, "cannot create %q", outputDir)
	}
	r, err := newFrameRunner(cfg, logger, c.Path(runFlagInputDir), outputDir)
	if err != nil {
		return err
	}
	r.writePCD = c.Bool(runFlagWritePCD)
	r.overlay = c.Bool(runFlagOverlay)
	if colorRange := c.Float64Slice(runFlagColorRange); len(colorRange) == 2 {
		r.colorMin, r.colorMax = colorRange[0], colorRange[1]
	}

	processed, err := r.run(c.Context, c.Int(runFlagStart), c.Int(runFlagCount))
	if err != nil {
		return err
	}
	if processed == 0 {
		return errors.Errorf("no frames found in %q", c.Path(runFlagInputDir))
	}
	mean, std := coverageStats(r.coverage)
	printf(c.App.Writer, "upsampled %d frames, coverage %.1f%% ± %.1f%%", processed, mean*100, std*100)
	if c.Bool(runFlagHistogram) {
		if err := printConfidenceSummary(c.App.Writer, r.confidence); err != nil {
			return err
		}
		path := filepath.Join(outputDir, histogramFile)
		if err := writeConfidenceHistogram(path, r.confidence); err != nil {
			return err
		}
		printf(c.App.Writer, "confidence histogram written to %s", path)
	}
	return nil
}

// run processes count frames from start, or every frame up to the first missing guide when
// count is 0.
func (r *frameRunner) run(ctx context.Context, start, count int) (int, error) {
	processed := 0
	for index := start; count <= 0 || index < start+count; index++ {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		ok, err := r.processFrame(ctx, index)
		if err != nil {
			return processed, err
		}
		if !ok {
			if count <= 0 {
				break
			}
			r.logger.Warnw("missing guide image", "frame", index)
			continue
		}
		processed++
	}
	return processed, nil
}

// ConvertAction is the corresponding action for 'convert'.
func ConvertAction(c *cli.Context, logger logging.Logger) error {
	cfg, err := config.ReadLocalConfig(c.String(generalFlagConfig), logger)
	if err != nil {
		return err
	}
	intrinsics, err := cfg.ReadCameraParams()
	if err != nil {
		return err
	}
	up, err := upsampling.NewUpsampler(intrinsics, logger)
	if err != nil {
		return err
	}
	depth, err := rimage.ReadDepthTIFF(c.Path(convertFlagDepth), cfg.DepthScale)
	if err != nil {
		return err
	}
	if depth.Bounds().Size() != image.Pt(intrinsics.Width, intrinsics.Height) {
		return errors.Errorf("depth image is %v but the camera is %dx%d", depth.Bounds().Size(), intrinsics.Width, intrinsics.Height)
	}
	frame, err := up.DepthToPointCloud(depth)
	if err != nil {
		return err
	}
	outputType := pointcloud.PCDAscii
	if c.Bool(convertFlagBinary) {
		outputType = pointcloud.PCDBinary
	}
	if err := pointcloud.WritePCDFile(frame, c.Path(convertFlagOutput), outputType); err != nil {
		return err
	}
	printf(c.App.Writer, "wrote %d points to %s", frame.CountValid(), c.Path(convertFlagOutput))
	return nil
}
