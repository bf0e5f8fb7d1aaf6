// Package cli contains the upsample command line tool.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"

	"go.viam.com/depthfusion/logging"
)

const (
	// Flags.
	generalFlagConfig  = "config"
	generalFlagDebug   = "debug"
	generalFlagLogFile = "log-file"

	runFlagInputDir   = "input-dir"
	runFlagOutputDir  = "output-dir"
	runFlagStart      = "start"
	runFlagCount      = "count"
	runFlagWritePCD   = "write-pcd"
	runFlagHistogram  = "histogram"
	runFlagOverlay    = "overlay"
	runFlagColorRange = "color-range"

	convertFlagDepth  = "depth"
	convertFlagOutput = "output"
	convertFlagBinary = "binary"
)

// NewApp returns the upsample application writing its help and errors to out.
func NewApp(out io.Writer) *cli.App {
	var logger logging.Logger
	return &cli.App{
		Name:      "upsample",
		Usage:     "fuse flood and spot depth with a guide image into dense depth",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     generalFlagConfig,
				Aliases:  []string{"c"},
				Usage:    "load engine configuration from `FILE`",
				Required: true,
			},
			&cli.BoolFlag{
				Name:    generalFlagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.PathFlag{
				Name:  generalFlagLogFile,
				Usage: "also write JSON logs to a size rotated `FILE`",
			},
		},
		Before: func(c *cli.Context) error {
			switch {
			case c.Path(generalFlagLogFile) != "":
				logger = logging.NewLoggerWithFile("upsample", c.Path(generalFlagLogFile), c.Bool(generalFlagDebug))
			case c.Bool(generalFlagDebug):
				logger = logging.NewDebugLogger("upsample")
			default:
				logger = logging.NewLogger("upsample")
			}
			logging.ReplaceGlobal(logger)
			return nil
		},
		After: func(c *cli.Context) error {
			if logger != nil {
				//nolint:errcheck
				logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "upsample a sequence of recorded frames",
				UsageText: "upsample -c engine.json run --input-dir DIR --output-dir DIR [--start N] [--count N]",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:     runFlagInputDir,
						Usage:    "directory holding NNNNNNNN_rgb_gray_img.png and the matching point clouds",
						Required: true,
					},
					&cli.PathFlag{
						Name:     runFlagOutputDir,
						Usage:    "directory the dense depth and confidence images are written to",
						Required: true,
					},
					&cli.IntFlag{
						Name:  runFlagStart,
						Usage: "index of the first frame",
					},
					&cli.IntFlag{
						Name:  runFlagCount,
						Usage: "number of frames to process, 0 runs until a guide image is missing",
					},
					&cli.BoolFlag{
						Name:  runFlagWritePCD,
						Usage: "also write the dense depth as an organized point cloud",
					},
					&cli.BoolFlag{
						Name:  runFlagHistogram,
						Usage: "write a histogram of the confidence of every frame",
					},
					&cli.BoolFlag{
						Name:  runFlagOverlay,
						Usage: "draw the written flood and spot samples over each guide image",
					},
					&cli.Float64SliceFlag{
						Name:  runFlagColorRange,
						Usage: "depth range in meters mapped onto the colorized preview",
						Value: cli.NewFloat64Slice(0.2, 4),
					},
				},
				Action: func(c *cli.Context) error {
					return RunAction(c, logger)
				},
			},
			{
				Name:      "convert",
				Usage:     "back-project a 16 bit depth image into a point cloud",
				UsageText: "upsample -c engine.json convert --depth dense.tiff --output dense.pcd",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:     convertFlagDepth,
						Usage:    "16 bit depth TIFF",
						Required: true,
					},
					&cli.PathFlag{
						Name:     convertFlagOutput,
						Usage:    "PCD file to write",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  convertFlagBinary,
						Usage: "write binary instead of ascii PCD",
					},
				},
				Action: func(c *cli.Context) error {
					return ConvertAction(c, logger)
				},
			},
		},
	}
}
