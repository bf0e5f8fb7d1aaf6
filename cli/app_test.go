package cli

import (
	"bytes"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"go.viam.com/test"

	"go.viam.com/depthfusion/pointcloud"
	"go.viam.com/depthfusion/rimage"
	"go.viam.com/depthfusion/rimage/transform"
)

var testCamera = transform.PinholeCameraIntrinsics{Width: 64, Height: 48, Fx: 60, Fy: 60, Ppx: 32, Ppy: 24}

// writeRecording writes a flat guide for frames 0 and 1 and a flood cloud for frame 0 only.
func writeRecording(t *testing.T, dir string) {
	t.Helper()
	guide := image.NewGray(image.Rect(0, 0, testCamera.Width, testCamera.Height))
	for i := range guide.Pix {
		guide.Pix[i] = 120
	}
	for index := 0; index < 2; index++ {
		test.That(t, imaging.Save(guide, filepath.Join(dir, fmt.Sprintf(guideFileFormat, index))), test.ShouldBeNil)
	}

	flood := pointcloud.NewFrame(8, 6)
	for row := 0; row < 6; row++ {
		for col := 0; col < 8; col++ {
			flood.Set(col, row, testCamera.PixelToPoint(float64(8*col+4), float64(8*row+4), 1.25))
		}
	}
	test.That(t, pointcloud.WritePCDFile(flood, filepath.Join(dir, fmt.Sprintf(floodFileFormat, 0)), pointcloud.PCDAscii),
		test.ShouldBeNil)
}

func writeEngineConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "engine.json")
	cfg := fmt.Sprintf(`{
		"camera": {"intrinsics": {"width_px": %d, "height_px": %d, "fx": %v, "fy": %v, "ppx": %v, "ppy": %v}},
		"preprocessing": {"range_flood": 10}
	}`, testCamera.Width, testCamera.Height, testCamera.Fx, testCamera.Fy, testCamera.Ppx, testCamera.Ppy)
	test.That(t, os.WriteFile(path, []byte(cfg), 0o600), test.ShouldBeNil)
	return path
}

func TestRunCommand(t *testing.T) {
	in, out := t.TempDir(), filepath.Join(t.TempDir(), "out")
	writeRecording(t, in)
	cfgPath := writeEngineConfig(t, in)

	var buf bytes.Buffer
	err := NewApp(&buf).Run([]string{
		"upsample", "-c", cfgPath, "run",
		"--input-dir", in, "--output-dir", out, "--write-pcd", "--histogram", "--overlay",
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldContainSubstring, "upsampled 2 frames")
	test.That(t, buf.String(), test.ShouldContainSubstring, "confidence median")

	for _, format := range []string{denseFileFormat, confFileFormat, previewFileFormat, densePCDFormat, overlayFileFormat} {
		for index := 0; index < 2; index++ {
			_, err := os.Stat(filepath.Join(out, fmt.Sprintf(format, index)))
			test.That(t, err, test.ShouldBeNil)
		}
	}
	_, err = os.Stat(filepath.Join(out, histogramFile))
	test.That(t, err, test.ShouldBeNil)

	dense, err := rimage.ReadDepthTIFF(filepath.Join(out, fmt.Sprintf(denseFileFormat, 0)), 1000)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dense.Get(32, 24), test.ShouldAlmostEqual, 1.25, 1e-3)
	empty, err := rimage.ReadDepthTIFF(filepath.Join(out, fmt.Sprintf(denseFileFormat, 1)), 1000)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, empty.CountFinite(), test.ShouldEqual, 0)

	densePC, err := pointcloud.ReadPCDFile(filepath.Join(out, fmt.Sprintf(densePCDFormat, 0)))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, densePC.Width(), test.ShouldEqual, testCamera.Width)
	test.That(t, densePC.At(32, 24).Point.Z, test.ShouldAlmostEqual, 1.25, 1e-3)

	t.Run("convert", func(t *testing.T) {
		pcdPath := filepath.Join(out, "converted.pcd")
		buf.Reset()
		err := NewApp(&buf).Run([]string{
			"upsample", "-c", cfgPath, "convert",
			"--depth", filepath.Join(out, fmt.Sprintf(denseFileFormat, 0)), "--output", pcdPath,
		})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, buf.String(), test.ShouldContainSubstring, "wrote")
		converted, err := pointcloud.ReadPCDFile(pcdPath)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, converted.CountValid(), test.ShouldEqual, dense.CountFinite())
	})
}

func TestRunCommandNoFrames(t *testing.T) {
	in := t.TempDir()
	cfgPath := writeEngineConfig(t, in)
	err := NewApp(&bytes.Buffer{}).Run([]string{
		"upsample", "-c", cfgPath, "run", "--input-dir", in, "--output-dir", t.TempDir(),
	})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no frames")
}

func TestCoverageStats(t *testing.T) {
	mean, std := coverageStats(nil)
	test.That(t, mean, test.ShouldEqual, 0.0)
	test.That(t, std, test.ShouldEqual, 0.0)
	mean, std = coverageStats([]float64{0.5})
	test.That(t, mean, test.ShouldEqual, 0.5)
	test.That(t, std, test.ShouldEqual, 0.0)
	mean, std = coverageStats([]float64{0.2, 0.4})
	test.That(t, mean, test.ShouldAlmostEqual, 0.3)
	test.That(t, std, test.ShouldAlmostEqual, math.Sqrt(0.02))
}
