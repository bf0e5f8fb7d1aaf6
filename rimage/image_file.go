package rimage

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"

	"github.com/disintegration/imaging"
	_ "github.com/lmittmann/ppm" // register ppm
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	_ "github.com/xfmoulet/qoi" // register qoi
	"go.viam.com/utils"
	"golang.org/x/image/tiff"
)

// ReadGuide decodes an image file of any registered format (png, jpeg, tiff, bmp, gif, ppm, qoi)
// into a single channel guide image.
func ReadGuide(path string) (*image.Gray, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read guide image %q", path)
	}
	return ToGray(img), nil
}

// ToGray converts any image to an 8 bit gray image anchored at (0, 0).
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), imaging.Grayscale(img), image.Point{}, draw.Src)
	return gray
}

// ResizeGuide scales the guide to width x height when it does not already have that size.
func ResizeGuide(guide *image.Gray, width, height int) *image.Gray {
	if guide.Bounds().Dx() == width && guide.Bounds().Dy() == height {
		return guide
	}
	return ToGray(imaging.Resize(guide, width, height, imaging.Lanczos))
}

// WriteDepthTIFF writes img as a 16 bit TIFF with every value multiplied by scale. NaN and
// negative values are written as 0; values beyond the 16 bit range saturate.
func WriteDepthTIFF(path string, img *FloatImage, scale float64) error {
	out := image.NewGray16(img.Bounds())
	for y := 0; y < img.height; y++ {
		for x := 0; x < img.width; x++ {
			v := img.Get(x, y) * scale
			if math.IsNaN(v) || v <= 0 {
				continue
			}
			out.SetGray16(x, y, color.Gray16{Y: uint16(math.Min(math.Round(v), math.MaxUint16))})
		}
	}
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot create %q", path)
	}
	defer utils.UncheckedErrorFunc(f.Close)
	return tiff.Encode(f, out, &tiff.Options{Compression: tiff.Deflate})
}

// ReadDepthTIFF reads a 16 bit TIFF written by WriteDepthTIFF. Zero pixels become NaN.
func ReadDepthTIFF(path string, scale float64) (*FloatImage, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %q", path)
	}
	defer utils.UncheckedErrorFunc(f.Close)
	img, err := tiff.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode %q", path)
	}
	b := img.Bounds()
	out := NewFloatImage(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
			if g.Y == 0 {
				out.Set(x, y, math.NaN())
				continue
			}
			out.Set(x, y, float64(g.Y)/scale)
		}
	}
	return out, nil
}

// ToPrettyPicture maps the values of img in [min, max] onto a hue ramp. NaN pixels stay black.
func (fi *FloatImage) ToPrettyPicture(min, max float64) image.Image {
	img := image.NewRGBA(fi.Bounds())
	span := max - min
	if span <= 0 {
		span = 1
	}
	for y := 0; y < fi.height; y++ {
		for x := 0; x < fi.width; x++ {
			z := fi.Get(x, y)
			if math.IsNaN(z) {
				continue
			}
			ratio := (math.Max(min, math.Min(max, z)) - min) / span
			hue := 30 + (200.0 * ratio)
			img.Set(x, y, colorful.Hsv(hue, 1.0, 1.0).Clamped())
		}
	}
	return img
}

// WriteColorizedPNG writes the colorized rendering of img to path.
func WriteColorizedPNG(path string, img *FloatImage, min, max float64) error {
	return imaging.Save(img.ToPrettyPicture(min, max), path)
}
