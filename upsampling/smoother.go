package upsampling

import (
	"image"

	"go.viam.com/depthfusion/rimage"
	"go.viam.com/depthfusion/rimage/fgs"
)

// Smoother is an edge-aware interpolation filter bound to one guide image. Filter must
// return an image with the guide's extent.
type Smoother interface {
	Filter(src *rimage.FloatImage) (*rimage.FloatImage, error)
}

// SmootherFactory builds a Smoother for a guide image. lambda is multiplied by attenuation
// after every one of the iterations.
type SmootherFactory func(guide *image.Gray, lambda, sigmaColor, attenuation float64, iterations int) (Smoother, error)

// NewFastGlobalSmoother is the default SmootherFactory.
func NewFastGlobalSmoother(guide *image.Gray, lambda, sigmaColor, attenuation float64, iterations int) (Smoother, error) {
	s, err := fgs.New(guide, lambda, sigmaColor, attenuation, iterations)
	if err != nil {
		return nil, err
	}
	return s, nil
}
