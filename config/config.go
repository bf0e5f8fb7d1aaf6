// Package config defines the on-disk configuration of the upsampling engine and the tools built on it.
package config

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/depthfusion/rimage/transform"
	"go.viam.com/depthfusion/upsampling"
)

// DefaultDepthScale converts meters into the units written to 16 bit depth images.
const DefaultDepthScale = 1000.0

// Config is the full engine configuration.
type Config struct {
	ConfigFilePath string `json:"-"`

	Camera        CameraConfig                   `json:"camera"`
	Upsampling    upsampling.UpsamplingParams    `json:"upsampling"`
	Preprocessing upsampling.PreprocessingParams `json:"preprocessing"`

	// ConfidenceThreshold masks dense output whose confidence is lower. Zero keeps everything.
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	DepthScale          float64 `json:"depth_scale"`
}

// CameraConfig locates the guide camera intrinsics. Either Intrinsics is given inline or
// IntrinsicsPath names a JSON intrinsics file or a viewer parameter file. Parameter files do
// not carry the image size, so Width and Height are required with them.
type CameraConfig struct {
	IntrinsicsPath string                             `json:"intrinsics_path"`
	Intrinsics     *transform.PinholeCameraIntrinsics `json:"intrinsics"`
	Width          int                                `json:"width"`
	Height         int                                `json:"height"`
}

// Default returns the configuration every file is decoded over.
func Default() *Config {
	return &Config{
		Upsampling:    upsampling.DefaultUpsamplingParams(),
		Preprocessing: upsampling.DefaultPreprocessingParams(),
		DepthScale:    DefaultDepthScale,
	}
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate() error {
	if err := c.Camera.Validate("camera"); err != nil {
		return err
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return utils.NewConfigValidationError("confidence_threshold",
			errors.Errorf("must be in [0, 1], got %v", c.ConfidenceThreshold))
	}
	if !(c.DepthScale > 0) {
		return utils.NewConfigValidationError("depth_scale", errors.Errorf("must be positive, got %v", c.DepthScale))
	}
	return nil
}

// Validate ensures the camera can be loaded.
func (c *CameraConfig) Validate(path string) error {
	if c.Intrinsics != nil {
		if err := c.Intrinsics.CheckValid(); err != nil {
			return utils.NewConfigValidationError(path+".intrinsics", err)
		}
		return nil
	}
	if c.IntrinsicsPath == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "intrinsics_path")
	}
	if !isJSON(c.IntrinsicsPath) && (c.Width <= 0 || c.Height <= 0) {
		return utils.NewConfigValidationError(path,
			errors.New("width and height are required with a parameter file"))
	}
	return nil
}

// ReadCameraParams returns the configured intrinsics. Relative paths are resolved against the
// directory of the config file.
func (c *Config) ReadCameraParams() (*transform.PinholeCameraIntrinsics, error) {
	if c.Camera.Intrinsics != nil {
		intrinsics := *c.Camera.Intrinsics
		return &intrinsics, intrinsics.CheckValid()
	}
	path := c.Camera.IntrinsicsPath
	if !filepath.IsAbs(path) && c.ConfigFilePath != "" {
		path = filepath.Join(filepath.Dir(c.ConfigFilePath), path)
	}
	if isJSON(path) {
		return transform.NewPinholeCameraIntrinsicsFromJSONFile(path)
	}
	return transform.NewPinholeCameraIntrinsicsFromParamFile(path, c.Camera.Width, c.Camera.Height)
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
