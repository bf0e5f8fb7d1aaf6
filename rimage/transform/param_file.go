package transform

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// Keys of the RGB camera entries in a viewer parameter file.
const (
	ParamRGBCx = "RGB_CX"
	ParamRGBCy = "RGB_CY"
	ParamRGBFx = "RGB_FOCAL_LENGTH_X"
	ParamRGBFy = "RGB_FOCAL_LENGTH_Y"
)

// ReadParams parses a viewer parameter stream. Each line holds a key, a tab or space,
// and a numeric value. Lines starting with "//" and blank lines are ignored, and values
// that do not parse are read as 0.
func ReadParams(r io.Reader) (map[string]float64, error) {
	params := map[string]float64{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimLeft(scanner.Text(), " ")
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		pos := strings.IndexByte(line, '\t')
		if pos < 0 {
			pos = strings.IndexByte(line, ' ')
		}
		if pos < 0 {
			params[strings.TrimSpace(line)] = 0
			continue
		}
		key := line[:pos]
		val, err := strconv.ParseFloat(strings.TrimSpace(line[pos+1:]), 64)
		if err != nil {
			val = 0
		}
		params[key] = val
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading parameter file")
	}
	return params, nil
}

// NewPinholeCameraIntrinsicsFromParams builds intrinsics of the given guide size from the RGB
// entries of a parameter map.
func NewPinholeCameraIntrinsicsFromParams(params map[string]float64, width, height int) (*PinholeCameraIntrinsics, error) {
	for _, key := range []string{ParamRGBCx, ParamRGBCy, ParamRGBFx, ParamRGBFy} {
		if _, ok := params[key]; !ok {
			return nil, NewNoIntrinsicsError("missing parameter " + key)
		}
	}
	intrinsics := &PinholeCameraIntrinsics{
		Width:  width,
		Height: height,
		Fx:     params[ParamRGBFx],
		Fy:     params[ParamRGBFy],
		Ppx:    params[ParamRGBCx],
		Ppy:    params[ParamRGBCy],
	}
	return intrinsics, intrinsics.CheckValid()
}

// NewPinholeCameraIntrinsicsFromParamFile reads a viewer parameter file from disk.
func NewPinholeCameraIntrinsicsFromParamFile(path string, width, height int) (*PinholeCameraIntrinsics, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening parameter file")
	}
	defer utils.UncheckedErrorFunc(f.Close)
	params, err := ReadParams(f)
	if err != nil {
		return nil, err
	}
	return NewPinholeCameraIntrinsicsFromParams(params, width, height)
}
