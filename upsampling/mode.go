package upsampling

import (
	"github.com/pkg/errors"

	"go.viam.com/depthfusion/pointcloud"
)

var (
	// ErrNoGuide is returned by Run when the guide image is missing or empty.
	ErrNoGuide = errors.New("no guide image")
	// ErrNoPointCloud is returned by Run when neither stream has a point cloud. The result is
	// still returned, filled with NaN.
	ErrNoPointCloud = errors.New("no flood or spot point cloud")
)

// Mode is the set of streams a Run processes.
type Mode int

const (
	// ModeNone means no point cloud was supplied.
	ModeNone Mode = iota
	// ModeFlood runs the flood stream only.
	ModeFlood
	// ModeSpot runs the spot stream only.
	ModeSpot
	// ModeBoth runs both streams and fuses them.
	ModeBoth
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeFlood:
		return "flood"
	case ModeSpot:
		return "spot"
	case ModeBoth:
		return "flood+spot"
	default:
		return "unknown"
	}
}

// selectMode derives the mode from which clouds are present.
func selectMode(flood, spot *pointcloud.Frame) Mode {
	hasFlood := flood.Present()
	hasSpot := spot.Present()
	switch {
	case hasFlood && hasSpot:
		return ModeBoth
	case hasFlood:
		return ModeFlood
	case hasSpot:
		return ModeSpot
	default:
		return ModeNone
	}
}
