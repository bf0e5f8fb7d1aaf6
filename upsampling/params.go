package upsampling

import (
	"go.viam.com/depthfusion/utils"
)

// Limits applied by the parameter setters.
const (
	MinLambda     = 1.0
	MinSigmaColor = 1.0
	MinIterations = 1
	MaxIterations = 5
	MinRange      = 2
	MaxRangeFlood = 40
	MaxRangeSpot  = 80
)

// UpsamplingParams configures the edge-aware interpolation of each stream.
type UpsamplingParams struct {
	LambdaFlood       float64 `json:"fgs_lambda_flood"`
	SigmaColorFlood   float64 `json:"fgs_sigma_color_flood"`
	IterationsFlood   int     `json:"fgs_num_iter_flood"`
	LambdaSpot        float64 `json:"fgs_lambda_spot"`
	SigmaColorSpot    float64 `json:"fgs_sigma_color_spot"`
	IterationsSpot    int     `json:"fgs_num_iter_spot"`
	LambdaAttenuation float64 `json:"fgs_lambda_attenuation"`
}

// DefaultUpsamplingParams returns the tuned defaults.
func DefaultUpsamplingParams() UpsamplingParams {
	return UpsamplingParams{
		LambdaFlood:       220,
		SigmaColorFlood:   4,
		IterationsFlood:   1,
		LambdaSpot:        700,
		SigmaColorSpot:    5,
		IterationsSpot:    2,
		LambdaAttenuation: 0.25,
	}
}

// Clamped returns a copy with every field forced into its valid range.
func (p UpsamplingParams) Clamped() UpsamplingParams {
	p.LambdaFlood = clampMin(p.LambdaFlood, MinLambda)
	p.SigmaColorFlood = clampMin(p.SigmaColorFlood, MinSigmaColor)
	p.IterationsFlood = utils.ClampInt(p.IterationsFlood, MinIterations, MaxIterations)
	p.LambdaSpot = clampMin(p.LambdaSpot, MinLambda)
	p.SigmaColorSpot = clampMin(p.SigmaColorSpot, MinSigmaColor)
	p.IterationsSpot = utils.ClampInt(p.IterationsSpot, MinIterations, MaxIterations)
	if !utils.IsFinite(p.LambdaAttenuation) {
		p.LambdaAttenuation = DefaultUpsamplingParams().LambdaAttenuation
	}
	p.LambdaAttenuation = utils.ClampFloat(p.LambdaAttenuation, 0, 1)
	return p
}

// NaN and values below lo become lo.
func clampMin(v, lo float64) float64 {
	if !(v >= lo) {
		return lo
	}
	return v
}

// PreprocessingParams configures sample filtering and footprints.
type PreprocessingParams struct {
	RangeFlood          int     `json:"range_flood"`
	RangeSpot           int     `json:"range_spot"`
	ZContinuousThresh   float64 `json:"z_continuous_thresh"`
	OcclusionThresh     float64 `json:"occlusion_thresh"`
	DepthDiffThresh     float64 `json:"depth_diff_thresh"`
	GuideDiffThresh     float64 `json:"guide_diff_thresh"`
	MinDiffCount        int     `json:"min_diff_count"`
	GuideEdgeDilateSize int     `json:"guide_edge_dilate_size"`
	CannyThresh1        float64 `json:"canny_thresh1"`
	CannyThresh2        float64 `json:"canny_thresh2"`
}

// DefaultPreprocessingParams returns the tuned defaults.
func DefaultPreprocessingParams() PreprocessingParams {
	return PreprocessingParams{
		RangeFlood:          20,
		RangeSpot:           40,
		ZContinuousThresh:   0.1,
		OcclusionThresh:     10.5,
		DepthDiffThresh:     0.1,
		GuideDiffThresh:     40,
		MinDiffCount:        24,
		GuideEdgeDilateSize: 5,
		CannyThresh1:        40,
		CannyThresh2:        170,
	}
}

// DisabledPreprocessingParams returns the defaults with parallax filtering, edge voting and
// guide edge suppression all switched off.
func DisabledPreprocessingParams() PreprocessingParams {
	p := DefaultPreprocessingParams()
	p.CannyThresh1 = 250
	p.CannyThresh2 = 10
	p.OcclusionThresh = 0
	p.ZContinuousThresh = 1.0
	return p
}

// Clamped returns a copy with every field forced into its valid range.
func (p PreprocessingParams) Clamped() PreprocessingParams {
	p.RangeFlood = utils.ClampInt(p.RangeFlood, MinRange, MaxRangeFlood)
	p.RangeSpot = utils.ClampInt(p.RangeSpot, MinRange, MaxRangeSpot)
	p.ZContinuousThresh = nonNegative(p.ZContinuousThresh)
	p.OcclusionThresh = nonNegative(p.OcclusionThresh)
	p.DepthDiffThresh = nonNegative(p.DepthDiffThresh)
	p.GuideDiffThresh = nonNegative(p.GuideDiffThresh)
	p.GuideEdgeDilateSize = utils.OddAtLeastOne(p.GuideEdgeDilateSize)
	p.CannyThresh1 = utils.ClampFloat(nonNegative(p.CannyThresh1), 0, 255)
	p.CannyThresh2 = utils.ClampFloat(nonNegative(p.CannyThresh2), 0, 255)
	return p
}

func nonNegative(v float64) float64 {
	if !(v >= 0) {
		return 0
	}
	return v
}

// DepthFilteringEnabled reports whether flood samples go through the parallax filter and
// edge voting. The z-continuous 1 / occlusion 0 combination switches both off.
func (p PreprocessingParams) DepthFilteringEnabled() bool {
	return !(p.ZContinuousThresh == 1.0 && p.OcclusionThresh == 0)
}

// EdgeVotingEnabled is false when depth filtering is off or either difference threshold is zero.
func (p PreprocessingParams) EdgeVotingEnabled() bool {
	return p.DepthFilteringEnabled() && p.DepthDiffThresh != 0 && p.GuideDiffThresh != 0
}

// GuideEdgeMaskEnabled is false when the Canny thresholds are inverted.
func (p PreprocessingParams) GuideEdgeMaskEnabled() bool {
	return p.CannyThresh1 <= p.CannyThresh2
}
