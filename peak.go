package goarraycore

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

// PatternParameters summarizes the main lobe of a gain curve.
type PatternParameters struct {
	Gain      float64 `json:"gain"`
	PeakAngle float64 `json:"peak_angle"`
	SLL       float64 `json:"sll"`
	HPBW      float64 `json:"hpbw"`
}

// Rounded returns p with every field rounded to prec decimal places.
func (p PatternParameters) Rounded(prec int) PatternParameters {
	return PatternParameters{
		Gain:      scalar.Round(p.Gain, prec),
		PeakAngle: scalar.Round(p.PeakAngle, prec),
		SLL:       scalar.Round(p.SLL, prec),
		HPBW:      scalar.Round(p.HPBW, prec),
	}
}

// Sentinels are reported in place of HPBW and SLL when the sampled curve
// does not allow them to be measured.
type Sentinels struct {
	HPBW float64
	SLL  float64
}

var (
	LinearSentinels = Sentinels{HPBW: 0, SLL: 100}
	PlanarSentinels = Sentinels{HPBW: -1, SLL: -100}
)

// DB20 converts a field amplitude to dB.
func DB20(v complex128) float64 {
	return 20 * math.Log10(cmplx.Abs(v))
}

// GainDB converts field amplitudes to dB.
func GainDB(af []complex128) []float64 {
	g := make([]float64, len(af))
	for i, v := range af {
		g[i] = DB20(v)
	}
	return g
}

// ExtractParameters finds the peak of a gain curve (dB) sampled at theta
// (degrees) together with its half-power beamwidth and sidelobe level. The
// curve is assumed to have a single dominant lobe.
//
// The main lobe is bracketed by the nearest turning points of the curve on
// either side of the peak. HPBW is measured between the samples nearest to
// peak-3 dB inside the bracket, so its precision is bounded by the grid
// step; a lobe that stays above peak-3 dB on either side has no HPBW. SLL
// is the peak minus the largest sample outside the bracket.
// Quantities that cannot be measured are reported as the sentinels s.
func ExtractParameters(theta, g []float64, s Sentinels) PatternParameters {
	p := PatternParameters{HPBW: s.HPBW, SLL: s.SLL}
	if len(g) == 0 || len(theta) != len(g) {
		return p
	}
	peakIdx := floats.MaxIdx(g)
	peak := g[peakIdx]
	p.Gain, p.PeakAngle = peak, theta[peakIdx]

	nullL, nullR := bracket(g, peakIdx)
	half := peak - 3
	if peakIdx > nullL && nullR > peakIdx &&
		floats.Min(g[nullL:peakIdx]) <= half && floats.Min(g[peakIdx+1:nullR+1]) <= half {
		iL := nullL + nearest(g[nullL:peakIdx], half)
		iR := peakIdx + nearest(g[peakIdx:nullR], half)
		p.HPBW = theta[iR] - theta[iL]
	}

	outside := math.Inf(-1)
	found := false
	if nullL > 0 {
		outside, found = floats.Max(g[:nullL]), true
	}
	if nullR+1 < len(g) {
		outside, found = math.Max(outside, floats.Max(g[nullR+1:])), true
	}
	if found {
		p.SLL = peak - outside
	}
	return p
}

// bracket returns the turning points of g closest to idx on either side.
// The curve ends count as turning points.
func bracket(g []float64, idx int) (left, right int) {
	left, right = 0, len(g)-1
	for k := idx - 1; k > 0; k-- {
		if turning(g, k) {
			left = k
			break
		}
	}
	for k := idx + 1; k < len(g)-1; k++ {
		if turning(g, k) {
			right = k
			break
		}
	}
	return left, right
}

// turning reports whether the slope of g strictly changes sign at k.
func turning(g []float64, k int) bool {
	return -sign(g[k]-g[k-1])*sign(g[k+1]-g[k]) == 1
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// nearest returns the index of the first sample in g closest to v.
func nearest(g []float64, v float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, a := range g {
		if d := math.Abs(a - v); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
