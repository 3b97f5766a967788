package goarraycore

import (
	"gonum.org/v1/gonum/floats"
)

// MinGridPoints is the smallest auto-sized grid, about one degree per sample.
const MinGridPoints = 181

// gridPoints estimates the beamwidth of an aperture of the given length and
// returns an odd sample count with at least samplesPerBeam samples per
// beamwidth over 180 degrees.
func gridPoints(length, samplesPerBeam float64) int {
	if !(length > 0) {
		return MinGridPoints
	}
	hpbw := 51 / length
	n := int(180 / (hpbw / samplesPerBeam))
	n += (n + 1) % 2
	if n < MinGridPoints {
		n = MinGridPoints
	}
	return n
}

// LinearTheta returns the auto-sized elevation grid over [-90, 90] for the
// given element positions.
func LinearTheta(x []float64) []float64 {
	n := gridPoints(floats.Max(x)-floats.Min(x), 2)
	return floats.Span(make([]float64, n), -90, 90)
}

// PlanarGridSize returns the auto-sized theta and phi sample counts for a
// planar geometry.
func PlanarGridSize(g *Geometry) (nTheta, nPhi int) {
	nTheta = gridPoints(g.Aperture(), 4)
	return nTheta, 2*nTheta - 1
}

// PlanarGrid returns the auto-sized theta grid over [0, 180] and phi grid
// over [0, 360].
func PlanarGrid(g *Geometry) (theta, phi []float64) {
	nt, np := PlanarGridSize(g)
	theta = floats.Span(make([]float64, nt), 0, 180)
	phi = floats.Span(make([]float64, np), 0, 360)
	return theta, phi
}

func validateGrid(field string, v []float64) error {
	if len(v) < 2 {
		return configErr(field, "need at least 2 samples, got %d", len(v))
	}
	for i, a := range v {
		if !finite(a) {
			return configErr(field, "sample %d is not finite", i)
		}
		if i > 0 && !(a > v[i-1]) {
			return configErr(field, "samples must be strictly increasing at index %d", i)
		}
	}
	return nil
}

func cloneFloats(v []float64) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
