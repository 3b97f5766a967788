package goarraycore

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// radialSamples is the length of the 1-D taper sampled along the normalized
// radius of ring and free-form layouts.
const radialSamples = 257

// Taper selects the amplitude weighting of the array elements. Window names
// a window function; SLL asks for a synthesized taper whose sidelobes sit
// SLL dB below the main lobe. At most one of them may be set; the zero value
// is a uniform taper.
type Taper struct {
	Window string  `json:"window,omitempty" yaml:"window"`
	SLL    float64 `json:"sll,omitempty" yaml:"sll"`
}

// Validate reports whether the taper can be synthesized.
func (t Taper) Validate() error {
	if math.IsNaN(t.SLL) || math.IsInf(t.SLL, 0) || t.SLL < 0 {
		return configErr("SLL", "must be a finite value >= 0, got %g", t.SLL)
	}
	if t.Window != "" && t.SLL != 0 {
		return configErr("window", "window %q and SLL %g are mutually exclusive", t.Window, t.SLL)
	}
	if t.Window != "" {
		if _, ok := windows[strings.ToLower(strings.TrimSpace(t.Window))]; !ok {
			return configErr("window", "unknown window %q", t.Window)
		}
	}
	return nil
}

// Uniform reports whether every element gets unit amplitude.
func (t Taper) Uniform() bool {
	return t.SLL == 0 && t.Window == ""
}

// Amplitudes returns n element amplitudes for a uniformly spaced axis.
// Targets below 50 dB use a Taylor taper, higher ones Dolph-Chebyshev.
func (t Taper) Amplitudes(n int) ([]float64, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	switch {
	case t.SLL > 0 && t.SLL < chebyshevThreshold:
		return Taylor(n, taylorNBar, t.SLL), nil
	case t.SLL > 0:
		return Chebyshev(n, t.SLL), nil
	case t.Window != "":
		return Window(t.Window, n)
	default:
		return ones(n), nil
	}
}

// radial weights each element by the taper value at its distance from the
// array centre, normalized to the outermost element.
func (t Taper) radial(x, y []float64) ([]float64, error) {
	n := len(x)
	if t.Uniform() || n == 1 {
		return ones(n), nil
	}
	r := make([]float64, n)
	for i := range r {
		r[i] = math.Hypot(x[i], y[i])
	}
	rmax := floats.Max(r)
	if rmax == 0 {
		return ones(n), nil
	}
	// The profile is sampled symmetrically: its middle sample weights the
	// centre and its last sample the outermost element.
	var profile []float64
	err := t.Validate()
	switch {
	case err != nil:
	case t.SLL > 0:
		profile, err = t.Amplitudes(radialSamples)
	default:
		profile, err = symmetricWindow(t.Window, radialSamples)
	}
	if err != nil {
		return nil, err
	}
	mid := (radialSamples - 1) / 2
	w := make([]float64, n)
	for i := range w {
		w[i] = profile[mid+int(math.Round(r[i]/rmax*float64(mid)))]
	}
	// A window that vanishes at every element, e.g. Hann on a single ring,
	// leaves the taper uniform.
	if floats.Max(w) == 0 {
		return ones(n), nil
	}
	return w, nil
}

// grid weights each element of a row/column layout by the product of the
// row and column taper values at its indices.
func (t Taper) grid(g *Geometry) ([]float64, error) {
	rowAmp, err := t.Amplitudes(g.Rows)
	if err != nil {
		return nil, err
	}
	colAmp, err := t.Amplitudes(g.Cols)
	if err != nil {
		return nil, err
	}
	w := make([]float64, g.Len())
	for i := range w {
		w[i] = rowAmp[g.RowIdx[i]] * colAmp[g.ColIdx[i]]
	}
	return w, nil
}

// progressivePhase returns the per-element phase (radians) that steers the
// beam toward the direction with cosine u along the element axis.
func progressivePhase(pos []float64, u float64) []float64 {
	p := make([]float64, len(pos))
	for i, x := range pos {
		p[i] = -2 * math.Pi * x * u
	}
	return p
}

func sind(deg float64) float64 { return math.Sin(deg * math.Pi / 180) }
func cosd(deg float64) float64 { return math.Cos(deg * math.Pi / 180) }
