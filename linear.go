package goarraycore

import (
	"math"
)

// LinearConfig describes a linear array. Spacing is in wavelengths; angles
// are in degrees from broadside. NumElements is ignored for
// ExplicitSpacing.
type LinearConfig struct {
	NumElements    int
	Spacing        Spacing
	ScanAngle      float64
	ElementPattern bool
	Taper          Taper
	// ElementGain (dBi) scales the pattern when ElementPattern is set.
	ElementGain float64
	// Theta overrides the auto-sized elevation grid.
	Theta []float64
}

// LinearArray is a validated linear array. It is immutable and safe for
// concurrent use.
type LinearArray struct {
	cfg   LinearConfig
	x     []float64
	theta []float64
	amp   []float64
}

// NewLinearArray validates cfg and places the elements.
func NewLinearArray(cfg LinearConfig) (*LinearArray, error) {
	x, err := LinearPositions(cfg.NumElements, cfg.Spacing)
	if err != nil {
		return nil, err
	}
	if !finite(cfg.ScanAngle) {
		return nil, configErr("scan_angle", "must be finite")
	}
	if !finite(cfg.ElementGain) {
		return nil, configErr("element_gain", "must be finite")
	}
	amp, err := cfg.Taper.Amplitudes(len(x))
	if err != nil {
		return nil, err
	}

	var theta []float64
	if len(cfg.Theta) > 0 {
		if err := validateGrid("theta", cfg.Theta); err != nil {
			return nil, err
		}
		theta = cloneFloats(cfg.Theta)
	} else {
		theta = LinearTheta(x)
	}

	cfg.NumElements = len(x)
	cfg.Theta = nil
	return &LinearArray{cfg: cfg, x: x, theta: theta, amp: amp}, nil
}

// FromElementPositions builds a linear array from arbitrary element
// positions. The positions are sorted; coincident elements are rejected.
func FromElementPositions(x []float64, cfg LinearConfig) (*LinearArray, error) {
	gaps, err := spacingFromPositions(x)
	if err != nil {
		return nil, err
	}
	cfg.NumElements = len(x)
	cfg.Spacing = gaps
	return NewLinearArray(cfg)
}

func (a *LinearArray) Len() int { return len(a.x) }

// Config returns the configuration the array was built from, with
// NumElements resolved.
func (a *LinearArray) Config() LinearConfig { return a.cfg }

// Positions returns the zero-mean element positions.
func (a *LinearArray) Positions() []float64 { return cloneFloats(a.x) }

// Theta returns the elevation grid.
func (a *LinearArray) Theta() []float64 { return cloneFloats(a.theta) }

// Length returns the distance between the outermost elements.
func (a *LinearArray) Length() float64 {
	return a.x[len(a.x)-1] - a.x[0]
}

// Compute evaluates the normalized array factor at the configured scan
// angle.
func (a *LinearArray) Compute() *LinearPattern {
	return a.computeAt(a.cfg.ScanAngle)
}

func (a *LinearArray) computeAt(scan float64) *LinearPattern {
	phase := progressivePhase(a.x, sind(scan))
	af := make([]complex128, len(a.theta))
	for i, t := range a.theta {
		k := 2 * math.Pi * sind(t)
		var sum complex128
		for n, x := range a.x {
			s, c := math.Sincos(phase[n] + k*x)
			sum += complex(a.amp[n]*c, a.amp[n]*s)
		}
		af[i] = sum
	}
	normalizeLinear(af, a.theta)

	if a.cfg.ElementPattern {
		scale := 1.0
		if a.cfg.ElementGain != 0 {
			scale = math.Pow(10, a.cfg.ElementGain/20)
		}
		for i, t := range a.theta {
			af[i] *= complex(cosd(t)*scale, 0)
		}
	}

	return &LinearPattern{
		Theta:     a.theta,
		AF:        af,
		X:         a.x,
		Amplitude: a.amp,
		Phase:     phase,
		ScanAngle: scan,
	}
}

// normalizeLinear scales af so that its power integrated over the visible
// half plane matches an isotropic radiator.
func normalizeLinear(af []complex128, theta []float64) {
	dt := (theta[1] - theta[0]) * math.Pi / 180
	var sum float64
	for i, v := range af {
		sum += sqAbs(v) * sind(theta[i]+90)
	}
	integral := 0.5 * sum * dt
	if !(integral > 0) {
		return
	}
	s := complex(1/math.Sqrt(integral), 0)
	for i := range af {
		af[i] *= s
	}
}

func sqAbs(v complex128) float64 {
	return real(v)*real(v) + imag(v)*imag(v)
}

// LinearPattern is the normalized far-field pattern of a linear array. Its
// slices are shared with the array and must not be modified.
type LinearPattern struct {
	Theta     []float64
	AF        []complex128
	X         []float64
	Amplitude []float64
	// Phase is the progressive phase in radians.
	Phase     []float64
	ScanAngle float64
}

// GainDB returns the pattern in dBi.
func (p *LinearPattern) GainDB() []float64 {
	return GainDB(p.AF)
}

// Parameters measures the main lobe of the pattern.
func (p *LinearPattern) Parameters() PatternParameters {
	return ExtractParameters(p.Theta, p.GainDB(), LinearSentinels)
}

// Excitation returns the complex weight applied to each element.
func (p *LinearPattern) Excitation() []ElementExcitation {
	out := make([]ElementExcitation, len(p.X))
	for i := range out {
		out[i] = ElementExcitation{X: p.X[i], Amplitude: p.Amplitude[i], Phase: p.Phase[i]}
	}
	return out
}

// ElementExcitation is the position (wavelengths) and complex weight of a
// single element. Phase is in radians.
type ElementExcitation struct {
	X         float64
	Y         float64
	Amplitude float64
	Phase     float64
}
