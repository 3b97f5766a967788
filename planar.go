package goarraycore

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Element pattern clip angles. Beyond them cos(theta) is held constant so
// the pattern stays finite in dB at endfire.
const (
	rectClipDeg    = 89.0
	generalClipDeg = 89.5
)

// PlanarConfig describes a planar array. Scan angles are in degrees; theta
// is measured from the array normal and phi from the X axis.
type PlanarConfig struct {
	Shape          Shape
	ScanTheta      float64
	ScanPhi        float64
	ElementPattern bool
	Taper          Taper
	// Theta and Phi override the auto-sized grids. When only Theta is set,
	// Phi gets 2*len(Theta)-1 samples over [0, 360].
	Theta []float64
	Phi   []float64
}

// PlanarArray is a validated planar array. It is immutable and safe for
// concurrent use.
type PlanarArray struct {
	cfg        PlanarConfig
	geo        *Geometry
	theta, phi []float64

	// rect arrays keep separable axis tapers, everything else one weight
	// per element.
	rowAmp, colAmp []float64
	weight         []float64
}

// NewPlanarArray validates cfg, places the elements and synthesizes the
// taper.
func NewPlanarArray(cfg PlanarConfig) (*PlanarArray, error) {
	geo, err := cfg.Shape.Build()
	if err != nil {
		return nil, err
	}
	if !finite(cfg.ScanTheta) || !finite(cfg.ScanPhi) {
		return nil, configErr("scan_angle", "must be finite")
	}
	a := &PlanarArray{geo: geo}

	switch geo.Kind {
	case ShapeRect:
		if a.rowAmp, err = cfg.Taper.Amplitudes(geo.Rows); err != nil {
			return nil, err
		}
		if a.colAmp, err = cfg.Taper.Amplitudes(geo.Cols); err != nil {
			return nil, err
		}
		a.weight = make([]float64, geo.Len())
		for i := range a.weight {
			a.weight[i] = a.rowAmp[geo.RowIdx[i]] * a.colAmp[geo.ColIdx[i]]
		}
	case ShapeTri:
		if a.weight, err = cfg.Taper.grid(geo); err != nil {
			return nil, err
		}
	default:
		if a.weight, err = cfg.Taper.radial(geo.X, geo.Y); err != nil {
			return nil, err
		}
	}

	switch {
	case len(cfg.Theta) > 0:
		if err := validateGrid("theta", cfg.Theta); err != nil {
			return nil, err
		}
		a.theta = cloneFloats(cfg.Theta)
		if len(cfg.Phi) > 0 {
			if err := validateGrid("phi", cfg.Phi); err != nil {
				return nil, err
			}
			a.phi = cloneFloats(cfg.Phi)
		} else {
			a.phi = floats.Span(make([]float64, 2*len(a.theta)-1), 0, 360)
		}
	case len(cfg.Phi) > 0:
		if err := validateGrid("phi", cfg.Phi); err != nil {
			return nil, err
		}
		nt, _ := PlanarGridSize(geo)
		a.theta = floats.Span(make([]float64, nt), 0, 180)
		a.phi = cloneFloats(cfg.Phi)
	default:
		a.theta, a.phi = PlanarGrid(geo)
	}

	cfg.Theta, cfg.Phi = nil, nil
	a.cfg = cfg
	return a, nil
}

func (a *PlanarArray) Len() int { return a.geo.Len() }

// Config returns the configuration the array was built from.
func (a *PlanarArray) Config() PlanarConfig { return a.cfg }

// Geometry returns a copy of the element layout.
func (a *PlanarArray) Geometry() Geometry {
	g := *a.geo
	g.X, g.Y = cloneFloats(g.X), cloneFloats(g.Y)
	g.RowPos, g.ColPos = cloneFloats(g.RowPos), cloneFloats(g.ColPos)
	g.Radii = cloneFloats(g.Radii)
	if g.Rings != nil {
		g.Rings = append([]int(nil), g.Rings...)
	}
	return g
}

func (a *PlanarArray) Theta() []float64 { return cloneFloats(a.theta) }
func (a *PlanarArray) Phi() []float64   { return cloneFloats(a.phi) }

// Workload reports the size of the (phi, theta) grid Compute allocates and
// the number of sincos terms evaluated per grid point: rows+cols for
// rect arrays, one per element otherwise.
func (a *PlanarArray) Workload() (cells, terms int) {
	terms = a.geo.Len()
	if a.geo.Kind == ShapeRect {
		terms = a.geo.Rows + a.geo.Cols
	}
	return len(a.phi) * len(a.theta), terms
}

// Compute evaluates the normalized array factor over the (phi, theta) grid.
func (a *PlanarArray) Compute() *PlanarPattern {
	pat, _ := a.ComputeContext(context.Background())
	return pat
}

// ComputeContext is Compute with cancellation. ctx is checked once per phi
// row; a canceled context yields ctx.Err() and no pattern.
func (a *PlanarArray) ComputeContext(ctx context.Context) (*PlanarPattern, error) {
	st, sp := sind(a.cfg.ScanTheta), a.cfg.ScanPhi
	u, v := st*cosd(sp), st*sind(sp)

	var (
		af  *mat.CDense
		err error
	)
	if a.geo.Kind == ShapeRect {
		af, err = a.computeRect(ctx, u, v)
	} else {
		af, err = a.computeGeneral(ctx, u, v)
	}
	if err != nil {
		return nil, err
	}
	normalizePlanar(af, a.theta, a.phi)

	phase := make([]float64, a.geo.Len())
	for i := range phase {
		phase[i] = -2 * math.Pi * (a.geo.X[i]*u + a.geo.Y[i]*v)
	}
	return &PlanarPattern{
		Theta:     a.theta,
		Phi:       a.phi,
		AF:        af,
		X:         a.geo.X,
		Y:         a.geo.Y,
		Amplitude: a.weight,
		Phase:     phase,
		ScanTheta: a.cfg.ScanTheta,
		ScanPhi:   a.cfg.ScanPhi,
	}, nil
}

// computeRect factors the double sum into a row sum and a column sum.
func (a *PlanarArray) computeRect(ctx context.Context, u, v float64) (*mat.CDense, error) {
	g := a.geo
	pCol := progressivePhase(g.ColPos, u)
	pRow := progressivePhase(g.RowPos, v)
	ep := a.elementPattern(rectClipDeg)

	af := mat.NewCDense(len(a.phi), len(a.theta), nil)
	for i, p := range a.phi {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cp, sp := cosd(p), sind(p)
		for j, t := range a.theta {
			s := 2 * math.Pi * sind(t)
			row := axisFactor(a.rowAmp, pRow, g.RowPos, s*sp)
			col := axisFactor(a.colAmp, pCol, g.ColPos, s*cp)
			af.Set(i, j, row*col*complex(ep[j], 0))
		}
	}
	return af, nil
}

func axisFactor(amp, phase, pos []float64, k float64) complex128 {
	var sum complex128
	for n, x := range pos {
		s, c := math.Sincos(phase[n] + k*x)
		sum += complex(amp[n]*c, amp[n]*s)
	}
	return sum
}

// computeGeneral sums every element at every grid point.
func (a *PlanarArray) computeGeneral(ctx context.Context, u, v float64) (*mat.CDense, error) {
	g := a.geo
	phase := make([]float64, g.Len())
	for n := range phase {
		phase[n] = -2 * math.Pi * (g.X[n]*u + g.Y[n]*v)
	}
	ep := a.elementPattern(generalClipDeg)

	af := mat.NewCDense(len(a.phi), len(a.theta), nil)
	for i, p := range a.phi {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cp, sp := cosd(p), sind(p)
		for j, t := range a.theta {
			s := 2 * math.Pi * sind(t)
			kx, ky := s*cp, s*sp
			var sum complex128
			for n, w := range a.weight {
				sn, cn := math.Sincos(phase[n] + kx*g.X[n] + ky*g.Y[n])
				sum += complex(w*cn, w*sn)
			}
			af.Set(i, j, sum*complex(ep[j], 0))
		}
	}
	return af, nil
}

// elementPattern returns the per-theta element factor, all ones when the
// element pattern is disabled.
func (a *PlanarArray) elementPattern(clip float64) []float64 {
	ep := ones(len(a.theta))
	if !a.cfg.ElementPattern {
		return ep
	}
	for j, t := range a.theta {
		if t > clip {
			ep[j] = cosd(clip)
		} else {
			ep[j] = cosd(t)
		}
	}
	return ep
}

// normalizePlanar scales af so that its power integrated over the sphere
// equals that of an isotropic radiator.
func normalizePlanar(af *mat.CDense, theta, phi []float64) {
	dt := (theta[1] - theta[0]) * math.Pi / 180
	dp := (phi[1] - phi[0]) * math.Pi / 180
	r, c := af.Dims()
	var sum float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			sum += sqAbs(af.At(i, j)) * sind(theta[j])
		}
	}
	integral := sum * dt * dp / (4 * math.Pi)
	if !(integral > 0) {
		return
	}
	s := complex(1/math.Sqrt(integral), 0)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			af.Set(i, j, af.At(i, j)*s)
		}
	}
}

// PlanarPattern is the normalized far field of a planar array. AF has one
// row per phi sample and one column per theta sample. Its fields are shared
// with the array and must not be modified.
type PlanarPattern struct {
	Theta, Phi []float64
	AF         *mat.CDense
	X, Y       []float64
	Amplitude  []float64
	// Phase is the per-element steering phase in radians.
	Phase     []float64
	ScanTheta float64
	ScanPhi   float64
}

// GainDB returns the pattern in dBi with the same layout as AF.
func (p *PlanarPattern) GainDB() *mat.Dense {
	r, c := p.AF.Dims()
	g := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			g.Set(i, j, DB20(p.AF.At(i, j)))
		}
	}
	return g
}

// PatternCut is a gain curve through the pattern at a fixed azimuth,
// running from theta -180 (the opposite half plane) to +180.
type PatternCut struct {
	Angle float64
	Theta []float64
	Gain  []float64
}

// Cut slices the pattern along phi = angle and phi = angle+180 and joins the
// halves into one curve through broadside. Phi rows are picked by nearest
// sample; angle is taken mod 360.
func (p *PlanarPattern) Cut(angle float64) PatternCut {
	c := math.Mod(angle, 360)
	if c < 0 {
		c += 360
	}
	i1 := nearest(p.Phi, c)
	i2 := nearest(p.Phi, math.Mod(180+c, 360))

	nt := len(p.Theta)
	cut := PatternCut{
		Angle: c,
		Theta: make([]float64, 0, 2*nt-1),
		Gain:  make([]float64, 0, 2*nt-1),
	}
	for j := nt - 1; j > 0; j-- {
		cut.Theta = append(cut.Theta, -p.Theta[j])
		cut.Gain = append(cut.Gain, DB20(p.AF.At(i2, j)))
	}
	for j := 0; j < nt; j++ {
		cut.Theta = append(cut.Theta, p.Theta[j])
		cut.Gain = append(cut.Gain, DB20(p.AF.At(i1, j)))
	}
	return cut
}

// Parameters measures the main lobe of the cut at the given azimuth over
// the visible range [-90, 90]. Results are rounded to 0.1.
func (p *PlanarPattern) Parameters(angle float64) PatternParameters {
	return p.Cut(angle).Parameters()
}

// Parameters measures the main lobe of the cut over [-90, 90], rounded to
// 0.1.
func (c PatternCut) Parameters() PatternParameters {
	if len(c.Theta) == 0 {
		return PatternParameters{HPBW: PlanarSentinels.HPBW, SLL: PlanarSentinels.SLL}
	}
	lo, hi := nearest(c.Theta, -90), nearest(c.Theta, 90)
	return ExtractParameters(c.Theta[lo:hi+1], c.Gain[lo:hi+1], PlanarSentinels).Rounded(1)
}

// Excitation returns the complex weight applied to each element.
func (p *PlanarPattern) Excitation() []ElementExcitation {
	out := make([]ElementExcitation, len(p.X))
	for i := range out {
		out[i] = ElementExcitation{X: p.X[i], Y: p.Y[i], Amplitude: p.Amplitude[i], Phase: p.Phase[i]}
	}
	return out
}
