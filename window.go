package goarraycore

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

// taylorNBar is the number of nearly constant-level sidelobes adjacent to
// the main lobe in a synthesized Taylor taper.
const taylorNBar = 5

// chebyshevThreshold is the target sidelobe level (dB) at and above which a
// Dolph-Chebyshev taper is synthesized instead of a Taylor taper.
const chebyshevThreshold = 50

var windows = map[string]func([]float64) []float64{
	"boxcar":          window.Rectangular,
	"rect":            window.Rectangular,
	"rectangular":     window.Rectangular,
	"hann":            window.Hann,
	"hanning":         window.Hann,
	"hamming":         window.Hamming,
	"blackman":        window.Blackman,
	"blackmanharris":  window.BlackmanHarris,
	"nuttall":         window.BlackmanNuttall,
	"blackmannuttall": window.BlackmanNuttall,
	"flattop":         window.FlatTop,
	"bartlett":        window.Triangular,
	"triangular":      window.Triangular,
	"barthann":        window.BartlettHann,
	"sine":            window.Sine,
	"lanczos":         window.Lanczos,
	"tukey":           window.Tukey{Alpha: 0.5}.Transform,
	"gaussian":        window.Gaussian{Sigma: 0.4}.Transform,
}

// WindowNames returns the supported window names in sorted order.
func WindowNames() []string {
	names := make([]string, 0, len(windows))
	for name := range windows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Window returns n samples of the named window. Windows are periodic
// (DFT-even): the symmetric window of length n+1 with its last sample
// dropped.
func Window(name string, n int) ([]float64, error) {
	fn, err := windowFunc(name, n)
	if err != nil {
		return nil, err
	}
	if n == 1 {
		return []float64{1}, nil
	}
	return fn(ones(n + 1))[:n], nil
}

// symmetricWindow returns n samples of the named window with both ends
// included, so an odd-length window peaks at exactly one in the middle.
func symmetricWindow(name string, n int) ([]float64, error) {
	fn, err := windowFunc(name, n)
	if err != nil {
		return nil, err
	}
	if n == 1 {
		return []float64{1}, nil
	}
	return fn(ones(n)), nil
}

func windowFunc(name string, n int) (func([]float64) []float64, error) {
	fn, ok := windows[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, configErr("window", "unknown window %q", name)
	}
	if n <= 0 {
		return nil, configErr("num_elem", "must be > 0, got %d", n)
	}
	return fn, nil
}

// Taylor returns an n-point Taylor taper with nbar nearly constant-level
// sidelobes at sll dB below the main lobe, normalized to unit amplitude at
// the array centre.
func Taylor(n, nbar int, sll float64) []float64 {
	if n <= 1 {
		return ones(n)
	}
	b := math.Pow(10, sll/20)
	a := math.Acosh(b) / math.Pi
	s2 := float64(nbar*nbar) / (a*a + (float64(nbar)-0.5)*(float64(nbar)-0.5))

	m := nbar - 1
	fm := make([]float64, m)
	for i := 0; i < m; i++ {
		mi := float64(i + 1)
		m2 := mi * mi
		numer := 1.0
		if i%2 == 1 {
			numer = -1
		}
		denom := 2.0
		for j := 0; j < m; j++ {
			mj := float64(j + 1)
			numer *= 1 - m2/s2/(a*a+(mj-0.5)*(mj-0.5))
			if j != i {
				denom *= 1 - m2/(mj*mj)
			}
		}
		fm[i] = numer / denom
	}

	w := func(x float64) float64 {
		sum := 0.0
		for i, f := range fm {
			sum += f * math.Cos(2*math.Pi*float64(i+1)*(x-float64(n)/2+0.5)/float64(n))
		}
		return 1 + 2*sum
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = w(float64(i))
	}
	floats.Scale(1/w(float64(n-1)/2), out)
	return out
}

// Chebyshev returns an n-point Dolph-Chebyshev taper whose sidelobes sit at
// sll dB below the main lobe, normalized to a peak of one.
func Chebyshev(n int, sll float64) []float64 {
	if n <= 1 {
		return ones(n)
	}
	order := float64(n - 1)
	beta := math.Cosh(math.Acosh(math.Pow(10, math.Abs(sll)/20)) / order)

	p := make([]complex128, n)
	for k := range p {
		x := beta * math.Cos(math.Pi*float64(k)/float64(n))
		var v float64
		switch {
		case x > 1:
			v = math.Cosh(order * math.Acosh(x))
		case x < -1:
			v = float64(2*(n%2)-1) * math.Cosh(order*math.Acosh(-x))
		default:
			v = math.Cos(order * math.Acos(x))
		}
		p[k] = complex(v, 0)
		if n%2 == 0 {
			s, c := math.Sincos(math.Pi / float64(n) * float64(k))
			p[k] *= complex(c, s)
		}
	}

	coeff := fourier.NewCmplxFFT(n).Coefficients(nil, p)
	out := make([]float64, 0, n)
	if n%2 == 1 {
		half := (n + 1) / 2
		for i := half - 1; i > 0; i-- {
			out = append(out, real(coeff[i]))
		}
		for i := 0; i < half; i++ {
			out = append(out, real(coeff[i]))
		}
	} else {
		half := n/2 + 1
		for i := half - 1; i > 0; i-- {
			out = append(out, real(coeff[i]))
		}
		for i := 1; i < half; i++ {
			out = append(out, real(coeff[i]))
		}
	}
	floats.Scale(1/floats.Max(out), out)
	return out
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
