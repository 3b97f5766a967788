package goarraycore

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

func mustPlanar(t *testing.T, cfg PlanarConfig) *PlanarArray {
	t.Helper()
	a, err := NewPlanarArray(cfg)
	if err != nil {
		t.Fatalf("NewPlanarArray() error = %v", err)
	}
	return a
}

func TestPlanarRect(t *testing.T) {
	tests := []struct {
		name string
		ep   bool
		want PatternParameters
	}{
		{"isotropic", false, PatternParameters{Gain: 19.7, PeakAngle: 0, SLL: 12.8, HPBW: 12}},
		{"cosine", true, PatternParameters{Gain: 23.2, PeakAngle: 0, SLL: 13.4, HPBW: 12}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := mustPlanar(t, PlanarConfig{Shape: RectShape(8, 8, 0.5, 0.5), ElementPattern: tt.ep})
			pat := a.Compute()
			for _, cut := range []float64{0, 90} {
				if got := pat.Parameters(cut); got != tt.want {
					t.Errorf("Parameters(%v) = %+v, want %+v", cut, got, tt.want)
				}
			}
		})
	}
}

func TestPlanarRectGainRange(t *testing.T) {
	p := mustPlanar(t, PlanarConfig{Shape: RectShape(8, 8, 0.5, 0.5)}).Compute().Parameters(0)
	if p.Gain < 17 || p.Gain > 21 {
		t.Errorf("Gain = %v, want about 10log10(64)", p.Gain)
	}
}

func TestPlanarRectAxes(t *testing.T) {
	// 4 rows along Y, 8 columns along X.
	pat := mustPlanar(t, PlanarConfig{Shape: RectShape(4, 8, 0.5, 0.5)}).Compute()
	if got := pat.Parameters(0).HPBW; got != 12 {
		t.Errorf("phi=0 HPBW = %v, want 12", got)
	}
	if got := pat.Parameters(90).HPBW; got != 26 {
		t.Errorf("phi=90 HPBW = %v, want 26", got)
	}
}

func TestPlanarSquareSymmetry(t *testing.T) {
	pat := mustPlanar(t, PlanarConfig{Shape: RectShape(6, 6, 0.6, 0.6)}).Compute()
	c0, c90 := pat.Cut(0), pat.Cut(90)
	for i := range c0.Gain {
		// Nulls are only resolved to rounding error.
		if c0.Gain[i] < -100 && c90.Gain[i] < -100 {
			continue
		}
		if !scalar.EqualWithinAbs(c0.Gain[i], c90.Gain[i], 1e-6) {
			t.Errorf("gain[%d]: cut 0 = %v, cut 90 = %v", i, c0.Gain[i], c90.Gain[i])
		}
	}
}

func TestPlanarCutPeriodic(t *testing.T) {
	pat := mustPlanar(t, PlanarConfig{Shape: TriShape(5, 6, 0.5, 0.6), ScanTheta: 20, ScanPhi: 45}).Compute()
	for _, angle := range []float64{0, 45, 137} {
		a, b := pat.Cut(angle), pat.Cut(angle+360)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("Cut(%v) != Cut(%v)", angle, angle+360)
		}
	}
	if a, b := pat.Cut(-90), pat.Cut(270); !reflect.DeepEqual(a, b) {
		t.Errorf("Cut(-90) != Cut(270)")
	}
}

func TestPlanarCutLayout(t *testing.T) {
	pat := mustPlanar(t, PlanarConfig{Shape: RectShape(4, 4, 0.5, 0.5)}).Compute()
	cut := pat.Cut(0)
	nt := len(pat.Theta)
	if len(cut.Theta) != 2*nt-1 || len(cut.Gain) != 2*nt-1 {
		t.Fatalf("cut has %d samples, want %d", len(cut.Theta), 2*nt-1)
	}
	if cut.Theta[0] != -180 || cut.Theta[nt-1] != 0 || cut.Theta[2*nt-2] != 180 {
		t.Errorf("cut theta = [%v .. %v .. %v]", cut.Theta[0], cut.Theta[nt-1], cut.Theta[2*nt-2])
	}
	for i := 1; i < len(cut.Theta); i++ {
		if cut.Theta[i] <= cut.Theta[i-1] {
			t.Fatalf("cut theta not increasing at %d", i)
		}
	}
}

func TestPlanarScan(t *testing.T) {
	pat := mustPlanar(t, PlanarConfig{Shape: RectShape(8, 8, 0.5, 0.5), ScanTheta: 30}).Compute()
	p := pat.Parameters(0)
	if p.PeakAngle != 30 || p.HPBW != 15 || p.SLL != 12.8 {
		t.Errorf("Parameters(0) = %+v", p)
	}
	if p.Gain < 18.5 || p.Gain > 19.5 {
		t.Errorf("scanned Gain = %v", p.Gain)
	}

	pat = mustPlanar(t, PlanarConfig{Shape: RectShape(8, 8, 0.5, 0.5), ScanTheta: 30, ScanPhi: 90}).Compute()
	if p := pat.Parameters(90); p.PeakAngle != 30 || p.HPBW != 15 {
		t.Errorf("Parameters(90) = %+v", p)
	}
}

func TestPlanarGeneralMatchesRect(t *testing.T) {
	rect := mustPlanar(t, PlanarConfig{Shape: RectShape(4, 5, 0.5, 0.7), ScanTheta: 15, ScanPhi: 30})
	g := rect.Geometry()
	other := mustPlanar(t, PlanarConfig{Shape: CustomShape(g.X, g.Y), ScanTheta: 15, ScanPhi: 30})

	a, b := rect.Compute().AF, other.Compute().AF
	r, c := a.Dims()
	for i := 0; i < r; i += 7 {
		for j := 0; j < c; j += 5 {
			x, y := a.At(i, j), b.At(i, j)
			if !scalar.EqualWithinAbs(real(x), real(y), 1e-9) || !scalar.EqualWithinAbs(imag(x), imag(y), 1e-9) {
				t.Fatalf("AF(%d, %d): rect %v, general %v", i, j, x, y)
			}
		}
	}
}

func TestPlanarShapes(t *testing.T) {
	tests := []struct {
		name  string
		shape Shape
		n     int
	}{
		{"tri", TriShape(8, 8, 0.5, 0.5), 64},
		{"circ", CircShape([]int{6, 12}, []float64{0.5, 1}), 18},
		{"other", CustomShape([]float64{0, 0.5, 1, 0, 0.5, 1}, []float64{0, 0, 0, 0.5, 0.5, 0.5}), 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := mustPlanar(t, PlanarConfig{Shape: tt.shape, ElementPattern: true, Taper: Taper{Window: "hamming"}})
			if a.Len() != tt.n {
				t.Errorf("Len() = %d, want %d", a.Len(), tt.n)
			}
			p := a.Compute().Parameters(0)
			if p.PeakAngle != 0 {
				t.Errorf("PeakAngle = %v, want 0", p.PeakAngle)
			}
			if p.Gain <= 0 || math.IsInf(p.Gain, 0) {
				t.Errorf("Gain = %v", p.Gain)
			}
		})
	}
}

func TestPlanarGridOverride(t *testing.T) {
	theta := floats.Span(make([]float64, 91), 0, 180)
	a := mustPlanar(t, PlanarConfig{Shape: RectShape(4, 4, 0.5, 0.5), Theta: theta})
	if len(a.Theta()) != 91 || len(a.Phi()) != 181 {
		t.Errorf("grid = %dx%d, want 91x181", len(a.Theta()), len(a.Phi()))
	}

	phi := floats.Span(make([]float64, 73), 0, 360)
	b := mustPlanar(t, PlanarConfig{Shape: RectShape(4, 4, 0.5, 0.5), Phi: phi})
	if len(b.Theta()) != 181 || len(b.Phi()) != 73 {
		t.Errorf("grid = %dx%d, want 181x73", len(b.Theta()), len(b.Phi()))
	}

	if _, err := NewPlanarArray(PlanarConfig{Shape: RectShape(4, 4, 0.5, 0.5), Theta: []float64{10, 5}}); !isConfigErr(err) {
		t.Errorf("decreasing theta: error = %v", err)
	}
	if _, err := NewPlanarArray(PlanarConfig{Shape: RectShape(4, 4, 0.5, 0.5), ScanPhi: math.Inf(1)}); !isConfigErr(err) {
		t.Errorf("infinite scan: error = %v", err)
	}
	if _, err := NewPlanarArray(PlanarConfig{Shape: RectShape(4, 4, 0.5, 0.5), Taper: Taper{Window: "x"}}); !isConfigErr(err) {
		t.Errorf("unknown window: error = %v", err)
	}
}

func TestPlanarComputeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, shape := range []Shape{RectShape(4, 4, 0.5, 0.5), CircShape([]int{8}, []float64{1})} {
		pat, err := mustPlanar(t, PlanarConfig{Shape: shape}).ComputeContext(ctx)
		if !errors.Is(err, context.Canceled) || pat != nil {
			t.Errorf("%s: ComputeContext() = %v, %v, want context.Canceled", shape.Kind, pat, err)
		}
	}
}

func TestPlanarWorkload(t *testing.T) {
	tests := []struct {
		shape Shape
		terms int
	}{
		{RectShape(4, 6, 0.5, 0.5), 10},
		{TriShape(4, 6, 0.5, 0.5), 24},
		{CircShape([]int{8, 16}, []float64{0.5, 1}), 24},
	}
	for _, tt := range tests {
		a := mustPlanar(t, PlanarConfig{Shape: tt.shape, Theta: []float64{0, 45, 90}})
		cells, terms := a.Workload()
		if cells != 3*5 || terms != tt.terms {
			t.Errorf("%s: Workload() = %d, %d, want 15, %d", tt.shape.Kind, cells, terms, tt.terms)
		}
	}
}

func TestPlanarSingleElement(t *testing.T) {
	a := mustPlanar(t, PlanarConfig{Shape: CircShape([]int{1}, []float64{0})})
	p := a.Compute().Parameters(0)
	if p.HPBW != PlanarSentinels.HPBW || p.SLL != PlanarSentinels.SLL {
		t.Errorf("Parameters() = %+v, want sentinels", p)
	}
}

func TestPlanarExcitation(t *testing.T) {
	pat := mustPlanar(t, PlanarConfig{Shape: RectShape(2, 2, 0.5, 0.5), ScanTheta: 30}).Compute()
	ex := pat.Excitation()
	if len(ex) != 4 {
		t.Fatalf("len(Excitation()) = %d", len(ex))
	}
	// Scan along phi=0 steers with X only.
	for _, e := range ex {
		want := -2 * math.Pi * e.X * 0.5
		if !scalar.EqualWithinAbs(e.Phase, want, 1e-12) || e.Amplitude != 1 {
			t.Errorf("element %+v, want phase %v", e, want)
		}
	}
}
