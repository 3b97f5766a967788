package goarraycore

import (
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

func TestWindow(t *testing.T) {
	got, err := Window("Hann", 4)
	if err != nil {
		t.Fatalf("Window() error = %v", err)
	}
	// Periodic: the symmetric 5-point window without its last sample.
	equalSlices(t, "hann", got, []float64{0, 0.5, 1, 0.5}, 1e-12)

	one, err := Window("hamming", 1)
	if err != nil || len(one) != 1 || one[0] != 1 {
		t.Errorf("Window(hamming, 1) = %v, %v; want [1]", one, err)
	}

	if _, err := Window("kaiser", 8); !isConfigErr(err) {
		t.Errorf("unknown window: error = %v, want ConfigurationError", err)
	}
	if _, err := Window("hann", 0); !isConfigErr(err) {
		t.Errorf("zero length: error = %v, want ConfigurationError", err)
	}
}

func TestWindowNames(t *testing.T) {
	names := WindowNames()
	if len(names) != len(windows) {
		t.Fatalf("len(WindowNames()) = %d, want %d", len(names), len(windows))
	}
	for _, name := range names {
		w, err := Window(name, 16)
		if err != nil {
			t.Errorf("Window(%s) error = %v", name, err)
			continue
		}
		if len(w) != 16 {
			t.Errorf("Window(%s) len = %d, want 16", name, len(w))
		}
	}
}

func assertSymmetric(t *testing.T, name string, w []float64) {
	t.Helper()
	n := len(w)
	for i := 0; i < n/2; i++ {
		if !scalar.EqualWithinAbs(w[i], w[n-1-i], 1e-9) {
			t.Errorf("%s[%d] = %v, [%d] = %v; want symmetric", name, i, w[i], n-1-i, w[n-1-i])
		}
	}
}

func TestTaylor(t *testing.T) {
	for _, n := range []int{8, 9, 32} {
		w := Taylor(n, taylorNBar, 30)
		if len(w) != n {
			t.Fatalf("len(Taylor(%d)) = %d", n, len(w))
		}
		assertSymmetric(t, "taylor", w)
		if max := floats.Max(w); max > 1+1e-9 {
			t.Errorf("Taylor(%d) max = %v, want <= 1", n, max)
		}
		if w[0] >= w[n/2] || w[0] <= 0 {
			t.Errorf("Taylor(%d) edge = %v, centre = %v", n, w[0], w[n/2])
		}
	}
	if w := Taylor(9, taylorNBar, 30); !scalar.EqualWithinAbs(w[4], 1, 1e-12) {
		t.Errorf("odd Taylor centre = %v, want 1", w[4])
	}
}

func TestChebyshev(t *testing.T) {
	for _, n := range []int{8, 9, 16} {
		w := Chebyshev(n, 60)
		if len(w) != n {
			t.Fatalf("len(Chebyshev(%d)) = %d", n, len(w))
		}
		assertSymmetric(t, "chebyshev", w)
		if !scalar.EqualWithinAbs(floats.Max(w), 1, 1e-12) {
			t.Errorf("Chebyshev(%d) max = %v, want 1", n, floats.Max(w))
		}
		if w[0] >= w[n/2] {
			t.Errorf("Chebyshev(%d) edge = %v, centre = %v", n, w[0], w[n/2])
		}
	}
}

func TestTaperGolden(t *testing.T) {
	tests := []struct {
		name string
		got  []float64
		want []float64
	}{
		{"chebyshev 8", Chebyshev(8, 60), []float64{
			0.068475554164, 0.303219161655, 0.686846620774, 1,
			1, 0.686846620774, 0.303219161655, 0.068475554164,
		}},
		{"chebyshev 9", Chebyshev(9, 60), []float64{
			0.051868563594, 0.227123933623, 0.537917201560, 0.860484437395, 1,
			0.860484437395, 0.537917201560, 0.227123933623, 0.051868563594,
		}},
		{"taylor 8", Taylor(8, taylorNBar, 30), []float64{
			0.283341989750, 0.515504737145, 0.798185386805, 0.974951491211,
			0.974951491211, 0.798185386805, 0.515504737145, 0.283341989750,
		}},
		{"taylor 9", Taylor(9, taylorNBar, 30), []float64{
			0.276294775318, 0.467122325404, 0.726364614480, 0.923699840323, 1,
			0.923699840323, 0.726364614480, 0.467122325404, 0.276294775318,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			equalSlices(t, tt.name, tt.got, tt.want, 1e-9)
		})
	}
}

func TestTaperValidate(t *testing.T) {
	tests := []struct {
		name    string
		taper   Taper
		wantErr bool
	}{
		{"uniform", Taper{}, false},
		{"window", Taper{Window: "blackman"}, false},
		{"sll", Taper{SLL: 35}, false},
		{"both", Taper{Window: "hann", SLL: 30}, true},
		{"negative sll", Taper{SLL: -20}, true},
		{"unknown window", Taper{Window: "nope"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.taper.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !isConfigErr(err) {
				t.Errorf("Validate() error type = %T", err)
			}
		})
	}
}

func TestSymmetricWindow(t *testing.T) {
	got, err := symmetricWindow("hann", 5)
	if err != nil {
		t.Fatal(err)
	}
	equalSlices(t, "hann", got, []float64{0, 0.5, 1, 0.5, 0}, 1e-12)
	if _, err := symmetricWindow("hann", 0); !isConfigErr(err) {
		t.Errorf("zero length: error = %v, want ConfigurationError", err)
	}
}

func TestTaperAmplitudes(t *testing.T) {
	amp, err := Taper{SLL: 30}.Amplitudes(16)
	if err != nil {
		t.Fatal(err)
	}
	equalSlices(t, "taylor", amp, Taylor(16, taylorNBar, 30), 0)

	amp, err = Taper{SLL: 60}.Amplitudes(16)
	if err != nil {
		t.Fatal(err)
	}
	equalSlices(t, "chebyshev", amp, Chebyshev(16, 60), 0)

	amp, err = Taper{}.Amplitudes(5)
	if err != nil {
		t.Fatal(err)
	}
	equalSlices(t, "uniform", amp, []float64{1, 1, 1, 1, 1}, 0)
}

func TestRadialTaper(t *testing.T) {
	x := []float64{0, 1, -1, 0.5}
	y := []float64{0, 0, 0, 0}
	w, err := Taper{Window: "hann"}.radial(x, y)
	if err != nil {
		t.Fatal(err)
	}
	if !scalar.EqualWithinAbs(w[0], 1, 1e-12) {
		t.Errorf("centre weight = %v, want 1", w[0])
	}
	if !scalar.EqualWithinAbs(w[3], 0.5, 1e-12) || !scalar.EqualWithinAbs(w[1], 0, 1e-12) {
		t.Errorf("half-radius and edge weights = %v, %v; want 0.5, 0", w[3], w[1])
	}
	if !(w[1] < w[3] && w[3] < w[0]) {
		t.Errorf("weights %v do not fall off with radius", w)
	}
	if w[1] != w[2] {
		t.Errorf("equal radii got %v and %v", w[1], w[2])
	}
}

func TestRadialTaperSingleRing(t *testing.T) {
	g, err := CircShape([]int{6}, []float64{1}).Build()
	if err != nil {
		t.Fatal(err)
	}
	w, err := Taper{Window: "hann"}.radial(g.X, g.Y)
	if err != nil {
		t.Fatal(err)
	}
	equalSlices(t, "single ring", w, ones(6), 0)
}
