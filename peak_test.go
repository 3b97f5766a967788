package goarraycore

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func TestExtractParameters(t *testing.T) {
	theta := floats.Span(make([]float64, 11), -5, 5)
	g := []float64{-20, -10, -15, -8, -3, 0, -3, -8, -15, -10, -20}

	got := ExtractParameters(theta, g, LinearSentinels)
	want := PatternParameters{Gain: 0, PeakAngle: 0, SLL: 10, HPBW: 2}
	if got != want {
		t.Errorf("ExtractParameters() = %+v, want %+v", got, want)
	}
}

func TestExtractParametersSentinels(t *testing.T) {
	tests := []struct {
		name     string
		g        []float64
		s        Sentinels
		wantHPBW float64
		wantSLL  float64
	}{
		{"monotonic linear", []float64{0, 1, 2, 3, 4}, LinearSentinels, 0, 100},
		{"monotonic planar", []float64{0, 1, 2, 3, 4}, PlanarSentinels, -1, -100},
		{"flat", []float64{1, 1, 1, 1, 1}, LinearSentinels, 0, 100},
		{"shallow lobe", []float64{-1, 0, -1, -0.5, -1}, LinearSentinels, 0, 0.5},
		{"one-sided half power", []float64{-10, -5, 0, -1, -2, -1.5, -20}, LinearSentinels, 0, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			theta := floats.Span(make([]float64, len(tt.g)), -2, 2)
			got := ExtractParameters(theta, tt.g, tt.s)
			if got.HPBW != tt.wantHPBW || got.SLL != tt.wantSLL {
				t.Errorf("HPBW, SLL = %v, %v; want %v, %v", got.HPBW, got.SLL, tt.wantHPBW, tt.wantSLL)
			}
		})
	}
}

func TestExtractParametersPlateau(t *testing.T) {
	theta := []float64{-1.5, -0.5, 0.5, 1.5}
	g := []float64{-10, 0, 0, -10}
	got := ExtractParameters(theta, g, PlanarSentinels)
	if got.PeakAngle != -0.5 {
		t.Errorf("PeakAngle = %v, want first maximum -0.5", got.PeakAngle)
	}
	if got.SLL != PlanarSentinels.SLL {
		t.Errorf("SLL = %v, want sentinel", got.SLL)
	}
}

func TestExtractParametersEmpty(t *testing.T) {
	got := ExtractParameters(nil, nil, PlanarSentinels)
	if got.HPBW != -1 || got.SLL != -100 {
		t.Errorf("ExtractParameters(nil) = %+v", got)
	}
	got = ExtractParameters([]float64{0}, []float64{1, 2}, LinearSentinels)
	if got.HPBW != 0 || got.SLL != 100 {
		t.Errorf("mismatched lengths = %+v", got)
	}
}

func TestRounded(t *testing.T) {
	p := PatternParameters{Gain: 9.0309, PeakAngle: -0.04, SLL: 12.7982, HPBW: 12.25}
	got := p.Rounded(1)
	want := PatternParameters{Gain: 9, PeakAngle: 0, SLL: 12.8, HPBW: 12.3}
	if got != want {
		t.Errorf("Rounded(1) = %+v, want %+v", got, want)
	}
}

func TestGainDB(t *testing.T) {
	g := GainDB([]complex128{1, 10i, 0})
	if g[0] != 0 || math.Abs(g[1]-20) > 1e-12 || !math.IsInf(g[2], -1) {
		t.Errorf("GainDB() = %v", g)
	}
}
