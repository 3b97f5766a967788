package goarraycore

import (
	"context"

	"gonum.org/v1/gonum/floats"
)

// ScanEnvelope collects the patterns of a linear array steered over a range
// of scan angles and their element-wise maximum.
type ScanEnvelope struct {
	Theta      []float64
	ScanAngles []float64
	// Patterns holds one gain curve (dBi) per scan angle.
	Patterns [][]float64
	Envelope []float64
}

// Envelope steers the array from `from` to `to` degrees in increments of
// step and returns the resulting patterns and their upper envelope. The
// number of scan angles is int((to-from)/step)+1, spread evenly over the
// range.
func (a *LinearArray) Envelope(from, to, step float64) (*ScanEnvelope, error) {
	return a.EnvelopeContext(context.Background(), from, to, step)
}

// EnvelopeContext is Envelope with cancellation, checked once per scan
// angle.
func (a *LinearArray) EnvelopeContext(ctx context.Context, from, to, step float64) (*ScanEnvelope, error) {
	if !finite(from) || !finite(to) {
		return nil, configErr("scan_range", "bounds must be finite")
	}
	if !(step > 0) || !finite(step) {
		return nil, configErr("scan_step", "must be a finite value > 0, got %g", step)
	}
	if to < from {
		return nil, configErr("scan_range", "end %g is before start %g", to, from)
	}
	n := int((to-from)/step) + 1
	scans := []float64{from}
	if n > 1 {
		scans = floats.Span(make([]float64, n), from, to)
	}

	env := &ScanEnvelope{
		Theta:      a.Theta(),
		ScanAngles: scans,
		Patterns:   make([][]float64, len(scans)),
	}
	for i, s := range scans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		env.Patterns[i] = a.computeAt(s).GainDB()
		if i == 0 {
			env.Envelope = cloneFloats(env.Patterns[i])
			continue
		}
		for j, v := range env.Patterns[i] {
			if v > env.Envelope[j] {
				env.Envelope[j] = v
			}
		}
	}
	return env, nil
}

// ScanCount returns the number of patterns Envelope would compute.
func ScanCount(from, to, step float64) int {
	if !(step > 0) || to < from {
		return 0
	}
	return int((to-from)/step) + 1
}
