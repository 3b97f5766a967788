package goarraycore

import (
	"fmt"
	"math"

	"github.com/maorshutman/lm"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// Beam fit methods.
const (
	FitLM         = "lm"
	FitNelderMead = "nelder-mead"
	FitLBFGS      = "lbfgs"
)

// Fit statuses.
const (
	FitOK    = "OK"
	FitError = "ERROR"
)

// fitWindowDB bounds the main-lobe samples used by FitMainLobe.
const fitWindowDB = 10

// BeamFit is a parabolic model of the main lobe in dB.
type BeamFit struct {
	Peak        float64 `json:"peak"`
	Center      float64 `json:"center"`
	Beamwidth   float64 `json:"beamwidth"`
	RMS         float64 `json:"rms"`
	Evaluations int     `json:"evaluations"`
	Method      string  `json:"method"`
	Status      string  `json:"status"`
}

// ParabolicGainDB evaluates G(theta) = peak - 12((theta-center)/beamwidth)^2,
// the main-lobe model of ITU-R M.2412.
func ParabolicGainDB(theta, peak, center, beamwidth float64) float64 {
	u := (theta - center) / beamwidth
	return peak - 12*u*u
}

type beamProblem struct {
	theta, gain []float64
	evals       int
}

func (b *beamProblem) residuals(dst, x []float64) {
	b.evals++
	for i, t := range b.theta {
		dst[i] = ParabolicGainDB(t, x[0], x[1], x[2]) - b.gain[i]
	}
}

func (b *beamProblem) cost(x []float64) float64 {
	r := make([]float64, len(b.theta))
	b.residuals(r, x)
	return floats.Dot(r, r)
}

func (b *beamProblem) rms(x []float64) float64 {
	return math.Sqrt(b.cost(x) / float64(len(b.theta)))
}

// FitMainLobe fits ParabolicGainDB to the samples of the main lobe that lie
// within 10 dB of the peak. method is one of FitLM, FitNelderMead or
// FitLBFGS; empty selects FitLM. A solver failure is reported through
// Status, not as an error.
func FitMainLobe(theta, gainDB []float64, method string) (BeamFit, error) {
	if method == "" {
		method = FitLM
	}
	switch method {
	case FitLM, FitNelderMead, FitLBFGS:
	default:
		return BeamFit{}, configErr("fit_method", "unknown method %q", method)
	}
	if len(theta) != len(gainDB) {
		return BeamFit{}, configErr("theta", "got %d angles for %d gain samples", len(theta), len(gainDB))
	}

	prob, init, err := mainLobe(theta, gainDB)
	if err != nil {
		return BeamFit{}, err
	}

	switch method {
	case FitNelderMead:
		return prob.minimize(init, &optimize.NelderMead{}, method), nil
	case FitLBFGS:
		return prob.minimize(init, &optimize.LBFGS{}, method), nil
	default:
		return prob.levenbergMarquardt(init), nil
	}
}

// mainLobe selects the fit samples and an initial guess.
func mainLobe(theta, g []float64) (*beamProblem, []float64, error) {
	if len(g) < 3 {
		return nil, nil, configErr("gain", "need at least 3 samples, got %d", len(g))
	}
	peakIdx := floats.MaxIdx(g)
	peak := g[peakIdx]
	nullL, nullR := bracket(g, peakIdx)

	lo, hi := peakIdx, peakIdx
	for lo > nullL && g[lo-1] >= peak-fitWindowDB {
		lo--
	}
	for hi < nullR && g[hi+1] >= peak-fitWindowDB {
		hi++
	}
	if hi-lo+1 < 3 {
		return nil, nil, configErr("gain", "main lobe has %d samples within %d dB of the peak, need 3", hi-lo+1, fitWindowDB)
	}

	width := ExtractParameters(theta, g, LinearSentinels).HPBW
	if !(width > 0) {
		width = theta[hi] - theta[lo]
	}
	prob := &beamProblem{theta: theta[lo : hi+1], gain: g[lo : hi+1]}
	return prob, []float64{peak, theta[peakIdx], width}, nil
}

func (b *beamProblem) levenbergMarquardt(init []float64) (fit BeamFit) {
	fit = BeamFit{Method: FitLM, Status: FitError}
	defer func() {
		if r := recover(); r != nil {
			fit = BeamFit{Method: FitLM, Status: fmt.Sprintf("%s: %v", FitError, r), Evaluations: b.evals}
		}
	}()

	jac := lm.NumJac{Func: b.residuals}
	problem := lm.LMProblem{
		Dim:        len(init),
		Size:       len(b.theta),
		Func:       b.residuals,
		Jac:        jac.Jac,
		InitParams: init,
		Tau:        1e-3,
		Eps1:       1e-10,
		Eps2:       1e-10,
	}
	res, err := lm.LM(problem, &lm.Settings{Iterations: 1000, ObjectiveTol: 1e-16})
	if err != nil {
		fit.Status = fmt.Sprintf("%s: %v", FitError, err)
		fit.Evaluations = b.evals
		return fit
	}
	return b.result(res.X, FitLM)
}

func (b *beamProblem) minimize(init []float64, m optimize.Method, name string) BeamFit {
	problem := optimize.Problem{
		Func: b.cost,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, b.cost, x, nil)
		},
	}
	res, err := optimize.Minimize(problem, init, nil, m)
	if err != nil && res == nil {
		return BeamFit{Method: name, Status: fmt.Sprintf("%s: %v", FitError, err), Evaluations: b.evals}
	}
	return b.result(res.X, name)
}

func (b *beamProblem) result(x []float64, method string) BeamFit {
	evals := b.evals
	return BeamFit{
		Peak:        x[0],
		Center:      x[1],
		Beamwidth:   math.Abs(x[2]),
		RMS:         b.rms(x),
		Evaluations: evals,
		Method:      method,
		Status:      FitOK,
	}
}
