package processing

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"github.com/kacperjurak/goarraycore"
	"github.com/kacperjurak/goarraycore/pkg/cache"
	"github.com/kacperjurak/goarraycore/pkg/config"
	"github.com/kacperjurak/goarraycore/pkg/models"
	"github.com/kacperjurak/goarraycore/pkg/plotting"
)

// MaxScans bounds the number of patterns in one envelope request.
const MaxScans = 721

var (
	defaultGridCounts  = []int{8, 8}
	defaultGridSpacing = []float64{0.5, 0.5}
	defaultRingCounts  = []int{8, 16, 24}
	defaultRingRadii   = []float64{0.5, 1.0, 1.5}
)

// ArrayProcessor turns API requests into engine calls and engine results
// into API responses.
type ArrayProcessor struct {
	config *config.Config
	cache  *cache.Cache
}

// NewArrayProcessor creates a new processor. c may be nil.
func NewArrayProcessor(cfg *config.Config, c *cache.Cache) *ArrayProcessor {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &ArrayProcessor{config: cfg, cache: c}
}

// Cache returns the response cache, which may be nil.
func (p *ArrayProcessor) Cache() *cache.Cache {
	return p.cache
}

// ProcessorFunc returns a function suitable for the worker pool.
func (p *ArrayProcessor) ProcessorFunc() func(ctx context.Context, kind string, req interface{}) (models.Analysis, error) {
	return p.Process
}

// Process runs one request of the given kind. req must be the matching
// request type from pkg/models.
func (p *ArrayProcessor) Process(ctx context.Context, kind string, req interface{}) (models.Analysis, error) {
	switch kind {
	case models.KindLinear:
		r, ok := req.(models.LinearRequest)
		if !ok {
			return models.Analysis{}, fmt.Errorf("linear request has type %T", req)
		}
		resp, err := p.AnalyzeLinear(ctx, r)
		if err != nil {
			return models.Analysis{}, err
		}
		return models.Analysis{
			Response:   resp,
			Parameters: goarraycore.PatternParameters{Gain: resp.Gain, PeakAngle: resp.PeakAngle, SLL: resp.SLL, HPBW: resp.HPBW},
			Theta:      resp.Theta,
			Pattern:    resp.Pattern,
			Elements:   resp.Excitation,
		}, nil

	case models.KindPlanar:
		r, ok := req.(models.PlanarRequest)
		if !ok {
			return models.Analysis{}, fmt.Errorf("planar request has type %T", req)
		}
		resp, err := p.AnalyzePlanar(ctx, r)
		if err != nil {
			return models.Analysis{}, err
		}
		return models.Analysis{
			Response:   resp,
			Parameters: goarraycore.PatternParameters{Gain: resp.Gain, PeakAngle: resp.PeakAngle, SLL: resp.SLL, HPBW: resp.HPBW},
			Theta:      resp.Theta,
			Pattern:    resp.Pattern,
			Elements:   resp.Excitation,
		}, nil

	case models.KindEnvelope:
		r, ok := req.(models.EnvelopeRequest)
		if !ok {
			return models.Analysis{}, fmt.Errorf("envelope request has type %T", req)
		}
		resp, err := p.Envelope(ctx, r)
		if err != nil {
			return models.Analysis{}, err
		}
		return models.Analysis{
			Response:   resp,
			Parameters: goarraycore.ExtractParameters(resp.Theta, resp.Envelope, goarraycore.LinearSentinels),
			Theta:      resp.Theta,
			Pattern:    resp.Envelope,
		}, nil
	}
	return models.Analysis{}, &goarraycore.ConfigurationError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", kind)}
}

// cached looks the request up and otherwise computes and stores it.
func (p *ArrayProcessor) cached(kind string, req interface{}, compute func() (interface{}, error)) (interface{}, error) {
	key, err := cache.Key(kind, req)
	if err != nil {
		return nil, err
	}
	if v, ok := p.cache.Get(key); ok {
		log.WithFields(log.Fields{"kind": kind, "key": key[:12]}).Debug("cache hit")
		return v, nil
	}
	v, err := compute()
	if err != nil {
		return nil, err
	}
	p.cache.Add(key, v)
	return v, nil
}

// AnalyzeLinear computes the pattern and parameters of a linear array.
func (p *ArrayProcessor) AnalyzeLinear(ctx context.Context, req models.LinearRequest) (*models.LinearResponse, error) {
	v, err := p.cached(models.KindLinear, req, func() (interface{}, error) {
		return p.analyzeLinear(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.LinearResponse), nil
}

func (p *ArrayProcessor) analyzeLinear(ctx context.Context, req models.LinearRequest) (*models.LinearResponse, error) {
	plotType := strings.ToLower(req.PlotType)
	switch plotType {
	case "":
		plotType = models.PlotCartesian
	case models.PlotCartesian, models.PlotPolar:
	default:
		return nil, &goarraycore.ConfigurationError{Field: "plot_type", Reason: fmt.Sprintf("unknown plot type %q", req.PlotType)}
	}
	fitMethod := strings.ToLower(req.FitMethod)
	switch fitMethod {
	case "", goarraycore.FitLM, goarraycore.FitNelderMead, goarraycore.FitLBFGS:
	default:
		return nil, &goarraycore.ConfigurationError{Field: "fit_method", Reason: fmt.Sprintf("unknown fit method %q", req.FitMethod)}
	}

	arr, err := p.linearArray(req, 1)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	pat := arr.Compute()
	params := pat.Parameters()
	gain := pat.GainDB()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pattern := models.Floor(gain)
	ymin, ymax := plotting.AxisLimits(pattern)
	resp := &models.LinearResponse{
		Theta:       pat.Theta,
		Pattern:     pattern,
		Gain:        params.Gain,
		PeakAngle:   params.PeakAngle,
		SLL:         params.SLL,
		HPBW:        params.HPBW,
		Annotations: []models.Annotation{},
		YMin:        ymin,
		YMax:        ymax,
		Excitation:  models.ElementReports(pat.Excitation()),
	}
	if req.ShowManifold {
		resp.Manifold = arr.Positions()
	}
	if req.Annotate {
		resp.Annotations = Annotations(params)
	}

	if fitMethod != "" {
		fit, err := goarraycore.FitMainLobe(pat.Theta, gain, fitMethod)
		if err != nil {
			log.WithError(err).WithField("method", fitMethod).Warn("⚠️  Beam fit failed")
			fit = goarraycore.BeamFit{Method: fitMethod, Status: goarraycore.FitError}
		}
		resp.BeamFit = &fit
	}

	if p.config.Plots {
		series := plotting.Series{Name: "pattern", Theta: resp.Theta, Gain: resp.Pattern}
		opts := plotting.Options{Title: fmt.Sprintf("%d-element linear array", arr.Len()), YMin: ymin, YMax: ymax}
		if plotType == models.PlotPolar {
			resp.Plot, err = plotting.Polar(opts, series)
		} else {
			resp.Plot, err = plotting.Cartesian(opts, series)
		}
		if err != nil {
			return nil, err
		}
	}

	if !p.config.Quiet {
		log.WithFields(log.Fields{
			"elements": arr.Len(),
			"gain":     params.Gain,
			"hpbw":     params.HPBW,
			"elapsed":  time.Since(start),
		}).Info("📊 Linear array analyzed")
	}
	return resp, nil
}

// linearArray validates the request against the service limits and builds
// the array.
func (p *ArrayProcessor) linearArray(req models.LinearRequest, scans int) (*goarraycore.LinearArray, error) {
	cfg := goarraycore.LinearConfig{
		NumElements:    req.NumElem,
		ScanAngle:      req.ScanAngle,
		ElementPattern: req.ElementPattern == nil || *req.ElementPattern,
		Taper:          goarraycore.Taper{Window: req.Window, SLL: req.SLL},
		ElementGain:    req.ElementGain,
		Theta:          req.Theta,
	}

	if len(req.ElementPositions) > 0 {
		if err := p.checkCount("element_positions", len(req.ElementPositions)); err != nil {
			return nil, err
		}
		if err := p.checkAperture("element_positions", span(req.ElementPositions)); err != nil {
			return nil, err
		}
		arr, err := goarraycore.FromElementPositions(req.ElementPositions, cfg)
		if err != nil {
			return nil, err
		}
		if err := p.checkSpacings("element_positions", diffs(arr.Positions())); err != nil {
			return nil, err
		}
		return arr, p.checkLinearGrid(arr, scans)
	}

	spacing, err := parseSpacing(req.ElementSpacing)
	if err != nil {
		return nil, err
	}
	switch s := spacing.(type) {
	case goarraycore.UniformSpacing:
		if err := p.checkCount("num_elem", req.NumElem); err != nil {
			return nil, err
		}
		if err := p.checkSpacings("element_spacing", []float64{float64(s)}); err != nil {
			return nil, err
		}
		if req.NumElem > 1 {
			if err := p.checkAperture("element_spacing", float64(req.NumElem-1)*float64(s)); err != nil {
				return nil, err
			}
		}
	case goarraycore.ExplicitSpacing:
		if err := p.checkCount("element_spacing", len(s)+1); err != nil {
			return nil, err
		}
		if err := p.checkSpacings("element_spacing", s); err != nil {
			return nil, err
		}
		if err := p.checkAperture("element_spacing", floats.Sum(s)); err != nil {
			return nil, err
		}
	}
	cfg.Spacing = spacing
	arr, err := goarraycore.NewLinearArray(cfg)
	if err != nil {
		return nil, err
	}
	return arr, p.checkLinearGrid(arr, scans)
}

// parseSpacing accepts a number or a list of numbers, as decoded from JSON,
// YAML or a mapstructure params map.
func parseSpacing(v interface{}) (goarraycore.Spacing, error) {
	switch s := v.(type) {
	case nil:
		return nil, &goarraycore.ConfigurationError{Field: "element_spacing", Reason: "is required"}
	case float64:
		return goarraycore.UniformSpacing(s), nil
	case float32:
		return goarraycore.UniformSpacing(s), nil
	case int:
		return goarraycore.UniformSpacing(s), nil
	case int64:
		return goarraycore.UniformSpacing(s), nil
	case []float64:
		return goarraycore.ExplicitSpacing(s), nil
	case []interface{}:
		out := make(goarraycore.ExplicitSpacing, len(s))
		for i, e := range s {
			u, err := parseSpacing(e)
			if err != nil {
				return nil, err
			}
			d, ok := u.(goarraycore.UniformSpacing)
			if !ok {
				return nil, &goarraycore.ConfigurationError{Field: "element_spacing", Reason: "nested lists are not allowed"}
			}
			out[i] = float64(d)
		}
		return out, nil
	}
	return nil, &goarraycore.ConfigurationError{Field: "element_spacing", Reason: fmt.Sprintf("unsupported value of type %T", v)}
}

func diffs(x []float64) []float64 {
	if len(x) < 2 {
		return nil
	}
	out := make([]float64, len(x)-1)
	for i := range out {
		out[i] = x[i+1] - x[i]
	}
	return out
}

func (p *ArrayProcessor) checkCount(field string, n int) error {
	if n > p.config.MaxElements {
		return &goarraycore.ConfigurationError{
			Field:  field,
			Reason: fmt.Sprintf("%d elements exceed the limit of %d", n, p.config.MaxElements),
		}
	}
	return nil
}

// checkCounts bounds the element count of a grid (product of counts) or a
// set of rings (sum of counts) before anything is allocated.
func (p *ArrayProcessor) checkCounts(counts []int, product bool) error {
	total := 0
	if product {
		total = 1
	}
	for _, n := range counts {
		if err := p.checkCount("num_elem", n); err != nil {
			return err
		}
		if n <= 0 {
			// The engine reports the invalid count.
			return nil
		}
		if product {
			total *= n
		} else {
			total += n
		}
		if err := p.checkCount("num_elem", total); err != nil {
			return err
		}
	}
	return nil
}

// checkAperture bounds the array extent, which sets the size of the
// auto-sized angle grids.
func (p *ArrayProcessor) checkAperture(field string, aperture float64) error {
	if aperture > p.config.MaxAperture {
		return &goarraycore.ConfigurationError{
			Field:  field,
			Reason: fmt.Sprintf("aperture of %g wavelengths exceeds the limit of %g", aperture, p.config.MaxAperture),
		}
	}
	return nil
}

// checkGrid bounds the pattern memory (cells) and the number of element
// terms evaluated over it (cells*terms).
func (p *ArrayProcessor) checkGrid(cells, terms int) error {
	if cells > p.config.MaxGridCells {
		return &goarraycore.ConfigurationError{
			Field:  "theta",
			Reason: fmt.Sprintf("%d grid points exceed the limit of %d", cells, p.config.MaxGridCells),
		}
	}
	if terms > 0 && cells > p.config.MaxGridWork/terms {
		return &goarraycore.ConfigurationError{
			Field:  "num_elem",
			Reason: fmt.Sprintf("%d grid points x %d terms exceed the limit of %d", cells, terms, p.config.MaxGridWork),
		}
	}
	return nil
}

// checkLinearGrid bounds a linear array evaluated at scans scan angles.
func (p *ArrayProcessor) checkLinearGrid(arr *goarraycore.LinearArray, scans int) error {
	if scans < 1 {
		scans = 1
	}
	return p.checkGrid(len(arr.Theta())*scans, arr.Len())
}

func span(x []float64) float64 {
	return floats.Max(x) - floats.Min(x)
}

func (p *ArrayProcessor) checkSpacings(field string, s []float64) error {
	for _, v := range s {
		if v > p.config.MaxSpacing {
			return &goarraycore.ConfigurationError{
				Field:  field,
				Reason: fmt.Sprintf("%g wavelengths exceeds the limit of %g", v, p.config.MaxSpacing),
			}
		}
	}
	return nil
}

// Annotations labels the peak, the half-power level and the sidelobe level
// of a pattern.
func Annotations(params goarraycore.PatternParameters) []models.Annotation {
	return []models.Annotation{
		{
			X:         params.PeakAngle,
			Y:         params.Gain,
			Text:      fmt.Sprintf("Peak: %.1f dB @ %.1f°", params.Gain, params.PeakAngle),
			ShowArrow: true,
			Color:     "green",
		},
		{
			X:     params.PeakAngle,
			Y:     params.Gain - 3,
			Text:  fmt.Sprintf("HPBW: %.1f°", params.HPBW),
			Color: "black",
		},
		{
			X:     params.PeakAngle - 2*params.HPBW,
			Y:     params.Gain - params.SLL/2,
			Text:  fmt.Sprintf("SLL: %.1f dB", params.SLL),
			Color: "red",
		},
	}
}

// AnalyzePlanar computes the pattern of a planar array and its cut at
// CutAngle, which defaults to the scan azimuth.
func (p *ArrayProcessor) AnalyzePlanar(ctx context.Context, req models.PlanarRequest) (*models.PlanarResponse, error) {
	v, err := p.cached(models.KindPlanar, req, func() (interface{}, error) {
		return p.analyzePlanar(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.PlanarResponse), nil
}

func (p *ArrayProcessor) analyzePlanar(ctx context.Context, req models.PlanarRequest) (*models.PlanarResponse, error) {
	plotType := strings.ToLower(req.PlotType)
	switch plotType {
	case "":
		plotType = models.PlotPatternCut
	case models.PlotPatternCut, models.PlotManifold, models.PlotPolar:
	default:
		return nil, &goarraycore.ConfigurationError{Field: "plot_type", Reason: fmt.Sprintf("unknown plot type %q", req.PlotType)}
	}

	shape, err := p.planarShape(req)
	if err != nil {
		return nil, err
	}
	scan := req.ScanAngle
	if len(scan) == 0 {
		scan = []float64{0, 0}
	}
	if len(scan) != 2 {
		return nil, &goarraycore.ConfigurationError{Field: "scan_angle", Reason: fmt.Sprintf("want [theta, phi], got %d values", len(scan))}
	}
	cutAngle := scan[1]
	if req.CutAngle != nil {
		cutAngle = *req.CutAngle
	}
	if math.IsNaN(cutAngle) || math.IsInf(cutAngle, 0) {
		return nil, &goarraycore.ConfigurationError{Field: "cut_angle", Reason: "must be finite"}
	}

	geo, err := shape.Build()
	if err != nil {
		return nil, err
	}
	if err := p.checkAperture(apertureField(shape.Kind), geo.Aperture()); err != nil {
		return nil, err
	}

	arr, err := goarraycore.NewPlanarArray(goarraycore.PlanarConfig{
		Shape:          shape,
		ScanTheta:      scan[0],
		ScanPhi:        scan[1],
		ElementPattern: req.ElementPattern == nil || *req.ElementPattern,
		Taper:          goarraycore.Taper{Window: req.Window, SLL: req.SLL},
		Theta:          req.Theta,
		Phi:            req.Phi,
	})
	if err != nil {
		return nil, err
	}
	if err := p.checkCount("num_elem", arr.Len()); err != nil {
		return nil, err
	}
	if err := p.checkGrid(arr.Workload()); err != nil {
		return nil, err
	}

	start := time.Now()
	pat, err := arr.ComputeContext(ctx)
	if err != nil {
		return nil, err
	}
	cut := pat.Cut(cutAngle)
	params := cut.Parameters()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	layout := arr.Geometry()
	pattern := models.Floor(cut.Gain)
	ymin, ymax := plotting.AxisLimits(pattern)
	resp := &models.PlanarResponse{
		ArrayType:  string(shape.Kind),
		ManifoldX:  layout.X,
		ManifoldY:  layout.Y,
		Gain:       params.Gain,
		PeakAngle:  params.PeakAngle,
		SLL:        params.SLL,
		HPBW:       params.HPBW,
		CutAngle:   cutAngle,
		YMin:       ymin,
		YMax:       ymax,
		Excitation: models.ElementReports(pat.Excitation()),
	}
	if plotType != models.PlotManifold {
		resp.Theta = cut.Theta
		resp.Pattern = pattern
	}

	if p.config.Plots {
		title := fmt.Sprintf("%d-element %s array, cut %g°", arr.Len(), shape.Kind, cutAngle)
		series := plotting.Series{Name: "cut", Theta: cut.Theta, Gain: pattern}
		opts := plotting.Options{Title: title, YMin: ymin, YMax: ymax}
		switch plotType {
		case models.PlotManifold:
			resp.Plot, err = plotting.Manifold(fmt.Sprintf("%d-element %s array", arr.Len(), shape.Kind), layout.X, layout.Y)
		case models.PlotPolar:
			resp.Plot, err = plotting.Polar(opts, series)
		default:
			resp.Plot, err = plotting.Cartesian(opts, series)
		}
		if err != nil {
			return nil, err
		}
	}

	if !p.config.Quiet {
		log.WithFields(log.Fields{
			"type":     shape.Kind,
			"elements": arr.Len(),
			"cut":      cutAngle,
			"gain":     params.Gain,
			"elapsed":  time.Since(start),
		}).Info("📊 Planar array analyzed")
	}
	return resp, nil
}

// planarShape applies the per-type defaults and the service limits.
func (p *ArrayProcessor) planarShape(req models.PlanarRequest) (goarraycore.Shape, error) {
	kind := goarraycore.ShapeKind(strings.ToLower(req.ArrayType))
	if kind == "" {
		kind = goarraycore.ShapeRect
	}

	switch kind {
	case goarraycore.ShapeRect, goarraycore.ShapeTri:
		counts, spacing := req.NumElem, req.ElementSpacing
		if len(counts) == 0 {
			counts = defaultGridCounts
		}
		if len(spacing) == 0 {
			spacing = defaultGridSpacing
		}
		if err := p.checkSpacings("element_spacing", spacing); err != nil {
			return goarraycore.Shape{}, err
		}
		if err := p.checkCounts(counts, true); err != nil {
			return goarraycore.Shape{}, err
		}
		return goarraycore.Shape{Kind: kind, Counts: counts, Spacings: spacing}, nil

	case goarraycore.ShapeCirc:
		counts, radii := req.NumElem, req.Radius
		if len(counts) == 0 {
			counts = defaultRingCounts
		}
		if len(radii) == 0 {
			radii = defaultRingRadii
		}
		if err := p.checkSpacings("radius", radii); err != nil {
			return goarraycore.Shape{}, err
		}
		if err := p.checkCounts(counts, false); err != nil {
			return goarraycore.Shape{}, err
		}
		return goarraycore.CircShape(counts, radii), nil

	case goarraycore.ShapeOther:
		if err := p.checkCount("x", len(req.X)); err != nil {
			return goarraycore.Shape{}, err
		}
		return goarraycore.CustomShape(req.X, req.Y), nil
	}
	return goarraycore.Shape{}, &goarraycore.ConfigurationError{Field: "array_type", Reason: fmt.Sprintf("invalid array type %q", req.ArrayType)}
}

func apertureField(kind goarraycore.ShapeKind) string {
	switch kind {
	case goarraycore.ShapeCirc:
		return "radius"
	case goarraycore.ShapeOther:
		return "x"
	}
	return "element_spacing"
}

// Envelope steers a linear array over a range of scan angles.
func (p *ArrayProcessor) Envelope(ctx context.Context, req models.EnvelopeRequest) (*models.EnvelopeResponse, error) {
	v, err := p.cached(models.KindEnvelope, req, func() (interface{}, error) {
		return p.envelope(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.EnvelopeResponse), nil
}

func (p *ArrayProcessor) envelope(ctx context.Context, req models.EnvelopeRequest) (*models.EnvelopeResponse, error) {
	n := goarraycore.ScanCount(req.ScanFrom, req.ScanTo, req.ScanStep)
	if n > MaxScans {
		return nil, &goarraycore.ConfigurationError{
			Field:  "scan_step",
			Reason: fmt.Sprintf("%d scan angles exceed the limit of %d", n, MaxScans),
		}
	}
	arr, err := p.linearArray(req.LinearRequest, n)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	env, err := arr.EnvelopeContext(ctx, req.ScanFrom, req.ScanTo, req.ScanStep)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	envelope := models.Floor(env.Envelope)
	ymin, ymax := plotting.AxisLimits(envelope)
	resp := &models.EnvelopeResponse{
		Theta:      env.Theta,
		ScanAngles: env.ScanAngles,
		Envelope:   envelope,
		YMin:       ymin,
		YMax:       ymax,
	}
	if req.IncludePatterns {
		resp.Patterns = make([][]float64, len(env.Patterns))
		for i, g := range env.Patterns {
			resp.Patterns[i] = models.Floor(g)
		}
	}

	if p.config.Plots {
		title := fmt.Sprintf("Scan envelope %g° to %g°", req.ScanFrom, req.ScanTo)
		resp.Plot, err = plotting.Cartesian(plotting.Options{Title: title, YMin: ymin, YMax: ymax},
			plotting.Series{Name: "envelope", Theta: env.Theta, Gain: envelope})
		if err != nil {
			return nil, err
		}
	}

	if !p.config.Quiet {
		log.WithFields(log.Fields{
			"elements": arr.Len(),
			"scans":    len(env.ScanAngles),
			"elapsed":  time.Since(start),
		}).Info("📊 Scan envelope computed")
	}
	return resp, nil
}
