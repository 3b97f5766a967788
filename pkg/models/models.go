package models

import (
	"math"
	"time"

	"github.com/kacperjurak/goarraycore"
)

// Work item kinds accepted by the batch endpoint and the worker pool.
const (
	KindLinear   = "linear"
	KindPlanar   = "planar"
	KindEnvelope = "envelope"
)

// Plot types.
const (
	PlotCartesian  = "cartesian"
	PlotPolar      = "polar"
	PlotPatternCut = "pattern_cut"
	PlotManifold   = "manifold"
)

// LinearRequest describes a linear array analysis. ElementSpacing is either
// a single spacing in wavelengths or a list of spacings between neighbours.
type LinearRequest struct {
	NumElem          int         `json:"num_elem" mapstructure:"num_elem"`
	ElementSpacing   interface{} `json:"element_spacing" mapstructure:"element_spacing"`
	ElementPositions []float64   `json:"element_positions,omitempty" mapstructure:"element_positions"`
	ScanAngle        float64     `json:"scan_angle" mapstructure:"scan_angle"`
	ElementPattern   *bool       `json:"element_pattern,omitempty" mapstructure:"element_pattern"`
	Window           string      `json:"window,omitempty" mapstructure:"window"`
	SLL              float64     `json:"SLL,omitempty" mapstructure:"SLL"`
	ElementGain      float64     `json:"element_gain,omitempty" mapstructure:"element_gain"`
	Theta            []float64   `json:"theta,omitempty" mapstructure:"theta"`
	Annotate         bool        `json:"annotate,omitempty" mapstructure:"annotate"`
	PlotType         string      `json:"plot_type,omitempty" mapstructure:"plot_type"`
	ShowManifold     bool        `json:"show_manifold,omitempty" mapstructure:"show_manifold"`
	FitMethod        string      `json:"fit_method,omitempty" mapstructure:"fit_method"`
}

// PlanarRequest describes a planar array analysis. NumElem and
// ElementSpacing are [rows, cols] for rect and tri; NumElem and Radius are
// per-ring for circ; X and Y carry coordinates for other.
type PlanarRequest struct {
	ArrayType      string    `json:"array_type" mapstructure:"array_type"`
	NumElem        []int     `json:"num_elem,omitempty" mapstructure:"num_elem"`
	ElementSpacing []float64 `json:"element_spacing,omitempty" mapstructure:"element_spacing"`
	Radius         []float64 `json:"radius,omitempty" mapstructure:"radius"`
	X              []float64 `json:"x,omitempty" mapstructure:"x"`
	Y              []float64 `json:"y,omitempty" mapstructure:"y"`
	ScanAngle      []float64 `json:"scan_angle,omitempty" mapstructure:"scan_angle"`
	ElementPattern *bool     `json:"element_pattern,omitempty" mapstructure:"element_pattern"`
	Window         string    `json:"window,omitempty" mapstructure:"window"`
	SLL            float64   `json:"SLL,omitempty" mapstructure:"SLL"`
	PlotType       string    `json:"plot_type,omitempty" mapstructure:"plot_type"`
	CutAngle       *float64  `json:"cut_angle,omitempty" mapstructure:"cut_angle"`
	Theta          []float64 `json:"theta,omitempty" mapstructure:"theta"`
	Phi            []float64 `json:"phi,omitempty" mapstructure:"phi"`
}

// EnvelopeRequest steers a linear array over [ScanFrom, ScanTo].
type EnvelopeRequest struct {
	LinearRequest   `mapstructure:",squash"`
	ScanFrom        float64 `json:"scan_from" mapstructure:"scan_from"`
	ScanTo          float64 `json:"scan_to" mapstructure:"scan_to"`
	ScanStep        float64 `json:"scan_step" mapstructure:"scan_step"`
	IncludePatterns bool    `json:"include_patterns,omitempty" mapstructure:"include_patterns"`
}

// Annotation is a text label placed on a pattern plot.
type Annotation struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Text      string  `json:"text"`
	ShowArrow bool    `json:"showarrow"`
	Color     string  `json:"color"`
}

// ElementReport is the excitation of one element in display units.
type ElementReport struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	AmplitudeDB float64 `json:"amplitude_db"`
	PhaseDeg    float64 `json:"phase_deg"`
}

// FloorDB is the lowest level reported for gains and amplitudes.
const FloorDB = -100

// ElementReports converts element weights to dB and degrees. Amplitudes are
// floored at FloorDB and phases wrapped to [-180, 180].
func ElementReports(ex []goarraycore.ElementExcitation) []ElementReport {
	out := make([]ElementReport, len(ex))
	for i, e := range ex {
		out[i] = ElementReport{
			X:           e.X,
			Y:           e.Y,
			AmplitudeDB: math.Max(20*math.Log10(math.Abs(e.Amplitude)), FloorDB),
			PhaseDeg:    math.Remainder(e.Phase*180/math.Pi, 360),
		}
	}
	return out
}

// Floor copies g with every value below FloorDB (including -Inf and NaN)
// raised to FloorDB.
func Floor(g []float64) []float64 {
	out := make([]float64, len(g))
	for i, v := range g {
		if !(v >= FloorDB) {
			v = FloorDB
		}
		out[i] = v
	}
	return out
}

// LinearResponse is the result of a linear array analysis.
type LinearResponse struct {
	Theta       []float64            `json:"theta"`
	Pattern     []float64            `json:"pattern"`
	Manifold    []float64            `json:"manifold"`
	Gain        float64              `json:"gain"`
	PeakAngle   float64              `json:"peak_angle"`
	SLL         float64              `json:"sll"`
	HPBW        float64              `json:"hpbw"`
	Annotations []Annotation         `json:"annotations"`
	YMin        float64              `json:"ymin"`
	YMax        float64              `json:"ymax"`
	Excitation  []ElementReport      `json:"excitation,omitempty"`
	BeamFit     *goarraycore.BeamFit `json:"beam_fit,omitempty"`
	Plot        string               `json:"plot,omitempty"`
}

// PlanarResponse is the result of a planar array analysis.
type PlanarResponse struct {
	ArrayType  string          `json:"array_type"`
	Theta      []float64       `json:"theta,omitempty"`
	Pattern    []float64       `json:"pattern,omitempty"`
	ManifoldX  []float64       `json:"manifold_x"`
	ManifoldY  []float64       `json:"manifold_y"`
	Gain       float64         `json:"gain"`
	PeakAngle  float64         `json:"peak_angle"`
	SLL        float64         `json:"sll"`
	HPBW       float64         `json:"hpbw"`
	CutAngle   float64         `json:"cut_angle"`
	YMin       float64         `json:"ymin"`
	YMax       float64         `json:"ymax"`
	Excitation []ElementReport `json:"excitation,omitempty"`
	Plot       string          `json:"plot,omitempty"`
}

// EnvelopeResponse is the result of a scan envelope analysis.
type EnvelopeResponse struct {
	Theta      []float64   `json:"theta"`
	ScanAngles []float64   `json:"scan_angles"`
	Envelope   []float64   `json:"envelope"`
	Patterns   [][]float64 `json:"patterns,omitempty"`
	YMin       float64     `json:"ymin"`
	YMax       float64     `json:"ymax"`
	Plot       string      `json:"plot,omitempty"`
}

// BatchItem is one analysis request inside a batch. Params is decoded into
// the request type named by Kind.
type BatchItem struct {
	Kind      string                 `json:"kind"`
	Iteration int                    `json:"iteration"`
	Params    map[string]interface{} `json:"params"`
}

// ArrayBatch represents a batch of array analyses
type ArrayBatch struct {
	BatchID   string      `json:"batch_id"`
	Timestamp time.Time   `json:"timestamp"`
	Items     []BatchItem `json:"items"`
}

// Analysis is the outcome of one work item: the response returned to the
// caller and the summary forwarded to the webhook.
type Analysis struct {
	Response   interface{}
	Parameters goarraycore.PatternParameters
	Theta      []float64
	Pattern    []float64
	Elements   []ElementReport
}

// WorkItem represents a single analysis task
type WorkItem struct {
	ID        int
	RequestID string
	BatchID   string
	Iteration int
	Kind      string
	Request   interface{}
	StartTime time.Time
	// Reply receives the result when set; otherwise it goes to the pool's
	// shared result queue.
	Reply chan<- WorkResult
}

// WorkResult contains the result of an analysis task
type WorkResult struct {
	ID             int
	RequestID      string
	BatchID        string
	Iteration      int
	Kind           string
	Analysis       Analysis
	ProcessingTime time.Duration
	Success        bool
	Error          string
}

// WebhookItem represents a webhook task
type WebhookItem struct {
	RequestID  string
	BatchID    string
	Kind       string
	Iteration  int
	Parameters goarraycore.PatternParameters
	Theta      []float64
	Pattern    []float64
	Elements   []ElementReport
	Error      string
}

// WebhookResponse represents the webhook payload structure
type WebhookResponse struct {
	ID        string          `json:"id"`
	BatchID   string          `json:"batch_id,omitempty"`
	Time      string          `json:"time"`
	Kind      string          `json:"kind"`
	Iteration int             `json:"iteration"`
	Gain      float64         `json:"gain"`
	PeakAngle float64         `json:"peak_angle"`
	SLL       float64         `json:"sll"`
	HPBW      float64         `json:"hpbw"`
	Theta     []float64       `json:"theta"`
	Pattern   []float64       `json:"pattern"`
	Elements  []ElementReport `json:"elements"`
	Error     string          `json:"error,omitempty"`
}

// ItemTiming tracks performance metrics for individual batch items
type ItemTiming struct {
	Iteration      int           `json:"iteration"`
	Kind           string        `json:"kind"`
	ProcessingTime time.Duration `json:"processing_time_ms"`
	Gain           float64       `json:"gain"`
	Success        bool          `json:"success"`
}

// BufferSet contains reusable buffers to reduce allocations
type BufferSet struct {
	Pattern []float64
}
