package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/kacperjurak/goarraycore/internal/processing"
	"github.com/kacperjurak/goarraycore/pkg/handlers"
	"github.com/kacperjurak/goarraycore/pkg/models"
)

// Scenario is a list of arrays to analyze, read from YAML.
type Scenario struct {
	Arrays []ArraySpec `yaml:"arrays"`
}

// ArraySpec names one array. Params uses the same keys as the HTTP API.
type ArraySpec struct {
	Name   string                 `yaml:"name"`
	Kind   string                 `yaml:"kind"`
	Params map[string]interface{} `yaml:"params"`
}

// Row is the summary of one analyzed array.
type Row struct {
	Name      string
	Kind      string
	Elements  int
	Gain      float64
	PeakAngle float64
	SLL       float64
	HPBW      float64
	Beam      string
	Err       error
}

// LoadScenario reads and parses a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if len(sc.Arrays) == 0 {
		return nil, fmt.Errorf("scenario %s lists no arrays", path)
	}
	for i := range sc.Arrays {
		if sc.Arrays[i].Name == "" {
			sc.Arrays[i].Name = fmt.Sprintf("%s-%d", sc.Arrays[i].Kind, i+1)
		}
	}
	return &sc, nil
}

// runner analyzes scenario arrays and optionally saves their plots.
type runner struct {
	processor *processing.ArrayProcessor
	theta     []float64
	imgPath   string
}

// Run analyzes every array in order. A failing array yields a row with Err
// set and does not stop the others.
func (r *runner) Run(ctx context.Context, sc *Scenario) []Row {
	rows := make([]Row, 0, len(sc.Arrays))
	for _, spec := range sc.Arrays {
		rows = append(rows, r.analyze(ctx, spec))
	}
	return rows
}

func (r *runner) analyze(ctx context.Context, spec ArraySpec) Row {
	row := Row{Name: spec.Name, Kind: spec.Kind}

	params := make(map[string]interface{}, len(spec.Params)+1)
	for k, v := range spec.Params {
		params[k] = v
	}
	if _, ok := params["theta"]; !ok && len(r.theta) > 0 {
		params["theta"] = r.theta
	}

	req, err := handlers.DecodeItem(models.BatchItem{Kind: spec.Kind, Params: params})
	if err != nil {
		row.Err = err
		return row
	}
	analysis, err := r.processor.Process(ctx, spec.Kind, req)
	if err != nil {
		row.Err = err
		return row
	}

	row.Elements = len(analysis.Elements)
	row.Gain = analysis.Parameters.Gain
	row.PeakAngle = analysis.Parameters.PeakAngle
	row.SLL = analysis.Parameters.SLL
	row.HPBW = analysis.Parameters.HPBW

	var plot string
	switch resp := analysis.Response.(type) {
	case *models.LinearResponse:
		plot = resp.Plot
		if fit := resp.BeamFit; fit != nil {
			row.Beam = fmt.Sprintf("%.2f° (%s)", fit.Beamwidth, fit.Status)
		}
	case *models.PlanarResponse:
		plot = resp.Plot
	case *models.EnvelopeResponse:
		plot = resp.Plot
	}

	if r.imgPath != "" && plot != "" {
		if err := savePlot(filepath.Join(r.imgPath, spec.Name+".png"), plot); err != nil {
			row.Err = err
		}
	}
	return row
}

func savePlot(path, encoded string) error {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode plot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}

var (
	colorPrimary = lipgloss.Color("#00BFFF")
	colorDanger  = lipgloss.Color("#FF6B6B")
	colorMuted   = lipgloss.Color("#6C757D")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	errorStyle  = cellStyle.Foreground(colorDanger)
)

// RenderTable formats the rows as a bordered terminal table.
func RenderTable(rows []Row) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorMuted)).
		Headers("Array", "Kind", "Elements", "Gain (dB)", "Peak (°)", "SLL (dB)", "HPBW (°)", "Beam fit")

	for _, r := range rows {
		if r.Err != nil {
			t.Row(r.Name, r.Kind, "-", "error: "+r.Err.Error(), "", "", "", "")
			continue
		}
		t.Row(
			r.Name,
			r.Kind,
			strconv.Itoa(r.Elements),
			strconv.FormatFloat(r.Gain, 'f', 2, 64),
			strconv.FormatFloat(r.PeakAngle, 'f', 1, 64),
			strconv.FormatFloat(r.SLL, 'f', 2, 64),
			strconv.FormatFloat(r.HPBW, 'f', 1, 64),
			r.Beam,
		)
	}

	t.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return headerStyle
		case row >= 0 && row < len(rows) && rows[row].Err != nil:
			return errorStyle
		}
		return cellStyle
	})
	return t.Render()
}
