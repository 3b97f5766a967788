package plotting

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// DynamicRange is the dB span shown below the top of the gain axis.
const DynamicRange = 40

// Default image size.
const (
	Width  = 6 * vg.Inch
	Height = 4 * vg.Inch
)

// ringStep is the dB spacing of the polar grid circles.
const ringStep = 10

// Series is one gain curve in dBi over theta in degrees.
type Series struct {
	Name  string
	Theta []float64
	Gain  []float64
}

// Options controls the gain axis and labels of a pattern plot.
type Options struct {
	Title string
	YMin  float64
	YMax  float64
}

// AxisLimits returns the gain axis range for a curve: the next multiple of
// 5 above its maximum, and DynamicRange below that.
func AxisLimits(gain []float64) (ymin, ymax float64) {
	if len(gain) == 0 {
		return -DynamicRange, 0
	}
	top := floats.Max(gain)
	if math.IsInf(top, 0) || math.IsNaN(top) {
		return -DynamicRange, 0
	}
	ymax = 5 * float64(int(top/5)+1)
	return ymax - DynamicRange, ymax
}

func (o Options) limits(series []Series) (ymin, ymax float64) {
	if o.YMax > o.YMin {
		return o.YMin, o.YMax
	}
	var all []float64
	for _, s := range series {
		all = append(all, s.Gain...)
	}
	return AxisLimits(all)
}

func checkSeries(series []Series) error {
	if len(series) == 0 {
		return errors.New("no series to plot")
	}
	for _, s := range series {
		if len(s.Theta) != len(s.Gain) {
			return fmt.Errorf("series %q: %d angles, %d gains", s.Name, len(s.Theta), len(s.Gain))
		}
		if len(s.Theta) == 0 {
			return fmt.Errorf("series %q is empty", s.Name)
		}
	}
	return nil
}

// clamp keeps v inside [lo, hi]; NaN maps to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// lines adds the series as line plotters, alternating legend names and
// points the way plotutil expects them.
func lines(p *plot.Plot, series []Series, xy func(theta, gain float64) (float64, float64)) error {
	args := make([]interface{}, 0, 2*len(series))
	for _, s := range series {
		pts := make(plotter.XYs, len(s.Theta))
		for i := range s.Theta {
			pts[i].X, pts[i].Y = xy(s.Theta[i], s.Gain[i])
		}
		if s.Name != "" {
			args = append(args, s.Name)
		}
		args = append(args, pts)
	}
	return plotutil.AddLines(p, args...)
}

// Cartesian plots gain against theta.
func Cartesian(opts Options, series ...Series) (string, error) {
	if err := checkSeries(series); err != nil {
		return "", err
	}
	ymin, ymax := opts.limits(series)

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "Theta (deg)"
	p.Y.Label.Text = "Gain (dBi)"
	p.Add(plotter.NewGrid())

	err := lines(p, series, func(theta, gain float64) (float64, float64) {
		return theta, clamp(gain, ymin, ymax)
	})
	if err != nil {
		return "", fmt.Errorf("plotting failed: %w", err)
	}

	p.X.Min, p.X.Max = series[0].Theta[0], series[0].Theta[len(series[0].Theta)-1]
	p.Y.Min, p.Y.Max = ymin, ymax
	return Encode(p, Width, Height)
}

// Polar plots gain as radius above the bottom of the gain axis, with
// broadside pointing up and dashed circles every 10 dB.
func Polar(opts Options, series ...Series) (string, error) {
	if err := checkSeries(series); err != nil {
		return "", err
	}
	ymin, ymax := opts.limits(series)
	rmax := ymax - ymin

	p := plot.New()
	p.Title.Text = opts.Title
	p.HideAxes()

	if err := rings(p, ymin, ymax); err != nil {
		return "", err
	}
	err := lines(p, series, func(theta, gain float64) (float64, float64) {
		r := clamp(gain, ymin, ymax) - ymin
		rad := theta * math.Pi / 180
		return r * math.Sin(rad), r * math.Cos(rad)
	})
	if err != nil {
		return "", fmt.Errorf("plotting failed: %w", err)
	}

	p.X.Min, p.X.Max = -rmax, rmax
	p.Y.Min, p.Y.Max = -rmax, rmax
	return Encode(p, Height, Height)
}

// rings draws the polar grid and labels each circle with its level.
func rings(p *plot.Plot, ymin, ymax float64) error {
	const samples = 181
	grey := color.Gray{Y: 192}

	var labels plotter.XYLabels
	for level := ymax; level > ymin; level -= ringStep {
		r := level - ymin
		circle := make(plotter.XYs, samples)
		for i := range circle {
			a := 2 * math.Pi * float64(i) / float64(samples-1)
			circle[i].X, circle[i].Y = r*math.Sin(a), r*math.Cos(a)
		}
		l, err := plotter.NewLine(circle)
		if err != nil {
			return err
		}
		l.Color = grey
		l.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
		p.Add(l)

		labels.XYs = append(labels.XYs, plotter.XY{X: 0, Y: r})
		labels.Labels = append(labels.Labels, fmt.Sprintf("%g dB", level))
	}

	lbl, err := plotter.NewLabels(labels)
	if err != nil {
		return err
	}
	p.Add(lbl)
	return nil
}

// Manifold scatters the element positions in wavelengths.
func Manifold(title string, x, y []float64) (string, error) {
	if len(x) == 0 || len(x) != len(y) {
		return "", fmt.Errorf("manifold needs matching coordinates, got %d and %d", len(x), len(y))
	}
	pts := make(plotter.XYs, len(x))
	for i := range x {
		pts[i].X, pts[i].Y = x[i], y[i]
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x (wavelengths)"
	p.Y.Label.Text = "y (wavelengths)"
	p.Add(plotter.NewGrid())

	s, err := plotter.NewScatter(pts)
	if err != nil {
		return "", fmt.Errorf("plotting failed: %w", err)
	}
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	s.GlyphStyle.Color = plotutil.Color(0)
	s.GlyphStyle.Radius = vg.Points(3)
	p.Add(s)

	// Equal extents on both axes keep the layout undistorted.
	half := 0.5
	for i := range x {
		half = math.Max(half, math.Max(math.Abs(x[i]), math.Abs(y[i]))+0.25)
	}
	p.X.Min, p.X.Max = -half, half
	p.Y.Min, p.Y.Max = -half, half
	return Encode(p, Height, Height)
}

// Encode renders p as a PNG and returns it base64 encoded.
func Encode(p *plot.Plot, w, h vg.Length) (string, error) {
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return "", fmt.Errorf("failed to render plot: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("failed to render plot: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
