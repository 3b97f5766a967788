package goarraycore

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Spacing describes how the elements of a linear array are laid out along
// the array axis. It is either UniformSpacing or ExplicitSpacing.
type Spacing interface {
	positions(n int) ([]float64, error)
}

// UniformSpacing places every element the same distance (in wavelengths)
// from its neighbour.
type UniformSpacing float64

func (d UniformSpacing) positions(n int) ([]float64, error) {
	if n <= 0 {
		return nil, configErr("num_elem", "must be > 0, got %d", n)
	}
	s := float64(d)
	if !(s > 0) || math.IsInf(s, 0) {
		return nil, configErr("element_spacing", "must be a finite value > 0, got %g", s)
	}
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i) * s
	}
	return x, nil
}

// ExplicitSpacing lists the gap between each pair of adjacent elements.
// An array built from k gaps has k+1 elements.
type ExplicitSpacing []float64

func (s ExplicitSpacing) positions(int) ([]float64, error) {
	for i, d := range s {
		if !(d > 0) || math.IsInf(d, 0) {
			return nil, configErr("element_spacing", "gap %d must be a finite value > 0, got %g", i, d)
		}
	}
	x := make([]float64, len(s)+1)
	floats.CumSum(x[1:], s)
	return x, nil
}

// LinearPositions returns the zero-mean element positions of a linear
// array. n is ignored for ExplicitSpacing.
func LinearPositions(n int, s Spacing) ([]float64, error) {
	if s == nil {
		return nil, configErr("element_spacing", "missing")
	}
	x, err := s.positions(n)
	if err != nil {
		return nil, err
	}
	center(x)
	return x, nil
}

// spacingFromPositions converts arbitrary element positions into the gaps
// between the sorted positions.
func spacingFromPositions(x []float64) (ExplicitSpacing, error) {
	if len(x) == 0 {
		return nil, configErr("element_positions", "at least one position is required")
	}
	sorted := make([]float64, len(x))
	copy(sorted, x)
	sort.Float64s(sorted)
	gaps := make(ExplicitSpacing, len(sorted)-1)
	for i := range gaps {
		gaps[i] = sorted[i+1] - sorted[i]
	}
	return gaps, nil
}

func center(x []float64) {
	if len(x) == 0 {
		return
	}
	floats.AddConst(-stat.Mean(x, nil), x)
}

// ShapeKind names a planar array layout.
type ShapeKind string

const (
	ShapeRect  ShapeKind = "rect"
	ShapeTri   ShapeKind = "tri"
	ShapeCirc  ShapeKind = "circ"
	ShapeOther ShapeKind = "other"
)

// Shape is a planar array layout descriptor.
//
// For rect and tri, Counts is [rows, cols] and Spacings is
// [row spacing, column spacing]. For circ, Counts holds the number of
// elements on each ring and Spacings the ring radii. For other, X and Y hold
// the element coordinates.
type Shape struct {
	Kind     ShapeKind
	Counts   []int
	Spacings []float64
	X, Y     []float64
}

func RectShape(rows, cols int, rowSpacing, colSpacing float64) Shape {
	return Shape{Kind: ShapeRect, Counts: []int{rows, cols}, Spacings: []float64{rowSpacing, colSpacing}}
}

// TriShape is a rectangular grid in which every other row is shifted by
// half a column spacing.
func TriShape(rows, cols int, rowSpacing, colSpacing float64) Shape {
	return Shape{Kind: ShapeTri, Counts: []int{rows, cols}, Spacings: []float64{rowSpacing, colSpacing}}
}

func CircShape(counts []int, radii []float64) Shape {
	return Shape{Kind: ShapeCirc, Counts: counts, Spacings: radii}
}

func CustomShape(x, y []float64) Shape {
	return Shape{Kind: ShapeOther, X: x, Y: y}
}

// Geometry holds zero-mean planar element coordinates in wavelengths.
type Geometry struct {
	Kind ShapeKind
	X, Y []float64

	// Grid layouts only.
	Rows, Cols       int
	RowPos, ColPos   []float64
	RowIdx, ColIdx   []int
	RowStep, ColStep float64

	// Ring layouts only.
	Rings []int
	Radii []float64
}

// Len returns the number of elements.
func (g *Geometry) Len() int { return len(g.X) }

// Aperture returns the diagonal of the bounding box of the element
// positions.
func (g *Geometry) Aperture() float64 {
	return math.Hypot(floats.Max(g.X)-floats.Min(g.X), floats.Max(g.Y)-floats.Min(g.Y))
}

// Build validates the shape and places its elements.
func (s Shape) Build() (*Geometry, error) {
	switch s.Kind {
	case ShapeRect, ShapeTri:
		return s.buildGrid()
	case ShapeCirc:
		return s.buildRings()
	case ShapeOther:
		return s.buildCustom()
	default:
		return nil, configErr("array_shape", "%q is not a valid planar array shape", string(s.Kind))
	}
}

func (s Shape) buildGrid() (*Geometry, error) {
	if len(s.Counts) != 2 {
		return nil, configErr("num_elem", "%s arrays need [rows, cols], got %d values", s.Kind, len(s.Counts))
	}
	if len(s.Spacings) != 2 {
		return nil, configErr("element_spacing", "%s arrays need [row, col] spacing, got %d values", s.Kind, len(s.Spacings))
	}
	rows, cols := s.Counts[0], s.Counts[1]
	if rows <= 0 || cols <= 0 {
		return nil, configErr("num_elem", "array length can not be zero, got %dx%d", rows, cols)
	}
	dr, dc := s.Spacings[0], s.Spacings[1]
	for _, d := range []float64{dr, dc} {
		if !(d > 0) || math.IsInf(d, 0) {
			return nil, configErr("element_spacing", "must be a finite value > 0, got %g", d)
		}
	}

	g := &Geometry{
		Kind:    s.Kind,
		Rows:    rows,
		Cols:    cols,
		RowPos:  make([]float64, rows),
		ColPos:  make([]float64, cols),
		RowStep: dr,
		ColStep: dc,
	}
	for r := range g.RowPos {
		g.RowPos[r] = float64(r) * dr
	}
	for c := range g.ColPos {
		g.ColPos[c] = float64(c) * dc
	}

	n := rows * cols
	g.X = make([]float64, 0, n)
	g.Y = make([]float64, 0, n)
	g.RowIdx = make([]int, 0, n)
	g.ColIdx = make([]int, 0, n)
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			x := g.ColPos[c]
			if s.Kind == ShapeTri && r%2 == 0 {
				x += 0.5 * dc
			}
			g.X = append(g.X, x)
			g.Y = append(g.Y, g.RowPos[r])
			g.RowIdx = append(g.RowIdx, r)
			g.ColIdx = append(g.ColIdx, c)
		}
	}
	center(g.X)
	center(g.Y)
	center(g.RowPos)
	center(g.ColPos)
	return g, nil
}

func (s Shape) buildRings() (*Geometry, error) {
	if len(s.Counts) == 0 {
		return nil, configErr("num_elem", "circular arrays need at least one ring")
	}
	if len(s.Counts) != len(s.Spacings) {
		return nil, configErr("radius", "got %d radii for %d rings", len(s.Spacings), len(s.Counts))
	}
	g := &Geometry{Kind: ShapeCirc, Rings: append([]int(nil), s.Counts...), Radii: cloneFloats(s.Spacings)}
	for i, n := range s.Counts {
		if n <= 0 {
			return nil, configErr("num_elem", "ring %d must have > 0 elements, got %d", i, n)
		}
		r := s.Spacings[i]
		if r < 0 || math.IsNaN(r) || math.IsInf(r, 0) {
			return nil, configErr("radius", "ring %d radius must be a finite value >= 0, got %g", i, r)
		}
		for k := 0; k < n; k++ {
			ang := 2 * math.Pi * float64(k) / float64(n)
			g.X = append(g.X, r*math.Cos(ang))
			g.Y = append(g.Y, r*math.Sin(ang))
		}
	}
	center(g.X)
	center(g.Y)
	return g, nil
}

func (s Shape) buildCustom() (*Geometry, error) {
	if len(s.X) == 0 {
		return nil, configErr("x", "at least one element is required")
	}
	if len(s.X) != len(s.Y) {
		return nil, configErr("y", "got %d y coordinates for %d x coordinates", len(s.Y), len(s.X))
	}
	g := &Geometry{Kind: ShapeOther, X: make([]float64, len(s.X)), Y: make([]float64, len(s.Y))}
	copy(g.X, s.X)
	copy(g.Y, s.Y)
	for i := range g.X {
		if !finite(g.X[i]) || !finite(g.Y[i]) {
			return nil, configErr("x", "element %d has a non-finite coordinate", i)
		}
	}
	center(g.X)
	center(g.Y)
	return g, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
