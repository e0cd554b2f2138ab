package l3grid

import (
	"fmt"
	"math"
)

// DefaultNoData is the sentinel written for undefined nodes under the fill
// policy and declared on persisted DEMs.
const DefaultNoData = -99999.0

// Method is a scattered-data interpolation policy.
type Method string

const (
	MethodNearest Method = "nearest"
	MethodLinear  Method = "linear"
	MethodCubic   Method = "cubic"
)

// ParseMethod validates an interpolation method name.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodNearest, MethodLinear, MethodCubic:
		return Method(s), nil
	}
	return "", fmt.Errorf("unknown interpolation method %q (want nearest, linear or cubic)", s)
}

// NoDataPolicy decides what happens to nodes outside the triangulated hull.
type NoDataPolicy string

const (
	// NoDataError fails interpolation when any node is undefined.
	NoDataError NoDataPolicy = "error"
	// NoDataFill writes the NoData sentinel into undefined nodes.
	NoDataFill NoDataPolicy = "fill"
)

// ParseNoDataPolicy validates a policy name. Empty means NoDataError.
func ParseNoDataPolicy(s string) (NoDataPolicy, error) {
	switch NoDataPolicy(s) {
	case "":
		return NoDataError, nil
	case NoDataError, NoDataFill:
		return NoDataPolicy(s), nil
	}
	return "", fmt.Errorf("unknown nodata policy %q (want error or fill)", s)
}

// ElevationGrid is a north-up, row-major lattice of elevation samples.
// OriginX/OriginY are the top-left pixel corner; node (r, c) is the centre
// of pixel (r, c).
type ElevationGrid struct {
	Rows, Cols int
	Data       []float64

	OriginX   float64
	OriginY   float64
	PixelSize float64

	Method    Method
	NoData    float64
	Undefined int
}

// Dims returns the grid shape.
func (g *ElevationGrid) Dims() (rows, cols int) { return g.Rows, g.Cols }

// At returns the value at row r, column c.
func (g *ElevationGrid) At(r, c int) float64 { return g.Data[r*g.Cols+c] }

// Set stores v at row r, column c.
func (g *ElevationGrid) Set(r, c int, v float64) { g.Data[r*g.Cols+c] = v }

func newGrid(e Extent, method Method, nodata float64) *ElevationGrid {
	data := make([]float64, e.Rows*e.Cols)
	for i := range data {
		data[i] = math.NaN()
	}
	return &ElevationGrid{
		Rows:      e.Rows,
		Cols:      e.Cols,
		Data:      data,
		OriginX:   e.MinX,
		OriginY:   e.MaxY,
		PixelSize: e.PixelSize,
		Method:    method,
		NoData:    nodata,
	}
}

// InterpolationDomainError reports nodes the chosen method could not
// define, or an input too degenerate to triangulate.
type InterpolationDomainError struct {
	Method    Method
	Undefined int
	Total     int
	Reason    string
}

func (e *InterpolationDomainError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s interpolation: %s", e.Method, e.Reason)
	}
	return fmt.Sprintf("%s interpolation left %d of %d nodes outside the point hull",
		e.Method, e.Undefined, e.Total)
}
