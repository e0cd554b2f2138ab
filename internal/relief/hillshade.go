package relief

import (
	"math"
)

// Surface is a row-major elevation lattice with row 0 to the north.
type Surface interface {
	Dims() (rows, cols int)
	At(r, c int) float64
}

// Exposure is one directional light source.
type Exposure struct {
	Azimuth  float64 `json:"azimuth" yaml:"azimuth"`   // degrees clockwise from north, [0, 360)
	Altitude float64 `json:"altitude" yaml:"altitude"` // degrees above the horizon, [0, 90]
	Opacity  float64 `json:"opacity" yaml:"opacity"`   // [0, 1]
}

// Shade is an 8-bit brightness array with the shape of its source surface.
type Shade struct {
	Rows, Cols int
	Data       []uint8
}

// NewShade allocates a zeroed rows x cols shade.
func NewShade(rows, cols int) *Shade {
	return &Shade{Rows: rows, Cols: cols, Data: make([]uint8, rows*cols)}
}

// Dims returns the shade's shape.
func (s *Shade) Dims() (rows, cols int) { return s.Rows, s.Cols }

// At returns the brightness at row r, column c.
func (s *Shade) At(r, c int) uint8 { return s.Data[r*s.Cols+c] }

// Hillshade computes Lambertian brightness for a light at the given azimuth
// and altitude (degrees). Gradients are taken in index space, not scaled by
// pixel size, and no-data cells are shaded like any other value.
func Hillshade(grid Surface, azimuth, altitude float64) *Shade {
	rows, cols := grid.Dims()
	out := NewShade(rows, cols)
	if rows == 0 || cols == 0 {
		return out
	}

	az := azimuth * math.Pi / 180
	alt := altitude * math.Pi / 180
	sinAlt, cosAlt := math.Sin(alt), math.Cos(alt)

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			gx := rowGradient(grid, r, c, rows)
			gy := colGradient(grid, r, c, cols)

			slope := math.Pi/2 - math.Atan(math.Sqrt(gx*gx+gy*gy))
			aspect := math.Atan2(-gx, gy)
			shaded := sinAlt*math.Sin(slope) + cosAlt*math.Cos(slope)*math.Cos(az-aspect)

			out.Data[r*cols+c] = toByte(255 * (shaded + 1) / 2)
		}
	}
	return out
}

// rowGradient is the derivative along axis 0: central differences inside,
// one-sided at the first and last row.
func rowGradient(g Surface, r, c, rows int) float64 {
	switch {
	case rows < 2:
		return 0
	case r == 0:
		return g.At(1, c) - g.At(0, c)
	case r == rows-1:
		return g.At(r, c) - g.At(r-1, c)
	default:
		return (g.At(r+1, c) - g.At(r-1, c)) / 2
	}
}

// colGradient is the derivative along axis 1.
func colGradient(g Surface, r, c, cols int) float64 {
	switch {
	case cols < 2:
		return 0
	case c == 0:
		return g.At(r, 1) - g.At(r, 0)
	case c == cols-1:
		return g.At(r, c) - g.At(r, c-1)
	default:
		return (g.At(r, c+1) - g.At(r, c-1)) / 2
	}
}

// toByte truncates toward zero and clamps into [0, 255]. NaN maps to 0.
func toByte(v float64) uint8 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}
