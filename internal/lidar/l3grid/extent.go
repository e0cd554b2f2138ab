package l3grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/hillshader/internal/lidar/l1points"
)

// ErrExtentTooSmall is returned when the point cloud's bounding box is not
// wider and taller than one pixel, so no inset node fits.
var ErrExtentTooSmall = errors.New("point extent smaller than one pixel")

// Extent is the node lattice derived from a point cloud's bounding box.
// Nodes are inset by half a pixel from every side so each one lies strictly
// inside the data extent.
type Extent struct {
	MinX, MinY float64
	MaxX, MaxY float64
	PixelSize  float64
	Rows, Cols int
}

// NewExtent computes the lattice for cloud at the given pixel size.
// Counts follow the half-open range convention: for width W the columns are
// minX+p/2, minX+3p/2, ... strictly below maxX-p/2, i.e. ceil((W-p)/p).
func NewExtent(cloud *l1points.PointCloud, pixelSize float64) (Extent, error) {
	if !(pixelSize > 0) || math.IsInf(pixelSize, 0) {
		return Extent{}, fmt.Errorf("pixel size must be positive and finite, got %v", pixelSize)
	}
	if cloud.Len() == 0 {
		source := ""
		if cloud != nil {
			source = cloud.Source
		}
		return Extent{}, &l1points.EmptyPointSetError{Source: source, Filter: "interpolation input"}
	}

	b := cloud.Bounds()
	e := Extent{
		MinX:      b.Min.X,
		MinY:      b.Min.Y,
		MaxX:      b.Max.X,
		MaxY:      b.Max.Y,
		PixelSize: pixelSize,
	}
	e.Cols = nodeCount(e.MaxX-e.MinX, pixelSize)
	e.Rows = nodeCount(e.MaxY-e.MinY, pixelSize)
	if e.Cols <= 0 || e.Rows <= 0 {
		return Extent{}, fmt.Errorf("%w: %.3f x %.3f at pixel size %v",
			ErrExtentTooSmall, e.MaxX-e.MinX, e.MaxY-e.MinY, pixelSize)
	}
	return e, nil
}

func nodeCount(span, p float64) int {
	n := math.Ceil((span - p) / p)
	if n <= 0 || math.IsNaN(n) {
		return 0
	}
	return int(n)
}

// Node returns the map coordinates of node (r, c). Row 0 is north.
func (e Extent) Node(r, c int) (x, y float64) {
	half := e.PixelSize / 2
	return e.MinX + half + float64(c)*e.PixelSize, e.MaxY - half - float64(r)*e.PixelSize
}

// colRange returns the inclusive column span whose node x lies in [lo, hi].
func (e Extent) colRange(lo, hi float64) (int, int) {
	x0 := e.MinX + e.PixelSize/2
	c0 := int(math.Ceil((lo - x0) / e.PixelSize))
	c1 := int(math.Floor((hi - x0) / e.PixelSize))
	return clampSpan(c0, c1, e.Cols)
}

// rowRange returns the inclusive row span whose node y lies in [lo, hi].
func (e Extent) rowRange(lo, hi float64) (int, int) {
	y0 := e.MaxY - e.PixelSize/2
	r0 := int(math.Ceil((y0 - hi) / e.PixelSize))
	r1 := int(math.Floor((y0 - lo) / e.PixelSize))
	return clampSpan(r0, r1, e.Rows)
}

func clampSpan(a, b, n int) (int, int) {
	if a < 0 {
		a = 0
	}
	if b > n-1 {
		b = n - 1
	}
	return a, b
}
