package l3grid

import (
	"fmt"
	"math"

	"github.com/banshee-data/hillshader/internal/lidar/l1points"
)

// Options control Interpolate.
type Options struct {
	// PixelSize is the node spacing in the cloud's linear units. Required.
	PixelSize float64
	// Method defaults to MethodNearest, which never leaves a node undefined.
	Method Method
	// NoDataPolicy defaults to NoDataError.
	NoDataPolicy NoDataPolicy
	// NoData is the fill sentinel; nil means DefaultNoData.
	NoData *float64
}

// baryTolerance admits nodes lying on a shared edge despite rounding.
const baryTolerance = 1e-9

// Interpolate builds a north-up elevation grid from the cloud's points.
func Interpolate(cloud *l1points.PointCloud, opts Options) (*ElevationGrid, error) {
	method := opts.Method
	if method == "" {
		method = MethodNearest
	}
	if _, err := ParseMethod(string(method)); err != nil {
		return nil, err
	}
	policy, err := ParseNoDataPolicy(string(opts.NoDataPolicy))
	if err != nil {
		return nil, err
	}
	nodata := DefaultNoData
	if opts.NoData != nil {
		nodata = *opts.NoData
	}

	ext, err := NewExtent(cloud, opts.PixelSize)
	if err != nil {
		return nil, err
	}
	g := newGrid(ext, method, nodata)

	if method == MethodNearest {
		fillNearest(cloud.Points, ext, g)
		return g, nil
	}

	pts := make([]point2, len(cloud.Points))
	for i, p := range cloud.Points {
		pts[i] = point2{x: p.X, y: p.Y, z: p.Z}
	}
	m := delaunay(pts)
	if len(m.xs) < 3 {
		return nil, &InterpolationDomainError{
			Method: method,
			Total:  len(g.Data),
			Reason: fmt.Sprintf("need at least 3 distinct points, have %d", len(m.xs)),
		}
	}
	if len(m.tris) == 0 {
		return nil, &InterpolationDomainError{
			Method: method,
			Total:  len(g.Data),
			Reason: "points are collinear",
		}
	}

	var patches []cubicPatch
	if method == MethodCubic {
		patches = buildPatches(m)
	}
	for ti, tr := range m.tris {
		rasterizeTriangle(m, tr, ext, g, func(u, v, w float64) float64 {
			if patches != nil {
				return patches[ti].eval(u, v, w)
			}
			return u*m.zs[tr[0]] + v*m.zs[tr[1]] + w*m.zs[tr[2]]
		})
	}

	for i, v := range g.Data {
		if math.IsNaN(v) {
			g.Undefined++
			g.Data[i] = nodata
		}
	}
	if g.Undefined > 0 && policy == NoDataError {
		return nil, &InterpolationDomainError{
			Method:    method,
			Undefined: g.Undefined,
			Total:     len(g.Data),
		}
	}
	return g, nil
}

// rasterizeTriangle evaluates f at every still-undefined node inside tr.
// f receives the node's barycentric coordinates.
func rasterizeTriangle(m *mesh, tr [3]int, e Extent, g *ElevationGrid, f func(u, v, w float64) float64) {
	x1, y1 := m.xs[tr[0]], m.ys[tr[0]]
	x2, y2 := m.xs[tr[1]], m.ys[tr[1]]
	x3, y3 := m.xs[tr[2]], m.ys[tr[2]]

	det := (y2-y3)*(x1-x3) + (x3-x2)*(y1-y3)
	if det == 0 {
		return
	}

	c0, c1 := e.colRange(math.Min(x1, math.Min(x2, x3)), math.Max(x1, math.Max(x2, x3)))
	r0, r1 := e.rowRange(math.Min(y1, math.Min(y2, y3)), math.Max(y1, math.Max(y2, y3)))
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			if !math.IsNaN(g.At(r, c)) {
				continue
			}
			x, y := e.Node(r, c)
			u := ((y2-y3)*(x-x3) + (x3-x2)*(y-y3)) / det
			v := ((y3-y1)*(x-x3) + (x1-x3)*(y-y3)) / det
			w := 1 - u - v
			if u < -baryTolerance || v < -baryTolerance || w < -baryTolerance {
				continue
			}
			g.Set(r, c, f(u, v, w))
		}
	}
}
