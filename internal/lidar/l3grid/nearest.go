package l3grid

import (
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/banshee-data/hillshader/internal/lidar/l1points"
)

// sample is a planimetric point carrying its elevation. Only X and Y take
// part in the tree geometry.
type sample struct {
	x, y, z float64
}

func (s sample) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(sample)
	if d == 0 {
		return s.x - q.x
	}
	return s.y - q.y
}

func (s sample) Dims() int { return 2 }

// Distance returns the squared planimetric distance.
func (s sample) Distance(c kdtree.Comparable) float64 {
	q := c.(sample)
	dx, dy := s.x-q.x, s.y-q.y
	return dx*dx + dy*dy
}

type samples []sample

func (s samples) Index(i int) kdtree.Comparable { return s[i] }
func (s samples) Len() int                      { return len(s) }
func (s samples) Pivot(d kdtree.Dim) int        { return plane{samples: s, Dim: d}.Pivot() }
func (s samples) Slice(start, end int) kdtree.Interface {
	return s[start:end]
}

// plane orders samples along one dimension for median partitioning.
type plane struct {
	kdtree.Dim
	samples
}

func (p plane) Less(i, j int) bool {
	if p.Dim == 0 {
		return p.samples[i].x < p.samples[j].x
	}
	return p.samples[i].y < p.samples[j].y
}
func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.samples = p.samples[start:end]
	return p
}
func (p plane) Swap(i, j int) {
	p.samples[i], p.samples[j] = p.samples[j], p.samples[i]
}

// fillNearest assigns every node the elevation of its closest sample.
func fillNearest(points []l1points.Point, e Extent, g *ElevationGrid) {
	s := make(samples, len(points))
	for i, p := range points {
		s[i] = sample{x: p.X, y: p.Y, z: p.Z}
	}
	tree := kdtree.New(s, false)

	for r := 0; r < e.Rows; r++ {
		for c := 0; c < e.Cols; c++ {
			x, y := e.Node(r, c)
			got, _ := tree.Nearest(sample{x: x, y: y})
			g.Set(r, c, got.(sample).z)
		}
	}
}
