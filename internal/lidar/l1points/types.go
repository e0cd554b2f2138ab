package l1points

import (
	"fmt"

	"github.com/ctessum/geom"
)

// ASPRS standard classification codes used by the pipeline.
const (
	ClassCreated        uint8 = 0
	ClassUnclassified   uint8 = 1
	ClassGround         uint8 = 2
	ClassLowVegetation  uint8 = 3
	ClassMedVegetation  uint8 = 4
	ClassHighVegetation uint8 = 5
	ClassBuilding       uint8 = 6
	ClassLowNoise       uint8 = 7
	ClassModelKeyPoint  uint8 = 8
	ClassWater          uint8 = 9
	ClassOverlap        uint8 = 12
)

// Point is a single scaled LiDAR return. X, Y and Z share linear units.
type Point struct {
	X, Y, Z         float64
	Intensity       uint16
	ReturnNumber    uint8
	NumberOfReturns uint8
	Classification  uint8
}

// PointCloud is an ordered set of points read from one source file.
// Stages never mutate a PointCloud; filters build new ones.
type PointCloud struct {
	Source string
	Points []Point
}

// Len returns the number of points.
func (c *PointCloud) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Points)
}

// Bounds returns the planimetric bounding box of the cloud. The result is
// empty (Min > Max) for a cloud with no points.
func (c *PointCloud) Bounds() *geom.Bounds {
	if c.Len() == 0 {
		return geom.NewBounds()
	}
	mp := make(geom.MultiPoint, len(c.Points))
	for i, p := range c.Points {
		mp[i] = geom.Point{X: p.X, Y: p.Y}
	}
	return mp.Bounds()
}

// Area returns the bounding-box area in squared linear units.
func (c *PointCloud) Area() float64 {
	if c.Len() == 0 {
		return 0
	}
	b := c.Bounds()
	return (b.Max.X - b.Min.X) * (b.Max.Y - b.Min.Y)
}

// Derive builds a new cloud with the same source from the given points.
func (c *PointCloud) Derive(points []Point) *PointCloud {
	return &PointCloud{Source: c.Source, Points: points}
}

// EmptyPointSetError reports that no points survived a filter, so no
// elevation surface can be built.
type EmptyPointSetError struct {
	Source string
	Filter string
}

func (e *EmptyPointSetError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("no points match filter %s", e.Filter)
	}
	return fmt.Sprintf("%s: no points match filter %s", e.Source, e.Filter)
}
