package l2classify

import (
	"fmt"

	"github.com/banshee-data/hillshader/internal/lidar/l1points"
)

// Mode selects which surface the elevation grid is built from.
type Mode string

const (
	// ModeTerrain keeps points classified as ground (bare-earth DTM).
	ModeTerrain Mode = "terrain"
	// ModeFirstSurface keeps first returns, approximating the top surface
	// when no vendor surface classification exists.
	ModeFirstSurface Mode = "first-surface"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeTerrain, ModeFirstSurface:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown classification mode %q (want %q or %q)", s, ModeTerrain, ModeFirstSurface)
}

// Prefix is prepended to intermediate artifact names produced in this mode.
func (m Mode) Prefix() string {
	if m == ModeFirstSurface {
		return "Surfaces_"
	}
	return "Terrain_"
}

// Subset is a filtered view of a point cloud. Cloud holds the matching
// points in source order; Mask marks them over the source ordering.
type Subset struct {
	Cloud  *l1points.PointCloud
	Mask   []bool
	Filter string
}

// Len returns the number of matching points.
func (s Subset) Len() int { return s.Cloud.Len() }

// Empty reports whether nothing matched.
func (s Subset) Empty() bool { return s.Len() == 0 }

// RequireNonEmpty returns an EmptyPointSetError when the subset has no points.
func (s Subset) RequireNonEmpty() error {
	if s.Empty() {
		return &l1points.EmptyPointSetError{Source: s.Cloud.Source, Filter: s.Filter}
	}
	return nil
}

func filter(cloud *l1points.PointCloud, desc string, keep func(l1points.Point) bool) Subset {
	n := cloud.Len()
	mask := make([]bool, n)
	var points []l1points.Point
	for i := 0; i < n; i++ {
		if keep(cloud.Points[i]) {
			mask[i] = true
			points = append(points, cloud.Points[i])
		}
	}
	source := ""
	if cloud != nil {
		source = cloud.Source
	}
	return Subset{
		Cloud:  &l1points.PointCloud{Source: source, Points: points},
		Mask:   mask,
		Filter: desc,
	}
}

// Filter keeps points whose classification equals code.
func Filter(cloud *l1points.PointCloud, code uint8) Subset {
	return filter(cloud, fmt.Sprintf("class=%d", code), func(p l1points.Point) bool {
		return p.Classification == code
	})
}

// FilterByReturn keeps points whose return number equals n.
func FilterByReturn(cloud *l1points.PointCloud, n uint8) Subset {
	return filter(cloud, fmt.Sprintf("return=%d", n), func(p l1points.Point) bool {
		return p.ReturnNumber == n
	})
}

// FilterLastReturn keeps the final return of every pulse.
func FilterLastReturn(cloud *l1points.PointCloud) Subset {
	return filter(cloud, "return=last", func(p l1points.Point) bool {
		return p.ReturnNumber == p.NumberOfReturns
	})
}

// ForMode applies the filter associated with mode.
func ForMode(cloud *l1points.PointCloud, mode Mode, groundCode uint8) (Subset, error) {
	switch mode {
	case ModeTerrain:
		return Filter(cloud, groundCode), nil
	case ModeFirstSurface:
		return FilterByReturn(cloud, 1), nil
	}
	return Subset{}, fmt.Errorf("unknown classification mode %q", mode)
}
