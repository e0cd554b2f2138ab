package l2classify

import (
	"github.com/banshee-data/hillshader/internal/lidar/l1points"
)

// Densities are point counts per squared linear unit over the cloud's
// bounding box. They are diagnostics; pixel size is always caller-supplied.
type Densities struct {
	Area       float64
	All        float64
	Ground     float64
	LastReturn float64
	Useful     float64
}

// excludedFromUseful are the classes that carry no surface information.
var excludedFromUseful = map[uint8]bool{
	l1points.ClassCreated:       true,
	l1points.ClassUnclassified:  true,
	l1points.ClassLowNoise:      true,
	l1points.ClassModelKeyPoint: true,
}

// Density summarises the cloud. A cloud with zero area reports zero for every
// density.
func Density(cloud *l1points.PointCloud, groundCode uint8) Densities {
	d := Densities{Area: cloud.Area()}
	if d.Area <= 0 {
		return d
	}
	var ground, last, useful int
	for _, p := range cloud.Points {
		if p.Classification == groundCode {
			ground++
		}
		if p.ReturnNumber == p.NumberOfReturns {
			last++
		}
		if !excludedFromUseful[p.Classification] {
			useful++
		}
	}
	d.All = float64(cloud.Len()) / d.Area
	d.Ground = float64(ground) / d.Area
	d.LastReturn = float64(last) / d.Area
	d.Useful = float64(useful) / d.Area
	return d
}
