// Package testutil provides shared test utilities and fixtures.
//
// Fixtures are synthetic terrain: elevation rasters with known shape and
// point clouds with a known classification mix, so pipeline tests can run
// against fsutil.MemoryFileSystem without any real survey data.
package testutil

import (
	"fmt"
	"io/fs"
	"math"
	"sync"
	"testing"

	"github.com/banshee-data/hillshader/internal/fsutil"
	"github.com/banshee-data/hillshader/internal/lidar/l1points"
	"github.com/banshee-data/hillshader/internal/raster"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// SiteGeoref places fixtures on a 1 m grid in ETRS89 / UTM zone 30N.
var SiteGeoref = raster.Georef{
	OriginX:     560000,
	OriginY:     4700000,
	PixelWidth:  1,
	PixelHeight: -1,
	CRS:         raster.CRS{EPSG: 25830},
}

// RampDEM returns a Float64 elevation raster rising by slope per column.
func RampDEM(rows, cols int, slope float64) *raster.Raster {
	r := raster.New(rows, cols, raster.Float64, SiteGeoref).WithNoData(-99999)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			r.Data[i*cols+j] = 100 + slope*float64(j)
		}
	}
	return r
}

// MixedDEM returns rolling hills with a sharp crater, steep enough that
// the three default exposures cover both ends of the brightness range.
func MixedDEM(rows, cols int) *raster.Raster {
	r := raster.New(rows, cols, raster.Float64, SiteGeoref).WithNoData(-99999)
	cy, cx := float64(rows)/2, float64(cols)/2
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			x, y := float64(j), float64(i)
			hills := 40*math.Sin(x/6)*math.Cos(y/9) + 0.8*x
			d := math.Hypot(x-cx, y-cy)
			crater := 0.0
			if d < 15 {
				crater = -3 * (15 - d)
			}
			r.Data[i*cols+j] = 500 + hills + crater
		}
	}
	return r
}

// SurveyCloud returns a w x h metre site sampled every spacing metres with
// z = f(x, y). Every third site also carries a canopy return 8 m above the
// ground; there the ground point is the last of two returns.
func SurveyCloud(source string, w, h, spacing float64, f func(x, y float64) float64) *l1points.PointCloud {
	var pts []l1points.Point
	site := 0
	for y := 0.0; y <= h; y += spacing {
		for x := 0.0; x <= w; x += spacing {
			// Deterministic sub-metre jitter keeps the triangulation generic.
			jx := 0.1 * spacing * math.Sin(float64(site)*12.9898)
			jy := 0.1 * spacing * math.Cos(float64(site)*78.233)
			px := math.Max(0, math.Min(w, x+jx))
			py := math.Max(0, math.Min(h, y+jy))
			z := f(px, py)
			if site%3 == 0 {
				pts = append(pts,
					l1points.Point{X: px, Y: py, Z: z + 8, Intensity: 40, ReturnNumber: 1, NumberOfReturns: 2, Classification: 5},
					l1points.Point{X: px, Y: py, Z: z, Intensity: 120, ReturnNumber: 2, NumberOfReturns: 2, Classification: l1points.ClassGround},
				)
			} else {
				pts = append(pts, l1points.Point{X: px, Y: py, Z: z, Intensity: 150, ReturnNumber: 1, NumberOfReturns: 1, Classification: l1points.ClassGround})
			}
			site++
		}
	}
	return &l1points.PointCloud{Source: source, Points: pts}
}

// UnclassifiedCloud returns n points that carry no ground classification.
func UnclassifiedCloud(source string, n int) *l1points.PointCloud {
	pts := make([]l1points.Point, n)
	for i := range pts {
		pts[i] = l1points.Point{
			X: float64(i % 10), Y: float64(i / 10), Z: 10,
			ReturnNumber: 1, NumberOfReturns: 1,
			Classification: l1points.ClassUnclassified,
		}
	}
	return &l1points.PointCloud{Source: source, Points: pts}
}

// SubsetWrite records one call to PointStore.WriteSubset.
type SubsetWrite struct {
	Src, Dst string
	Count    int
}

// PointStore is an in-memory l1points.Reader and l1points.Writer. Clouds
// are keyed by path; written subsets are recorded and, when FS is set,
// materialised as placeholder files so directory bookkeeping sees them.
type PointStore struct {
	FS     fsutil.FileSystem
	Clouds map[string]*l1points.PointCloud

	mu      sync.Mutex
	Written []SubsetWrite
}

// NewPointStore creates a PointStore backed by fsys.
func NewPointStore(fsys fsutil.FileSystem) *PointStore {
	return &PointStore{FS: fsys, Clouds: map[string]*l1points.PointCloud{}}
}

// Add registers cloud under path and creates a placeholder input file.
func (s *PointStore) Add(path string, cloud *l1points.PointCloud) {
	s.Clouds[path] = cloud
	if s.FS != nil {
		_ = s.FS.WriteFile(path, []byte("LASF"), 0644)
	}
}

// ReadPoints implements l1points.Reader.
func (s *PointStore) ReadPoints(path string) (*l1points.PointCloud, error) {
	c, ok := s.Clouds[path]
	if !ok {
		return nil, fmt.Errorf("open las %s: %w", path, fs.ErrNotExist)
	}
	return &l1points.PointCloud{Source: path, Points: append([]l1points.Point(nil), c.Points...)}, nil
}

// WriteSubset implements l1points.Writer.
func (s *PointStore) WriteSubset(src, dst string, mask []bool) error {
	c, ok := s.Clouds[src]
	if !ok {
		return fmt.Errorf("open las %s: %w", src, fs.ErrNotExist)
	}
	if len(mask) != len(c.Points) {
		return fmt.Errorf("mask has %d entries for %d points", len(mask), len(c.Points))
	}
	n := 0
	var kept []l1points.Point
	for i, keep := range mask {
		if keep {
			n++
			kept = append(kept, c.Points[i])
		}
	}
	s.mu.Lock()
	s.Written = append(s.Written, SubsetWrite{Src: src, Dst: dst, Count: n})
	s.mu.Unlock()
	s.Clouds[dst] = &l1points.PointCloud{Source: dst, Points: kept}
	if s.FS != nil {
		return s.FS.WriteFile(dst, []byte(fmt.Sprintf("LASF %d", n)), 0644)
	}
	return nil
}
