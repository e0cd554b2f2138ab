package pipeline

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/hillshader/internal/fsutil"
	"github.com/banshee-data/hillshader/internal/relief"
	"github.com/banshee-data/hillshader/internal/security"
)

// Artifact name templates. The base name fills the first verb.
const (
	compositeTemplate = "%s_ComposedHillshade.tif"
	simpleTemplate    = "%s_%s_%s_SimpleHillshade.tif"
	demTemplate       = "%s_dem.tif"
	lasTemplate       = "%s_las.las"
	catalogTemplate   = "%s_ground_catalog.csv"
	histogramTemplate = "%s_histogram.png"
)

// Staging directories relative to a run root.
const (
	intermediateDir = "intermediate_results"
	catalogDir      = "catalog-report"
)

// Layout names every artifact of one run under its root directory:
//
//	<root>/<base>_ComposedHillshade.tif
//	<root>/intermediate_results/{las,dem,simple_hillshades}/
//	<root>/catalog-report/<base>_ground_catalog.csv
//	<root>/catalog-report/ground_points/
type Layout struct {
	Root   string
	Base   string
	Prefix string // Terrain_ or Surfaces_ for point-cloud intermediates
}

func (l Layout) LASDir() string          { return filepath.Join(l.Root, intermediateDir, "las") }
func (l Layout) DEMDir() string          { return filepath.Join(l.Root, intermediateDir, "dem") }
func (l Layout) HillshadeDir() string    { return filepath.Join(l.Root, intermediateDir, "simple_hillshades") }
func (l Layout) CatalogDir() string      { return filepath.Join(l.Root, catalogDir) }
func (l Layout) GroundPointsDir() string { return filepath.Join(l.Root, catalogDir, "ground_points") }

// Composite is the final product path.
func (l Layout) Composite() string {
	return filepath.Join(l.Root, fmt.Sprintf(compositeTemplate, l.Base))
}

// LAS is the kept classified subset.
func (l Layout) LAS() string {
	return filepath.Join(l.LASDir(), l.Prefix+fmt.Sprintf(lasTemplate, l.Base))
}

// GroundLAS is the ground-only subset handed to the catalog tool.
func (l Layout) GroundLAS() string {
	return filepath.Join(l.GroundPointsDir(), fmt.Sprintf(lasTemplate, l.Base))
}

// Catalog is the catalog report for the ground subset.
func (l Layout) Catalog() string {
	return filepath.Join(l.CatalogDir(), fmt.Sprintf(catalogTemplate, l.Base))
}

// DEMName is the DEM file name; its directory depends on keep_partials.
func (l Layout) DEMName() string {
	return l.Prefix + fmt.Sprintf(demTemplate, l.Base)
}

// SimpleHillshade is the path of a single-exposure hillshade.
func (l Layout) SimpleHillshade(e relief.Exposure) string {
	return filepath.Join(l.HillshadeDir(),
		fmt.Sprintf(simpleTemplate, l.Base, formatAngle(e.Azimuth), formatAngle(e.Altitude)))
}

// Histogram is the brightness histogram of the composite.
func (l Layout) Histogram() string {
	return filepath.Join(l.Root, fmt.Sprintf(histogramTemplate, l.Base))
}

// stagingDirs lists the directories a run may create, deepest first.
func (l Layout) stagingDirs() []string {
	return []string{
		l.GroundPointsDir(),
		l.CatalogDir(),
		l.LASDir(),
		l.DEMDir(),
		l.HillshadeDir(),
		filepath.Join(l.Root, intermediateDir),
	}
}

// formatAngle renders degrees in their shortest decimal form: 350, 52.5.
func formatAngle(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// BaseName is the sanitised file stem of an input path.
func BaseName(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return security.SanitizeFilename(stem)
}

// ResolveOutputDir picks a fresh run directory for base under outDir. The
// first choice is <base>_r1; when it exists the next index is one past the
// highest existing <base>_r<N> sibling. The directory is not created.
func ResolveOutputDir(fsys fsutil.FileSystem, outDir, base string) (string, error) {
	first := filepath.Join(outDir, base+"_r1")
	if !fsys.Exists(first) {
		return first, nil
	}

	entries, err := fsys.ReadDir(outDir)
	if err != nil {
		return "", fmt.Errorf("failed to list %s: %w", outDir, err)
	}
	prefix := base + "_r"
	highest := 1
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		n, err := strconv.Atoi(name[len(prefix):])
		if err != nil || n < 1 || !allDigits(name[len(prefix):]) {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return filepath.Join(outDir, prefix+strconv.Itoa(highest+1)), nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
