package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/hillshader/internal/config"
	"github.com/banshee-data/hillshader/internal/lidar/l1points"
	"github.com/banshee-data/hillshader/internal/lidar/l2classify"
	"github.com/banshee-data/hillshader/internal/lidar/l3grid"
	"github.com/banshee-data/hillshader/internal/raster"
	"github.com/banshee-data/hillshader/internal/relief"
	"github.com/banshee-data/hillshader/internal/report"
)

// InputKind says which entry point a file takes.
type InputKind int

const (
	InputUnknown InputKind = iota
	InputPointCloud
	InputElevation
)

// KindOf classifies an input path by extension.
func KindOf(path string) InputKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".las", ".laz":
		return InputPointCloud
	case ".tif", ".tiff", ".asc":
		return InputElevation
	}
	return InputUnknown
}

// ErrUnsupportedInput is returned for an input with an unknown extension.
var ErrUnsupportedInput = errors.New("unsupported input")

// ErrPixelSizeRequired is returned for a point-cloud run without pixel_size.
var ErrPixelSizeRequired = errors.New("pixel_size is required for point-cloud input")

// Result describes one run. On failure it holds whatever the run reached
// before the failing stage.
type Result struct {
	Input     string
	OutputDir string
	Composite string
	State     State

	Rows, Cols int
	Georef     raster.Georef

	PointCount int
	Densities  l2classify.Densities
	Stats      report.Stats

	// Artifacts lists every file written under OutputDir, in write order.
	Artifacts []string
	Duration  time.Duration
}

// run carries the state of a single Run call.
type run struct {
	*Runner
	ctx    context.Context
	cfg    *config.HillshadeConfig
	res    *Result
	layout Layout

	tempDir string
	temps   []string
}

// Run processes one input file into <OutDir>/<base>_rN. Point clouds
// (.las, .laz) go through classification and gridding; elevation rasters
// (.tif, .tiff, .asc) go straight to the exposures. The returned Result is
// non-nil even on error.
func (r *Runner) Run(ctx context.Context, input string) (*Result, error) {
	cfg := r.Config
	if cfg == nil {
		cfg = config.EmptyConfig()
	}
	x := &run{
		Runner: r,
		ctx:    ctx,
		cfg:    cfg,
		res:    &Result{Input: input, State: StateIdle},
	}
	start := r.clock().Now()
	defer func() { x.res.Duration = r.clock().Since(start) }()

	var err error
	switch KindOf(input) {
	case InputPointCloud:
		err = x.pointCloud(input)
	case InputElevation:
		err = x.elevation(input)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedInput, input)
	}
	if err != nil {
		failed := x.res.State
		x.advance(StateFailed)
		return x.res, fmt.Errorf("%s failed at %s: %w", filepath.Base(input), failed, err)
	}
	x.advance(StateDone)
	return x.res, nil
}

func (x *run) advance(s State) {
	diagf("%s: %s -> %s", x.layout.Base, x.res.State, s)
	x.res.State = s
}

// prepare resolves the run directory for input.
func (x *run) prepare(input string, prefix string) error {
	base := BaseName(input)
	root, err := ResolveOutputDir(x.FS, x.OutDir, base)
	if err != nil {
		return err
	}
	if err := x.FS.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", root, err)
	}
	x.layout = Layout{Root: root, Base: base, Prefix: prefix}
	x.res.OutputDir = root
	x.res.Composite = x.layout.Composite()
	return nil
}

func (x *run) pointCloud(input string) error {
	pixel := x.cfg.GetPixelSize()
	if pixel <= 0 {
		return ErrPixelSizeRequired
	}
	mode := x.cfg.GetClassificationMode()
	if err := x.prepare(input, mode.Prefix()); err != nil {
		return err
	}
	tempDir, err := x.FS.MkdirTemp("", "hillshader-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	x.tempDir = tempDir

	x.advance(StateClassifyPoints)
	lasPath, cloud, subset, err := x.classify(input, mode)
	if err != nil {
		return err
	}
	if err := x.catalog(lasPath, cloud); err != nil {
		return err
	}

	x.advance(StateInterpolate)
	dem, err := x.buildDEM(lasPath, subset, mode, pixel)
	if err != nil {
		return err
	}

	if err := x.shadeAndPersist(dem); err != nil {
		return err
	}
	return x.cleanup()
}

func (x *run) elevation(input string) error {
	if err := x.prepare(input, ""); err != nil {
		return err
	}
	dem, err := x.rasters().Read(input)
	if err != nil {
		return err
	}
	return x.shadeAndPersist(dem)
}

// classify reads the input, expanding LAZ first, and selects the points
// for the configured mode. lasPath is the uncompressed source for any
// later tool or subset write.
func (x *run) classify(input string, mode l2classify.Mode) (lasPath string, cloud *l1points.PointCloud, subset l2classify.Subset, err error) {
	lasPath = input
	if strings.EqualFold(filepath.Ext(input), ".laz") {
		out, err := x.Tools.Decompress(x.ctx, input, x.tempDir)
		if err != nil {
			return "", nil, subset, fmt.Errorf("decompress %s: %w", input, err)
		}
		lasPath = out
		x.temps = append(x.temps, out)
	}

	cloud, err = x.Points.ReadPoints(lasPath)
	if err != nil {
		return "", nil, subset, fmt.Errorf("read points: %w", err)
	}
	// Report the original path, not the decompressed temp copy.
	cloud.Source = input
	x.res.PointCount = cloud.Len()

	ground := x.cfg.GetGroundClass()
	d := l2classify.Density(cloud, ground)
	x.res.Densities = d
	diagf("%s: %d points over %.1f m², density all=%.2f ground=%.2f last=%.2f useful=%.2f",
		x.layout.Base, cloud.Len(), d.Area, d.All, d.Ground, d.LastReturn, d.Useful)

	subset, err = l2classify.ForMode(cloud, mode, ground)
	if err != nil {
		return "", nil, subset, err
	}
	if err := subset.RequireNonEmpty(); err != nil {
		return "", nil, subset, err
	}
	diagf("%s: %s kept %d of %d points", x.layout.Base, subset.Filter, subset.Len(), cloud.Len())

	if x.cfg.GetKeepPartials() {
		if err := x.writeSubset(lasPath, x.layout.LASDir(), x.layout.LAS(), subset.Mask); err != nil {
			return "", nil, subset, err
		}
	}
	return lasPath, cloud, subset, nil
}

// catalog runs the catalog report over the ground points when configured.
func (x *run) catalog(lasPath string, cloud *l1points.PointCloud) error {
	params, ok := x.cfg.GetCatalog()
	if !ok {
		return nil
	}
	ground := x.cfg.GetGroundClass()
	groundLAS := x.layout.GroundLAS()
	if err := x.confine(groundLAS, x.layout.Root); err != nil {
		return err
	}
	if err := x.FS.MkdirAll(x.layout.GroundPointsDir(), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", x.layout.GroundPointsDir(), err)
	}

	if x.capabilities().GroundFilter {
		if err := x.Tools.GroundFilter(x.ctx, lasPath, groundLAS, ground); err != nil {
			return fmt.Errorf("ground filter: %w", err)
		}
	} else {
		sub := l2classify.Filter(cloud, ground)
		if sub.Empty() {
			opsf("%s: no class %d points, skipping catalog", x.layout.Base, ground)
			return nil
		}
		if err := x.Subsets.WriteSubset(lasPath, groundLAS, sub.Mask); err != nil {
			return fmt.Errorf("write ground subset: %w", err)
		}
	}
	x.res.Artifacts = append(x.res.Artifacts, groundLAS)

	out := x.layout.Catalog()
	if err := x.Tools.Catalog(x.ctx, groundLAS, out, params); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	x.res.Artifacts = append(x.res.Artifacts, out)
	tracef("%s: catalog written to %s", x.layout.Base, out)
	return nil
}

// demPath places the DEM in the partials tree or the temp dir.
func (x *run) demPath() (string, error) {
	if x.cfg.GetKeepPartials() {
		path := filepath.Join(x.layout.DEMDir(), x.layout.DEMName())
		if err := x.confine(path, x.layout.Root); err != nil {
			return "", err
		}
		if err := x.FS.MkdirAll(x.layout.DEMDir(), 0755); err != nil {
			return "", fmt.Errorf("failed to create %s: %w", x.layout.DEMDir(), err)
		}
		return path, nil
	}
	return filepath.Join(x.tempDir, x.layout.DEMName()), nil
}

func (x *run) buildDEM(lasPath string, subset l2classify.Subset, mode l2classify.Mode, pixel float64) (*raster.Raster, error) {
	path, err := x.demPath()
	if err != nil {
		return nil, err
	}

	if x.cfg.GetDTMBackend() == config.BackendBlast2DEM {
		if mode != l2classify.ModeTerrain {
			return nil, fmt.Errorf("dtm_backend %s needs classification_mode %s", config.BackendBlast2DEM, l2classify.ModeTerrain)
		}
		if err := x.Tools.BlastDEM(x.ctx, lasPath, path, x.cfg.GetGroundClass(), pixel); err != nil {
			return nil, fmt.Errorf("blast2dem: %w", err)
		}
		x.track(path)
		x.advance(StateRasterize)
		dem, err := x.rasters().Read(path)
		if err != nil {
			return nil, err
		}
		if dem.Georef.CRS.IsZero() {
			dem.Georef.CRS = x.cfg.GetCRS()
		}
		return dem, nil
	}

	nodata := x.cfg.GetNoDataValue()
	grid, err := l3grid.Interpolate(subset.Cloud, l3grid.Options{
		PixelSize:    pixel,
		Method:       x.cfg.GetInterpolationMethod(),
		NoDataPolicy: x.cfg.GetNoDataPolicy(),
		NoData:       &nodata,
	})
	if err != nil {
		return nil, fmt.Errorf("interpolate: %w", err)
	}
	if grid.Undefined > 0 {
		opsf("%s: %d of %d nodes outside the hull filled with %g",
			x.layout.Base, grid.Undefined, grid.Rows*grid.Cols, grid.NoData)
	}

	x.advance(StateRasterize)
	dem := raster.New(grid.Rows, grid.Cols, raster.Float64, raster.Georef{
		OriginX:     grid.OriginX,
		OriginY:     grid.OriginY,
		PixelWidth:  grid.PixelSize,
		PixelHeight: -grid.PixelSize,
		CRS:         x.cfg.GetCRS(),
	}).WithNoData(grid.NoData)
	copy(dem.Data, grid.Data)

	if err := x.rasters().Write(path, dem); err != nil {
		return nil, err
	}
	x.track(path)
	diagf("%s: DEM %dx%d %s", x.layout.Base, dem.Rows, dem.Cols, report.Describe(dem.Data, dem.NoData, true))
	return dem, nil
}

// track files a written path as an output artifact or a temp artifact.
func (x *run) track(path string) {
	if x.tempDir != "" && x.confine(path, x.tempDir) == nil {
		x.temps = append(x.temps, path)
		return
	}
	x.res.Artifacts = append(x.res.Artifacts, path)
}

func (x *run) shadeAndPersist(dem *raster.Raster) error {
	x.res.Rows, x.res.Cols = dem.Rows, dem.Cols
	x.res.Georef = dem.Georef

	x.advance(StateComputeExposures)
	exposures := x.cfg.GetExposures()
	shades := make([]*relief.Shade, len(exposures))
	opacities := make([]float64, len(exposures))
	for i, e := range exposures {
		shades[i] = relief.Hillshade(dem, e.Azimuth, e.Altitude)
		opacities[i] = e.Opacity
		if x.cfg.GetKeepPartials() {
			if err := x.writeShade(x.layout.HillshadeDir(), x.layout.SimpleHillshade(e), shades[i], dem.Georef); err != nil {
				return err
			}
		}
	}

	x.advance(StateComposite)
	composite, err := relief.Merge(shades, opacities)
	if err != nil {
		return fmt.Errorf("composite: %w", err)
	}

	x.advance(StatePersist)
	if err := x.writeShade(x.layout.Root, x.layout.Composite(), composite, dem.Georef); err != nil {
		return err
	}
	x.res.Stats = report.DescribeBytes(composite.Data)
	diagf("%s: composite %s", x.layout.Base, x.res.Stats)

	if x.cfg.GetHistogram() {
		png, err := report.HistogramPNG(composite.Data, x.layout.Base)
		if err != nil {
			return fmt.Errorf("histogram: %w", err)
		}
		path := x.layout.Histogram()
		if err := x.confine(path, x.layout.Root); err != nil {
			return err
		}
		if err := x.FS.WriteFile(path, png, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		x.res.Artifacts = append(x.res.Artifacts, path)
	}
	return nil
}

// writeShade stores an 8-bit shade with zero as no-data.
func (x *run) writeShade(dir, path string, s *relief.Shade, g raster.Georef) error {
	if err := x.confine(path, x.layout.Root); err != nil {
		return err
	}
	if err := x.FS.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := x.rasters().Write(path, raster.FromBytes(s.Rows, s.Cols, s.Data, g).WithNoData(0)); err != nil {
		return err
	}
	x.res.Artifacts = append(x.res.Artifacts, path)
	tracef("%s: wrote %s", x.layout.Base, path)
	return nil
}

func (x *run) writeSubset(src, dir, dst string, mask []bool) error {
	if err := x.confine(dst, x.layout.Root); err != nil {
		return err
	}
	if err := x.FS.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := x.Subsets.WriteSubset(src, dst, mask); err != nil {
		return fmt.Errorf("write subset: %w", err)
	}
	x.res.Artifacts = append(x.res.Artifacts, dst)
	tracef("%s: wrote %s", x.layout.Base, dst)
	return nil
}

// cleanup removes temp artifacts, the temp dir and any staging directory
// left empty.
func (x *run) cleanup() error {
	for _, path := range x.temps {
		if err := x.confine(path, x.tempDir); err != nil {
			return err
		}
		if err := x.FS.Remove(path); err != nil && x.FS.Exists(path) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		tracef("%s: removed %s", x.layout.Base, path)
	}
	x.temps = nil
	if x.tempDir != "" {
		if err := x.FS.RemoveAll(x.tempDir); err != nil {
			return fmt.Errorf("failed to remove %s: %w", x.tempDir, err)
		}
	}
	for _, dir := range x.layout.stagingDirs() {
		if !x.FS.Exists(dir) {
			continue
		}
		entries, err := x.FS.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := x.FS.Remove(dir); err != nil {
			return fmt.Errorf("failed to remove %s: %w", dir, err)
		}
	}
	return nil
}
