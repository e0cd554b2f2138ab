package external

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Executable names inside the LAStools and FUSION install directories.
const (
	las2lasName   = "las2las"
	blast2demName = "blast2dem"
	catalogName   = "catalog"
)

// ToolPaths locates the external tools. LASzip is the executable itself;
// LAStools and Fusion are install directories holding their executables.
// Empty means not installed.
type ToolPaths struct {
	LASzip   string `json:"laszip,omitempty" yaml:"laszip,omitempty"`
	LAStools string `json:"lastools,omitempty" yaml:"lastools,omitempty"`
	Fusion   string `json:"fusion,omitempty" yaml:"fusion,omitempty"`
}

// Capabilities lists which delegated operations can run.
type Capabilities struct {
	Decompress   bool
	GroundFilter bool
	BlastDEM     bool
	Catalog      bool
}

// Capabilities reports which tools are present according to exists. It runs
// nothing, so callers can pass a filesystem predicate or a stub.
func (p ToolPaths) Capabilities(exists func(string) bool) Capabilities {
	has := func(path string) bool { return path != "" && exists(path) }
	return Capabilities{
		Decompress:   has(p.LASzip),
		GroundFilter: has(p.las2las()),
		BlastDEM:     has(p.blast2dem()),
		Catalog:      has(p.catalog()),
	}
}

func (p ToolPaths) las2las() string   { return inDir(p.LAStools, las2lasName) }
func (p ToolPaths) blast2dem() string { return inDir(p.LAStools, blast2demName) }
func (p ToolPaths) catalog() string   { return inDir(p.Fusion, catalogName) }

func inDir(dir, name string) string {
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, name)
}

// Decompress expands a LAZ file into outDir and returns the LAS path.
func (r *Runner) Decompress(ctx context.Context, lazPath, outDir string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(lazPath), filepath.Ext(lazPath))
	lasPath := filepath.Join(outDir, base+".las")
	if _, err := r.run(ctx, "laszip", r.Tools.LASzip, decompressArgs(lazPath, lasPath)...); err != nil {
		return "", err
	}
	return lasPath, nil
}

func decompressArgs(in, out string) []string {
	return []string{"-i", in, "-o", out}
}

// GroundFilter writes the points of class code from in to out with las2las.
func (r *Runner) GroundFilter(ctx context.Context, in, out string, class uint8) error {
	_, err := r.run(ctx, "las2las", r.Tools.las2las(), groundFilterArgs(in, out, class)...)
	return err
}

func groundFilterArgs(in, out string, class uint8) []string {
	return []string{"-i", in, "-keep_class", strconv.Itoa(int(class)), "-o", out}
}

// BlastDEM rasterises the points of class code in a LAS file to a DEM with
// blast2dem at the given step.
func (r *Runner) BlastDEM(ctx context.Context, in, out string, class uint8, step float64) error {
	_, err := r.run(ctx, "blast2dem", r.Tools.blast2dem(), blastDEMArgs(in, out, class, step)...)
	return err
}

func blastDEMArgs(in, out string, class uint8, step float64) []string {
	return []string{
		"-i", in,
		"-keep_class", strconv.Itoa(int(class)),
		"-step", strconv.FormatFloat(step, 'f', -1, 64),
		"-o", out,
	}
}

// CatalogParams are FUSION catalog statistic grids, each
// {cell size, min, max}.
type CatalogParams struct {
	Density      [3]float64 `json:"density" yaml:"density"`
	FirstDensity [3]float64 `json:"first_density" yaml:"first_density"`
	Intensity    [3]float64 `json:"intensity" yaml:"intensity"`
}

// Catalog produces a FUSION catalog report for a LAS file.
func (r *Runner) Catalog(ctx context.Context, in, out string, params CatalogParams) error {
	_, err := r.run(ctx, "catalog", r.Tools.catalog(), catalogArgs(in, out, params)...)
	return err
}

func catalogArgs(in, out string, p CatalogParams) []string {
	return []string{
		"/density:" + triple(p.Density),
		"/firstdensity:" + triple(p.FirstDensity),
		"/intensity:" + triple(p.Intensity),
		in,
		out,
	}
}

func triple(v [3]float64) string {
	return fmt.Sprintf("%s,%s,%s",
		strconv.FormatFloat(v[0], 'f', -1, 64),
		strconv.FormatFloat(v[1], 'f', -1, 64),
		strconv.FormatFloat(v[2], 'f', -1, 64))
}
