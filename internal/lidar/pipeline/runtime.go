package pipeline

import (
	"os"
	"reflect"

	"github.com/banshee-data/hillshader/internal/config"
	"github.com/banshee-data/hillshader/internal/external"
	"github.com/banshee-data/hillshader/internal/fsutil"
	"github.com/banshee-data/hillshader/internal/lidar/l1points"
	"github.com/banshee-data/hillshader/internal/raster"
	"github.com/banshee-data/hillshader/internal/security"
	"github.com/banshee-data/hillshader/internal/timeutil"
)

// Runner bundles the collaborators of a terrain run. Passing them in
// explicitly keeps wiring visible and lets tests swap the filesystem, the
// point-cloud adapter and the external tools for in-memory fakes.
type Runner struct {
	Config *config.HillshadeConfig
	OutDir string

	FS      fsutil.FileSystem
	Points  l1points.Reader
	Subsets l1points.Writer
	Rasters *raster.Store
	Tools   ToolRunner
	Ledger  Recorder // optional
	Clock   timeutil.Clock

	// ToolExists reports whether a tool executable is installed. It
	// defaults to a stat on the OS filesystem.
	ToolExists func(path string) bool

	// Confine rejects artifact paths outside their staging root. It
	// defaults to a lexical check; the CLI installs the symlink-aware one.
	Confine func(path, root string) error
}

// NewRunner wires a Runner to the OS filesystem, the LAS adapter and the
// configured external tools.
func NewRunner(cfg *config.HillshadeConfig, outDir string) *Runner {
	fsys := fsutil.OSFileSystem{}
	return &Runner{
		Config:  cfg,
		OutDir:  outDir,
		FS:      fsys,
		Points:  l1points.LAS{},
		Subsets: l1points.LAS{},
		Rasters: raster.NewStore(fsys),
		Tools:   external.NewRunner(cfg.GetTools()),
		Clock:   timeutil.RealClock{},
	}
}

func (r *Runner) capabilities() external.Capabilities {
	exists := r.ToolExists
	if exists == nil {
		exists = func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		}
	}
	return r.Config.GetTools().Capabilities(exists)
}

func (r *Runner) confine(path, root string) error {
	if r.Confine != nil {
		return r.Confine(path, root)
	}
	return security.ContainedIn(path, root)
}

func (r *Runner) clock() timeutil.Clock {
	if r.Clock == nil {
		return timeutil.RealClock{}
	}
	return r.Clock
}

func (r *Runner) rasters() *raster.Store {
	if r.Rasters == nil {
		r.Rasters = raster.NewStore(r.FS)
	}
	return r.Rasters
}

func (r *Runner) ledger() Recorder {
	if isNilInterface(r.Ledger) {
		return nil
	}
	return r.Ledger
}

// isNilInterface checks if an interface value is nil or contains a nil pointer.
// A nil *db.DB stored in Ledger is not == nil.
func isNilInterface(i interface{}) bool {
	if i == nil {
		return true
	}
	v := reflect.ValueOf(i)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}
