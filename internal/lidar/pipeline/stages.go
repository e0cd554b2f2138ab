package pipeline

import (
	"context"

	"github.com/banshee-data/hillshader/internal/db"
	"github.com/banshee-data/hillshader/internal/external"
)

// State is a run's position in the stage sequence.
type State int

const (
	StateIdle State = iota
	StateClassifyPoints
	StateInterpolate
	StateRasterize
	StateComputeExposures
	StateComposite
	StatePersist
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:             "Idle",
	StateClassifyPoints:   "ClassifyPoints",
	StateInterpolate:      "Interpolate",
	StateRasterize:        "Rasterize",
	StateComputeExposures: "ComputeExposures",
	StateComposite:        "Composite",
	StatePersist:          "Persist",
	StateDone:             "Done",
	StateFailed:           "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// ToolRunner runs the delegated LiDAR tools. *external.Runner implements it.
type ToolRunner interface {
	// Decompress expands a LAZ file into outDir and returns the LAS path.
	Decompress(ctx context.Context, lazPath, outDir string) (string, error)
	// GroundFilter writes the points of one class to a new LAS file.
	GroundFilter(ctx context.Context, in, out string, class uint8) error
	// BlastDEM rasterises one class of a LAS file to a GeoTIFF DEM.
	BlastDEM(ctx context.Context, in, out string, class uint8, step float64) error
	// Catalog writes a catalog report for a LAS file.
	Catalog(ctx context.Context, in, out string, params external.CatalogParams) error
}

// Recorder persists batch outcomes. *db.DB implements it.
type Recorder interface {
	StartRun(inputCount int, configJSON string) (string, error)
	RecordFile(runID string, rec db.FileRecord) error
	FinishRun(runID string, failed int) error
}

var (
	_ ToolRunner = (*external.Runner)(nil)
	_ Recorder   = (*db.DB)(nil)
)
