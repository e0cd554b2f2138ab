package pipeline

import (
	"context"

	"github.com/banshee-data/hillshader/internal/config"
	"github.com/banshee-data/hillshader/internal/db"
	"github.com/banshee-data/hillshader/internal/timeutil"
)

// FileResult is the outcome of one input in a batch.
type FileResult struct {
	Input  string
	Result *Result // nil when the file was never started
	Err    error
}

// RunBatch processes inputs one after another. A failing file is logged
// and recorded, and the batch moves on to the next one. Cancellation is
// checked between files; files not started are reported with the context
// error.
func (r *Runner) RunBatch(ctx context.Context, inputs []string) []FileResult {
	results := make([]FileResult, 0, len(inputs))
	ledger := r.ledger()

	var runID string
	if ledger != nil {
		cfg := r.Config
		if cfg == nil {
			cfg = config.EmptyConfig()
		}
		id, err := ledger.StartRun(len(inputs), cfg.JSON())
		if err != nil {
			opsf("run ledger unavailable: %v", err)
			ledger = nil
		} else {
			runID = id
			diagf("run %s: %d inputs", runID, len(inputs))
		}
	}

	failed := 0
	for i, input := range inputs {
		if err := ctx.Err(); err != nil {
			opsf("batch cancelled, %d of %d files not processed: %v", len(inputs)-i, len(inputs), err)
			for _, rest := range inputs[i:] {
				results = append(results, FileResult{Input: rest, Err: err})
				failed++
			}
			break
		}

		opsf("[%d/%d] processing %s", i+1, len(inputs), input)
		res, err := r.Run(ctx, input)
		if err != nil {
			failed++
			opsf("[%d/%d] %s: %v", i+1, len(inputs), input, err)
		} else {
			opsf("[%d/%d] %s: wrote %s in %v", i+1, len(inputs), input, res.Composite, res.Duration)
		}
		results = append(results, FileResult{Input: input, Result: res, Err: err})

		if ledger != nil {
			if lerr := ledger.RecordFile(runID, fileRecord(input, res, err, r.clock())); lerr != nil {
				opsf("run ledger: %v", lerr)
			}
		}
	}

	if ledger != nil {
		if err := ledger.FinishRun(runID, failed); err != nil {
			opsf("run ledger: %v", err)
		}
	}
	return results
}

func fileRecord(input string, res *Result, err error, clock timeutil.Clock) db.FileRecord {
	rec := db.FileRecord{InputPath: input, RecordedAt: clock.Now()}
	if err != nil {
		rec.Error = err.Error()
	}
	if res == nil {
		rec.State = StateIdle.String()
		return rec
	}
	rec.OutputPath = res.Composite
	rec.State = res.State.String()
	rec.Rows, rec.Cols = res.Rows, res.Cols
	rec.Duration = res.Duration
	rec.PointCount = res.PointCount
	rec.GroundDensity = res.Densities.Ground
	if res.State == StateDone {
		rec.CompositeMean = res.Stats.Mean
		rec.CompositeStdDev = res.Stats.StdDev
	}
	return rec
}
