// Package pipeline turns one survey file into a composed hillshade.
//
// It is the composition root: it imports the layer packages (l1points,
// l2classify, l3grid), relief, raster and the external tool runner, but
// none of those packages import pipeline/. Each stage is a plain function
// call; the pipeline owns ordering, staging directories and cleanup, and
// delegates all domain logic.
//
// A run moves through
//
//	Idle → ClassifyPoints → Interpolate → Rasterize → ComputeExposures → Composite → Persist → Done
//
// Elevation-raster inputs enter at ComputeExposures. Any stage error moves
// the run to Failed and leaves its artifacts in place for inspection.
package pipeline
