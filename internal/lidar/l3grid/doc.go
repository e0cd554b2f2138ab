// Package l3grid owns Layer 3 (Grid) of the terrain pipeline.
//
// Responsibilities: deriving the node lattice from a point cloud's extent,
// triangulating scattered samples, and interpolating a regular north-up
// elevation grid by nearest, linear or cubic policy.
// Key types: Extent, ElevationGrid, Options, InterpolationDomainError.
//
// Dependency rule: L3 may depend on L1-L2, but never on relief, raster or
// the pipeline. No file I/O is allowed in this package.
package l3grid
