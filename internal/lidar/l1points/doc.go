// Package l1points owns Layer 1 (Points) of the terrain pipeline.
//
// Responsibilities: the immutable point-cloud model, ASPRS classification
// codes, and the LAS reader/writer adapter.
// Key types: Point, PointCloud, Reader, Writer.
//
// Dependency rule: L1 depends on nothing else in internal/lidar.
package l1points
