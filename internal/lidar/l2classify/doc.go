// Package l2classify owns Layer 2 (Classification) of the terrain pipeline.
//
// Responsibilities: selecting point subsets by ASPRS class code or by return
// number, and summarising point densities for diagnostics.
// Key types: Subset, Mode, Densities.
//
// Dependency rule: L2 may depend on L1, never on L3+.
package l2classify
