// Package relief renders shaded relief from an elevation surface.
//
// Hillshade lights a surface from one direction; Merge and Blend stack
// several renderings with per-layer opacity. Both are pure functions over
// in-memory arrays and never touch the filesystem.
package relief
