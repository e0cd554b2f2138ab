// Package raster reads and writes single-band georeferenced rasters.
//
// GeoTIFF (uncompressed, stripped, classic TIFF) and Esri ASCII grids are
// supported. A Store routes paths to the right codec by extension and
// wraps every failure in a RasterIOError.
package raster
