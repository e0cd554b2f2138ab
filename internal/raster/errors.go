package raster

import (
	"errors"
	"fmt"
)

// ErrUnsupported marks raster content or extensions this package cannot
// handle, such as compressed or tiled TIFFs.
var ErrUnsupported = errors.New("unsupported raster")

// RasterIOError wraps a read, write or decode failure with the path involved.
type RasterIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *RasterIOError) Error() string {
	return fmt.Sprintf("raster %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *RasterIOError) Unwrap() error { return e.Err }
