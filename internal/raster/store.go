package raster

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/banshee-data/hillshader/internal/fsutil"
)

// Format is a raster file encoding.
type Format int

const (
	FormatUnknown Format = iota
	FormatGeoTIFF
	FormatASCIIGrid
)

// FormatOf picks the encoding from a path's extension.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		return FormatGeoTIFF
	case ".asc":
		return FormatASCIIGrid
	}
	return FormatUnknown
}

// Store reads and writes rasters through a FileSystem.
type Store struct {
	FS fsutil.FileSystem
}

// NewStore returns a Store on fsys, or on the OS filesystem when fsys is nil.
func NewStore(fsys fsutil.FileSystem) *Store {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return &Store{FS: fsys}
}

// Read loads the raster at path. ASCII grids pick up a CRS from a
// neighbouring .prj file when one exists.
func (s *Store) Read(path string) (*Raster, error) {
	format := FormatOf(path)
	if format == FormatUnknown {
		return nil, &RasterIOError{Op: "read", Path: path, Err: fmt.Errorf("%w: extension %q", ErrUnsupported, filepath.Ext(path))}
	}
	b, err := s.FS.ReadFile(path)
	if err != nil {
		return nil, &RasterIOError{Op: "read", Path: path, Err: err}
	}

	var r *Raster
	switch format {
	case FormatGeoTIFF:
		r, err = DecodeGeoTIFF(b)
	case FormatASCIIGrid:
		r, err = DecodeASCIIGrid(b)
		if err == nil {
			r.Georef.CRS.WKT, err = s.readPrj(path)
		}
	}
	if err != nil {
		return nil, &RasterIOError{Op: "decode", Path: path, Err: err}
	}
	return r, nil
}

func (s *Store) readPrj(path string) (string, error) {
	b, err := s.FS.ReadFile(prjPath(path))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func prjPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
}

// Write encodes r by the path's extension and stores it, replacing any
// existing file. The parent directory must exist.
func (s *Store) Write(path string, r *Raster) error {
	var buf bytes.Buffer
	var err error
	switch FormatOf(path) {
	case FormatGeoTIFF:
		err = EncodeGeoTIFF(&buf, r)
	case FormatASCIIGrid:
		err = EncodeASCIIGrid(&buf, r)
	default:
		err = fmt.Errorf("%w: extension %q", ErrUnsupported, filepath.Ext(path))
	}
	if err != nil {
		return &RasterIOError{Op: "encode", Path: path, Err: err}
	}
	if err := s.FS.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return &RasterIOError{Op: "write", Path: path, Err: err}
	}
	if FormatOf(path) == FormatASCIIGrid && r.Georef.CRS.WKT != "" {
		if err := s.FS.WriteFile(prjPath(path), []byte(r.Georef.CRS.WKT+"\n"), 0644); err != nil {
			return &RasterIOError{Op: "write", Path: prjPath(path), Err: err}
		}
	}
	return nil
}
