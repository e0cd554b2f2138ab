package raster

import (
	"errors"
	"fmt"
	"math"
)

// DataType is the on-disk sample type of a raster band.
type DataType int

const (
	Byte DataType = iota + 1
	UInt16
	Int16
	UInt32
	Int32
	Float32
	Float64
)

func (d DataType) String() string {
	switch d {
	case Byte:
		return "Byte"
	case UInt16:
		return "UInt16"
	case Int16:
		return "Int16"
	case UInt32:
		return "UInt32"
	case Int32:
		return "Int32"
	case Float32:
		return "Float32"
	case Float64:
		return "Float64"
	}
	return fmt.Sprintf("DataType(%d)", int(d))
}

// Size returns the sample width in bytes.
func (d DataType) Size() int {
	switch d {
	case Byte:
		return 1
	case UInt16, Int16:
		return 2
	case UInt32, Int32, Float32:
		return 4
	case Float64:
		return 8
	}
	return 0
}

// CRS identifies a coordinate reference system by EPSG code, WKT, or both.
// GeoKeys carries a GeoTIFF key set that neither can express, such as a
// user-defined projection.
type CRS struct {
	EPSG    int
	WKT     string
	GeoKeys *GeoKeys
}

// GeoKeys is a GeoTIFF GeoKeyDirectory with the double and ASCII parameter
// blocks its entries point into, kept verbatim from a decoded file.
type GeoKeys struct {
	Directory []uint16
	Doubles   []float64
	ASCII     string
}

// IsZero reports whether no CRS is set.
func (c CRS) IsZero() bool { return c.EPSG == 0 && c.WKT == "" && c.GeoKeys == nil }

// CRSFromEPSG returns a CRS carrying only an EPSG code.
func CRSFromEPSG(code int) CRS { return CRS{EPSG: code} }

// Geographic reports whether the EPSG code falls in the geographic 2D range.
func (c CRS) Geographic() bool { return c.EPSG >= 4000 && c.EPSG < 5000 }

// Georef places a north-up raster on the map. OriginX/OriginY are the outer
// corner of the top-left pixel; PixelHeight is negative.
type Georef struct {
	OriginX     float64
	OriginY     float64
	PixelWidth  float64
	PixelHeight float64
	CRS         CRS
}

// GeoTransform returns the six-term affine transform in GDAL order.
func (g Georef) GeoTransform() [6]float64 {
	return [6]float64{g.OriginX, g.PixelWidth, 0, g.OriginY, 0, g.PixelHeight}
}

// Raster is a single band held as float64 samples, row-major with row 0 at
// the top.
type Raster struct {
	Rows, Cols int
	Data       []float64
	DataType   DataType
	NoData     float64
	HasNoData  bool
	Georef     Georef
}

// New allocates a zeroed raster.
func New(rows, cols int, dt DataType, g Georef) *Raster {
	return &Raster{Rows: rows, Cols: cols, Data: make([]float64, rows*cols), DataType: dt, Georef: g}
}

// FromBytes builds a Byte raster from 8-bit samples.
func FromBytes(rows, cols int, data []uint8, g Georef) *Raster {
	r := New(rows, cols, Byte, g)
	for i, v := range data {
		r.Data[i] = float64(v)
	}
	return r
}

// Dims returns the raster shape.
func (r *Raster) Dims() (rows, cols int) { return r.Rows, r.Cols }

// At returns the sample at row i, column j.
func (r *Raster) At(i, j int) float64 { return r.Data[i*r.Cols+j] }

// WithNoData sets the no-data sentinel and returns r.
func (r *Raster) WithNoData(v float64) *Raster {
	r.NoData, r.HasNoData = v, true
	return r
}

// ErrInvalidRaster is returned for a raster whose shape and data disagree.
var ErrInvalidRaster = errors.New("invalid raster")

func (r *Raster) validate() error {
	switch {
	case r == nil:
		return fmt.Errorf("%w: nil", ErrInvalidRaster)
	case r.Rows <= 0 || r.Cols <= 0:
		return fmt.Errorf("%w: shape %dx%d", ErrInvalidRaster, r.Rows, r.Cols)
	case len(r.Data) != r.Rows*r.Cols:
		return fmt.Errorf("%w: %d samples for %dx%d", ErrInvalidRaster, len(r.Data), r.Rows, r.Cols)
	case r.DataType.Size() == 0:
		return fmt.Errorf("%w: data type %v", ErrInvalidRaster, r.DataType)
	case r.Georef.PixelWidth == 0 || r.Georef.PixelHeight == 0:
		return fmt.Errorf("%w: zero pixel size", ErrInvalidRaster)
	}
	return nil
}

// clampTo converts v to an integer sample within [lo, hi]. NaN becomes 0.
func clampTo(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return math.Trunc(v)
}
