package raster

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/hillshader/internal/fsutil"
)

const testWKT = `PROJCS["ETRS89 / UTM zone 30N",GEOGCS["ETRS89",DATUM["European_Terrestrial_Reference_System_1989",SPHEROID["GRS 1980",6378137,298.257222101]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"],UNIT["metre",1]]`

func sampleRaster(dt DataType) *Raster {
	r := New(3, 4, dt, Georef{
		OriginX:     440720.5,
		OriginY:     3751320.25,
		PixelWidth:  2,
		PixelHeight: -2,
		CRS:         CRS{EPSG: 25830},
	})
	for i := range r.Data {
		r.Data[i] = float64(i * 7)
	}
	return r
}

func TestGeoTIFF_RoundTripDataTypes(t *testing.T) {
	for _, dt := range []DataType{Byte, UInt16, Int16, UInt32, Int32, Float32, Float64} {
		t.Run(dt.String(), func(t *testing.T) {
			want := sampleRaster(dt)
			if dt == Int16 || dt == Int32 || dt == Float64 {
				want.Data[0] = -12
			}
			if dt == Float64 {
				want.Data[1] = 1234.0625
				want.WithNoData(-99999)
			}

			var buf bytes.Buffer
			require.NoError(t, EncodeGeoTIFF(&buf, want))
			got, err := DecodeGeoTIFF(buf.Bytes())
			require.NoError(t, err)

			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGeoTIFF_ByteSamplesClamp(t *testing.T) {
	r := New(1, 4, Byte, Georef{PixelWidth: 1, PixelHeight: -1})
	copy(r.Data, []float64{-5, 254.9, 300, math.NaN()})

	var buf bytes.Buffer
	require.NoError(t, EncodeGeoTIFF(&buf, r))
	got, err := DecodeGeoTIFF(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 254, 255, 0}, got.Data)
}

func TestGeoTIFF_CRS(t *testing.T) {
	tests := []struct {
		name string
		crs  CRS
	}{
		{"projected epsg", CRS{EPSG: 25830}},
		{"geographic epsg", CRS{EPSG: 4326}},
		{"wkt only", CRS{WKT: testWKT}},
		{"epsg and wkt", CRS{EPSG: 25830, WKT: testWKT}},
		{"none", CRS{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := sampleRaster(Float32)
			r.Georef.CRS = tt.crs

			var buf bytes.Buffer
			require.NoError(t, EncodeGeoTIFF(&buf, r))
			got, err := DecodeGeoTIFF(buf.Bytes())
			require.NoError(t, err)
			assert.Equal(t, tt.crs, got.Georef.CRS)
		})
	}
}

func TestGeoTIFF_UserDefinedCRSKeptVerbatim(t *testing.T) {
	// ETRS89 Transverse Mercator with a custom central meridian, described
	// only by projection parameter keys.
	keys := &GeoKeys{
		Directory: []uint16{
			1, 1, 0, 12,
			keyModelType, 0, 1, modelProjected,
			keyRasterType, 0, 1, rasterPixelIsPnt,
			keyCitation, tagGeoASCIIParams, 10, 0,
			keyGeographicType, 0, 1, 4258,
			keyProjectedCSType, 0, 1, userDefined,
			3074, 0, 1, userDefined, // ProjectionGeoKey
			3075, 0, 1, 1, // ProjCoordTransGeoKey: TransverseMercator
			3076, 0, 1, 9001, // ProjLinearUnitsGeoKey: metre
			3080, tagGeoDoubleParams, 1, 0, // ProjNatOriginLongGeoKey
			3082, tagGeoDoubleParams, 1, 1, // ProjFalseEastingGeoKey
			3083, tagGeoDoubleParams, 1, 2, // ProjFalseNorthingGeoKey
			3092, tagGeoDoubleParams, 1, 3, // ProjScaleAtNatOriginGeoKey
		},
		Doubles: []float64{-3, 500000, 0, 0.9996},
		ASCII:   "Custom TM|",
	}
	r := sampleRaster(Float64)
	r.Georef.CRS = CRS{GeoKeys: keys}
	assert.False(t, r.Georef.CRS.IsZero())

	var buf bytes.Buffer
	require.NoError(t, EncodeGeoTIFF(&buf, r))
	got, err := DecodeGeoTIFF(buf.Bytes())
	require.NoError(t, err)

	want := r.Georef
	wantKeys := *keys
	wantKeys.Directory = append([]uint16(nil), keys.Directory...)
	wantKeys.Directory[11] = rasterPixelIsArea
	want.CRS = CRS{GeoKeys: &wantKeys}
	if diff := cmp.Diff(want, got.Georef); diff != "" {
		t.Errorf("georef mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, rasterPixelIsPnt, int(keys.Directory[11]), "source keys are not modified")

	// A second write reproduces the same bytes.
	var again bytes.Buffer
	require.NoError(t, EncodeGeoTIFF(&again, got))
	assert.Equal(t, buf.Bytes(), again.Bytes())
}

func TestGeoTIFF_ExtraKeysKeepEPSG(t *testing.T) {
	r := sampleRaster(Float32)
	r.Georef.CRS = CRS{EPSG: 25830, GeoKeys: &GeoKeys{
		Directory: []uint16{
			1, 1, 0, 4,
			keyModelType, 0, 1, modelProjected,
			keyRasterType, 0, 1, rasterPixelIsArea,
			keyProjectedCSType, 0, 1, 25830,
			3076, 0, 1, 9001,
		},
	}}

	var buf bytes.Buffer
	require.NoError(t, EncodeGeoTIFF(&buf, r))
	got, err := DecodeGeoTIFF(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 25830, got.Georef.CRS.EPSG)
	require.NotNil(t, got.Georef.CRS.GeoKeys)
	assert.Equal(t, r.Georef.CRS.GeoKeys.Directory, got.Georef.CRS.GeoKeys.Directory)
	assert.Empty(t, got.Georef.CRS.GeoKeys.Doubles)
}

func TestGeoTIFF_RejectsInvalidRaster(t *testing.T) {
	r := sampleRaster(Byte)
	r.Data = r.Data[:5]
	err := EncodeGeoTIFF(&bytes.Buffer{}, r)
	assert.ErrorIs(t, err, ErrInvalidRaster)

	r = sampleRaster(Byte)
	r.Georef.PixelWidth = 0
	assert.ErrorIs(t, EncodeGeoTIFF(&bytes.Buffer{}, r), ErrInvalidRaster)
}

// bigEndianTIFF hand-assembles a 2x2 UInt16 TIFF in Motorola byte order
// georeferenced by a ModelTransformation matrix.
func bigEndianTIFF(t *testing.T, compression uint16, rotation float64) []byte {
	t.Helper()
	be := binary.BigEndian
	type entry struct {
		tag, typ uint16
		count    uint32
		value    uint32
	}
	entries := []entry{
		{tagImageWidth, typeShort, 1, 2 << 16},
		{tagImageLength, typeShort, 1, 2 << 16},
		{tagBitsPerSample, typeShort, 1, 16 << 16},
		{tagCompression, typeShort, 1, uint32(compression) << 16},
		{tagStripOffsets, typeLong, 1, 0},
		{tagSamplesPerPixel, typeShort, 1, 1 << 16},
		{tagRowsPerStrip, typeShort, 1, 2 << 16},
		{tagStripByteCounts, typeLong, 1, 8},
		{tagModelTransform, typeDouble, 16, 0},
	}
	ifdSize := 2 + 12*len(entries) + 4
	matrixOff := uint32(8 + ifdSize)
	pixelOff := matrixOff + 16*8
	entries[4].value = pixelOff
	entries[8].value = matrixOff

	var buf bytes.Buffer
	buf.WriteString("MM")
	_ = binary.Write(&buf, be, uint16(42))
	_ = binary.Write(&buf, be, uint32(8))
	_ = binary.Write(&buf, be, uint16(len(entries)))
	for _, e := range entries {
		_ = binary.Write(&buf, be, e.tag)
		_ = binary.Write(&buf, be, e.typ)
		_ = binary.Write(&buf, be, e.count)
		_ = binary.Write(&buf, be, e.value)
	}
	_ = binary.Write(&buf, be, uint32(0))
	matrix := []float64{
		0.5, rotation, 0, 1000,
		0, -0.5, 0, 2000,
		0, 0, 0, 0,
		0, 0, 0, 1,
	}
	for _, v := range matrix {
		_ = binary.Write(&buf, be, v)
	}
	for _, v := range []uint16{1, 2, 300, 65535} {
		_ = binary.Write(&buf, be, v)
	}
	return buf.Bytes()
}

func TestGeoTIFF_DecodeBigEndianTransform(t *testing.T) {
	r, err := DecodeGeoTIFF(bigEndianTIFF(t, compressionNone, 0))
	require.NoError(t, err)

	assert.Equal(t, UInt16, r.DataType)
	assert.Equal(t, []float64{1, 2, 300, 65535}, r.Data)
	want := Georef{OriginX: 1000, OriginY: 2000, PixelWidth: 0.5, PixelHeight: -0.5}
	if diff := cmp.Diff(want, r.Georef); diff != "" {
		t.Errorf("georef mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, r.HasNoData)
}

func TestGeoTIFF_DecodeUnsupported(t *testing.T) {
	_, err := DecodeGeoTIFF(bigEndianTIFF(t, 5, 0))
	assert.ErrorIs(t, err, ErrUnsupported, "LZW")

	_, err = DecodeGeoTIFF(bigEndianTIFF(t, compressionNone, 0.1))
	assert.ErrorIs(t, err, ErrUnsupported, "rotation")

	_, err = DecodeGeoTIFF([]byte("GIF89a.."))
	assert.ErrorIs(t, err, ErrUnsupported)

	good := bigEndianTIFF(t, compressionNone, 0)
	_, err = DecodeGeoTIFF(good[:len(good)-3])
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "truncated")
}

const sampleASC = `ncols 3
nrows 2
xllcenter 100.5
yllcenter 200.5
cellsize 1
NODATA_value -9999
1 2 3
4 -9999 6.5
`

func TestASCIIGrid_Decode(t *testing.T) {
	r, err := DecodeASCIIGrid([]byte(sampleASC))
	require.NoError(t, err)

	assert.Equal(t, 2, r.Rows)
	assert.Equal(t, 3, r.Cols)
	assert.Equal(t, []float64{1, 2, 3, 4, -9999, 6.5}, r.Data)
	assert.True(t, r.HasNoData)
	assert.Equal(t, -9999.0, r.NoData)
	assert.Equal(t, Georef{OriginX: 100, OriginY: 202, PixelWidth: 1, PixelHeight: -1}, r.Georef)
}

func TestASCIIGrid_RoundTrip(t *testing.T) {
	want := sampleRaster(Float64)
	want.Georef.CRS = CRS{}
	want.WithNoData(-99999)

	var buf bytes.Buffer
	require.NoError(t, EncodeASCIIGrid(&buf, want))
	assert.True(t, strings.HasPrefix(buf.String(), "ncols 4\nnrows 3\nxllcorner 440720.5\n"))

	got, err := DecodeASCIIGrid(buf.Bytes())
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestASCIIGrid_Errors(t *testing.T) {
	_, err := DecodeASCIIGrid([]byte("ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2 3\n"))
	assert.Error(t, err, "short data")

	_, err = DecodeASCIIGrid([]byte("ncols 1\nnrows 1\ncellsize 1\n1\n"))
	assert.ErrorIs(t, err, ErrUnsupported, "no lower-left reference")

	r := sampleRaster(Float64)
	r.Georef.PixelHeight = -3
	assert.ErrorIs(t, EncodeASCIIGrid(&bytes.Buffer{}, r), ErrUnsupported)
}

func TestStore_RoundTripThroughFileSystem(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	store := NewStore(mfs)

	dem := sampleRaster(Float64).WithNoData(-99999)
	dem.Georef.CRS.WKT = testWKT
	require.NoError(t, store.Write("/out/site_dem.tif", dem))
	got, err := store.Read("/out/site_dem.tif")
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(dem, got))

	asc := sampleRaster(Float64)
	asc.Georef.CRS = CRS{WKT: testWKT}
	require.NoError(t, store.Write("/out/site.asc", asc))
	assert.True(t, mfs.Exists("/out/site.prj"))
	got, err = store.Read("/out/site.asc")
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(asc, got))
}

func TestStore_Errors(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	store := NewStore(mfs)

	_, err := store.Read("/missing.tif")
	var ioErr *RasterIOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "read", ioErr.Op)
	assert.Equal(t, "/missing.tif", ioErr.Path)

	_, err = store.Read("/dem.png")
	require.True(t, errors.As(err, &ioErr))
	assert.ErrorIs(t, err, ErrUnsupported)

	require.NoError(t, mfs.WriteFile("/junk.tif", []byte("not a tiff"), 0644))
	_, err = store.Read("/junk.tif")
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "decode", ioErr.Op)

	err = store.Write("/x.jpg", sampleRaster(Byte))
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "encode", ioErr.Op)
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, FormatGeoTIFF, FormatOf("a/B.TIF"))
	assert.Equal(t, FormatGeoTIFF, FormatOf("b.tiff"))
	assert.Equal(t, FormatASCIIGrid, FormatOf("c.asc"))
	assert.Equal(t, FormatUnknown, FormatOf("d.las"))
}
