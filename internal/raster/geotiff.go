package raster

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// TIFF tags.
const (
	tagImageWidth        = 256
	tagImageLength       = 257
	tagBitsPerSample     = 258
	tagCompression       = 259
	tagPhotometric       = 262
	tagStripOffsets      = 273
	tagSamplesPerPixel   = 277
	tagRowsPerStrip      = 278
	tagStripByteCounts   = 279
	tagPlanarConfig      = 284
	tagTileWidth         = 322
	tagSampleFormat      = 339
	tagModelPixelScale   = 33550
	tagModelTiepoint     = 33922
	tagModelTransform    = 34264
	tagGeoKeyDirectory   = 34735
	tagGeoDoubleParams   = 34736
	tagGeoASCIIParams    = 34737
	tagGDALNoData        = 42113
	sampleFormatUint     = 1
	sampleFormatInt      = 2
	sampleFormatIEEEFP   = 3
	compressionNone      = 1
	photometricBlackZero = 1
)

// GeoKeys.
const (
	keyModelType       = 1024
	keyRasterType      = 1025
	keyCitation        = 1026
	keyGeographicType  = 2048
	keyGeogCitation    = 2049
	keyProjectedCSType = 3072
	keyPCSCitation     = 3073

	modelProjected   = 1
	modelGeographic  = 2
	userDefined       = 32767
	rasterPixelIsArea = 1
	rasterPixelIsPnt  = 2

	esriPEPrefix = "ESRI PE String = "
)

// TIFF field types.
const (
	typeByte      = 1
	typeASCII     = 2
	typeShort     = 3
	typeLong      = 4
	typeRational  = 5
	typeSByte     = 6
	typeUndefined = 7
	typeSShort    = 8
	typeSLong     = 9
	typeSRational = 10
	typeFloat     = 11
	typeDouble    = 12
)

var typeSizes = map[uint16]int{
	typeByte: 1, typeASCII: 1, typeShort: 2, typeLong: 4, typeRational: 8,
	typeSByte: 1, typeUndefined: 1, typeSShort: 2, typeSLong: 4, typeSRational: 8,
	typeFloat: 4, typeDouble: 8,
}

func (d DataType) tiffLayout() (bits, format uint16) {
	switch d {
	case Byte:
		return 8, sampleFormatUint
	case UInt16:
		return 16, sampleFormatUint
	case Int16:
		return 16, sampleFormatInt
	case UInt32:
		return 32, sampleFormatUint
	case Int32:
		return 32, sampleFormatInt
	case Float32:
		return 32, sampleFormatIEEEFP
	case Float64:
		return 64, sampleFormatIEEEFP
	}
	return 0, 0
}

func dataTypeFromTIFF(bits, format uint16) (DataType, bool) {
	switch {
	case format == sampleFormatUint && bits == 8:
		return Byte, true
	case format == sampleFormatUint && bits == 16:
		return UInt16, true
	case format == sampleFormatInt && bits == 16:
		return Int16, true
	case format == sampleFormatUint && bits == 32:
		return UInt32, true
	case format == sampleFormatInt && bits == 32:
		return Int32, true
	case format == sampleFormatIEEEFP && bits == 32:
		return Float32, true
	case format == sampleFormatIEEEFP && bits == 64:
		return Float64, true
	}
	return 0, false
}

type ifdEntry struct {
	tag    uint16
	typ    uint16
	count  uint32
	data   []byte
	offset uint32
}

var le = binary.LittleEndian

func shortEntry(tag uint16, vals ...uint16) ifdEntry {
	b := make([]byte, 2*len(vals))
	for i, v := range vals {
		le.PutUint16(b[2*i:], v)
	}
	return ifdEntry{tag: tag, typ: typeShort, count: uint32(len(vals)), data: b}
}

func longEntry(tag uint16, vals ...uint32) ifdEntry {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		le.PutUint32(b[4*i:], v)
	}
	return ifdEntry{tag: tag, typ: typeLong, count: uint32(len(vals)), data: b}
}

func doubleEntry(tag uint16, vals ...float64) ifdEntry {
	b := make([]byte, 8*len(vals))
	for i, v := range vals {
		le.PutUint64(b[8*i:], math.Float64bits(v))
	}
	return ifdEntry{tag: tag, typ: typeDouble, count: uint32(len(vals)), data: b}
}

func asciiEntry(tag uint16, s string) ifdEntry {
	b := append([]byte(s), 0)
	return ifdEntry{tag: tag, typ: typeASCII, count: uint32(len(b)), data: b}
}

// modelledKeys are the GeoKeys that an EPSG code plus a WKT citation fully
// describe. A directory holding any other key is kept verbatim.
var modelledKeys = map[uint16]bool{
	keyModelType:       true,
	keyRasterType:      true,
	keyCitation:        true,
	keyGeographicType:  true,
	keyGeogCitation:    true,
	keyProjectedCSType: true,
	keyPCSCitation:     true,
}

// geoKeys builds the GeoKeyDirectory and the GeoDoubleParams and
// GeoAsciiParams it refers to.
func geoKeys(g Georef) ([]uint16, []float64, string) {
	if k := g.CRS.GeoKeys; k != nil {
		dir := append([]uint16(nil), k.Directory...)
		// The tiepoint is always written for the pixel corner.
		for i := 4; i+3 < len(dir); i += 4 {
			if dir[i] == keyRasterType && dir[i+1] == 0 {
				dir[i+3] = rasterPixelIsArea
			}
		}
		return dir, k.Doubles, k.ASCII
	}

	type key struct{ id, loc, count, value uint16 }
	var keys []key
	var ascii strings.Builder

	crs := g.CRS
	switch {
	case crs.EPSG != 0 && crs.Geographic():
		keys = append(keys, key{keyModelType, 0, 1, modelGeographic})
	case crs.EPSG != 0:
		keys = append(keys, key{keyModelType, 0, 1, modelProjected})
	case crs.WKT != "":
		keys = append(keys, key{keyModelType, 0, 1, userDefined})
	}
	keys = append(keys, key{keyRasterType, 0, 1, rasterPixelIsArea})
	if crs.WKT != "" {
		citation := esriPEPrefix + crs.WKT + "|"
		keys = append(keys, key{keyCitation, tagGeoASCIIParams, uint16(len(citation)), 0})
		ascii.WriteString(citation)
	}
	if crs.EPSG != 0 && crs.EPSG <= math.MaxUint16 {
		if crs.Geographic() {
			keys = append(keys, key{keyGeographicType, 0, 1, uint16(crs.EPSG)})
		} else {
			keys = append(keys, key{keyProjectedCSType, 0, 1, uint16(crs.EPSG)})
		}
	}

	dir := []uint16{1, 1, 0, uint16(len(keys))}
	for _, k := range keys {
		dir = append(dir, k.id, k.loc, k.count, k.value)
	}
	return dir, nil, ascii.String()
}

// EncodeGeoTIFF writes r as a little-endian, single-strip, uncompressed
// GeoTIFF.
func EncodeGeoTIFF(w io.Writer, r *Raster) error {
	if err := r.validate(); err != nil {
		return err
	}
	bits, format := r.DataType.tiffLayout()
	pixels := encodeSamples(r)
	if uint64(len(pixels)) > math.MaxUint32-1<<20 {
		return fmt.Errorf("%w: %d bytes exceeds classic TIFF", ErrUnsupported, len(pixels))
	}

	g := r.Georef
	entries := []ifdEntry{
		longEntry(tagImageWidth, uint32(r.Cols)),
		longEntry(tagImageLength, uint32(r.Rows)),
		shortEntry(tagBitsPerSample, bits),
		shortEntry(tagCompression, compressionNone),
		shortEntry(tagPhotometric, photometricBlackZero),
		longEntry(tagStripOffsets, 0),
		shortEntry(tagSamplesPerPixel, 1),
		longEntry(tagRowsPerStrip, uint32(r.Rows)),
		longEntry(tagStripByteCounts, uint32(len(pixels))),
		shortEntry(tagPlanarConfig, 1),
		shortEntry(tagSampleFormat, format),
		doubleEntry(tagModelPixelScale, g.PixelWidth, -g.PixelHeight, 0),
		doubleEntry(tagModelTiepoint, 0, 0, 0, g.OriginX, g.OriginY, 0),
	}
	dir, doubles, ascii := geoKeys(g)
	entries = append(entries, shortEntry(tagGeoKeyDirectory, dir...))
	if len(doubles) > 0 {
		entries = append(entries, doubleEntry(tagGeoDoubleParams, doubles...))
	}
	if ascii != "" {
		entries = append(entries, asciiEntry(tagGeoASCIIParams, ascii))
	}
	if r.HasNoData {
		entries = append(entries, asciiEntry(tagGDALNoData, formatNoData(r.NoData)))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	offset := uint32(8 + 2 + 12*len(entries) + 4)
	for i := range entries {
		if len(entries[i].data) > 4 {
			entries[i].offset = offset
			offset += uint32(len(entries[i].data))
			offset += offset & 1
		}
	}
	for i := range entries {
		if entries[i].tag == tagStripOffsets {
			le.PutUint32(entries[i].data, offset)
		}
	}

	var buf bytes.Buffer
	buf.Grow(int(offset) + len(pixels))
	buf.WriteString("II")
	_ = binary.Write(&buf, le, uint16(42))
	_ = binary.Write(&buf, le, uint32(8))
	_ = binary.Write(&buf, le, uint16(len(entries)))
	for _, e := range entries {
		_ = binary.Write(&buf, le, e.tag)
		_ = binary.Write(&buf, le, e.typ)
		_ = binary.Write(&buf, le, e.count)
		if len(e.data) > 4 {
			_ = binary.Write(&buf, le, e.offset)
			continue
		}
		var inline [4]byte
		copy(inline[:], e.data)
		buf.Write(inline[:])
	}
	_ = binary.Write(&buf, le, uint32(0))
	for _, e := range entries {
		if len(e.data) > 4 {
			buf.Write(e.data)
			if buf.Len()&1 == 1 {
				buf.WriteByte(0)
			}
		}
	}
	buf.Write(pixels)

	_, err := w.Write(buf.Bytes())
	return err
}

func formatNoData(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func encodeSamples(r *Raster) []byte {
	size := r.DataType.Size()
	out := make([]byte, size*len(r.Data))
	for i, v := range r.Data {
		b := out[i*size:]
		switch r.DataType {
		case Byte:
			b[0] = uint8(clampTo(v, 0, math.MaxUint8))
		case UInt16:
			le.PutUint16(b, uint16(clampTo(v, 0, math.MaxUint16)))
		case Int16:
			le.PutUint16(b, uint16(int16(clampTo(v, math.MinInt16, math.MaxInt16))))
		case UInt32:
			le.PutUint32(b, uint32(clampTo(v, 0, math.MaxUint32)))
		case Int32:
			le.PutUint32(b, uint32(int32(clampTo(v, math.MinInt32, math.MaxInt32))))
		case Float32:
			le.PutUint32(b, math.Float32bits(float32(v)))
		case Float64:
			le.PutUint64(b, math.Float64bits(v))
		}
	}
	return out
}

// tiffReader decodes the first IFD of a classic TIFF held in memory.
type tiffReader struct {
	b     []byte
	order binary.ByteOrder
	tags  map[uint16]rawEntry
}

type rawEntry struct {
	typ   uint16
	count uint32
	value []byte
}

func errTruncated(what string) error {
	return fmt.Errorf("truncated TIFF reading %s", what)
}

func (t *tiffReader) span(off, n uint64, what string) ([]byte, error) {
	if off+n < off || off+n > uint64(len(t.b)) {
		return nil, errTruncated(what)
	}
	return t.b[off : off+n], nil
}

func (t *tiffReader) parse() error {
	if len(t.b) < 8 {
		return errTruncated("header")
	}
	switch string(t.b[:2]) {
	case "II":
		t.order = binary.LittleEndian
	case "MM":
		t.order = binary.BigEndian
	default:
		return fmt.Errorf("%w: not a TIFF file", ErrUnsupported)
	}
	switch magic := t.order.Uint16(t.b[2:]); magic {
	case 42:
	case 43:
		return fmt.Errorf("%w: BigTIFF", ErrUnsupported)
	default:
		return fmt.Errorf("%w: bad TIFF magic %d", ErrUnsupported, magic)
	}

	ifd := uint64(t.order.Uint32(t.b[4:]))
	head, err := t.span(ifd, 2, "IFD")
	if err != nil {
		return err
	}
	n := uint64(t.order.Uint16(head))
	body, err := t.span(ifd+2, 12*n, "IFD entries")
	if err != nil {
		return err
	}

	t.tags = make(map[uint16]rawEntry, n)
	for i := uint64(0); i < n; i++ {
		e := body[12*i : 12*i+12]
		tag := t.order.Uint16(e[0:])
		typ := t.order.Uint16(e[2:])
		count := t.order.Uint32(e[4:])
		size, ok := typeSizes[typ]
		if !ok {
			continue
		}
		total := uint64(size) * uint64(count)
		var value []byte
		if total <= 4 {
			value = e[8 : 8+total]
		} else {
			value, err = t.span(uint64(t.order.Uint32(e[8:])), total, fmt.Sprintf("tag %d", tag))
			if err != nil {
				return err
			}
		}
		t.tags[tag] = rawEntry{typ: typ, count: count, value: value}
	}
	return nil
}

// ints returns an integer-typed tag's values.
func (t *tiffReader) ints(tag uint16) ([]uint64, bool) {
	e, ok := t.tags[tag]
	if !ok {
		return nil, false
	}
	out := make([]uint64, e.count)
	for i := range out {
		switch e.typ {
		case typeByte, typeUndefined:
			out[i] = uint64(e.value[i])
		case typeShort:
			out[i] = uint64(t.order.Uint16(e.value[2*i:]))
		case typeLong:
			out[i] = uint64(t.order.Uint32(e.value[4*i:]))
		default:
			return nil, false
		}
	}
	return out, true
}

func (t *tiffReader) int1(tag uint16, def uint64) uint64 {
	v, ok := t.ints(tag)
	if !ok || len(v) == 0 {
		return def
	}
	return v[0]
}

func (t *tiffReader) doubles(tag uint16) ([]float64, bool) {
	e, ok := t.tags[tag]
	if !ok {
		return nil, false
	}
	out := make([]float64, e.count)
	for i := range out {
		switch e.typ {
		case typeDouble:
			out[i] = math.Float64frombits(t.order.Uint64(e.value[8*i:]))
		case typeFloat:
			out[i] = float64(math.Float32frombits(t.order.Uint32(e.value[4*i:])))
		default:
			return nil, false
		}
	}
	return out, true
}

func (t *tiffReader) ascii(tag uint16) (string, bool) {
	e, ok := t.tags[tag]
	if !ok || e.typ != typeASCII {
		return "", false
	}
	return strings.TrimRight(string(e.value), "\x00"), true
}

// DecodeGeoTIFF reads the first band of an uncompressed, stripped GeoTIFF.
func DecodeGeoTIFF(b []byte) (*Raster, error) {
	t := &tiffReader{b: b}
	if err := t.parse(); err != nil {
		return nil, err
	}

	cols := int(t.int1(tagImageWidth, 0))
	rows := int(t.int1(tagImageLength, 0))
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: missing image dimensions", ErrUnsupported)
	}
	if c := t.int1(tagCompression, compressionNone); c != compressionNone {
		return nil, fmt.Errorf("%w: compression %d", ErrUnsupported, c)
	}
	if _, tiled := t.tags[tagTileWidth]; tiled {
		return nil, fmt.Errorf("%w: tiled layout", ErrUnsupported)
	}
	spp := t.int1(tagSamplesPerPixel, 1)
	if spp != 1 && t.int1(tagPlanarConfig, 1) != 1 {
		return nil, fmt.Errorf("%w: planar multi-band layout", ErrUnsupported)
	}
	bits := uint16(t.int1(tagBitsPerSample, 1))
	format := uint16(t.int1(tagSampleFormat, sampleFormatUint))
	dt, ok := dataTypeFromTIFF(bits, format)
	if !ok {
		return nil, fmt.Errorf("%w: %d-bit sample format %d", ErrUnsupported, bits, format)
	}

	offsets, ok := t.ints(tagStripOffsets)
	if !ok {
		return nil, fmt.Errorf("%w: missing strip offsets", ErrUnsupported)
	}
	counts, ok := t.ints(tagStripByteCounts)
	if !ok || len(counts) != len(offsets) {
		return nil, fmt.Errorf("%w: missing strip byte counts", ErrUnsupported)
	}

	size := dt.Size()
	pixelStride := size * int(spp)
	need := rows * cols * pixelStride
	samples := make([]byte, 0, need)
	for i, off := range offsets {
		strip, err := t.span(off, counts[i], fmt.Sprintf("strip %d", i))
		if err != nil {
			return nil, err
		}
		samples = append(samples, strip...)
	}
	if len(samples) < need {
		return nil, errTruncated("pixel data")
	}

	r := &Raster{Rows: rows, Cols: cols, DataType: dt, Data: make([]float64, rows*cols)}
	for i := range r.Data {
		r.Data[i] = decodeSample(t.order, dt, samples[i*pixelStride:])
	}

	if s, ok := t.ascii(tagGDALNoData); ok {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			r.WithNoData(v)
		}
	}
	geo, err := t.georef()
	if err != nil {
		return nil, err
	}
	r.Georef = geo
	return r, nil
}

func decodeSample(order binary.ByteOrder, dt DataType, b []byte) float64 {
	switch dt {
	case Byte:
		return float64(b[0])
	case UInt16:
		return float64(order.Uint16(b))
	case Int16:
		return float64(int16(order.Uint16(b)))
	case UInt32:
		return float64(order.Uint32(b))
	case Int32:
		return float64(int32(order.Uint32(b)))
	case Float32:
		return float64(math.Float32frombits(order.Uint32(b)))
	case Float64:
		return math.Float64frombits(order.Uint64(b))
	}
	return math.NaN()
}

func (t *tiffReader) georef() (Georef, error) {
	var g Georef
	if m, ok := t.doubles(tagModelTransform); ok && len(m) >= 16 {
		if m[1] != 0 || m[4] != 0 {
			return g, fmt.Errorf("%w: rotated model transformation", ErrUnsupported)
		}
		g.PixelWidth, g.OriginX = m[0], m[3]
		g.PixelHeight, g.OriginY = m[5], m[7]
	} else {
		scale, ok1 := t.doubles(tagModelPixelScale)
		tie, ok2 := t.doubles(tagModelTiepoint)
		if ok1 && ok2 && len(scale) >= 2 && len(tie) >= 6 {
			g.PixelWidth = scale[0]
			g.PixelHeight = -scale[1]
			g.OriginX = tie[3] - tie[0]*g.PixelWidth
			g.OriginY = tie[4] - tie[1]*g.PixelHeight
		} else {
			g.PixelWidth, g.PixelHeight = 1, -1
		}
	}

	dir, ok := t.ints(tagGeoKeyDirectory)
	if !ok || len(dir) < 4 {
		return g, nil
	}
	ascii, _ := t.ascii(tagGeoASCIIParams)
	_, verbatim := t.tags[tagGeoDoubleParams]
	var geogType, projType uint64
	n := int(dir[3])
	for i := 0; i < n && 4+4*i+3 < len(dir); i++ {
		id, loc, count, value := dir[4+4*i], dir[4+4*i+1], dir[4+4*i+2], dir[4+4*i+3]
		if !modelledKeys[uint16(id)] {
			verbatim = true
		}
		switch id {
		case keyRasterType:
			if value == rasterPixelIsPnt {
				g.OriginX -= g.PixelWidth / 2
				g.OriginY -= g.PixelHeight / 2
			}
		case keyGeographicType, keyProjectedCSType:
			if loc != 0 || value == userDefined {
				verbatim = true
				continue
			}
			if id == keyProjectedCSType {
				projType = value
			} else {
				geogType = value
			}
		case keyCitation, keyGeogCitation, keyPCSCitation:
			if loc != tagGeoASCIIParams || int(value+count) > len(ascii) {
				continue
			}
			citation := strings.TrimSuffix(ascii[value:value+count], "|")
			if strings.HasPrefix(citation, esriPEPrefix) {
				g.CRS.WKT = strings.TrimPrefix(citation, esriPEPrefix)
			}
		}
	}

	switch {
	case verbatim:
		keys := make([]uint16, len(dir))
		for i, v := range dir {
			keys[i] = uint16(v)
		}
		doubles, _ := t.doubles(tagGeoDoubleParams)
		g.CRS.GeoKeys = &GeoKeys{Directory: keys, Doubles: doubles, ASCII: ascii}
		if projType != 0 {
			g.CRS.EPSG = int(projType)
		}
	case projType != 0:
		g.CRS.EPSG = int(projType)
	case geogType != 0:
		g.CRS.EPSG = int(geogType)
	}
	return g, nil
}
