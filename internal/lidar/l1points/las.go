package l1points

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/jblindsay/go-spatial/geospatialfiles/lidar"
)

// Reader loads a point cloud from a file path.
type Reader interface {
	ReadPoints(path string) (*PointCloud, error)
}

// Writer persists the points of src selected by mask to dst, keeping the
// source header (scale, offset, point format, projection VLRs).
type Writer interface {
	WriteSubset(src, dst string, mask []bool) error
}

// ErrUnsupportedLAS marks LAS content the adapter cannot read, such as a
// damaged header or the extended point formats 6 to 10.
var ErrUnsupportedLAS = errors.New("unsupported las")

// Byte offsets into the public header block.
const (
	offLegacyCount    = 107
	offLegacyByReturn = 111
	offScale          = 131
	offOffset         = 155
	offBounds         = 179
	offWaveformStart  = 227
	offEVLRStart      = 235
	offEVLRCount      = 243
	offCount          = 247
	offByReturn       = 255

	headerSize13 = 235
	headerSize14 = 375

	// Formats 0 to 5 share this record prefix, which decodes into
	// lidar.PointData.
	pointPrefixSize = 20
)

// LAS reads and writes uncompressed .las files. Headers are parsed with the
// go-spatial lidar package; subsets are written by copying the source header
// and VLR block and patching the counts and bounds. Compressed .laz input
// must be expanded by an external laszip step first.
type LAS struct{}

type lasLayout struct {
	minor         byte
	recordLen     int
	count         int
	scale, offset [3]float64
}

// lasFile is an open LAS file positioned at its first point record.
type lasFile struct {
	f      *os.File
	r      *bufio.Reader
	layout lasLayout
	header []byte // everything before the point records
}

func readHeader(path string) (h lidar.LasHeader, err error) {
	if _, err := os.Stat(path); err != nil {
		return h, err
	}
	// go-spatial panics on unreadable or unknown-version headers.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrUnsupportedLAS, r)
		}
	}()
	lf, err := lidar.CreateFromFile(path)
	if err != nil {
		return h, err
	}
	defer lf.Close()
	return lf.Header, nil
}

func openLAS(path string) (*lasFile, error) {
	h, err := readHeader(path)
	if err != nil {
		return nil, err
	}
	switch {
	case h.FileSignature != "LASF":
		return nil, fmt.Errorf("%w: signature %q", ErrUnsupportedLAS, h.FileSignature)
	case h.PointFormatID > 5:
		return nil, fmt.Errorf("%w: point format %d", ErrUnsupportedLAS, h.PointFormatID)
	case int(h.PointRecordLength) < pointPrefixSize:
		return nil, fmt.Errorf("%w: point record length %d", ErrUnsupportedLAS, h.PointRecordLength)
	case int(h.OffsetToPoints) < offWaveformStart:
		return nil, fmt.Errorf("%w: offset to points %d", ErrUnsupportedLAS, h.OffsetToPoints)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	header := make([]byte, h.OffsetToPoints)
	if _, err := io.ReadFull(f, header); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: short header: %v", ErrUnsupportedLAS, err)
	}

	layout := lasLayout{
		minor:     h.VersionMinor,
		recordLen: int(h.PointRecordLength),
		count:     int(h.NumberPoints),
		scale:     [3]float64{h.XScaleFactor, h.YScaleFactor, h.ZScaleFactor},
		offset:    [3]float64{h.XOffset, h.YOffset, h.ZOffset},
	}
	if h.VersionMinor >= 4 {
		// go-spatial reads seven legacy return counts from a 1.4 header;
		// the scale block follows five.
		for i := 0; i < 3; i++ {
			layout.scale[i] = getFloat64(header, offScale+8*i)
			layout.offset[i] = getFloat64(header, offOffset+8*i)
		}
		if layout.count == 0 && len(header) >= offCount+8 {
			layout.count = int(binary.LittleEndian.Uint64(header[offCount:]))
		}
	}
	return &lasFile{f: f, r: bufio.NewReader(f), layout: layout, header: header}, nil
}

func (lf *lasFile) Close() error { return lf.f.Close() }

// next reads the following raw record into rec and decodes it.
func (lf *lasFile) next(rec []byte) (Point, error) {
	if _, err := io.ReadFull(lf.r, rec); err != nil {
		return Point{}, err
	}
	var pd lidar.PointData
	if err := binary.Read(bytes.NewReader(rec[:pointPrefixSize]), binary.LittleEndian, &pd); err != nil {
		return Point{}, err
	}
	l := lf.layout
	return Point{
		X:               float64(pd.X)*l.scale[0] + l.offset[0],
		Y:               float64(pd.Y)*l.scale[1] + l.offset[1],
		Z:               float64(pd.Z)*l.scale[2] + l.offset[2],
		Intensity:       pd.Intensity,
		ReturnNumber:    pd.BitField.ReturnNumber(),
		NumberOfReturns: pd.BitField.NumberOfReturns(),
		// The legacy class field keeps five bits for the code.
		Classification: uint8(pd.ClassField) & 0x1F,
	}, nil
}

// ReadPoints reads every point record of a LAS file, applying the header
// scale and offset.
func (LAS) ReadPoints(path string) (*PointCloud, error) {
	lf, err := openLAS(path)
	if err != nil {
		return nil, fmt.Errorf("open las %s: %w", path, err)
	}
	defer lf.Close()

	n := lf.layout.count
	points := make([]Point, 0, n)
	rec := make([]byte, lf.layout.recordLen)
	for i := 0; i < n; i++ {
		p, err := lf.next(rec)
		if err != nil {
			return nil, fmt.Errorf("read point %d of %s: %w", i, path, err)
		}
		points = append(points, p)
	}
	return &PointCloud{Source: path, Points: points}, nil
}

// subsetStats accumulates the header fields a subset must rewrite.
type subsetStats struct {
	n        int
	byReturn [15]uint64
	min, max [3]float64
}

func (s *subsetStats) add(p Point) {
	v := [3]float64{p.X, p.Y, p.Z}
	for i := range v {
		if s.n == 0 || v[i] < s.min[i] {
			s.min[i] = v[i]
		}
		if s.n == 0 || v[i] > s.max[i] {
			s.max[i] = v[i]
		}
	}
	if p.ReturnNumber >= 1 && int(p.ReturnNumber) <= len(s.byReturn) {
		s.byReturn[p.ReturnNumber-1]++
	}
	s.n++
}

// patch rewrites the counts and bounds of a copied header. Extended VLRs
// and waveform packets stay behind, so their offsets are cleared.
func (s *subsetStats) patch(header []byte, minor byte) {
	le := binary.LittleEndian
	legacy := uint32(s.n)
	if uint64(s.n) > math.MaxUint32 {
		legacy = 0
	}
	le.PutUint32(header[offLegacyCount:], legacy)
	for i := 0; i < 5; i++ {
		le.PutUint32(header[offLegacyByReturn+4*i:], uint32(s.byReturn[i]))
	}
	for i := 0; i < 3; i++ {
		putFloat64(header, offBounds+16*i, s.max[i])
		putFloat64(header, offBounds+16*i+8, s.min[i])
	}
	if minor >= 3 && len(header) >= headerSize13 {
		le.PutUint64(header[offWaveformStart:], 0)
	}
	if minor >= 4 && len(header) >= headerSize14 {
		le.PutUint64(header[offEVLRStart:], 0)
		le.PutUint32(header[offEVLRCount:], 0)
		le.PutUint64(header[offCount:], uint64(s.n))
		for i, c := range s.byReturn {
			le.PutUint64(header[offByReturn+8*i:], c)
		}
	}
}

// WriteSubset copies the masked records of src into a new LAS file at dst.
func (LAS) WriteSubset(src, dst string, mask []bool) error {
	in, err := openLAS(src)
	if err != nil {
		return fmt.Errorf("open las %s: %w", src, err)
	}
	defer in.Close()

	if in.layout.count != len(mask) {
		return fmt.Errorf("mask has %d entries for %d points in %s", len(mask), in.layout.count, src)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create las %s: %w", dst, err)
	}
	header := append([]byte(nil), in.header...)
	w := bufio.NewWriter(out)
	if _, err := w.Write(header); err != nil {
		out.Close()
		return fmt.Errorf("write header to %s: %w", dst, err)
	}

	var stats subsetStats
	rec := make([]byte, in.layout.recordLen)
	for i, keep := range mask {
		p, err := in.next(rec)
		if err != nil {
			out.Close()
			return fmt.Errorf("read point %d of %s: %w", i, src, err)
		}
		if !keep {
			continue
		}
		if _, err := w.Write(rec); err != nil {
			out.Close()
			return fmt.Errorf("write point %d to %s: %w", i, dst, err)
		}
		stats.add(p)
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return fmt.Errorf("write las %s: %w", dst, err)
	}

	stats.patch(header, in.layout.minor)
	if _, err := out.WriteAt(header, 0); err != nil {
		out.Close()
		return fmt.Errorf("write header to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close las %s: %w", dst, err)
	}
	return nil
}

func getFloat64(b []byte, off int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b[off:]))
}

func putFloat64(b []byte, off int, v float64) {
	binary.LittleEndian.PutUint64(b[off:], math.Float64bits(v))
}
