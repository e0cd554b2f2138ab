package l1points

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testScale   = 0.01
	testOffsetX = 1000.0
	testOffsetY = 2000.0
	// Format 1 records carry GPS time after the shared prefix.
	testRecordLen = 28
)

// writeTestLAS builds an uncompressed format 1 LAS file of the given minor
// version holding points.
func writeTestLAS(t *testing.T, minor byte, points []Point) string {
	t.Helper()
	le := binary.LittleEndian
	size := 227
	if minor >= 4 {
		size = headerSize14
	}

	h := make([]byte, size)
	copy(h, "LASF")
	h[24], h[25] = 1, minor
	copy(h[58:], "hillshader test")
	le.PutUint16(h[94:], uint16(size))
	le.PutUint32(h[96:], uint32(size))
	h[104] = 1
	le.PutUint16(h[105:], testRecordLen)
	if minor >= 4 {
		le.PutUint64(h[offCount:], uint64(len(points)))
	} else {
		le.PutUint32(h[offLegacyCount:], uint32(len(points)))
	}
	for i := 0; i < 3; i++ {
		putFloat64(h, offScale+8*i, testScale)
	}
	putFloat64(h, offOffset, testOffsetX)
	putFloat64(h, offOffset+8, testOffsetY)

	buf := bytes.NewBuffer(h)
	for i, p := range points {
		rec := make([]byte, testRecordLen)
		le.PutUint32(rec[0:], uint32(int32(math.Round((p.X-testOffsetX)/testScale))))
		le.PutUint32(rec[4:], uint32(int32(math.Round((p.Y-testOffsetY)/testScale))))
		le.PutUint32(rec[8:], uint32(int32(math.Round(p.Z/testScale))))
		le.PutUint16(rec[12:], p.Intensity)
		rec[14] = p.ReturnNumber&7 | (p.NumberOfReturns&7)<<3
		rec[15] = p.Classification
		putFloat64(rec, 20, float64(i))
		buf.Write(rec)
	}

	path := filepath.Join(t.TempDir(), "tile.las")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

var tilePoints = []Point{
	{X: 1000.25, Y: 2010.5, Z: 12.34, Intensity: 300, ReturnNumber: 1, NumberOfReturns: 2, Classification: ClassHighVegetation},
	{X: 1003.75, Y: 2001.25, Z: 9.87, Intensity: 120, ReturnNumber: 2, NumberOfReturns: 2, Classification: ClassGround},
	{X: 1001.5, Y: 2004, Z: 10.5, Intensity: 80, ReturnNumber: 1, NumberOfReturns: 1, Classification: 17},
	{X: 1002, Y: 2007.75, Z: 10.01, Intensity: 95, ReturnNumber: 1, NumberOfReturns: 1, Classification: ClassGround},
}

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestLAS_ReadPoints(t *testing.T) {
	for _, minor := range []byte{2, 4} {
		path := writeTestLAS(t, minor, tilePoints)

		c, err := LAS{}.ReadPoints(path)
		require.NoError(t, err, "LAS 1.%d", minor)
		assert.Equal(t, path, c.Source)
		if diff := cmp.Diff(tilePoints, c.Points, approx); diff != "" {
			t.Errorf("LAS 1.%d points mismatch (-want +got):\n%s", minor, diff)
		}
	}
}

func TestLAS_WriteSubsetRoundTrip(t *testing.T) {
	for _, minor := range []byte{2, 4} {
		src := writeTestLAS(t, minor, tilePoints)
		dst := filepath.Join(t.TempDir(), "ground.las")

		mask := []bool{false, true, false, true}
		require.NoError(t, LAS{}.WriteSubset(src, dst, mask))

		c, err := LAS{}.ReadPoints(dst)
		require.NoError(t, err)
		want := []Point{tilePoints[1], tilePoints[3]}
		if diff := cmp.Diff(want, c.Points, approx); diff != "" {
			t.Errorf("LAS 1.%d subset mismatch (-want +got):\n%s", minor, diff)
		}
		for _, p := range c.Points {
			assert.Equal(t, ClassGround, p.Classification)
		}

		raw, err := os.ReadFile(dst)
		require.NoError(t, err)
		le := binary.LittleEndian
		assert.Equal(t, "hillshader test", string(bytes.TrimRight(raw[58:90], "\x00")))
		assert.Equal(t, uint32(2), le.Uint32(raw[offLegacyCount:]))
		assert.Equal(t, uint32(1), le.Uint32(raw[offLegacyByReturn:]), "first returns")
		assert.Equal(t, uint32(1), le.Uint32(raw[offLegacyByReturn+4:]), "second returns")
		assert.InDelta(t, 1003.75, getFloat64(raw, offBounds), 1e-9, "max x")
		assert.InDelta(t, 1002.0, getFloat64(raw, offBounds+8), 1e-9, "min x")
		assert.InDelta(t, 2007.75, getFloat64(raw, offBounds+16), 1e-9, "max y")
		assert.InDelta(t, 9.87, getFloat64(raw, offBounds+40), 1e-9, "min z")
		if minor >= 4 {
			assert.Equal(t, uint64(2), le.Uint64(raw[offCount:]))
		}
		info, err := os.Stat(src)
		require.NoError(t, err)
		assert.Equal(t, info.Size()-2*testRecordLen, int64(len(raw)))
	}
}

func TestLAS_WriteSubsetMaskMismatch(t *testing.T) {
	src := writeTestLAS(t, 2, tilePoints)
	err := LAS{}.WriteSubset(src, filepath.Join(t.TempDir(), "out.las"), []bool{true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mask has 1 entries for 4 points")
}

func TestLAS_Unsupported(t *testing.T) {
	dir := t.TempDir()

	truncated := filepath.Join(dir, "truncated.las")
	require.NoError(t, os.WriteFile(truncated, []byte("LASF"), 0644))
	_, err := LAS{}.ReadPoints(truncated)
	assert.ErrorIs(t, err, ErrUnsupportedLAS)

	raw, err := os.ReadFile(writeTestLAS(t, 2, tilePoints))
	require.NoError(t, err)
	raw[104] = 6
	extended := filepath.Join(dir, "extended.las")
	require.NoError(t, os.WriteFile(extended, raw, 0644))
	_, err = LAS{}.ReadPoints(extended)
	assert.ErrorIs(t, err, ErrUnsupportedLAS)
}
