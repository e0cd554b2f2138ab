package testutil

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/hillshader/internal/fsutil"
	"github.com/banshee-data/hillshader/internal/lidar/l1points"
)

func TestAssertNoError(t *testing.T) {
	t.Parallel()
	AssertNoError(t, nil)
}

func TestAssertError(t *testing.T) {
	t.Parallel()
	AssertError(t, errors.New("test error"))
}

func TestRampDEM(t *testing.T) {
	r := RampDEM(4, 5, 2)
	assert.Equal(t, 4, r.Rows)
	assert.Equal(t, 5, r.Cols)
	assert.Equal(t, 100.0, r.At(3, 0))
	assert.Equal(t, 108.0, r.At(0, 4))
	assert.True(t, r.HasNoData)
	assert.Equal(t, SiteGeoref, r.Georef)
}

func TestMixedDEM_HasRelief(t *testing.T) {
	r := MixedDEM(50, 60)
	lo, hi := r.Data[0], r.Data[0]
	for _, v := range r.Data {
		lo, hi = min(lo, v), max(hi, v)
	}
	assert.Greater(t, hi-lo, 50.0)
}

func TestSurveyCloud_Mix(t *testing.T) {
	c := SurveyCloud("site.las", 10, 10, 1, func(x, y float64) float64 { return x })
	var ground, canopy int
	for _, p := range c.Points {
		switch p.Classification {
		case l1points.ClassGround:
			ground++
			assert.Equal(t, p.NumberOfReturns, p.ReturnNumber, "ground is always the last return")
		default:
			canopy++
			assert.Equal(t, uint8(1), p.ReturnNumber)
		}
	}
	assert.Equal(t, 121, ground)
	assert.Equal(t, 41, canopy)
}

func TestPointStore(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	store := NewPointStore(mfs)
	store.Add("/in/site.las", UnclassifiedCloud("site.las", 5))
	assert.True(t, mfs.Exists("/in/site.las"))

	c, err := store.ReadPoints("/in/site.las")
	require.NoError(t, err)
	assert.Equal(t, 5, c.Len())
	assert.Equal(t, "/in/site.las", c.Source)

	_, err = store.ReadPoints("/in/other.las")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	require.NoError(t, store.WriteSubset("/in/site.las", "/out/sub.las", []bool{true, false, true, false, false}))
	assert.Equal(t, []SubsetWrite{{Src: "/in/site.las", Dst: "/out/sub.las", Count: 2}}, store.Written)
	assert.True(t, mfs.Exists("/out/sub.las"))
	sub, err := store.ReadPoints("/out/sub.las")
	require.NoError(t, err)
	assert.Equal(t, 2, sub.Len())

	assert.Error(t, store.WriteSubset("/in/site.las", "/out/bad.las", []bool{true}))
}
