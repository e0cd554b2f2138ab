package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/hillshader/internal/db"
	"github.com/banshee-data/hillshader/internal/lidar/l2classify"
	"github.com/banshee-data/hillshader/internal/lidar/l3grid"
	"github.com/banshee-data/hillshader/internal/raster"
	"github.com/banshee-data/hillshader/internal/testutil"
)

const exampleConfig = "../../config/hillshade.example.yaml"

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	o, inputs, err := parseArgs([]string{
		"-config", exampleConfig,
		"-pixel-size", "2",
		"-mode", "terrain",
		"-keep-partials=false",
		"a.las", "b.tif",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.las", "b.tif"}, inputs)

	cfg, err := loadConfig(o)
	require.NoError(t, err)
	assert.Equal(t, 2.0, cfg.GetPixelSize())
	assert.Equal(t, l2classify.ModeTerrain, cfg.GetClassificationMode())
	assert.False(t, cfg.GetKeepPartials())

	// Untouched settings come from the file.
	assert.Equal(t, l3grid.MethodCubic, cfg.GetInterpolationMethod())
	assert.True(t, cfg.GetHistogram())
	assert.Equal(t, 25830, cfg.GetCRS().EPSG)
}

func TestLoadConfig_Defaults(t *testing.T) {
	o, _, err := parseArgs([]string{"dem.tif"})
	require.NoError(t, err)
	cfg, err := loadConfig(o)
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.GetPixelSize())
	assert.Equal(t, "info", cfg.GetLogLevel())
	assert.Empty(t, cfg.GetRunDB())
}

func TestLoadConfig_InvalidOverride(t *testing.T) {
	for _, args := range [][]string{
		{"-method", "spline"},
		{"-pixel-size", "-1"},
		{"-nodata-policy", "ignore"},
		{"-config", "missing.json"},
	} {
		o, _, err := parseArgs(args)
		require.NoError(t, err)
		_, err = loadConfig(o)
		assert.Error(t, err, "%v", args)
	}
}

func TestParseArgs_UnknownFlag(t *testing.T) {
	_, _, err := parseArgs([]string{"-frobnicate"})
	assert.Error(t, err)
}

func TestExpandInputs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.tif", "a.las", "notes.txt", "c.LAZ"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.las"), 0755))
	explicit := filepath.Join(dir, "notes.txt")

	files, err := expandInputs([]string{explicit, dir})
	require.NoError(t, err)
	assert.Equal(t, []string{
		explicit,
		filepath.Join(dir, "a.las"),
		filepath.Join(dir, "b.tif"),
		filepath.Join(dir, "c.LAZ"),
	}, files)

	_, err = expandInputs([]string{filepath.Join(dir, "missing.las")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_ExitCodes(t *testing.T) {
	assert.Equal(t, exitOK, run([]string{"-version"}))
	assert.Equal(t, exitUsage, run([]string{"-log-level", "error"}))
	assert.Equal(t, exitUsage, run([]string{"-bogus"}))
	assert.Equal(t, exitUsage, run([]string{"-method", "spline", "dem.tif"}))

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	assert.Equal(t, exitFailed, run([]string{"-log-file", filepath.Join(blocker, "run.log"), "dem.tif"}))
}

func TestRun_EndToEnd(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "shaded")
	ledgerPath := filepath.Join(t.TempDir(), "runs.db")

	store := raster.NewStore(nil)
	dem := filepath.Join(in, "ramp.tif")
	require.NoError(t, store.Write(dem, testutil.RampDEM(16, 16, 1)))
	// The point cloud has no pixel size, so it fails and the exit code says so.
	bad := filepath.Join(in, "cloud.las")
	require.NoError(t, os.WriteFile(bad, []byte("LASF"), 0644))

	code := run([]string{"-out", out, "-log-level", "error", "-db", ledgerPath, dem, bad})
	assert.Equal(t, exitFailed, code)

	composite := filepath.Join(out, "ramp_r1", "ramp_ComposedHillshade.tif")
	r, err := store.Read(composite)
	require.NoError(t, err)
	assert.Equal(t, raster.Byte, r.DataType)
	assert.Equal(t, testutil.SiteGeoref, r.Georef)

	ledger, err := db.OpenDB(ledgerPath)
	require.NoError(t, err)
	defer ledger.Close()
	runs, err := ledger.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].InputCount)
	assert.Equal(t, 1, runs[0].FailedCount)

	// A second invocation lands in the next run directory.
	assert.Equal(t, exitOK, run([]string{"-out", out, "-log-level", "error", dem}))
	assert.FileExists(t, filepath.Join(out, "ramp_r2", "ramp_ComposedHillshade.tif"))
}
