package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fs := OSFileSystem{}

	if !fs.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}
	if fs.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_MkdirTempIsUnique(t *testing.T) {
	fs := OSFileSystem{}
	root := t.TempDir()

	a, err := fs.MkdirTemp(root, "hillshader-")
	require.NoError(t, err)
	b, err := fs.MkdirTemp(root, "hillshader-")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(filepath.Base(a), "hillshader-"))
}

func TestOSFileSystem_ReadDirAndRemove(t *testing.T) {
	fs := OSFileSystem{}
	root := t.TempDir()

	require.NoError(t, fs.MkdirAll(filepath.Join(root, "dem"), 0755))
	require.NoError(t, fs.WriteFile(filepath.Join(root, "a.tif"), []byte("x"), 0644))

	entries, err := fs.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.tif", entries[0].Name())
	assert.True(t, entries[1].IsDir())

	require.NoError(t, fs.Remove(filepath.Join(root, "dem")))
	assert.False(t, fs.Exists(filepath.Join(root, "dem")))
	require.NoError(t, fs.RemoveAll(filepath.Join(root, "a.tif")))
	assert.False(t, fs.Exists(filepath.Join(root, "a.tif")))
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	require.NoError(t, mfs.WriteFile("/test.txt", []byte("hello, world"), 0644))
	data, err := mfs.ReadFile("/test.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello, world", string(data))

	_, err = mfs.ReadFile("/missing.txt")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestMemoryFileSystem_ReadDir(t *testing.T) {
	mfs := NewMemoryFileSystem()
	require.NoError(t, mfs.MkdirAll("/out/site_r1/intermediate_results/dem", 0755))
	require.NoError(t, mfs.MkdirAll("/out/site_r3", 0755))
	require.NoError(t, mfs.WriteFile("/out/readme.txt", nil, 0644))

	entries, err := mfs.ReadDir("/out")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"readme.txt", "site_r1", "site_r3"}, names)
	assert.True(t, entries[1].IsDir())
	assert.False(t, entries[0].IsDir())

	_, err = mfs.ReadDir("/nope")
	assert.Error(t, err)
}

func TestMemoryFileSystem_MkdirTemp(t *testing.T) {
	mfs := NewMemoryFileSystem()

	a, err := mfs.MkdirTemp("", "hillshader-")
	require.NoError(t, err)
	b, err := mfs.MkdirTemp("", "hillshader-")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, "/tmp", filepath.Dir(a))
	assert.True(t, mfs.Exists(a))

	info, err := mfs.Stat(a)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestMemoryFileSystem_RemoveRefusesNonEmptyDir(t *testing.T) {
	mfs := NewMemoryFileSystem()
	require.NoError(t, mfs.MkdirAll("/work/dem", 0755))
	require.NoError(t, mfs.WriteFile("/work/dem/x_dem.tif", []byte{1}, 0644))

	err := mfs.Remove("/work/dem")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDirNotEmpty))

	require.NoError(t, mfs.Remove("/work/dem/x_dem.tif"))
	require.NoError(t, mfs.Remove("/work/dem"))
	assert.False(t, mfs.Exists("/work/dem"))
	assert.True(t, mfs.Exists("/work"))

	assert.Error(t, mfs.Remove("/work/dem"))
}

func TestMemoryFileSystem_RemoveAll(t *testing.T) {
	mfs := NewMemoryFileSystem()
	require.NoError(t, mfs.MkdirAll("/dir/sub", 0755))
	require.NoError(t, mfs.WriteFile("/dir/a.txt", []byte("a"), 0644))
	require.NoError(t, mfs.WriteFile("/dir/sub/b.txt", []byte("b"), 0644))
	require.NoError(t, mfs.WriteFile("/dirx/c.txt", []byte("c"), 0644))

	require.NoError(t, mfs.RemoveAll("/dir"))

	assert.False(t, mfs.Exists("/dir/a.txt"))
	assert.False(t, mfs.Exists("/dir/sub"))
	assert.True(t, mfs.Exists("/dirx/c.txt"), "sibling with shared prefix must survive")
	assert.Equal(t, []string{"/dirx/c.txt"}, mfs.Files())
}

func TestMemoryFileSystem_DataIsolation(t *testing.T) {
	mfs := NewMemoryFileSystem()

	original := []byte("original")
	require.NoError(t, mfs.WriteFile("/iso.txt", original, 0644))
	original[0] = 'X'

	data, err := mfs.ReadFile("/iso.txt")
	require.NoError(t, err)
	data[1] = 'Y'

	again, err := mfs.ReadFile("/iso.txt")
	require.NoError(t, err)
	assert.Equal(t, "original", string(again))
}
