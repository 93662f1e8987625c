package ddp

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFolder(t *testing.T, fsys afero.Fs, dir string, files []RawFile) {
	t.Helper()
	require.NoError(t, fsys.MkdirAll(dir, 0o755))
	for _, f := range files {
		data := f.Bytes
		if data == nil {
			data = make([]byte, 16)
		}
		require.NoError(t, afero.WriteFile(fsys, filepath.Join(dir, f.Name), data, 0o644))
	}
}

func TestLoadFolder(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFolder(t, fsys, "/master", sampleFolder(true))
	require.NoError(t, afero.WriteFile(fsys, "/master/.DS_Store", []byte{1}, 0o644))
	require.NoError(t, fsys.MkdirAll("/master/extras", 0o755))

	files, err := LoadFolder(fsys, "/master")
	require.NoError(t, err)
	require.Len(t, files, 9)

	byName := make(map[string]RawFile)
	for _, f := range files {
		byName[f.Name] = f
	}
	assert.Equal(t, samplePQ(), byName["DDPPQ"].Bytes)
	assert.Equal(t, int64(len(samplePQ())), byName["DDPPQ"].Size)
	assert.Nil(t, byName["AUDIO001.DAT"].Bytes, "audio is never read")
	assert.Equal(t, int64(16), byName["AUDIO001.DAT"].Size)
	assert.NotContains(t, byName, ".DS_Store")
	assert.NotContains(t, byName, "extras")
}

func TestLoadFolder_ParsesEndToEnd(t *testing.T) {
	fsys := afero.NewMemMapFs()
	folder := sampleFolder(false)
	writeFolder(t, fsys, "/m", folder)

	files, err := LoadFolder(fsys, "/m")
	require.NoError(t, err)

	det := Detect(files)
	assert.True(t, det.IsDDP)
	assert.Equal(t, RolePQ, det.Roles["DDPPQ"])
}

func TestLoadFolder_Missing(t *testing.T) {
	_, err := LoadFolder(afero.NewMemMapFs(), "/nope")
	assert.Error(t, err)
}
