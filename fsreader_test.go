package lfs

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestImage(t *testing.T) *Image {
	t.Helper()
	dev := NewMemDevice()
	require.NoError(t, NewImage(dev, map[string][]byte{
		"a.txt": []byte("file a"),
		"b.txt": []byte("file b"),
	}))
	im, err := OpenImage(dev)
	require.NoError(t, err)
	return im
}

func TestImageOpenMissingFile(t *testing.T) {
	im := buildTestImage(t)
	_, err := im.Open("nope.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSuchFile)
}

func TestImageStatRoot(t *testing.T) {
	im := buildTestImage(t)
	info, err := im.Stat(".")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestImageStatFile(t *testing.T) {
	im := buildTestImage(t)
	info, err := im.Stat("a.txt")
	require.NoError(t, err)
	assert.False(t, info.IsDir())
	assert.Equal(t, int64(len("file a")), info.Size())
}

func TestImageReadDirFileFails(t *testing.T) {
	im := buildTestImage(t)
	_, err := im.ReadDir("a.txt")
	assert.Error(t, err)
}

func TestImageOpenDirReadIsInvalid(t *testing.T) {
	im := buildTestImage(t)
	f, err := im.Open(".")
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Read(make([]byte, 1))
	assert.ErrorIs(t, err, fs.ErrInvalid)
}
