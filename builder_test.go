package lfs

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImageRoundTrip(t *testing.T) {
	dev := NewMemDevice()
	files := map[string][]byte{
		"hello.txt": []byte("hello, world"),
		"empty":     {},
	}
	require.NoError(t, NewImage(dev, files))

	im, err := OpenImage(dev)
	require.NoError(t, err)

	entries, err := im.ReadDir(".")
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, e := range entries {
		names[e.Name()] = true
	}
	assert.True(t, names["hello.txt"])
	assert.True(t, names["empty"])
	assert.Len(t, entries, len(files))

	data, err := fs.ReadFile(im, "hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello, world", string(data))

	data, err = fs.ReadFile(im, "empty")
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestNewImageLargeFileSpansSegments(t *testing.T) {
	dev := NewMemDevice()
	big := make([]byte, 4*SEGDATABLOCKS*BSIZE)
	for i := range big {
		big[i] = byte(i)
	}
	files := map[string][]byte{"big": big}
	require.NoError(t, NewImage(dev, files))

	im, err := OpenImage(dev)
	require.NoError(t, err)

	data, err := fs.ReadFile(im, "big")
	require.NoError(t, err)
	assert.Equal(t, big, data)
}

func TestNewImageInodeLimitExceeded(t *testing.T) {
	dev := NewMemDevice()
	files := make(map[string][]byte, ImapEntries)
	for i := 0; i < ImapEntries; i++ {
		files[string(rune('a'+i%26))+string(rune('0'+i/26))] = []byte("x")
	}
	err := NewImage(dev, files)
	assert.ErrorIs(t, err, ErrInodeLimitExceeded)
}

func TestBuilderFinalizeProducesReadableSuperblock(t *testing.T) {
	dev := NewMemDevice()
	require.NoError(t, NewImage(dev, map[string][]byte{"a": []byte("x")}))

	sb, err := ReadSuperblock(dev)
	require.NoError(t, err)
	assert.NotZero(t, sb.Imap)
	assert.GreaterOrEqual(t, sb.Ninodes, uint32(2)) // root + one file
}

func TestNewImageMinimalNoFiles(t *testing.T) {
	dev := NewMemDevice()
	require.NoError(t, NewImage(dev, nil))

	sb, err := ReadSuperblock(dev)
	require.NoError(t, err)
	assert.Zero(t, sb.Nsegs)
	assert.Zero(t, sb.Segment)
	assert.Equal(t, uint32(1), sb.Ninodes)
	assert.Equal(t, sb.Next-1, sb.Imap)

	im, err := OpenImage(dev)
	require.NoError(t, err)
	entries, err := im.ReadDir(".")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
