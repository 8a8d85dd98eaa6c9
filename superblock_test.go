package lfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuperblockRoundTrip(t *testing.T) {
	sb := &Superblock{
		Nsegs:   3,
		Segment: 130,
		Imap:    4,
		Ninodes: 12,
		Nblocks: 900,
		Next:    386,
	}

	enc, err := sb.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, enc, SuperblockSize)

	var got Superblock
	require.NoError(t, got.UnmarshalBinary(enc))
	assert.Equal(t, *sb, got)
}

func TestSuperblockReadWrite(t *testing.T) {
	dev := NewMemDevice()
	sb := &Superblock{Nsegs: 1, Segment: 2, Imap: 3, Ninodes: 4, Nblocks: 5, Next: 6}

	require.NoError(t, WriteSuperblock(dev, sb))

	got, err := ReadSuperblock(dev)
	require.NoError(t, err)
	assert.Equal(t, sb, got)
}

func TestSuperblockUnmarshalTooSmall(t *testing.T) {
	var sb Superblock
	err := sb.UnmarshalBinary(make([]byte, SuperblockSize-1))
	assert.ErrorIs(t, err, ErrImageTooSmall)
}
