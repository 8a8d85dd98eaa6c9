package lfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentSealsAfterFullBatch(t *testing.T) {
	c, dev := newTestCache(t)

	var lastBn uint32
	for i := 0; i < SEGDATABLOCKS; i++ {
		b := c.NewZeroBuffer(0)
		b.data[0] = byte(i)
		lastBn = c.Bwrite(b)
		c.Brelse(b)
	}
	assert.NotZero(t, lastBn)

	sb := c.Superblock()
	assert.Equal(t, uint32(1), sb.Nsegs)
	assert.NotZero(t, sb.Segment)

	onDiskSB, err := ReadSuperblock(dev)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), onDiskSB.Nsegs)
	assert.Equal(t, onDiskSB.Next, onDiskSB.Segment+SEGBLOCKS)

	// Every block of the sealed segment, metadata and data, is now on
	// disk.
	assert.GreaterOrEqual(t, dev.WriteCount(), SEGBLOCKS)
}

func TestSegmentReopensAfterSeal(t *testing.T) {
	c, _ := newTestCache(t)

	for i := 0; i < SEGDATABLOCKS; i++ {
		b := c.NewZeroBuffer(0)
		c.Bwrite(b)
		c.Brelse(b)
	}

	firstSeg := c.Superblock()

	b := c.NewZeroBuffer(0)
	bn := c.Bwrite(b)
	c.Brelse(b)

	// The first block of the next segment starts exactly where the
	// sealed segment's Next pointed.
	assert.Equal(t, firstSeg.Next+SEGMETABLOCKS, bn)
}

func TestBwriteReenlistSameBufferNoDuplicate(t *testing.T) {
	c, _ := newTestCache(t)

	b := c.NewZeroBuffer(0)
	bn1 := c.Bwrite(b)
	bn2 := c.Bwrite(b)
	assert.Equal(t, bn1, bn2)
	c.Brelse(b)
}
