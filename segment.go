package lfs

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// segmentBuilder accumulates dirty data blocks into the current segment
// and commits the segment to disk atomically when it fills. It is owned
// by a Cache (spec §9 treats the two as one coupled singleton) and holds
// the only in-memory mirror of the superblock, which it alone mutates
// and checkpoints.
type segmentBuilder struct {
	mu   sync.Mutex
	cond *sync.Cond

	start uint32
	count int
	busy  bool
	blocks [SEGDATABLOCKS]*Buffer

	sb  Superblock
	dev BlockDevice
	log *logrus.Entry
}

func newSegmentBuilder(c *Cache, sb *Superblock) *segmentBuilder {
	s := &segmentBuilder{
		sb:  *sb,
		dev: c.dev,
		log: logrus.WithField("component", "segment"),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// waitBusy blocks while a segment flush is in progress.
func (s *segmentBuilder) waitBusy() {
	s.mu.Lock()
	for s.busy {
		s.cond.Wait()
	}
	s.mu.Unlock()
}

// guardOpenRange panics if block falls strictly inside the currently
// open segment's range — a use-before-flush bug per spec invariant 4.
func (s *segmentBuilder) guardOpenRange(block uint32) {
	s.mu.Lock()
	start := s.start
	s.mu.Unlock()
	if start != 0 && block > start && block < start+SEGBLOCKS {
		panic(fmt.Sprintf("lfs: bget: block %d lies inside open segment [%d, %d)", block, start, start+SEGBLOCKS))
	}
}

func (s *segmentBuilder) snapshotSuperblock() Superblock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sb
}

// bwrite implements spec §4.D: stage b's data into the log, or, for the
// superblock, write it in place. Returns the physical block number b now
// occupies (0 for the superblock).
func (s *segmentBuilder) bwrite(b *Buffer) uint32 {
	if b.flags&flagBusy == 0 {
		panic("lfs: bwrite: buffer not BUSY")
	}

	if b.block == SuperblockNum {
		b.flags |= flagDirty
		if err := s.dev.WriteBlock(b.block, b.data[:]); err != nil {
			panic(fmt.Sprintf("lfs: bwrite(superblock): %s", err))
		}
		return 0
	}

	s.waitBusy()

	s.mu.Lock()
	if s.start == 0 {
		s.start = s.sb.Next
	}

	if b.flags&flagDirty != 0 {
		// Already staged in this open segment.
		bn := b.block
		s.mu.Unlock()
		return bn
	}

	idx := s.count
	s.blocks[idx] = b
	b.block = s.start + SEGMETABLOCKS + uint32(idx)
	b.segIndex = idx
	b.flags |= flagDirty
	s.count++

	if s.count < SEGDATABLOCKS {
		bn := b.block
		s.mu.Unlock()
		return bn
	}

	// Segment is full: seal it. Mark busy under the lock so every other
	// cache entry point blocks in waitBusy, then release the lock for the
	// actual (synchronous) disk writes — spec §5 requires seg.lock to be
	// released during seal's I/O.
	s.busy = true
	bn := b.block
	start := s.start
	staged := s.blocks
	s.mu.Unlock()

	s.seal(start, staged)

	return bn
}

// seal performs the actual segment-flush I/O and then resets the builder
// for the next segment. No other goroutine can be mutating s.start,
// s.count, or s.blocks while s.busy is true, since every entry point
// gates on waitBusy first.
func (s *segmentBuilder) seal(start uint32, staged [SEGDATABLOCKS]*Buffer) {
	s.log.WithFields(logrus.Fields{"start": start, "count": SEGDATABLOCKS}).Debug("segment sealed")

	var zero [BSIZE]byte
	for k := uint32(0); k < SEGMETABLOCKS; k++ {
		if err := s.dev.WriteBlock(start+k, zero[:]); err != nil {
			panic(fmt.Sprintf("lfs: seal: write segment metadata block %d: %s", start+k, err))
		}
	}

	for _, b := range staged {
		saved := b.flags
		b.flags = flagDirty | flagBusy
		if err := s.dev.WriteBlock(b.block, b.data[:]); err != nil {
			panic(fmt.Sprintf("lfs: seal: write data block %d: %s", b.block, err))
		}
		b.flags = (saved &^ flagDirty) | flagValid
		b.segIndex = -1
	}

	s.mu.Lock()
	s.sb.Segment = start
	s.sb.Next += SEGBLOCKS
	s.sb.Nsegs++
	s.sb.Nblocks += SEGBLOCKS
	sbCopy := s.sb
	s.mu.Unlock()

	if err := WriteSuperblock(s.dev, &sbCopy); err != nil {
		panic(fmt.Sprintf("lfs: seal: checkpoint superblock: %s", err))
	}

	s.mu.Lock()
	s.blocks = [SEGDATABLOCKS]*Buffer{}
	s.count = 0
	s.start = 0
	s.busy = false
	s.mu.Unlock()
	s.cond.Broadcast()
}
