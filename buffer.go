package lfs

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// flag is the bitfield carried on every buffer: BUSY acts as a mutex
// expressing exclusive ownership, VALID marks the data as initialized
// from disk, DIRTY marks it as promised to the in-progress segment.
type flag uint8

const (
	flagBusy flag = 1 << iota
	flagValid
	flagDirty
)

// Buffer is one slot in the cache: a fixed BSIZE data area plus the
// bookkeeping needed to place it in the LRU ring and in an open
// segment's staging list. Buffers are created once at cache init and
// live forever; only their identity (dev, block) and contents change.
type Buffer struct {
	flags flag
	dev   uint32
	block uint32
	data  [BSIZE]byte

	prev, next *Buffer // LRU ring, guarded by Cache.mu

	segIndex int // position in seg.blocks while DIRTY, -1 otherwise
}

// Block returns the buffer's currently assigned block number.
func (b *Buffer) Block() uint32 { return b.block }

// Data returns the buffer's BSIZE data area for the caller to read or
// modify while it holds the buffer.
func (b *Buffer) Data() []byte { return b.data[:] }

// Cache is the bounded pool of block buffers described in spec §4.C. It
// doubles as the segment builder's staging area: the two are modeled as
// one owned structure, matching spec §9's note that the cache and
// segment builder are tightly coupled process-wide singletons.
type Cache struct {
	mu   sync.Mutex
	cond *sync.Cond
	head Buffer // sentinel; head.next is MRU, head.prev is LRU
	bufs []Buffer

	dev BlockDevice
	seg *segmentBuilder

	log *logrus.Entry
}

// NewCache builds a cache of capacity buffers (spec's NBUF + SEGBLOCKS)
// backed by dev, and initializes its segment builder from sb.
func NewCache(dev BlockDevice, sb *Superblock, capacity int) *Cache {
	if capacity < SEGDATABLOCKS {
		panic(fmt.Sprintf("lfs: cache capacity %d too small for one segment (%d data blocks)", capacity, SEGDATABLOCKS))
	}
	c := &Cache{
		dev:  dev,
		bufs: make([]Buffer, capacity),
		log:  logrus.WithField("component", "bcache"),
	}
	c.cond = sync.NewCond(&c.mu)
	c.head.prev = &c.head
	c.head.next = &c.head
	for i := range c.bufs {
		b := &c.bufs[i]
		b.segIndex = -1
		b.next = c.head.next
		b.prev = &c.head
		c.head.next.prev = b
		c.head.next = b
	}
	c.seg = newSegmentBuilder(c, sb)
	return c
}

// waitSeg blocks while a segment flush is in progress, serializing every
// cache operation behind segment commits.
func (c *Cache) waitSeg() {
	c.seg.waitBusy()
}

// Bget returns an exclusively-owned buffer cached for (dev, block),
// allocating a fresh slot if necessary. It panics if block is 0, or if
// block is not already resident and lies inside the currently open
// segment's range: both are programmer errors per spec invariant 4. A
// block already staged in the open segment is returned like any other
// resident block.
func (c *Cache) Bget(dev, block uint32) *Buffer {
	if block == 0 {
		panic("lfs: bget: block 0 is reserved")
	}
	c.waitSeg()

	c.mu.Lock()
	for {
		var match *Buffer
		for b := c.head.next; b != &c.head; b = b.next {
			if b.dev == dev && b.block == block {
				match = b
				break
			}
		}
		if match == nil {
			break
		}
		if match.flags&flagBusy == 0 {
			match.flags |= flagBusy
			c.mu.Unlock()
			return match
		}
		c.log.WithFields(logrus.Fields{"dev": dev, "block": block}).Trace("bget: waiting on busy buffer")
		c.cond.Wait()
	}
	c.mu.Unlock()

	// Not already resident: either a fresh read from the device or a new
	// slot for one. A block number inside the still-open segment that
	// isn't already staged there hasn't been placed by anyone yet, so
	// handing it out now would be a use-before-flush bug (spec invariant
	// 4). A block the placing writer already staged this segment was
	// caught by the residency scan above and never reaches this guard.
	c.seg.guardOpenRange(block)

	b := c.allocVictim(dev)
	b.block = block
	return b
}

// allocVictim scans the LRU list from least- to most-recently-used and
// returns the first buffer with both BUSY and DIRTY clear, reassigning
// it to dev with block left at 0 (the caller fills it in) and flags set
// to BUSY only. Panics if no victim exists: a correctly sized cache must
// never exhaust (spec §7).
func (c *Cache) allocVictim(dev uint32) *Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	for b := c.head.prev; b != &c.head; b = b.prev {
		if b.flags&(flagBusy|flagDirty) == 0 {
			b.dev = dev
			b.block = 0
			b.flags = flagBusy
			b.segIndex = -1
			return b
		}
	}
	panic("lfs: bget: no free buffers")
}

// Bread returns a BUSY buffer holding the contents of (dev, block),
// issuing a device read if the cached copy isn't already VALID.
func (c *Cache) Bread(dev, block uint32) *Buffer {
	b := c.Bget(dev, block)
	if b.flags&flagValid == 0 {
		if err := c.dev.ReadBlock(block, b.data[:]); err != nil {
			// Device errors are out of scope for this system (spec §7):
			// bread has no error return, so a failed read is fatal here.
			panic(fmt.Sprintf("lfs: bread(%d): %s", block, err))
		}
		b.flags |= flagValid
	}
	return b
}

// Brelse releases ownership of b, moving it to the head (MRU end) of the
// LRU list and waking any waiter. Releasing a buffer that was never
// owned is tolerated, guarding against double-release from upper-layer
// error paths.
func (c *Cache) Brelse(b *Buffer) {
	c.waitSeg()

	c.mu.Lock()
	if b.flags&flagBusy == 0 {
		c.mu.Unlock()
		return
	}

	b.next.prev = b.prev
	b.prev.next = b.next
	b.next = c.head.next
	b.prev = &c.head
	c.head.next.prev = b
	c.head.next = b

	b.flags &^= flagBusy
	c.mu.Unlock()
	c.cond.Broadcast()
}

// Bwrite commits b's data into the log (or, for the superblock, writes
// it in place) and returns the physical block number it now occupies.
// See segment.go for the full algorithm.
func (c *Cache) Bwrite(b *Buffer) uint32 {
	return c.seg.bwrite(b)
}

// Superblock returns a copy of the cache's in-memory superblock mirror,
// the same fields the next checkpoint will publish.
func (c *Cache) Superblock() Superblock {
	return c.seg.snapshotSuperblock()
}

// NewZeroBuffer returns a freshly evicted, zero-filled BUSY buffer not
// yet tied to any block number, for callers (the indirect-tree walker's
// online BlockStore) that need to allocate a brand-new block. The
// buffer is marked VALID immediately: its zeroed content is authoritative
// on its own, so a Bread before the enclosing segment seals must not
// fall through to the device, which has nothing at that address yet.
func (c *Cache) NewZeroBuffer(dev uint32) *Buffer {
	b := c.allocVictim(dev)
	for i := range b.data {
		b.data[i] = 0
	}
	b.flags |= flagValid
	return b
}
