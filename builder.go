package lfs

import (
	"fmt"
	"sort"
)

// Builder constructs a complete LFS image from scratch, writing straight
// to dev rather than through the buffer cache and segment builder: blocks
// are written in place, and a partly filled data or indirect block is
// rewritten in place as later appends fill it. It still
// advances segments eagerly, reserving SEGMETABLOCKS at the start of
// each one exactly as the online path does once a segment opens — see
// DESIGN.md's resolution of the mkfs/online segment-counter
// disagreement.
type Builder struct {
	dev BlockDevice

	next     uint32 // next block number to allocate
	segStart uint32 // 0 when no segment is currently open
	segCount int

	sealedSegs      uint32
	lastSealedStart uint32

	imap    [ImapEntries]uint32
	ninodes uint32
}

// NewBuilder returns a Builder that will lay out a fresh image on dev,
// starting allocation immediately after the superblock.
func NewBuilder(dev BlockDevice) *Builder {
	return &Builder{
		dev:  dev,
		next: SuperblockNum + 1,
	}
}

// openSegmentIfNeeded reserves a fresh SEGMETABLOCKS-sized metadata
// region whenever no segment is currently open (none started yet, or the
// previous one was just sealed by allocBlock placing its last data
// block).
func (b *Builder) openSegmentIfNeeded() {
	if b.segStart != 0 {
		return
	}
	var zero [BSIZE]byte
	start := b.next
	for k := uint32(0); k < SEGMETABLOCKS; k++ {
		b.writeBlock(start+k, zero[:])
	}
	b.segStart = start
	b.next = start + SEGMETABLOCKS
}

// allocBlock returns a fresh block number, eagerly reserving segment
// metadata space as needed. The segment seals the instant its last data
// block is placed, mirroring segment.go's bwrite: sealedSegs/
// lastSealedStart only advance for segments that actually filled, never
// for the still-open trailing one.
func (b *Builder) allocBlock() uint32 {
	b.openSegmentIfNeeded()
	bn := b.next
	b.next++
	b.segCount++
	if b.segCount == SEGDATABLOCKS {
		b.sealedSegs++
		b.lastSealedStart = b.segStart
		b.segStart = 0
		b.segCount = 0
	}
	return bn
}

func (b *Builder) writeBlock(bn uint32, data []byte) {
	buf := make([]byte, BSIZE)
	copy(buf, data)
	if err := b.dev.WriteBlock(bn, buf); err != nil {
		panic(fmt.Sprintf("lfs: builder: write block %d: %s", bn, err))
	}
}

func (b *Builder) readBlock(bn uint32) [BSIZE]byte {
	var out [BSIZE]byte
	buf := make([]byte, BSIZE)
	if err := b.dev.ReadBlock(bn, buf); err != nil {
		panic(fmt.Sprintf("lfs: builder: read block %d: %s", bn, err))
	}
	copy(out[:], buf)
	return out
}

// builderBlockStore adapts Builder to the BlockStore interface so file
// content during image construction goes through the same
// indirect-tree walker as the online write path (indirect.go).
type builderBlockStore struct {
	b *Builder
}

func (s *builderBlockStore) ReadBlock(bn uint32) ([BSIZE]byte, error) {
	return s.b.readBlock(bn), nil
}

func (s *builderBlockStore) WriteBlock(bn uint32, data [BSIZE]byte) error {
	s.b.writeBlock(bn, data[:])
	return nil
}

func (s *builderBlockStore) AllocBlock() (uint32, error) {
	bn := s.b.allocBlock()
	var zero [BSIZE]byte
	s.b.writeBlock(bn, zero[:])
	return bn, nil
}

// ialloc allocates a fresh inode number, writes its initial disk
// representation, and returns the inode number.
func (b *Builder) ialloc(t InodeType) (uint32, error) {
	ino := b.ninodes + 1
	if int(ino) >= ImapEntries {
		return 0, ErrInodeLimitExceeded
	}
	b.ninodes = ino

	di := DiskInode{Type: int16(t), Nlink: 1}
	bn := b.allocBlock()
	if err := b.writeInode(bn, &di); err != nil {
		return 0, err
	}
	b.imap[ino] = bn
	return ino, nil
}

func (b *Builder) writeInode(bn uint32, di *DiskInode) error {
	enc, err := di.MarshalBinary()
	if err != nil {
		return err
	}
	b.writeBlock(bn, enc)
	return nil
}

// iread decodes the inode currently stored for ino.
func (b *Builder) iread(ino uint32) (*DiskInode, error) {
	if ino == 0 || ino > b.ninodes {
		return nil, ErrNoSuchInode
	}
	block := b.readBlock(b.imap[ino])
	di := new(DiskInode)
	if err := di.UnmarshalBinary(block[:]); err != nil {
		return nil, err
	}
	return di, nil
}

// iupdate rewrites ino's inode at a freshly allocated block, never its
// old one: a log-structured image never overwrites an inode in place.
func (b *Builder) iupdate(ino uint32, di *DiskInode) error {
	bn := b.allocBlock()
	if err := b.writeInode(bn, di); err != nil {
		return err
	}
	b.imap[ino] = bn
	return nil
}

// iappend appends data to the end of the file held by ino, growing its
// size and allocating blocks through the shared indirect-tree walker.
func (b *Builder) iappend(ino uint32, data []byte) error {
	di, err := b.iread(ino)
	if err != nil {
		return err
	}
	store := &builderBlockStore{b: b}
	off := int64(di.Size)
	if err := writeSpanning(store, &di.Addrs, off, data); err != nil {
		return err
	}
	di.Size += uint32(len(data))
	return b.iupdate(ino, di)
}

// addDirent appends one packed directory entry to dirIno's contents.
func (b *Builder) addDirent(dirIno uint32, name string, inum uint16) error {
	d := NewDirent(inum, name)
	enc, err := d.MarshalBinary()
	if err != nil {
		return err
	}
	return b.iappend(dirIno, enc)
}

// Finalize writes the inode map and the closing superblock, completing
// the image. No further allocation is valid on this Builder afterward.
// Nsegs/Segment/Nblocks report only fully-sealed segments, matching
// segment.go's online checkpoint: a minimal image with no files never
// fills a single segment, so they come back zero even though blocks
// were allocated for the root inode and its dirents.
func (b *Builder) Finalize() error {
	imapBlock := b.allocBlock()
	b.writeBlock(imapBlock, EncodeImap(b.imap))

	sb := &Superblock{
		Nsegs:   b.sealedSegs,
		Segment: b.lastSealedStart,
		Imap:    imapBlock,
		Ninodes: b.ninodes,
		Nblocks: b.sealedSegs * SEGBLOCKS,
		Next:    b.next,
	}
	return WriteSuperblock(b.dev, sb)
}

// NewImage builds a complete fresh image on dev containing a root
// directory populated with files: a root inode with "." and ".."
// dirents pointing at itself, then one regular-file inode per entry,
// added in sorted name order for a deterministic layout.
func NewImage(dev BlockDevice, files map[string][]byte) error {
	b := NewBuilder(dev)

	root, err := b.ialloc(TypeDir)
	if err != nil {
		return err
	}
	if root != RootIno {
		panic(fmt.Sprintf("lfs: builder: first inode allocated is %d, want root inode %d", root, RootIno))
	}
	if err := b.addDirent(root, ".", uint16(root)); err != nil {
		return err
	}
	if err := b.addDirent(root, "..", uint16(root)); err != nil {
		return err
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ino, err := b.ialloc(TypeFile)
		if err != nil {
			return err
		}
		if err := b.iappend(ino, files[name]); err != nil {
			return err
		}
		if err := b.addDirent(root, name, uint16(ino)); err != nil {
			return err
		}
	}

	return b.Finalize()
}
