package lfs

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// BlockDevice is the external collaborator that transfers one block at a
// time between memory and stable storage. It is the idiomatic Go
// rendering of xv6-lfs's single iderw(buf) primitive, which picked its
// direction from a flag on the buffer passed in: here the direction is
// picked by which method is called instead.
type BlockDevice interface {
	// ReadBlock reads block bn into buf, which must be exactly BSIZE
	// bytes.
	ReadBlock(bn uint32, buf []byte) error
	// WriteBlock writes buf, which must be exactly BSIZE bytes, to block
	// bn. Always synchronous: the call does not return until the write
	// has reached stable storage.
	WriteBlock(bn uint32, buf []byte) error
}

// blockOffset returns the byte offset of block bn within an image. Block
// numbers are 1-based: block 0 is reserved as the cache's "unassigned"
// sentinel and is never a valid on-disk address (Cache.Bget panics on
// it); block 1 is the superblock, occupying the bytes immediately after
// the opaque boot sector.
func blockOffset(bn uint32) int64 {
	return int64(bootSectorBytes) + int64(bn-1)*BSIZE
}

// SuperblockNum is the reserved block number of the superblock.
const SuperblockNum = 1

// FileDevice is a BlockDevice backed by a regular host file, used by the
// real mkfs and lfsutil binaries. Writes are opened O_SYNC so that
// WriteBlock satisfies the "always synchronous" contract without an
// explicit fsync call per write.
type FileDevice struct {
	f *os.File
}

// OpenFileDevice opens (creating if needed) the image file at path as a
// BlockDevice.
func OpenFileDevice(path string) (*FileDevice, error) {
	f, err := os.OpenFile(path, unix.O_RDWR|unix.O_CREAT|unix.O_SYNC, 0666)
	if err != nil {
		return nil, fmt.Errorf("lfs: open image %s: %w", path, err)
	}
	return &FileDevice{f: f}, nil
}

// Close releases the underlying file handle.
func (d *FileDevice) Close() error {
	return d.f.Close()
}

// File exposes the underlying *os.File for callers that want
// random-access io.ReaderAt semantics instead of whole-block transfers.
// The read-side view in fsreader.go does not use it; it reads whole
// blocks through BlockDevice.
func (d *FileDevice) File() *os.File {
	return d.f
}

func (d *FileDevice) ReadBlock(bn uint32, buf []byte) error {
	if len(buf) != BSIZE {
		return fmt.Errorf("lfs: ReadBlock buffer is %d bytes, want %d", len(buf), BSIZE)
	}
	n, err := d.f.ReadAt(buf, blockOffset(bn))
	if err != nil {
		return fmt.Errorf("lfs: read block %d: %w", bn, err)
	}
	if n != BSIZE {
		return fmt.Errorf("lfs: short read of block %d: got %d bytes", bn, n)
	}
	return nil
}

func (d *FileDevice) WriteBlock(bn uint32, buf []byte) error {
	if len(buf) != BSIZE {
		return fmt.Errorf("lfs: WriteBlock buffer is %d bytes, want %d", len(buf), BSIZE)
	}
	n, err := d.f.WriteAt(buf, blockOffset(bn))
	if err != nil {
		return fmt.Errorf("lfs: write block %d: %w", bn, err)
	}
	if n != BSIZE {
		return fmt.Errorf("lfs: short write of block %d: wrote %d bytes", bn, n)
	}
	return nil
}

// MemDevice is an in-memory BlockDevice, used by tests that exercise the
// cache and segment builder without touching a real file.
type MemDevice struct {
	blocks map[uint32][]byte
}

// NewMemDevice returns an empty in-memory block device.
func NewMemDevice() *MemDevice {
	return &MemDevice{blocks: make(map[uint32][]byte)}
}

func (d *MemDevice) ReadBlock(bn uint32, buf []byte) error {
	if len(buf) != BSIZE {
		return fmt.Errorf("lfs: ReadBlock buffer is %d bytes, want %d", len(buf), BSIZE)
	}
	data, ok := d.blocks[bn]
	if !ok {
		// Unwritten blocks read as zero, matching a freshly truncated
		// image file.
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	copy(buf, data)
	return nil
}

func (d *MemDevice) WriteBlock(bn uint32, buf []byte) error {
	if len(buf) != BSIZE {
		return fmt.Errorf("lfs: WriteBlock buffer is %d bytes, want %d", len(buf), BSIZE)
	}
	cp := make([]byte, BSIZE)
	copy(cp, buf)
	d.blocks[bn] = cp
	return nil
}

// WriteCount returns the number of distinct blocks ever written, for
// tests asserting on write amplification.
func (d *MemDevice) WriteCount() int {
	return len(d.blocks)
}
