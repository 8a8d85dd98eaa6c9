package lfs

// cacheBlockStore adapts a Cache to the BlockStore interface the
// indirect-tree walker needs, so the online write path and the offline
// image builder share one walker implementation (indirect.go).
type cacheBlockStore struct {
	cache *Cache
	dev   uint32
}

func (s *cacheBlockStore) ReadBlock(bn uint32) ([BSIZE]byte, error) {
	var out [BSIZE]byte
	b := s.cache.Bread(s.dev, bn)
	copy(out[:], b.Data())
	s.cache.Brelse(b)
	return out, nil
}

func (s *cacheBlockStore) WriteBlock(bn uint32, data [BSIZE]byte) error {
	b := s.cache.Bget(s.dev, bn)
	copy(b.Data(), data[:])
	s.cache.Bwrite(b)
	s.cache.Brelse(b)
	return nil
}

func (s *cacheBlockStore) AllocBlock() (uint32, error) {
	b := s.cache.NewZeroBuffer(s.dev)
	bn := s.cache.Bwrite(b)
	s.cache.Brelse(b)
	return bn, nil
}

// FileHandle drives reads and writes against one inode's address array
// through the shared indirect-tree walker and a device's buffer cache.
// This is the thin sliver of VFS-layer behavior needed to exercise the
// online write path end to end; the full inode lifecycle (open/close,
// link counting, free-on-nlink-zero) belongs to the VFS layer spec.md
// explicitly places out of scope.
type FileHandle struct {
	store BlockStore
	addrs *[NADDRS]uint32
	size  *uint32
}

// NewFileHandle returns a handle that reads and appends to the file
// described by addrs/size through cache on dev.
func NewFileHandle(cache *Cache, dev uint32, addrs *[NADDRS]uint32, size *uint32) *FileHandle {
	return &FileHandle{
		store: &cacheBlockStore{cache: cache, dev: dev},
		addrs: addrs,
		size:  size,
	}
}

// WriteAt writes data starting at the given logical byte offset,
// allocating blocks as needed and growing size if the write extends past
// the current end of file.
func (f *FileHandle) WriteAt(data []byte, offset int64) error {
	if err := writeSpanning(f.store, f.addrs, offset, data); err != nil {
		return err
	}
	if end := offset + int64(len(data)); uint32(end) > *f.size {
		*f.size = uint32(end)
	}
	return nil
}

// ReadAt reads up to len(dst) bytes starting at the given logical byte
// offset, never reading past *f.size.
func (f *FileHandle) ReadAt(dst []byte, offset int64) (int, error) {
	return readSpanning(f.store, *f.addrs, *f.size, offset, dst)
}
