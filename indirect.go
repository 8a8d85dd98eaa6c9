package lfs

import "fmt"

// BlockStore is the minimal surface the indirect-tree walker needs from
// whoever hosts an inode's address array: read an existing block,
// overwrite an existing block, or allocate a fresh zeroed one. The
// online write path implements this against the buffer cache
// (cacheBlockStore, in online.go); the offline
// image builder implements it directly against sequential block
// allocation (builder.go). Sharing one walker between the two is what
// resolves spec.md §9's "append_block" indexing bug: there is exactly
// one read-modify-write call site instead of two independently-written
// ones.
type BlockStore interface {
	ReadBlock(bn uint32) ([BSIZE]byte, error)
	WriteBlock(bn uint32, data [BSIZE]byte) error
	AllocBlock() (uint32, error)
}

// locate walks addrs to find the block holding logical byte offset o,
// allocating along the path as needed, and returns the physical block
// number. A newly allocated direct or top-level indirect slot is stored
// into addrs in place; the caller learns of it only by inspecting addrs.
func locate(store BlockStore, addrs *[NADDRS]uint32, o int64) (uint32, error) {
	if o < 0 {
		return 0, fmt.Errorf("lfs: negative offset %d", o)
	}
	bn := uint64(o) / BSIZE
	if bn >= MAXFILE {
		return 0, ErrFileTooLarge
	}

	// Level selection: accumulate level sizes until the running total
	// strictly exceeds bn; that is the target level. Subtract the
	// preceding levels' sizes (in blocks) from bn as we go, so bn ends up
	// local to the chosen level.
	level := 0
	cum := uint64(0)
	for {
		cum += levelSizes[level]
		if cum > bn {
			break
		}
		bn -= levelSizes[level]
		level++
	}

	if level == 0 {
		slot := &addrs[bn]
		if *slot == 0 {
			nb, err := store.AllocBlock()
			if err != nil {
				return 0, err
			}
			*slot = nb
		}
		return *slot, nil
	}

	// Indirect levels live in the last IndirectLevels entries of addrs.
	top := &addrs[NDIRECT+level-1]
	if *top == 0 {
		nb, err := store.AllocBlock()
		if err != nil {
			return 0, err
		}
		*top = nb
	}

	cur := *top
	for l := level; l > 0; l-- {
		div := uint64(1)
		for i := 0; i < l-1; i++ {
			div *= NINDIRECT
		}
		n := bn / div
		bn = bn % div

		block, err := store.ReadBlock(cur)
		if err != nil {
			return 0, err
		}
		var ptrs [NINDIRECT]uint32
		decodeUint32Array(block[:], ptrs[:])

		if ptrs[n] == 0 {
			nb, err := store.AllocBlock()
			if err != nil {
				return 0, err
			}
			ptrs[n] = nb
			encodeUint32Array(ptrs[:], block[:])
			if err := store.WriteBlock(cur, block); err != nil {
				return 0, err
			}
		}
		cur = ptrs[n]
	}

	return cur, nil
}

// writeRange resolves the block holding byte offset o and overwrites the
// len bytes starting at that block's local offset with src[0:len],
// read-modify-write. This is the corrected form of spec.md §9's flagged
// bug: the source is always read from its own [0, len) range, never from
// the destination's offset within the block.
func writeRange(store BlockStore, addrs *[NADDRS]uint32, o int64, src []byte) error {
	bn, err := locate(store, addrs, o)
	if err != nil {
		return err
	}
	local := int(o % BSIZE)
	if local+len(src) > BSIZE {
		return fmt.Errorf("lfs: writeRange: %d bytes at offset %d overflow one block", len(src), local)
	}
	block, err := store.ReadBlock(bn)
	if err != nil {
		return err
	}
	copy(block[local:local+len(src)], src)
	return store.WriteBlock(bn, block)
}

// readSpanning reads up to len(dst) bytes starting at offset from a file
// of the given size, never reading past size and chunking the transfer
// into per-block readRange calls. The online FileHandle and the
// read-only image view (fsreader.go) share this instead of re-deriving
// the chunking loop.
func readSpanning(store BlockStore, addrs [NADDRS]uint32, size uint32, offset int64, dst []byte) (int, error) {
	if offset >= int64(size) {
		return 0, nil
	}
	if max := int64(size) - offset; int64(len(dst)) > max {
		dst = dst[:max]
	}
	total := 0
	rd := offset
	end := offset + int64(len(dst))
	for rd < end {
		n, err := readRange(store, addrs, rd, dst[rd-offset:])
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
		total += n
		rd += int64(n)
	}
	return total, nil
}

// readRange resolves the block holding byte offset o (without
// allocating) and copies up to len(dst) bytes starting at that block's
// local offset into dst. A missing block is not an error: it returns 0
// bytes and leaves dst untouched.
func readRange(store BlockStore, addrs [NADDRS]uint32, o int64, dst []byte) (int, error) {
	bn := uint64(o) / BSIZE
	level := 0
	cum := uint64(0)
	for {
		cum += levelSizes[level]
		if cum > bn {
			break
		}
		bn -= levelSizes[level]
		level++
	}

	var cur uint32
	if level == 0 {
		cur = addrs[bn]
	} else {
		cur = addrs[NDIRECT+level-1]
		for l := level; l > 0 && cur != 0; l-- {
			div := uint64(1)
			for i := 0; i < l-1; i++ {
				div *= NINDIRECT
			}
			n := bn / div
			bn = bn % div
			block, err := store.ReadBlock(cur)
			if err != nil {
				return 0, err
			}
			var ptrs [NINDIRECT]uint32
			decodeUint32Array(block[:], ptrs[:])
			cur = ptrs[n]
		}
	}
	if cur == 0 {
		return 0, nil // sparse hole: nothing is copied
	}

	local := int(o % BSIZE)
	block, err := store.ReadBlock(cur)
	if err != nil {
		return 0, err
	}
	return copy(dst, block[local:]), nil
}

// writeSpanning writes data starting at the given logical offset, broken
// into writeRange calls that each touch at most one block. The online
// write path (FileHandle.WriteAt) and the offline image builder
// (Builder.iappend) share this instead of re-deriving the chunking loop.
func writeSpanning(store BlockStore, addrs *[NADDRS]uint32, offset int64, data []byte) error {
	wr := offset
	end := offset + int64(len(data))
	for wr < end {
		local := int(wr % BSIZE)
		chunk := BSIZE - local
		if remaining := int(end - wr); chunk > remaining {
			chunk = remaining
		}
		src := data[wr-offset : wr-offset+int64(chunk)]
		if err := writeRange(store, addrs, wr, src); err != nil {
			return err
		}
		wr += int64(chunk)
	}
	return nil
}

func decodeUint32Array(raw []byte, out []uint32) {
	for i := range out {
		off := i * 4
		out[i] = uint32(raw[off]) | uint32(raw[off+1])<<8 | uint32(raw[off+2])<<16 | uint32(raw[off+3])<<24
	}
}

func encodeUint32Array(in []uint32, raw []byte) {
	for i, v := range in {
		off := i * 4
		raw[off] = byte(v)
		raw[off+1] = byte(v >> 8)
		raw[off+2] = byte(v >> 16)
		raw[off+3] = byte(v >> 24)
	}
}
