package lfs

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// ArchiveFormat selects the compression codec used to pack and unpack a
// whole image.
type ArchiveFormat uint8

const (
	ArchiveZstd ArchiveFormat = iota
	ArchiveXZ
)

func (f ArchiveFormat) String() string {
	switch f {
	case ArchiveZstd:
		return "zstd"
	case ArchiveXZ:
		return "xz"
	default:
		return fmt.Sprintf("ArchiveFormat(%d)", f)
	}
}

// Pack compresses all of src, typically a whole opened image file, into
// dst using format.
func Pack(dst io.Writer, src io.Reader, format ArchiveFormat) error {
	switch format {
	case ArchiveZstd:
		w, err := zstd.NewWriter(dst)
		if err != nil {
			return fmt.Errorf("lfs: pack: %w", err)
		}
		if _, err := io.Copy(w, src); err != nil {
			w.Close()
			return fmt.Errorf("lfs: pack: %w", err)
		}
		return w.Close()
	case ArchiveXZ:
		w, err := xz.NewWriter(dst)
		if err != nil {
			return fmt.Errorf("lfs: pack: %w", err)
		}
		if _, err := io.Copy(w, src); err != nil {
			w.Close()
			return fmt.Errorf("lfs: pack: %w", err)
		}
		return w.Close()
	default:
		return fmt.Errorf("lfs: pack: unknown archive format %v", format)
	}
}

// Unpack decompresses src, an archive produced by Pack with the same
// format, into dst.
func Unpack(dst io.Writer, src io.Reader, format ArchiveFormat) error {
	switch format {
	case ArchiveZstd:
		r, err := zstd.NewReader(src)
		if err != nil {
			return fmt.Errorf("lfs: unpack: %w", err)
		}
		defer r.Close()
		_, err = io.Copy(dst, r)
		return err
	case ArchiveXZ:
		r, err := xz.NewReader(src)
		if err != nil {
			return fmt.Errorf("lfs: unpack: %w", err)
		}
		_, err = io.Copy(dst, r)
		return err
	default:
		return fmt.Errorf("lfs: unpack: unknown archive format %v", format)
	}
}
