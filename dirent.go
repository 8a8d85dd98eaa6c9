package lfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Dirent is one 16-byte entry in a directory file: a packed sequence of
// these makes up a directory's entire contents. An empty entry has
// Inum == 0.
type Dirent struct {
	Inum uint16
	Name [DirNameBytes]byte
}

// DirentSize is the on-disk size of a Dirent, in bytes.
const DirentSize = 2 + DirNameBytes

// NewDirent builds a Dirent, truncating name to DirNameBytes if needed.
func NewDirent(inum uint16, name string) Dirent {
	var d Dirent
	d.Inum = inum
	n := copy(d.Name[:], name)
	_ = n
	return d
}

// NameString returns the entry's name as a Go string, trimmed at the
// first NUL byte (or the full field width if unterminated).
func (d Dirent) NameString() string {
	i := bytes.IndexByte(d.Name[:], 0)
	if i < 0 {
		i = len(d.Name)
	}
	return string(d.Name[:i])
}

// Empty reports whether this is an unused directory slot.
func (d Dirent) Empty() bool {
	return d.Inum == 0
}

// MarshalBinary encodes the dirent in its fixed little-endian layout.
func (d Dirent) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Grow(DirentSize)
	if err := binary.Write(buf, binary.LittleEndian, d.Inum); err != nil {
		return nil, err
	}
	if _, err := buf.Write(d.Name[:]); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a dirent from its on-disk representation.
func (d *Dirent) UnmarshalBinary(data []byte) error {
	if len(data) < DirentSize {
		return fmt.Errorf("lfs: dirent buffer too small: %d bytes", len(data))
	}
	d.Inum = binary.LittleEndian.Uint16(data[0:2])
	copy(d.Name[:], data[2:DirentSize])
	return nil
}

// DecodeDirents splits a directory file's raw contents into its packed
// dirents, ignoring a trailing partial entry (directory files are always
// written in whole-dirent chunks, but a reader should not panic on a
// truncated tail).
func DecodeDirents(data []byte) []Dirent {
	n := len(data) / DirentSize
	out := make([]Dirent, 0, n)
	for i := 0; i < n; i++ {
		var d Dirent
		// error is impossible here: data[off:off+DirentSize] is always
		// exactly DirentSize bytes.
		_ = d.UnmarshalBinary(data[i*DirentSize : (i+1)*DirentSize])
		out = append(out, d)
	}
	return out
}
