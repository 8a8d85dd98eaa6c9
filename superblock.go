package lfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"reflect"
)

// Superblock is the sole block the file system ever writes in place. It
// records the checkpoint: the most recently committed segment and the
// location of the inode map.
type Superblock struct {
	Nsegs   uint32 // number of segments committed so far
	Segment uint32 // block number of the most recent checkpointed segment start
	Imap    uint32 // block holding the inode-map table
	Ninodes uint32 // number of inodes allocated
	Nblocks uint32 // blocks in committed segments (Nsegs * SEGBLOCKS), segment metadata included

	// Next is the block number one past the end of the most recently
	// committed segment; the next segment to open starts exactly there.
	// It lives alongside the on-disk fields but is itself part of the
	// checkpoint contract (spec invariant: Next is strictly increasing
	// across segment seals).
	Next uint32
}

// SuperblockSize is the on-disk size of a Superblock, in bytes.
const SuperblockSize = 6 * 4

// MarshalBinary encodes the superblock in the fixed little-endian layout
// used on disk. Exported fields are written in declaration order; this
// mirrors how the fields are read back in UnmarshalBinary, so adding a
// field to the struct is the only change needed to grow the format.
func (s *Superblock) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	v := reflect.ValueOf(s).Elem()
	for i := 0; i < v.NumField(); i++ {
		if err := binary.Write(buf, binary.LittleEndian, v.Field(i).Interface()); err != nil {
			return nil, fmt.Errorf("lfs: marshal superblock field %s: %w", v.Type().Field(i).Name, err)
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a superblock from its on-disk representation.
func (s *Superblock) UnmarshalBinary(data []byte) error {
	if len(data) < SuperblockSize {
		return ErrImageTooSmall
	}
	r := bytes.NewReader(data)
	v := reflect.ValueOf(s).Elem()
	for i := 0; i < v.NumField(); i++ {
		if err := binary.Read(r, binary.LittleEndian, v.Field(i).Addr().Interface()); err != nil {
			return fmt.Errorf("lfs: unmarshal superblock field %s: %w", v.Type().Field(i).Name, err)
		}
	}
	return nil
}

// ReadSuperblock reads and decodes the superblock from its reserved block
// (SuperblockNum) of dev.
func ReadSuperblock(dev BlockDevice) (*Superblock, error) {
	buf := make([]byte, BSIZE)
	if err := dev.ReadBlock(SuperblockNum, buf); err != nil {
		return nil, err
	}
	sb := new(Superblock)
	if err := sb.UnmarshalBinary(buf); err != nil {
		return nil, err
	}
	return sb, nil
}

// WriteSuperblock encodes and writes sb to its reserved block
// (SuperblockNum) of dev, zero-padded to
// a full block. This is the only in-place write in the system.
func WriteSuperblock(dev BlockDevice, sb *Superblock) error {
	enc, err := sb.MarshalBinary()
	if err != nil {
		return err
	}
	buf := make([]byte, BSIZE)
	copy(buf, enc)
	return dev.WriteBlock(SuperblockNum, buf)
}
