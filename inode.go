package lfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"reflect"
)

// DiskInode is the fixed 64-byte on-disk inode representation.
type DiskInode struct {
	Type  int16
	Major int16
	Minor int16
	Nlink int16
	Size  uint32
	Addrs [NADDRS]uint32
}

// DiskInodeSize is the on-disk size of a DiskInode, in bytes.
const DiskInodeSize = 2 + 2 + 2 + 2 + 4 + NADDRS*4

func init() {
	if DiskInodeSize != 64 {
		panic(fmt.Sprintf("lfs: disk inode size is %d, want 64", DiskInodeSize))
	}
}

// MarshalBinary encodes the inode in its fixed little-endian layout.
func (d *DiskInode) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	v := reflect.ValueOf(d).Elem()
	for i := 0; i < v.NumField(); i++ {
		if err := binary.Write(buf, binary.LittleEndian, v.Field(i).Interface()); err != nil {
			return nil, fmt.Errorf("lfs: marshal inode field %s: %w", v.Type().Field(i).Name, err)
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes an inode from its on-disk representation.
func (d *DiskInode) UnmarshalBinary(data []byte) error {
	if len(data) < DiskInodeSize {
		return fmt.Errorf("lfs: inode buffer too small: %d bytes", len(data))
	}
	r := bytes.NewReader(data)
	v := reflect.ValueOf(d).Elem()
	for i := 0; i < v.NumField(); i++ {
		if err := binary.Read(r, binary.LittleEndian, v.Field(i).Addr().Interface()); err != nil {
			return fmt.Errorf("lfs: unmarshal inode field %s: %w", v.Type().Field(i).Name, err)
		}
	}
	return nil
}

// ImapBlock decodes the inode-map table out of a raw BSIZE block: entry i
// is the physical block number currently holding inode i. Entry 0 is
// reserved and always decodes to 0.
func ImapBlock(raw []byte) ([ImapEntries]uint32, error) {
	var imap [ImapEntries]uint32
	if len(raw) < BSIZE {
		return imap, ErrImageTooSmall
	}
	r := bytes.NewReader(raw)
	if err := binary.Read(r, binary.LittleEndian, &imap); err != nil {
		return imap, fmt.Errorf("lfs: decode inode map: %w", err)
	}
	return imap, nil
}

// EncodeImap encodes an inode-map table into a raw BSIZE block.
func EncodeImap(imap [ImapEntries]uint32) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(BSIZE)
	_ = binary.Write(buf, binary.LittleEndian, &imap)
	out := buf.Bytes()
	if len(out) < BSIZE {
		out = append(out, make([]byte, BSIZE-len(out))...)
	}
	return out
}
