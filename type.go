package lfs

import "io/fs"

// InodeType is the on-disk type field of a disk inode.
type InodeType int16

const (
	// TypeFree marks an inode slot as unused.
	TypeFree InodeType = 0
	// TypeDir is a directory inode.
	TypeDir InodeType = 1
	// TypeFile is a regular file inode.
	TypeFile InodeType = 2
	// TypeDev is a device-special inode (major/minor identify the device).
	TypeDev InodeType = 3
)

func (t InodeType) String() string {
	switch t {
	case TypeFree:
		return "free"
	case TypeDir:
		return "dir"
	case TypeFile:
		return "file"
	case TypeDev:
		return "dev"
	default:
		return "unknown"
	}
}

// Mode returns an fs.FileMode carrying only this type's bit, no
// permissions (xv6-lfs has no notion of unix permission bits on disk).
func (t InodeType) Mode() fs.FileMode {
	switch t {
	case TypeDir:
		return fs.ModeDir
	case TypeDev:
		return fs.ModeDevice
	default:
		return 0
	}
}
