package lfs

import "errors"

// Package-specific error variables, usable with errors.Is. These cover
// recoverable conditions on the offline builder and read-side paths. The
// online write path does not return these: misuse there is a programmer
// error and panics instead (see buffer.go and segment.go).
var (
	// ErrBadMagic describes an image whose superblock is not valid. No
	// function in this package returns it: the superblock carries no
	// magic number, and a short superblock buffer is reported as
	// ErrImageTooSmall.
	ErrBadMagic = errors.New("lfs: not a valid image (bad superblock)")

	// ErrImageTooSmall is returned when a buffer handed to a decoder (the
	// superblock or the inode map) is shorter than the structure it must
	// hold. An image file too short to hold a block fails earlier, with
	// the device's own read error.
	ErrImageTooSmall = errors.New("lfs: image file too small")

	// ErrInodeLimitExceeded is returned by the offline builder when more
	// inodes are allocated than fit in one inode-map block.
	ErrInodeLimitExceeded = errors.New("lfs: inode limit exceeded")

	// ErrNoSuchInode is returned when an inode map lookup targets inode 0
	// or an inode number beyond the superblock's ninodes.
	ErrNoSuchInode = errors.New("lfs: no such inode")

	// ErrNotDirectory is returned when a directory operation targets a
	// non-directory inode.
	ErrNotDirectory = errors.New("lfs: not a directory")

	// ErrNoSuchFile is returned by the read-side filesystem view when a
	// path cannot be resolved.
	ErrNoSuchFile = errors.New("lfs: no such file or directory")

	// ErrFileTooLarge is returned when a write would grow a file past
	// MAXFILE blocks.
	ErrFileTooLarge = errors.New("lfs: file exceeds maximum size")
)
