package lfs

import (
	"io"
	"io/fs"
	"path"
	"strings"
	"time"
)

// Image is a read-only view over a finished image, implementing
// io/fs.FS. Open resolves a slash-separated path by walking directory
// entries starting from the root inode.
type Image struct {
	dev BlockDevice
	sb  *Superblock
}

var _ fs.FS = (*Image)(nil)
var _ fs.StatFS = (*Image)(nil)
var _ fs.ReadDirFS = (*Image)(nil)

// OpenImage reads the superblock from dev and returns a read-only view
// over the image it describes.
func OpenImage(dev BlockDevice) (*Image, error) {
	sb, err := ReadSuperblock(dev)
	if err != nil {
		return nil, err
	}
	return &Image{dev: dev, sb: sb}, nil
}

// imageBlockStore adapts Image's read-only device access to BlockStore
// so file content is read through the same indirect-tree walker as the
// write paths. AllocBlock is never called on a read-only view.
type imageBlockStore struct {
	im *Image
}

func (s *imageBlockStore) ReadBlock(bn uint32) ([BSIZE]byte, error) {
	var out [BSIZE]byte
	buf := make([]byte, BSIZE)
	if err := s.im.dev.ReadBlock(bn, buf); err != nil {
		return out, err
	}
	copy(out[:], buf)
	return out, nil
}

func (s *imageBlockStore) WriteBlock(uint32, [BSIZE]byte) error {
	return fs.ErrPermission
}

func (s *imageBlockStore) AllocBlock() (uint32, error) {
	return 0, fs.ErrPermission
}

func (im *Image) readInode(ino uint32) (*DiskInode, error) {
	if ino == 0 {
		return nil, ErrNoSuchInode
	}
	imapBuf := make([]byte, BSIZE)
	if err := im.dev.ReadBlock(im.sb.Imap, imapBuf); err != nil {
		return nil, err
	}
	imap, err := ImapBlock(imapBuf)
	if err != nil {
		return nil, err
	}
	if int(ino) >= len(imap) || imap[ino] == 0 {
		return nil, ErrNoSuchInode
	}
	buf := make([]byte, BSIZE)
	if err := im.dev.ReadBlock(imap[ino], buf); err != nil {
		return nil, err
	}
	di := new(DiskInode)
	if err := di.UnmarshalBinary(buf); err != nil {
		return nil, err
	}
	return di, nil
}

func (im *Image) readDirents(di *DiskInode) ([]Dirent, error) {
	data := make([]byte, di.Size)
	store := &imageBlockStore{im}
	n, err := readSpanning(store, di.Addrs, di.Size, 0, data)
	if err != nil {
		return nil, err
	}
	return DecodeDirents(data[:n]), nil
}

// lookup resolves name inside the directory held by dirIno, returning
// the matching entry's inode number.
func (im *Image) lookup(dirIno uint32, name string) (uint32, error) {
	di, err := im.readInode(dirIno)
	if err != nil {
		return 0, err
	}
	if InodeType(di.Type) != TypeDir {
		return 0, ErrNotDirectory
	}
	ents, err := im.readDirents(di)
	if err != nil {
		return 0, err
	}
	for _, e := range ents {
		if !e.Empty() && e.NameString() == name {
			return uint32(e.Inum), nil
		}
	}
	return 0, ErrNoSuchFile
}

// resolve walks a slash-separated path from the root inode.
func (im *Image) resolve(name string) (uint32, *DiskInode, error) {
	name = path.Clean("/" + name)
	ino := uint32(RootIno)
	di, err := im.readInode(ino)
	if err != nil {
		return 0, nil, err
	}
	if name == "/" {
		return ino, di, nil
	}
	parts := strings.Split(strings.TrimPrefix(name, "/"), "/")
	for _, part := range parts {
		ino, err = im.lookup(ino, part)
		if err != nil {
			return 0, nil, err
		}
		di, err = im.readInode(ino)
		if err != nil {
			return 0, nil, err
		}
	}
	return ino, di, nil
}

// Open implements fs.FS.
func (im *Image) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	ino, di, err := im.resolve(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	base := path.Base(name)
	if InodeType(di.Type) == TypeDir {
		return &imageDir{im: im, ino: ino, di: di, name: base}, nil
	}
	return &imageFile{im: im, ino: ino, di: di, name: base}, nil
}

// Stat implements fs.StatFS.
func (im *Image) Stat(name string) (fs.FileInfo, error) {
	f, err := im.Open(name)
	if err != nil {
		return nil, err
	}
	return f.Stat()
}

// ReadDir implements fs.ReadDirFS.
func (im *Image) ReadDir(name string) ([]fs.DirEntry, error) {
	f, err := im.Open(name)
	if err != nil {
		return nil, err
	}
	dir, ok := f.(fs.ReadDirFile)
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: ErrNotDirectory}
	}
	return dir.ReadDir(-1)
}

type imageFileInfo struct {
	name string
	di   *DiskInode
}

func (fi *imageFileInfo) Name() string      { return fi.name }
func (fi *imageFileInfo) Size() int64       { return int64(fi.di.Size) }
func (fi *imageFileInfo) Mode() fs.FileMode { return InodeType(fi.di.Type).Mode() }

// ModTime always reports the zero time: disk inodes carry no timestamp.
func (fi *imageFileInfo) ModTime() time.Time { return time.Time{} }
func (fi *imageFileInfo) IsDir() bool        { return InodeType(fi.di.Type) == TypeDir }
func (fi *imageFileInfo) Sys() any           { return fi.di }

type imageFile struct {
	im   *Image
	ino  uint32
	di   *DiskInode
	name string
	pos  int64
}

var _ fs.File = (*imageFile)(nil)
var _ io.ReaderAt = (*imageFile)(nil)

func (f *imageFile) Stat() (fs.FileInfo, error) {
	return &imageFileInfo{name: f.name, di: f.di}, nil
}

func (f *imageFile) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, f.pos)
	f.pos += int64(n)
	if n == 0 && err == nil {
		return 0, io.EOF
	}
	return n, err
}

func (f *imageFile) ReadAt(p []byte, off int64) (int, error) {
	store := &imageBlockStore{f.im}
	return readSpanning(store, f.di.Addrs, f.di.Size, off, p)
}

func (f *imageFile) Close() error { return nil }

type imageDir struct {
	im      *Image
	ino     uint32
	di      *DiskInode
	name    string
	ents    []Dirent
	read    bool
	nextIdx int
}

var _ fs.ReadDirFile = (*imageDir)(nil)

func (d *imageDir) Stat() (fs.FileInfo, error) {
	return &imageFileInfo{name: d.name, di: d.di}, nil
}

func (d *imageDir) Read([]byte) (int, error) {
	return 0, fs.ErrInvalid
}

func (d *imageDir) Close() error { return nil }

func (d *imageDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if !d.read {
		ents, err := d.im.readDirents(d.di)
		if err != nil {
			return nil, err
		}
		d.ents = ents
		d.read = true
	}

	var out []fs.DirEntry
	for d.nextIdx < len(d.ents) {
		e := d.ents[d.nextIdx]
		d.nextIdx++
		if e.Empty() {
			continue
		}
		nm := e.NameString()
		if nm == "." || nm == ".." {
			continue
		}
		childDi, err := d.im.readInode(uint32(e.Inum))
		if err != nil {
			return nil, err
		}
		out = append(out, &imageDirent{name: nm, di: childDi})
		if n > 0 && len(out) >= n {
			return out, nil
		}
	}
	if n > 0 && len(out) == 0 {
		return nil, io.EOF
	}
	return out, nil
}

type imageDirent struct {
	name string
	di   *DiskInode
}

func (e *imageDirent) Name() string { return e.name }
func (e *imageDirent) IsDir() bool  { return InodeType(e.di.Type) == TypeDir }
func (e *imageDirent) Type() fs.FileMode {
	return InodeType(e.di.Type).Mode()
}
func (e *imageDirent) Info() (fs.FileInfo, error) {
	return &imageFileInfo{name: e.name, di: e.di}, nil
}
