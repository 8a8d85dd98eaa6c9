package lfs

import (
	"context"
	"io/fs"
	"sync"
	"syscall"

	gofs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// fuseFile is a read-only file node backed by an Image path. Content is
// read lazily through the shared indirect-tree walker, not loaded up
// front, since an image can be far larger than memory.
type fuseFile struct {
	gofs.Inode
	im   *Image
	path string

	mu   sync.Mutex
	info fs.FileInfo
}

var _ = (gofs.NodeGetattrer)((*fuseFile)(nil))
var _ = (gofs.NodeOpener)((*fuseFile)(nil))
var _ = (gofs.NodeReader)((*fuseFile)(nil))

func (f *fuseFile) stat() (fs.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.info == nil {
		info, err := f.im.Stat(f.path)
		if err != nil {
			return nil, err
		}
		f.info = info
	}
	return f.info, nil
}

func (f *fuseFile) Getattr(ctx context.Context, fh gofs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	info, err := f.stat()
	if err != nil {
		return syscall.ENOENT
	}
	out.Size = uint64(info.Size())
	out.Mode = uint32(info.Mode().Perm()) | fuse.S_IFREG
	return gofs.OK
}

// Open is a no-op: there is nothing to unpack ahead of time, reads go
// straight through to the image on every call.
func (f *fuseFile) Open(ctx context.Context, flags uint32) (gofs.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_KEEP_CACHE, gofs.OK
}

func (f *fuseFile) Read(ctx context.Context, fh gofs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	file, err := f.im.Open(f.path)
	if err != nil {
		return nil, syscall.ENOENT
	}
	defer file.Close()
	ra, ok := file.(interface {
		ReadAt([]byte, int64) (int, error)
	})
	if !ok {
		return nil, syscall.EIO
	}
	n, err := ra.ReadAt(dest, off)
	if err != nil && n == 0 {
		return nil, syscall.EIO
	}
	return fuse.ReadResultData(dest[:n]), gofs.OK
}

// fuseRoot is the root node of the exported tree. Its only job is
// populating persistent child inodes from the image's directory
// structure, mirroring how a static in-memory tree is built elsewhere in
// the go-fuse ecosystem.
type fuseRoot struct {
	gofs.Inode
	im *Image
}

var _ = (gofs.NodeOnAdder)((*fuseRoot)(nil))

func (r *fuseRoot) OnAdd(ctx context.Context) {
	r.addDir(ctx, &r.Inode, ".")
}

func (r *fuseRoot) addDir(ctx context.Context, parent *gofs.Inode, dirPath string) {
	entries, err := r.im.ReadDir(dirPath)
	if err != nil {
		return
	}
	for _, e := range entries {
		childPath := dirPath + "/" + e.Name()
		if dirPath == "." {
			childPath = e.Name()
		}
		if e.IsDir() {
			childDirInode := parent.NewPersistentInode(ctx, &gofs.Inode{}, gofs.StableAttr{Mode: fuse.S_IFDIR})
			parent.AddChild(e.Name(), childDirInode, true)
			r.addDir(ctx, childDirInode, childPath)
			continue
		}
		childInode := parent.NewPersistentInode(ctx, &fuseFile{im: r.im, path: childPath}, gofs.StableAttr{})
		parent.AddChild(e.Name(), childInode, true)
	}
}

// Mount exports dev's image read-only at mountpoint until the returned
// server is unmounted. It returns once the mount is established and
// serves requests in the background; call Wait on the returned server to
// block until it is unmounted, and Unmount to end it.
func Mount(dev BlockDevice, mountpoint string) (*fuse.Server, error) {
	im, err := OpenImage(dev)
	if err != nil {
		return nil, err
	}
	root := &fuseRoot{im: im}
	return gofs.Mount(mountpoint, root, &gofs.Options{
		MountOptions: fuse.MountOptions{
			FsName:   "lfs",
			Name:     "lfs",
			ReadOnly: true,
		},
	})
}
