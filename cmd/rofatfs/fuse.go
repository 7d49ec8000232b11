//go:build linux

package main

import (
	"context"
	"io"
	"os"
	"path"
	"sort"
	"sync"

	fat "github.com/embedfat/rofat"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
)

// rofatFS adapts a *fat.FS to bazil.org/fuse, exposing a read-only tree
// rooted at "/" the same way ostafen/digler's RecoverFS exposes a flat
// carved-file index, except every lookup here re-enters the FAT Facade
// instead of an in-memory map.
type rofatFS struct {
	fsys *fat.FS
}

func (r *rofatFS) Root() (fs.Node, error) {
	return &dirNode{fsys: r.fsys, path: "/"}, nil
}

// dirNode implements fs.Node, fs.HandleReadDirAller and fs.NodeStringLookuper
// for one FAT directory.
type dirNode struct {
	fsys *fat.FS
	path string
}

func (d *dirNode) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Mode = os.ModeDir | 0555
	return nil
}

func (d *dirNode) Lookup(ctx context.Context, name string) (fs.Node, error) {
	childPath := joinFATPath(d.path, name)

	var isDir bool
	found := false
	err := d.fsys.Dir(d.path, func(e fat.DirEntry) bool {
		if e.Name == name {
			isDir = e.IsDir
			found = true
			return true
		}
		return false
	})
	if err != nil {
		return nil, translateErr(err)
	}
	if !found {
		return nil, fuse.ENOENT
	}
	if isDir {
		return &dirNode{fsys: d.fsys, path: childPath}, nil
	}

	f, err := d.fsys.Open(childPath)
	if err != nil {
		return nil, translateErr(err)
	}
	return &fileNode{fsys: d.fsys, path: childPath, size: f.Size()}, nil
}

func (d *dirNode) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	var entries []fuse.Dirent
	err := d.fsys.Dir(d.path, func(e fat.DirEntry) bool {
		typ := fuse.DT_File
		if e.IsDir {
			typ = fuse.DT_Dir
		}
		entries = append(entries, fuse.Dirent{Name: e.Name, Type: typ})
		return false
	})
	if err != nil {
		return nil, translateErr(err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	for i := range entries {
		entries[i].Inode = uint64(i + 1)
	}
	return entries, nil
}

// fileNode implements fs.Node and fs.HandleReader for one FAT file. Each
// Read call opens a fresh *fat.File so concurrent reads never race over a
// shared offset, matching spec §4.4's "offset is maintained by the host"
// contract: here the host is one read() call, not the open handle.
type fileNode struct {
	fsys *fat.FS
	path string
	size int64

	mu sync.Mutex
}

func (f *fileNode) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Mode = 0444
	a.Size = uint64(f.size)
	return nil
}

func (f *fileNode) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if req.Offset >= f.size {
		resp.Data = []byte{}
		return nil
	}
	size := req.Size
	if int64(size) > f.size-req.Offset {
		size = int(f.size - req.Offset)
	}

	handle, err := f.fsys.Open(f.path)
	if err != nil {
		return translateErr(err)
	}
	defer handle.Close()

	buf := make([]byte, size)
	n, err := handle.ReadAt(buf, req.Offset)
	if err != nil && err != io.EOF {
		return translateErr(err)
	}
	resp.Data = buf[:n]
	return nil
}

func translateErr(err error) error {
	switch {
	case err == nil:
		return nil
	default:
		return fuse.ENOENT
	}
}

func joinFATPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return path.Join(dir, name)
}
