package fat

import "io"

// FS is the Filesystem Facade (spec §4.4), composing the BPB decoder, the
// cluster-chain walker and the directory scanner into the five
// host-facing operations: open, read, dir, close, label.
type FS struct {
	vol *Volume
}

// MountFS mounts bd and returns a ready-to-use Facade.
func MountFS(bd BlockDevice, opts ...MountOption) (*FS, error) {
	vol, _, err := Mount(bd, opts...)
	if err != nil {
		return nil, err
	}
	return &FS{vol: vol}, nil
}

// Remount re-reads the BPB and rebinds fsys to the result, bumping the
// generation counter so Files opened before the call start failing with
// ErrStaleHandle instead of silently reading through stale geometry — the
// same role the teacher's obj.id/mount_volume pairing plays.
func (fsys *FS) Remount(bd BlockDevice, opts ...MountOption) error {
	vol, _, err := Mount(bd, opts...)
	if err != nil {
		return err
	}
	vol.generation = fsys.vol.generation + 1
	fsys.vol = vol
	return nil
}

// File is a handle returned by Open. It implements io.Reader; the current
// offset is maintained by the host, matching spec §4.4's
// "read(file, buf, len) @ offset — ... the offset is maintained by the
// host."
type File struct {
	fs         *FS
	vol        *Volume
	generation uint64
	cursor     *Cursor
	offset     int64
	closed     bool
}

// Open resolves path and returns a File. It fails with ErrBadFileType if
// the terminal entry is a directory, or ErrFileNotFound if any component
// is missing.
func (fsys *FS) Open(path string) (*File, error) {
	cur := &Cursor{start: fsys.vol.rootRef, attributes: amDIR}
	if err := resolvePath(fsys.vol, cur, path); err != nil {
		return nil, err
	}
	if isDirAttr(cur.attributes) {
		return nil, badFileType("not a file")
	}
	return &File{fs: fsys, vol: fsys.vol, generation: fsys.vol.generation, cursor: cur}, nil
}

func (f *File) checkStale() error {
	if f.fs.vol.generation != f.generation {
		return ErrStaleHandle
	}
	return nil
}

// Read implements io.Reader, reading from the current offset and
// advancing it. Returns io.EOF once the file's declared size is reached,
// matching the standard io.Reader contract (spec's own Read contract
// returns a plain byte count; File adapts it to io.Reader for host
// convenience).
func (f *File) Read(buf []byte) (int, error) {
	if f.closed {
		return 0, io.ErrClosedPipe
	}
	if err := f.checkStale(); err != nil {
		return 0, err
	}
	n, err := f.vol.Read(f.cursor, f.offset, buf, nil)
	if err != nil {
		return n, err
	}
	f.offset += int64(n)
	if n == 0 && len(buf) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// ReadAt reads len(buf) bytes (or up to EOF) starting at the given
// absolute offset without moving the offset that Read advances, directly
// exposing spec §4.2's random-access contract.
func (f *File) ReadAt(buf []byte, offset int64) (int, error) {
	if f.closed {
		return 0, io.ErrClosedPipe
	}
	if err := f.checkStale(); err != nil {
		return 0, err
	}
	return f.vol.Read(f.cursor, offset, buf, nil)
}

// Size returns the file's declared size in bytes.
func (f *File) Size() int64 { return f.cursor.fileSize }

// Close releases the file's resources (spec §4.4).
func (f *File) Close() error {
	f.closed = true
	return nil
}

// DirEntry is passed to a Dir listing hook.
type DirEntry struct {
	Name  string
	IsDir bool
}

// Dir lists the directory at path, invoking hook once per entry in
// on-disk order until hook returns true or the directory is exhausted
// (spec §4.4's dir(disk, path, hook)).
func (fsys *FS) Dir(path string, hook func(DirEntry) bool) error {
	cur := &Cursor{start: fsys.vol.rootRef, attributes: amDIR}
	if err := resolvePath(fsys.vol, cur, path); err != nil {
		return err
	}
	if !isDirAttr(cur.attributes) {
		return badFileType("not a directory")
	}
	_, err := fsys.vol.scanDirectory(cur, "", func(name string, isDir bool) bool {
		return hook(DirEntry{Name: name, IsDir: isDir})
	})
	return err
}

// Label returns the volume label, or "", false if none is present (spec
// §4.4): the root directory's raw entries are scanned bypassing LFN
// assembly, and the first entry whose attribute byte equals exactly
// VOLUME_ID (0x08) yields its 11-byte short name, spaces included,
// untouched by the 8.3 lowercasing/decoding path used for file names.
func (fsys *FS) Label() (string, bool, error) {
	cur := &Cursor{start: fsys.vol.rootRef, attributes: amDIR}
	var label string
	var found bool
	var entry [dirEntrySize]byte
	var offset int64
	for {
		n, err := fsys.vol.Read(cur, offset, entry[:], nil)
		if err != nil {
			return "", false, err
		}
		if n < dirEntrySize || entry[dirNameOff] == 0x00 {
			break
		}
		offset += dirEntrySize
		if entry[dirAttrOff] == amVOL {
			label = string(entry[dirNameOff : dirNameOff+11])
			found = true
			break
		}
	}
	return label, found, nil
}

// resolvePath walks every "/"-delimited component of path, mutating cur
// to the final entry (spec §4.3/§4.4). A path of all slashes (including
// the bare root "/") names the starting cursor itself, with no component
// to resolve.
func resolvePath(v *Volume, cur *Cursor, path string) error {
	for {
		for len(path) > 0 && path[0] == '/' {
			path = path[1:]
		}
		if len(path) == 0 {
			return nil
		}
		rest, terminal, err := v.resolveComponent(cur, path)
		if err != nil {
			return err
		}
		if terminal {
			return nil
		}
		path = rest
	}
}
