package fat

import (
	"errors"
	"testing"
)

// TestNestedDirectory exercises resolveComponent across more than one
// path component: /SUBDIR/ holds cluster 3; a file inside it resolves
// through both the fixed root and the subdirectory's own cluster chain.
func TestNestedDirectory(t *testing.T) {
	bd, l := buildFAT16Fixture(t)
	setFAT16Entry(bd, l, 2, 0xFFFF) // subdir: single cluster.
	setFAT16Entry(bd, l, 3, 0xFFFF) // file: single cluster.

	writeDirEntry(bd, l.rootStart, 0, "SUBDIR", "", amDIR, 2, 0)
	writeDirEntry(bd, clusterSector(l, 2), 0, "INNER", "TXT", amARC, 3, 5)
	bd.writeAt(clusterSector(l, 3), 0, []byte("nested"))

	fsys, err := MountFS(bd)
	if err != nil {
		t.Fatalf("MountFS: %v", err)
	}
	f, err := fsys.Open("/subdir/inner.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	buf := make([]byte, 5)
	n, err := f.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "neste" {
		t.Fatalf("Read = %q, want %q", buf[:n], "neste")
	}
}

// TestDirListingStopsEarly confirms a listing hook returning true halts
// the scan before later entries are visited.
func TestDirListingStopsEarly(t *testing.T) {
	bd, l := buildFAT16Fixture(t)
	writeDirEntry(bd, l.rootStart, 0, "FIRST", "TXT", amARC, 0, 0)
	writeDirEntry(bd, l.rootStart, 1, "SECOND", "TXT", amARC, 0, 0)
	writeDirEntry(bd, l.rootStart, 2, "THIRD", "TXT", amARC, 0, 0)

	fsys, err := MountFS(bd)
	if err != nil {
		t.Fatalf("MountFS: %v", err)
	}
	var seen []string
	err = fsys.Dir("/", func(e DirEntry) bool {
		seen = append(seen, e.Name)
		return e.Name == "first.txt"
	})
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}
	if len(seen) != 1 || seen[0] != "first.txt" {
		t.Fatalf("Dir listing = %v, want to stop after [first.txt]", seen)
	}
}

// TestDirListingSkipsVolumeID confirms a VOLUME_ID entry never reaches
// the listing hook (spec §4.3 step 3 / §4.4's label carve-out).
func TestDirListingSkipsVolumeID(t *testing.T) {
	bd, l := buildFAT16Fixture(t)
	writeDirEntry(bd, l.rootStart, 0, "AVOLUME", "", amVOL, 0, 0)
	writeDirEntry(bd, l.rootStart, 1, "REALFILE", "TXT", amARC, 0, 0)

	fsys, err := MountFS(bd)
	if err != nil {
		t.Fatalf("MountFS: %v", err)
	}
	var seen []string
	if err := fsys.Dir("/", func(e DirEntry) bool { seen = append(seen, e.Name); return false }); err != nil {
		t.Fatalf("Dir: %v", err)
	}
	if len(seen) != 1 || seen[0] != "realfile.txt" {
		t.Fatalf("Dir listing = %v, want only [realfile.txt]", seen)
	}
}

func TestFileSizeAndClose(t *testing.T) {
	bd, l := buildFAT16Fixture(t)
	setFAT16Entry(bd, l, 2, 0xFFFF)
	writeDirEntry(bd, l.rootStart, 0, "HELLO", "TXT", amARC, 2, 2)
	bd.writeAt(clusterSector(l, 2), 0, []byte("hi"))

	fsys, err := MountFS(bd)
	if err != nil {
		t.Fatalf("MountFS: %v", err)
	}
	f, err := fsys.Open("/hello.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if f.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", f.Size())
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	buf := make([]byte, 1)
	if _, err := f.Read(buf); err == nil {
		t.Fatal("Read after Close should fail")
	}
}

// TestOpenBareRootFailsAsDirectory confirms the bare root path resolves
// to the root cursor itself (not ErrFileNotFound) and is then rejected by
// Open as a directory, not a missing-component failure.
func TestOpenBareRootFailsAsDirectory(t *testing.T) {
	bd, _ := buildFAT16Fixture(t)
	fsys, err := MountFS(bd)
	if err != nil {
		t.Fatalf("MountFS: %v", err)
	}
	if _, err := fsys.Open("/"); !errors.Is(err, ErrBadFileType) {
		t.Fatalf("Open(\"/\"): err = %v, want ErrBadFileType", err)
	}
}
