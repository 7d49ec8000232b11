package fat

import (
	"errors"
	"testing"
)

// buildFAT16Fixture builds the image from spec §8 scenario 1: FAT16,
// 512-byte sectors, 4 sectors/cluster, 2 FATs, 512 root entries, large
// enough that num_clusters classifies as FAT16 (>4087).
func buildFAT16Fixture(t *testing.T) (*sparseBlocks, imgLayout) {
	t.Helper()
	p := imgParams{
		sectorSize:    512,
		secPerClus:    4,
		reservedSecs:  1,
		numFATs:       2,
		rootEntries:   512,
		sectorsPerFAT: 1,
		totalSectors:  20000,
	}
	l := computeLayout(p)
	if l.variant != FAT16 {
		t.Fatalf("fixture classified as %s, want FAT16 (numClusters=%d)", l.variant, l.numClusters)
	}
	bd := newSparseBlocks(p.sectorSize)
	const media = 0xF8
	writeBPBCommon(bd, p, media)

	// First FAT entry sentinel.
	fatBuf := make([]byte, 2)
	putLE16(fatBuf, 0, uint16(media)|0xFF00)
	bd.writeAt(l.fatStart, 0, fatBuf)

	return bd, l
}

func setFAT16Entry(bd *sparseBlocks, l imgLayout, cluster uint32, value uint16) {
	buf := make([]byte, 2)
	putLE16(buf, 0, value)
	bd.writeAt(l.fatStart, int(cluster)*2, buf)
}

func TestMountFAT16(t *testing.T) {
	bd, l := buildFAT16Fixture(t)
	setFAT16Entry(bd, l, 2, 0xFFFF) // EOF: single-cluster file.

	writeDirEntry(bd, l.rootStart, 0, "HELLO", "TXT", amARC, 2, 2)
	bd.writeAt(clusterSector(l, 2), 0, []byte("hi"))

	vol, cur, err := Mount(bd)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if vol.variant != FAT16 {
		t.Fatalf("variant = %s, want FAT16", vol.variant)
	}
	if !cur.start.IsFixedRoot() {
		t.Fatal("root cursor should be the fixed-root sentinel on FAT16")
	}
}

func TestOpenAndReadFAT16(t *testing.T) {
	bd, l := buildFAT16Fixture(t)
	setFAT16Entry(bd, l, 2, 0xFFFF)
	writeDirEntry(bd, l.rootStart, 0, "HELLO", "TXT", amARC, 2, 2)
	bd.writeAt(clusterSector(l, 2), 0, []byte("hi"))

	fsys, err := MountFS(bd)
	if err != nil {
		t.Fatalf("MountFS: %v", err)
	}

	for _, path := range []string{"/HELLO.TXT", "/hello.txt"} {
		f, err := fsys.Open(path)
		if err != nil {
			t.Fatalf("Open(%q): %v", path, err)
		}
		buf := make([]byte, 2)
		n, err := f.Read(buf)
		if err != nil {
			t.Fatalf("Read(%q): %v", path, err)
		}
		if n != 2 || string(buf) != "hi" {
			t.Fatalf("Read(%q) = %q, want %q", path, buf[:n], "hi")
		}
	}
}

func TestMountIdempotence(t *testing.T) {
	bd, _ := buildFAT16Fixture(t)
	v1, _, err := Mount(bd)
	if err != nil {
		t.Fatalf("first Mount: %v", err)
	}
	v2, _, err := Mount(bd)
	if err != nil {
		t.Fatalf("second Mount: %v", err)
	}
	if v1.variant != v2.variant || v1.numClusters != v2.numClusters ||
		v1.fatStartSector != v2.fatStartSector || v1.clusterRegionStartSector != v2.clusterRegionStartSector ||
		v1.rootStartSector != v2.rootStartSector || v1.numRootSectors != v2.numRootSectors ||
		v1.clusterEOFMark != v2.clusterEOFMark {
		t.Fatalf("mounting the same image twice produced different descriptors:\n%+v\n%+v", v1, v2)
	}
}

func TestMountRejectsBadSectorSize(t *testing.T) {
	bd, _ := buildFAT16Fixture(t)
	// Corrupt bytes_per_sector to a non-power-of-two.
	buf := make([]byte, 2)
	putLE16(buf, 0, 500)
	bd.writeAt(0, bpbBytsPerSec, buf)

	_, _, err := Mount(bd)
	if !errors.Is(err, ErrBadFilesystem) {
		t.Fatalf("Mount err = %v, want ErrBadFilesystem", err)
	}
}

func TestMountRejectsBadSentinel(t *testing.T) {
	bd, l := buildFAT16Fixture(t)
	bad := make([]byte, 2)
	putLE16(bad, 0, 0x0000)
	bd.writeAt(l.fatStart, 0, bad)

	_, _, err := Mount(bd)
	if !errors.Is(err, ErrBadFilesystem) {
		t.Fatalf("Mount err = %v, want ErrBadFilesystem", err)
	}
}

// TestFAT32ActiveFAT implements spec §8 scenario 3: extended_flags=0x81
// selects FAT copy 1; the nominal (copy 0) location is deliberately
// corrupted so a wrong-copy bug would fail Mount outright.
func TestFAT32ActiveFAT(t *testing.T) {
	const media = 0xF8
	p := imgParams{
		sectorSize:    512,
		secPerClus:    1,
		reservedSecs:  32,
		numFATs:       2,
		rootEntries:   0,
		sectorsPerFAT: 0,
		fatSz32:       8,
		totalSectors:  100,
		activeFAT:     1,
	}
	l := computeLayout(p)
	if l.variant != FAT32 {
		t.Fatalf("fixture classified as %s, want FAT32", l.variant)
	}
	bd := newSparseBlocks(p.sectorSize)
	writeBPBCommon(bd, p, media)

	flagsBuf := make([]byte, 2)
	putLE16(flagsBuf, 0, 0x0081)
	bd.writeAt(0, bpbExtFlags32, flagsBuf)
	fsVerBuf := make([]byte, 2)
	putLE16(fsVerBuf, 0, 0)
	bd.writeAt(0, bpbFSVer32, fsVerBuf)
	rootClusBuf := make([]byte, 4)
	putLE32(rootClusBuf, 0, 2)
	bd.writeAt(0, bpbRootClus32, rootClusBuf)

	nominalFATStart := int64(p.reservedSecs)
	activeFATStart := nominalFATStart + int64(p.activeFAT)*l.sectorsPerFAT
	if activeFATStart != l.fatStart {
		t.Fatalf("test setup: active fat start mismatch: %d vs %d", activeFATStart, l.fatStart)
	}

	// Nominal FAT copy 0: wrong sentinel so using it by mistake fails Mount.
	wrong := make([]byte, 4)
	putLE32(wrong, 0, 0)
	bd.writeAt(nominalFATStart, 0, wrong)

	// Active FAT copy 1: correct sentinel, plus root dir (cluster 2) and
	// data file (cluster 3) both terminating immediately.
	sentinel := make([]byte, 4)
	putLE32(sentinel, 0, uint32(media)|0x0FFFFF00)
	bd.writeAt(activeFATStart, 0, sentinel)
	eof := make([]byte, 4)
	putLE32(eof, 0, 0x0FFFFFF8)
	bd.writeAt(activeFATStart, 2*4, eof)
	bd.writeAt(activeFATStart, 3*4, eof)

	data := []byte("FAT32OK!")
	writeDirEntry(bd, clusterSector(l, 2), 0, "DATAFILE", "BIN", amARC, 3, uint32(len(data)))
	bd.writeAt(clusterSector(l, 3), 0, data)

	fsys, err := MountFS(bd)
	if err != nil {
		t.Fatalf("MountFS: %v", err)
	}
	f, err := fsys.Open("/datafile.bin")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	buf := make([]byte, len(data))
	n, err := f.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != string(data) {
		t.Fatalf("Read = %q, want %q", buf[:n], data)
	}
}
