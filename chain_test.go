package fat

import (
	"bytes"
	"errors"
	"testing"
)

// buildFAT12Fixture builds the geometry for spec §8 scenario 2: FAT12,
// 1024 bytes/cluster (2 sectors/cluster @ 512 bytes), small enough that
// num_clusters <= 4087.
func buildFAT12Fixture(t *testing.T, entries []uint16) (*sparseBlocks, imgLayout) {
	t.Helper()
	p := imgParams{
		sectorSize:    512,
		secPerClus:    2,
		reservedSecs:  1,
		numFATs:       1,
		rootEntries:   16,
		sectorsPerFAT: 1,
		totalSectors:  50,
	}
	l := computeLayout(p)
	if l.variant != FAT12 {
		t.Fatalf("fixture classified as %s, want FAT12 (numClusters=%d)", l.variant, l.numClusters)
	}
	bd := newSparseBlocks(p.sectorSize)
	const media = 0xF8
	writeBPBCommon(bd, p, media)

	entries[0] = uint16(media) | 0x0F00
	bd.writeAt(l.fatStart, 0, packFAT12(entries))
	return bd, l
}

// TestChainFAT12OutOfOrder implements spec §8 scenario 2: clusters
// 2 -> 5 -> 3 (allocated out of order), size 2500 bytes over 1024-byte
// clusters (1024 + 1024 + 452).
func TestChainFAT12OutOfOrder(t *testing.T) {
	entries := make([]uint16, 10)
	entries[2] = 5
	entries[5] = 3
	entries[3] = 0x0FF8 // EOF.
	bd, l := buildFAT12Fixture(t, entries)

	clusterA := bytes.Repeat([]byte{'A'}, 1024)
	clusterB := bytes.Repeat([]byte{'B'}, 1024)
	clusterC := bytes.Repeat([]byte{'C'}, 452)
	bd.writeAt(clusterSector(l, 2), 0, clusterA)
	bd.writeAt(clusterSector(l, 5), 0, clusterB)
	bd.writeAt(clusterSector(l, 3), 0, clusterC)

	writeDirEntry(bd, l.rootStart, 0, "BIG", "DAT", amARC, 2, 2500)

	fsys, err := MountFS(bd)
	if err != nil {
		t.Fatalf("MountFS: %v", err)
	}
	f, err := fsys.Open("/big.dat")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	want := append(append(append([]byte{}, clusterA...), clusterB...), clusterC...)
	got := make([]byte, 2500)
	n, err := f.ReadAt(got, 0)
	if err != nil {
		t.Fatalf("ReadAt(full): %v", err)
	}
	if n != 2500 || !bytes.Equal(got, want) {
		t.Fatalf("full read mismatch: got %d bytes", n)
	}

	tail := make([]byte, 400)
	n, err = f.ReadAt(tail, 2100)
	if err != nil {
		t.Fatalf("ReadAt(2100): %v", err)
	}
	if n != 400 || !bytes.Equal(tail, want[2100:2500]) {
		t.Fatalf("tail read mismatch: got %q", tail[:n])
	}
}

// TestChainWalkerMonotonicity implements spec §8's "Chain walker
// monotonicity" law: reading [a, b) in one call yields the same bytes as
// splitting the read at an arbitrary point.
func TestChainWalkerMonotonicity(t *testing.T) {
	entries := make([]uint16, 10)
	entries[2] = 5
	entries[5] = 3
	entries[3] = 0x0FF8
	bd, l := buildFAT12Fixture(t, entries)

	clusterA := bytes.Repeat([]byte{'A'}, 1024)
	clusterB := bytes.Repeat([]byte{'B'}, 1024)
	clusterC := bytes.Repeat([]byte{'C'}, 452)
	bd.writeAt(clusterSector(l, 2), 0, clusterA)
	bd.writeAt(clusterSector(l, 5), 0, clusterB)
	bd.writeAt(clusterSector(l, 3), 0, clusterC)
	writeDirEntry(bd, l.rootStart, 0, "BIG", "DAT", amARC, 2, 2500)

	fsys, err := MountFS(bd)
	if err != nil {
		t.Fatalf("MountFS: %v", err)
	}

	f1, _ := fsys.Open("/big.dat")
	whole := make([]byte, 2500)
	if _, err := f1.ReadAt(whole, 0); err != nil {
		t.Fatalf("ReadAt(whole): %v", err)
	}

	f2, _ := fsys.Open("/big.dat")
	split := make([]byte, 2500)
	const splitAt = 1500
	if _, err := f2.ReadAt(split[:splitAt], 0); err != nil {
		t.Fatalf("ReadAt(first half): %v", err)
	}
	if _, err := f2.ReadAt(split[splitAt:], splitAt); err != nil {
		t.Fatalf("ReadAt(second half): %v", err)
	}

	if !bytes.Equal(whole, split) {
		t.Fatal("split read diverged from single read")
	}
}

// TestChainCorrupted implements spec §8 scenario 5: FAT entry for
// cluster 2 is 0x001, an invalid chain link (< 2); reading past the
// first cluster boundary must fail with ErrBadFilesystem.
func TestChainCorrupted(t *testing.T) {
	entries := make([]uint16, 10)
	entries[2] = 1 // Invalid: reserved cluster number.
	bd, l := buildFAT12Fixture(t, entries)

	data := bytes.Repeat([]byte{'Z'}, 1024)
	bd.writeAt(clusterSector(l, 2), 0, data)
	writeDirEntry(bd, l.rootStart, 0, "BAD", "DAT", amARC, 2, 2000)

	fsys, err := MountFS(bd)
	if err != nil {
		t.Fatalf("MountFS: %v", err)
	}
	f, err := fsys.Open("/bad.dat")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	buf := make([]byte, 1024)
	n, err := f.ReadAt(buf, 0)
	if err != nil || n != 1024 {
		t.Fatalf("first-cluster read should succeed: n=%d err=%v", n, err)
	}

	_, err = f.ReadAt(buf, 1024)
	if !errors.Is(err, ErrBadFilesystem) {
		t.Fatalf("reading past corrupted chain link: err = %v, want ErrBadFilesystem", err)
	}
}
