package fat

import "log/slog"

// Read implements the cluster-chain walker contract (spec §4.2): it reads
// up to len(buf) bytes starting at offset from the file or directory
// referenced by cur, returning the number of bytes actually read. A short
// read caused by reaching the chain's EOF marker is not an error; an
// invalid chain link is.
func (v *Volume) Read(cur *Cursor, offset int64, buf []byte, observer Observer) (int, error) {
	v.trace("fat:read", slog.Int64("offset", offset), slog.Int("len", len(buf)))

	if cur.start.IsFixedRoot() {
		return v.readFixedRoot(offset, buf, observer)
	}

	remaining := len(buf)
	if cur.fileSize > 0 && !isDirAttr(cur.attributes) {
		maxRemain := cur.fileSize - offset
		if maxRemain <= 0 {
			return 0, nil
		}
		if int64(remaining) > maxRemain {
			remaining = int(maxRemain)
		}
	}

	clusterBytes := 1 << (v.clusterBits + v.logicalSectorBits + v.physSectorBits)
	logicalIdx := uint32(offset / int64(clusterBytes))
	inClusterOff := int(offset % int64(clusterBytes))

	if !cur.cachedValid || logicalIdx < cur.cachedIndex {
		cur.cachedIndex = 0
		cur.cachedCluster = cur.start.Number()
		cur.cachedValid = true
	}

	for cur.cachedIndex < logicalIdx {
		next, err := v.nextCluster(cur.cachedCluster)
		if err != nil {
			return 0, err
		}
		if next >= v.clusterEOFMark {
			return 0, nil // Short read: offset lies beyond EOF.
		}
		if next < 2 || next >= v.numClusters {
			return 0, badFilesystem("invalid cluster")
		}
		cur.cachedCluster = next
		cur.cachedIndex++
	}

	br := 0
	for br < remaining {
		clusterStart := v.clusterRegionStartSector + (cur.cachedCluster-2)<<(v.clusterBits+v.logicalSectorBits)
		n := clusterBytes - inClusterOff
		if n > remaining-br {
			n = remaining - br
		}
		if err := readRange(v.bd, v.physSectorSizeBytes(), v.partitionOffset+clusterStart, inClusterOff, n, buf[br:br+n], observer); err != nil {
			return br, err
		}
		br += n
		inClusterOff = 0

		if br >= remaining {
			break
		}

		next, err := v.nextCluster(cur.cachedCluster)
		if err != nil {
			return br, err
		}
		if next >= v.clusterEOFMark {
			break // Short read.
		}
		if next < 2 || next >= v.numClusters {
			return br, badFilesystem("invalid cluster")
		}
		cur.cachedCluster = next
		cur.cachedIndex++
	}
	return br, nil
}

// readFixedRoot implements the FAT12/16 fixed-root fast path: the root
// directory is a contiguous sector range, not a cluster chain.
func (v *Volume) readFixedRoot(offset int64, buf []byte, observer Observer) (int, error) {
	rootBytes := int64(v.numRootSectors) << v.physSectorBits
	if offset >= rootBytes {
		return 0, nil
	}
	n := len(buf)
	if int64(n) > rootBytes-offset {
		n = int(rootBytes - offset)
	}
	if err := readRange(v.bd, v.physSectorSizeBytes(), v.partitionOffset+v.rootStartSector, int(offset), n, buf[:n], observer); err != nil {
		return 0, err
	}
	return n, nil
}

// nextCluster reads the FAT entry for cluster cur, returning the raw
// chain value (not yet compared against the EOF marker or cluster bounds).
// Entries are read through a single-sector window cache, since a chain
// walk touches consecutive FAT entries far more often than it crosses a
// sector boundary (mirrors the teacher's windowHandler reuse pattern).
func (v *Volume) nextCluster(cur uint32) (uint32, error) {
	var byteOff uint32
	var entryLen int
	switch v.variant {
	case FAT32:
		byteOff = cur << 2
		entryLen = 4
	case FAT16:
		byteOff = cur << 1
		entryLen = 2
	default: // FAT12
		byteOff = cur + (cur >> 1)
		entryLen = 2
	}

	physSize := v.physSectorSizeBytes()
	sector := int64(v.partitionOffset+v.fatStartSector) + int64(byteOff)/int64(physSize)
	inOff := int(byteOff) % physSize

	var buf []byte
	if inOff+entryLen <= physSize {
		if v.fatWindow == nil {
			v.fatWindow = newWindow(v.bd, physSize)
		}
		if err := v.fatWindow.move(sector); err != nil {
			return 0, err
		}
		buf = v.fatWindow.buf[inOff : inOff+entryLen]
	} else {
		// A FAT12 entry straddling a sector boundary; fall back to a
		// direct multi-sector read rather than complicating the window.
		buf = make([]byte, entryLen)
		if err := readRange(v.bd, physSize, v.partitionOffset+v.fatStartSector, int(byteOff), entryLen, buf, nil); err != nil {
			return 0, err
		}
	}

	switch v.variant {
	case FAT32:
		return le32(buf, 0) & 0x0FFFFFFF, nil
	case FAT16:
		return uint32(le16(buf, 0)), nil
	default: // FAT12
		raw := le16(buf, 0)
		if cur&1 != 0 {
			raw >>= 4
		}
		return uint32(raw) & 0x0FFF, nil
	}
}
