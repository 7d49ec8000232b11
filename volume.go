package fat

import (
	"log/slog"
	"math/bits"
)

// Offsets into the 90-byte BPB read by Mount (spec §4.1, §6).
const (
	bpbSize       = 90
	bpbBytsPerSec = 11 // WORD
	bpbSecPerClus = 13 // BYTE
	bpbRsvdSecCnt = 14 // WORD
	bpbNumFATs    = 16 // BYTE
	bpbRootEntCnt = 17 // WORD
	bpbTotSec16   = 19 // WORD
	bpbMedia      = 21 // BYTE
	bpbFATSz16    = 22 // WORD
	bpbTotSec32   = 32 // DWORD

	// FAT32-only extensions, offsets 36..56.
	bpbFATSz32    = 36 // DWORD
	bpbExtFlags32 = 40 // WORD
	bpbFSVer32    = 42 // WORD
	bpbRootClus32 = 44 // DWORD
	bpbFSInfo32   = 48 // WORD
	bpbBkBoot32   = 50 // WORD
)

const dirEntrySize = 32

// FATVariant identifies which of the three FAT flavors a mounted Volume is.
type FATVariant uint8

const (
	FAT12 FATVariant = iota + 1
	FAT16
	FAT32
)

func (v FATVariant) String() string {
	switch v {
	case FAT12:
		return "FAT12"
	case FAT16:
		return "FAT16"
	case FAT32:
		return "FAT32"
	default:
		return "FATunknown"
	}
}

// ClusterRef identifies the start of a file or directory's cluster chain,
// or the FAT12/16 fixed-root directory sentinel (spec §9 design note:
// "implementations should use a tagged variant ... rather than a magic
// integer").
type ClusterRef struct {
	cluster   uint32
	fixedRoot bool
}

// FixedRoot returns the sentinel ClusterRef for the FAT12/16 root
// directory, which lives in a fixed sector range rather than a cluster
// chain.
func FixedRoot() ClusterRef { return ClusterRef{fixedRoot: true} }

// Cluster returns a ClusterRef naming the first cluster of a chain.
func Cluster(n uint32) ClusterRef { return ClusterRef{cluster: n} }

// IsFixedRoot reports whether this ref is the FAT12/16 fixed-root sentinel.
func (c ClusterRef) IsFixedRoot() bool { return c.fixedRoot }

// Number returns the cluster number. Invalid to call on a fixed-root ref.
func (c ClusterRef) Number() uint32 { return c.cluster }

// Volume is the immutable descriptor produced by Mount (spec §3).
type Volume struct {
	bd  BlockDevice
	log *slog.Logger

	variant FATVariant

	physSectorBits    uint // log2(physical sector size)
	logicalSectorBits uint
	clusterBits       uint // log2(sectors_per_cluster), in logical sectors.

	partitionOffset uint32 // sector 0 of the volume, relative to the device.

	fatStartSector           uint32
	sectorsPerFAT            uint32
	numFATs                  uint8
	rootStartSector          uint32 // FAT12/16 fixed root only.
	numRootSectors           uint32 // FAT12/16 fixed root only.
	clusterRegionStartSector uint32
	numClusters              uint32
	clusterEOFMark           uint32

	rootRef ClusterRef

	generation uint64 // bumped by FS.Remount; detects stale File handles.

	fatWindow *window // single-sector cache for sequential FAT entry reads.
}

// Cursor is the mutable per-open-file (or directory) state (spec §3).
type Cursor struct {
	start      ClusterRef
	attributes byte
	fileSize   int64

	cachedValid   bool
	cachedIndex   uint32
	cachedCluster uint32
}

// MountOption configures Mount.
type MountOption func(*mountConfig)

type mountConfig struct {
	log             *slog.Logger
	physSectorSize  int
	partitionOffset uint32
}

// WithLogger attaches a structured logger. Nil (the default) disables all
// logging.
func WithLogger(log *slog.Logger) MountOption {
	return func(c *mountConfig) { c.log = log }
}

// WithPhysicalSectorSize sets the block device's native sector size in
// bytes (default 512). The BPB's declared sector size must be a power of
// two no smaller than this value.
func WithPhysicalSectorSize(n int) MountOption {
	return func(c *mountConfig) { c.physSectorSize = n }
}

// WithPartitionOffset mounts the volume starting at the given sector
// rather than sector 0 of the device, for disks that carry a partition
// table. Partition discovery itself is an external collaborator (spec
// §1); internal/mbr.FindFATPartition is one way to produce this value.
func WithPartitionOffset(sector uint32) MountOption {
	return func(c *mountConfig) { c.partitionOffset = sector }
}

// Mount reads sector 0 (or the configured partition offset) of bd,
// validates its geometry, classifies the FAT variant, and returns a
// Volume plus a Cursor positioned at the root directory. It fails with an
// error wrapping ErrBadFilesystem on any validation failure (spec §4.1),
// or a verbatim disk error.
func Mount(bd BlockDevice, opts ...MountOption) (*Volume, *Cursor, error) {
	cfg := mountConfig{physSectorSize: 512}
	for _, opt := range opts {
		opt(&cfg)
	}
	v := &Volume{bd: bd, log: cfg.log, partitionOffset: cfg.partitionOffset}
	v.trace("fat:mount", slog.Uint64("partitionOffset", uint64(cfg.partitionOffset)))

	physSectorSize := cfg.physSectorSize
	if physSectorSize <= 0 || physSectorSize&(physSectorSize-1) != 0 {
		return nil, nil, v.rejectBPB("physical sector size must be a power of two")
	}
	v.physSectorBits = uint(bits.TrailingZeros(uint(physSectorSize)))

	buf := make([]byte, physSectorSize)
	if err := readRange(bd, physSectorSize, v.partitionOffset, 0, physSectorSize, buf, nil); err != nil {
		v.logerror("fat:mount read sector 0 failed", slog.Any("err", err))
		return nil, nil, err
	}
	bpb := buf[:bpbSize]

	bytesPerSector := le16(bpb, bpbBytsPerSec)
	if bytesPerSector == 0 || bytesPerSector&(bytesPerSector-1) != 0 || int(bytesPerSector) < physSectorSize {
		return nil, nil, v.rejectBPB("bytes_per_sector not a power of two >= physical sector size")
	}
	v.logicalSectorBits = uint(bits.TrailingZeros(uint(bytesPerSector))) - v.physSectorBits

	sectorsPerCluster := bpb[bpbSecPerClus]
	if sectorsPerCluster == 0 || sectorsPerCluster&(sectorsPerCluster-1) != 0 {
		return nil, nil, v.rejectBPB("sectors_per_cluster not a power of two")
	}
	v.clusterBits = uint(bits.TrailingZeros(uint(sectorsPerCluster)))

	numReservedSectors := le16(bpb, bpbRsvdSecCnt)
	if numReservedSectors == 0 {
		return nil, nil, v.rejectBPB("reserved sector count is zero")
	}
	v.fatStartSector = uint32(numReservedSectors) << v.logicalSectorBits

	sectorsPerFAT := uint32(le16(bpb, bpbFATSz16))
	if sectorsPerFAT == 0 {
		sectorsPerFAT = le32(bpb, bpbFATSz32)
	}
	if sectorsPerFAT == 0 {
		return nil, nil, v.rejectBPB("sectors_per_fat is zero")
	}
	v.sectorsPerFAT = sectorsPerFAT << v.logicalSectorBits

	numFATs := bpb[bpbNumFATs]
	if numFATs == 0 {
		return nil, nil, v.rejectBPB("num_fats is zero")
	}
	v.numFATs = numFATs

	numSectors := uint32(le16(bpb, bpbTotSec16))
	if numSectors == 0 {
		numSectors = le32(bpb, bpbTotSec32)
	}
	if numSectors == 0 {
		return nil, nil, v.rejectBPB("num_sectors is zero")
	}
	numSectors <<= v.logicalSectorBits
	if numSectors <= v.fatStartSector {
		return nil, nil, v.rejectBPB("num_sectors <= fat_start_sector")
	}

	v.rootStartSector = v.fatStartSector + uint32(v.numFATs)*v.sectorsPerFAT

	numRootEntries := le16(bpb, bpbRootEntCnt)
	logicalSectorBytes := bytesPerSector
	numRootSectorsLogical := (uint32(numRootEntries)*dirEntrySize + uint32(logicalSectorBytes) - 1) / uint32(logicalSectorBytes)
	v.numRootSectors = numRootSectorsLogical << v.logicalSectorBits

	v.clusterRegionStartSector = v.rootStartSector + v.numRootSectors

	clusterSectorShift := v.clusterBits + v.logicalSectorBits
	v.numClusters = ((numSectors - v.clusterRegionStartSector) >> clusterSectorShift) + 2
	if v.numClusters <= 2 {
		return nil, nil, v.rejectBPB("num_clusters <= 2")
	}

	var highMask uint32
	sectorsPerFAT16 := le16(bpb, bpbFATSz16)
	if sectorsPerFAT16 == 0 {
		// FAT32.
		v.variant = FAT32
		v.clusterEOFMark = 0x0FFFFFF8
		highMask = 0x0FFFFF00

		if le16(bpb, bpbFSVer32) != 0 {
			return nil, nil, v.rejectBPB("fat32 fs_version must be zero")
		}
		if numRootEntries != 0 {
			return nil, nil, v.rejectBPB("fat32 num_root_entries must be zero")
		}
		v.numRootSectors = 0
		v.rootRef = Cluster(le32(bpb, bpbRootClus32))

		extendedFlags := le16(bpb, bpbExtFlags32)
		if extendedFlags&0x80 != 0 {
			activeFAT := uint32(extendedFlags & 0x0F)
			if activeFAT > uint32(v.numFATs) {
				return nil, nil, v.rejectBPB("active_fat out of range")
			}
			v.fatStartSector += activeFAT * v.sectorsPerFAT
		}
	} else if v.numClusters <= 4087 {
		v.variant = FAT12
		v.clusterEOFMark = 0x0FF8
		highMask = 0x0F00
		v.rootRef = FixedRoot()
	} else {
		v.variant = FAT16
		v.clusterEOFMark = 0xFFF8
		highMask = 0xFF00
		v.rootRef = FixedRoot()
	}

	mediaByte := bpb[bpbMedia]
	first, err := v.readFirstFATEntry()
	if err != nil {
		v.logerror("fat:mount read first FAT entry failed", slog.Any("err", err))
		return nil, nil, err
	}
	if first != uint32(mediaByte)|highMask {
		return nil, nil, v.rejectBPB("first FAT entry sentinel mismatch")
	}

	cur := &Cursor{start: v.rootRef, attributes: amDIR}
	v.info("fat:mounted", slog.String("variant", v.variant.String()),
		slog.Uint64("numClusters", uint64(v.numClusters)))
	return v, cur, nil
}

func (v *Volume) readFirstFATEntry() (uint32, error) {
	buf := make([]byte, 4)
	if err := readRange(v.bd, v.physSectorSizeBytes(), v.partitionOffset+v.fatStartSector, 0, 4, buf, nil); err != nil {
		return 0, err
	}
	raw := le32(buf, 0)
	switch v.variant {
	case FAT32:
		return raw & 0x0FFFFFFF, nil
	case FAT16:
		return uint32(le16(buf, 0)), nil
	default: // FAT12: first entry packed into the low 12 bits of the first word.
		return uint32(le16(buf, 0)) & 0x0FFF, nil
	}
}

// rejectBPB logs a validation failure at warn level and returns the
// wrapped ErrBadFilesystem, matching the density with which the teacher
// logs every Mount rejection path.
func (v *Volume) rejectBPB(reason string) error {
	v.warn("fat:bad_filesystem", slog.String("reason", reason))
	return badFilesystem(reason)
}

func (v *Volume) physSectorSizeBytes() int { return 1 << v.physSectorBits }

func le16(b []byte, off int) uint16 { return uint16(b[off]) | uint16(b[off+1])<<8 }
func le32(b []byte, off int) uint32 {
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}
