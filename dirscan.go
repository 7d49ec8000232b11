package fat

import (
	"encoding/binary"

	"github.com/embedfat/rofat/internal/utf16x"
)

// Directory entry byte offsets (spec §3).
const (
	dirNameOff       = 0
	dirAttrOff       = 11
	dirFstClusHIOff  = 20
	dirFstClusLOOff  = 26
	dirFileSizeOff   = 28
)

// Long-name entry byte offsets, overlaid on the same 32 bytes.
const (
	ldirOrdOff    = 0
	ldirName1Off  = 1  // 5 UTF-16LE code units.
	ldirAttrOff   = 11
	ldirChksumOff = 13
	ldirName2Off  = 14 // 6 UTF-16LE code units.
	ldirName3Off  = 28 // 2 UTF-16LE code units.
)

// Directory entry attribute bits.
const (
	amRDO    = 0x01
	amHidden = 0x02
	amSYS    = 0x04
	amVOL    = 0x08
	amDIR    = 0x10
	amARC    = 0x20
	amLFN    = amRDO | amHidden | amSYS | amVOL // 0x0F
	amValid  = amRDO | amHidden | amSYS | amDIR | amARC
)

const (
	mskDeleted  = 0xE5
	mskRDDEM    = 0x05 // Escape for a legitimate leading 0xE5 byte.
	mskLastLFN  = 0x40
	maxLFNSlots = 20
)

func isDirAttr(attr byte) bool { return attr&amDIR != 0 }

// lfnAssembly tracks the long-name run currently being assembled while
// scanning a directory (spec §4.3).
type lfnAssembly struct {
	expectedSlot int
	totalSlots   int
	checksumSet  bool
	checksum     byte
	buf          [maxLFNSlots * 13]uint16
}

func (a *lfnAssembly) reset() { *a = lfnAssembly{} }

func (a *lfnAssembly) pending() bool { return a.checksumSet && a.expectedSlot == 0 }

// scanMatch is the resolved directory entry state produced by a successful
// match or listing callback.
type scanMatch struct {
	name         string
	attributes   byte
	fileSize     uint32
	startCluster uint32
}

// scanDirectoryHook is invoked once per listing entry with its resolved
// name and whether it is a subdirectory; returning true stops the scan.
type scanDirectoryHook func(name string, isDir bool) bool

// scanDirectory implements the shared body of spec §4.3's algorithm. When
// hook is non-nil and component is empty the scan runs in listing mode;
// when hook is non-nil and component is not empty, hook is never invoked
// and no entry is matched. With a nil hook it stops at the first entry
// whose synthesized/long name equals component.
func (v *Volume) scanDirectory(cur *Cursor, component string, hook scanDirectoryHook) (*scanMatch, error) {
	if !isDirAttr(cur.attributes) {
		return nil, badFileType("not a directory")
	}

	var lfn lfnAssembly
	var entry [dirEntrySize]byte
	var offset int64

	for {
		n, err := v.Read(cur, offset, entry[:], nil)
		if err != nil {
			return nil, err
		}
		if n < dirEntrySize {
			// End of chain before an explicit end-of-directory marker:
			// treat identically to name[0]==0x00 (spec is silent on this
			// edge case; the fixed-root and cluster-chain regions are
			// always entry-aligned in valid images).
			break
		}
		offset += dirEntrySize

		if entry[dirNameOff] == 0x00 {
			break // End-of-directory (spec §4.3 step 1).
		}

		attr := entry[dirAttrOff]
		if attr == amLFN {
			ord := entry[ldirOrdOff]
			ordNum := int(ord &^ mskLastLFN)
			if ord&mskLastLFN != 0 {
				if ordNum == 0 || ordNum > maxLFNSlots {
					lfn.reset()
					continue
				}
				lfn.totalSlots = ordNum
				lfn.expectedSlot = ordNum
				lfn.checksum = entry[ldirChksumOff]
				lfn.checksumSet = true
			} else if ordNum != lfn.expectedSlot || lfn.expectedSlot == 0 || !lfn.checksumSet || entry[ldirChksumOff] != lfn.checksum {
				lfn.reset()
			}
			if lfn.checksumSet && lfn.expectedSlot > 0 && ordNum == lfn.expectedSlot {
				lfn.expectedSlot--
				copyLFNFragments(&lfn, entry[:])
			}
			continue
		}

		if entry[dirNameOff] == mskDeleted || attr&^amValid != 0 {
			continue
		}
		if entry[dirNameOff] == mskRDDEM {
			entry[dirNameOff] = mskDeleted
		}

		var longName string
		haveLongName := false
		if lfn.pending() {
			if sumSFN(entry[0:11]) == lfn.checksum {
				longName = decodeLFNBuf(lfn.buf[:], lfn.totalSlots*13)
				haveLongName = true
			}
			lfn.reset()
		}

		var sfn [11]byte
		copy(sfn[:], entry[0:11])
		if sfn[0] == mskRDDEM {
			sfn[0] = mskDeleted
		}
		name := longName
		if !haveLongName {
			name = synthesizeShortName(sfn)
		}
		isDir := attr&amDIR != 0

		if hook != nil {
			if component == "" {
				if hook(name, isDir) {
					return nil, nil
				}
			}
			continue
		}

		if name == component {
			return &scanMatch{
				name:         name,
				attributes:   attr,
				fileSize:     le32(entry[:], dirFileSizeOff),
				startCluster: uint32(le16(entry[:], dirFstClusHIOff))<<16 | uint32(le16(entry[:], dirFstClusLOOff)),
			}, nil
		}
	}

	if hook != nil {
		return nil, nil // Listing completed normally.
	}
	return nil, fileNotFound("component not present in directory")
}

// resolveComponent consumes the leading path component, updates cur to
// refer to its directory entry, and returns the remaining path along with
// whether this was the terminal component (spec §4.3 contract).
func (v *Volume) resolveComponent(cur *Cursor, path string) (rest string, terminal bool, err error) {
	component, tail, isLast := splitComponent(path)
	match, err := v.scanDirectory(cur, shortNameLower.String(component), nil)
	if err != nil {
		return "", false, err
	}
	cur.attributes = match.attributes
	cur.fileSize = int64(match.fileSize)
	cur.start = Cluster(match.startCluster)
	cur.cachedValid = false
	return tail, isLast, nil
}

func splitComponent(path string) (component, rest string, isLast bool) {
	for len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			return path[:i], path[i+1:], false
		}
	}
	return path, "", true
}

func copyLFNFragments(lfn *lfnAssembly, entry []byte) {
	slot := lfn.expectedSlot
	base := slot * 13
	for i := 0; i < 5; i++ {
		lfn.buf[base+i] = le16(entry, ldirName1Off+2*i)
	}
	for i := 0; i < 6; i++ {
		lfn.buf[base+5+i] = le16(entry, ldirName2Off+2*i)
	}
	for i := 0; i < 2; i++ {
		lfn.buf[base+11+i] = le16(entry, ldirName3Off+2*i)
	}
}

func decodeLFNBuf(units []uint16, n int) string {
	if n > len(units) {
		n = len(units)
	}
	for i := 0; i < n; i++ {
		if units[i] == 0 {
			n = i
			break
		}
	}
	raw := make([]byte, 2*n)
	for i := 0; i < n; i++ {
		raw[2*i] = byte(units[i])
		raw[2*i+1] = byte(units[i] >> 8)
	}
	dst := make([]byte, 4*n)
	nn, _ := utf16x.ToUTF8(dst, raw, binary.LittleEndian)
	return string(dst[:nn])
}

// sumSFN computes the 8-bit rotate-right checksum of an 11-byte short
// name (spec §4.3 step 5 / §8 "LFN checksum").
func sumSFN(sfn []byte) byte {
	var sum byte
	for _, b := range sfn[:11] {
		sum = (sum >> 1) + (sum << 7) + b
	}
	return sum
}
