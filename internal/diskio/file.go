// Package diskio adapts an *os.File (a disk image or block device node) to
// the fat.BlockDevice interface the core driver expects.
package diskio

import (
	"fmt"
	"os"
)

// FileDevice reads fixed-size physical sectors from an underlying file via
// ReadAt, the way the teacher's own cmd-line tools open a raw image instead
// of going through an OS block-device API.
type FileDevice struct {
	f          *os.File
	sectorSize int
}

// Open opens path read-only and wraps it as a FileDevice with the given
// physical sector size.
func Open(path string, sectorSize int) (*FileDevice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &FileDevice{f: f, sectorSize: sectorSize}, nil
}

// ReadBlocks implements fat.BlockDevice.
func (d *FileDevice) ReadBlocks(dst []byte, startBlock int64) (int, error) {
	if len(dst)%d.sectorSize != 0 {
		return 0, fmt.Errorf("diskio: read length %d is not a multiple of sector size %d", len(dst), d.sectorSize)
	}
	return d.f.ReadAt(dst, startBlock*int64(d.sectorSize))
}

// Close closes the underlying file.
func (d *FileDevice) Close() error { return d.f.Close() }
