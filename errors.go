package fat

import "fmt"

// Sentinel error kinds surfaced to the host, per the FAT driver's error
// taxonomy. Disk errors are never wrapped in one of these: they propagate
// verbatim from the BlockDevice, unchanged, so the host can inspect them
// with whatever error type its block layer uses.
var (
	// ErrBadFilesystem reports a BPB validation failure, a first-FAT
	// sentinel mismatch, an invalid cluster number during a chain walk,
	// or an insufficient cluster count.
	ErrBadFilesystem = fmt.Errorf("fat: bad filesystem")
	// ErrBadFileType reports path traversal through a non-directory, or
	// open called on a directory.
	ErrBadFileType = fmt.Errorf("fat: bad file type")
	// ErrFileNotFound reports that a directory scan reached
	// end-of-directory without matching the requested path component.
	ErrFileNotFound = fmt.Errorf("fat: file not found")
	// ErrStaleHandle reports that a File was opened against an FS that has
	// since been remounted (FS.Remount), the way the teacher's obj.id
	// check invalidates handles across mount_volume calls.
	ErrStaleHandle = fmt.Errorf("fat: stale file handle")
)

func badFilesystem(reason string) error {
	return fmt.Errorf("%w: %s", ErrBadFilesystem, reason)
}

func badFileType(reason string) error {
	return fmt.Errorf("%w: %s", ErrBadFileType, reason)
}

func fileNotFound(reason string) error {
	return fmt.Errorf("%w: %s", ErrFileNotFound, reason)
}
