//go:build !linux

// Command rofatfs mounts a FAT12/16/32 image read-only via FUSE. FUSE
// mounting is only implemented on Linux in this tree (see mount.go).
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "rofatfs: FUSE mount is only supported on Linux")
	os.Exit(1)
}
