//go:build linux

package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	fat "github.com/embedfat/rofat"
	"github.com/embedfat/rofat/internal/diskio"
	"github.com/embedfat/rofat/internal/mbr"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

// mountImage mounts the FAT volume on imagePath at mountpoint and blocks
// until the mount is unmounted or a termination signal arrives, the way
// ostafen/digler's fuse.Mount/waitForUmount pair drives a RecoverFS.
func mountImage(imagePath, mountpoint string, sectorSize int, partitionArg string) error {
	created, err := prepareMountpoint(mountpoint)
	if err != nil {
		return err
	}
	if created {
		defer os.Remove(mountpoint)
	}

	dev, err := diskio.Open(imagePath, sectorSize)
	if err != nil {
		return fmt.Errorf("opening %s: %w", imagePath, err)
	}
	defer dev.Close()

	opts := []fat.MountOption{fat.WithPhysicalSectorSize(sectorSize)}
	if partitionArg != "none" {
		offset, err := resolvePartitionOffset(dev, sectorSize, partitionArg)
		if err != nil {
			return err
		}
		opts = append(opts, fat.WithPartitionOffset(offset))
	}

	fsys, err := fat.MountFS(dev, opts...)
	if err != nil {
		return fmt.Errorf("mounting %s: %w", imagePath, err)
	}

	c, err := fuse.Mount(mountpoint)
	if err != nil {
		return err
	}
	defer c.Close()

	rfs := &rofatFS{fsys: fsys}
	go func() {
		srv := fusefs.New(c, nil)
		if err := srv.Serve(rfs); err != nil {
			log.Fatalf("serve error: %v", err)
		}
	}()
	return waitForUmount(mountpoint)
}

// resolvePartitionOffset mirrors cmd/rofat's flag, duplicated here rather
// than imported since the two binaries never share a non-fat dependency
// beyond internal/mbr and internal/diskio.
func resolvePartitionOffset(dev *diskio.FileDevice, sectorSize int, partitionArg string) (uint32, error) {
	sector := make([]byte, sectorSize)
	if _, err := dev.ReadBlocks(sector, 0); err != nil {
		return 0, fmt.Errorf("reading MBR: %w", err)
	}
	bs, err := mbr.ToBootSector(sector)
	if err != nil {
		return 0, fmt.Errorf("parsing MBR: %w", err)
	}
	if idx, convErr := strconv.Atoi(partitionArg); convErr == nil {
		if idx < 0 || idx > 3 {
			return 0, fmt.Errorf("partition index %d out of range 0-3", idx)
		}
		pte := bs.PartitionTable(idx)
		if !pte.PartitionType().IsFATType() {
			return 0, fmt.Errorf("partition %d is not a FAT partition (type 0x%02X)", idx, byte(pte.PartitionType()))
		}
		return pte.StartLBA(), nil
	}
	if partitionArg != "auto" {
		return 0, fmt.Errorf(`--partition must be "none", "auto", or an index 0-3, got %q`, partitionArg)
	}
	pte, _, err := mbr.FindFATPartition(bs)
	if err != nil {
		return 0, fmt.Errorf("auto-detecting FAT partition: %w", err)
	}
	return pte.StartLBA(), nil
}

func waitForUmount(mountpoint string) error {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)

	log.Println("waiting for termination signal...")

	const maxUnmountRetries = 3
	attempts := 0
	for sig := range sigc {
		log.Printf("signal received: %v", sig)
		if attempts >= maxUnmountRetries {
			log.Fatalf("exceeded %d unmount retries for %s, exiting forcefully", maxUnmountRetries, mountpoint)
		}
		err := fuse.Unmount(mountpoint)
		if err == nil {
			log.Println("unmounted, exiting")
			return nil
		}
		attempts++
		log.Printf("unmount failed: %v, retries remaining: %d", err, maxUnmountRetries-attempts)
	}
	return nil
}

func prepareMountpoint(mountpoint string) (bool, error) {
	finfo, err := os.Stat(mountpoint)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.Mkdir(mountpoint, 0755); err != nil {
			return false, fmt.Errorf("creating mountpoint %s: %w", mountpoint, err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat mountpoint %s: %w", mountpoint, err)
	}
	if !finfo.IsDir() {
		return false, fmt.Errorf("mountpoint %s is not a directory", mountpoint)
	}
	empty, err := isDirEmpty(mountpoint)
	if err != nil {
		return false, fmt.Errorf("checking mountpoint %s: %w", mountpoint, err)
	}
	if !empty {
		return false, fmt.Errorf("mountpoint %s is not empty", mountpoint)
	}
	return false, nil
}

func isDirEmpty(p string) (bool, error) {
	f, err := os.Open(p)
	if err != nil {
		return false, err
	}
	defer f.Close()

	entries, err := f.Readdir(1)
	if err != nil {
		if err == io.EOF {
			return true, nil
		}
		return false, err
	}
	return len(entries) == 0, nil
}
