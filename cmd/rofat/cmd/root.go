package cmd

import (
	"fmt"
	"strconv"

	"github.com/embedfat/rofat"
	"github.com/embedfat/rofat/internal/diskio"
	"github.com/embedfat/rofat/internal/mbr"

	"github.com/spf13/cobra"
)

const appName = "rofat"

// Execute builds and runs the rofat command tree.
func Execute() error {
	rootCmd := &cobra.Command{
		Use:   appName,
		Short: appName + " - read-only FAT12/16/32 image explorer",
	}
	rootCmd.PersistentFlags().Int("sector-size", 512, "physical sector size of the image, in bytes")
	rootCmd.PersistentFlags().String("partition", "none", `which partition holds the FAT volume: "none" (image is a bare volume), "auto" (probe the MBR), or a partition table index 0-3`)

	rootCmd.AddCommand(defineLsCommand())
	rootCmd.AddCommand(defineCatCommand())
	rootCmd.AddCommand(defineLabelCommand())

	return rootCmd.Execute()
}

// openFS opens imagePath and mounts it as a Facade, resolving the
// --partition flag against internal/mbr when the volume doesn't start at
// sector 0 of the image.
func openFS(cmd *cobra.Command, imagePath string) (*fat.FS, *diskio.FileDevice, error) {
	sectorSize, err := cmd.Flags().GetInt("sector-size")
	if err != nil {
		return nil, nil, err
	}
	partitionArg, err := cmd.Flags().GetString("partition")
	if err != nil {
		return nil, nil, err
	}

	dev, err := diskio.Open(imagePath, sectorSize)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", imagePath, err)
	}

	opts := []fat.MountOption{fat.WithPhysicalSectorSize(sectorSize)}
	if partitionArg != "none" {
		offset, err := resolvePartitionOffset(dev, sectorSize, partitionArg)
		if err != nil {
			dev.Close()
			return nil, nil, err
		}
		opts = append(opts, fat.WithPartitionOffset(offset))
	}

	fsys, err := fat.MountFS(dev, opts...)
	if err != nil {
		dev.Close()
		return nil, nil, fmt.Errorf("mounting %s: %w", imagePath, err)
	}
	return fsys, dev, nil
}

// resolvePartitionOffset turns the --partition flag into a starting sector,
// either by reading a literal index 0-3 out of the MBR partition table or,
// for "auto", letting mbr.FindFATPartition pick the first FAT-typed entry.
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
