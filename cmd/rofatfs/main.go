//go:build linux

// Command rofatfs mounts a FAT12/16/32 image read-only via FUSE.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	cmd := &cobra.Command{
		Use:          "rofatfs <image> <mountpoint>",
		Short:        "Mount a FAT12/16/32 image read-only via FUSE",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sectorSize, err := cmd.Flags().GetInt("sector-size")
			if err != nil {
				return err
			}
			partitionArg, err := cmd.Flags().GetString("partition")
			if err != nil {
				return err
			}
			return mountImage(args[0], args[1], sectorSize, partitionArg)
		},
	}
	cmd.Flags().Int("sector-size", 512, "physical sector size of the image, in bytes")
	cmd.Flags().String("partition", "none", `which partition holds the FAT volume: "none", "auto", or an index 0-3`)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
