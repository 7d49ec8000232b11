// Command rofat is a read-only command-line explorer for FAT12/16/32
// images: list a directory, dump a file to stdout, or print the volume
// label.
package main

import (
	"fmt"
	"os"

	"github.com/embedfat/rofat/cmd/rofat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
