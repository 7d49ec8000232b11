package cmd

import (
	"fmt"

	"github.com/embedfat/rofat"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func defineLsCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "ls <image> [path]",
		Short:        "List a directory's contents",
		Args:         cobra.RangeArgs(1, 2),
		SilenceUsage: true,
		RunE:         runLs,
	}
}

func runLs(cmd *cobra.Command, args []string) error {
	path := "/"
	if len(args) == 2 {
		path = args[1]
	}

	fsys, dev, err := openFS(cmd, args[0])
	if err != nil {
		return err
	}
	defer dev.Close()

	return fsys.Dir(path, func(e fat.DirEntry) bool {
		if e.IsDir {
			fmt.Printf("%12s  %s/\n", "<DIR>", e.Name)
			return false
		}
		size, sizeErr := sizeOf(fsys, path, e.Name)
		if sizeErr != nil {
			fmt.Printf("%12s  %s\n", "?", e.Name)
			return false
		}
		fmt.Printf("%12s  %s\n", humanize.Bytes(uint64(size)), e.Name)
		return false
	})
}

// sizeOf opens name within dir to read its declared size; the directory
// listing hook spec §4.4 defines carries only a name and a directory bit,
// so ls reopens the entry the same way a shell would stat() a bare readdir
// result.
func sizeOf(fsys *fat.FS, dir, name string) (int64, error) {
	full := name
	if dir != "/" {
		full = dir + "/" + name
	} else {
		full = "/" + name
	}
	f, err := fsys.Open(full)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return f.Size(), nil
}
