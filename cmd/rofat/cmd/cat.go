package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

func defineCatCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "cat <image> <path>",
		Short:        "Print a file's contents to stdout",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE:         runCat,
	}
}

func runCat(cmd *cobra.Command, args []string) error {
	fsys, dev, err := openFS(cmd, args[0])
	if err != nil {
		return err
	}
	defer dev.Close()

	f, err := fsys.Open(args[1])
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(os.Stdout, f)
	return err
}
