package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func defineLabelCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "label <image>",
		Short:        "Print the volume label",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         runLabel,
	}
}

func runLabel(cmd *cobra.Command, args []string) error {
	fsys, dev, err := openFS(cmd, args[0])
	if err != nil {
		return err
	}
	defer dev.Close()

	label, ok, err := fsys.Label()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("(no label)")
		return nil
	}
	fmt.Println(label)
	return nil
}
