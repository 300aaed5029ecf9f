package main

import (
	"github.com/spf13/cobra"

	"github.com/wippyai/stable-abi/loader"
)

var dumpCmd = &cobra.Command{
	Use:   "dump <module.so>",
	Short: "Print the layout descriptions a module exports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mod, err := loader.OpenPlugin(args[0])
		if err != nil {
			return err
		}
		newRenderer(cmd.OutOrStdout(), useColor(cmd)).dump(mod)
		return nil
	},
}
