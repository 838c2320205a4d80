package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/nodetree/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	// No config or logger needed.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "nodetree version %s\n", version.Get())
	},
}
