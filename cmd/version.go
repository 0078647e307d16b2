package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
//
//nolint:gochecknoglobals // Cobra boilerplate
var version = "dev"

//nolint:gochecknoglobals // Cobra boilerplate
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("event-arb", version)
	},
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(versionCmd)
}
